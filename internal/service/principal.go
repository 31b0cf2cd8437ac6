package service

import (
	"context"
	"strings"

	"github.com/Tomlord1122/family-todo/internal/apperr"
	"github.com/Tomlord1122/family-todo/internal/domain"
	"github.com/Tomlord1122/family-todo/internal/repository"
)

// lookupAccount resolves the acting principal's account. An empty principal
// fails before any store access.
func lookupAccount(ctx context.Context, accounts repository.AccountRepository, principal string) (*domain.Account, error) {
	email := domain.NormalizeEmail(principal)
	if email == "" {
		return nil, apperr.New(apperr.KindUnauthenticated, "user not authenticated")
	}
	account, err := accounts.FindByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("user %s not found", strings.TrimSpace(principal))
		}
		return nil, apperr.Store("failed to look up user", err)
	}
	return account, nil
}

// ensureSelf checks that a path-addressed account id belongs to the principal.
// Zero means "the principal's own account".
func ensureSelf(account *domain.Account, accountID uint) error {
	if accountID != 0 && accountID != account.ID {
		return apperr.Forbidden("cannot act on another user's resources")
	}
	return nil
}
