package service

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/Tomlord1122/family-todo/internal/apperr"
	"github.com/Tomlord1122/family-todo/internal/assets"
	"github.com/Tomlord1122/family-todo/internal/domain"
	"github.com/Tomlord1122/family-todo/internal/repository"
)

const birthdateLayout = time.DateOnly

// ChildInput carries the fields of a create or update. Nil fields are left
// unchanged on update.
type ChildInput struct {
	Name      *string
	Birthdate *time.Time
	Image     *assets.Upload
}

type ChildResponse struct {
	ID                uint    `json:"_id"`
	Name              string  `json:"name"`
	Birthday          *string `json:"birthday"`
	ProfilePictureURL string  `json:"profilePictureUrl"`
	Custodial         uint    `json:"custodial"`
	Parents           []uint  `json:"parents"`
}

// ChildService manages child records. accountID is the path-addressed
// account and must be the principal's own (zero means self).
type ChildService interface {
	CreateChild(ctx context.Context, principal string, accountID uint, in ChildInput) (*ChildResponse, error)
	ListChildren(ctx context.Context, principal string, accountID uint) ([]ChildResponse, error)
	GetChild(ctx context.Context, principal string, accountID, childID uint) (*ChildResponse, error)
	UpdateChild(ctx context.Context, principal string, accountID, childID uint, in ChildInput) (*ChildResponse, error)

	// LinkParent shares the child with the account registered under email.
	// Only the custodial account may do this.
	LinkParent(ctx context.Context, principal string, accountID, childID uint, email string) (*ChildResponse, error)

	// DeleteChild removes the child. Only the custodial account may do this.
	DeleteChild(ctx context.Context, principal string, accountID, childID uint) error
}

type childService struct {
	accounts repository.AccountRepository
	children repository.ChildRepository
	assets   AssetService
}

func NewChildService(accounts repository.AccountRepository, children repository.ChildRepository, assetSvc AssetService) ChildService {
	return &childService{
		accounts: accounts,
		children: children,
		assets:   assetSvc,
	}
}

func (s *childService) CreateChild(ctx context.Context, principal string, accountID uint, in ChildInput) (*ChildResponse, error) {
	account, err := s.actingAccount(ctx, principal, accountID)
	if err != nil {
		return nil, err
	}

	var name string
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
	}
	if name == "" {
		return nil, apperr.Validation("name is required")
	}

	child := &domain.Child{
		Name:        name,
		Birthdate:   in.Birthdate,
		CustodialID: account.ID,
	}

	if in.Image != nil {
		asset, err := s.assets.Upload(ctx, *in.Image)
		if err != nil {
			return nil, err
		}
		child.ImageID = &asset.ID
	}

	if err := s.children.Create(ctx, child); err != nil {
		s.assets.Discard(ctx, child.ImageID)
		log.Error("create child", "account", account.ID, "err", err)
		return nil, apperr.Store("failed to create child", err)
	}
	return s.toResponse(child), nil
}

func (s *childService) ListChildren(ctx context.Context, principal string, accountID uint) ([]ChildResponse, error) {
	account, err := s.actingAccount(ctx, principal, accountID)
	if err != nil {
		return nil, err
	}

	children, err := s.children.ListForAccount(ctx, account.ID)
	if err != nil {
		return nil, apperr.Store("failed to load children", err)
	}

	out := make([]ChildResponse, 0, len(children))
	for i := range children {
		out = append(out, *s.toResponse(&children[i]))
	}
	return out, nil
}

func (s *childService) GetChild(ctx context.Context, principal string, accountID, childID uint) (*ChildResponse, error) {
	account, err := s.actingAccount(ctx, principal, accountID)
	if err != nil {
		return nil, err
	}
	child, err := s.readableChild(ctx, account, childID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(child), nil
}

func (s *childService) UpdateChild(ctx context.Context, principal string, accountID, childID uint, in ChildInput) (*ChildResponse, error) {
	account, err := s.actingAccount(ctx, principal, accountID)
	if err != nil {
		return nil, err
	}
	child, err := s.readableChild(ctx, account, childID)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any, 2)
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		fields["name"] = name
	}
	if in.Birthdate != nil {
		fields["birthdate"] = *in.Birthdate
	}

	// A rejected image leaves the child untouched, so it goes first.
	if in.Image != nil {
		owner := &childImageOwner{repo: s.children, child: child}
		if _, err := s.assets.ReplaceOnOwner(ctx, owner, *in.Image); err != nil {
			return nil, err
		}
	}

	if len(fields) > 0 {
		child, err = s.children.Update(ctx, childID, fields)
		if err != nil {
			return nil, s.childStoreError(err, childID, "failed to update child")
		}
	}
	return s.toResponse(child), nil
}

func (s *childService) LinkParent(ctx context.Context, principal string, accountID, childID uint, email string) (*ChildResponse, error) {
	account, err := s.actingAccount(ctx, principal, accountID)
	if err != nil {
		return nil, err
	}
	child, err := s.readableChild(ctx, account, childID)
	if err != nil {
		return nil, err
	}
	if !child.IsCustodial(account.ID) {
		return nil, apperr.Forbidden("only the custodial parent can add parents")
	}

	normalized, err := validEmail(email)
	if err != nil {
		return nil, err
	}
	parent, err := s.accounts.FindByEmail(ctx, normalized)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("user %s not found", normalized)
		}
		return nil, apperr.Store("failed to look up user", err)
	}
	if parent.ID == child.CustodialID {
		return s.toResponse(child), nil
	}

	if err := s.children.LinkParent(ctx, child.ID, parent.ID); err != nil {
		if repository.IsForeignKey(err) {
			return nil, apperr.NotFound("child with ID %d not found", childID)
		}
		return nil, apperr.Store("failed to link parent", err)
	}

	child, err = s.children.FindByID(ctx, childID)
	if err != nil {
		return nil, s.childStoreError(err, childID, "failed to load child")
	}
	return s.toResponse(child), nil
}

func (s *childService) DeleteChild(ctx context.Context, principal string, accountID, childID uint) error {
	account, err := s.actingAccount(ctx, principal, accountID)
	if err != nil {
		return err
	}
	child, err := s.readableChild(ctx, account, childID)
	if err != nil {
		return err
	}
	if !child.IsCustodial(account.ID) {
		return apperr.Forbidden("only the custodial parent can delete this child")
	}

	if err := s.children.Delete(ctx, childID); err != nil {
		return s.childStoreError(err, childID, "failed to delete child")
	}
	s.assets.Discard(ctx, child.ImageID)
	return nil
}

func (s *childService) actingAccount(ctx context.Context, principal string, accountID uint) (*domain.Account, error) {
	account, err := lookupAccount(ctx, s.accounts, principal)
	if err != nil {
		return nil, err
	}
	if err := ensureSelf(account, accountID); err != nil {
		return nil, err
	}
	return account, nil
}

// readableChild hides children the account is neither custodial of nor
// linked to.
func (s *childService) readableChild(ctx context.Context, account *domain.Account, childID uint) (*domain.Child, error) {
	child, err := s.children.FindByID(ctx, childID)
	if err != nil {
		return nil, s.childStoreError(err, childID, "failed to load child")
	}
	if !child.CanRead(account.ID) {
		return nil, apperr.NotFound("child with ID %d not found", childID)
	}
	return child, nil
}

func (s *childService) childStoreError(err error, childID uint, msg string) error {
	if repository.IsNotFound(err) {
		return apperr.NotFound("child with ID %d not found", childID)
	}
	log.Error(msg, "child", childID, "err", err)
	return apperr.Store(msg, err)
}

func (s *childService) toResponse(child *domain.Child) *ChildResponse {
	resp := &ChildResponse{
		ID:                child.ID,
		Name:              child.Name,
		ProfilePictureURL: s.assets.URLFor(child.ImageID),
		Custodial:         child.CustodialID,
		Parents:           child.ParentIDs(),
	}
	if child.Birthdate != nil {
		b := child.Birthdate.Format(birthdateLayout)
		resp.Birthday = &b
	}
	return resp
}

type childImageOwner struct {
	repo  repository.ChildRepository
	child *domain.Child
}

func (o *childImageOwner) CurrentImage() *uuid.UUID {
	return o.child.ImageID
}

func (o *childImageOwner) SaveImage(ctx context.Context, id *uuid.UUID) error {
	if err := o.repo.SetImage(ctx, o.child.ID, id); err != nil {
		if repository.IsNotFound(err) {
			return apperr.NotFound("child with ID %d not found", o.child.ID)
		}
		return err
	}
	o.child.ImageID = id
	return nil
}

// ParseBirthdate reads a YYYY-MM-DD date. Empty input yields nil.
func ParseBirthdate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(birthdateLayout, raw)
	if err != nil {
		return nil, apperr.Validation("birthday must be formatted YYYY-MM-DD")
	}
	return &t, nil
}
