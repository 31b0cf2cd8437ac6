package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/Tomlord1122/family-todo/internal/apperr"
	"github.com/Tomlord1122/family-todo/internal/assets"
	"github.com/Tomlord1122/family-todo/internal/domain"
	"github.com/Tomlord1122/family-todo/internal/repository"
)

const (
	minPasswordLen = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordLen = 72
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	Name *string `json:"name"`
}

// OAuthIdentity is what an external provider asserts about a signed-in user.
type OAuthIdentity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

type ProfileResponse struct {
	ID       uint   `json:"_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"imagefileUrl"`
	Children []uint `json:"children"`
}

type ImageUpdateResponse struct {
	User     ProfileResponse `json:"user"`
	ImageURL string          `json:"imagefileUrl"`
}

// AccountService handles registration, sign-in and profile management.
type AccountService interface {
	Register(ctx context.Context, req RegisterRequest) (*ProfileResponse, error)

	// Authenticate verifies a password sign-in. Every failure is reported as
	// the same Unauthenticated error.
	Authenticate(ctx context.Context, email, password string) (*domain.Account, error)

	// SignInOAuth returns the account for the identity's email, creating it on
	// first sign-in.
	SignInOAuth(ctx context.Context, identity OAuthIdentity) (*domain.Account, error)

	EmailExists(ctx context.Context, email string) (bool, error)

	Profile(ctx context.Context, principal string, accountID uint) (*ProfileResponse, error)

	UpdateProfile(ctx context.Context, principal string, accountID uint, req UpdateProfileRequest) (*ProfileResponse, error)

	ReplaceImage(ctx context.Context, principal string, accountID uint, up assets.Upload) (*ImageUpdateResponse, error)
}

type accountService struct {
	accounts repository.AccountRepository
	children repository.ChildRepository
	assets   AssetService
}

func NewAccountService(accounts repository.AccountRepository, children repository.ChildRepository, assetSvc AssetService) AccountService {
	return &accountService{
		accounts: accounts,
		children: children,
		assets:   assetSvc,
	}
}

func (s *accountService) Register(ctx context.Context, req RegisterRequest) (*ProfileResponse, error) {
	email, err := validEmail(req.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if len(req.Password) < minPasswordLen {
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLen)
	}
	if len(req.Password) > maxPasswordLen {
		return nil, apperr.Validation("password must be at most %d bytes", maxPasswordLen)
	}

	cred, err := domain.PasswordCredential(req.Password)
	if err != nil {
		return nil, apperr.Store("failed to hash password", err)
	}

	account := &domain.Account{Email: email, Name: name, Auth: cred}
	if err := s.accounts.Create(ctx, account); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperr.New(apperr.KindConflict, "email is already registered")
		}
		log.Error("register account", "email", email, "err", err)
		return nil, apperr.Store("failed to create user", err)
	}

	log.Info("account registered", "account", account.ID)
	return s.profile(account, nil), nil
}

func (s *accountService) Authenticate(ctx context.Context, email, password string) (*domain.Account, error) {
	invalid := apperr.New(apperr.KindUnauthenticated, "invalid email or password")

	account, err := s.accounts.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, invalid
		}
		return nil, apperr.Store("failed to look up user", err)
	}
	if err := account.Auth.VerifyPassword(password); err != nil {
		return nil, invalid
	}
	return account, nil
}

func (s *accountService) SignInOAuth(ctx context.Context, identity OAuthIdentity) (*domain.Account, error) {
	email, err := validEmail(identity.Email)
	if err != nil {
		return nil, apperr.New(apperr.KindUnauthenticated, "identity provider did not supply a usable email")
	}
	if identity.Subject == "" {
		return nil, apperr.New(apperr.KindUnauthenticated, "identity provider did not supply a subject")
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err == nil {
		return account, nil
	}
	if !repository.IsNotFound(err) {
		return nil, apperr.Store("failed to look up user", err)
	}

	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = email[:strings.IndexByte(email, '@')]
	}
	account = &domain.Account{
		Email: email,
		Name:  name,
		Auth:  domain.OAuthCredential(identity.Provider, identity.Subject),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if repository.IsDuplicate(err) {
			// Lost a race with a concurrent first sign-in.
			existing, findErr := s.accounts.FindByEmail(ctx, email)
			if findErr == nil {
				return existing, nil
			}
		}
		log.Error("create oauth account", "email", email, "err", err)
		return nil, apperr.Store("failed to create user", err)
	}
	log.Info("account created from oauth", "account", account.ID, "provider", identity.Provider)
	return account, nil
}

func (s *accountService) EmailExists(ctx context.Context, email string) (bool, error) {
	normalized, err := validEmail(email)
	if err != nil {
		return false, err
	}
	_, err = s.accounts.FindByEmail(ctx, normalized)
	switch {
	case err == nil:
		return true, nil
	case repository.IsNotFound(err):
		return false, nil
	default:
		return false, apperr.Store("failed to look up user", err)
	}
}

func (s *accountService) Profile(ctx context.Context, principal string, accountID uint) (*ProfileResponse, error) {
	account, err := lookupAccount(ctx, s.accounts, principal)
	if err != nil {
		return nil, err
	}
	if err := ensureSelf(account, accountID); err != nil {
		return nil, err
	}
	return s.profileWithChildren(ctx, account)
}

func (s *accountService) UpdateProfile(ctx context.Context, principal string, accountID uint, req UpdateProfileRequest) (*ProfileResponse, error) {
	account, err := lookupAccount(ctx, s.accounts, principal)
	if err != nil {
		return nil, err
	}
	if err := ensureSelf(account, accountID); err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		account, err = s.accounts.UpdateName(ctx, account.ID, name)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, apperr.NotFound("user %s not found", principal)
			}
			return nil, apperr.Store("failed to update user", err)
		}
	}
	return s.profileWithChildren(ctx, account)
}

func (s *accountService) ReplaceImage(ctx context.Context, principal string, accountID uint, up assets.Upload) (*ImageUpdateResponse, error) {
	account, err := lookupAccount(ctx, s.accounts, principal)
	if err != nil {
		return nil, err
	}
	if err := ensureSelf(account, accountID); err != nil {
		return nil, err
	}

	owner := &accountImageOwner{repo: s.accounts, account: account}
	if _, err := s.assets.ReplaceOnOwner(ctx, owner, up); err != nil {
		return nil, err
	}

	profile, err := s.profileWithChildren(ctx, account)
	if err != nil {
		return nil, err
	}
	return &ImageUpdateResponse{User: *profile, ImageURL: profile.ImageURL}, nil
}

func (s *accountService) profileWithChildren(ctx context.Context, account *domain.Account) (*ProfileResponse, error) {
	children, err := s.children.ListForAccount(ctx, account.ID)
	if err != nil {
		return nil, apperr.Store("failed to load children", err)
	}
	return s.profile(account, children), nil
}

func (s *accountService) profile(account *domain.Account, children []domain.Child) *ProfileResponse {
	ids := make([]uint, 0, len(children))
	for _, c := range children {
		ids = append(ids, c.ID)
	}
	return &ProfileResponse{
		ID:       account.ID,
		Name:     account.Name,
		Email:    account.Email,
		ImageURL: s.assets.URLFor(account.ImageID),
		Children: ids,
	}
}

// accountImageOwner keeps the in-memory account in step with the stored
// reference.
type accountImageOwner struct {
	repo    repository.AccountRepository
	account *domain.Account
}

func (o *accountImageOwner) CurrentImage() *uuid.UUID {
	return o.account.ImageID
}

func (o *accountImageOwner) SaveImage(ctx context.Context, id *uuid.UUID) error {
	if err := o.repo.SetImage(ctx, o.account.ID, id); err != nil {
		if repository.IsNotFound(err) {
			return apperr.NotFound("user %d not found", o.account.ID)
		}
		return err
	}
	o.account.ImageID = id
	return nil
}

func validEmail(raw string) (string, error) {
	email := domain.NormalizeEmail(raw)
	if email == "" {
		return "", apperr.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("email %q is not a valid address", strings.TrimSpace(raw))
	}
	return email, nil
}
