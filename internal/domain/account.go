package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthKind tags which authentication method an account was created with.
type AuthKind string

const (
	AuthPassword AuthKind = "password"
	AuthOAuth    AuthKind = "oauth"
)

// PasswordCost keeps hashes compatible with accounts registered by the web app.
const PasswordCost = 10

var (
	ErrPasswordMismatch  = errors.New("password does not match")
	ErrNotPasswordMethod = errors.New("account does not sign in with a password")
)

// Credential is a tagged union: PasswordHash is set only for AuthPassword,
// Provider and Subject only for AuthOAuth.
type Credential struct {
	Kind         AuthKind `gorm:"not null;default:password"`
	PasswordHash string
	Provider     string
	Subject      string
}

func PasswordCredential(password string) (Credential, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Kind: AuthPassword, PasswordHash: string(hash)}, nil
}

func OAuthCredential(provider, subject string) Credential {
	return Credential{Kind: AuthOAuth, Provider: provider, Subject: subject}
}

// VerifyPassword checks password against the stored hash.
func (c Credential) VerifyPassword(password string) error {
	if c.Kind != AuthPassword || c.PasswordHash == "" {
		return ErrNotPasswordMethod
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

// Account is a registered identity. Email is the identity key.
type Account struct {
	gorm.Model
	Email   string     `gorm:"uniqueIndex;not null"`
	Name    string
	Auth    Credential `gorm:"embedded;embeddedPrefix:auth_"`
	ImageID *uuid.UUID `gorm:"type:uuid;index"`
}

// NormalizeEmail lower-cases and trims an address so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
