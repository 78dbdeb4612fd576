// Package auth guards the administrative operations: it verifies the shared
// admin secret, issues short-lived capability tokens and tracks revocations.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrNoSecret is returned when neither a password nor a password hash is configured
var ErrNoSecret = errors.New("admin password or password hash is required")

// Credentials carries whatever the caller presented for an admin action
type Credentials struct {
	Token    string
	Password string
}

// Options configures an Authenticator
type Options struct {
	Password     string
	PasswordHash string
	TokenSecret  string
	TokenTTL     time.Duration
	Revocations  RevocationStore
	Now          func() time.Time
}

// Authenticator decides whether a caller may perform admin actions
type Authenticator struct {
	password    []byte
	hash        []byte
	secret      []byte
	ttl         time.Duration
	revocations RevocationStore
	now         func() time.Time
}

// New creates an Authenticator. When no token secret is configured a random
// one is generated, so tokens do not survive a restart.
func New(opts Options) (*Authenticator, error) {
	if opts.Password == "" && strings.TrimSpace(opts.PasswordHash) == "" {
		return nil, ErrNoSecret
	}

	secret := []byte(opts.TokenSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
	}

	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 30 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Revocations == nil {
		opts.Revocations = NewMemoryRevocations(opts.Now)
	}

	return &Authenticator{
		password:    []byte(opts.Password),
		hash:        []byte(strings.TrimSpace(opts.PasswordHash)),
		secret:      secret,
		ttl:         opts.TokenTTL,
		revocations: opts.Revocations,
		now:         opts.Now,
	}, nil
}

// Verify checks a candidate password. A configured hash takes precedence over
// the plain password.
func (a *Authenticator) Verify(candidate string) bool {
	if candidate == "" {
		return false
	}
	if len(a.hash) > 0 {
		return bcrypt.CompareHashAndPassword(a.hash, []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare(a.password, []byte(candidate)) == 1
}

// Authorize accepts either a live capability token or the admin password
func (a *Authenticator) Authorize(ctx context.Context, creds Credentials) bool {
	if creds.Token != "" {
		if _, err := a.ValidateToken(ctx, creds.Token); err == nil {
			return true
		}
	}
	return a.Verify(creds.Password)
}

// HashPassword hashes a plaintext admin password for CODESNAP_ADMIN_PASSWORD_HASH
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
