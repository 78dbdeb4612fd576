package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestAuthenticator(t *testing.T, clock *fakeClock) *Authenticator {
	t.Helper()
	a, err := New(Options{
		Password:    "correct horse",
		TokenSecret: "test-secret",
		TokenTTL:    30 * time.Minute,
		Now:         clock.Now,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestNew_RequiresSecret(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	hash, err := HashPassword("hashed-secret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	plain, _ := New(Options{Password: "plain-secret"})
	hashed, _ := New(Options{PasswordHash: hash})
	both, _ := New(Options{Password: "ignored", PasswordHash: hash})

	tests := []struct {
		name      string
		auth      *Authenticator
		candidate string
		want      bool
	}{
		{"plain match", plain, "plain-secret", true},
		{"plain mismatch", plain, "plain-secreT", false},
		{"plain prefix", plain, "plain", false},
		{"empty candidate", plain, "", false},
		{"hash match", hashed, "hashed-secret", true},
		{"hash mismatch", hashed, "nope", false},
		{"hash wins over password", both, "ignored", false},
		{"hash wins match", both, "hashed-secret", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.auth.Verify(tt.candidate); got != tt.want {
				t.Errorf("Verify(%q) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestHashPassword_Empty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Error("expected error for empty password")
	}
}

func TestTokenLifecycle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	a := newTestAuthenticator(t, clock)
	ctx := context.Background()

	token, expiresAt, err := a.IssueToken(ctx)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if !expiresAt.Equal(clock.Now().Add(30 * time.Minute)) {
		t.Errorf("unexpected expiry %v", expiresAt)
	}

	claims, err := a.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.ID == "" {
		t.Error("expected a token id")
	}
	if !a.Authorize(ctx, Credentials{Token: token}) {
		t.Error("Authorize should accept a live token")
	}

	if err := a.RevokeToken(ctx, token); err != nil {
		t.Fatalf("RevokeToken() error = %v", err)
	}
	if _, err := a.ValidateToken(ctx, token); !errors.Is(err, ErrRevokedToken) {
		t.Errorf("expected ErrRevokedToken, got %v", err)
	}
	if a.Authorize(ctx, Credentials{Token: token}) {
		t.Error("Authorize should reject a revoked token")
	}
}

func TestTokenExpires(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	a := newTestAuthenticator(t, clock)
	ctx := context.Background()

	token, _, err := a.IssueToken(ctx)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	clock.Advance(31 * time.Minute)
	if _, err := a.ValidateToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestTokenRejectsForgery(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	a := newTestAuthenticator(t, clock)
	other, err := New(Options{Password: "x", TokenSecret: "another-secret", Now: clock.Now})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	foreign, _, err := other.IssueToken(ctx)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"other secret", foreign},
		{"garbage", "not.a.token"},
		{"empty", ""},
		{"unsigned", strings.Join(strings.Split(foreign, ".")[:2], ".") + "."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.ValidateToken(ctx, tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestAuthorize_PasswordFallback(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	a := newTestAuthenticator(t, clock)
	ctx := context.Background()

	if !a.Authorize(ctx, Credentials{Password: "correct horse"}) {
		t.Error("expected password to authorize")
	}
	if !a.Authorize(ctx, Credentials{Token: "bogus", Password: "correct horse"}) {
		t.Error("a bad token should fall back to the password")
	}
	if a.Authorize(ctx, Credentials{Password: "wrong"}) {
		t.Error("wrong password must not authorize")
	}
	if a.Authorize(ctx, Credentials{}) {
		t.Error("empty credentials must not authorize")
	}
}

func TestMemoryRevocations_Expire(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryRevocations(clock.Now)
	ctx := context.Background()

	_ = store.Revoke(ctx, "a", clock.Now().Add(time.Minute))
	_ = store.Revoke(ctx, "past", clock.Now().Add(-time.Minute))

	if revoked, _ := store.IsRevoked(ctx, "a"); !revoked {
		t.Error("expected a to be revoked")
	}
	if revoked, _ := store.IsRevoked(ctx, "past"); revoked {
		t.Error("already expired ids should not be recorded")
	}

	clock.Advance(2 * time.Minute)
	if revoked, _ := store.IsRevoked(ctx, "a"); revoked {
		t.Error("revocation should lapse with the token")
	}
}

func TestNewRedisRevocations_BadURL(t *testing.T) {
	if _, err := NewRedisRevocations(context.Background(), "not-a-redis-url"); err == nil {
		t.Error("expected error for malformed url")
	}
}
