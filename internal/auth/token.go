package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "codesnap"

var (
	// ErrInvalidToken is returned for malformed, forged or expired tokens
	ErrInvalidToken = errors.New("invalid admin token")

	// ErrRevokedToken is returned for tokens that were logged out
	ErrRevokedToken = errors.New("admin token revoked")
)

// IssueToken returns a signed capability token and its expiry
func (a *Authenticator) IssueToken(_ context.Context) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.ttl)

	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    tokenIssuer,
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken parses a token and checks its signature, expiry and revocation
func (a *Authenticator) ValidateToken(ctx context.Context, tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	revoked, err := a.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

// RevokeToken invalidates a token until its natural expiry
func (a *Authenticator) RevokeToken(ctx context.Context, tokenString string) error {
	claims, err := a.ValidateToken(ctx, tokenString)
	if err != nil {
		return err
	}
	return a.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
