package console

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "fpconsole"

// workspaceToken signs and verifies the workspace cookie value.
type workspaceToken struct {
	secret []byte
	ttl    time.Duration
}

// Issue returns a signed token naming the workspace.
func (t workspaceToken) Issue(id uuid.UUID, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   id.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign workspace token: %w", err)
	}

	return signed, nil
}

// Parse verifies the token and returns the workspace ID and when it was issued.
func (t workspaceToken) Parse(token string) (uuid.UUID, time.Time, error) {
	var claims jwt.RegisteredClaims

	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("invalid workspace token: %w", err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("invalid workspace id: %w", err)
	}

	if claims.IssuedAt == nil {
		return uuid.Nil, time.Time{}, errors.New("workspace token has no issue time")
	}

	return id, claims.IssuedAt.Time, nil
}
