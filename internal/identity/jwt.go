package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the identity fields embedded in locally minted tokens.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTResolver validates locally signed HS256 tokens and reads the
// email claim as the user key.
type JWTResolver struct {
	secret []byte
}

// NewJWTResolver creates a resolver using the given signing secret.
func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

// Resolve validates the token signature and expiry and returns the
// email claim.
func (r *JWTResolver) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if !parsed.Valid {
		return "", ErrUnauthenticated
	}
	if claims.Email == "" {
		return "", fmt.Errorf("%w: token has no email claim", ErrUnauthenticated)
	}

	return claims.Email, nil
}
