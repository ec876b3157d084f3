package identity

import (
	"context"
	"errors"
)

// ErrUnauthenticated indicates the bearer token could not be resolved
// to a user. Callers should map this to an HTTP 401 response.
var ErrUnauthenticated = errors.New("identity: unauthenticated")

// Resolver turns a bearer token into a user key.
type Resolver interface {
	// Resolve returns the user key for the given token.
	// Returns ErrUnauthenticated if the token is missing, expired,
	// or otherwise invalid.
	Resolve(ctx context.Context, token string) (string, error)
}
