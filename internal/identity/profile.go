package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxProfileBodySize caps the userinfo response read to guard against
// a misbehaving provider.
const maxProfileBodySize = 64 * 1024

// ProfileResolver resolves tokens by calling the OAuth provider's
// userinfo endpoint and using the returned email as the user key.
type ProfileResolver struct {
	endpoint string
	client   *http.Client
}

// NewProfileResolver creates a resolver against the given provider domain,
// e.g. "https://example.eu.auth0.com". The userinfo path is appended.
func NewProfileResolver(providerDomain string, timeout time.Duration) *ProfileResolver {
	return &ProfileResolver{
		endpoint: strings.TrimRight(providerDomain, "/") + "/userinfo",
		client:   &http.Client{Timeout: timeout},
	}
}

// Resolve fetches the user profile for the token and returns its email.
func (r *ProfileResolver) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("building userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling userinfo endpoint: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrUnauthenticated
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("userinfo endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBodySize))
	if err != nil {
		return "", fmt.Errorf("reading userinfo response: %w", err)
	}

	var profile struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &profile); err != nil {
		return "", fmt.Errorf("parsing userinfo response: %w", err)
	}
	if profile.Email == "" {
		return "", fmt.Errorf("%w: profile has no email", ErrUnauthenticated)
	}

	return profile.Email, nil
}
