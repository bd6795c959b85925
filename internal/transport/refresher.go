package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Tokens is a token pair issued by the backend.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context, refreshToken string) (Tokens, error)

// Refresh implements Refresher.
func (f RefreshFunc) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	return f(ctx, refreshToken)
}

// HTTPRefresher calls the backend refresh endpoint directly, without the
// interceptor and without an access token.
type HTTPRefresher struct {
	// URL is the absolute refresh endpoint, e.g. https://api/api/auth/refresh.
	URL string

	// Client performs the call. It must not be an intercepted client.
	// Nil uses http.DefaultClient.
	Client *http.Client
}

// Refresh POSTs {"refreshToken": ...} and decodes the issued pair.
func (h *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return Tokens{}, fmt.Errorf("encoding refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return Tokens{}, fmt.Errorf("building refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Tokens{}, fmt.Errorf("calling refresh endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // draining for connection reuse
		return Tokens{}, fmt.Errorf("%w: status %d", ErrRefreshRejected, resp.StatusCode)
	}

	var tokens Tokens
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return Tokens{}, fmt.Errorf("%w: decoding response: %w", ErrRefreshRejected, err)
	}
	if tokens.AccessToken == "" {
		return Tokens{}, fmt.Errorf("%w: response carries no access token", ErrRefreshRejected)
	}
	return tokens, nil
}
