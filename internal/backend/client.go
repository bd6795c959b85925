package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/graylogic/admin-console/internal/auth"
)

// Default endpoint paths.
const (
	DefaultLoginPath    = "/api/auth/login"
	DefaultRegisterPath = "/api/auth/register"
	DefaultRefreshPath  = "/api/auth/refresh"
	DefaultMePath       = "/api/auth/me"
)

// SessionStore is the part of session.Store the login flows write to.
type SessionStore interface {
	SetTokens(access, refresh string)
	SetUserProfile(p *auth.UserProfile)
	Logout()
}

// Config configures a Client.
type Config struct {
	// BaseURL is the backend origin, e.g. http://localhost:8080.
	BaseURL string

	// HTTPClient sends every request. Nil uses http.DefaultClient.
	HTTPClient *http.Client

	// Store receives tokens and the profile in LoginAndLoad. Optional for
	// callers that never log in through this client.
	Store SessionStore

	// Endpoint paths. Empty values use the defaults.
	LoginPath    string
	RegisterPath string
	RefreshPath  string
	MePath       string
}

// Client calls the admin REST API.
type Client struct {
	base         *url.URL
	http         *http.Client
	store        SessionStore
	loginPath    string
	registerPath string
	refreshPath  string
	mePath       string
}

// New creates a Client.
//
// Parameters:
//   - cfg: Base URL, HTTP client, optional session store and endpoint paths
//
// Returns:
//   - *Client: Ready to use
//   - error: If the base URL is missing or not absolute
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: parsing base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend: base url %q must be absolute", cfg.BaseURL)
	}

	c := &Client{
		base:         base,
		http:         cfg.HTTPClient,
		store:        cfg.Store,
		loginPath:    orDefault(cfg.LoginPath, DefaultLoginPath),
		registerPath: orDefault(cfg.RegisterPath, DefaultRegisterPath),
		refreshPath:  orDefault(cfg.RefreshPath, DefaultRefreshPath),
		mePath:       orDefault(cfg.MePath, DefaultMePath),
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	return c, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// URL resolves an API path against the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends one JSON request and decodes a JSON response into out.
// A nil in sends no body; a nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, query), body)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) //nolint:errcheck // best effort error body
		return fmt.Errorf("%s %s: %w", method, path, parseAPIError(resp.StatusCode, data))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // draining for connection reuse
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}
