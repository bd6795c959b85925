package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/graylogic/admin-console/internal/auth"
	"github.com/graylogic/admin-console/internal/transport"
)

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the register request body.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// DashboardSummary is the admin dashboard headline data.
type DashboardSummary struct {
	TotalUsers     int64    `json:"totalUsers"`
	ActiveSessions int64    `json:"activeSessions"`
	SystemHealth   string   `json:"systemHealth"`
	RecentActivity []string `json:"recentActivity"`
}

// Login exchanges credentials for a token pair. It does not touch the
// session store; see LoginAndLoad.
func (c *Client) Login(ctx context.Context, creds Credentials) (transport.Tokens, error) {
	var tokens transport.Tokens
	if err := c.do(transport.NoRefresh(ctx), http.MethodPost, c.loginPath, nil, creds, &tokens); err != nil {
		return transport.Tokens{}, err
	}
	if tokens.AccessToken == "" {
		return transport.Tokens{}, errors.New("backend: login response carries no access token")
	}
	return tokens, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	return c.do(transport.NoRefresh(ctx), http.MethodPost, c.registerPath, nil, reg, nil)
}

// Me fetches the current user's profile.
func (c *Client) Me(ctx context.Context) (*auth.UserProfile, error) {
	var profile auth.UserProfile
	if err := c.do(ctx, http.MethodGet, c.mePath, nil, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// DashboardSummary fetches the admin dashboard figures.
func (c *Client) DashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	var summary DashboardSummary
	if err := c.do(ctx, http.MethodGet, "/api/auth/dashboard/summary", nil, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Refresh exchanges a refresh token for a new pair. It implements
// transport.Refresher; the Client used for this must not be the intercepted
// one.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (transport.Tokens, error) {
	var tokens transport.Tokens
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.do(transport.NoRefresh(ctx), http.MethodPost, c.refreshPath, nil, body, &tokens); err != nil {
		return transport.Tokens{}, fmt.Errorf("%w: %w", transport.ErrRefreshRejected, err)
	}
	if tokens.AccessToken == "" {
		return transport.Tokens{}, fmt.Errorf("%w: response carries no access token", transport.ErrRefreshRejected)
	}
	return tokens, nil
}

// OAuthStartURL is where a browser starts the provider login.
func (c *Client) OAuthStartURL(provider string) string {
	return c.URL("/api/auth/oauth2/authorization/"+url.PathEscape(provider), nil)
}

// LoginAndLoad logs in, stores the tokens, then fetches and stores the
// profile. If the profile cannot be loaded the session is logged out again.
func (c *Client) LoginAndLoad(ctx context.Context, creds Credentials) (*auth.UserProfile, error) {
	if c.store == nil {
		return nil, errors.New("backend: no session store configured")
	}

	tokens, err := c.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	c.store.SetTokens(tokens.AccessToken, tokens.RefreshToken)

	profile, err := c.Me(ctx)
	if err != nil {
		c.store.Logout()
		return nil, fmt.Errorf("loading profile after login: %w", err)
	}
	c.store.SetUserProfile(profile)
	return profile, nil
}

// Logout clears the session. The backend keeps no server-side session to end.
func (c *Client) Logout() {
	if c.store != nil {
		c.store.Logout()
	}
}
