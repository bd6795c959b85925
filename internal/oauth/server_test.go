package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/graylogic/admin-console/internal/session"
)

func newServer(t *testing.T) (*CallbackServer, *session.Store) {
	t.Helper()
	store := session.NewStore(session.NewMemoryStorage())
	srv, err := NewCallbackServer(Config{Listen: "127.0.0.1:0", CallbackPath: "/oauth2/callback", Store: store})
	if err != nil {
		t.Fatalf("NewCallbackServer() error = %v", err)
	}
	return srv, store
}

func TestNewCallbackServer_Validation(t *testing.T) {
	if _, err := NewCallbackServer(Config{CallbackPath: "/cb"}); err == nil {
		t.Error("missing store should fail")
	}
	store := session.NewStore(nil)
	if _, err := NewCallbackServer(Config{CallbackPath: "cb", Store: store}); err == nil {
		t.Error("relative callback path should fail")
	}
}

func TestCallback_StoresTokens(t *testing.T) {
	srv, store := newServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth2/callback?accessToken=a1&refreshToken=r1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.AccessToken() != "a1" || store.RefreshToken() != "r1" || !store.IsAuthenticated() {
		t.Error("tokens not stored")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Wait(ctx); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestCallback_MissingTokens(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"no tokens", ""},
		{"access only", "?accessToken=a1"},
		{"refresh only", "?refreshToken=r1"},
		{"provider error", "?error=access_denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := newServer(t)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth2/callback"+tt.query, nil))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if store.IsAuthenticated() {
				t.Error("a refused callback must not authenticate")
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := srv.Wait(ctx); !errors.Is(err, ErrOAuthFailed) {
				t.Errorf("Wait() error = %v, want ErrOAuthFailed", err)
			}
		})
	}
}

func TestCallback_OnlyFirstOutcomeDelivered(t *testing.T) {
	srv, store := newServer(t)
	h := srv.Handler()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/oauth2/callback", nil))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Wait(ctx); !errors.Is(err, ErrOAuthFailed) {
		t.Errorf("Wait() error = %v, want the first outcome", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth2/callback?accessToken=a&refreshToken=r", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("late callback status = %d, want 409", rec.Code)
	}
	if store.IsAuthenticated() || store.AccessToken() != "" {
		t.Error("a callback after the outcome stored tokens")
	}
}

func TestWait_ContextEnds(t *testing.T) {
	srv, _ := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := srv.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestStart_ServesOnLoopback(t *testing.T) {
	srv, store := newServer(t)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { srv.Close() }) //nolint:errcheck // Test cleanup

	resp, err := http.Get(srv.CallbackURL() + "?accessToken=a2&refreshToken=r2")
	if err != nil {
		t.Fatalf("GET callback: %v", err)
	}
	resp.Body.Close() //nolint:errcheck // Test cleanup

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if store.AccessToken() != "a2" {
		t.Error("tokens not stored through the listener")
	}
}
