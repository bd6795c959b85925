package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/graylogic/admin-console/internal/auth"
	"github.com/graylogic/admin-console/internal/guard"
	"github.com/graylogic/admin-console/internal/infrastructure/mqtt"
	"github.com/graylogic/admin-console/internal/session"
)

type fakeProfiles struct {
	mu      sync.Mutex
	profile *auth.UserProfile
	err     error
	calls   atomic.Int32

	// When gate is set, Me reports on entered and blocks until gate closes,
	// ignoring ctx like a backend that is slow to answer.
	entered chan struct{}
	gate    chan struct{}
}

func (f *fakeProfiles) Me(ctx context.Context) (*auth.UserProfile, error) {
	f.calls.Add(1)
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.profile.Clone(), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.profile.Clone(), nil
}

func (f *fakeProfiles) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type fakeCommands struct {
	topic        string
	handler      mqtt.MessageHandler
	unsubscribed string
}

func (f *fakeCommands) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.topic = topic
	f.handler = handler
	return nil
}

func (f *fakeCommands) Unsubscribe(topic string) error {
	f.unsubscribed = topic
	return nil
}

func signedToken(t *testing.T, subject string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func newAgent(t *testing.T, cfg Config) (*Agent, *session.Store, *fakeProfiles) {
	t.Helper()
	store := session.NewStore(session.NewMemoryStorage())
	profiles := &fakeProfiles{profile: &auth.UserProfile{Username: "ada", Email: "ada@example.com", Roles: auth.RoleList{auth.RoleStaff}}}

	cfg.Store = store
	cfg.Resolver = guard.New(store, profiles)
	if cfg.ProfileSchedule == "" {
		cfg.ProfileSchedule = "@every 1h"
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a, store, profiles
}

func TestNew_Validation(t *testing.T) {
	store := session.NewStore(nil)
	resolver := guard.New(store, &fakeProfiles{})

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing store", Config{Resolver: resolver, ProfileSchedule: "@every 5m"}},
		{"missing resolver", Config{Store: store, ProfileSchedule: "@every 5m"}},
		{"bad schedule", Config{Store: store, Resolver: resolver, ProfileSchedule: "sometimes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestRefreshProfile(t *testing.T) {
	t.Run("skipped without a session", func(t *testing.T) {
		a, _, profiles := newAgent(t, Config{})
		if err := a.RefreshProfile(context.Background()); err != nil {
			t.Fatalf("RefreshProfile() error = %v", err)
		}
		if s := a.StatsSnapshot(); s.ProfileSkipped != 1 || profiles.calls.Load() != 0 {
			t.Errorf("stats = %+v, calls = %d", s, profiles.calls.Load())
		}
	})

	t.Run("success caches the profile", func(t *testing.T) {
		a, store, _ := newAgent(t, Config{})
		store.SetTokens("access", "refresh")

		if err := a.RefreshProfile(context.Background()); err != nil {
			t.Fatalf("RefreshProfile() error = %v", err)
		}
		s := a.StatsSnapshot()
		if s.ProfileRefreshes != 1 || s.LastProfileAt == nil {
			t.Errorf("stats = %+v", s)
		}
		if store.Profile() == nil || store.Profile().Username != "ada" {
			t.Error("profile not cached")
		}
	})

	t.Run("failure ends the session", func(t *testing.T) {
		a, store, profiles := newAgent(t, Config{})
		store.SetTokens("access", "refresh")
		cause := errors.New("account disabled")
		profiles.fail(cause)

		err := a.RefreshProfile(context.Background())
		if !errors.Is(err, cause) {
			t.Fatalf("RefreshProfile() error = %v, want cause", err)
		}
		if store.IsAuthenticated() {
			t.Error("session should be logged out")
		}
		if a.StatsSnapshot().ProfileFailures != 1 {
			t.Error("failure not counted")
		}
	})

	t.Run("cancellation keeps the session", func(t *testing.T) {
		a, store, _ := newAgent(t, Config{})
		store.SetTokens("access", "refresh")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := a.RefreshProfile(ctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("RefreshProfile() error = %v", err)
		}
		if !store.IsAuthenticated() {
			t.Error("cancellation must not end the session")
		}
	})
}

func TestHandleCommand(t *testing.T) {
	a, store, profiles := newAgent(t, Config{})
	store.SetTokens("access", "refresh")

	if err := a.HandleCommand("console/session/command", []byte(`{"command":"refresh_profile"}`)); err != nil {
		t.Fatalf("refresh_profile error = %v", err)
	}
	if profiles.calls.Load() != 1 {
		t.Errorf("profile fetched %d times, want 1", profiles.calls.Load())
	}

	if err := a.HandleCommand("console/session/command", []byte(`{"command":"reboot"}`)); err != nil {
		t.Errorf("unknown command error = %v, want nil", err)
	}
	if err := a.HandleCommand("console/session/command", []byte(`not json`)); err == nil {
		t.Error("malformed command should fail")
	}

	if err := a.HandleCommand("console/session/command", []byte(`{"command":"logout"}`)); err != nil {
		t.Fatalf("logout error = %v", err)
	}
	if store.IsAuthenticated() {
		t.Error("logout command should end the session")
	}
	if got := a.StatsSnapshot().Commands; got != 4 {
		t.Errorf("Commands = %d, want 4", got)
	}
}

func TestHandler_Health(t *testing.T) {
	a, _, _ := newAgent(t, Config{Version: "1.2.3"})

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should be set")
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "1.2.3" {
		t.Errorf("body = %v", body)
	}
}

func TestHandler_Session(t *testing.T) {
	a, store, _ := newAgent(t, Config{})
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access := signedToken(t, "ada", exp)
	store.SetTokens(access, "refresh-secret")
	store.SetUserProfile(&auth.UserProfile{Username: "ada", Roles: auth.RoleList{auth.RoleManager}, Permissions: []auth.Permission{auth.PermOrderRead}})

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))

	body := rec.Body.String()
	if strings.Contains(body, access) || strings.Contains(body, "refresh-secret") {
		t.Fatal("/session must never expose tokens")
	}

	var view sessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if !view.IsAuthenticated || view.Username != "ada" || view.AccessTokenSubject != "ada" {
		t.Errorf("view = %+v", view)
	}
	if view.AccessTokenExpiresAt == nil || !view.AccessTokenExpiresAt.Equal(exp) || view.AccessTokenExpired {
		t.Errorf("expiry = %v expired = %v, want %v", view.AccessTokenExpiresAt, view.AccessTokenExpired, exp)
	}
	if len(view.Roles) != 1 || view.Roles[0] != auth.RoleManager {
		t.Errorf("roles = %v", view.Roles)
	}
}

func TestHandler_Metrics(t *testing.T) {
	a, store, _ := newAgent(t, Config{})
	store.SetTokens(signedToken(t, "ada", time.Now().Add(time.Hour)), "refresh")
	if err := a.RefreshProfile(context.Background()); err != nil {
		t.Fatalf("RefreshProfile() error = %v", err)
	}

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		"console_session_authenticated 1",
		"console_session_storage_degraded 0",
		`console_profile_refreshes_total{outcome="success"} 1`,
		"console_access_token_expiry_timestamp",
		"console_agent_uptime_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}

func TestStartAndClose(t *testing.T) {
	commands := &fakeCommands{}
	a, store, _ := newAgent(t, Config{Listen: "127.0.0.1:0", Commands: commands})
	store.SetTokens("access", "refresh")

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	if commands.topic != (mqtt.Topics{}).SessionCommand() || commands.handler == nil {
		t.Errorf("subscribed to %q", commands.topic)
	}

	resp, err := http.Get("http://" + a.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // Test cleanup
	resp.Body.Close()              //nolint:errcheck // Test cleanup
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	// The initial refresh runs in the background.
	deadline := time.Now().Add(2 * time.Second)
	for a.StatsSnapshot().ProfileRefreshes == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if a.StatsSnapshot().ProfileRefreshes == 0 {
		t.Error("initial profile refresh did not run")
	}

	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if commands.unsubscribed != (mqtt.Topics{}).SessionCommand() {
		t.Errorf("Close() unsubscribed %q, want the command topic", commands.unsubscribed)
	}
}

func TestClose_WaitsForInitialRefresh(t *testing.T) {
	a, store, profiles := newAgent(t, Config{})
	profiles.entered = make(chan struct{}, 1)
	profiles.gate = make(chan struct{})
	store.SetTokens("access", "refresh")

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	select {
	case <-profiles.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("initial refresh did not start")
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		close(profiles.gate)
	}()
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if got := a.StatsSnapshot().ProfileRefreshes; got != 1 {
		t.Errorf("ProfileRefreshes after Close() = %d, want 1", got)
	}
}

func TestClose_NeverStarted(t *testing.T) {
	a, _, _ := newAgent(t, Config{})
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if a.Addr() != "" {
		t.Error("Addr() should be empty when not listening")
	}
}
