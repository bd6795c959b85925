package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrOAuthFailed is delivered when the callback does not carry both tokens.
var ErrOAuthFailed = errors.New("oauth sign-in failed")

// shutdownTimeout bounds Close.
const shutdownTimeout = 5 * time.Second

// TokenStore receives the issued pair, normally session.Store.
type TokenStore interface {
	SetTokens(access, refresh string)
}

// Logger is the logging surface the server needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Config configures a CallbackServer.
type Config struct {
	// Listen is the loopback address, e.g. 127.0.0.1:8765. Port 0 picks one.
	Listen string

	// CallbackPath is the redirect path, e.g. /oauth2/callback.
	CallbackPath string

	Store  TokenStore
	Logger Logger
}

// CallbackServer is a one-shot OAuth redirect receiver.
type CallbackServer struct {
	cfg    Config
	logger Logger

	mu      sync.Mutex
	handled bool
	result  chan error

	server   *http.Server
	listener net.Listener
}

// NewCallbackServer creates a server. It does not listen until Start.
func NewCallbackServer(cfg Config) (*CallbackServer, error) {
	if cfg.Store == nil {
		return nil, errors.New("oauth: store is required")
	}
	if cfg.CallbackPath == "" || cfg.CallbackPath[0] != '/' {
		return nil, fmt.Errorf("oauth: callback path %q must start with /", cfg.CallbackPath)
	}
	s := &CallbackServer{
		cfg:    cfg,
		logger: cfg.Logger,
		result: make(chan error, 1),
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	return s, nil
}

// Handler returns the callback router.
func (s *CallbackServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(s.cfg.CallbackPath, s.handleCallback)
	return r
}

// Start listens on the configured address and serves in the background.
func (s *CallbackServer) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("oauth: listening on %s: %w", s.cfg.Listen, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("oauth callback server error", "error", err)
		}
	}()

	s.logger.Info("oauth callback server listening", "address", ln.Addr().String())
	return nil
}

// CallbackURL is the absolute redirect URL to register with the backend.
// Valid after Start.
func (s *CallbackServer) CallbackURL() string {
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String() + s.cfg.CallbackPath
}

// Wait blocks until the first callback arrives or ctx ends.
func (s *CallbackServer) Wait(ctx context.Context) error {
	select {
	case err := <-s.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the listener.
func (s *CallbackServer) Close() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down oauth callback server: %w", err)
	}
	return nil
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	if !s.claim() {
		s.logger.Warn("oauth callback ignored, sign-in already finished")
		http.Error(w, "This sign-in link has already been used.", http.StatusConflict)
		return
	}

	q := r.URL.Query()
	access, refresh := q.Get("accessToken"), q.Get("refreshToken")

	if access == "" || refresh == "" {
		reason := q.Get("error")
		if reason == "" {
			reason = "missing tokens"
		}
		s.logger.Warn("oauth callback refused", "reason", reason)
		s.result <- fmt.Errorf("%w: %s", ErrOAuthFailed, reason)
		http.Error(w, "Sign-in failed. Return to the console and try again.", http.StatusBadRequest)
		return
	}

	s.cfg.Store.SetTokens(access, refresh)
	s.logger.Info("oauth sign-in completed")
	s.result <- nil

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Signed in. You can close this window.\n")) //nolint:errcheck // Best-effort write to response
}

// claim reports whether this is the first callback. Only the first one
// touches the store or produces an outcome.
func (s *CallbackServer) claim() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handled {
		return false
	}
	s.handled = true
	return true
}
