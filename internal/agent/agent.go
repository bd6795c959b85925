package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/graylogic/admin-console/internal/auth"
	"github.com/graylogic/admin-console/internal/guard"
	"github.com/graylogic/admin-console/internal/infrastructure/mqtt"
	"github.com/graylogic/admin-console/internal/session"
)

const (
	// refreshTimeout bounds one scheduled profile refresh.
	refreshTimeout = 30 * time.Second

	// shutdownTimeout bounds Close.
	shutdownTimeout = 10 * time.Second

	// commandQoS is the subscription QoS for operator commands.
	commandQoS = 1
)

// Operator commands accepted on console/session/command.
const (
	CommandLogout         = "logout"
	CommandRefreshProfile = "refresh_profile"
)

// SessionStore is the part of session.Store the agent reads and ends.
type SessionStore interface {
	Snapshot() session.Session
	Degraded() bool
	Logout()
}

// Resolver runs the protected-area entry sequence, normally *guard.Guard.
type Resolver interface {
	Resolve(ctx context.Context, area guard.Area) (guard.Decision, error)
}

// CommandSource delivers operator commands, normally *mqtt.Client.
type CommandSource interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger is the logging surface the agent needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Config configures an Agent.
type Config struct {
	// Listen is the HTTP address for /healthz, /metrics and /session.
	// Empty disables the listener.
	Listen string

	// ProfileSchedule is a cron spec, e.g. "@every 5m".
	ProfileSchedule string

	Store    SessionStore
	Resolver Resolver

	// Collectors are registered next to the agent's own metrics, e.g. the
	// interceptor collector from package transport.
	Collectors []prometheus.Collector

	// Commands is optional.
	Commands CommandSource

	Logger  Logger
	Version string
}

// Stats is a point-in-time copy of the agent's counters.
type Stats struct {
	ProfileRefreshes uint64
	ProfileFailures  uint64
	ProfileSkipped   uint64
	Commands         uint64
	LastProfileAt    *time.Time
}

// Agent keeps a session fresh and observable.
type Agent struct {
	cfg      Config
	store    SessionStore
	resolver Resolver
	logger   Logger
	registry *prometheus.Registry

	mu       sync.Mutex
	cron     *cron.Cron
	server   *http.Server
	listener net.Listener
	runCtx   context.Context
	cancel   context.CancelFunc

	// subscribed is the command topic, empty when not subscribed.
	subscribed string

	// initial tracks the refresh Start runs outside the schedule.
	initial sync.WaitGroup

	profileRefreshes atomic.Uint64
	profileFailures  atomic.Uint64
	profileSkipped   atomic.Uint64
	commands         atomic.Uint64
	lastProfile      atomic.Int64
}

// New creates an Agent and its metrics registry.
//
// Parameters:
//   - cfg: Listener, schedule, collaborators and extra collectors
//
// Returns:
//   - *Agent: Not yet running; call Start or Run
//   - error: If a required collaborator is missing or the schedule is invalid
func New(cfg Config) (*Agent, error) {
	if cfg.Store == nil {
		return nil, errors.New("agent: store is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("agent: resolver is required")
	}
	if _, err := cron.ParseStandard(cfg.ProfileSchedule); err != nil {
		return nil, fmt.Errorf("agent: invalid profile schedule %q: %w", cfg.ProfileSchedule, err)
	}

	a := &Agent{
		cfg:      cfg,
		store:    cfg.Store,
		resolver: cfg.Resolver,
		logger:   cfg.Logger,
		registry: prometheus.NewRegistry(),
		runCtx:   context.Background(),
	}
	if a.logger == nil {
		a.logger = nopLogger{}
	}

	_ = a.registry.Register(collectors.NewGoCollector())
	_ = a.registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "console_agent_uptime_seconds",
		Help: "Agent process uptime in seconds.",
	}, func() float64 {
		return time.Since(processStartedAt).Seconds()
	}))
	a.registry.MustRegister(newSessionMetricsCollector(a))
	for _, c := range cfg.Collectors {
		if err := a.registry.Register(c); err != nil {
			return nil, fmt.Errorf("agent: registering collector: %w", err)
		}
	}
	return a, nil
}

// Registry exposes the metrics registry.
func (a *Agent) Registry() *prometheus.Registry {
	return a.registry
}

// Start begins the schedule, the command subscription and the HTTP listener.
// An initial profile refresh runs in the background.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cron != nil {
		return errors.New("agent: already started")
	}
	a.runCtx, a.cancel = context.WithCancel(ctx)

	if a.cfg.Listen != "" {
		ln, err := net.Listen("tcp", a.cfg.Listen)
		if err != nil {
			a.cancel()
			return fmt.Errorf("agent: listening on %s: %w", a.cfg.Listen, err)
		}
		a.listener = ln
		a.server = &http.Server{
			Handler:           a.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("agent HTTP server error", "error", err)
			}
		}()
		a.logger.Info("agent HTTP listening", "address", ln.Addr().String())
	}

	if a.cfg.Commands != nil {
		topic := mqtt.Topics{}.SessionCommand()
		if err := a.cfg.Commands.Subscribe(topic, commandQoS, a.HandleCommand); err != nil {
			a.logger.Warn("operator commands unavailable", "topic", topic, "error", err)
		} else {
			a.subscribed = topic
		}
	}

	a.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := a.cron.AddFunc(a.cfg.ProfileSchedule, a.scheduledRefresh); err != nil {
		a.cancel()
		return fmt.Errorf("agent: scheduling profile refresh: %w", err)
	}
	a.cron.Start()

	a.initial.Add(1)
	go func() {
		defer a.initial.Done()
		a.scheduledRefresh()
	}()

	a.logger.Info("agent started", "profile_schedule", a.cfg.ProfileSchedule)
	return nil
}

// Run starts the agent and blocks until ctx ends, then closes it.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return a.Close()
}

// Close stops operator commands, the schedule and the HTTP listener, and
// waits for running refreshes. Safe to call when never started.
func (a *Agent) Close() error {
	a.mu.Lock()
	c, srv, cancel, topic := a.cron, a.server, a.cancel, a.subscribed
	a.subscribed = ""
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if topic != "" {
		if err := a.cfg.Commands.Unsubscribe(topic); err != nil {
			a.logger.Warn("unsubscribing operator commands", "topic", topic, "error", err)
		}
	}
	if c != nil {
		stopped := make(chan struct{})
		go func() {
			<-c.Stop().Done()
			a.initial.Wait()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			a.logger.Warn("profile refresh still running at shutdown")
		}
	}
	if srv == nil {
		return nil
	}

	ctx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down agent HTTP server: %w", err)
	}
	a.logger.Info("agent stopped")
	return nil
}

// Addr returns the HTTP listener address, or "" when not listening.
func (a *Agent) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

func (a *Agent) scheduledRefresh() {
	a.mu.Lock()
	parent := a.runCtx
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, refreshTimeout)
	defer cancel()
	if err := a.RefreshProfile(ctx); err != nil && ctx.Err() == nil {
		a.logger.Warn("scheduled profile refresh failed", "error", err)
	}
}

// RefreshProfile fetches the profile through the resolver.
//
// A session that is not authenticated is skipped. A failed fetch ends the
// session (the resolver logs it out) and is returned as an error.
func (a *Agent) RefreshProfile(ctx context.Context) error {
	d, err := a.resolver.Resolve(ctx, guard.AreaUser)
	if err != nil {
		return err
	}

	switch {
	case d.Outcome == guard.RedirectLogin && d.Cause != nil:
		a.profileFailures.Add(1)
		return fmt.Errorf("profile refresh: %w", d.Cause)
	case d.Outcome == guard.RedirectLogin:
		a.profileSkipped.Add(1)
		a.logger.Debug("profile refresh skipped, no session")
		return nil
	default:
		a.profileRefreshes.Add(1)
		a.lastProfile.Store(time.Now().UnixNano())
		return nil
	}
}

type commandMessage struct {
	Command string `json:"command"`
}

// HandleCommand executes one operator command. It matches
// mqtt.MessageHandler.
func (a *Agent) HandleCommand(topic string, payload []byte) error {
	a.commands.Add(1)

	var msg commandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding command on %s: %w", topic, err)
	}

	switch msg.Command {
	case CommandLogout:
		a.logger.Info("operator command: logout")
		a.store.Logout()
		return nil
	case CommandRefreshProfile:
		a.logger.Info("operator command: refresh profile")
		a.scheduledRefresh()
		return nil
	default:
		a.logger.Warn("unknown operator command ignored", "command", msg.Command)
		return nil
	}
}

// StatsSnapshot returns the current counters.
func (a *Agent) StatsSnapshot() Stats {
	s := Stats{
		ProfileRefreshes: a.profileRefreshes.Load(),
		ProfileFailures:  a.profileFailures.Load(),
		ProfileSkipped:   a.profileSkipped.Load(),
		Commands:         a.commands.Load(),
	}
	if ns := a.lastProfile.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		s.LastProfileAt = &t
	}
	return s
}

// Handler returns the agent's HTTP router.
func (a *Agent) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware, a.recoveryMiddleware, a.loggingMiddleware)

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	r.Get("/session", a.handleSession)
	return r
}

func (a *Agent) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        a.cfg.Version,
		"uptime_seconds": int64(time.Since(processStartedAt).Seconds()),
	})
}

// sessionView is the /session payload. Tokens are never exposed.
type sessionView struct {
	IsAuthenticated      bool              `json:"isAuthenticated"`
	IsInitialized        bool              `json:"isInitialized"`
	StorageDegraded      bool              `json:"storageDegraded"`
	Username             string            `json:"username,omitempty"`
	Email                string            `json:"email,omitempty"`
	Roles                []auth.Role       `json:"roles,omitempty"`
	Permissions          []auth.Permission `json:"permissions,omitempty"`
	AccessTokenSubject   string            `json:"accessTokenSubject,omitempty"`
	AccessTokenExpiresAt *time.Time        `json:"accessTokenExpiresAt,omitempty"`
	AccessTokenExpired   bool              `json:"accessTokenExpired"`
}

func (a *Agent) handleSession(w http.ResponseWriter, _ *http.Request) {
	snap := a.store.Snapshot()
	view := sessionView{
		IsAuthenticated: snap.IsAuthenticated,
		IsInitialized:   snap.IsInitialized,
		StorageDegraded: a.store.Degraded(),
	}
	if p := snap.Profile; p != nil {
		view.Username = p.Username
		view.Email = p.Email
		view.Roles = p.Roles
		view.Permissions = p.Permissions
	}
	if snap.AccessToken != "" {
		if info, err := auth.InspectToken(snap.AccessToken); err == nil {
			view.AccessTokenSubject = info.Subject
			if !info.ExpiresAt.IsZero() {
				exp := info.ExpiresAt.UTC()
				view.AccessTokenExpiresAt = &exp
				view.AccessTokenExpired = info.Expired(time.Now())
			}
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	json.NewEncoder(w).Encode(v)
}
