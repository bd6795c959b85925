package session

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/graylogic/admin-console/internal/auth"
)

// DefaultStorageTimeout bounds each durable storage call made by the Store.
const DefaultStorageTimeout = 3 * time.Second

// Logger is the logging surface the Store needs.
// Satisfied by *logging.Logger and *slog.Logger.
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

// Session is a point-in-time copy of the store's state.
// An empty token string means the token is absent.
type Session struct {
	AccessToken     string
	RefreshToken    string
	Profile         *auth.UserProfile
	IsAuthenticated bool
	IsInitialized   bool
}

// Event identifies the mutation that produced a notification.
type Event string

// Events emitted to observers.
const (
	EventTokensSet   Event = "tokens_set"
	EventProfileSet  Event = "profile_set"
	EventLogout      Event = "logout"
	EventInitialized Event = "initialized"
)

// Observer receives store events after the mutation has completed.
// Observers run synchronously on the mutating goroutine, outside the store
// lock; they may read the store but must not block for long.
type Observer interface {
	SessionChanged(event Event, snapshot Session)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(event Event, snapshot Session)

// SessionChanged implements Observer.
func (f ObserverFunc) SessionChanged(event Event, snapshot Session) { f(event, snapshot) }

// Store is the process-wide owner of authentication state.
//
// Writes are serialised and reach durable storage before memory, so a value
// acknowledged to a caller is never only in memory while storage is healthy.
// A storage failure is logged and marks the store degraded; memory stays
// authoritative. Every operation still tries storage, and the first success
// clears the degraded state.
type Store struct {
	storage Storage
	timeout time.Duration
	logger  Logger

	// writeMu serialises mutations so storage order matches memory order.
	writeMu sync.Mutex

	mu            sync.RWMutex
	access        string
	refresh       string
	profile       *auth.UserProfile
	authenticated bool
	initialized   bool

	degraded atomic.Bool

	obsMu     sync.RWMutex
	observers []Observer
}

// NewStore creates a Store over storage. A nil storage keeps state in memory
// only.
func NewStore(storage Storage) *Store {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &Store{
		storage: storage,
		timeout: DefaultStorageTimeout,
		logger:  nopLogger{},
	}
}

// SetLogger sets the logger used for storage degradation messages.
func (s *Store) SetLogger(logger Logger) {
	if logger == nil {
		s.logger = nopLogger{}
		return
	}
	s.logger = logger
}

// SetStorageTimeout overrides DefaultStorageTimeout.
func (s *Store) SetStorageTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Subscribe registers an observer for all future events.
func (s *Store) Subscribe(o Observer) {
	if o == nil {
		return
	}
	s.obsMu.Lock()
	s.observers = append(s.observers, o)
	s.obsMu.Unlock()
}

// SetTokens stores both tokens and marks the session authenticated when both
// are present. Token content is not inspected.
func (s *Store) SetTokens(access, refresh string) {
	s.writeMu.Lock()

	s.persist("set tokens", map[string]string{
		KeyAccessToken:  access,
		KeyRefreshToken: refresh,
	})

	s.mu.Lock()
	s.access = access
	s.refresh = refresh
	s.authenticated = access != "" && refresh != ""
	s.mu.Unlock()

	s.writeMu.Unlock()
	s.notify(EventTokensSet)
}

// SetUserProfile replaces the cached profile. It does not change
// IsAuthenticated. A nil profile clears it.
func (s *Store) SetUserProfile(p *auth.UserProfile) {
	p = p.Clone()

	s.writeMu.Lock()

	if p == nil {
		s.remove("clear profile", KeyUserProfile)
	} else if data, err := json.Marshal(p); err != nil {
		s.logger.Error("encoding user profile", "error", err)
	} else {
		s.persist("set profile", map[string]string{KeyUserProfile: string(data)})
	}

	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()

	s.writeMu.Unlock()
	s.notify(EventProfileSet)
}

// Logout clears tokens and profile from memory and storage. The store is
// initialised afterwards: logged out is a known state.
func (s *Store) Logout() {
	s.writeMu.Lock()

	s.remove("logout", allKeys...)

	s.mu.Lock()
	s.access = ""
	s.refresh = ""
	s.profile = nil
	s.authenticated = false
	s.initialized = true
	s.mu.Unlock()

	s.writeMu.Unlock()
	s.notify(EventLogout)
}

// InitializeAuth hydrates memory from durable storage. Only the first call
// reads storage; later calls, and calls after Logout, are no-ops.
func (s *Store) InitializeAuth() {
	s.writeMu.Lock()

	s.mu.RLock()
	done := s.initialized
	s.mu.RUnlock()
	if done {
		s.writeMu.Unlock()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	entries, err := s.storage.Load(ctx, allKeys...)
	cancel()
	if err != nil {
		s.degrade("initialize", err)
	} else {
		s.healthy("initialize")
	}

	access := entries[KeyAccessToken]
	refresh := entries[KeyRefreshToken]
	authenticated := access != "" && refresh != ""

	// A profile without a token pair is stale and is not restored.
	var profile *auth.UserProfile
	if authenticated {
		profile = s.decodeProfile(entries[KeyUserProfile])
	}

	s.mu.Lock()
	if authenticated {
		s.access = access
		s.refresh = refresh
		s.authenticated = true
		s.profile = profile
	}
	s.initialized = true
	s.mu.Unlock()

	s.writeMu.Unlock()

	s.logger.Debug("session initialized",
		"authenticated", authenticated,
		"has_profile", profile != nil,
	)
	s.notify(EventInitialized)
}

// AccessToken returns the in-memory access token, falling back to durable
// storage. Empty means absent.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	v := s.access
	s.mu.RUnlock()
	if v != "" {
		return v
	}
	return s.loadKey(KeyAccessToken)
}

// RefreshToken returns the in-memory refresh token, falling back to durable
// storage. Empty means absent.
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	v := s.refresh
	s.mu.RUnlock()
	if v != "" {
		return v
	}
	return s.loadKey(KeyRefreshToken)
}

// Profile returns a copy of the cached profile, or nil. Before
// InitializeAuth it falls back to durable storage; afterwards memory is
// authoritative, so a profile left without tokens is never read back.
func (s *Store) Profile() *auth.UserProfile {
	s.mu.RLock()
	p := s.profile.Clone()
	initialized := s.initialized
	s.mu.RUnlock()
	if p != nil || initialized {
		return p
	}
	return s.decodeProfile(s.loadKey(KeyUserProfile))
}

// IsAuthenticated reports whether a token pair has been set or hydrated.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// IsInitialized reports whether the durable state has been read, or the
// session has been explicitly logged out.
func (s *Store) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Snapshot returns a consistent copy of the in-memory state.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{
		AccessToken:     s.access,
		RefreshToken:    s.refresh,
		Profile:         s.profile.Clone(),
		IsAuthenticated: s.authenticated,
		IsInitialized:   s.initialized,
	}
}

// Allowed evaluates req against the cached profile.
func (s *Store) Allowed(req auth.Requirement) bool {
	return auth.Allowed(s.Profile(), req)
}

// Can reports whether the cached profile holds perm.
func (s *Store) Can(perm auth.Permission) bool {
	return auth.Can(s.Profile(), perm)
}

// Degraded reports whether the most recent storage call failed.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

// persist writes entries, deleting keys whose value is empty.
func (s *Store) persist(op string, entries map[string]string) {
	save := make(map[string]string, len(entries))
	var drop []string
	for k, v := range entries {
		if v == "" {
			drop = append(drop, k)
			continue
		}
		save[k] = v
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if len(save) > 0 {
		if err := s.storage.Save(ctx, save); err != nil {
			s.degrade(op, err)
			return
		}
	}
	if len(drop) > 0 {
		if err := s.storage.Delete(ctx, drop...); err != nil {
			s.degrade(op, err)
			return
		}
	}
	s.healthy(op)
}

// remove deletes keys from storage. Logout depends on it reaching storage
// whatever the degraded state, or the next process would hydrate the
// session again.
func (s *Store) remove(op string, keys ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.storage.Delete(ctx, keys...); err != nil {
		s.degrade(op, err)
		return
	}
	s.healthy(op)
}

func (s *Store) loadKey(key string) string {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	entries, err := s.storage.Load(ctx, key)
	if err != nil {
		s.degrade("read "+key, err)
		return ""
	}
	s.healthy("read " + key)
	return entries[key]
}

func (s *Store) decodeProfile(raw string) *auth.UserProfile {
	if raw == "" {
		return nil
	}
	var p auth.UserProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.logger.Warn("ignoring stored user profile", "error", err)
		return nil
	}
	return &p
}

func (s *Store) degrade(op string, err error) {
	if s.degraded.CompareAndSwap(false, true) {
		s.logger.Warn("session storage unavailable, continuing in memory only",
			"op", op,
			"error", err,
		)
		return
	}
	s.logger.Debug("session storage still unavailable", "op", op, "error", err)
}

func (s *Store) healthy(op string) {
	if s.degraded.CompareAndSwap(true, false) {
		s.logger.Info("session storage available again", "op", op)
	}
}

func (s *Store) notify(event Event) {
	s.obsMu.RLock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.obsMu.RUnlock()

	if len(observers) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, o := range observers {
		o.SessionChanged(event, snap)
	}
}
