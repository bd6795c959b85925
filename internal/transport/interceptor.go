package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// HeaderRequestID carries the per-request correlation ID.
const HeaderRequestID = "X-Request-ID"

// TokenStore is the slice of the session store the interceptor needs.
// Satisfied by *session.Store.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	SetTokens(access, refresh string)
	Logout()
}

// Navigator performs the hard navigation to the login entry point.
type Navigator interface {
	RedirectToLogin()
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func()

// RedirectToLogin implements Navigator.
func (f NavigatorFunc) RedirectToLogin() { f() }

// RefreshResult describes one completed refresh call.
type RefreshResult struct {
	Success  bool
	Duration time.Duration
	Err      error
}

// RefreshObserver is notified after every refresh call.
type RefreshObserver interface {
	RefreshCompleted(result RefreshResult)
}

// Logger is the logging surface the interceptor needs.
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

// Config configures an Interceptor.
type Config struct {
	// Base sends requests. Nil uses http.DefaultTransport.
	Base http.RoundTripper

	// Store supplies and receives tokens. Required.
	Store TokenStore

	// Refresher obtains new tokens. Required.
	Refresher Refresher

	// Navigator is invoked once per failed refresh. Optional.
	Navigator Navigator

	// Coalesce shares one refresh call between concurrent 401s carrying the
	// same refresh token.
	Coalesce bool

	// Logger receives refresh lifecycle messages. Optional.
	Logger Logger
}

// Stats are cumulative interceptor counters.
type Stats struct {
	Requests        uint64
	Unauthorized    uint64
	Refreshes       uint64
	RefreshFailures uint64
	Retries         uint64
	Coalesced       uint64
	LastRefreshAt   *time.Time
}

// Interceptor is an http.RoundTripper implementing bearer attachment and the
// refresh-on-401 protocol.
type Interceptor struct {
	base      http.RoundTripper
	store     TokenStore
	refresher Refresher
	navigator Navigator
	coalesce  bool
	logger    Logger

	group singleflight.Group

	obsMu     sync.RWMutex
	observers []RefreshObserver

	requests        atomic.Uint64
	unauthorized    atomic.Uint64
	refreshes       atomic.Uint64
	refreshFailures atomic.Uint64
	retries         atomic.Uint64
	coalesced       atomic.Uint64
	lastRefresh     atomic.Int64
}

// New creates an Interceptor.
func New(cfg Config) (*Interceptor, error) {
	if cfg.Store == nil {
		return nil, errors.New("transport: store is required")
	}
	if cfg.Refresher == nil {
		return nil, errors.New("transport: refresher is required")
	}

	i := &Interceptor{
		base:      cfg.Base,
		store:     cfg.Store,
		refresher: cfg.Refresher,
		navigator: cfg.Navigator,
		coalesce:  cfg.Coalesce,
		logger:    cfg.Logger,
	}
	if i.base == nil {
		i.base = http.DefaultTransport
	}
	if i.navigator == nil {
		i.navigator = NavigatorFunc(func() {})
	}
	if i.logger == nil {
		i.logger = nopLogger{}
	}
	return i, nil
}

// Client returns an *http.Client whose transport is this interceptor.
func (i *Interceptor) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: i, Timeout: timeout}
}

// AddObserver registers a refresh observer.
func (i *Interceptor) AddObserver(o RefreshObserver) {
	if o == nil {
		return
	}
	i.obsMu.Lock()
	i.observers = append(i.observers, o)
	i.obsMu.Unlock()
}

// StatsSnapshot returns the current counters.
func (i *Interceptor) StatsSnapshot() Stats {
	s := Stats{
		Requests:        i.requests.Load(),
		Unauthorized:    i.unauthorized.Load(),
		Refreshes:       i.refreshes.Load(),
		RefreshFailures: i.refreshFailures.Load(),
		Retries:         i.retries.Load(),
		Coalesced:       i.coalesced.Load(),
	}
	if ns := i.lastRefresh.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		s.LastRefreshAt = &t
	}
	return s
}

// RoundTrip implements http.RoundTripper.
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	i.requests.Add(1)
	ctx := req.Context()

	getBody, err := replayableBody(req)
	if err != nil {
		return nil, err
	}

	out, err := cloneRequest(ctx, req, getBody)
	if err != nil {
		return nil, err
	}
	if out.Header.Get(HeaderRequestID) == "" {
		out.Header.Set(HeaderRequestID, uuid.NewString())
	}
	sent := i.store.AccessToken()
	if sent != "" {
		out.Header.Set("Authorization", "Bearer "+sent)
	}

	resp, err := i.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || noRefresh(ctx) {
		return resp, nil
	}

	i.unauthorized.Add(1)
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // draining for connection reuse
	resp.Body.Close()              //nolint:errcheck // replaced by the resent response

	requestID := out.Header.Get(HeaderRequestID)
	i.logger.Debug("access token rejected, refreshing",
		"method", req.Method,
		"path", req.URL.Path,
		"request_id", requestID,
	)

	access := i.store.AccessToken()
	if !i.coalesce || access == "" || access == sent {
		tokens, err := i.refresh(ctx)
		if err != nil {
			return nil, err
		}
		access = tokens.AccessToken
	} else {
		// A flight that finished after this request left already rotated
		// the token; resend with it instead of refreshing twice.
		i.logger.Debug("access token already rotated, resending", "request_id", requestID)
	}

	retry, err := cloneRequest(ctx, req, getBody)
	if err != nil {
		return nil, err
	}
	retry.Header.Set(HeaderRequestID, requestID)
	retry.Header.Set("Authorization", "Bearer "+access)

	i.retries.Add(1)
	return i.base.RoundTrip(retry)
}

// refresh runs or joins a refresh for the current refresh token.
func (i *Interceptor) refresh(ctx context.Context) (Tokens, error) {
	rt := i.store.RefreshToken()
	if rt == "" {
		i.fail(ErrNoRefreshToken)
		return Tokens{}, fmt.Errorf("%w: %w", ErrSessionExpired, ErrNoRefreshToken)
	}

	if !i.coalesce {
		return i.doRefresh(ctx, rt)
	}

	ch := i.group.DoChan(rt, func() (any, error) {
		// The flight outlives the first caller; each caller still honours
		// its own context below.
		return i.doRefresh(context.WithoutCancel(ctx), rt)
	})

	select {
	case res := <-ch:
		if res.Shared {
			i.coalesced.Add(1)
		}
		if res.Err != nil {
			return Tokens{}, res.Err
		}
		return res.Val.(Tokens), nil
	case <-ctx.Done():
		return Tokens{}, ctx.Err()
	}
}

// doRefresh performs one refresh call and applies its outcome to the store.
func (i *Interceptor) doRefresh(ctx context.Context, rt string) (Tokens, error) {
	start := time.Now()
	i.refreshes.Add(1)

	tokens, err := i.refresher.Refresh(ctx, rt)
	if err == nil && tokens.AccessToken == "" {
		err = fmt.Errorf("%w: no access token issued", ErrRefreshRejected)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The caller gave up; that says nothing about the session.
			i.notify(RefreshResult{Duration: time.Since(start), Err: ctxErr})
			return Tokens{}, ctxErr
		}
		i.fail(err)
		i.notify(RefreshResult{Duration: time.Since(start), Err: err})
		return Tokens{}, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	if tokens.RefreshToken == "" {
		tokens.RefreshToken = rt
	}
	i.store.SetTokens(tokens.AccessToken, tokens.RefreshToken)
	i.lastRefresh.Store(time.Now().UnixNano())

	i.logger.Info("access token refreshed", "duration_ms", time.Since(start).Milliseconds())
	i.notify(RefreshResult{Success: true, Duration: time.Since(start)})
	return tokens, nil
}

// fail ends the session and sends the user to the login entry point.
func (i *Interceptor) fail(cause error) {
	i.refreshFailures.Add(1)
	i.logger.Warn("token refresh failed, logging out", "error", cause)
	i.store.Logout()
	i.navigator.RedirectToLogin()
}

func (i *Interceptor) notify(result RefreshResult) {
	i.obsMu.RLock()
	observers := make([]RefreshObserver, len(i.observers))
	copy(observers, i.observers)
	i.obsMu.RUnlock()

	for _, o := range observers {
		o.RefreshCompleted(result)
	}
}

// replayableBody returns a function yielding fresh copies of req's body, or
// nil when there is no body. The caller's request is not modified.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		// RoundTrip must close the caller's body; copies come from GetBody.
		req.Body.Close() //nolint:errcheck // replaced by GetBody
		return req.GetBody, nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close() //nolint:errcheck // fully read
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBodyNotReplayable, err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

// cloneRequest copies req for dispatch with its own body.
func cloneRequest(ctx context.Context, req *http.Request, getBody func() (io.ReadCloser, error)) (*http.Request, error) {
	out := req.Clone(ctx)
	if getBody == nil {
		return out, nil
	}
	body, err := getBody()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBodyNotReplayable, err)
	}
	out.Body = body
	out.GetBody = getBody
	return out, nil
}

type ctxKey struct{}

// NoRefresh marks requests made with ctx as already retried: a 401 is
// returned to the caller untouched. Used for login, registration and the
// refresh call itself, where 401 means bad credentials.
func NoRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, true)
}

func noRefresh(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKey{}).(bool)
	return v
}
