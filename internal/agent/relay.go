package agent

import (
	"time"

	"github.com/graylogic/admin-console/internal/auth"
	"github.com/graylogic/admin-console/internal/infrastructure/mqtt"
	"github.com/graylogic/admin-console/internal/session"
	"github.com/graylogic/admin-console/internal/transport"
)

// EventPublisher publishes JSON payloads, normally *mqtt.Client.
type EventPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// TelemetryWriter records points, normally *influxdb.Client.
type TelemetryWriter interface {
	WriteSessionEvent(event string, authenticated bool, role string)
	WriteRefresh(success bool, duration time.Duration)
}

// SessionEvent is the payload published for every store event.
// Tokens are never included.
type SessionEvent struct {
	Event         string      `json:"event"`
	Authenticated bool        `json:"authenticated"`
	Initialized   bool        `json:"initialized"`
	Username      string      `json:"username,omitempty"`
	Roles         []auth.Role `json:"roles,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// RefreshEvent is the payload published for every refresh call.
type RefreshEvent struct {
	Event      string    `json:"event"`
	Success    bool      `json:"success"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// SessionState is the retained state payload.
type SessionState struct {
	Authenticated bool        `json:"authenticated"`
	Initialized   bool        `json:"initialized"`
	Username      string      `json:"username,omitempty"`
	Roles         []auth.Role `json:"roles,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Relay forwards session and refresh events to the configured sinks.
// It implements session.Observer and transport.RefreshObserver.
type Relay struct {
	publisher EventPublisher
	telemetry TelemetryWriter
	logger    Logger
	now       func() time.Time
}

// NewRelay creates a Relay. Either sink may be nil.
func NewRelay(publisher EventPublisher, telemetry TelemetryWriter, logger Logger) *Relay {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Relay{publisher: publisher, telemetry: telemetry, logger: logger, now: time.Now}
}

// SessionChanged implements session.Observer.
func (r *Relay) SessionChanged(event session.Event, snap session.Session) {
	var (
		username string
		roles    []auth.Role
		role     string
	)
	if snap.Profile != nil {
		username = snap.Profile.Username
		roles = snap.Profile.Roles
		role = string(auth.HighestRole(snap.Profile.Roles))
	}
	now := r.now().UTC()

	if r.telemetry != nil {
		r.telemetry.WriteSessionEvent(string(event), snap.IsAuthenticated, role)
	}
	if r.publisher == nil {
		return
	}

	topics := mqtt.Topics{}
	if err := r.publisher.PublishJSON(topics.SessionEvents(), SessionEvent{
		Event:         string(event),
		Authenticated: snap.IsAuthenticated,
		Initialized:   snap.IsInitialized,
		Username:      username,
		Roles:         roles,
		Timestamp:     now,
	}, false); err != nil {
		r.logger.Warn("publishing session event failed", "event", string(event), "error", err)
	}
	if err := r.publisher.PublishJSON(topics.SessionState(), SessionState{
		Authenticated: snap.IsAuthenticated,
		Initialized:   snap.IsInitialized,
		Username:      username,
		Roles:         roles,
		UpdatedAt:     now,
	}, true); err != nil {
		r.logger.Warn("publishing session state failed", "error", err)
	}
}

// RefreshCompleted implements transport.RefreshObserver.
func (r *Relay) RefreshCompleted(result transport.RefreshResult) {
	if r.telemetry != nil {
		r.telemetry.WriteRefresh(result.Success, result.Duration)
	}
	if r.publisher == nil {
		return
	}

	ev := RefreshEvent{
		Event:      "token_refresh",
		Success:    result.Success,
		DurationMS: float64(result.Duration.Microseconds()) / 1000,
		Timestamp:  r.now().UTC(),
	}
	if result.Err != nil {
		ev.Error = result.Err.Error()
	}
	if err := r.publisher.PublishJSON(mqtt.Topics{}.SessionEvents(), ev, false); err != nil {
		r.logger.Warn("publishing refresh event failed", "error", err)
	}
}
