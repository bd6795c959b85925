package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the agent.
const (
	MeasurementSessionEvents = "session_events"
	MeasurementTokenRefresh  = "token_refresh"
)

// WriteSessionEvent records one session store event.
//
// Parameters:
//   - event: Store event name (tokens_set, profile_set, logout, initialized)
//   - authenticated: IsAuthenticated after the event
//   - role: Highest role of the cached profile, empty when none
//
// The username is never a tag; tags stay low-cardinality.
func (c *Client) WriteSessionEvent(event string, authenticated bool, role string) {
	tags := map[string]string{"event": event}
	if role != "" {
		tags["role"] = role
	}

	c.writePoint(MeasurementSessionEvents, tags, map[string]interface{}{
		"authenticated": authenticated,
		"count":         1,
	})
}

// WriteRefresh records the outcome and latency of one token refresh.
func (c *Client) WriteRefresh(success bool, duration time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}

	c.writePoint(MeasurementTokenRefresh, map[string]string{"outcome": outcome}, map[string]interface{}{
		"duration_ms": float64(duration.Microseconds()) / 1000,
		"count":       1,
	})
}

// writePoint queues one point; it is a no-op once the client is closed.
func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
