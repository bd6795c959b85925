// Package mqtt connects the admin console's session agent to an MQTT broker.
//
// The agent uses the broker for three things:
//   - publishing session lifecycle events (console/session/events)
//   - publishing the current session state as a retained message
//     (console/session/state) so dashboards see it on subscribe
//   - receiving operator commands such as a forced logout
//     (console/session/command)
//
// # Connection lifecycle
//
// Connect blocks until the broker accepts the connection or the connect
// timeout elapses. Afterwards paho reconnects automatically with exponential
// backoff and this package restores subscriptions on every reconnect.
// A Last Will on console/agent/{client_id}/status reports crashes; Close
// publishes a graceful offline status instead.
//
// # Security
//
// Payloads never carry tokens. Events hold the event name, authentication
// flags and the username only.
package mqtt
