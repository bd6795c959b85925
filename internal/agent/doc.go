// Package agent runs the console as a long-lived session keeper.
//
// The agent:
//   - refreshes the cached profile on a cron schedule through the guard, so a
//     revoked account is logged out without user interaction
//   - serves /healthz, /metrics and /session on a loopback HTTP listener
//   - relays session and refresh events to MQTT and InfluxDB ([Relay])
//   - accepts operator commands on console/session/command
//
// Every sink is optional. An agent with no MQTT and no InfluxDB still
// refreshes and serves metrics.
package agent
