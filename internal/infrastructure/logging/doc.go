// Package logging provides structured logging for the admin console.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the CLI and the session agent.
//
// # Features
//
//   - JSON output for machines, text output for people at a terminal
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stderr"   # stderr, stdout, discard
//
// # Security
//
// Never log access or refresh tokens, passwords, or the storage encryption
// key. Log token presence as a boolean and correlate requests by request_id.
package logging
