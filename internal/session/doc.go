// Package session owns the authentication state of the console: the access
// token, the refresh token and the cached user profile.
//
// # Store
//
// [Store] is the single writer-of-record. Every component reads the session
// through it and mutates it only through SetTokens, SetUserProfile and Logout.
// A Store is constructed once per process and passed to the HTTP client, the
// guards and the CLI; there is no package-level instance.
//
// Reads follow a fixed precedence: in-memory state wins, durable storage is
// the cold-start source. InitializeAuth hydrates memory from storage exactly
// once and marks the store initialised, which lets callers tell "not yet
// known" apart from "known logged out".
//
// # Durable storage
//
// Persistence goes through the [Storage] interface. Implementations:
//   - [MemoryStorage]: process lifetime only (tests, ephemeral runs)
//   - [SQLiteStorage]: the default, one row per entry in session_entries
//   - [RedisStorage]: shared storage for several hosts driving one account
//   - [SealedStorage]: wraps any of the above and encrypts values at rest
//
// Storage failures never reach Store callers. A failure is logged and marks the
// store degraded; every later operation still tries storage and the first
// success clears the flag.
package session
