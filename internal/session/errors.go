package session

import "errors"

// Sentinel errors returned by Storage implementations.
// Store methods never return these; they are logged and the store degrades.
var (
	// ErrStorageUnavailable wraps any I/O failure of the backing medium.
	ErrStorageUnavailable = errors.New("session: storage unavailable")

	// ErrEntryCorrupt is returned when a stored value cannot be decoded.
	ErrEntryCorrupt = errors.New("session: stored entry corrupt")

	// ErrInvalidKey is returned by SealedStorage for a key of the wrong size.
	ErrInvalidKey = errors.New("session: encryption key invalid")
)
