package transport

import "errors"

var (
	// ErrSessionExpired is returned when a 401 could not be recovered by
	// refreshing. It wraps the refresh failure.
	ErrSessionExpired = errors.New("transport: session expired")

	// ErrNoRefreshToken is the refresh failure when the store holds no
	// refresh token.
	ErrNoRefreshToken = errors.New("transport: no refresh token")

	// ErrRefreshRejected is the refresh failure when the refresh endpoint
	// answers with a non-2xx status or an unusable body.
	ErrRefreshRejected = errors.New("transport: refresh rejected")

	// ErrBodyNotReplayable is returned when a request body cannot be
	// buffered for a possible resend.
	ErrBodyNotReplayable = errors.New("transport: request body not replayable")
)
