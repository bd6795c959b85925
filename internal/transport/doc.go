// Package transport makes the session's access token transparent to every
// outbound backend call.
//
// [Interceptor] is an http.RoundTripper. Before dispatch it attaches the
// current access token as a Bearer credential and an X-Request-ID. When the
// backend answers 401 it runs the refresh protocol:
//
//	NORMAL --401, not yet retried--> REFRESHING
//	REFRESHING --refresh ok--> store new pair, resend once --> NORMAL
//	REFRESHING --refresh failed--> logout, redirect to login --> FAILED
//
// A request is retried at most once. The resent request's response is
// returned as-is, even if it is another 401. On failure the caller receives
// ErrSessionExpired wrapping the refresh error, never the original 401.
//
// Concurrent 401s that share a refresh token are coalesced into a single
// refresh call when Config.Coalesce is set; logout and navigation then happen
// once per failed refresh.
package transport
