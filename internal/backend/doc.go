// Package backend is the console's REST client for the admin API.
//
// Every call goes through the *http.Client it is given, which in production
// is the refresh-aware client from package transport. Login, Register and
// Refresh are sent with transport.NoRefresh: a 401 on those endpoints means
// bad credentials or a dead refresh token, not an expired session.
//
// Non-2xx responses become [*APIError]. Callers match status classes with
// errors.Is against [ErrUnauthorized], [ErrForbidden] and [ErrNotFound].
package backend
