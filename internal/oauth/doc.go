// Package oauth receives the provider login hand-off on a loopback listener.
//
// The backend finishes the OAuth dance and redirects the browser to
// {callback_path}?accessToken=...&refreshToken=... . [CallbackServer] stores
// the pair in the session and reports the outcome once through [Wait]. A
// callback missing either token is refused with [ErrOAuthFailed].
package oauth
