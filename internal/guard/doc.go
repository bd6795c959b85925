// Package guard decides whether the console may enter a protected area and
// which admin menu entries a profile sees.
//
// [Guard.Resolve] runs the entry sequence: hydrate the session if needed,
// send unauthenticated sessions to login, fetch the profile, and gate the
// admin area on rank. [FilterMenu] applies the menu visibility rule, which is
// stricter than the general decision engine: a permission-gated entry is only
// shown through an explicit permissions list, never through role defaults.
package guard
