package guard

import (
	"context"
	"fmt"

	"github.com/graylogic/admin-console/internal/auth"
)

// Area is a protected section of the console.
type Area int

const (
	// AreaUser is open to every authenticated session.
	AreaUser Area = iota
	// AreaAdmin requires ROLE_STAFF or above.
	AreaAdmin
)

// String implements fmt.Stringer.
func (a Area) String() string {
	if a == AreaAdmin {
		return "admin"
	}
	return "user"
}

// Outcome is what the caller should do next.
type Outcome int

const (
	// Allow enters the area.
	Allow Outcome = iota
	// RedirectLogin sends the user to the login entry point.
	RedirectLogin
	// RedirectHome sends the user to the non-admin home.
	RedirectHome
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Layout is the shell an allowed area renders in.
type Layout int

const (
	LayoutNone Layout = iota
	LayoutUser
	LayoutAdmin
)

// String implements fmt.Stringer.
func (l Layout) String() string {
	switch l {
	case LayoutUser:
		return "user"
	case LayoutAdmin:
		return "admin"
	default:
		return "none"
	}
}

// Decision is the result of Resolve.
type Decision struct {
	Outcome Outcome
	Layout  Layout
	Profile *auth.UserProfile

	// Cause is set when the profile fetch failed and the session was ended.
	Cause error
}

// Store is the part of session.Store the guard uses.
type Store interface {
	IsInitialized() bool
	InitializeAuth()
	IsAuthenticated() bool
	SetUserProfile(p *auth.UserProfile)
	Logout()
}

// ProfileSource fetches the current user's profile, normally backend.Client.
type ProfileSource interface {
	Me(ctx context.Context) (*auth.UserProfile, error)
}

// Logger is the logging surface the guard needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

// Guard resolves entry into protected areas.
type Guard struct {
	store   Store
	profile ProfileSource
	logger  Logger
}

// New creates a Guard.
func New(store Store, profile ProfileSource) *Guard {
	return &Guard{store: store, profile: profile, logger: nopLogger{}}
}

// SetLogger sets the logger. Nil restores the silent default.
func (g *Guard) SetLogger(logger Logger) {
	if logger == nil {
		logger = nopLogger{}
	}
	g.logger = logger
}

// Resolve decides entry into an area.
//
// The returned error is non-nil only when ctx ended during the profile
// fetch; the session is left untouched in that case. Every other failure is
// expressed as a Decision.
func (g *Guard) Resolve(ctx context.Context, area Area) (Decision, error) {
	if !g.store.IsInitialized() {
		g.store.InitializeAuth()
	}
	if !g.store.IsAuthenticated() {
		return Decision{Outcome: RedirectLogin}, nil
	}

	profile, err := g.profile.Me(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Decision{}, ctx.Err()
		}
		g.logger.Warn("profile fetch failed, ending session", "area", area.String(), "error", err)
		g.store.Logout()
		return Decision{Outcome: RedirectLogin, Cause: err}, nil
	}
	g.store.SetUserProfile(profile)

	admin := HasAdminAccess(profile)
	if area == AreaAdmin && !admin {
		g.logger.Debug("admin area refused", "username", profile.Username)
		return Decision{Outcome: RedirectHome, Layout: LayoutUser, Profile: profile}, nil
	}

	layout := LayoutUser
	if admin {
		layout = LayoutAdmin
	}
	return Decision{Outcome: Allow, Layout: layout, Profile: profile}, nil
}

// HasAdminAccess reports whether a profile may use the admin console:
// ROLE_STAFF or above.
func HasAdminAccess(p *auth.UserProfile) bool {
	return p != nil && auth.HasMinimumRole(p.Roles, auth.RoleStaff)
}
