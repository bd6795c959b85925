package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/graylogic/admin-console/internal/auth"
	"github.com/graylogic/admin-console/internal/backend"
	"github.com/graylogic/admin-console/internal/guard"
	"github.com/graylogic/admin-console/internal/oauth"
)

// errDenied is returned by `can` when the check fails.
var errDenied = errors.New("denied")

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string, out io.Writer) error
}

var commands = map[string]command{
	"login":       {"sign in with email and password", cmdLogin},
	"oauth":       {"sign in through the OAuth provider in a browser", cmdOAuth},
	"logout":      {"end the session", cmdLogout},
	"status":      {"show the local session state", cmdStatus},
	"me":          {"fetch and print the current profile", cmdMe},
	"can":         {"check a permission or minimum role (exit 2 when denied)", cmdCan},
	"menu":        {"list the admin sections available to you", cmdMenu},
	"users":       {"list|create|update|delete users", cmdUsers},
	"roles":       {"list roles or assign permissions to a role", cmdRoles},
	"permissions": {"list permissions", cmdPermissions},
	"agent":       {"keep the session fresh and serve health and metrics", cmdAgent},
}

var commandOrder = []string{
	"login", "oauth", "logout", "status", "me", "can", "menu",
	"users", "roles", "permissions", "agent",
}

// parseFlags parses a command's flags; -h is not an error.
func parseFlags(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func describeProfile(p *auth.UserProfile) string {
	if p == nil {
		return "unknown user"
	}
	name := p.Username
	if name == "" {
		name = p.Email
	}
	return fmt.Sprintf("%s (%s)", name, auth.RoleLabel(auth.HighestRole(p.Roles)))
}

func cmdLogin(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("login", a.stderr)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if *email == "" || *password == "" {
		return errors.New("login: -email and -password are required")
	}

	profile, err := a.api.LoginAndLoad(ctx, backend.Credentials{Email: *email, Password: *password})
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			return errors.New("login failed: check your email and password")
		}
		return err
	}
	fmt.Fprintf(out, "Signed in as %s\n", describeProfile(profile))
	return nil
}

func cmdOAuth(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("oauth", a.stderr)
	provider := fs.String("provider", a.cfg.OAuth.Provider, "OAuth provider")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	srv, err := oauth.NewCallbackServer(oauth.Config{
		Listen:       a.cfg.OAuth.Listen,
		CallbackPath: a.cfg.OAuth.CallbackPath,
		Store:        a.store,
		Logger:       a.log,
	})
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Close() //nolint:errcheck // Best effort shutdown

	fmt.Fprintf(out, "Open this URL in a browser to sign in:\n  %s\n", a.api.OAuthStartURL(*provider))
	fmt.Fprintf(out, "Waiting for the redirect to %s ...\n", srv.CallbackURL())

	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.GetOAuthTimeout())
	defer cancel()
	if err := srv.Wait(waitCtx); err != nil {
		return fmt.Errorf("oauth: %w", err)
	}

	d, err := a.guard.Resolve(ctx, guard.AreaUser)
	if err != nil {
		return err
	}
	if d.Outcome != guard.Allow {
		return fmt.Errorf("oauth: profile could not be loaded: %v", d.Cause)
	}
	fmt.Fprintf(out, "Signed in as %s\n", describeProfile(d.Profile))
	return nil
}

func cmdLogout(_ context.Context, a *app, _ []string, out io.Writer) error {
	a.api.Logout()
	fmt.Fprintln(out, "Signed out")
	return nil
}

func cmdStatus(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("status", a.stderr)
	asJSON := fs.Bool("json", false, "print JSON")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	snap := a.store.Snapshot()
	status := struct {
		Authenticated bool        `json:"authenticated"`
		Initialized   bool        `json:"initialized"`
		Degraded      bool        `json:"storageDegraded"`
		Username      string      `json:"username,omitempty"`
		Roles         []auth.Role `json:"roles,omitempty"`
		ExpiresAt     *time.Time  `json:"accessTokenExpiresAt,omitempty"`
		Expired       bool        `json:"accessTokenExpired"`
		Storage       string      `json:"storage"`
		SchemaVersion string      `json:"schemaVersion,omitempty"`
	}{
		Storage:       a.cfg.Storage.Driver,
		Authenticated: snap.IsAuthenticated,
		Initialized:   snap.IsInitialized,
		Degraded:      a.store.Degraded(),
	}
	if snap.Profile != nil {
		status.Username = snap.Profile.Username
		status.Roles = snap.Profile.Roles
	}
	schema, err := a.schemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	status.SchemaVersion = schema

	if snap.AccessToken != "" {
		if info, err := auth.InspectToken(snap.AccessToken); err == nil && !info.ExpiresAt.IsZero() {
			exp := info.ExpiresAt.UTC()
			status.ExpiresAt = &exp
			status.Expired = info.Expired(time.Now())
		}
	}

	if *asJSON {
		return printJSON(out, status)
	}
	if status.SchemaVersion != "" {
		fmt.Fprintf(out, "Storage: %s (schema %s)\n", status.Storage, status.SchemaVersion)
	} else {
		fmt.Fprintf(out, "Storage: %s\n", status.Storage)
	}
	if !status.Authenticated {
		fmt.Fprintln(out, "Not signed in")
		return nil
	}
	fmt.Fprintf(out, "Signed in as %s\n", describeProfile(snap.Profile))
	if status.ExpiresAt != nil {
		state := "valid"
		if status.Expired {
			state = "expired, refreshed on next request"
		}
		fmt.Fprintf(out, "Access token expires %s (%s)\n", status.ExpiresAt.Format(time.RFC3339), state)
	}
	if status.Degraded {
		fmt.Fprintln(out, "Warning: session storage unavailable, session is not persisted")
	}
	return nil
}

// resolve enters an area and turns redirects into errors.
func resolve(ctx context.Context, a *app, area guard.Area) (*auth.UserProfile, error) {
	d, err := a.guard.Resolve(ctx, area)
	if err != nil {
		return nil, err
	}
	switch d.Outcome {
	case guard.RedirectLogin:
		if d.Cause != nil {
			return nil, fmt.Errorf("not signed in: %w", d.Cause)
		}
		return nil, errors.New("not signed in: run `console login`")
	case guard.RedirectHome:
		return nil, fmt.Errorf("%s area requires %s or above", area, auth.RoleLabel(auth.RoleStaff))
	}
	return d.Profile, nil
}

func cmdMe(ctx context.Context, a *app, _ []string, out io.Writer) error {
	profile, err := resolve(ctx, a, guard.AreaUser)
	if err != nil {
		return err
	}
	return printJSON(out, profile)
}

func cmdCan(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := newFlagSet("can", a.stderr)
	perm := fs.String("permission", "", "permission, e.g. user:delete")
	role := fs.String("role", "", "minimum role, e.g. ROLE_MANAGER")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if (*perm == "") == (*role == "") {
		return errors.New("can: exactly one of -permission or -role is required")
	}

	if a.store.Profile() == nil {
		if _, err := resolve(ctx, a, guard.AreaUser); err != nil {
			return err
		}
	}

	req := auth.NeedRole(auth.Role(*role))
	subject := *role
	if *perm != "" {
		req = auth.NeedPermission(auth.Permission(*perm))
		subject = *perm
	}

	if !a.store.Allowed(req) {
		fmt.Fprintf(out, "denied: %s\n", subject)
		return errDenied
	}
	fmt.Fprintf(out, "allowed: %s\n", subject)
	return nil
}

func cmdMenu(ctx context.Context, a *app, _ []string, out io.Writer) error {
	profile, err := resolve(ctx, a, guard.AreaAdmin)
	if err != nil {
		return err
	}
	for _, item := range guard.FilterMenu(profile, guard.DefaultAdminMenu()) {
		fmt.Fprintf(out, "%-12s %s\n", item.Name, item.Path)
	}
	return nil
}

func cmdUsers(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("users: expected list, create, update or delete")
	}
	sub, args := args[0], args[1:]

	fs := newFlagSet("users "+sub, a.stderr)
	switch sub {
	case "list":
		page := fs.Int("page", 0, "page number, from 0")
		size := fs.Int("size", 20, "page size")
		search := fs.String("search", "", "search text")
		role := fs.String("role", "", "role filter")
		if ok, err := parseFlags(fs, args); !ok {
			return err
		}
		result, err := a.api.ListUsers(ctx, backend.UserQuery{
			PageQuery: backend.PageQuery{Page: *page, Size: *size},
			Search:    *search,
			Role:      auth.Role(*role),
		})
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tROLES")
		for _, u := range result.Content {
			roles := make([]string, len(u.Roles))
			for i, r := range u.Roles {
				roles[i] = string(r)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, strings.Join(roles, ","))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "page %d/%d, %d users\n", result.Number+1, max(result.TotalPages, 1), result.TotalElements)
		return nil

	case "create", "update":
		id := fs.Int64("id", 0, "user id (update)")
		username := fs.String("username", "", "username")
		email := fs.String("email", "", "email")
		password := fs.String("password", "", "password (create)")
		roles := fs.String("roles", string(auth.RoleUser), "comma separated roles")
		perms := fs.String("permissions", "", "comma separated explicit permissions")
		if ok, err := parseFlags(fs, args); !ok {
			return err
		}
		if !a.store.Can(auth.PermUserCreate) && sub == "create" {
			return fmt.Errorf("users create: %w: requires %s", errDenied, auth.PermUserCreate)
		}
		if !a.store.Can(auth.PermUserUpdate) && sub == "update" {
			return fmt.Errorf("users update: %w: requires %s", errDenied, auth.PermUserUpdate)
		}

		in := backend.UserInput{Username: *username, Email: *email, Password: *password}
		for _, r := range splitList(*roles) {
			in.Roles = append(in.Roles, auth.Role(r))
		}
		for _, p := range splitList(*perms) {
			in.Permissions = append(in.Permissions, auth.Permission(p))
		}

		var (
			user *backend.User
			err  error
		)
		if sub == "create" {
			user, err = a.api.CreateUser(ctx, in)
		} else {
			if *id == 0 {
				return errors.New("users update: -id is required")
			}
			user, err = a.api.UpdateUser(ctx, *id, in)
		}
		if err != nil {
			return err
		}
		return printJSON(out, user)

	case "delete":
		id := fs.Int64("id", 0, "user id")
		if ok, err := parseFlags(fs, args); !ok {
			return err
		}
		if *id == 0 {
			return errors.New("users delete: -id is required")
		}
		if !a.store.Can(auth.PermUserDelete) {
			return fmt.Errorf("users delete: %w: requires %s", errDenied, auth.PermUserDelete)
		}
		if err := a.api.DeleteUser(ctx, *id); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted user %d\n", *id)
		return nil
	}
	return fmt.Errorf("users: unknown subcommand %q", sub)
}

func cmdRoles(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("roles: expected list or assign")
	}
	sub, args := args[0], args[1:]

	fs := newFlagSet("roles "+sub, a.stderr)
	switch sub {
	case "list":
		if ok, err := parseFlags(fs, args); !ok {
			return err
		}
		roles, err := a.api.AllRoles(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION\tPERMISSIONS")
		for _, r := range roles {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", r.ID, r.Name, r.Description, len(r.Permissions))
		}
		return tw.Flush()

	case "assign":
		id := fs.Int64("id", 0, "role id")
		perms := fs.String("permissions", "", "comma separated permissions (replaces the set)")
		if ok, err := parseFlags(fs, args); !ok {
			return err
		}
		if *id == 0 {
			return errors.New("roles assign: -id is required")
		}
		if !a.store.Can(auth.PermRoleManage) {
			return fmt.Errorf("roles assign: %w: requires %s", errDenied, auth.PermRoleManage)
		}
		list := splitList(*perms)
		if err := a.api.AssignPermissions(ctx, *id, list); err != nil {
			return err
		}
		fmt.Fprintf(out, "role %d now has %d permissions\n", *id, len(list))
		return nil
	}
	return fmt.Errorf("roles: unknown subcommand %q", sub)
}

func cmdPermissions(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) > 0 && args[0] == "list" {
		args = args[1:]
	}
	fs := newFlagSet("permissions", a.stderr)
	category := fs.String("category", "", "category filter")
	page := fs.Int("page", 0, "page number, from 0")
	size := fs.Int("size", 50, "page size")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	result, err := a.api.ListPermissions(ctx, backend.PageQuery{Page: *page, Size: *size}, *category)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tDESCRIPTION")
	for _, p := range result.Content {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, p.Description)
	}
	return tw.Flush()
}
