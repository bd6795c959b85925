package auth

// Requirement describes what a gated action needs: a named permission or a
// minimum role. The zero Requirement is always satisfied.
//
// Permission and MinRole are meant to be used one at a time. If both are set,
// the permission check is applied and MinRole is ignored.
type Requirement struct {
	Permission Permission
	MinRole    Role
}

// NeedPermission returns a Requirement for a single permission.
func NeedPermission(p Permission) Requirement {
	return Requirement{Permission: p}
}

// NeedRole returns a Requirement for a minimum role.
func NeedRole(r Role) Requirement {
	return Requirement{MinRole: r}
}

// IsOpen reports whether the requirement imposes nothing.
func (r Requirement) IsOpen() bool {
	return r.Permission == "" && r.MinRole == ""
}

// Can applies the two-tier permission policy to a profile:
// an explicit server list is authoritative, otherwise the catalog defaults of
// the profile's roles decide. A nil profile fails every check.
func Can(p *UserProfile, perm Permission) bool {
	if p == nil {
		return false
	}
	if p.HasExplicitPermissions() {
		return HasPermissionFromAPI(p.Permissions, perm)
	}
	return HasPermission(p.Roles, perm)
}

// Allowed is the composite guard. Permission requirements go through Can,
// role requirements through HasMinimumRole, and an open requirement is
// granted unconditionally.
func Allowed(p *UserProfile, req Requirement) bool {
	switch {
	case req.Permission != "":
		return Can(p, req.Permission)
	case req.MinRole != "":
		if p == nil {
			return false
		}
		return HasMinimumRole(p.Roles, req.MinRole)
	default:
		return true
	}
}

// HasAnyPermission returns true if the profile holds at least one of perms.
// An empty perms list yields false.
func HasAnyPermission(p *UserProfile, perms ...Permission) bool {
	for _, perm := range perms {
		if Can(p, perm) {
			return true
		}
	}
	return false
}

// HasAllPermissions returns true if the profile holds every one of perms.
// An empty perms list yields true.
func HasAllPermissions(p *UserProfile, perms ...Permission) bool {
	for _, perm := range perms {
		if !Can(p, perm) {
			return false
		}
	}
	return true
}

// Filter keeps the items whose requirement the profile satisfies.
// It is the list form of Allowed, used to hide entries a user cannot act on.
func Filter[T any](p *UserProfile, items []T, requirementOf func(T) Requirement) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if Allowed(p, requirementOf(item)) {
			out = append(out, item)
		}
	}
	return out
}
