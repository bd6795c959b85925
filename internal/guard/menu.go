package guard

import "github.com/graylogic/admin-console/internal/auth"

// MenuItem is one admin navigation entry.
type MenuItem struct {
	Name        string
	Path        string
	Requirement auth.Requirement
}

// DefaultAdminMenu returns the admin navigation in display order.
func DefaultAdminMenu() []MenuItem {
	return []MenuItem{
		{Name: "Dashboard", Path: "/admin/dashboard"},
		{Name: "Users", Path: "/admin/users", Requirement: auth.NeedPermission(auth.PermUserCreate)},
		{Name: "Orders", Path: "/admin/orders", Requirement: auth.NeedPermission(auth.PermOrderRead)},
		{Name: "Roles", Path: "/admin/roles", Requirement: auth.NeedPermission(auth.PermRoleManage)},
		{Name: "Permissions", Path: "/admin/permissions", Requirement: auth.NeedPermission(auth.PermRoleManage)},
		{Name: "Settings", Path: "/admin/settings", Requirement: auth.NeedPermission(auth.PermSystemConfig)},
	}
}

// FilterMenu returns the entries visible to a profile, preserving order.
//
// ROLE_ADMIN sees everything. A permission-gated entry is visible only when
// the profile carries an explicit permissions list containing it. A
// role-gated entry uses the rank hierarchy.
func FilterMenu(p *auth.UserProfile, items []MenuItem) []MenuItem {
	var roles auth.RoleList
	if p != nil {
		roles = p.Roles
	}
	admin := roles.Contains(auth.RoleAdmin)

	out := make([]MenuItem, 0, len(items))
	for _, item := range items {
		if admin || menuVisible(p, roles, item.Requirement) {
			out = append(out, item)
		}
	}
	return out
}

func menuVisible(p *auth.UserProfile, roles auth.RoleList, req auth.Requirement) bool {
	switch {
	case req.IsOpen():
		return true
	case req.Permission != "":
		if !p.HasExplicitPermissions() {
			return false
		}
		return auth.HasPermissionFromAPI(p.Permissions, req.Permission)
	default:
		return auth.HasMinimumRole(roles, req.MinRole)
	}
}
