package auth

// Permission is an opaque "resource:action" capability name.
type Permission string

// Permission constants.
const (
	PermUserRead   Permission = "user:read"
	PermUserCreate Permission = "user:create"
	PermUserUpdate Permission = "user:update"
	PermUserDelete Permission = "user:delete"

	PermReportRead   Permission = "report:read"
	PermReportCreate Permission = "report:create"
	PermReportUpdate Permission = "report:update"
	PermReportDelete Permission = "report:delete"
	PermReportExport Permission = "report:export"

	PermOrderRead    Permission = "order:read"
	PermOrderCreate  Permission = "order:create"
	PermOrderUpdate  Permission = "order:update"
	PermOrderDelete  Permission = "order:delete"
	PermOrderApprove Permission = "order:approve"

	PermAuditRead    Permission = "audit:read"
	PermSystemConfig Permission = "system:config"
	PermRoleManage   Permission = "role:manage"
)

// rolePermissions maps each role to its default permissions.
// This is the single source of truth for role-derived permissions and is
// never mutated at runtime.
var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermUserRead, PermUserCreate, PermUserUpdate, PermUserDelete,
		PermReportRead, PermReportCreate, PermReportUpdate, PermReportDelete, PermReportExport,
		PermOrderRead, PermOrderCreate, PermOrderUpdate, PermOrderDelete, PermOrderApprove,
		PermAuditRead, PermSystemConfig, PermRoleManage,
	},
	RoleManager: {
		PermUserRead, PermUserCreate, PermUserUpdate,
		PermReportRead, PermReportCreate, PermReportUpdate, PermReportExport,
		PermOrderRead, PermOrderCreate, PermOrderUpdate, PermOrderApprove,
	},
	RoleStaff: {
		PermUserRead,
		PermReportRead, PermReportCreate,
		PermOrderRead, PermOrderCreate,
	},
	RoleUser: {
		PermUserRead,
	},
}

// roleHas returns true if a single role carries the permission in the catalog.
func roleHas(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// HasPermission returns true if any of the roles carries the permission in
// the catalog. Unknown roles carry nothing.
func HasPermission(roles RoleList, perm Permission) bool {
	for _, r := range roles {
		if roleHas(r, perm) {
			return true
		}
	}
	return false
}

// HasPermissionFromAPI returns true if the server-supplied list contains the
// permission. A nil list yields false.
func HasPermissionFromAPI(apiPermissions []Permission, perm Permission) bool {
	for _, p := range apiPermissions {
		if p == perm {
			return true
		}
	}
	return false
}

// HasMinimumRole returns true if any of the roles ranks at or above the
// minimum. An unknown minimum is never satisfied.
func HasMinimumRole(roles RoleList, minimum Role) bool {
	need, ok := roleRanks[minimum]
	if !ok {
		return false
	}
	for _, r := range roles {
		if rank, known := roleRanks[r]; known && rank >= need {
			return true
		}
	}
	return false
}

// PermissionsForRole returns a copy of the default permissions of a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}
