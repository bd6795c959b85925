package auth

import "testing"

func TestHasPermission_Admin(t *testing.T) {
	// Admin carries the whole catalog
	all := []Permission{
		PermUserRead, PermUserCreate, PermUserUpdate, PermUserDelete,
		PermReportRead, PermReportCreate, PermReportUpdate, PermReportDelete, PermReportExport,
		PermOrderRead, PermOrderCreate, PermOrderUpdate, PermOrderDelete, PermOrderApprove,
		PermAuditRead, PermSystemConfig, PermRoleManage,
	}

	for _, perm := range all {
		if !HasPermission(Roles("ROLE_ADMIN"), perm) {
			t.Errorf("admin should have %s", perm)
		}
	}
}

func TestHasPermission_Manager(t *testing.T) {
	should := []Permission{
		PermUserRead, PermUserCreate, PermUserUpdate,
		PermReportRead, PermReportCreate, PermReportUpdate, PermReportExport,
		PermOrderRead, PermOrderCreate, PermOrderUpdate, PermOrderApprove,
	}
	shouldNot := []Permission{
		PermUserDelete, PermReportDelete, PermOrderDelete,
		PermAuditRead, PermSystemConfig, PermRoleManage,
	}

	for _, perm := range should {
		if !HasPermission(RoleList{RoleManager}, perm) {
			t.Errorf("manager should have %s", perm)
		}
	}
	for _, perm := range shouldNot {
		if HasPermission(RoleList{RoleManager}, perm) {
			t.Errorf("manager should NOT have %s", perm)
		}
	}
}

func TestHasPermission_StaffAndUser(t *testing.T) {
	staff := []Permission{PermUserRead, PermReportRead, PermReportCreate, PermOrderRead, PermOrderCreate}
	for _, perm := range staff {
		if !HasPermission(RoleList{RoleStaff}, perm) {
			t.Errorf("staff should have %s", perm)
		}
	}
	if HasPermission(RoleList{RoleStaff}, PermOrderApprove) {
		t.Error("staff should NOT have order:approve")
	}

	if !HasPermission(RoleList{RoleUser}, PermUserRead) {
		t.Error("user should have user:read")
	}
	if HasPermission(RoleList{RoleUser}, PermReportRead) {
		t.Error("user should NOT have report:read")
	}
}

func TestHasPermission_AnyRoleGrants(t *testing.T) {
	roles := RoleList{RoleUser, RoleStaff}
	if !HasPermission(roles, PermOrderCreate) {
		t.Error("order:create should be granted through ROLE_STAFF")
	}
}

func TestHasPermission_UnknownAndEmpty(t *testing.T) {
	if HasPermission(RoleList{Role("ROLE_GUEST")}, PermUserRead) {
		t.Error("unknown role should have no permissions")
	}
	if HasPermission(nil, PermUserRead) {
		t.Error("nil roles should have no permissions")
	}
	if HasPermission(RoleList{RoleAdmin}, Permission("invoice:read")) {
		t.Error("permission outside the catalog should never be granted by role")
	}
}

func TestHasPermissionFromAPI(t *testing.T) {
	tests := []struct {
		name string
		list []Permission
		perm Permission
		want bool
	}{
		{"nil list", nil, PermUserRead, false},
		{"empty list", []Permission{}, PermUserRead, false},
		{"member", []Permission{"user:read", "order:read"}, PermOrderRead, true},
		{"not a member", []Permission{"user:read"}, PermUserDelete, false},
		{"non-catalog member", []Permission{"invoice:read"}, Permission("invoice:read"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasPermissionFromAPI(tt.list, tt.perm); got != tt.want {
				t.Errorf("HasPermissionFromAPI() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasMinimumRole(t *testing.T) {
	known := KnownRoles()

	// Property: granted iff max(rank(roles)) >= rank(minimum)
	for _, have := range known {
		for _, need := range known {
			haveRank, _ := Rank(have)
			needRank, _ := Rank(need)
			want := haveRank >= needRank
			if got := HasMinimumRole(RoleList{have}, need); got != want {
				t.Errorf("HasMinimumRole([%s], %s) = %v, want %v", have, need, got, want)
			}
		}
	}

	if !HasMinimumRole(RoleList{RoleUser, RoleManager}, RoleStaff) {
		t.Error("any role meeting the rank should satisfy the check")
	}
	if HasMinimumRole(nil, RoleUser) {
		t.Error("nil roles should fail every minimum-role check")
	}
	if HasMinimumRole(RoleList{Role("ROLE_GUEST")}, RoleUser) {
		t.Error("unknown role should not satisfy ROLE_USER")
	}
	if HasMinimumRole(RoleList{RoleAdmin}, Role("ROLE_ROOT")) {
		t.Error("unknown minimum role should never be satisfied")
	}
}

func TestPermissionsForRole(t *testing.T) {
	perms := PermissionsForRole(RoleUser)
	if len(perms) != 1 || perms[0] != PermUserRead {
		t.Fatalf("PermissionsForRole(ROLE_USER) = %v", perms)
	}

	// Mutating the copy must not touch the catalog
	perms[0] = PermSystemConfig
	if HasPermission(RoleList{RoleUser}, PermSystemConfig) {
		t.Error("catalog was mutated through PermissionsForRole result")
	}

	if PermissionsForRole(Role("ROLE_GUEST")) != nil {
		t.Error("unknown role should return nil")
	}
}
