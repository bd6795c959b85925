package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Role identifies an authorisation tier as asserted by the backend.
type Role string

const (
	// RoleAdmin has every permission in the catalog.
	RoleAdmin Role = "ROLE_ADMIN"

	// RoleManager manages users, reports and orders but cannot delete users
	// or change system configuration.
	RoleManager Role = "ROLE_MANAGER"

	// RoleStaff reads and creates reports and orders.
	RoleStaff Role = "ROLE_STAFF"

	// RoleUser is the lowest tier: read-only access to user records.
	RoleUser Role = "ROLE_USER"
)

// roleRanks maps each role to its hierarchy rank. Higher outranks lower.
// Unknown roles have no entry and never satisfy a rank comparison.
var roleRanks = map[Role]int{
	RoleAdmin:   4,
	RoleManager: 3,
	RoleStaff:   2,
	RoleUser:    1,
}

// roleLabels are display names used by the console.
var roleLabels = map[Role]string{
	RoleAdmin:   "Administrator",
	RoleManager: "Manager",
	RoleStaff:   "Staff",
	RoleUser:    "User",
}

// Rank returns the hierarchy rank of a role and whether the role is known.
func Rank(r Role) (int, bool) {
	rank, ok := roleRanks[r]
	return rank, ok
}

// IsKnownRole returns true if the role is part of the catalog.
func IsKnownRole(r Role) bool {
	_, ok := roleRanks[r]
	return ok
}

// KnownRoles returns every catalog role, highest rank first.
func KnownRoles() []Role {
	roles := make([]Role, 0, len(roleRanks))
	for r := range roleRanks {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool {
		return roleRanks[roles[i]] > roleRanks[roles[j]]
	})
	return roles
}

// RoleLabel returns the display name for a role, or the raw identifier when
// the role is not in the catalog.
func RoleLabel(r Role) string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return string(r)
}

// HighestRole returns the highest-ranked known role in the list.
// It returns RoleUser when the list holds no known role.
func HighestRole(roles RoleList) Role {
	highest := RoleUser
	for _, r := range roles {
		if rank, ok := roleRanks[r]; ok && rank > roleRanks[highest] {
			highest = r
		}
	}
	return highest
}

// RoleList is the canonical, always-a-list form of a user's roles.
//
// The backend sends roles either as a bare string or as an array. RoleList
// decodes both, so callers never branch on the shape.
type RoleList []Role

// UnmarshalJSON accepts a string, an array of strings, or null.
func (rl *RoleList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*rl = nil
			return nil
		}
		*rl = RoleList{Role(single)}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("decoding roles: %w", err)
	}
	if many == nil {
		*rl = nil
		return nil
	}
	out := make(RoleList, 0, len(many))
	for _, r := range many {
		if r != "" {
			out = append(out, Role(r))
		}
	}
	*rl = out
	return nil
}

// Contains reports whether the list holds the given role.
func (rl RoleList) Contains(r Role) bool {
	for _, have := range rl {
		if have == r {
			return true
		}
	}
	return false
}

// Roles builds a RoleList from raw identifiers, dropping empty strings.
func Roles(ids ...string) RoleList {
	out := make(RoleList, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, Role(id))
		}
	}
	return out
}

// UserProfile is the identity and authorisation snapshot returned by
// GET /api/auth/me.
//
// Permissions distinguishes "absent" (nil) from "present but empty": only a
// nil list falls back to role-derived permissions.
type UserProfile struct {
	ID          *int64       `json:"id,omitempty"`
	Email       string       `json:"email"`
	Username    string       `json:"username"`
	Roles       RoleList     `json:"roles"`
	Permissions []Permission `json:"permissions"`
	AvatarURL   string       `json:"avatarUrl,omitempty"`
}

// UnmarshalJSON decodes a profile, accepting "userName" as an alias for
// "username".
func (p *UserProfile) UnmarshalJSON(data []byte) error {
	type plain UserProfile
	var aux struct {
		plain
		UserName string `json:"userName"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = UserProfile(aux.plain)
	if p.Username == "" {
		p.Username = aux.UserName
	}
	return nil
}

// HasExplicitPermissions reports whether the server supplied a permissions
// list for this profile.
func (p *UserProfile) HasExplicitPermissions() bool {
	return p != nil && p.Permissions != nil
}

// Clone returns a deep copy so callers cannot mutate a stored profile.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	if p.ID != nil {
		id := *p.ID
		c.ID = &id
	}
	if p.Roles != nil {
		c.Roles = append(RoleList(nil), p.Roles...)
	}
	if p.Permissions != nil {
		c.Permissions = append(make([]Permission, 0, len(p.Permissions)), p.Permissions...)
	}
	return &c
}

// Sentinel errors for token inspection.
var (
	ErrTokenMalformed = errors.New("token is malformed")
)
