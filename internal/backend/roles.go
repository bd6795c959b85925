package backend

import (
	"context"
	"fmt"
	"net/http"
)

// Role is a role record managed under /api/roles.
type Role struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions,omitempty"`
}

// RoleInput creates or updates a role.
type RoleInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// ListRoles returns one page of roles.
func (c *Client) ListRoles(ctx context.Context, q PageQuery) (*Page[Role], error) {
	var page Page[Role]
	if err := c.do(ctx, http.MethodGet, "/api/roles", q.values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AllRoles returns every role without paging.
func (c *Client) AllRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := c.do(ctx, http.MethodGet, "/api/roles/all", nil, nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches one role.
func (c *Client) GetRole(ctx context.Context, id int64) (*Role, error) {
	var role Role
	if err := c.do(ctx, http.MethodGet, rolePath(id), nil, nil, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// CreateRole creates a role.
func (c *Client) CreateRole(ctx context.Context, in RoleInput) (*Role, error) {
	var role Role
	if err := c.do(ctx, http.MethodPost, "/api/roles", nil, in, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// UpdateRole replaces a role.
func (c *Client) UpdateRole(ctx context.Context, id int64, in RoleInput) (*Role, error) {
	var role Role
	if err := c.do(ctx, http.MethodPut, rolePath(id), nil, in, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// DeleteRole removes a role.
func (c *Client) DeleteRole(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, rolePath(id), nil, nil, nil)
}

// AssignPermissions replaces the permission set of a role.
func (c *Client) AssignPermissions(ctx context.Context, roleID int64, permissions []string) error {
	if permissions == nil {
		permissions = []string{}
	}
	body := map[string][]string{"permissions": permissions}
	return c.do(ctx, http.MethodPost, rolePath(roleID)+"/permissions", nil, body, nil)
}

func rolePath(id int64) string {
	return fmt.Sprintf("/api/roles/%d", id)
}
