package backend

import (
	"context"
	"fmt"
	"net/http"
)

// Permission is a permission record managed under /api/permissions.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// PermissionInput creates or updates a permission.
type PermissionInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ListPermissions returns one page of permissions, optionally in one category.
func (c *Client) ListPermissions(ctx context.Context, q PageQuery, category string) (*Page[Permission], error) {
	values := q.values()
	if category != "" {
		values.Set("category", category)
	}

	var page Page[Permission]
	if err := c.do(ctx, http.MethodGet, "/api/permissions", values, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AllPermissions returns every permission without paging.
func (c *Client) AllPermissions(ctx context.Context) ([]Permission, error) {
	var perms []Permission
	if err := c.do(ctx, http.MethodGet, "/api/permissions/all", nil, nil, &perms); err != nil {
		return nil, err
	}
	return perms, nil
}

// PermissionCategories lists the category names.
func (c *Client) PermissionCategories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := c.do(ctx, http.MethodGet, "/api/permissions/categories", nil, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// GetPermission fetches one permission.
func (c *Client) GetPermission(ctx context.Context, id int64) (*Permission, error) {
	var perm Permission
	if err := c.do(ctx, http.MethodGet, permissionPath(id), nil, nil, &perm); err != nil {
		return nil, err
	}
	return &perm, nil
}

// CreatePermission creates a permission.
func (c *Client) CreatePermission(ctx context.Context, in PermissionInput) (*Permission, error) {
	var perm Permission
	if err := c.do(ctx, http.MethodPost, "/api/permissions", nil, in, &perm); err != nil {
		return nil, err
	}
	return &perm, nil
}

// UpdatePermission replaces a permission.
func (c *Client) UpdatePermission(ctx context.Context, id int64, in PermissionInput) (*Permission, error) {
	var perm Permission
	if err := c.do(ctx, http.MethodPut, permissionPath(id), nil, in, &perm); err != nil {
		return nil, err
	}
	return &perm, nil
}

// DeletePermission removes a permission.
func (c *Client) DeletePermission(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, permissionPath(id), nil, nil, nil)
}

func permissionPath(id int64) string {
	return fmt.Sprintf("/api/permissions/%d", id)
}
