package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/graylogic/admin-console/internal/auth"
)

// User is a user record as listed by /api/users.
type User struct {
	ID          int64             `json:"id"`
	Username    string            `json:"username"`
	Email       string            `json:"email"`
	AvatarURL   string            `json:"avatarUrl,omitempty"`
	Roles       auth.RoleList     `json:"roles"`
	Permissions []auth.Permission `json:"permissions"`
}

// UserInput creates or updates a user. Password is only sent on create.
// Empty Permissions are sent as null so the backend derives them from roles.
type UserInput struct {
	Username    string            `json:"username"`
	Email       string            `json:"email"`
	Password    string            `json:"password,omitempty"`
	Roles       []auth.Role       `json:"roles"`
	Permissions []auth.Permission `json:"permissions"`
}

func (in UserInput) normalized() UserInput {
	if len(in.Permissions) == 0 {
		in.Permissions = nil
	}
	return in
}

// UserQuery filters the user listing.
type UserQuery struct {
	PageQuery
	Search string
	Role   auth.Role
}

// ListUsers returns one page of users.
func (c *Client) ListUsers(ctx context.Context, q UserQuery) (*Page[User], error) {
	values := q.values()
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.Role != "" {
		values.Set("role", string(q.Role))
	}

	var page Page[User]
	if err := c.do(ctx, http.MethodGet, "/api/users", values, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateUser creates a user.
func (c *Client) CreateUser(ctx context.Context, in UserInput) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPost, "/api/users", nil, in.normalized(), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser replaces a user's details.
func (c *Client) UpdateUser(ctx context.Context, id int64, in UserInput) (*User, error) {
	in.Password = ""
	var user User
	if err := c.do(ctx, http.MethodPut, userPath(id), nil, in.normalized(), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, userPath(id), nil, nil, nil)
}

func userPath(id int64) string {
	return fmt.Sprintf("/api/users/%d", id)
}
