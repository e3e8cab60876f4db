package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

const usersPath = "/api/User"

// User is an admin account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// NewUser is the body for CreateUser.
type NewUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName,omitempty"`
	Role     string `json:"role,omitempty"`
}

// UserUpdate is the body for UpdateUser.
type UserUpdate struct {
	FullName string `json:"fullName,omitempty"`
	Role     string `json:"role,omitempty"`
}

// ListUsers searches users by q, 10 per page by default.
func (c *Client) ListUsers(ctx context.Context, q string, page, pageSize int) (*Page[User], error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	v := url.Values{}
	if q != "" {
		v.Set("q", q)
	}
	setPaging(v, page, pageSize)
	return list[User](ctx, c, usersPath, v, page, pageSize)
}

// CreateUser adds an account and returns it without the password.
func (c *Client) CreateUser(ctx context.Context, u NewUser) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodPost, usersPath, nil, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUser changes the name or role of user id; empty fields are left as they are.
func (c *Client) UpdateUser(ctx context.Context, id string, u UserUpdate) (*User, error) {
	path, err := userPath(id)
	if err != nil {
		return nil, err
	}
	var out User
	if err := c.do(ctx, http.MethodPut, path, nil, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUser removes user id.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	path, err := userPath(id)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// userPath validates id before it reaches the URL.
func userPath(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("invalid user id %q: %w", id, err)
	}
	return usersPath + "/" + u.String(), nil
}
