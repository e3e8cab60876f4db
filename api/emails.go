package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const emailsPath = "/api/EmailThongBao"

// NotificationEmail is an address that receives HR notifications.
type NotificationEmail struct {
	ID    int    `json:"id,omitempty"`
	Email string `json:"email"`
}

func (c *Client) ListEmails(ctx context.Context, email string, page, pageSize int) (*Page[NotificationEmail], error) {
	q := url.Values{}
	if email != "" {
		q.Set("email", email)
	}
	setPaging(q, page, pageSize)
	return list[NotificationEmail](ctx, c, emailsPath, q, page, pageSize)
}

func (c *Client) CreateEmail(ctx context.Context, email string) (*NotificationEmail, error) {
	var out NotificationEmail
	if err := c.do(ctx, http.MethodPost, emailsPath, nil, NotificationEmail{Email: email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateEmail(ctx context.Context, e NotificationEmail) (*NotificationEmail, error) {
	var out NotificationEmail
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("%s/%d", emailsPath, e.ID), nil, e, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteEmail(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", emailsPath, id), nil, nil, nil)
}
