package api

import (
	"context"
	"net/url"
	"strconv"
)

const notificationsPath = "/api/ThongBao"

// Notification is a sent notification.
type Notification struct {
	ID          int    `json:"id"`
	NhanVienID  *int   `json:"nhanVienId,omitempty"`
	EmailNhan   string `json:"emailNhan,omitempty"`
	NgayGui     string `json:"ngayGui"`
	LyDo        string `json:"lyDo,omitempty"`
	TenNhanVien string `json:"tenNhanVien,omitempty"`
}

// NotificationFilter narrows ListNotifications. From and To are dates as the
// server accepts them (yyyy-mm-dd).
type NotificationFilter struct {
	EmployeeID *int
	Email      string
	From       string
	To         string
	Page       int
	PageSize   int
}

// ListNotifications returns sent notifications, 20 per page by default.
func (c *Client) ListNotifications(ctx context.Context, f NotificationFilter) (*Page[Notification], error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}

	q := url.Values{}
	if f.EmployeeID != nil {
		q.Set("nhanVienId", strconv.Itoa(*f.EmployeeID))
	}
	if f.Email != "" {
		q.Set("emailNhan", f.Email)
	}
	if f.From != "" {
		q.Set("from", f.From)
	}
	if f.To != "" {
		q.Set("to", f.To)
	}
	setPaging(q, f.Page, f.PageSize)
	return list[Notification](ctx, c, notificationsPath, q, f.Page, f.PageSize)
}
