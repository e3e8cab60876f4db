package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const holidaysPath = "/api/NgayLe"

// Holiday is a public holiday range, dates as ISO strings.
type Holiday struct {
	ID          int    `json:"id,omitempty"`
	TenNgayLe   string `json:"tenNgayLe"`
	NgayBatDau  string `json:"ngayBatDau"`
	NgayKetThuc string `json:"ngayKetThuc"`
}

func (c *Client) ListHolidays(ctx context.Context, ten string, page, pageSize int) (*Page[Holiday], error) {
	q := url.Values{}
	if ten != "" {
		q.Set("ten", ten)
	}
	setPaging(q, page, pageSize)
	return list[Holiday](ctx, c, holidaysPath, q, page, pageSize)
}

func (c *Client) CreateHoliday(ctx context.Context, h Holiday) (*Holiday, error) {
	var out Holiday
	if err := c.do(ctx, http.MethodPost, holidaysPath, nil, h, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateHoliday(ctx context.Context, h Holiday) (*Holiday, error) {
	var out Holiday
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("%s/%d", holidaysPath, h.ID), nil, h, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteHoliday(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", holidaysPath, id), nil, nil, nil)
}
