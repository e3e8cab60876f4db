package api

import (
	"context"
	"fmt"
	"net/http"
)

const notifyConfigPath = "/api/CauHinhThongBao"

// NotifyConfig controls when anniversary notifications are sent.
type NotifyConfig struct {
	ID                  int    `json:"id,omitempty"`
	SoNgayThongBao      int    `json:"soNgayThongBao"`
	DanhSachNamThongBao string `json:"danhSachNamThongBao"`
	IsActive            bool   `json:"isActive,omitempty"`
	ExcludeSaturday     bool   `json:"excludeSaturday"`
	ExcludeSunday       bool   `json:"excludeSunday"`
}

// ActiveNotifyConfig returns the active configuration, or nil when none is active.
func (c *Client) ActiveNotifyConfig(ctx context.Context) (*NotifyConfig, error) {
	var out NotifyConfig
	err := c.do(ctx, http.MethodGet, notifyConfigPath+"/active", nil, nil, &out)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) NotifyConfigs(ctx context.Context) ([]NotifyConfig, error) {
	var out []NotifyConfig
	if err := c.do(ctx, http.MethodGet, notifyConfigPath+"/all", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ActivateNotifyConfig makes config id the active one.
func (c *Client) ActivateNotifyConfig(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("%s/%d/activate", notifyConfigPath, id), nil, struct{}{}, nil)
}

func (c *Client) CreateNotifyConfig(ctx context.Context, cfg NotifyConfig) (*NotifyConfig, error) {
	var out NotifyConfig
	if err := c.do(ctx, http.MethodPost, notifyConfigPath, nil, cfg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateNotifyConfig saves cfg; the id travels in the body.
func (c *Client) UpdateNotifyConfig(ctx context.Context, cfg NotifyConfig) (*NotifyConfig, error) {
	var out NotifyConfig
	if err := c.do(ctx, http.MethodPut, notifyConfigPath, nil, cfg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteNotifyConfig(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", notifyConfigPath, id), nil, nil, nil)
}
