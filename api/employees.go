package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const employeesPath = "/api/NhanVien"

// Employee is an employee record. Dates are kept in the server's string form.
type Employee struct {
	ID                   int     `json:"id,omitempty"`
	Ten                  string  `json:"ten"`
	Email                string  `json:"email"`
	SoDienThoai          string  `json:"soDienThoai"`
	DiaChi               string  `json:"diaChi"`
	NgayVaoLam           string  `json:"ngayVaoLam"`
	NgaySinh             string  `json:"ngaySinh"`
	NgayLamViecChinhThuc *string `json:"ngayLamViecChinhThuc"`
	IsDeleted            bool    `json:"isDeleted,omitempty"`
}

// EmployeeFilter narrows ListEmployees. A nil IsDeleted lists both states.
type EmployeeFilter struct {
	Page      int
	PageSize  int
	Ten       string
	Phone     string
	IsDeleted *bool
}

// ListEmployees returns one page of employees.
func (c *Client) ListEmployees(ctx context.Context, f EmployeeFilter) (*Page[Employee], error) {
	q := url.Values{}
	setPaging(q, f.Page, f.PageSize)
	if f.Ten != "" {
		q.Set("ten", f.Ten)
	}
	if f.Phone != "" {
		q.Set("sdt", f.Phone)
	}
	if f.IsDeleted != nil {
		q.Set("isDeleted", strconv.FormatBool(*f.IsDeleted))
	}
	return list[Employee](ctx, c, employeesPath, q, f.Page, f.PageSize)
}

// CreateEmployee adds an employee and returns the stored record.
func (c *Client) CreateEmployee(ctx context.Context, e Employee) (*Employee, error) {
	var out Employee
	if err := c.do(ctx, http.MethodPost, employeesPath, nil, e, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateEmployee replaces employee id.
func (c *Client) UpdateEmployee(ctx context.Context, id int, e Employee) (*Employee, error) {
	var out Employee
	path := fmt.Sprintf("%s/detail/%d", employeesPath, id)
	if err := c.do(ctx, http.MethodPut, path, nil, e, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteEmployee soft-deletes employee id.
func (c *Client) DeleteEmployee(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/detail/%d", employeesPath, id), nil, nil, nil)
}

// RestoreEmployee undoes a soft delete.
func (c *Client) RestoreEmployee(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("%s/restore/%d", employeesPath, id), nil, struct{}{}, nil)
}
