package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/workping/admin-cli/auth"
)

type seenRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// recordingServer answers every request with status and body, remembering
// what it was sent.
func recordingServer(t *testing.T, status int, body string) (*httptest.Server, func() []seenRequest) {
	t.Helper()

	var (
		mu   sync.Mutex
		seen []seenRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, seenRequest{r.Method, r.URL.Path, r.URL.RawQuery, string(b)})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, func() []seenRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]seenRequest(nil), seen...)
	}
}

func TestClient_ResourceRequests(t *testing.T) {
	yes := true
	empID := 7
	userID := "3f2504e0-4f89-11d3-9a0c-0305e82c3301"

	tests := []struct {
		name      string
		call      func(c *Client) error
		wantMeth  string
		wantPath  string
		wantQuery string
		wantBody  string
	}{
		{
			name: "list employees",
			call: func(c *Client) error {
				_, err := c.ListEmployees(context.Background(), EmployeeFilter{
					Page: 2, PageSize: 8, Ten: "An", Phone: "090", IsDeleted: &yes,
				})
				return err
			},
			wantMeth:  http.MethodGet,
			wantPath:  "/api/NhanVien",
			wantQuery: "isDeleted=true&page=2&pageSize=8&sdt=090&ten=An",
		},
		{
			name: "update employee",
			call: func(c *Client) error {
				_, err := c.UpdateEmployee(context.Background(), 5, Employee{Ten: "An"})
				return err
			},
			wantMeth: http.MethodPut,
			wantPath: "/api/NhanVien/detail/5",
		},
		{
			name:     "delete employee",
			call:     func(c *Client) error { return c.DeleteEmployee(context.Background(), 5) },
			wantMeth: http.MethodDelete,
			wantPath: "/api/NhanVien/detail/5",
		},
		{
			name:     "restore employee",
			call:     func(c *Client) error { return c.RestoreEmployee(context.Background(), 5) },
			wantMeth: http.MethodPost,
			wantPath: "/api/NhanVien/restore/5",
			wantBody: "{}",
		},
		{
			name: "list emails",
			call: func(c *Client) error {
				_, err := c.ListEmails(context.Background(), "hr@", 1, 8)
				return err
			},
			wantMeth:  http.MethodGet,
			wantPath:  "/api/EmailThongBao",
			wantQuery: "email=hr%40&page=1&pageSize=8",
		},
		{
			name: "create email",
			call: func(c *Client) error {
				_, err := c.CreateEmail(context.Background(), "hr@example.com")
				return err
			},
			wantMeth: http.MethodPost,
			wantPath: "/api/EmailThongBao",
			wantBody: `{"email":"hr@example.com"}`,
		},
		{
			name:     "delete holiday",
			call:     func(c *Client) error { return c.DeleteHoliday(context.Background(), 3) },
			wantMeth: http.MethodDelete,
			wantPath: "/api/NgayLe/3",
		},
		{
			name: "list notifications with defaults",
			call: func(c *Client) error {
				_, err := c.ListNotifications(context.Background(), NotificationFilter{EmployeeID: &empID, From: "2025-01-01"})
				return err
			},
			wantMeth:  http.MethodGet,
			wantPath:  "/api/ThongBao",
			wantQuery: "from=2025-01-01&nhanVienId=7&page=1&pageSize=20",
		},
		{
			name:     "activate notify config",
			call:     func(c *Client) error { return c.ActivateNotifyConfig(context.Background(), 9) },
			wantMeth: http.MethodPost,
			wantPath: "/api/CauHinhThongBao/9/activate",
			wantBody: "{}",
		},
		{
			name: "update notify config puts to base",
			call: func(c *Client) error {
				_, err := c.UpdateNotifyConfig(context.Background(), NotifyConfig{ID: 9, SoNgayThongBao: 3})
				return err
			},
			wantMeth: http.MethodPut,
			wantPath: "/api/CauHinhThongBao",
		},
		{
			name: "list users with defaults",
			call: func(c *Client) error {
				_, err := c.ListUsers(context.Background(), "", 0, 0)
				return err
			},
			wantMeth:  http.MethodGet,
			wantPath:  "/api/User",
			wantQuery: "page=1&pageSize=10",
		},
		{
			name: "create employee",
			call: func(c *Client) error {
				_, err := c.CreateEmployee(context.Background(), Employee{
					Ten: "An", Email: "an@example.com", SoDienThoai: "090",
					NgayVaoLam: "2025-01-02", NgaySinh: "1990-05-06",
				})
				return err
			},
			wantMeth: http.MethodPost,
			wantPath: "/api/NhanVien",
			wantBody: `{"ten":"An","email":"an@example.com","soDienThoai":"090","diaChi":"",` +
				`"ngayVaoLam":"2025-01-02","ngaySinh":"1990-05-06","ngayLamViecChinhThuc":null}`,
		},
		{
			name: "update email",
			call: func(c *Client) error {
				_, err := c.UpdateEmail(context.Background(), NotificationEmail{ID: 4, Email: "hr@example.com"})
				return err
			},
			wantMeth: http.MethodPut,
			wantPath: "/api/EmailThongBao/4",
			wantBody: `{"id":4,"email":"hr@example.com"}`,
		},
		{
			name: "update holiday",
			call: func(c *Client) error {
				_, err := c.UpdateHoliday(context.Background(), Holiday{
					ID: 3, TenNgayLe: "Tết", NgayBatDau: "2026-02-16", NgayKetThuc: "2026-02-20",
				})
				return err
			},
			wantMeth: http.MethodPut,
			wantPath: "/api/NgayLe/3",
			wantBody: `{"id":3,"tenNgayLe":"Tết","ngayBatDau":"2026-02-16","ngayKetThuc":"2026-02-20"}`,
		},
		{
			name: "create notify config",
			call: func(c *Client) error {
				_, err := c.CreateNotifyConfig(context.Background(), NotifyConfig{
					SoNgayThongBao: 3, DanhSachNamThongBao: "1,3,5", ExcludeSunday: true,
				})
				return err
			},
			wantMeth: http.MethodPost,
			wantPath: "/api/CauHinhThongBao",
			wantBody: `{"soNgayThongBao":3,"danhSachNamThongBao":"1,3,5","excludeSaturday":false,"excludeSunday":true}`,
		},
		{
			name: "create user",
			call: func(c *Client) error {
				_, err := c.CreateUser(context.Background(), NewUser{
					Username: "hr1", Email: "hr1@example.com", Password: "s3cret",
				})
				return err
			},
			wantMeth: http.MethodPost,
			wantPath: "/api/User",
			wantBody: `{"username":"hr1","email":"hr1@example.com","password":"s3cret"}`,
		},
		{
			name: "update user",
			call: func(c *Client) error {
				_, err := c.UpdateUser(context.Background(), userID, UserUpdate{Role: "Admin"})
				return err
			},
			wantMeth: http.MethodPut,
			wantPath: "/api/User/" + userID,
			wantBody: `{"role":"Admin"}`,
		},
		{
			name:     "delete user",
			call:     func(c *Client) error { return c.DeleteUser(context.Background(), userID) },
			wantMeth: http.MethodDelete,
			wantPath: "/api/User/" + userID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, seen := recordingServer(t, http.StatusOK, `{}`)
			if err := tt.call(New(srv.URL+"/", srv.Client())); err != nil {
				t.Fatalf("call failed: %v", err)
			}

			reqs := seen()
			if len(reqs) != 1 {
				t.Fatalf("requests = %d, want 1", len(reqs))
			}
			r := reqs[0]
			if r.Method != tt.wantMeth || r.Path != tt.wantPath {
				t.Errorf("request = %s %s, want %s %s", r.Method, r.Path, tt.wantMeth, tt.wantPath)
			}
			if r.Query != tt.wantQuery {
				t.Errorf("query = %q, want %q", r.Query, tt.wantQuery)
			}
			if tt.wantBody != "" && r.Body != tt.wantBody {
				t.Errorf("body = %q, want %q", r.Body, tt.wantBody)
			}
		})
	}
}

func TestClient_ListDecodesPage(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusOK, `{
		"items":[{"id":1,"tenNgayLe":"Tết","ngayBatDau":"2025-01-28","ngayKetThuc":"2025-02-02"}],
		"page":1,"pageSize":8,"totalItems":1,"totalPages":1}`)

	p, err := New(srv.URL, srv.Client()).ListHolidays(context.Background(), "", 1, 8)
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalItems != 1 || len(p.Items) != 1 || p.Items[0].TenNgayLe != "Tết" {
		t.Errorf("page = %+v", p)
	}
}

func TestClient_ListNotFoundIsEmptyPage(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusNotFound, `{"message":"Không có dữ liệu"}`)

	p, err := New(srv.URL, srv.Client()).ListEmails(context.Background(), "nobody", 3, 8)
	if err != nil {
		t.Fatalf("err = %v, want empty page", err)
	}
	if p.Items == nil || len(p.Items) != 0 || p.Page != 3 || p.PageSize != 8 || p.TotalItems != 0 {
		t.Errorf("page = %+v", p)
	}
}

func TestClient_ActiveNotifyConfigNone(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusNotFound, ``)

	cfg, err := New(srv.URL, srv.Client()).ActiveNotifyConfig(context.Background())
	if err != nil || cfg != nil {
		t.Errorf("ActiveNotifyConfig = %+v, %v; want nil, nil", cfg, err)
	}
}

func TestClient_ErrorResponse(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusBadRequest, `{"errors":{"Email":["Email không hợp lệ"]}}`)

	_, err := New(srv.URL, srv.Client()).CreateEmail(context.Background(), "x")

	var ae *Error
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *api.Error", err)
	}
	if ae.StatusCode != http.StatusBadRequest || ae.Fields["email"] != "Email không hợp lệ" {
		t.Errorf("error = %+v", ae)
	}
}

func TestClient_InvalidUserIDNeverSent(t *testing.T) {
	srv, seen := recordingServer(t, http.StatusOK, `{}`)

	err := New(srv.URL, srv.Client()).DeleteUser(context.Background(), "../Auth/login")
	if err == nil {
		t.Fatal("expected invalid id error")
	}
	if n := len(seen()); n != 0 {
		t.Errorf("%d requests sent for an invalid id", n)
	}
}

func TestClient_ThroughGatekeeperRefreshesOnce(t *testing.T) {
	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == auth.RefreshPath {
			refreshes.Add(1)
			json.NewEncoder(w).Encode(map[string]any{"accessToken": "fresh", "expiresIn": 3600})
			return
		}
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"items":[{"id":1,"ten":"An"}],"page":1,"pageSize":8,"totalItems":1,"totalPages":1}`))
	}))
	defer srv.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := auth.NewTokenStore(auth.NewMemoryBackend(), log)
	store.Write(context.Background(), auth.Session{AccessToken: "stale", RefreshToken: "r1"})

	m, err := auth.NewManager(store, auth.Config{BaseURL: srv.URL, Logger: log})
	if err != nil {
		t.Fatal(err)
	}

	p, err := New(srv.URL, m.Client(nil)).ListEmployees(context.Background(), EmployeeFilter{Page: 1, PageSize: 8})
	if err != nil {
		t.Fatalf("ListEmployees: %v", err)
	}
	if len(p.Items) != 1 || p.Items[0].Ten != "An" {
		t.Errorf("page = %+v", p)
	}
	if refreshes.Load() != 1 {
		t.Errorf("refreshes = %d, want 1", refreshes.Load())
	}
}

func TestClient_RefreshFailureSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := auth.NewTokenStore(auth.NewMemoryBackend(), log)
	store.Write(context.Background(), auth.Session{AccessToken: "stale", RefreshToken: "r1"})

	m, err := auth.NewManager(store, auth.Config{BaseURL: srv.URL, Logger: log})
	if err != nil {
		t.Fatal(err)
	}

	_, err = New(srv.URL, m.Client(nil)).ListHolidays(context.Background(), "", 1, 8)
	if !errors.Is(err, auth.ErrRefreshFailed) {
		t.Errorf("err = %v, want auth.ErrRefreshFailed", err)
	}
	if m.IsAuthenticated(context.Background()) {
		t.Error("session should be gone")
	}
}
