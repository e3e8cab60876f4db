package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func update(t *testing.T, m Model, msg any) Model {
	t.Helper()

	next, _ := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return nm
}

func TestModel_SessionLifecycle(t *testing.T) {
	m := NewModel()

	m = update(t, m, MsgWatching{Server: "https://api.example.com"})
	m = update(t, m, MsgRefreshScheduled{At: time.Now().Add(10 * time.Minute)})
	if m.phase != phaseActive || !m.counting {
		t.Fatalf("phase = %v counting = %v, want active and counting", m.phase, m.counting)
	}
	if !strings.Contains(m.render(), "Next refresh in") {
		t.Errorf("view lacks countdown:\n%s", m.render())
	}

	m = update(t, m, MsgRefreshing{})
	if m.phase != phaseRefreshing {
		t.Errorf("phase = %v, want refreshing", m.phase)
	}

	m = update(t, m, MsgRefreshOK{})
	m = update(t, m, MsgSessionCleared{})
	if m.phase != phaseSignedOut || !m.nextRefresh.IsZero() {
		t.Errorf("phase = %v next = %v, want signed out with no refresh", m.phase, m.nextRefresh)
	}
	if !strings.Contains(m.render(), "Not logged in") {
		t.Errorf("view:\n%s", m.render())
	}
}

func TestModel_PermissionDeniedToastExpires(t *testing.T) {
	m := NewModel()

	next, cmd := m.Update(MsgPermissionDenied{Method: "DELETE", Path: "/api/User/1"})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("expected a command that expires the toast")
	}
	if len(m.toasts) != 1 || m.toasts[0].text != permissionDeniedText {
		t.Fatalf("toasts = %+v", m.toasts)
	}
	if !strings.Contains(m.render(), permissionDeniedText) {
		t.Errorf("toast not rendered")
	}

	// A second toast keeps the first's id distinct.
	m = update(t, m, MsgNotice{Text: "Đã gửi email"})
	if len(m.toasts) != 2 || m.toasts[0].id == m.toasts[1].id {
		t.Fatalf("toasts = %+v", m.toasts)
	}

	m = update(t, m, msgToastExpired{ID: m.toasts[0].id})
	if len(m.toasts) != 1 || m.toasts[0].text != "Đã gửi email" {
		t.Errorf("after expiry toasts = %+v", m.toasts)
	}
	// A 403 leaves the session alone.
	if m.phase != phaseStarting {
		t.Errorf("phase = %v, want starting", m.phase)
	}
}

func TestModel_EventLogIsBounded(t *testing.T) {
	m := NewModel()
	for range maxLogEntries + 5 {
		m = update(t, m, MsgAccessTokenRejected{})
	}
	if len(m.events) != maxLogEntries {
		t.Errorf("events = %d, want %d", len(m.events), maxLogEntries)
	}
}

func TestModel_Fatal(t *testing.T) {
	m := update(t, NewModel(), MsgFatal{Err: errors.New("boom")})
	if m.phase != phaseFailed || !strings.Contains(m.render(), "boom") {
		t.Errorf("phase = %v view:\n%s", m.phase, m.render())
	}
}

func TestPlainDisplayer_Status(t *testing.T) {
	tests := []struct {
		name string
		info SessionInfo
		want []string
	}{
		{
			name: "no session",
			info: SessionInfo{Server: "https://s"},
			want: []string{"Server:        https://s", "Session:       none"},
		},
		{
			name: "valid session",
			info: SessionInfo{
				Server:     "https://s",
				Username:   "alice",
				UserID:     "42",
				Role:       "Admin",
				ExpiresAt:  time.Now().Add(90 * time.Minute),
				HasRefresh: true,
				Valid:      true,
			},
			want: []string{"User:          alice (42)", "Role:          Admin", "valid for 1h 30m", "Refresh token: true"},
		},
		{
			name: "expired with refresh",
			info: SessionInfo{Server: "https://s", HasRefresh: true},
			want: []string{"Access token:  expired"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewPlainDisplayer(&buf).Status(tt.info)
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output missing %q:\n%s", w, buf.String())
				}
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "0s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{26*time.Hour + 4*time.Minute, "26h 4m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestModel_StatusAndRefreshFailure(t *testing.T) {
	m := update(t, NewModel(), MsgStatus{Info: SessionInfo{
		Server:     "https://hr.example.com",
		Username:   "alice",
		Role:       "Admin",
		HasRefresh: true,
	}})
	if m.phase != phaseActive {
		t.Fatalf("phase = %v, want active", m.phase)
	}
	for _, want := range []string{"https://hr.example.com", "alice", "Admin"} {
		if !strings.Contains(m.render(), want) {
			t.Errorf("view missing %q:\n%s", want, m.render())
		}
	}

	m = update(t, m, MsgRefreshFailed{Err: errors.New("401")})
	if len(m.toasts) != 1 || m.toasts[0].text != sessionExpiredText {
		t.Errorf("toasts = %+v", m.toasts)
	}
	if last := m.events[len(m.events)-1]; last.level != levelWarn || !strings.Contains(last.text, "401") {
		t.Errorf("last event = %+v", last)
	}
}
