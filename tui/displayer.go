package tui

import (
	"fmt"
	"io"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/workping/admin-cli/auth"
)

// User-facing notices, in the language of the HR portal.
const (
	permissionDeniedText = "Bạn không có quyền thực hiện thao tác này (403)."
	sessionExpiredText   = "Phiên đăng nhập đã hết hạn, vui lòng đăng nhập lại."
)

// SessionInfo summarizes the stored session for the status command.
type SessionInfo struct {
	Server     string
	Username   string
	UserID     string
	Role       string
	ExpiresAt  time.Time
	HasRefresh bool
	Valid      bool
}

// Displayer abstracts all user-facing output. It receives the session events
// emitted by auth.Manager plus the command results.
type Displayer interface {
	auth.Observer

	LoggedIn(username string)
	LoggedOut()
	Status(info SessionInfo)
	Notice(text string)
	Watching(server string)
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w.
// Used when stdout is not a TTY (pipes, CI, SSH without pty).
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) SessionSaved(expiresAt time.Time) {
	if expiresAt.IsZero() {
		fmt.Fprintln(p.w, "Session saved (no expiry)")
		return
	}
	fmt.Fprintf(p.w, "Session saved, expires %s\n", expiresAt.Local().Format(time.DateTime))
}

func (p *PlainDisplayer) SessionCleared() {
	fmt.Fprintln(p.w, "Session cleared")
}

func (p *PlainDisplayer) RefreshScheduled(at time.Time) {
	fmt.Fprintf(p.w, "Next refresh at %s\n", at.Local().Format(time.DateTime))
}

func (p *PlainDisplayer) Refreshing() {
	fmt.Fprintln(p.w, "Refreshing access token...")
}

func (p *PlainDisplayer) RefreshOK() {
	fmt.Fprintln(p.w, "Token refreshed successfully!")
}

func (p *PlainDisplayer) RefreshFailed(err error) {
	fmt.Fprintf(p.w, "Refresh failed: %v\n", err)
	fmt.Fprintln(p.w, sessionExpiredText)
}

func (p *PlainDisplayer) AccessTokenRejected() {
	fmt.Fprintln(p.w, "Access token rejected (401), refreshing...")
}

func (p *PlainDisplayer) PermissionDenied(method, path string) {
	fmt.Fprintf(p.w, "%s %s: %s\n", method, path, permissionDeniedText)
}

func (p *PlainDisplayer) LoggedIn(username string) {
	fmt.Fprintf(p.w, "Logged in as %s\n", username)
}

func (p *PlainDisplayer) LoggedOut() {
	fmt.Fprintln(p.w, "Logged out")
}

func (p *PlainDisplayer) Status(info SessionInfo) {
	fmt.Fprintf(p.w, "Server:        %s\n", info.Server)
	if !info.Valid && !info.HasRefresh {
		fmt.Fprintln(p.w, "Session:       none")
		return
	}
	if info.Username != "" {
		fmt.Fprintf(p.w, "User:          %s (%s)\n", info.Username, info.UserID)
	}
	if info.Role != "" {
		fmt.Fprintf(p.w, "Role:          %s\n", info.Role)
	}
	fmt.Fprintf(p.w, "Access token:  %s\n", validity(info))
	fmt.Fprintf(p.w, "Refresh token: %t\n", info.HasRefresh)
}

func (p *PlainDisplayer) Notice(text string) {
	fmt.Fprintln(p.w, text)
}

func (p *PlainDisplayer) Watching(server string) {
	fmt.Fprintf(p.w, "Keeping session for %s fresh, press Ctrl+C to stop\n", server)
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

func validity(info SessionInfo) string {
	switch {
	case !info.Valid:
		return "expired"
	case info.ExpiresAt.IsZero():
		return "valid (no expiry)"
	default:
		return fmt.Sprintf("valid for %s", formatDuration(time.Until(info.ExpiresAt)))
	}
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct {
	auth.NopObserver
}

func (NoopDisplayer) LoggedIn(_ string)    {}
func (NoopDisplayer) LoggedOut()           {}
func (NoopDisplayer) Status(_ SessionInfo) {}
func (NoopDisplayer) Notice(_ string)      {}
func (NoopDisplayer) Watching(_ string)    {}
func (NoopDisplayer) Fatal(_ error)        {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) SessionSaved(expiresAt time.Time) {
	t.p.Send(MsgSessionSaved{ExpiresAt: expiresAt})
}

func (t *ProgramDisplayer) SessionCleared() {
	t.p.Send(MsgSessionCleared{})
}

func (t *ProgramDisplayer) RefreshScheduled(at time.Time) {
	t.p.Send(MsgRefreshScheduled{At: at})
}

func (t *ProgramDisplayer) Refreshing() {
	t.p.Send(MsgRefreshing{})
}

func (t *ProgramDisplayer) RefreshOK() {
	t.p.Send(MsgRefreshOK{})
}

func (t *ProgramDisplayer) RefreshFailed(err error) {
	t.p.Send(MsgRefreshFailed{Err: err})
}

func (t *ProgramDisplayer) AccessTokenRejected() {
	t.p.Send(MsgAccessTokenRejected{})
}

func (t *ProgramDisplayer) PermissionDenied(method, path string) {
	t.p.Send(MsgPermissionDenied{Method: method, Path: path})
}

func (t *ProgramDisplayer) LoggedIn(username string) {
	t.p.Send(MsgLoggedIn{Username: username})
}

func (t *ProgramDisplayer) LoggedOut() {
	t.p.Send(MsgLoggedOut{})
}

func (t *ProgramDisplayer) Status(info SessionInfo) {
	t.p.Send(MsgStatus{Info: info})
}

func (t *ProgramDisplayer) Notice(text string) {
	t.p.Send(MsgNotice{Text: text})
}

func (t *ProgramDisplayer) Watching(server string) {
	t.p.Send(MsgWatching{Server: server})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
