package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/google/uuid"
)

const (
	// toastTTL is how long a toast stays on screen.
	toastTTL = 5 * time.Second
	// maxLogEntries bounds the event log of a long-running watch.
	maxLogEntries = 12
)

type countdownMsg time.Time

type phase int

const (
	phaseStarting phase = iota
	phaseActive
	phaseRefreshing
	phaseSignedOut
	phaseFailed
)

type level int

const (
	levelInfo level = iota
	levelOK
	levelWarn
)

type logEntry struct {
	at    time.Time
	level level
	text  string
}

type toast struct {
	id    uuid.UUID
	level level
	text  string
}

// Model renders session events for interactive commands.
type Model struct {
	phase   phase
	spinner spinner.Model

	server      string
	username    string
	role        string
	expiresAt   time.Time
	nextRefresh time.Time
	counting    bool
	failure     string

	toasts []toast
	events []logEntry
}

var (
	accent = lipgloss.Color("63")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")).
			Background(accent).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(9)
	valueStyle = lipgloss.NewStyle().Bold(true)
	timeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	toastStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).PaddingLeft(1)

	levelStyles = map[level]lipgloss.Style{
		levelInfo: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		levelOK:   lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		levelWarn: lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
	}
	levelGlyphs = map[level]string{levelInfo: "•", levelOK: "✔", levelWarn: "!"}
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
)

// NewModel returns a model waiting for its first event.
func NewModel() Model {
	return Model{
		phase: phaseStarting,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(accent)),
		),
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)

	case countdownMsg:
		m.counting = m.phase == phaseActive && time.Until(m.nextRefresh) > 0
		if m.counting {
			cmd = countdown()
		}

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			cmd = tea.Quit
		}

	case msgToastExpired:
		m.dropToast(msg.ID)

	case MsgSessionSaved:
		m.phase = phaseActive
		m.expiresAt = msg.ExpiresAt
		if msg.ExpiresAt.IsZero() {
			m.record(levelOK, "session stored, no expiry")
		} else {
			m.record(levelOK, "session stored, expires "+msg.ExpiresAt.Local().Format(time.TimeOnly))
		}

	case MsgSessionCleared:
		m.phase = phaseSignedOut
		m.nextRefresh = time.Time{}
		m.record(levelWarn, "session cleared")

	case MsgRefreshScheduled:
		m.phase = phaseActive
		m.nextRefresh = msg.At
		m.record(levelInfo, "refresh due "+msg.At.Local().Format(time.DateTime))
		if !m.counting {
			m.counting = true
			cmd = countdown()
		}

	case MsgRefreshing:
		m.phase = phaseRefreshing
		m.record(levelInfo, "refreshing access token")

	case MsgRefreshOK:
		m.phase = phaseActive
		m.record(levelOK, "access token refreshed")

	case MsgRefreshFailed:
		m.record(levelWarn, fmt.Sprintf("refresh failed: %v", msg.Err))
		cmd = m.showToast(levelWarn, sessionExpiredText)

	case MsgAccessTokenRejected:
		m.record(levelWarn, "server rejected the access token (401)")

	case MsgPermissionDenied:
		m.record(levelWarn, fmt.Sprintf("%s %s: forbidden", msg.Method, msg.Path))
		cmd = m.showToast(levelWarn, permissionDeniedText)

	case MsgLoggedIn:
		m.phase = phaseActive
		m.username = msg.Username
		m.record(levelOK, "logged in as "+msg.Username)

	case MsgLoggedOut:
		m.phase = phaseSignedOut
		m.record(levelOK, "logged out")

	case MsgStatus:
		m.server = msg.Info.Server
		m.username = msg.Info.Username
		m.role = msg.Info.Role
		m.expiresAt = msg.Info.ExpiresAt
		m.phase = phaseSignedOut
		if msg.Info.Valid || msg.Info.HasRefresh {
			m.phase = phaseActive
		}

	case MsgNotice:
		m.record(levelInfo, msg.Text)
		cmd = m.showToast(levelInfo, msg.Text)

	case MsgWatching:
		m.server = msg.Server
		m.record(levelInfo, "watching "+msg.Server)

	case MsgFatal:
		m.phase = phaseFailed
		m.failure = msg.Err.Error()
	}

	return m, cmd
}

func (m Model) View() tea.View {
	return tea.NewView(m.render())
}

func (m Model) render() string {
	sections := []string{"", headerStyle.Render("WorkPing admin")}

	if rows := m.sessionRows(); rows != "" {
		sections = append(sections, rows)
	}
	sections = append(sections, m.phaseLine())

	for _, t := range m.toasts {
		sections = append(sections, toastStyle.BorderForeground(levelStyles[t.level].GetForeground()).Render(t.text))
	}

	if len(m.events) > 0 {
		sections = append(sections, "")
		for _, e := range m.events {
			line := timeStyle.Render(e.at.Format(time.TimeOnly)) + " " +
				levelStyles[e.level].Render(levelGlyphs[e.level]+" "+e.text)
			sections = append(sections, line)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m Model) sessionRows() string {
	var rows []string
	add := func(label, value string) {
		if value != "" {
			rows = append(rows, labelStyle.Render(label)+valueStyle.Render(value))
		}
	}
	add("server", m.server)
	add("user", m.username)
	add("role", m.role)
	return strings.Join(rows, "\n")
}

func (m Model) phaseLine() string {
	switch m.phase {
	case phaseFailed:
		return failStyle.Render("✘ " + m.failure)
	case phaseSignedOut:
		return levelStyles[levelWarn].Render("Not logged in")
	case phaseRefreshing:
		return m.spinner.View() + " Refreshing access token"
	case phaseActive:
		switch {
		case !m.nextRefresh.IsZero():
			return m.spinner.View() + " Next refresh in " + valueStyle.Render(formatDuration(time.Until(m.nextRefresh)))
		case m.expiresAt.IsZero():
			return levelStyles[levelOK].Render("Session active, no expiry")
		default:
			return levelStyles[levelOK].Render("Session valid until " + m.expiresAt.Local().Format(time.DateTime))
		}
	}
	return m.spinner.View() + " Working"
}

func (m *Model) record(l level, text string) {
	m.events = append(m.events, logEntry{at: time.Now(), level: l, text: text})
	if n := len(m.events) - maxLogEntries; n > 0 {
		m.events = m.events[n:]
	}
}

// showToast displays text and returns the command that hides it after toastTTL.
func (m *Model) showToast(l level, text string) tea.Cmd {
	id := uuid.New()
	m.toasts = append(m.toasts, toast{id: id, level: l, text: text})
	return tea.Tick(toastTTL, func(time.Time) tea.Msg {
		return msgToastExpired{ID: id}
	})
}

func (m *Model) dropToast(id uuid.UUID) {
	for i, t := range m.toasts {
		if t.id == id {
			m.toasts = append(m.toasts[:i:i], m.toasts[i+1:]...)
			return
		}
	}
}

func countdown() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return countdownMsg(t) })
}

// formatDuration renders d as "Xh Ym", "Xm Ys" or "Xs".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	h, mins, secs := int(d/time.Hour), int(d/time.Minute)%60, int(d/time.Second)%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, mins)
	case mins > 0:
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	return fmt.Sprintf("%ds", secs)
}
