package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Auth endpoints, relative to the API base URL.
const (
	LoginPath          = "/api/Auth/login"
	RefreshPath        = "/api/Auth/refresh"
	ForgotPasswordPath = "/api/Auth/forgot-password"
	ResetPasswordPath  = "/api/Auth/reset-password"
)

// Timeout configuration for auth calls
const (
	loginTimeout        = 15 * time.Second
	refreshTokenTimeout = 10 * time.Second
	passwordTimeout     = 15 * time.Second
)

const refreshFlightKey = "refresh"

// Config configures a Manager.
type Config struct {
	// BaseURL is the API root, e.g. https://atlink.asia/workpingapi.
	BaseURL string
	// HTTPClient sends the refresh call, once and without retries.
	// Defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	// RetryClient sends login and password calls. Defaults to a retry
	// client wrapping HTTPClient.
	RetryClient *retry.Client
	Logger      *slog.Logger
	Observer    Observer
	Metrics     *Metrics
}

// Manager owns the session: it logs in and out, turns server responses into
// sessions, refreshes them, and keeps the refresh scheduler in step with the
// stored expiry.
type Manager struct {
	store       *TokenStore
	baseURL     string
	httpClient  *http.Client
	retryClient *retry.Client
	scheduler   *Scheduler
	flight      singleflight.Group
	log         *slog.Logger
	observer    Observer
	metrics     *Metrics
	now         func() time.Time
}

// NewManager creates a Manager over store. The scheduler is created stopped;
// call Scheduler().Start() for proactive refresh.
func NewManager(store *TokenStore, cfg Config) (*Manager, error) {
	if store == nil {
		return nil, errors.New("token store is required")
	}

	m := &Manager{
		store:       store,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  cfg.HTTPClient,
		retryClient: cfg.RetryClient,
		log:         cfg.Logger,
		observer:    cfg.Observer,
		metrics:     cfg.Metrics,
		now:         time.Now,
	}
	if m.httpClient == nil {
		m.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if m.retryClient == nil {
		rc, err := retry.NewClient(retry.WithHTTPClient(m.httpClient))
		if err != nil {
			return nil, fmt.Errorf("failed to create retry client: %w", err)
		}
		m.retryClient = rc
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.observer == nil {
		m.observer = NopObserver{}
	}

	m.scheduler = newScheduler(store, m.refreshForScheduler, m.log, m.observer)
	return m, nil
}

// Scheduler returns the proactive refresh scheduler.
func (m *Manager) Scheduler() *Scheduler {
	return m.scheduler
}

// Session returns the stored session.
func (m *Manager) Session(ctx context.Context) Session {
	return m.store.Read(ctx)
}

// IsAuthenticated reports whether an access token is stored and not expired.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	return m.store.Read(ctx).Valid(m.now())
}

// Transport returns a RoundTripper that authenticates requests sent through base.
func (m *Manager) Transport(base http.RoundTripper) *Gatekeeper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Gatekeeper{base: base, m: m}
}

// Client returns an http.Client whose requests pass through the Gatekeeper.
func (m *Manager) Client(base http.RoundTripper) *http.Client {
	return &http.Client{Transport: m.Transport(base)}
}

// Login exchanges credentials for a session.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	body, err := m.postJSON(ctx, m.retryDo, LoginPath, map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	return m.ApplyLoginResult(ctx, body)
}

// ApplyLoginResult stores the session carried by a login response body.
func (m *Manager) ApplyLoginResult(ctx context.Context, body []byte) error {
	sess, err := Normalize(body, m.now())
	if err != nil {
		return &SessionError{Op: "login", Message: "invalid login response", Err: err}
	}

	m.store.Write(ctx, sess)
	m.sessionChanged(sess)
	return nil
}

// ApplyRefreshResult stores the session carried by a refresh response body.
// A response without a refresh token keeps the current one.
func (m *Manager) ApplyRefreshResult(ctx context.Context, body []byte) error {
	_, err := m.applyRefresh(ctx, body, "")
	return err
}

// applyRefresh normalizes body and swaps it in. When usedRefresh is set the
// write is dropped if the stored refresh token changed meanwhile (logout or
// a new login superseded this refresh).
func (m *Manager) applyRefresh(ctx context.Context, body []byte, usedRefresh string) (Session, error) {
	next, err := Normalize(body, m.now())
	if err != nil {
		return Session{}, &SessionError{Op: "refresh", Message: "invalid refresh response", Err: err}
	}

	sess, err := m.store.swap(ctx, func(cur Session) (Session, error) {
		if usedRefresh != "" && cur.RefreshToken != usedRefresh {
			return Session{}, errSessionSuperseded
		}
		if next.RefreshToken == "" {
			next.RefreshToken = cur.RefreshToken
		}
		return next, nil
	})
	if err != nil {
		return Session{}, err
	}

	m.sessionChanged(sess)
	return sess, nil
}

func (m *Manager) sessionChanged(sess Session) {
	m.log.Debug("session stored", "expires_at", sess.ExpiresAt, "has_refresh", sess.RefreshToken != "")
	m.observer.SessionSaved(sess.ExpiresAt)
	m.scheduler.Reschedule()
}

// Logout clears the session and cancels any scheduled refresh.
func (m *Manager) Logout(ctx context.Context) {
	m.store.Clear(ctx)
	m.scheduler.Cancel()
	m.observer.SessionCleared()
	m.log.Debug("session cleared")
}

// Refresh exchanges the stored refresh token for a new session. Concurrent
// callers share one refresh call and all receive its outcome. Any failure
// clears the session, except a refresh superseded by a newer login or logout,
// which leaves the newer state alone. Callers stop waiting when ctx ends; the refresh itself
// carries on for the others.
func (m *Manager) Refresh(ctx context.Context) (Session, error) {
	led := false
	ch := m.flight.DoChan(refreshFlightKey, func() (any, error) {
		led = true
		return m.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if !led {
			m.metrics.coalescedWait()
		}
		if res.Err != nil {
			return Session{}, res.Err
		}
		return res.Val.(Session), nil
	case <-ctx.Done():
		return Session{}, ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context) (Session, error) {
	cur := m.store.Read(ctx)
	if cur.RefreshToken == "" {
		m.metrics.refresh("no_refresh_token")
		m.Logout(ctx)
		return Session{}, ErrNoRefreshToken
	}

	m.observer.Refreshing()

	ctx, cancel := context.WithTimeout(ctx, refreshTokenTimeout)
	defer cancel()

	body, err := m.postJSON(ctx, m.httpClient.Do, RefreshPath, map[string]string{
		"refreshToken": cur.RefreshToken,
	})
	var sess Session
	if err == nil {
		sess, err = m.applyRefresh(ctx, body, cur.RefreshToken)
	}
	if errors.Is(err, errSessionSuperseded) {
		m.log.Info("refresh result dropped, session was replaced meanwhile")
		m.metrics.refresh("superseded")
		return Session{}, &RefreshFailedError{Err: err}
	}
	if err != nil {
		m.log.Warn("token refresh failed", "error", err)
		m.metrics.refresh("failure")
		m.Logout(ctx)
		m.observer.RefreshFailed(err)
		return Session{}, &RefreshFailedError{Err: err}
	}

	m.metrics.refresh("success")
	m.observer.RefreshOK()
	return sess, nil
}

func (m *Manager) refreshForScheduler(ctx context.Context) error {
	_, err := m.Refresh(ctx)
	return err
}

// TokenSource exposes the session as an oauth2.TokenSource, refreshing an
// expired access token when a refresh token is stored.
func (m *Manager) TokenSource() oauth2.TokenSource {
	return m.TokenSourceContext(context.Background())
}

// TokenSourceContext is TokenSource bound to ctx: Token stops waiting on a
// refresh when ctx ends.
func (m *Manager) TokenSourceContext(ctx context.Context) oauth2.TokenSource {
	return managerTokenSource{ctx: ctx, m: m}
}

type managerTokenSource struct {
	ctx context.Context
	m   *Manager
}

func (ts managerTokenSource) Token() (*oauth2.Token, error) {
	sess := ts.m.store.Read(ts.ctx)
	if sess.Valid(ts.m.now()) {
		return sess.Token(), nil
	}
	if sess.RefreshToken == "" {
		return nil, ErrNoSession
	}
	sess, err := ts.m.Refresh(ts.ctx)
	if err != nil {
		return nil, err
	}
	return sess.Token(), nil
}

// ResetPasswordRequest is the body of a password reset.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// ForgotPassword asks the server to email a reset link and returns its message.
func (m *Manager) ForgotPassword(ctx context.Context, email string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, passwordTimeout)
	defer cancel()

	body, err := m.postJSON(ctx, m.retryDo, ForgotPasswordPath, map[string]string{"email": email})
	if err != nil {
		return "", fmt.Errorf("forgot password request failed: %w", err)
	}
	return serverMessage(body), nil
}

// ResetPassword sets a new password using an emailed reset token.
func (m *Manager) ResetPassword(ctx context.Context, req ResetPasswordRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, passwordTimeout)
	defer cancel()

	body, err := m.postJSON(ctx, m.retryDo, ResetPasswordPath, req)
	if err != nil {
		return "", fmt.Errorf("reset password request failed: %w", err)
	}
	return serverMessage(body), nil
}

func (m *Manager) retryDo(req *http.Request) (*http.Response, error) {
	return m.retryClient.DoWithContext(req.Context(), req)
}

// postJSON posts payload to path and returns the body of a 2xx response.
// Other statuses come back as *oauth2.RetrieveError carrying the body.
func (m *Manager) postJSON(
	ctx context.Context,
	do func(*http.Request) (*http.Response, error),
	path string,
	payload any,
) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &oauth2.RetrieveError{Response: resp, Body: body}
	}
	return body, nil
}

func serverMessage(body []byte) string {
	var msg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &msg); err == nil && msg.Message != "" {
		return msg.Message
	}
	return strings.TrimSpace(string(body))
}
