package auth

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// authExemptPaths are sent without an Authorization header and never trigger a refresh.
var authExemptPaths = []string{
	LoginPath,
	RefreshPath,
	ForgotPasswordPath,
	ResetPasswordPath,
}

// Gatekeeper is an http.RoundTripper that attaches the session's bearer token
// and recovers from 401 responses by refreshing the session once, shared by
// every request that hit the 401 at the same time, then replaying the request.
type Gatekeeper struct {
	base http.RoundTripper
	m    *Manager
}

// RoundTrip implements http.RoundTripper.
func (g *Gatekeeper) RoundTrip(req *http.Request) (*http.Response, error) {
	if isAuthExempt(req.URL.Path) {
		return g.base.RoundTrip(req)
	}

	ctx := req.Context()
	sess := g.m.store.Read(ctx)

	out, err := replayable(req)
	if err != nil {
		return nil, err
	}
	if sess.AccessToken != "" {
		out.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	}

	resp, err := g.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return g.recover(out, resp)
	case http.StatusForbidden:
		g.m.metrics.forbiddenSeen()
		g.m.log.Info("permission denied", "method", req.Method, "path", req.URL.Path)
		g.m.observer.PermissionDenied(req.Method, req.URL.Path)
	}
	return resp, nil
}

// recover handles a 401 for req. If the session moved on since req was sent,
// req is replayed with the current token. Otherwise the session is refreshed,
// or dropped when there is no refresh token and the 401 returned as is.
func (g *Gatekeeper) recover(req *http.Request, resp *http.Response) (*http.Response, error) {
	ctx := req.Context()

	g.m.metrics.unauthorizedSeen()
	g.m.observer.AccessTokenRejected()

	sess := g.m.store.Read(ctx)
	sent := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
	stale := sess.AccessToken != "" && sess.AccessToken != sent

	if !stale && sess.RefreshToken == "" {
		g.m.Logout(ctx)
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if !stale {
		var err error
		if sess, err = g.m.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	retry, err := rewind(req)
	if err != nil {
		return nil, err
	}
	retry.Header.Set("Authorization", "Bearer "+sess.AccessToken)

	return g.base.RoundTrip(retry)
}

func isAuthExempt(path string) bool {
	for _, p := range authExemptPaths {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

// replayable clones req so it can be sent twice: bodies without GetBody are
// buffered. The original request is not modified.
func replayable(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return out, nil
	}

	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}

	out.Body = io.NopCloser(bytes.NewReader(data))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return out, nil
}

// rewind returns a fresh copy of req with a new body.
func rewind(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		out.Body = body
	}
	return out, nil
}
