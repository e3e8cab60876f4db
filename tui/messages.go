package tui

import (
	"time"

	"github.com/google/uuid"
)

// MsgSessionSaved signals that a new session was stored.
type MsgSessionSaved struct{ ExpiresAt time.Time }

// MsgSessionCleared signals that the session was dropped.
type MsgSessionCleared struct{}

// MsgRefreshScheduled signals that a proactive refresh is armed.
type MsgRefreshScheduled struct{ At time.Time }

// MsgRefreshing signals that a token refresh is in progress.
type MsgRefreshing struct{}

// MsgRefreshOK signals that the token was refreshed successfully.
type MsgRefreshOK struct{}

// MsgRefreshFailed signals that token refresh failed.
type MsgRefreshFailed struct{ Err error }

// MsgAccessTokenRejected signals that the access token was rejected (401).
type MsgAccessTokenRejected struct{}

// MsgPermissionDenied signals a 403 for an API call.
type MsgPermissionDenied struct {
	Method string
	Path   string
}

// MsgLoggedIn signals a successful login.
type MsgLoggedIn struct{ Username string }

// MsgLoggedOut signals an explicit logout.
type MsgLoggedOut struct{}

// MsgStatus carries a session summary.
type MsgStatus struct{ Info SessionInfo }

// MsgNotice carries a message from the server worth showing as is.
type MsgNotice struct{ Text string }

// MsgWatching signals that the refresh scheduler is running.
type MsgWatching struct{ Server string }

// MsgFatal signals a fatal error that should terminate the command.
type MsgFatal struct{ Err error }

// msgToastExpired removes a toast.
type msgToastExpired struct{ ID uuid.UUID }
