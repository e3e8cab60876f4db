package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRefreshToken is returned when a refresh is attempted without a stored refresh token.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrRefreshFailed matches every *RefreshFailedError via errors.Is.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrNoSession is returned by the token source when nobody is logged in.
	ErrNoSession = errors.New("no active session")

	// errSessionSuperseded means a login or logout replaced the session while
	// a refresh was in flight; the refresh result is dropped.
	errSessionSuperseded = errors.New("session changed while refreshing")
)

// SessionError reports an auth response that could not be turned into a session.
type SessionError struct {
	Op      string // login or refresh
	Message string
	Err     error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("session %s: %s", e.Op, e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// RefreshFailedError reports a failed refresh. The session has been cleared
// unless a newer login or logout superseded the refresh.
type RefreshFailedError struct {
	Err error
}

func (e *RefreshFailedError) Error() string {
	return fmt.Sprintf("%v: %v", ErrRefreshFailed, e.Err)
}

func (e *RefreshFailedError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrRefreshFailed) match.
func (e *RefreshFailedError) Is(target error) bool {
	return target == ErrRefreshFailed
}
