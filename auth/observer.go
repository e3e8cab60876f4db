package auth

import "time"

// Observer receives session lifecycle events, typically to show them to the user.
// Methods are called synchronously from whichever goroutine caused the event
// and must not block.
type Observer interface {
	SessionSaved(expiresAt time.Time)
	SessionCleared()
	RefreshScheduled(at time.Time)
	Refreshing()
	RefreshOK()
	RefreshFailed(err error)
	AccessTokenRejected()
	PermissionDenied(method, path string)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) SessionSaved(_ time.Time)     {}
func (NopObserver) SessionCleared()              {}
func (NopObserver) RefreshScheduled(_ time.Time) {}
func (NopObserver) Refreshing()                  {}
func (NopObserver) RefreshOK()                   {}
func (NopObserver) RefreshFailed(_ error)        {}
func (NopObserver) AccessTokenRejected()         {}
func (NopObserver) PermissionDenied(_, _ string) {}
