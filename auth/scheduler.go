package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// maxTimerDelay is the longest single timer the scheduler arms (2^31-1 ms,
// about 24.8 days). Later deadlines are reached through a chain of timers.
const maxTimerDelay = (1<<31 - 1) * time.Millisecond

// SchedulerState is the proactive refresh state.
type SchedulerState int

const (
	// StateIdle means no timer is armed.
	StateIdle SchedulerState = iota
	// StateArmed means a timer runs toward the next wake time.
	StateArmed
	// StateFiring means a refresh attempt is in progress.
	StateFiring
)

func (s SchedulerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateFiring:
		return "firing"
	default:
		return "unknown"
	}
}

type stopper interface {
	Stop() bool
}

type clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) stopper
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// Scheduler refreshes the session shortly before it expires. It keeps at most
// one timer; every Reschedule replaces the previous one. The scheduler is
// best effort: the Gatekeeper's reaction to 401 remains the safety net.
type Scheduler struct {
	mu      sync.Mutex
	state   SchedulerState
	timer   stopper
	wakeAt  time.Time
	gen     uint64
	running bool

	store    *TokenStore
	refresh  func(context.Context) error
	clock    clock
	buffer   time.Duration
	maxDelay time.Duration
	log      *slog.Logger
	observer Observer
}

func newScheduler(
	store *TokenStore,
	refresh func(context.Context) error,
	log *slog.Logger,
	observer Observer,
) *Scheduler {
	return &Scheduler{
		store:    store,
		refresh:  refresh,
		clock:    systemClock{},
		buffer:   RefreshBuffer,
		maxDelay: maxTimerDelay,
		log:      log,
		observer: observer,
	}
}

// Start enables scheduling and arms for the stored session.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.Reschedule()
}

// Stop cancels any timer; later Reschedule calls do nothing until Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	s.cancelLocked()
}

// Cancel drops the current timer and returns to idle.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
}

// State returns the current state.
func (s *Scheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// WakeAt returns the time the armed refresh is due, or zero when not armed.
func (s *Scheduler) WakeAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wakeAt
}

// Reschedule cancels any timer and arms a new one for the stored session's
// expiry minus the buffer. Past-due sessions are refreshed at once. Delays
// longer than maxDelay arm a shorter timer that reschedules when it fires.
func (s *Scheduler) Reschedule() {
	s.mu.Lock()

	s.cancelLocked()
	if !s.running {
		s.mu.Unlock()
		return
	}

	sess := s.store.Read(context.Background())
	if sess.ExpiresAt.IsZero() {
		s.mu.Unlock()
		return
	}

	wake := sess.ExpiresAt.Add(-s.buffer)
	until := wake.Sub(s.clock.Now())
	gen := s.gen

	if until <= 0 {
		s.state = StateFiring
		s.mu.Unlock()

		s.log.Debug("session within refresh buffer, refreshing now", "expires_at", sess.ExpiresAt)
		go s.fire(gen)
		return
	}

	delay := min(until, s.maxDelay)
	s.state = StateArmed
	s.wakeAt = wake
	s.timer = s.clock.AfterFunc(delay, func() { s.onTimer(gen) })
	s.mu.Unlock()

	s.log.Debug("refresh scheduled", "wake_at", wake, "timer", delay)
	s.observer.RefreshScheduled(wake)
}

// cancelLocked stops the timer and bumps the generation so a timer that has
// already fired is ignored. Must be called with s.mu held.
func (s *Scheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.state = StateIdle
	s.wakeAt = time.Time{}
}

func (s *Scheduler) onTimer(gen uint64) {
	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()

	if !stale {
		s.Reschedule()
	}
}

func (s *Scheduler) fire(gen uint64) {
	err := s.refresh(context.Background())
	if err != nil {
		s.log.Warn("scheduled refresh failed", "error", err)
	}

	// A successful refresh has already rescheduled and a failed one has logged
	// out, both of which moved the generation on.
	s.mu.Lock()
	if s.gen == gen && s.state == StateFiring {
		s.state = StateIdle
	}
	s.mu.Unlock()
}
