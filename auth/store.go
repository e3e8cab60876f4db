package auth

import (
	"context"
	"log/slog"
	"sync"
)

// Backend persists a session. Implementations report failures; TokenStore
// decides how to degrade.
type Backend interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context) error
}

// TokenStore is the process-wide holder of the session. All three fields are
// written and cleared together under the lock, so readers never observe a
// partially replaced session. A nil backend means no storage is available:
// reads return no session and writes are dropped.
type TokenStore struct {
	mu      sync.RWMutex
	backend Backend
	log     *slog.Logger
}

// NewTokenStore wraps backend. backend may be nil.
func NewTokenStore(backend Backend, log *slog.Logger) *TokenStore {
	if log == nil {
		log = slog.Default()
	}
	return &TokenStore{backend: backend, log: log}
}

// Read returns the stored session, or the zero session when none is available.
func (ts *TokenStore) Read(ctx context.Context) Session {
	if ts.backend == nil {
		return Session{}
	}

	ts.mu.RLock()
	defer ts.mu.RUnlock()

	s, err := ts.backend.Load(ctx)
	if err != nil {
		ts.log.Debug("session read failed", "error", err)
		return Session{}
	}
	return s
}

// Write replaces the stored session as a whole.
func (ts *TokenStore) Write(ctx context.Context, s Session) {
	if ts.backend == nil {
		return
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if err := ts.backend.Save(ctx, s); err != nil {
		ts.log.Warn("session write failed", "error", err)
	}
}

// Clear removes the stored session.
func (ts *TokenStore) Clear(ctx context.Context) {
	if ts.backend == nil {
		return
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if err := ts.backend.Delete(ctx); err != nil {
		ts.log.Warn("session clear failed", "error", err)
	}
}

// swap runs fn on the current session and stores its result while holding the
// write lock, so no other writer can interleave. If fn fails nothing is written.
func (ts *TokenStore) swap(ctx context.Context, fn func(cur Session) (Session, error)) (Session, error) {
	if ts.backend == nil {
		return fn(Session{})
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	cur, err := ts.backend.Load(ctx)
	if err != nil {
		cur = Session{}
	}
	next, err := fn(cur)
	if err != nil {
		return Session{}, err
	}
	if err := ts.backend.Save(ctx, next); err != nil {
		ts.log.Warn("session write failed", "error", err)
	}
	return next, nil
}

// MemoryBackend keeps the session in process memory.
type MemoryBackend struct {
	mu sync.Mutex
	s  Session
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Load(_ context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s, nil
}

func (m *MemoryBackend) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = s
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = Session{}
	return nil
}
