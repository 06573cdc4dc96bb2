package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abgdnv/catalog/internal/catalog"
	cerrors "github.com/abgdnv/catalog/internal/errors"
	"github.com/abgdnv/catalog/internal/state"
	"github.com/google/uuid"
)

// Config controls session behavior.
type Config struct {
	DebounceWindow time.Duration
	TTL            time.Duration
	MaxSessions    int
}

// Manager owns every session and the catalog snapshot they browse.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	snapshot *catalog.Snapshot
	loadErr  error
	loading  bool

	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates an empty manager; no catalog is loaded yet.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[uuid.UUID]*Session),
		cfg:      cfg,
		logger:   logger.With("component", "sessions"),
		now:      time.Now,
	}
}

// Create starts a new session positioned on the current catalog.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, fmt.Errorf("%w: %d sessions", cerrors.ErrSessionLimit, m.cfg.MaxSessions)
	}
	s := newSession(m.initialStateLocked(), m.cfg.DebounceWindow, m.now(), m.logger)
	m.sessions[s.id] = s
	m.logger.Debug("session created", "session_id", s.id.String(), "sessions", len(m.sessions))
	return s, nil
}

func (m *Manager) initialStateLocked() state.State {
	var a state.Action
	switch {
	case m.snapshot != nil:
		a = state.LoadSucceeded{Snapshot: m.snapshot}
	case m.loadErr != nil:
		a = state.LoadFailed{Err: m.loadErr}
	case m.loading:
		a = state.LoadStarted{}
	default:
		return state.New()
	}
	st, err := state.Reduce(state.New(), a)
	if err != nil {
		m.logger.Error("failed to build initial session state", "error", err)
		return state.New()
	}
	return st
}

// Get returns the session and marks it as used.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", cerrors.ErrSessionNotFound, id)
	}
	s.touch(m.now())
	return s, nil
}

// Delete closes and forgets the session.
func (m *Manager) Delete(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", cerrors.ErrSessionNotFound, id)
	}
	s.close()
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Snapshot returns the current catalog, or the error of the last failed load
// when no catalog has been loaded yet.
func (m *Manager) Snapshot() (*catalog.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot != nil {
		return m.snapshot, nil
	}
	if m.loadErr != nil {
		return nil, fmt.Errorf("%w: %w", cerrors.ErrCatalogUnavailable, m.loadErr)
	}
	return nil, cerrors.ErrCatalogUnavailable
}

// LoadStarted marks a fetch in progress. Sessions only show loading while no
// catalog has been loaded; a reload keeps serving the current one.
func (m *Manager) LoadStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading = true
	if m.snapshot == nil {
		m.broadcastLocked(state.LoadStarted{})
	}
}

// Loaded installs a new catalog snapshot in every session.
func (m *Manager) Loaded(snap *catalog.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading = false
	m.snapshot = snap
	m.loadErr = nil
	m.broadcastLocked(state.LoadSucceeded{Snapshot: snap})
}

// LoadFailed records a failed fetch. When a catalog is already loaded it
// stays in place and sessions are not disturbed.
func (m *Manager) LoadFailed(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading = false
	if m.snapshot != nil {
		m.logger.Warn("catalog reload failed, keeping current snapshot", "version", m.snapshot.Version(), "error", err)
		return
	}
	m.loadErr = err
	m.broadcastLocked(state.LoadFailed{Err: err})
}

func (m *Manager) broadcastLocked(a state.Action) {
	for _, s := range m.sessions {
		s.dispatch(a)
	}
}

// EvictIdle closes sessions not used for longer than the configured TTL.
func (m *Manager) EvictIdle() int {
	if m.cfg.TTL <= 0 {
		return 0
	}
	deadline := m.now().Add(-m.cfg.TTL)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.LastSeen().Before(deadline) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.close()
	}
	if len(idle) > 0 {
		m.logger.Info("evicted idle sessions", "count", len(idle))
	}
	return len(idle)
}

// Run evicts idle sessions until ctx is done, then closes every session.
func (m *Manager) Run(ctx context.Context) error {
	interval := m.cfg.TTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Close()
			return ctx.Err()
		case <-ticker.C:
			m.EvictIdle()
		}
	}
}

// Close closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
