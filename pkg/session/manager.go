package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/programstore"
	"github.com/antibyte/retrobasic/pkg/shared"
	"github.com/antibyte/retrobasic/pkg/tinybasic"
	"github.com/google/uuid"
)

// ErrTooManySessions is returned by Create when max_sessions is reached.
var ErrTooManySessions = errors.New("maximum number of sessions reached")

// Limits steuert Anzahl und Lebensdauer der Sessions
type Limits struct {
	MaxSessions     int
	MaxInactiveTime time.Duration
	CleanupInterval time.Duration
	OutputBuffer    int
	InputQueueSize  int
}

// LimitsFromConfig liest [Security] und [Network].
func LimitsFromConfig() Limits {
	return Limits{
		MaxSessions:     configuration.GetInt("Security", "max_sessions", 50),
		MaxInactiveTime: configuration.GetDuration("Security", "max_inactive_time", 30*time.Minute),
		CleanupInterval: configuration.GetDuration("Security", "session_cleanup_interval", 5*time.Minute),
		OutputBuffer:    configuration.GetInt("Network", "max_channel_buffer", 1000),
		InputQueueSize:  configuration.GetInt("Network", "input_queue_size", 64),
	}
}

// Manager verwaltet alle aktiven Sessions
type Manager struct {
	limits  Limits
	db      *programstore.DB
	prompts *shared.PromptManager
	options func() []tinybasic.Option

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager. db may be nil; programs then live in memory
// and vanish with their session.
func NewManager(limits Limits, db *programstore.DB, prompts *shared.PromptManager) *Manager {
	if limits.OutputBuffer <= 0 {
		limits.OutputBuffer = 1000
	}
	if limits.InputQueueSize <= 0 {
		limits.InputQueueSize = 64
	}
	return &Manager{
		limits:   limits,
		db:       db,
		prompts:  prompts,
		options:  tinybasic.ConfigOptions,
		sessions: make(map[string]*Session),
	}
}

// Prompts returns the banner renderer.
func (m *Manager) Prompts() *shared.PromptManager {
	return m.prompts
}

// Create starts a new session. owner names the stored program; an empty
// owner uses the session ID.
func (m *Manager) Create(owner string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.limits.MaxSessions > 0 && len(m.sessions) >= m.limits.MaxSessions {
		logger.SessionWarn("session limit reached: %d/%d", len(m.sessions), m.limits.MaxSessions)
		return nil, fmt.Errorf("%w (%d)", ErrTooManySessions, m.limits.MaxSessions)
	}

	id := uuid.New().String()
	if owner == "" {
		owner = id
	}
	opts := m.options()
	if m.db != nil {
		opts = append(opts, tinybasic.WithProgramStore(m.db.Store(owner)))
	}

	s := newSession(id, owner, m.limits.OutputBuffer, m.limits.InputQueueSize, opts)
	m.sessions[id] = s
	logger.SessionInfo("session %s created for %s (%d active)", id, owner, len(m.sessions))
	return s, nil
}

// Get looks up a session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Remove closes and forgets a session.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	logger.SessionInfo("session %s removed", id)
	return true
}

// CleanupInactive entfernt Sessions ohne Eingabe seit maxInactive.
// Sessions with an attached terminal are kept. A detached session is removed
// even while a program runs; closing it breaks the run.
func (m *Manager) CleanupInactive(maxInactive time.Duration) int {
	now := time.Now()
	var stale []string

	m.mu.RLock()
	for id, s := range m.sessions {
		if s.attached.Load() {
			continue
		}
		if now.Sub(s.LastActivity()) > maxInactive {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, id := range stale {
		if m.Remove(id) {
			removed++
		}
	}
	if removed > 0 {
		logger.SessionInfo("cleaned up %d inactive sessions", removed)
	}
	return removed
}

// Run bereinigt periodisch inaktive Sessions, bis ctx endet. Danach werden
// alle Sessions geschlossen.
func (m *Manager) Run(ctx context.Context) {
	interval := m.limits.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return
		case <-ticker.C:
			if m.limits.MaxInactiveTime > 0 {
				m.CleanupInactive(m.limits.MaxInactiveTime)
			}
		}
	}
}

// CloseAll removes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}

// CreateSession implements auth.SessionStore.
func (m *Manager) CreateSession(owner string) (string, error) {
	s, err := m.Create(owner)
	if err != nil {
		return "", err
	}
	return s.ID, nil
}

// RemoveSession implements auth.SessionStore.
func (m *Manager) RemoveSession(id string) bool {
	return m.Remove(id)
}
