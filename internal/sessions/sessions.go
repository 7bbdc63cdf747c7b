// Package sessions tracks per-session conversation state. Sessions
// live in a bounded LRU cache; the least recently used conversation is
// evicted when the cap is reached.
package sessions

import (
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/parleylabs/parley/internal/chat"
	"github.com/parleylabs/parley/internal/config"
)

// Session owns one conversation history. At most one run may be active
// per session; BeginRun enforces it.
type Session struct {
	ID        string
	History   *chat.History
	CreatedAt time.Time

	mu       sync.Mutex
	lastUsed time.Time
	running  bool
}

// BeginRun marks the session busy. Returns false if a run is already
// in flight.
func (s *Session) BeginRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.lastUsed = time.Now()
	return true
}

// EndRun marks the session idle again.
func (s *Session) EndRun() {
	s.mu.Lock()
	s.running = false
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// Running reports whether a run is in flight.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Touch bumps the last-used time.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// LastUsed returns the last activity time.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Info is a session summary for listings.
type Info struct {
	ID        string    `json:"id"`
	Turns     int       `json:"turns"`
	Tokens    int       `json:"tokens"`
	Running   bool      `json:"running"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

// Manager hands out sessions by ID, creating them on first use.
type Manager struct {
	mu           sync.Mutex
	cache        *lru.Cache[string, *Session]
	systemPrompt string
}

// NewManager creates a manager holding at most maxSessions sessions.
func NewManager(maxSessions int, systemPrompt string) (*Manager, error) {
	if maxSessions <= 0 {
		maxSessions = config.DefaultMaxSessions
	}
	cache, err := lru.NewWithEvict(maxSessions, func(id string, s *Session) {
		slog.Info("session evicted", "session", id, "turns", s.History.Len())
	})
	if err != nil {
		return nil, err
	}
	return &Manager{cache: cache, systemPrompt: systemPrompt}, nil
}

// Get returns the session for id, creating it if absent. The id is
// normalized before lookup.
func (m *Manager) Get(id string) *Session {
	key := config.NormalizeSessionID(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.cache.Get(key); ok {
		s.Touch()
		return s
	}
	s := m.newSession(key)
	m.cache.Add(key, s)
	slog.Debug("session created", "session", key)
	return s
}

// Reset discards the session's history and returns the fresh session.
func (m *Manager) Reset(id string) *Session {
	key := config.NormalizeSessionID(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.newSession(key)
	m.cache.Add(key, s)
	slog.Info("session reset", "session", key)
	return s
}

// Remove drops a session outright.
func (m *Manager) Remove(id string) {
	key := config.NormalizeSessionID(id)
	m.mu.Lock()
	m.cache.Remove(key)
	m.mu.Unlock()
}

// List summarizes all live sessions, most recently used first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := m.cache.Keys() // oldest to newest
	out := make([]Info, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		s, ok := m.cache.Peek(keys[i])
		if !ok {
			continue
		}
		out = append(out, Info{
			ID:        s.ID,
			Turns:     s.History.Len(),
			Tokens:    s.History.EstimateTokens(),
			Running:   s.Running(),
			CreatedAt: s.CreatedAt,
			LastUsed:  s.LastUsed(),
		})
	}
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}

func (m *Manager) newSession(key string) *Session {
	now := time.Now()
	return &Session{
		ID:        key,
		History:   chat.NewHistory(m.systemPrompt),
		CreatedAt: now,
		lastUsed:  now,
	}
}
