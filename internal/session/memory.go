package session

import (
	"context"
	"sync"
	"time"
)

// Memory is a single-process Store. Expired entries are dropped lazily on
// access.
type Memory struct {
	// Now is the clock, overridable in tests.
	Now func() time.Time

	mu        sync.Mutex
	sessions  map[string]entry
	blacklist map[string]time.Time
}

type entry struct {
	token     string
	expiresAt time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		Now:       time.Now,
		sessions:  make(map[string]entry),
		blacklist: make(map[string]time.Time),
	}
}

func (m *Memory) PutSession(_ context.Context, subjectID, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.Now().Add(ttl)
	}
	m.sessions[subjectID] = entry{token: token, expiresAt: expiresAt}
	return nil
}

func (m *Memory) Session(_ context.Context, subjectID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[subjectID]
	if !ok {
		return "", ErrNotFound
	}
	if !e.expiresAt.IsZero() && !m.Now().Before(e.expiresAt) {
		delete(m.sessions, subjectID)
		return "", ErrNotFound
	}
	return e.token, nil
}

func (m *Memory) DeleteSession(_ context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, subjectID)
	return nil
}

func (m *Memory) Revoke(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blacklist[token] = m.Now().Add(ttl)
	return nil
}

func (m *Memory) IsRevoked(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt, ok := m.blacklist[token]
	if !ok {
		return false, nil
	}
	if !m.Now().Before(expiresAt) {
		delete(m.blacklist, token)
		return false, nil
	}
	return true, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
