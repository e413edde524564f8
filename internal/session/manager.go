package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cognichat/internal/logger"
	"cognichat/models"

	"github.com/google/uuid"
)

// Asker answers a single question against the shared index.
type Asker interface {
	Ask(ctx context.Context, question string) (*models.Answer, error)
}

// Session is one conversation. Its turns run one at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	turn       sync.Mutex
	mu         sync.Mutex
	lastActive time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

// LastActive is the time of the session's most recent activity.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Manager owns the live sessions and routes their turns to the pipeline.
type Manager struct {
	asker Asker
	store TranscriptStore
	ttl   time.Duration
	now   func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager builds a Manager. Sessions idle longer than ttl are removed by
// ReapIdle; a zero ttl keeps them until End.
func NewManager(asker Asker, store TranscriptStore, ttl time.Duration) *Manager {
	return &Manager{
		asker:    asker,
		store:    store,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session with an empty transcript.
func (m *Manager) Create(ctx context.Context) *Session {
	now := m.now()
	s := &Session{ID: uuid.NewString(), CreatedAt: now, lastActive: now}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	logger.Debug("session created", "session_id", s.ID)
	return s
}

// Get returns the live session with id or models.ErrSessionNotFound.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return s, nil
}

// Ask runs one turn: the question is recorded, answered, and the answer is
// recorded with its sources. When answering fails the question stays in the
// transcript, no assistant entry is written, and the error is returned.
func (m *Manager) Ask(ctx context.Context, id, question string) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, models.ErrEmptyQuestion
	}
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	s.turn.Lock()
	defer s.turn.Unlock()
	// End may have run while this turn waited for the lock.
	if !m.live(s) {
		return nil, models.ErrSessionNotFound
	}
	s.touch(m.now())

	if err := m.store.Append(ctx, id, models.TranscriptEntry{
		Role:      models.RoleUser,
		Content:   question,
		Timestamp: m.now(),
	}); err != nil {
		return nil, fmt.Errorf("record question: %w", err)
	}

	answer, err := m.asker.Ask(ctx, question)
	if err != nil {
		logger.Warn("turn failed", "session_id", id, "error", err, "recoverable", models.IsRecoverable(err))
		return nil, err
	}

	if err := m.store.Append(ctx, id, models.TranscriptEntry{
		Role:      models.RoleAssistant,
		Content:   answer.Text,
		Sources:   answer.Sources(),
		Timestamp: m.now(),
	}); err != nil {
		return nil, fmt.Errorf("record answer: %w", err)
	}
	s.touch(m.now())
	return answer, nil
}

// History returns the session's transcript in order.
func (m *Manager) History(ctx context.Context, id string) ([]models.TranscriptEntry, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	s.touch(m.now())
	return m.store.Entries(ctx, id)
}

// Clear empties the session's transcript. The index is not touched.
func (m *Manager) Clear(ctx context.Context, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.turn.Lock()
	defer s.turn.Unlock()
	if !m.live(s) {
		return models.ErrSessionNotFound
	}
	s.touch(m.now())
	return m.store.Clear(ctx, id)
}

func (m *Manager) live(s *Session) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[s.ID] == s
}

// End removes the session and its transcript.
func (m *Manager) End(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return models.ErrSessionNotFound
	}

	// wait for an in-flight turn
	s.turn.Lock()
	defer s.turn.Unlock()
	logger.Debug("session ended", "session_id", id)
	return m.store.Delete(ctx, id)
}

// Count is the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ReapIdle ends every session idle for longer than the manager's TTL and
// returns how many were removed.
func (m *Manager) ReapIdle(ctx context.Context) (int, error) {
	if m.ttl <= 0 {
		return 0, nil
	}
	cutoff := m.now().Add(-m.ttl)

	m.mu.RLock()
	var idle []string
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	reaped := 0
	for _, id := range idle {
		err := m.End(ctx, id)
		if errors.Is(err, models.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return reaped, err
		}
		reaped++
	}
	if reaped > 0 {
		logger.Info("reaped idle sessions", "count", reaped)
	}
	return reaped, nil
}
