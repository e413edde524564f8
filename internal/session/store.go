// Package session keeps per-conversation transcripts and serializes the
// turns of each conversation.
package session

import (
	"context"
	"sync"

	"cognichat/models"
)

// TranscriptStore holds the ordered transcript of each session.
type TranscriptStore interface {
	Append(ctx context.Context, sessionID string, entry models.TranscriptEntry) error
	Entries(ctx context.Context, sessionID string) ([]models.TranscriptEntry, error)
	// Clear empties the transcript but keeps the session usable.
	Clear(ctx context.Context, sessionID string) error
	// Delete drops the transcript entirely.
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore keeps transcripts in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	transcripts map[string][]models.TranscriptEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{transcripts: make(map[string][]models.TranscriptEntry)}
}

func (m *MemoryStore) Append(ctx context.Context, sessionID string, entry models.TranscriptEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcripts[sessionID] = append(m.transcripts[sessionID], entry)
	return nil
}

func (m *MemoryStore) Entries(ctx context.Context, sessionID string) ([]models.TranscriptEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.transcripts[sessionID]
	out := make([]models.TranscriptEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transcripts[sessionID]; ok {
		m.transcripts[sessionID] = nil
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transcripts, sessionID)
	return nil
}
