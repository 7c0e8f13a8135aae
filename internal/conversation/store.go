// Package conversation keeps per-conversation message history in memory.
// History is volatile: it lives for the process lifetime and is lost on
// restart.
package conversation

import (
	"sync"

	"github.com/sarasa-inc/assistant-server/internal/models"
)

// Store holds rolling conversation history keyed by conversation ID. The
// interface exists so the in-memory implementation can be swapped for a
// persistent one without touching the answering pipeline.
type Store interface {
	// Append adds a message to the conversation and returns the history
	// after truncation.
	Append(conversationID string, msg models.Message) []models.Message

	// History returns the current history for a conversation. An unknown
	// conversation ID yields an empty history, never an error.
	History(conversationID string) []models.Message
}

// MemoryStore is the default in-memory Store. Concurrent appends to the
// same conversation are not serialized; last writer wins on append order.
type MemoryStore struct {
	mu      sync.RWMutex
	limit   int
	history map[string][]models.Message
}

// NewMemoryStore creates a store that retains at most limit messages per
// conversation, dropping the oldest first.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = 6
	}
	return &MemoryStore{
		limit:   limit,
		history: make(map[string][]models.Message),
	}
}

func (s *MemoryStore) Append(conversationID string, msg models.Message) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.history[conversationID], msg)
	if len(msgs) > s.limit {
		msgs = msgs[len(msgs)-s.limit:]
	}
	s.history[conversationID] = msgs

	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (s *MemoryStore) History(conversationID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.history[conversationID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}
