package memory

import (
	"context"
	"sync"

	"github.com/taskloom/taskloom/core"
)

// InMemoryHistory is a process-local History. A single mutex serializes all
// read-modify-write cycles, which is the required lost-update guard; per-chat
// sharding is unnecessary at the volumes a single process handles.
type InMemoryHistory struct {
	mu       sync.Mutex
	sessions map[string][]core.Message
}

// NewInMemoryHistory creates an empty history store.
func NewInMemoryHistory() *InMemoryHistory {
	return &InMemoryHistory{sessions: map[string][]core.Message{}}
}

// Get returns a defensive copy of the chat's transcript.
func (h *InMemoryHistory) Get(_ context.Context, chatID string) ([]core.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := h.sessions[chatID]
	out := make([]core.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// AppendTurn appends the user/assistant pair under the store lock.
func (h *InMemoryHistory) AppendTurn(_ context.Context, chatID string, user, assistant core.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[chatID] = append(h.sessions[chatID], user, assistant)
	return nil
}

// Clear removes the chat's transcript.
func (h *InMemoryHistory) Clear(_ context.Context, chatID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sessions, chatID)
	return nil
}
