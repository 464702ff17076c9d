package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/taskloom/taskloom/core"
)

// FileHistory is a History backed by a single JSON file mapping chat ids to
// transcripts. Every mutation is written through; the file is replaced via a
// temp-file rename so a crash mid-write never leaves a torn document.
type FileHistory struct {
	mu       sync.Mutex
	path     string
	sessions map[string][]core.Message
}

// NewFileHistory loads (or initializes) the store at path. A missing file is
// an empty store; an unreadable or corrupt file is an error so silent history
// loss is impossible.
func NewFileHistory(path string) (*FileHistory, error) {
	h := &FileHistory{path: path, sessions: map[string][]core.Message{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return h, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history file: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &h.sessions); err != nil {
			return nil, fmt.Errorf("parsing history file %s: %w", path, err)
		}
	}
	return h, nil
}

// Get returns a defensive copy of the chat's transcript.
func (h *FileHistory) Get(_ context.Context, chatID string) ([]core.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := h.sessions[chatID]
	out := make([]core.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// AppendTurn appends the pair and persists under the store lock. On write
// failure the in-memory state is rolled back so memory and disk agree.
func (h *FileHistory) AppendTurn(_ context.Context, chatID string, user, assistant core.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.sessions[chatID]
	h.sessions[chatID] = append(prev, user, assistant)
	if err := h.saveLocked(); err != nil {
		h.sessions[chatID] = prev
		return err
	}
	return nil
}

// Clear removes the chat's transcript and persists.
func (h *FileHistory) Clear(_ context.Context, chatID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, existed := h.sessions[chatID]
	delete(h.sessions, chatID)
	if err := h.saveLocked(); err != nil {
		if existed {
			h.sessions[chatID] = prev
		}
		return err
	}
	return nil
}

func (h *FileHistory) saveLocked() error {
	if dir := filepath.Dir(h.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating history dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(h.sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing history file: %w", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return fmt.Errorf("replacing history file: %w", err)
	}
	return nil
}
