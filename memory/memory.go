// Package memory contains the conversation-history and semantic-recall
// collaborators consumed by the agent loop. History stores must serialize
// read-modify-write per chat identity: concurrent turns for the same chat
// must never lose an appended pair.
package memory

import (
	"context"

	"github.com/taskloom/taskloom/core"
)

// History persists per-chat conversation transcripts. AppendTurn writes the
// user/assistant pair atomically: both messages or neither.
type History interface {
	Get(ctx context.Context, chatID string) ([]core.Message, error)
	AppendTurn(ctx context.Context, chatID string, user, assistant core.Message) error
	Clear(ctx context.Context, chatID string) error
}

// SemanticResult is one ranked recall hit.
type SemanticResult struct {
	Text     string
	Metadata map[string]any
	Score    float64
}

// SemanticStore provides optional long-term recall. The agent loop works
// correctly without one configured.
type SemanticStore interface {
	Add(ctx context.Context, text string, metadata map[string]any) error
	Search(ctx context.Context, query string, k int) ([]SemanticResult, error)
}
