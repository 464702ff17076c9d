package memory

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskloom/taskloom/core"
)

func TestInMemoryHistoryAppendAndGet(t *testing.T) {
	h := NewInMemoryHistory()
	ctx := context.Background()

	msgs, err := h.Get(ctx, "chat-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, h.AppendTurn(ctx, "chat-1",
		core.UserMessage("hi"), core.AssistantMessage("hello")))

	msgs, err = h.Get(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.Equal(t, core.RoleAssistant, msgs[1].Role)

	other, err := h.Get(ctx, "chat-2")
	require.NoError(t, err)
	assert.Empty(t, other, "chats are isolated")
}

func TestInMemoryHistoryGetIsDefensiveCopy(t *testing.T) {
	h := NewInMemoryHistory()
	ctx := context.Background()
	require.NoError(t, h.AppendTurn(ctx, "chat-1",
		core.UserMessage("hi"), core.AssistantMessage("hello")))

	msgs, _ := h.Get(ctx, "chat-1")
	msgs[0].Content = "tampered"

	again, _ := h.Get(ctx, "chat-1")
	assert.Equal(t, "hi", again[0].Content)
}

func TestInMemoryHistoryConcurrentAppends(t *testing.T) {
	h := NewInMemoryHistory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.AppendTurn(ctx, "chat-1",
				core.UserMessage("q"), core.AssistantMessage("a"))
		}()
	}
	wg.Wait()

	msgs, err := h.Get(ctx, "chat-1")
	require.NoError(t, err)
	assert.Len(t, msgs, 100, "no lost updates: every pair lands intact")
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, core.RoleUser, msgs[i].Role, "pairs never interleave")
		assert.Equal(t, core.RoleAssistant, msgs[i+1].Role)
	}
}

func TestInMemoryHistoryClear(t *testing.T) {
	h := NewInMemoryHistory()
	ctx := context.Background()
	require.NoError(t, h.AppendTurn(ctx, "chat-1",
		core.UserMessage("hi"), core.AssistantMessage("hello")))

	require.NoError(t, h.Clear(ctx, "chat-1"))
	msgs, err := h.Get(ctx, "chat-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestFileHistoryPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	ctx := context.Background()

	h, err := NewFileHistory(path)
	require.NoError(t, err)
	require.NoError(t, h.AppendTurn(ctx, "chat-1",
		core.UserMessage("hi"), core.AssistantMessage("hello")))

	reopened, err := NewFileHistory(path)
	require.NoError(t, err)
	msgs, err := reopened.Get(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestFileHistoryMissingFileIsEmpty(t *testing.T) {
	h, err := NewFileHistory(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	msgs, err := h.Get(context.Background(), "chat-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestFileHistoryCorruptFileIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileHistory(path)
	require.Error(t, err)
}

func TestFileHistoryClearPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	ctx := context.Background()

	h, err := NewFileHistory(path)
	require.NoError(t, err)
	require.NoError(t, h.AppendTurn(ctx, "chat-1",
		core.UserMessage("hi"), core.AssistantMessage("hello")))
	require.NoError(t, h.Clear(ctx, "chat-1"))

	reopened, err := NewFileHistory(path)
	require.NoError(t, err)
	msgs, err := reopened.Get(ctx, "chat-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestKeywordStoreRanksByOverlap(t *testing.T) {
	s := NewKeywordStore()
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "the weather in Lisbon is sunny", nil))
	require.NoError(t, s.Add(ctx, "my favorite color is blue", map[string]any{"chat_id": "c1"}))
	require.NoError(t, s.Add(ctx, "weather in Lisbon tomorrow looks rainy", nil))

	hits, err := s.Search(ctx, "what is the weather in Lisbon", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Contains(t, hits[0].Text, "Lisbon")
	assert.Contains(t, hits[1].Text, "Lisbon")
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
}

func TestKeywordStoreNoOverlapNoHits(t *testing.T) {
	s := NewKeywordStore()
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "completely unrelated text", nil))

	hits, err := s.Search(ctx, "quantum entanglement", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestKeywordStoreIgnoresEmptyText(t *testing.T) {
	s := NewKeywordStore()
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, "", nil))

	hits, err := s.Search(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
