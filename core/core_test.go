package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepLimiter(t *testing.T) {
	sl := NewStepLimiter(2)

	require.NoError(t, sl.Increment())
	require.NoError(t, sl.Increment())
	assert.Error(t, sl.Increment())
	assert.Equal(t, 3, sl.Count())
}

func TestStepLimiterUnlimited(t *testing.T) {
	sl := NewStepLimiter(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, sl.Increment())
	}
	assert.Equal(t, -1, sl.Remaining())
}

func TestTailWithoutSystem(t *testing.T) {
	history := []Message{
		SystemMessage("instruction"),
		UserMessage("one"),
		AssistantMessage("two"),
		SystemMessage("note"),
		UserMessage("three"),
	}

	tail := TailWithoutSystem(history, 2)
	require.Len(t, tail, 2)
	assert.Equal(t, "two", tail[0].Content)
	assert.Equal(t, "three", tail[1].Content)

	all := TailWithoutSystem(history, 0)
	assert.Len(t, all, 3, "n == 0 keeps everything non-system")
}

func TestExecutionContextState(t *testing.T) {
	ec := NewExecutionContext(context.Background(), "chat-1", "turn-1", nil)

	_, ok := ec.GetState("missing")
	assert.False(t, ok)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ec.SetState("key", n)
		}(i)
	}
	wg.Wait()

	v, ok := ec.GetState("key")
	assert.True(t, ok)
	assert.IsType(t, 0, v)
}

func TestExecutionContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ec := NewExecutionContext(ctx, "chat-1", "turn-1", nil)

	assert.NoError(t, ec.Err())
	cancel()
	assert.Error(t, ec.Err())
	select {
	case <-ec.Done():
	default:
		t.Fatal("Done channel should be closed after cancel")
	}
}

func TestEventConstructors(t *testing.T) {
	ev := NewToolUseEvent("get_weather", map[string]any{"city": "Lisbon"})
	assert.Equal(t, EventToolUse, ev.Type)
	assert.Equal(t, "get_weather", ev.Tool)
	assert.False(t, ev.Timestamp.IsZero())

	final := NewFinalEvent("done")
	assert.Equal(t, EventFinal, final.Type)
	assert.Equal(t, "done", final.Content)

	plan := NewPlanCreatedEvent([]TaskSummary{{ID: "1", Tool: "t"}})
	require.Len(t, plan.Plan, 1)
	assert.Equal(t, "1", plan.Plan[0].ID)
}
