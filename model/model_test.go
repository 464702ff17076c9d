package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskloom/taskloom/core"
)

func TestCollectDrainsStream(t *testing.T) {
	ch := make(chan Response, 4)
	ch <- Response{Partial: true, Content: "Hel"}
	ch <- Response{Partial: true, Content: "lo"}
	ch <- Response{Content: "Hello", Finish: "stop"}
	close(ch)

	resp := Collect(ch)
	assert.Equal(t, "Hello", resp.Content)
	assert.Equal(t, "stop", resp.Finish)
}

func TestCollectAssemblesWhenFinalIsEmpty(t *testing.T) {
	ch := make(chan Response, 3)
	ch <- Response{Partial: true, Content: "ab"}
	ch <- Response{Partial: true, Content: "c"}
	close(ch)

	resp := Collect(ch)
	assert.Equal(t, "abc", resp.Content)
}

func TestCollectReturnsErrorSentinel(t *testing.T) {
	ch := make(chan Response, 2)
	ch <- Response{Partial: true, Content: "par"}
	ch <- ErrorResponse("rate limited: %d", 429)
	close(ch)

	resp := Collect(ch)
	assert.Equal(t, "rate limited: 429", resp.Err)
}

func TestMockModelCannedResponse(t *testing.T) {
	m := NewMockModel("test", "mock")
	m.AddResponse("ping", "pong")

	resp := Collect(m.Generate(context.Background(), Request{
		Messages: []core.Message{core.UserMessage("ping")},
	}))
	assert.Equal(t, "pong", resp.Content)
}

func TestMockModelStreaming(t *testing.T) {
	m := NewMockModel("test", "mock")
	m.AddResponse("ping", "pong")

	var partials string
	var final Response
	for resp := range m.Generate(context.Background(), Request{
		Messages: []core.Message{core.UserMessage("ping")},
		Stream:   true,
	}) {
		if resp.Partial {
			partials += resp.Content
			continue
		}
		final = resp
	}

	assert.Equal(t, "pong", partials)
	assert.Equal(t, "pong", final.Content)
}

func TestMockModelToolCalls(t *testing.T) {
	m := NewMockModel("test", "mock")
	m.AddToolCallResponse("use the tool", []core.ToolCall{
		{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Lisbon"}`},
	})

	resp := Collect(m.Generate(context.Background(), Request{
		Messages: []core.Message{core.UserMessage("use the tool")},
	}))

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "get_weather", resp.ToolCalls[0].Name)
	assert.Equal(t, "tool_calls", resp.Finish)
}
