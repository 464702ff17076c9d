package agent

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskloom/taskloom/core"
	"github.com/taskloom/taskloom/memory"
	"github.com/taskloom/taskloom/model"
	"github.com/taskloom/taskloom/tool"
)

// scriptedModel returns one response batch per Generate call, in order. The
// last batch repeats once the script is exhausted, which keeps loop-forever
// scenarios (step cap tests) well defined.
type scriptedModel struct {
	mu     sync.Mutex
	script [][]model.Response
	calls  int
}

func (m *scriptedModel) Generate(_ context.Context, _ model.Request) <-chan model.Response {
	m.mu.Lock()
	var batch []model.Response
	if len(m.script) > 0 {
		batch = m.script[0]
		if len(m.script) > 1 {
			m.script = m.script[1:]
		}
	}
	m.calls++
	m.mu.Unlock()

	out := make(chan model.Response, len(batch)+1)
	for _, r := range batch {
		out <- r
	}
	close(out)
	return out
}

func (m *scriptedModel) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "test", SupportsTools: true}
}

func finalBatch(text string) []model.Response {
	return []model.Response{
		{Partial: true, Content: text[:len(text)/2]},
		{Partial: true, Content: text[len(text)/2:]},
		{Content: text, Finish: "stop"},
	}
}

func jsonBatch(payload string) []model.Response {
	return []model.Response{{Content: payload, Finish: "stop"}}
}

func timeTool() tool.Tool {
	return tool.NewFunctionTool(
		"get_current_time",
		"reports a fixed time",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ExecutionContext, _ map[string]any) (any, error) {
			return "12:00", nil
		},
	)
}

func collectEvents(t *testing.T, ch <-chan core.Event) []core.Event {
	t.Helper()
	var events []core.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func eventTypes(events []core.Event) []core.EventType {
	out := make([]core.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func finalsOf(events []core.Event) []core.Event {
	var finals []core.Event
	for _, ev := range events {
		if ev.Type == core.EventFinal {
			finals = append(finals, ev)
		}
	}
	return finals
}

func TestDirectAnswerTurn(t *testing.T) {
	llm := &scriptedModel{script: [][]model.Response{
		jsonBatch(`{"decision": "RESPOND_DIRECTLY", "reasoning": "greeting"}`),
		finalBatch("Hello! How can I help?"),
	}}
	history := memory.NewInMemoryHistory()
	a := New(llm, tool.NewRegistry(), func(o *Options) { o.History = history })

	events := collectEvents(t, a.Run(context.Background(), "chat-1", "hi"))

	finals := finalsOf(events)
	require.Len(t, finals, 1, "exactly one final event per turn")
	assert.Equal(t, "Hello! How can I help?", finals[0].Content)
	assert.Equal(t, core.EventFinal, events[len(events)-1].Type, "final terminates the stream")

	var streamed strings.Builder
	for _, ev := range events {
		if ev.Type == core.EventFinalStream {
			streamed.WriteString(ev.Content)
		}
	}
	assert.Equal(t, "Hello! How can I help?", streamed.String())

	msgs, err := history.Get(context.Background(), "chat-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2, "one user/assistant pair per turn")
	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, core.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hello! How can I help?", msgs[1].Content)
}

func TestToolTurnLoopsBackToDecision(t *testing.T) {
	llm := &scriptedModel{script: [][]model.Response{
		jsonBatch(`{"decision": "USE_TOOL", "reasoning": "needs time", "tool_name": "get_current_time", "tool_args": {}}`),
		jsonBatch(`{"decision": "RESPOND_DIRECTLY", "reasoning": "have the observation"}`),
		finalBatch("It is 12:00."),
	}}
	registry := tool.NewRegistry()
	registry.MustRegister(timeTool())
	a := New(llm, registry)

	events := collectEvents(t, a.Run(context.Background(), "chat-1", "what time is it?"))

	types := eventTypes(events)
	assert.Contains(t, types, core.EventToolUse)
	assert.Contains(t, types, core.EventObservation)

	var observation core.Event
	for _, ev := range events {
		if ev.Type == core.EventObservation {
			observation = ev
		}
	}
	assert.Equal(t, "12:00", observation.Result)

	finals := finalsOf(events)
	require.Len(t, finals, 1)
	assert.Equal(t, "It is 12:00.", finals[0].Content)
}

func TestToolFailureContinuesTurn(t *testing.T) {
	llm := &scriptedModel{script: [][]model.Response{
		jsonBatch(`{"decision": "USE_TOOL", "reasoning": "try it", "tool_name": "no_such_tool", "tool_args": {}}`),
		jsonBatch(`{"decision": "RESPOND_DIRECTLY", "reasoning": "explain the failure"}`),
		finalBatch("I couldn't look that up."),
	}}
	a := New(llm, tool.NewRegistry())

	events := collectEvents(t, a.Run(context.Background(), "chat-1", "look it up"))

	types := eventTypes(events)
	assert.Contains(t, types, core.EventError)

	finals := finalsOf(events)
	require.Len(t, finals, 1)
	assert.Equal(t, "I couldn't look that up.", finals[0].Content)
}

func TestPlanTurn(t *testing.T) {
	llm := &scriptedModel{script: [][]model.Response{
		jsonBatch(`{"decision": "CREATE_PLAN", "reasoning": "two steps", "description": "get the time twice"}`),
		jsonBatch(`[
			{"id": "1", "tool": "get_current_time", "args": {}, "dependencies": []},
			{"id": "2", "tool": "get_current_time", "args": {}, "dependencies": ["1"]}
		]`),
		jsonBatch(`{"decision": "RESPOND_DIRECTLY", "reasoning": "plan finished"}`),
		finalBatch("Both checks say 12:00."),
	}}
	registry := tool.NewRegistry()
	registry.MustRegister(timeTool())
	a := New(llm, registry)

	events := collectEvents(t, a.Run(context.Background(), "chat-1", "check the time twice"))

	var planEvent core.Event
	for _, ev := range events {
		if ev.Type == core.EventPlanCreated {
			planEvent = ev
		}
	}
	require.Len(t, planEvent.Plan, 2)
	assert.Equal(t, "1", planEvent.Plan[0].ID)
	assert.Equal(t, []string{"1"}, planEvent.Plan[1].Dependencies)

	types := eventTypes(events)
	assert.Contains(t, types, core.EventExecuting)
	assert.Contains(t, types, core.EventToolUse)
	assert.Contains(t, types, core.EventObservation)

	finals := finalsOf(events)
	require.Len(t, finals, 1)
	assert.Equal(t, "Both checks say 12:00.", finals[0].Content)
}

func TestStepLimitTerminatesGracefully(t *testing.T) {
	// The script's last batch repeats, so the router keeps selecting the tool
	// forever; the limiter must cut the loop.
	llm := &scriptedModel{script: [][]model.Response{
		jsonBatch(`{"decision": "USE_TOOL", "reasoning": "again", "tool_name": "get_current_time", "tool_args": {}}`),
	}}
	registry := tool.NewRegistry()
	registry.MustRegister(timeTool())
	a := New(llm, registry, func(o *Options) { o.MaxSteps = 3 })

	events := collectEvents(t, a.Run(context.Background(), "chat-1", "loop forever"))

	finals := finalsOf(events)
	require.Len(t, finals, 1)
	assert.Contains(t, finals[0].Content, "step limit")
}

func TestBackendErrorProducesFinal(t *testing.T) {
	llm := &scriptedModel{script: [][]model.Response{
		jsonBatch(`{"decision": "RESPOND_DIRECTLY", "reasoning": "ok"}`),
		{model.ErrorResponse("rate limited")},
	}}
	history := memory.NewInMemoryHistory()
	a := New(llm, tool.NewRegistry(), func(o *Options) { o.History = history })

	events := collectEvents(t, a.Run(context.Background(), "chat-1", "hi"))

	types := eventTypes(events)
	assert.Contains(t, types, core.EventError)

	finals := finalsOf(events)
	require.Len(t, finals, 1)
	assert.Contains(t, finals[0].Content, "problem")
}

func TestCancelledTurnEmitsNothingFinal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	llm := &scriptedModel{script: [][]model.Response{
		jsonBatch(`{"decision": "RESPOND_DIRECTLY", "reasoning": "ok"}`),
		finalBatch("too late"),
	}}
	history := memory.NewInMemoryHistory()
	a := New(llm, tool.NewRegistry(), func(o *Options) { o.History = history })

	events := collectEvents(t, a.Run(ctx, "chat-1", "hi"))

	assert.Empty(t, finalsOf(events), "cancelled turn has no final event")

	msgs, err := history.Get(context.Background(), "chat-1")
	require.NoError(t, err)
	assert.Empty(t, msgs, "cancelled turn persists nothing")
}

func TestSemanticRecallRoundTrip(t *testing.T) {
	llm := &scriptedModel{script: [][]model.Response{
		jsonBatch(`{"decision": "RESPOND_DIRECTLY", "reasoning": "ok"}`),
		finalBatch("Your favorite color is blue."),
	}}
	semantic := memory.NewKeywordStore()
	a := New(llm, tool.NewRegistry(), func(o *Options) { o.Semantic = semantic })

	collectEvents(t, a.Run(context.Background(), "chat-1", "my favorite color is blue"))

	hits, err := semantic.Search(context.Background(), "favorite color", 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits, "completed turn is written to the semantic store")
	assert.Contains(t, hits[0].Text, "favorite color is blue")
}

func TestReactStrategyToolLoop(t *testing.T) {
	llm := &scriptedModel{script: [][]model.Response{
		{{ToolCalls: []core.ToolCall{{ID: "call_1", Name: "get_current_time", Arguments: "{}"}}, Finish: "tool_calls"}},
		finalBatch("It is 12:00."),
	}}
	registry := tool.NewRegistry()
	registry.MustRegister(timeTool())
	a := New(llm, registry, func(o *Options) { o.Strategy = NewReactStrategy() })

	events := collectEvents(t, a.Run(context.Background(), "chat-1", "what time is it?"))

	types := eventTypes(events)
	assert.Contains(t, types, core.EventToolUse)
	assert.Contains(t, types, core.EventObservation)
	assert.Contains(t, types, core.EventFinalStream)

	finals := finalsOf(events)
	require.Len(t, finals, 1)
	assert.Equal(t, "It is 12:00.", finals[0].Content)
}

func TestReactStrategyReassemblesFragments(t *testing.T) {
	llm := &scriptedModel{script: [][]model.Response{
		{
			{Partial: true, Fragments: []model.ToolCallFragment{{Index: 0, ID: "call_1", Name: "get_current_time"}}},
			{Partial: true, Fragments: []model.ToolCallFragment{{Index: 0, Arguments: "{"}}},
			{Partial: true, Fragments: []model.ToolCallFragment{{Index: 0, Arguments: "}"}}},
			{Finish: "tool_calls"},
		},
		finalBatch("It is 12:00."),
	}}
	registry := tool.NewRegistry()
	registry.MustRegister(timeTool())
	a := New(llm, registry, func(o *Options) { o.Strategy = NewReactStrategy() })

	events := collectEvents(t, a.Run(context.Background(), "chat-1", "what time is it?"))

	var toolUse core.Event
	for _, ev := range events {
		if ev.Type == core.EventToolUse {
			toolUse = ev
		}
	}
	assert.Equal(t, "get_current_time", toolUse.Tool, "fragments reassemble into a runnable call")

	finals := finalsOf(events)
	require.Len(t, finals, 1)
	assert.Equal(t, "It is 12:00.", finals[0].Content)
}

func TestReactStrategyBuffersDeltasUntilFinal(t *testing.T) {
	// Deltas from a response that turns out to request a tool call must not
	// leak as final_stream fragments.
	llm := &scriptedModel{script: [][]model.Response{
		{
			{Partial: true, Content: "Let me check."},
			{ToolCalls: []core.ToolCall{{ID: "call_1", Name: "get_current_time", Arguments: "{}"}}, Finish: "tool_calls"},
		},
		finalBatch("It is 12:00."),
	}}
	registry := tool.NewRegistry()
	registry.MustRegister(timeTool())
	a := New(llm, registry, func(o *Options) { o.Strategy = NewReactStrategy() })

	events := collectEvents(t, a.Run(context.Background(), "chat-1", "what time is it?"))

	var streamed strings.Builder
	for _, ev := range events {
		if ev.Type == core.EventFinalStream {
			streamed.WriteString(ev.Content)
		}
	}
	assert.Equal(t, "It is 12:00.", streamed.String())
}
