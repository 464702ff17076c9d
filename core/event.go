package core

import "time"

// EventType enumerates the progress event categories a turn emits.
type EventType string

const (
	// EventThinking signals the start of a loop iteration or reasoning phase.
	EventThinking EventType = "thinking"
	// EventPlanCreated carries the task summaries of a freshly planned graph.
	EventPlanCreated EventType = "plan_created"
	// EventToolUse is emitted immediately before a tool invocation.
	EventToolUse EventType = "tool_use"
	// EventObservation carries the stringified result of an invocation.
	EventObservation EventType = "observation"
	// EventExecuting signals that plan execution has started.
	EventExecuting EventType = "executing"
	// EventFinalStream carries one incremental fragment of the final answer.
	EventFinalStream EventType = "final_stream"
	// EventFinal terminates the stream with the complete answer text.
	EventFinal EventType = "final"
	// EventError reports a recovered failure; it is never terminal on its own.
	EventError EventType = "error"
)

// TaskSummary is the serializable view of a planned task carried by
// plan_created events.
type TaskSummary struct {
	ID           string         `json:"id"`
	Tool         string         `json:"tool"`
	Args         map[string]any `json:"args,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
}

// Event is one item in the ordered status stream a turn emits to its caller.
// Exactly one EventFinal terminates the sequence. Fields are populated
// according to Type; unused fields stay zero.
type Event struct {
	Type      EventType      `json:"type"`
	Message   string         `json:"message,omitempty"` // thinking / executing / error text
	Tool      string         `json:"tool,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Result    string         `json:"result,omitempty"`  // observation payload
	Content   string         `json:"content,omitempty"` // final_stream fragment or final answer
	Plan      []TaskSummary  `json:"plan,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func newEvent(t EventType) Event {
	return Event{Type: t, Timestamp: time.Now().UTC()}
}

// NewThinkingEvent signals the start of a reasoning phase.
func NewThinkingEvent(message string) Event {
	e := newEvent(EventThinking)
	e.Message = message
	return e
}

// NewPlanCreatedEvent carries the summaries of a planned graph.
func NewPlanCreatedEvent(plan []TaskSummary) Event {
	e := newEvent(EventPlanCreated)
	e.Plan = plan
	return e
}

// NewToolUseEvent is emitted before invoking the named tool.
func NewToolUseEvent(tool string, args map[string]any) Event {
	e := newEvent(EventToolUse)
	e.Tool = tool
	e.Args = args
	return e
}

// NewObservationEvent carries a stringified invocation result.
func NewObservationEvent(result string) Event {
	e := newEvent(EventObservation)
	e.Result = result
	return e
}

// NewExecutingEvent signals that plan execution has started.
func NewExecutingEvent(message string) Event {
	e := newEvent(EventExecuting)
	e.Message = message
	return e
}

// NewFinalStreamEvent carries one incremental fragment of the final answer.
func NewFinalStreamEvent(fragment string) Event {
	e := newEvent(EventFinalStream)
	e.Content = fragment
	return e
}

// NewFinalEvent terminates a turn with the complete answer text.
func NewFinalEvent(content string) Event {
	e := newEvent(EventFinal)
	e.Content = content
	return e
}

// NewErrorEvent reports a recovered failure to the caller.
func NewErrorEvent(message string) Event {
	e := newEvent(EventError)
	e.Message = message
	return e
}
