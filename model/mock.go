package model

import (
	"context"

	"github.com/taskloom/taskloom/core"
)

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Canned responses are keyed by the content of the last request message.
type MockModel struct {
	info      Info
	responses map[string]string
	calls     map[string][]core.ToolCall
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
		calls:     make(map[string][]core.ToolCall),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// AddToolCallResponse registers canned tool calls emitted for an input prompt.
func (m *MockModel) AddToolCallResponse(prompt string, calls []core.ToolCall) {
	m.calls[prompt] = calls
}

// Generate implements Model; emits optional streaming rune chunks then the
// final response.
func (m *MockModel) Generate(ctx context.Context, req Request) <-chan Response {
	out := make(chan Response, 16)

	go func() {
		defer close(out)
		if len(req.Messages) == 0 {
			out <- ErrorResponse("no messages provided")
			return
		}
		inputText := req.Messages[len(req.Messages)-1].Content

		if calls, ok := m.calls[inputText]; ok {
			out <- Response{ToolCalls: calls, Finish: "tool_calls"}
			return
		}

		full := m.responses[inputText]
		if full == "" {
			full = "Mock response to: " + inputText
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					out <- ErrorResponse("context cancelled: %v", ctx.Err())
					return
				case out <- Response{Partial: true, Content: string(r)}:
				}
			}
		}
		out <- Response{Content: full, Finish: "stop"}
	}()

	return out
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
