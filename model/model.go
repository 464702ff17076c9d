// Package model defines the normalized generation-backend contract consumed
// by the agent loop, router and planner, plus provider adapters in
// subpackages. Adapters convert taskloom's flat message representation into
// vendor request formats and back.
package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskloom/taskloom/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the
// model. Parameters is a minimal JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input.
type Request struct {
	Messages []core.Message   `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
	Stream   bool             `json:"stream,omitempty"`
}

// ToolCallFragment is one incremental piece of a streamed tool call. Fragments
// sharing an Index belong to the same call; id and name are set when first
// seen, argument text accumulates across fragments in arrival order.
type ToolCallFragment struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Response is a (partial or final) chunk emitted by a model. Providers never
// fail through a separate channel: a provider error arrives as a final
// Response whose Err carries the diagnostic, keeping downstream handling
// uniform.
type Response struct {
	Partial   bool               `json:"partial"`
	Content   string             `json:"content,omitempty"` // delta text when partial, full text when final
	Fragments []ToolCallFragment `json:"fragments,omitempty"`
	ToolCalls []core.ToolCall    `json:"tool_calls,omitempty"` // reconstructed, final responses only
	Finish    string             `json:"finish_reason,omitempty"`
	Err       string             `json:"error,omitempty"`
}

// Model is the minimal interface required to drive generation. The returned
// channel is closed after the final response; implementations must respect
// context cancellation.
type Model interface {
	Generate(ctx context.Context, req Request) <-chan Response

	// Info returns information about the model implementation.
	Info() Info
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// ErrorResponse builds the sentinel final response carrying a diagnostic.
func ErrorResponse(format string, args ...any) Response {
	return Response{Err: fmt.Sprintf(format, args...)}
}

// Collect drains a response channel into the final response, concatenating
// partial content along the way. If the stream ends without a final chunk the
// accumulated text is returned as one. Used by the router and planner, which
// only care about the complete payload.
func Collect(ch <-chan Response) Response {
	var sb strings.Builder
	var final Response
	sawFinal := false
	for resp := range ch {
		if resp.Err != "" {
			return resp
		}
		if resp.Partial {
			sb.WriteString(resp.Content)
			continue
		}
		final = resp
		sawFinal = true
	}
	if !sawFinal {
		final = Response{Content: sb.String()}
	} else if final.Content == "" && sb.Len() > 0 {
		final.Content = sb.String()
	}
	return final
}
