// Package tool implements the capability subsystem that lets the agent invoke
// structured operations (APIs, computations, side effects) with schema
// validated arguments, consistent error handling and metadata for LLM guidance.
package tool

import (
	"fmt"

	"github.com/taskloom/taskloom/core"
	"github.com/taskloom/taskloom/internal/util"
)

// Tool defines the interface for extending the agent with external capabilities.
//
// Tools are registered with a Registry and become callable from the decision
// router, the native tool-call loop and planned task graphs. Every invocation
// receives a core.ExecutionContext carrying chat identity, turn id, a logger
// and the turn's shared scratch space.
//
// Tool implementations should:
//   - Provide clear, descriptive names (snake_case recommended) and descriptions
//   - Define a proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe; planned tasks may run concurrently
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is provided to the LLM to help it understand when to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Async reports whether the tool performs its own I/O suspension
	// (network calls, timers). Synchronous-by-nature tools are dispatched off
	// the turn's scheduling path by the caller.
	Async() bool

	// Call executes the tool with already-deserialized arguments.
	Call(execCtx *core.ExecutionContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes attached to ToolError for uniform categorization.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
