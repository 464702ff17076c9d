package core

import (
	"context"
	"sync"

	"github.com/taskloom/taskloom/logging"
)

// ExecutionContext carries the per-turn fields a tool invocation is allowed
// to see: the ambient cancellation context, chat and turn identity, a logger
// and a small shared key/value scratch space. It is passed explicitly into
// every capability invocation instead of handing tools a reference back to
// the dispatcher.
type ExecutionContext struct {
	Context context.Context
	ChatID  string
	TurnID  string

	mu    sync.RWMutex
	state map[string]any

	*loggerAdapter
}

// NewExecutionContext constructs an ExecutionContext bound to a chat identity
// and turn. A nil logger is replaced with a NoOpLogger.
func NewExecutionContext(ctx context.Context, chatID, turnID string, logger logging.Logger) *ExecutionContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ExecutionContext{
		Context:       ctx,
		ChatID:        chatID,
		TurnID:        turnID,
		state:         map[string]any{},
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (ec *ExecutionContext) Done() <-chan struct{} { return ec.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (ec *ExecutionContext) Err() error { return ec.Context.Err() }

// GetState returns the value and existence flag for a scratch-space key.
func (ec *ExecutionContext) GetState(k string) (any, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.state[k]
	return v, ok
}

// SetState stores a key/value pair in the turn's scratch space. Safe for
// concurrent use by parallel task invocations.
func (ec *ExecutionContext) SetState(k string, v any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.state[k] = v
}
