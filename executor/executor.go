// Package executor drives a task graph to completion against the tool
// registry, emitting progress events and aggregating results.
package executor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/taskloom/taskloom/core"
	"github.com/taskloom/taskloom/graph"
	"github.com/taskloom/taskloom/internal/util"
	"github.com/taskloom/taskloom/logging"
	"github.com/taskloom/taskloom/tool"
)

// NoTasksExecuted is the aggregate reported when a graph finished without a
// single completed task. Callers must receive an explicit sentinel, never an
// ambiguous empty string.
const NoTasksExecuted = "No tasks executed."

// ErrStalled reports a dependency deadlock: no task is ready yet the graph is
// incomplete. Fatal for the current plan, not retried.
var ErrStalled = errors.New("plan stalled: dependency loop or unresolved failure")

// Options configure the executor.
type Options struct {
	// MaxConcurrency bounds how many ready tasks run in parallel per pass,
	// keeping downstream-service rate limits in view.
	MaxConcurrency int
	// MaxIterations caps the scheduling loop so a malformed graph terminates.
	MaxIterations int
	Logger        logging.Logger
}

// Executor resolves ready tasks from a graph and invokes them through the
// tool registry. Safe for concurrent use across turns; all per-run state
// lives on the stack of Run.
type Executor struct {
	registry       *tool.Registry
	maxConcurrency int
	maxIterations  int
	logger         logging.Logger
}

// New constructs an Executor with bounded defaults.
func New(registry *tool.Registry, optFns ...func(o *Options)) *Executor {
	opts := Options{
		MaxConcurrency: 4,
		MaxIterations:  50,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{
		registry:       registry,
		maxConcurrency: opts.MaxConcurrency,
		maxIterations:  opts.MaxIterations,
		logger:         opts.Logger,
	}
}

// Run executes the graph until every task is terminal, the graph stalls, the
// iteration cap is hit, or the context is cancelled. Tasks within one ready
// set share no dependency edges by construction and run concurrently under
// the executor's semaphore; graph mutation is serialized by the graph itself
// and the at-most-once invocation guard is the Pending→Running transition.
//
// emit may be nil. The returned aggregate is the result of the most recently
// completed task, or the NoTasksExecuted sentinel. A failed task only blocks
// its dependents; independent branches proceed.
func (e *Executor) Run(execCtx *core.ExecutionContext, g *graph.Graph, emit func(core.Event)) (string, error) {
	if emit == nil {
		emit = func(core.Event) {}
	}

	var mu sync.Mutex // guards lastResult + completed across task goroutines
	lastResult := ""
	completed := 0

	for iteration := 0; iteration < e.maxIterations; iteration++ {
		if err := execCtx.Err(); err != nil {
			return "", fmt.Errorf("plan cancelled: %w", err)
		}

		ready := g.Ready()
		if len(ready) == 0 {
			if g.AllTerminal() {
				break
			}
			e.logger.Error("executor.stalled", "turn", execCtx.TurnID)
			emit(core.NewErrorEvent(ErrStalled.Error()))
			return "", ErrStalled
		}

		var wg sync.WaitGroup
		sem := make(chan struct{}, e.maxConcurrency)

		for _, t := range ready {
			if !g.MarkRunning(t.ID) {
				continue // another pass already claimed it
			}
			wg.Add(1)
			sem <- struct{}{}
			go func(t graph.Task) {
				defer wg.Done()
				defer func() { <-sem }()

				emit(core.NewToolUseEvent(t.Tool, t.Args))
				e.logger.Info("executor.task.start", "task", t.ID, "tool", t.Tool)

				result, err := e.invoke(execCtx, t)
				if err != nil {
					e.logger.Error("executor.task.failed", "task", t.ID, "tool", t.Tool, "error", err.Error())
					g.MarkFailed(t.ID, err.Error())
					emit(core.NewErrorEvent(fmt.Sprintf("task %s (%s) failed: %v", t.ID, t.Tool, err)))
					return
				}

				text := util.Stringify(result)
				g.MarkCompleted(t.ID, text)
				emit(core.NewObservationEvent(text))
				e.logger.Info("executor.task.complete", "task", t.ID, "tool", t.Tool)

				mu.Lock()
				lastResult = text
				completed++
				mu.Unlock()
			}(t)
		}

		wg.Wait()
	}

	if !g.AllTerminal() {
		// Iteration cap hit with work remaining: treat as a stall so the
		// caller gets a deterministic failure instead of silence.
		emit(core.NewErrorEvent(ErrStalled.Error()))
		return "", ErrStalled
	}

	if completed == 0 {
		return NoTasksExecuted, nil
	}
	return lastResult, nil
}

// invoke runs one task with panic recovery so a misbehaving capability is
// recorded on the task instead of tearing down the turn.
func (e *Executor) invoke(execCtx *core.ExecutionContext, t graph.Task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("executor.task.panic", "task", t.ID, "tool", t.Tool, "recover", r)
			err = fmt.Errorf("tool %s panicked: %v", t.Tool, r)
		}
	}()
	return e.registry.Invoke(execCtx, t.Tool, t.Args)
}
