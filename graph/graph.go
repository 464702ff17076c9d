// Package graph implements the mutable task-dependency DAG produced by the
// planner and driven by the executor. It is a pure data structure: no I/O,
// all mutation serialized behind an internal mutex.
package graph

import (
	"sync"

	"github.com/taskloom/taskloom/core"
	"github.com/taskloom/taskloom/internal/util"
)

// Status tracks a task's lifecycle.
type Status string

const (
	// StatusPending means the task has not started yet.
	StatusPending Status = "pending"
	// StatusRunning means the task is currently being invoked.
	StatusRunning Status = "running"
	// StatusCompleted means the task finished and carries a result.
	StatusCompleted Status = "completed"
	// StatusFailed means the task's invocation errored.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is Completed or Failed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one tool invocation inside a plan. Dependencies name other task ids
// in the same graph; a dependency id that refers to no task is permanently
// unsatisfiable, so the task simply never becomes ready. Result is set only
// on completion, Err only on failure.
type Task struct {
	ID           string         `json:"id"`
	Tool         string         `json:"tool"`
	Args         map[string]any `json:"args,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Status       Status         `json:"status"`
	Result       string         `json:"result,omitempty"`
	Err          string         `json:"error,omitempty"`
}

// NewTask constructs a pending task, generating a short id when none is
// supplied and defaulting nil args/dependencies to empty.
func NewTask(id, tool string, args map[string]any, dependencies []string) *Task {
	if id == "" {
		id = util.ShortID()
	}
	if args == nil {
		args = map[string]any{}
	}
	if dependencies == nil {
		dependencies = []string{}
	}
	return &Task{ID: id, Tool: tool, Args: args, Dependencies: dependencies, Status: StatusPending}
}

// Summary returns the serializable view of the task used in plan_created events.
func (t *Task) Summary() core.TaskSummary {
	return core.TaskSummary{ID: t.ID, Tool: t.Tool, Args: t.Args, Dependencies: t.Dependencies}
}

// Graph is a DAG of tasks keyed by id. Ready ordering follows insertion
// order to keep scheduling deterministic across runs. Tasks are never removed
// mid-graph; the whole graph is discarded at the end of a turn.
type Graph struct {
	mu    sync.Mutex
	tasks map[string]*Task
	order []string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{tasks: map[string]*Task{}}
}

// Add inserts or replaces a task by id. Dependency existence is not validated
// at insertion time. Replacing keeps the original insertion-order slot.
func (g *Graph) Add(t *Task) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.tasks[t.ID]; !exists {
		g.order = append(g.order, t.ID)
	}
	g.tasks[t.ID] = t
}

// Task returns a snapshot copy of the task with the given id.
func (g *Graph) Task(id string) (Task, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tasks)
}

// Ready returns snapshot copies of the Pending tasks whose dependencies are
// all Completed, in insertion order.
func (g *Graph) Ready() []Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readyLocked()
}

func (g *Graph) readyLocked() []Task {
	var ready []Task
	for _, id := range g.order {
		t := g.tasks[id]
		if t.Status != StatusPending {
			continue
		}
		satisfied := true
		for _, dep := range t.Dependencies {
			d, ok := g.tasks[dep]
			if !ok || d.Status != StatusCompleted {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, *t)
		}
	}
	return ready
}

// MarkRunning transitions a pending task to Running. No-op for absent ids or
// tasks that already left the Pending state; returns whether the transition
// happened, which gives the executor its at-most-once invocation guard.
func (g *Graph) MarkRunning(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.tasks[id]
	if !ok || t.Status != StatusPending {
		return false
	}
	t.Status = StatusRunning
	return true
}

// MarkCompleted records a result and transitions the task to Completed.
// No-op for absent ids. A task that is already terminal keeps its state:
// the second write is ignored, never an override.
func (g *Graph) MarkCompleted(id, result string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.tasks[id]
	if !ok || t.Status.Terminal() {
		return
	}
	t.Status = StatusCompleted
	t.Result = result
}

// MarkFailed records an error and transitions the task to Failed. Same
// absent-id and already-terminal semantics as MarkCompleted.
func (g *Graph) MarkFailed(id, errText string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.tasks[id]
	if !ok || t.Status.Terminal() {
		return
	}
	t.Status = StatusFailed
	t.Err = errText
}

// IsComplete reports whether every task is Completed. A graph containing any
// Failed task can never become complete; callers check Stalled explicitly.
func (g *Graph) IsComplete() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, t := range g.tasks {
		if t.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// AllTerminal reports whether every task is Completed or Failed.
func (g *Graph) AllTerminal() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, t := range g.tasks {
		if !t.Status.Terminal() {
			return false
		}
	}
	return true
}

// Stalled reports the deadlock state: no task is ready yet at least one task
// is non-terminal. This covers dependency cycles, dangling dependency ids and
// pending tasks blocked behind a failure.
func (g *Graph) Stalled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.readyLocked()) > 0 {
		return false
	}
	for _, t := range g.tasks {
		if t.Status == StatusPending || t.Status == StatusRunning {
			return true
		}
	}
	return false
}

// Tasks returns snapshot copies of all tasks in insertion order.
func (g *Graph) Tasks() []Task {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Task, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.tasks[id])
	}
	return out
}

// Summaries returns the serializable plan view in insertion order.
func (g *Graph) Summaries() []core.TaskSummary {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]core.TaskSummary, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.tasks[id].Summary())
	}
	return out
}
