package model

import "github.com/taskloom/taskloom/core"

// ToolCallAccumulator reconstructs complete tool calls from streamed
// fragments. State is keyed by fragment index: a new index opens a new slot,
// id and name adopt the latest non-empty value, argument text concatenates in
// arrival order. One accumulator serves one in-flight model turn; call Reset
// before reuse.
type ToolCallAccumulator struct {
	slots map[int]*slot
	order []int
}

type slot struct{ id, name, args string }

// NewToolCallAccumulator creates an empty accumulator.
func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{slots: map[int]*slot{}}
}

// Add folds one fragment into the accumulator.
func (a *ToolCallAccumulator) Add(f ToolCallFragment) {
	s, ok := a.slots[f.Index]
	if !ok {
		s = &slot{}
		a.slots[f.Index] = s
		a.order = append(a.order, f.Index)
	}
	if f.ID != "" {
		s.id = f.ID
	}
	if f.Name != "" {
		s.name = f.Name
	}
	s.args += f.Arguments
}

// Empty reports whether no fragments have been seen.
func (a *ToolCallAccumulator) Empty() bool { return len(a.slots) == 0 }

// Calls returns the reconstructed tool calls in first-seen index order.
func (a *ToolCallAccumulator) Calls() []core.ToolCall {
	calls := make([]core.ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		s := a.slots[idx]
		calls = append(calls, core.ToolCall{ID: s.id, Name: s.name, Arguments: s.args})
	}
	return calls
}

// Reset clears all slots for the next model turn.
func (a *ToolCallAccumulator) Reset() {
	a.slots = map[int]*slot{}
	a.order = nil
}
