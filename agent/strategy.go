package agent

// Strategy is the pluggable control shape for one turn. RunTurn drives the
// loop, emits all intermediate progress events through the turn, and returns
// the final answer text. The agent itself emits the terminal final event and
// persists the exchange, so strategies never do either.
type Strategy interface {
	// Name identifies the strategy in logs and configuration.
	Name() string
	// RunTurn executes one full turn and returns the final answer. An empty
	// return means the turn produced nothing worth persisting.
	RunTurn(t *turn) string
}

// state tracks where a router-driven turn is in its lifecycle.
type state int

const (
	stateAwaitingDecision state = iota
	stateRespondingDirectly
	stateRunningTool
	stateRunningPlan
	stateFinalizing
)

func (s state) String() string {
	switch s {
	case stateAwaitingDecision:
		return "awaiting_decision"
	case stateRespondingDirectly:
		return "responding_directly"
	case stateRunningTool:
		return "running_tool"
	case stateRunningPlan:
		return "running_plan"
	case stateFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}
