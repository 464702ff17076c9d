package agent

import (
	"fmt"

	"github.com/taskloom/taskloom/core"
	"github.com/taskloom/taskloom/internal/util"
	"github.com/taskloom/taskloom/model"
	"github.com/taskloom/taskloom/plan"
	"github.com/taskloom/taskloom/tool"
)

// RouterStrategy classifies each loop iteration with the decision router and
// dispatches accordingly: answer directly, run one tool, or plan and execute
// a task graph. Tool and plan observations are folded back into the working
// context and the router is consulted again until it settles on a direct
// answer or the step limit trips.
type RouterStrategy struct{}

// NewRouterStrategy constructs the default strategy.
func NewRouterStrategy() *RouterStrategy { return &RouterStrategy{} }

// Name implements Strategy.
func (s *RouterStrategy) Name() string { return "router" }

// RunTurn implements Strategy.
func (s *RouterStrategy) RunTurn(t *turn) string {
	a := t.agent
	limiter := core.NewStepLimiter(a.maxSteps)
	catalog := a.registry.Describe()

	// convo holds system prompt, recalls, transcript, and any observation
	// notes added during this turn. The user input is appended per model call
	// so it always sits last in the prompt.
	convo := make([]core.Message, 0, len(t.history)+2)
	convo = append(convo, core.SystemMessage(a.systemPrompt))
	if recall := t.recallContext(); recall != "" {
		convo = append(convo, core.SystemMessage(recall))
	}
	convo = append(convo, t.history...)

	var (
		final    string
		decision plan.Decision
	)

	st := stateAwaitingDecision
	for st != stateFinalizing {
		if t.ctx.Err() != nil {
			return ""
		}

		switch st {
		case stateAwaitingDecision:
			if err := limiter.Increment(); err != nil {
				a.logger.Warn("agent.step_limit", "chat", t.chatID, "steps", limiter.Count())
				final = "I reached my step limit before completing this request. Please try a more specific question."
				st = stateFinalizing
				continue
			}

			t.emit(core.NewThinkingEvent("Analyzing request..."))
			decision = a.router.Decide(t.ctx, t.input, convo, catalog)
			a.logger.Info("agent.decision",
				"chat", t.chatID, "kind", string(decision.Kind), "reasoning", decision.Reasoning)

			switch decision.Kind {
			case plan.UseTool:
				st = stateRunningTool
			case plan.CreatePlan:
				st = stateRunningPlan
			default:
				st = stateRespondingDirectly
			}

		case stateRespondingDirectly:
			final = s.respond(t, convo)
			st = stateFinalizing

		case stateRunningTool:
			convo = s.runTool(t, convo, decision)
			st = stateAwaitingDecision

		case stateRunningPlan:
			convo = s.runPlan(t, convo, decision, catalog)
			st = stateAwaitingDecision
		}
	}

	return final
}

// respond streams the direct answer, forwarding each fragment as a
// final_stream event, and returns the complete text.
func (s *RouterStrategy) respond(t *turn, convo []core.Message) string {
	msgs := append(append([]core.Message{}, convo...), core.UserMessage(t.input))

	var complete model.Response
	for resp := range t.agent.llm.Generate(t.ctx, model.Request{Messages: msgs, Stream: true}) {
		if resp.Err != "" {
			t.agent.logger.Error("agent.respond.backend_error", "chat", t.chatID, "error", resp.Err)
			t.emit(core.NewErrorEvent("generation failed: " + resp.Err))
			return "I ran into a problem generating a response. Please try again."
		}
		if resp.Partial {
			if resp.Content != "" {
				t.emit(core.NewFinalStreamEvent(resp.Content))
			}
			continue
		}
		complete = resp
	}
	return complete.Content
}

// runTool executes the single tool the router selected and folds the
// observation (or failure) back into the working context.
func (s *RouterStrategy) runTool(t *turn, convo []core.Message, d plan.Decision) []core.Message {
	t.emit(core.NewToolUseEvent(d.ToolName, d.ToolArgs))

	result, err := t.invokeTool(d.ToolName, d.ToolArgs)
	if err != nil {
		t.agent.logger.Warn("agent.tool.failed", "chat", t.chatID, "tool", d.ToolName, "error", err.Error())
		t.emit(core.NewErrorEvent(fmt.Sprintf("tool %s failed: %v", d.ToolName, err)))
		return append(convo, core.AssistantMessage(
			fmt.Sprintf("I tried the tool %s but it failed: %v", d.ToolName, err)))
	}

	text := util.Stringify(result)
	t.emit(core.NewObservationEvent(text))
	return append(convo, core.AssistantMessage(
		fmt.Sprintf("Observation from %s: %s", d.ToolName, text)))
}

// runPlan plans, executes, and folds the aggregate result back into the
// working context. A planner that produces nothing, or a stalled execution,
// is recorded as an observation so the next decision can explain the failure.
func (s *RouterStrategy) runPlan(t *turn, convo []core.Message, d plan.Decision, catalog []tool.Definition) []core.Message {
	goal := d.Description
	if goal == "" {
		goal = t.input
	}

	t.emit(core.NewThinkingEvent("Creating a plan..."))
	planContext := append(append([]core.Message{}, convo...), core.UserMessage(t.input))
	g := t.agent.planner.CreatePlan(t.ctx, goal, planContext, catalog)

	t.emit(core.NewPlanCreatedEvent(g.Summaries()))
	if g.Len() == 0 {
		t.emit(core.NewErrorEvent("no executable plan could be produced"))
		return append(convo, core.AssistantMessage(
			"I could not produce an executable plan for this request."))
	}

	t.emit(core.NewExecutingEvent(fmt.Sprintf("Executing plan (%d tasks)...", g.Len())))
	result, err := t.agent.executor.Run(t.execCtx, g, func(ev core.Event) { t.emit(ev) })
	if err != nil {
		// The executor already emitted an error event for stalls; cancellation
		// is handled by the outer loop.
		return append(convo, core.AssistantMessage(
			fmt.Sprintf("Plan execution did not complete: %v", err)))
	}

	return append(convo, core.AssistantMessage(
		fmt.Sprintf("Observation from plan execution: %s", result)))
}
