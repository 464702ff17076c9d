package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/taskloom/taskloom/core"
	"github.com/taskloom/taskloom/internal/util"
	"github.com/taskloom/taskloom/model"
	"github.com/taskloom/taskloom/tool"
)

// createPlanToolName is the synthetic capability the react loop exposes so
// the model can hand multi-step goals to the planner/executor pipeline.
const createPlanToolName = "create_plan"

// ReactStrategy drives the turn through the backend's native tool-call
// protocol: every registered tool (plus a synthetic create_plan capability)
// is offered on each generation call, tool results are appended as tool-role
// messages, and the loop repeats until the model answers without requesting
// a call. Requires a backend whose adapter reports tool support.
type ReactStrategy struct{}

// NewReactStrategy constructs the native tool-call strategy.
func NewReactStrategy() *ReactStrategy { return &ReactStrategy{} }

// Name implements Strategy.
func (s *ReactStrategy) Name() string { return "react" }

// RunTurn implements Strategy.
func (s *ReactStrategy) RunTurn(t *turn) string {
	a := t.agent
	limiter := core.NewStepLimiter(a.maxSteps)
	catalog := a.registry.Describe()
	defs := buildToolDefinitions(catalog)

	msgs := t.conversation()

	for {
		if t.ctx.Err() != nil {
			return ""
		}
		if err := limiter.Increment(); err != nil {
			a.logger.Warn("agent.step_limit", "chat", t.chatID, "steps", limiter.Count())
			return "I reached my step limit before completing this request. Please try a more specific question."
		}

		t.emit(core.NewThinkingEvent("Thinking..."))

		resp, deltas, failed := s.generate(t, model.Request{Messages: msgs, Tools: defs, Stream: true})
		if failed {
			return "I ran into a problem generating a response. Please try again."
		}

		calls := resp.ToolCalls
		if len(calls) == 0 {
			// Answer turn: deltas were buffered until we knew no tool call
			// was coming, replay them now so the caller still streams.
			for _, d := range deltas {
				t.emit(core.NewFinalStreamEvent(d))
			}
			if resp.Content != "" {
				return resp.Content
			}
			return strings.Join(deltas, "")
		}

		msgs = append(msgs, core.AssistantToolCallMessage(resp.Content, calls))
		for _, call := range calls {
			msgs = append(msgs, s.dispatch(t, call, catalog))
		}
	}
}

// generate consumes one model stream. Content deltas are buffered rather than
// forwarded because a response that turns out to request tool calls must not
// leak reasoning text as final_stream fragments. Reports failed=true after
// emitting an error event when the backend signalled an error.
func (s *ReactStrategy) generate(t *turn, req model.Request) (resp model.Response, deltas []string, failed bool) {
	acc := model.NewToolCallAccumulator()
	for chunk := range t.agent.llm.Generate(t.ctx, req) {
		if chunk.Err != "" {
			t.agent.logger.Error("agent.react.backend_error", "chat", t.chatID, "error", chunk.Err)
			t.emit(core.NewErrorEvent("generation failed: " + chunk.Err))
			return model.Response{}, nil, true
		}
		if chunk.Partial {
			if chunk.Content != "" {
				deltas = append(deltas, chunk.Content)
			}
			for _, frag := range chunk.Fragments {
				acc.Add(frag)
			}
			continue
		}
		resp = chunk
	}

	// Some providers only deliver fragments; reconstruct from the accumulator
	// when the final chunk carries no assembled calls.
	if len(resp.ToolCalls) == 0 && !acc.Empty() {
		resp.ToolCalls = acc.Calls()
	}
	if resp.Content == "" && len(resp.ToolCalls) == 0 && len(deltas) > 0 {
		resp.Content = strings.Join(deltas, "")
	}
	return resp, deltas, false
}

// dispatch executes one requested call and returns the tool-role message
// answering it. Failures become observations in the transcript so the model
// can recover or explain; they never abort the turn.
func (s *ReactStrategy) dispatch(t *turn, call core.ToolCall, catalog []tool.Definition) core.Message {
	callID := call.ID
	if callID == "" {
		callID = util.NewID()
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			t.agent.logger.Warn("agent.react.bad_arguments", "chat", t.chatID, "tool", call.Name, "error", err.Error())
			t.emit(core.NewErrorEvent(fmt.Sprintf("tool %s: malformed arguments: %v", call.Name, err)))
			return core.ToolMessage(callID, call.Name, fmt.Sprintf("Error: malformed arguments: %v", err))
		}
	}

	if call.Name == createPlanToolName {
		return core.ToolMessage(callID, call.Name, s.runPlan(t, args, catalog))
	}

	t.emit(core.NewToolUseEvent(call.Name, args))
	result, err := t.invokeTool(call.Name, args)
	if err != nil {
		t.agent.logger.Warn("agent.tool.failed", "chat", t.chatID, "tool", call.Name, "error", err.Error())
		t.emit(core.NewErrorEvent(fmt.Sprintf("tool %s failed: %v", call.Name, err)))
		return core.ToolMessage(callID, call.Name, fmt.Sprintf("Error: %v", err))
	}

	text := util.Stringify(result)
	t.emit(core.NewObservationEvent(text))
	return core.ToolMessage(callID, call.Name, text)
}

// runPlan hands a goal to the planner/executor pipeline and returns the
// aggregate result text for the transcript.
func (s *ReactStrategy) runPlan(t *turn, args map[string]any, catalog []tool.Definition) string {
	goal, _ := args["goal"].(string)
	if goal == "" {
		goal = t.input
	}

	t.emit(core.NewThinkingEvent("Creating a plan..."))
	planContext := append(append([]core.Message{}, t.history...), core.UserMessage(t.input))
	g := t.agent.planner.CreatePlan(t.ctx, goal, planContext, catalog)

	t.emit(core.NewPlanCreatedEvent(g.Summaries()))
	if g.Len() == 0 {
		t.emit(core.NewErrorEvent("no executable plan could be produced"))
		return "Error: no executable plan could be produced"
	}

	t.emit(core.NewExecutingEvent(fmt.Sprintf("Executing plan (%d tasks)...", g.Len())))
	result, err := t.agent.executor.Run(t.execCtx, g, func(ev core.Event) { t.emit(ev) })
	if err != nil {
		return fmt.Sprintf("Error: plan execution did not complete: %v", err)
	}
	return result
}

// buildToolDefinitions converts the registry catalog into the backend tool
// format and appends the synthetic create_plan capability.
func buildToolDefinitions(catalog []tool.Definition) []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(catalog)+1)
	for _, d := range catalog {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	defs = append(defs, model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        createPlanToolName,
			Description: "Break a multi-step request into a dependency-ordered plan of tool calls and execute it. Use when a single tool call cannot satisfy the request.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"goal": map[string]any{
						"type":        "string",
						"description": "The goal the plan should accomplish, in natural language.",
					},
				},
				"required": []string{"goal"},
			},
		},
	})
	return defs
}
