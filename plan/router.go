// Package plan contains the prompting layers that turn a user request into a
// course of action: the decision router (respond directly, use one tool, or
// plan) and the planner that produces task graphs.
package plan

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/taskloom/taskloom/core"
	"github.com/taskloom/taskloom/internal/util"
	"github.com/taskloom/taskloom/logging"
	"github.com/taskloom/taskloom/model"
	"github.com/taskloom/taskloom/tool"
)

// DecisionKind tags the three possible turn classifications.
type DecisionKind string

const (
	// RespondDirectly answers from the model's own knowledge, no tools.
	RespondDirectly DecisionKind = "RESPOND_DIRECTLY"
	// UseTool executes a single tool before answering.
	UseTool DecisionKind = "USE_TOOL"
	// CreatePlan builds and executes a multi-step task graph.
	CreatePlan DecisionKind = "CREATE_PLAN"
)

// Decision is the router's classification of one turn. ToolName/ToolArgs are
// set only for UseTool; Description only for CreatePlan. Reasoning captures
// either the model's explanation or the diagnostic that forced a fallback.
type Decision struct {
	Kind        DecisionKind
	Reasoning   string
	ToolName    string
	ToolArgs    map[string]any
	Description string
}

// RouterOptions configure the decision router.
type RouterOptions struct {
	// HistoryWindow bounds how many trailing conversation messages are
	// embedded in the decision prompt.
	HistoryWindow int
	Logger        logging.Logger
}

// Router classifies a user turn by querying the generation backend with a
// fixed instructional prompt. It never returns an error: every failure mode
// (backend error, non-JSON content, missing decision field) degrades to
// RespondDirectly with a captured diagnostic.
type Router struct {
	llm           model.Model
	historyWindow int
	logger        logging.Logger
}

// NewRouter constructs a Router with a three-message history window by default.
func NewRouter(llm model.Model, optFns ...func(o *RouterOptions)) *Router {
	opts := RouterOptions{
		HistoryWindow: 3,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Router{llm: llm, historyWindow: opts.HistoryWindow, logger: opts.Logger}
}

const routerPromptTemplate = `You are the decision layer of an AI agent.
Analyze the user request and decide the best course of action.

AVAILABLE TOOLS: %TOOLS%

DECISION OPTIONS:
1. RESPOND_DIRECTLY: If the user greets, asks a simple question (identity, capabilities), or if you can answer from your knowledge WITHOUT tools.
2. USE_TOOL: If the request requires a SINGLE tool execution (e.g., "what time is it?", "search for X").
3. CREATE_PLAN: If the request implies MULTIPLE steps (e.g., "search for X and then summarize", "create a report").

OUTPUT FORMAT (JSON ONLY):
{
  "decision": "RESPOND_DIRECTLY" | "USE_TOOL" | "CREATE_PLAN",
  "reasoning": "Short explanation",
  "tool_name": "name_of_tool" (only for USE_TOOL),
  "tool_args": { "arg": "value" } (only for USE_TOOL),
  "description": "goal of the plan" (only for CREATE_PLAN)
}

Minimize steps. If you can answer directly, do so.`

// routerResponse mirrors the JSON shape the decision prompt requests.
type routerResponse struct {
	Decision    *string        `json:"decision"`
	Reasoning   string         `json:"reasoning"`
	ToolName    string         `json:"tool_name"`
	ToolArgs    map[string]any `json:"tool_args"`
	Description string         `json:"description"`
}

// Decide classifies the turn. The decision prompt embeds tool names only (not
// full schemas) and a bounded, system-stripped history window to stay small.
func (r *Router) Decide(
	ctx context.Context,
	userInput string,
	history []core.Message,
	catalog []tool.Definition,
) Decision {
	names := make([]string, 0, len(catalog))
	for _, d := range catalog {
		names = append(names, d.Name)
	}
	prompt := strings.Replace(routerPromptTemplate, "%TOOLS%", strings.Join(names, ", "), 1)

	messages := []core.Message{core.SystemMessage(prompt)}
	messages = append(messages, core.TailWithoutSystem(history, r.historyWindow)...)
	messages = append(messages, core.UserMessage(userInput))

	resp := model.Collect(r.llm.Generate(ctx, model.Request{Messages: messages}))
	if resp.Err != "" {
		r.logger.Warn("router.backend_error", "error", resp.Err)
		return fallback("backend error: " + resp.Err)
	}

	var parsed routerResponse
	if err := json.Unmarshal([]byte(util.ExtractJSON(resp.Content)), &parsed); err != nil {
		r.logger.Warn("router.parse_error", "error", err.Error())
		return fallback("unparseable decision: " + err.Error())
	}
	if parsed.Decision == nil {
		r.logger.Warn("router.missing_decision_field")
		return fallback("decision field missing")
	}

	switch DecisionKind(*parsed.Decision) {
	case UseTool:
		return Decision{
			Kind:      UseTool,
			Reasoning: parsed.Reasoning,
			ToolName:  parsed.ToolName,
			ToolArgs:  parsed.ToolArgs,
		}
	case CreatePlan:
		return Decision{
			Kind:        CreatePlan,
			Reasoning:   parsed.Reasoning,
			Description: parsed.Description,
		}
	case RespondDirectly:
		return Decision{Kind: RespondDirectly, Reasoning: parsed.Reasoning}
	default:
		r.logger.Warn("router.unknown_decision", "decision", *parsed.Decision)
		return fallback("unknown decision value: " + *parsed.Decision)
	}
}

func fallback(diagnostic string) Decision {
	return Decision{Kind: RespondDirectly, Reasoning: diagnostic}
}
