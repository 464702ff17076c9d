package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/taskloom/taskloom/core"
	"github.com/taskloom/taskloom/graph"
	"github.com/taskloom/taskloom/internal/util"
	"github.com/taskloom/taskloom/logging"
	"github.com/taskloom/taskloom/model"
	"github.com/taskloom/taskloom/tool"
)

// PlannerOptions configure the planner.
type PlannerOptions struct {
	// HistoryWindow bounds how many trailing conversation messages are
	// summarized into the planning prompt as context.
	HistoryWindow int
	Logger        logging.Logger
}

// Planner turns a natural-language goal into a task graph by querying the
// generation backend with the full tool schemas. It never returns an error:
// any backend or parse failure yields an empty graph, which is immediately
// complete with no work done — callers treat that as "no plan could be
// produced", not as success.
type Planner struct {
	llm           model.Model
	historyWindow int
	logger        logging.Logger
}

// NewPlanner constructs a Planner.
func NewPlanner(llm model.Model, optFns ...func(o *PlannerOptions)) *Planner {
	opts := PlannerOptions{
		HistoryWindow: 3,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Planner{llm: llm, historyWindow: opts.HistoryWindow, logger: opts.Logger}
}

const plannerPromptTemplate = `You are the planner of an AI agent.
Create a step-by-step execution plan to solve the user's request.

AVAILABLE TOOLS:
%TOOLS%

OUTPUT FORMAT (JSON ONLY):
[
  {
    "id": "1",
    "tool": "tool_name",
    "args": { "arg_name": "value" },
    "dependencies": []
  },
  {
    "id": "2",
    "tool": "another_tool",
    "args": { "input": "value from task 1" },
    "dependencies": ["1"]
  }
]

RULES:
1. Use only available tools.
2. A task depending on another task's output must list its id in "dependencies".
3. Keep the plan efficient. The last task's output is the answer.`

// taskSpec mirrors one element of the JSON array the planning prompt requests.
type taskSpec struct {
	ID           string         `json:"id"`
	Tool         string         `json:"tool"`
	Args         map[string]any `json:"args"`
	Dependencies []string       `json:"dependencies"`
}

// CreatePlan queries the backend and parses its response into a task graph.
// Supplied task ids are preserved; missing ids are generated. Missing args
// and dependencies default to empty.
func (p *Planner) CreatePlan(
	ctx context.Context,
	goal string,
	history []core.Message,
	catalog []tool.Definition,
) *graph.Graph {
	g := graph.New()

	schemas, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		p.logger.Error("planner.catalog_marshal_error", "error", err.Error())
		return g
	}
	prompt := strings.Replace(plannerPromptTemplate, "%TOOLS%", string(schemas), 1)

	contextWindow := core.TailWithoutSystem(history, p.historyWindow)
	var contextText strings.Builder
	for _, m := range contextWindow {
		fmt.Fprintf(&contextText, "%s: %s\n", m.Role, m.Content)
	}

	messages := []core.Message{
		core.SystemMessage(prompt),
		core.UserMessage(fmt.Sprintf("Context:\n%sRequest: %s", contextText.String(), goal)),
	}

	resp := model.Collect(p.llm.Generate(ctx, model.Request{Messages: messages}))
	if resp.Err != "" {
		p.logger.Warn("planner.backend_error", "error", resp.Err)
		return g
	}

	var specs []taskSpec
	if err := json.Unmarshal([]byte(util.ExtractJSON(resp.Content)), &specs); err != nil {
		p.logger.Warn("planner.parse_error", "error", err.Error())
		return g
	}

	for _, spec := range specs {
		if spec.Tool == "" {
			p.logger.Warn("planner.task_without_tool", "id", spec.ID)
			continue
		}
		g.Add(graph.NewTask(spec.ID, spec.Tool, spec.Args, spec.Dependencies))
	}

	p.logger.Info("planner.plan_created", "tasks", g.Len())

	return g
}
