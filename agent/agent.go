// Package agent implements the turn-level control loop: it owns a turn's
// working conversation, classifies the turn (or lets the model propose tool
// calls natively), dispatches tools and plans, and streams progress events
// culminating in exactly one final answer.
package agent

import (
	"context"
	"fmt"

	"github.com/taskloom/taskloom/core"
	"github.com/taskloom/taskloom/executor"
	"github.com/taskloom/taskloom/internal/util"
	"github.com/taskloom/taskloom/logging"
	"github.com/taskloom/taskloom/memory"
	"github.com/taskloom/taskloom/model"
	"github.com/taskloom/taskloom/plan"
	"github.com/taskloom/taskloom/tool"
)

// DefaultSystemPrompt is used when no override is configured.
const DefaultSystemPrompt = "You are a helpful AI assistant."

// Options configure an Agent.
type Options struct {
	// SystemPrompt replaces the default assistant instruction.
	SystemPrompt string
	// MaxSteps caps loop iterations per turn to guarantee termination.
	MaxSteps int
	// EventBufferSize sets channel buffering for progress events.
	EventBufferSize int
	// RecallLimit bounds how many semantic hits are injected per turn.
	RecallLimit int
	// Strategy selects the control shape; defaults to the router-driven loop.
	Strategy Strategy
	// History persists transcripts; defaults to an in-memory store.
	History memory.History
	// Semantic enables optional long-term recall; nil disables it.
	Semantic memory.SemanticStore
	// Router / Planner / Executor overrides; built from the model and
	// registry when nil.
	Router   *plan.Router
	Planner  *plan.Planner
	Executor *executor.Executor
	Logger   logging.Logger
}

// Agent drives one conversational turn per Run invocation. A single Agent
// serves many chat identities concurrently; each turn runs on its own
// goroutine and shares no mutable state with other turns beyond the
// history store, which serializes per-chat writes itself.
type Agent struct {
	llm          model.Model
	registry     *tool.Registry
	router       *plan.Router
	planner      *plan.Planner
	executor     *executor.Executor
	history      memory.History
	semantic     memory.SemanticStore
	strategy     Strategy
	systemPrompt string
	maxSteps     int
	bufferSize   int
	recallLimit  int
	logger       logging.Logger
}

// New constructs an Agent with in-memory defaults.
func New(llm model.Model, registry *tool.Registry, optFns ...func(o *Options)) *Agent {
	opts := Options{
		SystemPrompt:    DefaultSystemPrompt,
		MaxSteps:        20,
		EventBufferSize: 64,
		RecallLimit:     3,
		History:         memory.NewInMemoryHistory(),
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Router == nil {
		opts.Router = plan.NewRouter(llm, func(o *plan.RouterOptions) { o.Logger = opts.Logger })
	}
	if opts.Planner == nil {
		opts.Planner = plan.NewPlanner(llm, func(o *plan.PlannerOptions) { o.Logger = opts.Logger })
	}
	if opts.Executor == nil {
		opts.Executor = executor.New(registry, func(o *executor.Options) { o.Logger = opts.Logger })
	}
	if opts.Strategy == nil {
		opts.Strategy = NewRouterStrategy()
	}

	return &Agent{
		llm:          llm,
		registry:     registry,
		router:       opts.Router,
		planner:      opts.Planner,
		executor:     opts.Executor,
		history:      opts.History,
		semantic:     opts.Semantic,
		strategy:     opts.Strategy,
		systemPrompt: opts.SystemPrompt,
		maxSteps:     opts.MaxSteps,
		bufferSize:   opts.EventBufferSize,
		recallLimit:  opts.RecallLimit,
		logger:       opts.Logger,
	}
}

// Run starts one turn for the chat identity and returns its ordered progress
// event stream. The channel is closed after the terminal final event. The
// caller cancelling ctx stops tool dispatch and suppresses persistence of a
// partial answer.
func (a *Agent) Run(ctx context.Context, chatID, input string) <-chan core.Event {
	events := make(chan core.Event, a.bufferSize)
	go func() {
		defer close(events)
		a.runTurn(ctx, chatID, input, events)
	}()
	return events
}

func (a *Agent) runTurn(ctx context.Context, chatID, input string, events chan<- core.Event) {
	turnID := util.NewID()
	execCtx := core.NewExecutionContext(ctx, chatID, turnID, a.logger)

	a.logger.Info("agent.turn.start", "chat", chatID, "turn", turnID, "strategy", a.strategy.Name())

	history, err := a.history.Get(ctx, chatID)
	if err != nil {
		// A transcript we cannot read degrades to an empty context; the turn
		// still runs so the user gets an answer.
		a.logger.Warn("agent.history.load_failed", "chat", chatID, "error", err.Error())
		history = nil
	}

	t := &turn{
		agent:   a,
		ctx:     ctx,
		execCtx: execCtx,
		chatID:  chatID,
		input:   input,
		history: history,
		events:  events,
	}

	final := a.strategy.RunTurn(t)

	if ctx.Err() != nil {
		// Caller disconnected: no final event, no partial persistence.
		a.logger.Info("agent.turn.cancelled", "chat", chatID, "turn", turnID)
		return
	}

	if final != "" {
		userMsg := core.UserMessage(input)
		assistantMsg := core.AssistantMessage(final)
		if err := a.history.AppendTurn(ctx, chatID, userMsg, assistantMsg); err != nil {
			a.logger.Error("agent.history.append_failed", "chat", chatID, "error", err.Error())
			t.emit(core.NewErrorEvent("failed to persist conversation: " + err.Error()))
		}
		if a.semantic != nil {
			snippet := fmt.Sprintf("User: %s\nAssistant: %s", input, final)
			if err := a.semantic.Add(ctx, snippet, map[string]any{"chat_id": chatID, "turn_id": turnID}); err != nil {
				a.logger.Warn("agent.semantic.add_failed", "chat", chatID, "error", err.Error())
			}
		}
	}

	t.emit(core.NewFinalEvent(final))
	a.logger.Info("agent.turn.complete", "chat", chatID, "turn", turnID)
}

// turn bundles the per-invocation state shared by the strategies.
type turn struct {
	agent   *Agent
	ctx     context.Context
	execCtx *core.ExecutionContext
	chatID  string
	input   string
	history []core.Message
	events  chan<- core.Event
}

// emit delivers one progress event, reporting false when the caller is gone.
func (t *turn) emit(ev core.Event) bool {
	select {
	case <-t.ctx.Done():
		return false
	case t.events <- ev:
		return true
	}
}

// conversation assembles the working messages for a model call: system
// prompt, optional semantic recalls, transcript, then the user input.
func (t *turn) conversation() []core.Message {
	msgs := make([]core.Message, 0, len(t.history)+3)
	msgs = append(msgs, core.SystemMessage(t.agent.systemPrompt))
	if recall := t.recallContext(); recall != "" {
		msgs = append(msgs, core.SystemMessage(recall))
	}
	msgs = append(msgs, t.history...)
	msgs = append(msgs, core.UserMessage(t.input))
	return msgs
}

// recallContext renders top-k semantic hits for injection, empty when the
// semantic store is absent or has nothing relevant.
func (t *turn) recallContext() string {
	if t.agent.semantic == nil {
		return ""
	}
	hits, err := t.agent.semantic.Search(t.ctx, t.input, t.agent.recallLimit)
	if err != nil {
		t.agent.logger.Warn("agent.semantic.search_failed", "chat", t.chatID, "error", err.Error())
		return ""
	}
	if len(hits) == 0 {
		return ""
	}
	recall := "Relevant context from earlier conversations:\n"
	for _, h := range hits {
		recall += "- " + h.Text + "\n"
	}
	return recall
}

// invokeTool runs one registry capability. Asynchronous tools suspend on
// their own I/O and are awaited directly; synchronous-by-nature tools run on
// a separate goroutine so a slow capability cannot stop the loop from
// noticing cancellation.
func (t *turn) invokeTool(name string, args map[string]any) (any, error) {
	if t.agent.registry.IsAsync(name) {
		return t.agent.registry.Invoke(t.execCtx, name, args)
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := t.agent.registry.Invoke(t.execCtx, name, args)
		done <- outcome{result, err}
	}()

	select {
	case <-t.ctx.Done():
		return nil, fmt.Errorf("tool %s abandoned: %w", name, t.ctx.Err())
	case o := <-done:
		return o.result, o.err
	}
}
