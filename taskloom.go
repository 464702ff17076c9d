// Package taskloom provides a high-level façade over the agent loop and its
// collaborators (generation backends, tool registry, planner, executor and
// memory stores). Most applications interact with this package by:
//  1. Creating a Taskloom via New() (optionally from a config.Config)
//  2. Registering tools
//  3. Running turns asynchronously (Chat) or synchronously (ChatSync)
//
// The façade delegates turn orchestration to agent.Agent while keeping setup
// concise. All defaults are safe for local development and testing; production
// deployments typically supply a durable history store and a structured
// logger.
package taskloom

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/taskloom/taskloom/agent"
	"github.com/taskloom/taskloom/config"
	"github.com/taskloom/taskloom/core"
	"github.com/taskloom/taskloom/executor"
	"github.com/taskloom/taskloom/logging"
	"github.com/taskloom/taskloom/memory"
	"github.com/taskloom/taskloom/model"
	"github.com/taskloom/taskloom/model/anthropic"
	"github.com/taskloom/taskloom/model/openai"
	"github.com/taskloom/taskloom/plan"
	"github.com/taskloom/taskloom/tool"
)

// Options configure a Taskloom instance.
type Options struct {
	// Config provides the declarative setup; defaults to config.Default().
	Config config.Config
	// Model overrides the backend the config would construct.
	Model model.Model
	// History overrides the store the config would construct.
	History memory.History
	// Semantic overrides the recall store; nil follows the config.
	Semantic memory.SemanticStore
	// Tools are registered during construction.
	Tools []tool.Tool
	// Logger defaults to one built from the config's logging section.
	Logger logging.Logger
}

// Taskloom aggregates the agent loop and its services behind a small API.
type Taskloom struct {
	agent    *agent.Agent
	registry *tool.Registry
	history  memory.History
	logger   logging.Logger
}

// New creates a Taskloom instance with optional overrides. Any unset service
// is built from the configuration.
func New(optFns ...func(o *Options)) (*Taskloom, error) {
	opts := Options{Config: config.Default()}
	for _, fn := range optFns {
		fn(&opts)
	}
	cfg := opts.Config

	logger := opts.Logger
	if logger == nil {
		logger = logging.New(logging.Config{
			Level:  logging.ParseLevel(cfg.Logging.Level),
			Format: cfg.Logging.Format,
		})
	}

	llm := opts.Model
	if llm == nil {
		var err error
		llm, err = buildModel(cfg)
		if err != nil {
			return nil, err
		}
	}

	history := opts.History
	if history == nil {
		var err error
		history, err = buildHistory(cfg.Memory)
		if err != nil {
			return nil, err
		}
	}

	semantic := opts.Semantic
	if semantic == nil && cfg.Memory.SemanticRecall {
		semantic = memory.NewKeywordStore()
	}

	registry := tool.NewRegistry()
	for _, t := range opts.Tools {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	var strategy agent.Strategy
	switch cfg.Strategy {
	case "react":
		strategy = agent.NewReactStrategy()
	default:
		strategy = agent.NewRouterStrategy()
	}

	a := agent.New(llm, registry, func(o *agent.Options) {
		if cfg.SystemPrompt != "" {
			o.SystemPrompt = cfg.SystemPrompt
		}
		o.MaxSteps = cfg.MaxSteps
		o.Strategy = strategy
		o.History = history
		o.Semantic = semantic
		o.Logger = logger
		o.Router = plan.NewRouter(llm, func(ro *plan.RouterOptions) {
			ro.HistoryWindow = cfg.HistoryWindow
			ro.Logger = logger
		})
		o.Planner = plan.NewPlanner(llm, func(po *plan.PlannerOptions) {
			po.HistoryWindow = cfg.HistoryWindow
			po.Logger = logger
		})
		o.Executor = executor.New(registry, func(eo *executor.Options) {
			eo.MaxConcurrency = cfg.Executor.MaxConcurrency
			eo.MaxIterations = cfg.Executor.MaxIterations
			eo.Logger = logger
		})
	})

	return &Taskloom{agent: a, registry: registry, history: history, logger: logger}, nil
}

func buildModel(cfg config.Config) (model.Model, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func buildHistory(cfg config.MemoryConfig) (memory.History, error) {
	switch cfg.Backend {
	case "memory":
		return memory.NewInMemoryHistory(), nil
	case "file":
		return memory.NewFileHistory(cfg.Path)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		return memory.NewRedisHistory(client), nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Backend)
	}
}

// RegisterTool adds one tool to the registry. Register before the first turn;
// the registry is treated as read-only afterwards.
func (tl *Taskloom) RegisterTool(t tool.Tool) error {
	return tl.registry.Register(t)
}

// RegisterTools adds a batch of tools, stopping at the first failure.
func (tl *Taskloom) RegisterTools(tools ...tool.Tool) error {
	for _, t := range tools {
		if err := tl.registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Tools returns the registered tool definitions in registration order.
func (tl *Taskloom) Tools() []tool.Definition {
	return tl.registry.Describe()
}

// Chat runs one turn asynchronously and returns its ordered progress event
// stream. The channel closes after the terminal final event.
func (tl *Taskloom) Chat(ctx context.Context, chatID, input string) <-chan core.Event {
	return tl.agent.Run(ctx, chatID, input)
}

// ChatSync runs one turn and blocks until the final answer, discarding
// intermediate progress events.
func (tl *Taskloom) ChatSync(ctx context.Context, chatID, input string) (string, error) {
	var final string
	for ev := range tl.agent.Run(ctx, chatID, input) {
		if ev.Type == core.EventFinal {
			final = ev.Content
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return final, nil
}

// ClearHistory drops the persisted transcript for a chat identity.
func (tl *Taskloom) ClearHistory(ctx context.Context, chatID string) error {
	return tl.history.Clear(ctx, chatID)
}
