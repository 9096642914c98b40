package graph

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/finn-shopping-assistant/server/internal/agent/graph/nodes"
	"github.com/finn-shopping-assistant/server/internal/agent/graph/observers"
	"github.com/finn-shopping-assistant/server/internal/agent/model"
	"github.com/finn-shopping-assistant/server/internal/agent/toolbox"
	logx "github.com/finn-shopping-assistant/server/pkg/logger"
)

// Runner delegates one transcript to the reasoning engine.
type Runner interface {
	Invoke(ctx context.Context, req model.EngineRequest) (*model.EngineResult, error)
}

// GraphConfig holds all configuration needed to build the graph.
// ChatModel must already be bound to the tool infos of Catalog.
type GraphConfig struct {
	Name         string
	ChatModel    einomodel.BaseChatModel
	ModelName    string
	Catalog      *toolbox.Catalog
	ToolMaxCalls int
}

// GraphBuilder handles the construction of the tool loop graph.
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.EngineRequest, *schema.Message]
}

// Engine runs the compiled graph for one turn and collects the tool calls it made.
type Engine struct {
	name     string
	runnable compose.Runnable[model.EngineRequest, *schema.Message]
}

var _ Runner = (*Engine)(nil)

func (e *Engine) Invoke(ctx context.Context, req model.EngineRequest) (*model.EngineResult, error) {
	rec := toolbox.NewRecorder()
	ctx = toolbox.WithRecorder(ctx, rec)
	ctx = toolbox.WithIdentity(ctx, toolbox.NewIdentity(req.UserID))

	out, err := e.runnable.Invoke(ctx, req, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return nil, fmt.Errorf("%s engine: %w", e.name, err)
	}

	res := &model.EngineResult{Invocations: rec.Invocations()}
	if out != nil {
		res.Text = strings.TrimSpace(out.Content)
		if v, ok := out.Extra["usage_cost_total_usd"].(float64); ok {
			res.CostUSD = v
		}
	}

	logx.Debug().
		Str("engine", e.name).
		Str("thread_id", req.ThreadID).
		Int("tool_invocations", len(res.Invocations)).
		Float64("cost_usd", res.CostUSD).
		Msg("Engine turn finished")
	return res, nil
}

// New builds and compiles an engine.
func New(ctx context.Context, config *GraphConfig) (*Engine, error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModel == nil {
		return nil, fmt.Errorf("chat model is not initialized")
	}
	if config.Catalog == nil {
		return nil, fmt.Errorf("tool catalog is nil")
	}
	if config.Name == "" {
		config.Name = "agent"
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.EngineRequest, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.setupTools(ctx); err != nil {
		return nil, err
	}
	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{name: config.Name, runnable: runnable}, nil
}

// setupTools adds the tools node backed by the gateway catalog.
func (b *GraphBuilder) setupTools(ctx context.Context) error {
	catalog := b.config.Catalog

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               catalog.Tools(),
		ExecuteSequentially: true,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			logx.Warn().
				Str("tool_name", name).
				Str("arguments", input).
				Msg("Unknown or invalid tool call; returning fallback result")
			return fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q,\"note\":\"ignored\"}", name), nil
		},
		ToolArgumentsHandler: func(ctx context.Context, name, arguments string) (string, error) {
			return catalog.NormalizeArguments(name, arguments), nil
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return fmt.Errorf("failed to create tools node: %w", err)
	}

	if err := b.graph.AddToolsNode(nodes.NodeToolExecutor, toolsNode,
		compose.WithStatePreHandler(nodes.NewToolExecutorPreHandler(b.config.ToolMaxCalls)),
	); err != nil {
		return fmt.Errorf("add tools node: %w", err)
	}
	return nil
}

func (b *GraphBuilder) addNodes() error {
	if err := b.graph.AddLambdaNode(nodes.NodeInputConverter,
		nodes.NewInputConverterNode(),
		compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
	); err != nil {
		return fmt.Errorf("add input converter: %w", err)
	}

	if err := b.graph.AddChatModelNode(nodes.NodeChatModel,
		b.config.ChatModel,
		compose.WithStatePreHandler(nodes.NewChatModelPreHandler(b.config.ToolMaxCalls)),
		compose.WithStatePostHandler(nodes.NewChatModelPostHandler(b.config.ModelName)),
	); err != nil {
		return fmt.Errorf("add chat model: %w", err)
	}
	return nil
}

func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeChatModel},
		{nodes.NodeToolExecutor, nodes.NodeChatModel},
	}
	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

func (b *GraphBuilder) addBranches() error {
	decisionBranch := compose.NewGraphBranch(
		nodes.NewToolExecutorCondition(),
		map[string]bool{
			nodes.NodeToolExecutor: true,
			compose.END:            true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeChatModel, decisionBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding decision branch")
		return fmt.Errorf("error adding decision branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph.
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.EngineRequest, *schema.Message], error) {
	// Limit total run steps to avoid infinite loops in branching or tool retries
	maxSteps := 10 + b.config.ToolMaxCalls*2
	if maxSteps < 20 {
		maxSteps = 20
	}

	runnable, err := b.graph.Compile(ctx,
		compose.WithMaxRunSteps(maxSteps),
		compose.WithGraphName(b.config.Name),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Str("engine", b.config.Name).Strs("tools", b.config.Catalog.Names()).Msg("Graph compiled successfully")
	return runnable, nil
}
