package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/finn-shopping-assistant/server/internal/agent/assistant"
	"github.com/finn-shopping-assistant/server/internal/agent/graph"
	"github.com/finn-shopping-assistant/server/internal/agent/graph/nodes"
	"github.com/finn-shopping-assistant/server/internal/agent/graph/prompts"
	"github.com/finn-shopping-assistant/server/internal/agent/identity"
	"github.com/finn-shopping-assistant/server/internal/agent/model"
	"github.com/finn-shopping-assistant/server/internal/agent/session"
	"github.com/finn-shopping-assistant/server/internal/agent/toolbox"
	"github.com/finn-shopping-assistant/server/internal/api"
	"github.com/finn-shopping-assistant/server/internal/core"
	"github.com/finn-shopping-assistant/server/internal/images"
	"github.com/finn-shopping-assistant/server/pkg/config"
	"github.com/finn-shopping-assistant/server/pkg/gcs"
	logx "github.com/finn-shopping-assistant/server/pkg/logger"
	pkgredis "github.com/finn-shopping-assistant/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the server, sourced from
// environment variables (a local .env or the file given with -env).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	HTTP  api.Config
	Redis pkgredis.Config
	GCS   gcs.Config

	// Agent configs
	Agent        model.AgentModelConfig
	Prompt       model.PromptConfig
	Conversation model.ConversationConfig
	Toolbox      model.ToolboxConfig
}

func main() {
	cfg := config.MustNew[AppConfig]("")
	env := core.ParseEnvironment(cfg.Environment)
	logx.Init(logx.LoggerOpts{Environment: env, Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, closeStore, err := newConversationStore(ctx, cfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise conversation store")
	}
	defer closeStore()

	engine, lookup := newEngines(ctx, cfg)
	svc, err := assistant.NewService(ctx, assistant.Deps{
		Store:   store,
		Engine:  engine,
		Lookup:  lookup,
		Prompt:  cfg.Prompt,
		Metrics: assistant.NewMetrics(reg),
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise assistant")
	}

	var imgs images.Store
	if storageClient, err := cfg.GCS.New(ctx); err != nil {
		logx.Warn().Err(err).Msg("Image bucket unavailable; /images will answer 404")
	} else {
		defer storageClient.Close()
		imgs = images.NewGCSStore(storageClient, cfg.GCS)
	}

	router := api.NewRouter(api.NewAPIHandler(svc, imgs, env), cfg.HTTP, reg)
	addr := fmt.Sprintf(":%s", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info().Str("addr", addr).Bool("degraded", svc.Degraded()).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Str("addr", addr).Msg("Could not listen")
		}
	}()

	<-ctx.Done()
	logx.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("Server forced to shutdown")
		os.Exit(1)
	}
	logx.Info().Msg("Server exiting gracefully")
}

func newConversationStore(ctx context.Context, cfg *AppConfig) (model.ConversationStore, func(), error) {
	if !cfg.Redis.Enabled() {
		logx.Info().Msg("REDIS_URL not set; keeping conversations in memory")
		return session.NewMemoryStore(), func() {}, nil
	}

	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	logx.Info().Msg("Connected to Redis successfully")
	return session.NewRedisStore(rdb, cfg.Conversation.TTL), func() { _ = rdb.Close() }, nil
}

// newEngines builds the agent engine and the name lookup. Any failure leaves
// the engine nil, which runs the assistant in degraded mode.
func newEngines(ctx context.Context, cfg *AppConfig) (graph.Runner, identity.NameLookup) {
	client := toolbox.NewClient(cfg.Toolbox)
	manifest, err := client.LoadToolset(ctx, cfg.Toolbox.Toolset)
	if err != nil {
		logx.Error().Err(err).Str("url", cfg.Toolbox.URL).Msg("Tool gateway unavailable; starting in degraded mode")
		return nil, nil
	}

	agentCatalog, err := toolbox.NewCatalog(manifest, client)
	if err != nil {
		logx.Error().Err(err).Msg("Invalid toolset manifest; starting in degraded mode")
		return nil, nil
	}

	genaiClient, err := nodes.NewGenAIClient(ctx, cfg.Agent)
	if err != nil {
		return nil, nil
	}
	models, err := nodes.NewChatModels(ctx, genaiClient, cfg.Agent)
	if err != nil {
		return nil, nil
	}

	infos, err := agentCatalog.Infos(ctx)
	if err != nil || models.BindAgentTools(infos) != nil {
		logx.Error().Err(err).Msg("Failed to bind agent tools; starting in degraded mode")
		return nil, nil
	}

	agent, err := graph.New(ctx, &graph.GraphConfig{
		Name:         "agent",
		ChatModel:    models.Agent,
		ModelName:    models.ModelName,
		Catalog:      agentCatalog,
		ToolMaxCalls: cfg.Conversation.Tools.MaxCalls,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to build agent graph; starting in degraded mode")
		return nil, nil
	}

	if !agentCatalog.Has(model.ToolGetUserIDByName) {
		logx.Warn().Msg("Toolset has no name lookup tool; names will not be resolved")
		return agent, nil
	}
	return agent, newLookup(ctx, cfg, manifest, client, models)
}

func newLookup(
	ctx context.Context,
	cfg *AppConfig,
	manifest *toolbox.Manifest,
	client *toolbox.Client,
	models *nodes.ChatModels,
) identity.NameLookup {
	catalog, err := toolbox.NewCatalog(manifest, client, model.ToolGetUserIDByName)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to build lookup catalog")
		return nil
	}
	infos, err := catalog.Infos(ctx)
	if err != nil || models.BindLookupTools(infos) != nil {
		logx.Error().Err(err).Msg("Failed to bind lookup tool")
		return nil
	}

	engine, err := graph.New(ctx, &graph.GraphConfig{
		Name:         "lookup",
		ChatModel:    models.Lookup,
		ModelName:    models.ModelName,
		Catalog:      catalog,
		ToolMaxCalls: 2,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to build lookup graph")
		return nil
	}

	system, err := prompts.RenderLookup(ctx, cfg.Prompt)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to render lookup prompt")
		return nil
	}
	return assistant.NewEngineLookup(engine, system)
}
