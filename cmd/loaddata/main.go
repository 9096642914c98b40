// Command loaddata provisions the retail database used by the tool gateway.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/finn-shopping-assistant/server/internal/agent/graph/nodes"
	"github.com/finn-shopping-assistant/server/internal/agent/model"
	"github.com/finn-shopping-assistant/server/internal/core"
	"github.com/finn-shopping-assistant/server/internal/images"
	"github.com/finn-shopping-assistant/server/internal/loader"
	"github.com/finn-shopping-assistant/server/pkg/config"
	"github.com/finn-shopping-assistant/server/pkg/gcs"
	logx "github.com/finn-shopping-assistant/server/pkg/logger"
	"github.com/finn-shopping-assistant/server/pkg/postgres"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	DB     postgres.Config
	GCS    gcs.Config
	Agent  model.AgentModelConfig
	Loader loader.Config
}

func main() {
	var plan loader.Plan
	flag.BoolVar(&plan.All, "all", false, "run every step except -images")
	flag.BoolVar(&plan.Schema, "schema", false, "drop and create tables")
	flag.BoolVar(&plan.CSV, "csv", false, "load CSV files from LOADER_DATA_DIR")
	flag.BoolVar(&plan.Embeddings, "embeddings", false, "embed product descriptions")
	flag.BoolVar(&plan.Locations, "locations", false, "set store and user locations")
	flag.BoolVar(&plan.SearchVector, "search-vector", false, "create the full-text search column")
	flag.BoolVar(&plan.ImageURLs, "image-urls", false, "point products at images/<name>.png")
	flag.BoolVar(&plan.Indexes, "indexes", false, "create secondary indexes")
	flag.BoolVar(&plan.Images, "images", false, "generate missing product images into the bucket")
	dataDir := flag.String("data", "", "CSV directory, overrides LOADER_DATA_DIR")

	cfg := config.MustNew[Config]("")
	if *dataDir != "" {
		cfg.Loader.DataDir = *dataDir
	}

	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(cfg.Environment),
		Level:       cfg.LogLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, plan); err != nil {
		logx.Error().Err(err).Msg("Data load failed")
		stop()
		os.Exit(1)
	}
	logx.Info().Strs("steps", plan.Steps()).Msg("Data load complete")
}

func run(ctx context.Context, cfg *Config, plan loader.Plan) error {
	db, err := cfg.DB.New(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	var opts []loader.Option
	if plan.All || plan.Embeddings || plan.Images {
		client, err := nodes.NewGenAIClient(ctx, cfg.Agent)
		if err != nil {
			return err
		}
		opts = append(opts, loader.WithEmbedder(loader.NewGenAIEmbedder(client, cfg.Loader)))

		if plan.Images {
			storage, err := cfg.GCS.New(ctx)
			if err != nil {
				return err
			}
			defer storage.Close()
			opts = append(opts, loader.WithImages(
				loader.NewGenAIImages(client, cfg.Loader),
				images.NewGCSStore(storage, cfg.GCS),
			))
		}
	}

	return loader.New(db, opts...).Run(ctx, plan, cfg.Loader)
}
