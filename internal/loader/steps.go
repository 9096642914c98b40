package loader

import (
	"context"
	"fmt"

	logx "github.com/finn-shopping-assistant/server/pkg/logger"
)

// Step names, in the order Run executes them.
const (
	StepSchema       = "schema"
	StepCSV          = "csv"
	StepEmbeddings   = "embeddings"
	StepLocations    = "locations"
	StepSearchVector = "search-vector"
	StepImageURLs    = "image-urls"
	StepIndexes      = "indexes"
	StepImages       = "images"
)

var order = []string{
	StepSchema, StepCSV, StepEmbeddings, StepLocations,
	StepSearchVector, StepImageURLs, StepIndexes, StepImages,
}

// Plan selects loader steps. All enables every step but images, which
// costs one generation call per product.
type Plan struct {
	All          bool
	Schema       bool
	CSV          bool
	Embeddings   bool
	Locations    bool
	SearchVector bool
	ImageURLs    bool
	Indexes      bool
	Images       bool
}

// Steps lists the selected steps in execution order.
func (p Plan) Steps() []string {
	selected := map[string]bool{
		StepSchema:       p.All || p.Schema,
		StepCSV:          p.All || p.CSV,
		StepEmbeddings:   p.All || p.Embeddings,
		StepLocations:    p.All || p.Locations,
		StepSearchVector: p.All || p.SearchVector,
		StepImageURLs:    p.All || p.ImageURLs,
		StepIndexes:      p.All || p.Indexes,
		StepImages:       p.Images,
	}
	var out []string
	for _, s := range order {
		if selected[s] {
			out = append(out, s)
		}
	}
	return out
}

// Run executes the plan and stops at the first failing step.
func (l *Loader) Run(ctx context.Context, plan Plan, cfg Config) error {
	steps := plan.Steps()
	if len(steps) == 0 {
		return fmt.Errorf("no loader step selected")
	}

	for _, step := range steps {
		logx.Info().Str("step", step).Msg("Running loader step")

		var err error
		switch step {
		case StepSchema:
			err = l.CreateSchema(ctx)
		case StepCSV:
			err = l.LoadCSV(ctx, cfg.DataDir)
		case StepEmbeddings:
			err = l.GenerateEmbeddings(ctx, cfg.EmbeddingDims)
		case StepLocations:
			err = l.AddLocations(ctx)
		case StepSearchVector:
			err = l.CreateSearchVector(ctx)
		case StepImageURLs:
			err = l.UpdateImageURLs(ctx)
		case StepIndexes:
			err = l.CreateIndexes(ctx)
		case StepImages:
			err = l.GenerateImages(ctx)
		}
		if err != nil {
			return fmt.Errorf("step %s: %w", step, err)
		}
	}
	return nil
}
