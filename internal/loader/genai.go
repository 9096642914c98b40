package loader

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

var errNoOutput = errors.New("model returned no output")

// GenAIEmbedder embeds text with a Vertex/Gemini embedding model.
type GenAIEmbedder struct {
	client *genai.Client
	model  string
	dims   int32
}

func NewGenAIEmbedder(client *genai.Client, cfg Config) *GenAIEmbedder {
	return &GenAIEmbedder{client: client, model: cfg.EmbeddingModel, dims: cfg.EmbeddingDims}
}

func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{TaskType: "RETRIEVAL_DOCUMENT"}
	if e.dims > 0 {
		dims := e.dims
		cfg.OutputDimensionality = &dims
	}
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errNoOutput
	}
	return resp.Embeddings[0].Values, nil
}

// GenAIImages generates square product photos with Imagen.
type GenAIImages struct {
	client *genai.Client
	model  string
}

func NewGenAIImages(client *genai.Client, cfg Config) *GenAIImages {
	return &GenAIImages{client: client, model: cfg.ImageModel}
}

func (g *GenAIImages) Generate(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := g.client.Models.GenerateImages(ctx, g.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages:    1,
		AspectRatio:       "1:1",
		Language:          genai.ImagePromptLanguageEn,
		SafetyFilterLevel: genai.SafetyFilterLevelBlockMediumAndAbove,
		OutputMIMEType:    "image/png",
	})
	if err != nil {
		return nil, fmt.Errorf("generate images: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil ||
		len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return nil, errNoOutput
	}
	return resp.GeneratedImages[0].Image.ImageBytes, nil
}
