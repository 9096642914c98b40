package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/finn-shopping-assistant/server/internal/agent/model"
	logx "github.com/finn-shopping-assistant/server/pkg/logger"
)

// ChatModels holds the assistant model and the model of the name lookup turn.
// They are separate instances because each is bound to its own tool set.
type ChatModels struct {
	Agent     *gemini.ChatModel
	Lookup    *gemini.ChatModel
	ModelName string
}

// NewGenAIClient builds the Gemini client for either the Gemini API or Vertex AI.
func NewGenAIClient(ctx context.Context, cfg model.AgentModelConfig) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{}
	switch strings.ToLower(cfg.Backend) {
	case "vertex", "vertexai":
		clientCfg.Backend = genai.BackendVertexAI
		clientCfg.Project = cfg.Project
		clientCfg.Location = cfg.Location
	default:
		clientCfg.Backend = genai.BackendGeminiAPI
		clientCfg.APIKey = cfg.APIKey
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Str("backend", cfg.Backend).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewChatModels creates the agent and lookup chat models on one client.
func NewChatModels(ctx context.Context, client *genai.Client, cfg model.AgentModelConfig) (*ChatModels, error) {
	newModel := func(temperature float32) (*gemini.ChatModel, error) {
		maxTokens := cfg.MaxTokens
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       cfg.Model,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		})
	}

	agent, err := newModel(cfg.Temperature)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating agent model")
		return nil, fmt.Errorf("error creating agent model: %w", err)
	}

	// The lookup turn only has to copy a number out of a tool result.
	lookup, err := newModel(0)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating lookup model")
		return nil, fmt.Errorf("error creating lookup model: %w", err)
	}

	return &ChatModels{Agent: agent, Lookup: lookup, ModelName: cfg.Model}, nil
}

// BindAgentTools binds the full tool set to the agent model.
func (cm *ChatModels) BindAgentTools(tools []*schema.ToolInfo) error {
	if err := cm.Agent.BindTools(tools); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools to agent model")
		return fmt.Errorf("failed to bind agent tools: %w", err)
	}
	logx.Debug().Int("tools", len(tools)).Msg("Bound tools to agent model")
	return nil
}

// BindLookupTools binds the name lookup tool to the lookup model.
func (cm *ChatModels) BindLookupTools(tools []*schema.ToolInfo) error {
	if err := cm.Lookup.BindTools(tools); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools to lookup model")
		return fmt.Errorf("failed to bind lookup tools: %w", err)
	}
	return nil
}
