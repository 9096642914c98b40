package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	TTL   time.Duration `envconfig:"CONVERSATION_TTL" default:"24h"`
	Tools struct {
		MaxCalls int `envconfig:"CONVERSATION_TOOL_MAX_CALLS" default:"10"`
	}
}

// AgentModelConfig configures the Gemini chat model behind the reasoning engine.
// Backend is either "gemini" (API key) or "vertex" (project/location, ADC).
type AgentModelConfig struct {
	Backend     string  `envconfig:"AGENT_BACKEND" default:"gemini"`
	APIKey      string  `envconfig:"GEMINI_API_KEY"`
	BaseURL     string  `envconfig:"GEMINI_BASE_URL"`
	Project     string  `envconfig:"GOOGLE_CLOUD_PROJECT"`
	Location    string  `envconfig:"GOOGLE_CLOUD_LOCATION" default:"us-central1"`
	Model       string  `envconfig:"AGENT_MODEL" default:"gemini-2.0-flash"`
	MaxTokens   int     `envconfig:"AGENT_MAX_TOKENS" default:"2048"`
	Temperature float32 `envconfig:"AGENT_TEMPERATURE" default:"0.2"`
}

type PromptConfig struct {
	AssistantName string `envconfig:"PROMPT_ASSISTANT_NAME" default:"Finn"`
	StoreName     string `envconfig:"PROMPT_STORE_NAME" default:"GenAI Sports"`
	Currency      string `envconfig:"PROMPT_CURRENCY" default:"€"`
}

// ToolboxConfig points at the hosted tool gateway.
type ToolboxConfig struct {
	URL     string        `envconfig:"TOOLBOX_URL"`
	Toolset string        `envconfig:"TOOLBOX_TOOLSET" default:""`
	Token   string        `envconfig:"TOOLBOX_TOKEN"`
	Timeout time.Duration `envconfig:"TOOLBOX_TIMEOUT" default:"30s"`
}
