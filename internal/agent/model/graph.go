package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
type AppState struct {
	ThreadID             string
	History              []*schema.Message // mutated only inside Eino state handlers
	ToolCallCount        int               // maintained in handlers (reset/increment)
	ToolCallLimitReached bool              // set when tool call limit is exceeded
	ToolCallIDSeq        int               // local sequence to synthesize tool_call_id when provider omits

	// Accumulated total LLM cost (USD) across model invocations for this turn
	TotalCostUSD float64
}

// EngineRequest is one delegation to the reasoning engine.
// UserID is the identity tools may act on; nil blocks identity-requiring tools.
type EngineRequest struct {
	ThreadID   string
	Transcript []Message
	UserID     *int64
}

// EngineResult is the engine's final text plus every tool call it made.
type EngineResult struct {
	Text        string
	Invocations []ToolInvocation
	CostUSD     float64
}

// TurnInput is one incoming chat message. A non-empty History replaces the
// stored transcript before the message is appended.
type TurnInput struct {
	ThreadID string
	Message  string
	History  []Message
}

// TurnOutput is what the caller receives for a turn.
type TurnOutput struct {
	ThreadID string
	Response string
	Intent   string
	Fallback bool
	UserID   *int64
}
