package nodes

import (
	"github.com/finn-shopping-assistant/server/internal/agent/model"
)

const DefaultMaxToolCalls = 10

// Graph node keys.
const (
	NodeInputConverter = "InputConverter"
	NodeChatModel      = "ChatModel"
	NodeToolExecutor   = "ToolExecutor"
)

// normalizeMaxToolCalls returns a sane default when the provided value is invalid.
func normalizeMaxToolCalls(n int) int {
	if n <= 0 {
		return DefaultMaxToolCalls
	}
	return n
}

// checkAndMarkToolLimit marks the state once the count has reached the limit.
// Returns true only when marked by this call.
func checkAndMarkToolLimit(state *model.AppState, max int) bool {
	max = normalizeMaxToolCalls(max)
	if !state.ToolCallLimitReached && state.ToolCallCount >= max {
		state.ToolCallLimitReached = true
		return true
	}
	return false
}

// incrementToolCallAndCheck counts one tool round and reports whether it went over the limit.
func incrementToolCallAndCheck(state *model.AppState, max int) bool {
	max = normalizeMaxToolCalls(max)
	state.ToolCallCount++
	if state.ToolCallCount > max {
		state.ToolCallLimitReached = true
		return true
	}
	return false
}
