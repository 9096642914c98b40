package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/finn-shopping-assistant/server/internal/agent/graph/conversations"
	"github.com/finn-shopping-assistant/server/internal/agent/model"
	logx "github.com/finn-shopping-assistant/server/pkg/logger"
)

// NewInputConverterPreHandler resets the per-turn counters.
func NewInputConverterPreHandler() func(context.Context, model.EngineRequest, *model.AppState) (model.EngineRequest, error) {
	return func(ctx context.Context, in model.EngineRequest, s *model.AppState) (model.EngineRequest, error) {
		s.ThreadID = in.ThreadID
		s.History = nil
		s.ToolCallCount = 0
		s.ToolCallLimitReached = false
		s.ToolCallIDSeq = 0
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode turns the stored transcript into model messages.
func NewInputConverterNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.EngineRequest) ([]*schema.Message, error) {
		if len(in.Transcript) == 0 {
			return nil, fmt.Errorf("empty transcript for thread %q", in.ThreadID)
		}
		if in.Transcript[0].Role != model.RoleSystem {
			return nil, fmt.Errorf("transcript for thread %q does not start with a system message", in.ThreadID)
		}
		return conversations.ToSchema(in.Transcript), nil
	})
}

// NewChatModelPreHandler accumulates the turn history and, once the tool
// budget is spent, asks the model to wrap up.
func NewChatModelPreHandler(maxToolCalls int) func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		// Tool results must carry the id of the call they answer.
		fillToolCallIDs(in, state.History)

		state.History = append(state.History, in...)

		if checkAndMarkToolLimit(state, maxToolCalls) {
			maxToolCalls = normalizeMaxToolCalls(maxToolCalls)
			state.History = append(state.History, &schema.Message{
				Role: schema.System,
				Content: fmt.Sprintf(
					"SYSTEM NOTICE: the tool call limit (%d) for this message is reached. "+
						"Answer with the tool results you already have and do not call more tools.",
					maxToolCalls,
				),
			})
		}

		logx.Debug().Str("thread_id", state.ThreadID).Int("messages", len(state.History)).Msg("Model thinking")
		return state.History, nil
	}
}

// fillToolCallIDs matches tool results to the last assistant tool calls by position.
func fillToolCallIDs(in []*schema.Message, history []*schema.Message) {
	var calls []schema.ToolCall
	for i := len(history) - 1; i >= 0; i-- {
		if m := history[i]; m != nil && m.Role == schema.Assistant && len(m.ToolCalls) > 0 {
			calls = m.ToolCalls
			break
		}
	}
	if len(calls) == 0 {
		return
	}
	n := 0
	for _, msg := range in {
		if msg == nil || msg.Role != schema.Tool {
			continue
		}
		if strings.TrimSpace(msg.ToolCallID) == "" {
			idx := n
			if idx >= len(calls) {
				idx = len(calls) - 1
			}
			msg.ToolCallID = calls[idx].ID
		}
		n++
	}
}

// NewChatModelPostHandler accounts usage cost and normalizes tool call ids.
func NewChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("model %s returned no message", modelName)
		}

		if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			usage := out.ResponseMeta.Usage
			cost := model.ResolvePricing(modelName).Price(usage)
			state.TotalCostUSD += cost.TotalUSD()

			if out.Extra == nil {
				out.Extra = map[string]any{}
			}
			out.Extra["usage_cost_total_usd"] = state.TotalCostUSD

			logx.Debug().
				Str("thread_id", state.ThreadID).
				Str("node", NodeChatModel).
				Str("model", modelName).
				Int("prompt_tokens", usage.PromptTokens).
				Int("completion_tokens", usage.CompletionTokens).
				Int("total_tokens", usage.TotalTokens).
				Float64("input_cost_usd", cost.InputUSD).
				Float64("output_cost_usd", cost.OutputUSD).
				Float64("total_cost_usd", state.TotalCostUSD).
				Msg("LLM usage")
		}

		// Some providers omit tool call ids.
		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				state.ToolCallIDSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
			}
		}

		state.History = append(state.History, out)

		if len(out.ToolCalls) > 0 {
			logx.Debug().Str("thread_id", state.ThreadID).Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
		} else {
			logx.Debug().Str("thread_id", state.ThreadID).Msg("Model response ready")
		}
		return out, nil
	}
}

// NewToolExecutorCondition routes to the tools node while the model asks for
// tools and the budget allows it.
func NewToolExecutorCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		var limitReached bool
		if err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			limitReached = state.ToolCallLimitReached
			return nil
		}); err != nil {
			return "", err
		}

		if limitReached {
			logx.Debug().Msg("Tool limit reached - routing to end")
			return compose.END, nil
		}
		if input != nil && len(input.ToolCalls) > 0 {
			return NodeToolExecutor, nil
		}
		return compose.END, nil
	}
}

// NewToolExecutorPreHandler counts tool rounds against the per-turn budget.
func NewToolExecutorPreHandler(maxToolCalls int) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.AppState) (*schema.Message, error) {
		exceeded := incrementToolCallAndCheck(state, maxToolCalls)

		logx.Debug().
			Int("tool_call_count", state.ToolCallCount).
			Str("thread_id", state.ThreadID).
			Msg("Tool execution attempt")

		if exceeded {
			logx.Warn().
				Int("tool_call_count", state.ToolCallCount).
				Int("max_tool_calls", normalizeMaxToolCalls(maxToolCalls)).
				Str("thread_id", state.ThreadID).
				Msg("Tool call limit exceeded - flagging and continuing")
		}
		return in, nil
	}
}
