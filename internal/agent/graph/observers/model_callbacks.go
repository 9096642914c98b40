package observers

import (
	"context"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/finn-shopping-assistant/server/pkg/logger"
)

const maxLoggedReply = 256

func newModelHandler() *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			if input == nil {
				return ctx
			}
			logx.Debug().
				Str("model", info.Name).
				Int("messages", len(input.Messages)).
				Int("tools", len(input.Tools)).
				Str("last_user", truncate(lastByRole(input.Messages, schema.User), maxLoggedReply)).
				Msg("Model start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			if output == nil || output.Message == nil {
				return ctx
			}
			msg := output.Message
			ev := logx.Debug().Str("model", info.Name)
			if len(msg.ToolCalls) > 0 {
				names := make([]string, 0, len(msg.ToolCalls))
				for _, tc := range msg.ToolCalls {
					names = append(names, tc.Function.Name)
				}
				ev = ev.Strs("tool_calls", names)
			} else {
				ev = ev.Str("draft", truncate(strings.TrimSpace(msg.Content), maxLoggedReply))
			}
			ev.Msg("Model end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Err(err).Str("model", info.Name).Msg("Model call failed")
			return ctx
		},
	}
}

func lastByRole(msgs []*schema.Message, role schema.RoleType) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if m := msgs[i]; m != nil && m.Role == role {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}
