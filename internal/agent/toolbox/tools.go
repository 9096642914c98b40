package toolbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/finn-shopping-assistant/server/internal/agent/identity"
	"github.com/finn-shopping-assistant/server/internal/agent/model"
	logx "github.com/finn-shopping-assistant/server/pkg/logger"
)

const userIDParam = "user_id"

// Tool adapts one gateway tool to eino's InvokableTool.
type Tool struct {
	info       *schema.ToolInfo
	gw         Gateway
	userScoped bool
}

var _ tool.InvokableTool = (*Tool)(nil)

func (t *Tool) Info(context.Context) (*schema.ToolInfo, error) {
	return t.info, nil
}

// UserScoped reports whether the tool acts on behalf of a user id.
func (t *Tool) UserScoped() bool {
	return t.userScoped
}

// InvokableRun never returns an error for gateway failures: the failure is
// recorded for the turn and reported to the model as a JSON error object so
// the graph can finish the turn.
func (t *Tool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	name := t.info.Name
	args := map[string]any{}
	if s := strings.TrimSpace(argumentsInJSON); s != "" {
		if err := json.Unmarshal([]byte(s), &args); err != nil {
			return t.finish(ctx, model.ToolInvocation{
				Name:      name,
				Arguments: json.RawMessage(`{}`),
				Err:       fmt.Errorf("bad arguments: %w", err),
			})
		}
	}

	if t.userScoped {
		uid, ok := userIDFrom(ctx)
		if !ok {
			return t.finish(ctx, model.ToolInvocation{
				Name:      name,
				Arguments: marshalArgs(args),
				Err:       ErrIdentityRequired,
			})
		}
		if v, given := args[userIDParam]; given && fmt.Sprint(v) != fmt.Sprint(uid) {
			logx.Warn().
				Str("tool", name).
				Interface("model_user_id", v).
				Int64("user_id", uid).
				Msg("Overriding model supplied user id")
		}
		args[userIDParam] = uid
	}

	inv := model.ToolInvocation{Name: name, Arguments: marshalArgs(args)}
	result, err := t.gw.Call(ctx, name, args)
	switch {
	case errors.Is(err, ErrEmptyResult):
		inv.Empty = true
	case err != nil:
		inv.Err = err
	default:
		inv.Result = result
	}

	if name == model.ToolGetUserIDByName && inv.Succeeded() {
		if uid, perr := identity.ParseUserIDPayload(result); perr == nil {
			if id := IdentityFrom(ctx); id != nil {
				id.Set(uid)
			}
		}
	}

	return t.finish(ctx, inv)
}

func (t *Tool) finish(ctx context.Context, inv model.ToolInvocation) (string, error) {
	if r := RecorderFrom(ctx); r != nil {
		r.Record(inv)
	}

	switch {
	case errors.Is(inv.Err, ErrIdentityRequired):
		return `{"error":"user_id_required","message":"The user's ID is unknown. Ask the user for their user ID."}`, nil
	case inv.Err != nil:
		logx.Warn().Str("tool", inv.Name).Err(inv.Err).Msg("Tool call failed")
		out, _ := json.Marshal(map[string]string{"error": "tool_failed", "message": inv.Err.Error()})
		return string(out), nil
	case inv.Empty:
		return `{"result":[],"message":"No data found."}`, nil
	default:
		return string(inv.Result), nil
	}
}

func userIDFrom(ctx context.Context) (int64, bool) {
	id := IdentityFrom(ctx)
	if id == nil {
		return 0, false
	}
	return id.UserID()
}

func marshalArgs(args map[string]any) json.RawMessage {
	b, err := json.Marshal(args)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
