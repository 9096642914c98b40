package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/finn-shopping-assistant/server/internal/agent/graph"
	"github.com/finn-shopping-assistant/server/internal/agent/identity"
	"github.com/finn-shopping-assistant/server/internal/agent/model"
)

// EngineLookup resolves names through a dedicated engine turn bound only to
// the name lookup tool.
type EngineLookup struct {
	engine graph.Runner
	system string
}

var _ identity.NameLookup = (*EngineLookup)(nil)

// NewEngineLookup uses system as the lookup turn's system prompt.
func NewEngineLookup(engine graph.Runner, system string) *EngineLookup {
	return &EngineLookup{engine: engine, system: system}
}

func (l *EngineLookup) LookupUserID(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, identity.ErrUserNotFound
	}

	res, err := l.engine.Invoke(ctx, model.EngineRequest{
		ThreadID: "lookup:" + strings.ToLower(name),
		Transcript: []model.Message{
			model.SystemMessage(l.system),
			model.UserMessage(model.ToolGetUserIDByName + " " + name),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("lookup %q: %w", name, err)
	}

	invoked := false
	for i := len(res.Invocations) - 1; i >= 0; i-- {
		inv := res.Invocations[i]
		if inv.Name != model.ToolGetUserIDByName {
			continue
		}
		if inv.Failed() {
			return 0, fmt.Errorf("lookup %q: %w", name, inv.Err)
		}
		if inv.Empty {
			return 0, identity.ErrUserNotFound
		}
		if id, err := identity.ParseUserIDPayload(inv.Result); err == nil {
			return id, nil
		}
		invoked = true
	}

	// A reply is only trusted when it is backed by a lookup call.
	if invoked {
		if id, err := identity.ParseUserIDText(res.Text); err == nil {
			return id, nil
		}
	}
	return 0, identity.ErrUserNotFound
}
