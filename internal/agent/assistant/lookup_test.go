package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/finn-shopping-assistant/server/internal/agent/identity"
	"github.com/finn-shopping-assistant/server/internal/agent/model"
)

func TestEngineLookup(t *testing.T) {
	t.Parallel()

	toolErr := errors.New("gateway timeout")
	tests := []struct {
		name    string
		result  *model.EngineResult
		engErr  error
		want    int64
		wantErr error
	}{
		{
			name: "tool payload",
			result: &model.EngineResult{
				Text:        "Hello Maria! Nice to meet you! user_id: 12",
				Invocations: []model.ToolInvocation{invocation(model.ToolGetUserIDByName, `{"name":"Maria"}`, `[{"user_id":12}]`)},
			},
			want: 12,
		},
		{
			name: "empty result",
			result: &model.EngineResult{
				Text:        "42",
				Invocations: []model.ToolInvocation{{Name: model.ToolGetUserIDByName, Empty: true}},
			},
			wantErr: identity.ErrUserNotFound,
		},
		{
			name: "tool failure",
			result: &model.EngineResult{
				Invocations: []model.ToolInvocation{{Name: model.ToolGetUserIDByName, Err: toolErr}},
			},
			wantErr: toolErr,
		},
		{
			name:    "digits without a tool call",
			result:  &model.EngineResult{Text: "7"},
			wantErr: identity.ErrUserNotFound,
		},
		{
			name: "digits backed by an unparsed tool result",
			result: &model.EngineResult{
				Text:        "7",
				Invocations: []model.ToolInvocation{invocation(model.ToolGetUserIDByName, `{"name":"Maria"}`, `"user seven"`)},
			},
			want: 7,
		},
		{
			name:    "engine failure",
			engErr:  errors.New("model down"),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := &scriptedRunner{err: tt.engErr}
			if tt.result != nil {
				engine.results = []*model.EngineResult{tt.result}
			}
			lookup := NewEngineLookup(engine, "lookup system")

			got, err := lookup.LookupUserID(context.Background(), "Maria")
			switch {
			case tt.engErr != nil:
				if !errors.Is(err, tt.engErr) {
					t.Fatalf("LookupUserID() error = %v, want %v", err, tt.engErr)
				}
				return
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("LookupUserID() error = %v, want %v", err, tt.wantErr)
				}
				return
			case err != nil:
				t.Fatalf("LookupUserID() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("LookupUserID() = %d, want %d", got, tt.want)
			}

			req := engine.requests[0]
			if len(req.Transcript) != 2 || req.Transcript[0].Content != "lookup system" ||
				req.Transcript[1].Content != "get-user-id-by-name Maria" {
				t.Fatalf("lookup transcript = %+v", req.Transcript)
			}
		})
	}
}

func TestEngineLookupBlankName(t *testing.T) {
	t.Parallel()

	engine := &scriptedRunner{}
	_, err := NewEngineLookup(engine, "sys").LookupUserID(context.Background(), "  ")
	if !errors.Is(err, identity.ErrUserNotFound) {
		t.Fatalf("LookupUserID() error = %v, want %v", err, identity.ErrUserNotFound)
	}
	if engine.calls() != 0 {
		t.Fatalf("engine called %d times, want 0", engine.calls())
	}
}
