package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/finn-shopping-assistant/server/internal/agent/model"
	"github.com/finn-shopping-assistant/server/internal/agent/session"
)

// scriptedRunner answers every engine call with the next scripted result.
type scriptedRunner struct {
	mu       sync.Mutex
	results  []*model.EngineResult
	err      error
	requests []model.EngineRequest
	trace    *[]string
}

func (r *scriptedRunner) Invoke(ctx context.Context, req model.EngineRequest) (*model.EngineResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requests = append(r.requests, req)
	if r.trace != nil {
		*r.trace = append(*r.trace, "engine")
	}
	if r.err != nil {
		return nil, r.err
	}
	if len(r.results) == 0 {
		return &model.EngineResult{Text: "Hello! How can I help you today?"}, nil
	}
	res := r.results[0]
	r.results = r.results[1:]
	return res, nil
}

func (r *scriptedRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

type fakeLookup struct {
	ids   map[string]int64
	err   error
	names []string
	trace *[]string
}

func (l *fakeLookup) LookupUserID(ctx context.Context, name string) (int64, error) {
	l.names = append(l.names, name)
	if l.trace != nil {
		*l.trace = append(*l.trace, "lookup")
	}
	if l.err != nil {
		return 0, l.err
	}
	id, ok := l.ids[name]
	if !ok {
		return 0, errors.New("no such user")
	}
	return id, nil
}

// flakyStore fails Append once armed.
type flakyStore struct {
	*session.MemoryStore
	failAppend bool
}

var errStoreDown = errors.New("store down")

func (s *flakyStore) Append(ctx context.Context, threadID string, message model.Message) error {
	if s.failAppend {
		return errStoreDown
	}
	return s.MemoryStore.Append(ctx, threadID, message)
}

func invocation(name, args, result string) model.ToolInvocation {
	inv := model.ToolInvocation{Name: name, Result: json.RawMessage(result)}
	if args != "" {
		inv.Arguments = json.RawMessage(args)
	}
	return inv
}
