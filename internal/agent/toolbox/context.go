package toolbox

import (
	"context"
	"sync"

	"github.com/finn-shopping-assistant/server/internal/agent/model"
)

type ctxKey int

const (
	recorderKey ctxKey = iota
	identityKey
)

// Recorder collects the tool invocations of one turn.
type Recorder struct {
	mu    sync.Mutex
	calls []model.ToolInvocation
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Record(inv model.ToolInvocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, inv)
}

// Invocations returns the recorded calls in call order.
func (r *Recorder) Invocations() []model.ToolInvocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ToolInvocation, len(r.calls))
	copy(out, r.calls)
	return out
}

func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey, r)
}

func RecorderFrom(ctx context.Context) *Recorder {
	r, _ := ctx.Value(recorderKey).(*Recorder)
	return r
}

// Identity is the user a turn acts for. It may be learnt mid-turn from a
// successful name lookup.
type Identity struct {
	mu     sync.RWMutex
	userID *int64
}

func NewIdentity(userID *int64) *Identity {
	id := &Identity{}
	if userID != nil {
		id.Set(*userID)
	}
	return id
}

func (i *Identity) Set(userID int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.userID = &userID
}

func (i *Identity) UserID() (int64, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.userID == nil {
		return 0, false
	}
	return *i.userID, true
}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}
