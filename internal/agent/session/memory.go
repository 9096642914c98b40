// Package session holds the conversation stores: per-thread transcripts and
// resolved context, keyed by a caller-supplied thread id.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/finn-shopping-assistant/server/internal/agent/model"
)

// ErrInvalidThread is returned for an empty thread id.
var ErrInvalidThread = errors.New("thread id is empty")

type memoryThread struct {
	messages []model.Message
	ctx      model.ThreadContext
}

// MemoryStore keeps threads in process memory for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*memoryThread
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]*memoryThread)}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, threadID string, system model.Message) (*model.Thread, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, ErrInvalidThread
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		t = &memoryThread{}
		s.threads[threadID] = t
	}
	if len(t.messages) == 0 {
		t.messages = []model.Message{system}
	}
	return snapshot(threadID, t), nil
}

func (s *MemoryStore) Append(ctx context.Context, threadID string, message model.Message) error {
	if strings.TrimSpace(threadID) == "" {
		return ErrInvalidThread
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		t = &memoryThread{}
		s.threads[threadID] = t
	}
	t.messages = append(t.messages, message)
	return nil
}

func (s *MemoryStore) ReplaceHistory(ctx context.Context, threadID string, system model.Message, history []model.Message) error {
	if strings.TrimSpace(threadID) == "" {
		return ErrInvalidThread
	}

	msgs := make([]model.Message, 0, len(history)+1)
	msgs = append(msgs, system)
	msgs = append(msgs, history...)

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		t = &memoryThread{}
		s.threads[threadID] = t
	}
	t.messages = msgs
	return nil
}

func (s *MemoryStore) SaveContext(ctx context.Context, threadID string, tc model.ThreadContext) error {
	if strings.TrimSpace(threadID) == "" {
		return ErrInvalidThread
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		t = &memoryThread{}
		s.threads[threadID] = t
	}
	t.ctx = copyContext(tc)
	return nil
}

// Len returns the number of known threads.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}

func snapshot(id string, t *memoryThread) *model.Thread {
	msgs := make([]model.Message, len(t.messages))
	copy(msgs, t.messages)
	return &model.Thread{ID: id, Messages: msgs, Context: copyContext(t.ctx)}
}

func copyContext(tc model.ThreadContext) model.ThreadContext {
	if tc.UserID != nil {
		id := *tc.UserID
		tc.UserID = &id
	}
	return tc
}

var _ model.ConversationStore = (*MemoryStore)(nil)
