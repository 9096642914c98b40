package conversations

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/finn-shopping-assistant/server/internal/agent/model"
)

// MessagesManager keeps the stored transcript of a thread in the shape the
// engine expects: the system message first, then user and assistant turns.
type MessagesManager struct {
	store model.ConversationStore
}

func NewMessagesManager(store model.ConversationStore) *MessagesManager {
	return &MessagesManager{store: store}
}

// BeginTurn loads or creates the thread, replaces its transcript when history
// is supplied, appends the user message and returns the updated thread.
func (m *MessagesManager) BeginTurn(
	ctx context.Context,
	threadID string,
	system model.Message,
	history []model.Message,
	userMessage string,
) (*model.Thread, error) {
	if _, err := m.store.GetOrCreate(ctx, threadID, system); err != nil {
		return nil, fmt.Errorf("load thread: %w", err)
	}

	if len(history) > 0 {
		if err := m.store.ReplaceHistory(ctx, threadID, system, SanitizeHistory(history)); err != nil {
			return nil, fmt.Errorf("replace history: %w", err)
		}
	}

	if err := m.store.Append(ctx, threadID, model.UserMessage(userMessage)); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	thread, err := m.store.GetOrCreate(ctx, threadID, system)
	if err != nil {
		return nil, fmt.Errorf("reload thread: %w", err)
	}
	return thread, nil
}

// SaveResponse appends the final assistant reply.
func (m *MessagesManager) SaveResponse(ctx context.Context, threadID, content string) error {
	return m.store.Append(ctx, threadID, model.AssistantMessage(content))
}

func (m *MessagesManager) SaveContext(ctx context.Context, threadID string, tc model.ThreadContext) error {
	return m.store.SaveContext(ctx, threadID, tc)
}

// SanitizeHistory drops system entries and unknown roles from caller supplied history.
func SanitizeHistory(history []model.Message) []model.Message {
	out := make([]model.Message, 0, len(history))
	for _, msg := range history {
		role := model.Role(strings.ToLower(strings.TrimSpace(string(msg.Role))))
		if role == model.RoleSystem || !role.Valid() {
			continue
		}
		out = append(out, model.Message{Role: role, Content: msg.Content})
	}
	return out
}

// BuildTranscript returns the thread transcript with its leading system
// message replaced by systemPrompt.
func BuildTranscript(thread *model.Thread, systemPrompt string) []model.Message {
	out := make([]model.Message, 0, len(thread.Messages)+1)
	out = append(out, model.SystemMessage(systemPrompt))
	for i, msg := range thread.Messages {
		if i == 0 && msg.Role == model.RoleSystem {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// ToSchema converts transcript messages to eino messages.
func ToSchema(messages []model.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			out = append(out, schema.SystemMessage(msg.Content))
		case model.RoleUser:
			out = append(out, schema.UserMessage(msg.Content))
		case model.RoleAssistant:
			out = append(out, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return out
}
