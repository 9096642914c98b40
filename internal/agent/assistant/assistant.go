// Package assistant runs one chat turn end to end:
// RECEIVED -> IDENTITY_CHECK -> DELEGATED -> FORMATTED -> APPENDED.
package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/finn-shopping-assistant/server/internal/agent/format"
	"github.com/finn-shopping-assistant/server/internal/agent/graph"
	"github.com/finn-shopping-assistant/server/internal/agent/graph/conversations"
	"github.com/finn-shopping-assistant/server/internal/agent/graph/prompts"
	"github.com/finn-shopping-assistant/server/internal/agent/identity"
	"github.com/finn-shopping-assistant/server/internal/agent/model"
	"github.com/finn-shopping-assistant/server/internal/agent/toolbox"
	errx "github.com/finn-shopping-assistant/server/internal/core/error"
	logx "github.com/finn-shopping-assistant/server/pkg/logger"
)

const (
	EngineErrorMessage = "I encountered an error while processing your message. Please try again."
	DegradedMessage    = "I'm having trouble connecting to my tools. Please try again in a moment."
)

// Turn states, logged as the turn advances.
const (
	StateReceived      = "RECEIVED"
	StateIdentityCheck = "IDENTITY_CHECK"
	StateDelegated     = "DELEGATED"
	StateFormatted     = "FORMATTED"
	StateAppended      = "APPENDED"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoThread     = errors.New("thread id is empty")
)

// Deps wires a Service. A nil Engine puts the service in degraded mode.
type Deps struct {
	Store   model.ConversationStore
	Engine  graph.Runner
	Lookup  identity.NameLookup
	Prompt  model.PromptConfig
	Metrics *Metrics
}

type Service struct {
	messages  *conversations.MessagesManager
	engine    graph.Runner
	resolver  *identity.Resolver
	formatter *format.Formatter
	prompt    model.PromptConfig
	system    model.Message
	metrics   *Metrics
}

func NewService(ctx context.Context, deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("conversation store is nil")
	}

	base, err := prompts.RenderSystem(ctx, deps.Prompt, nil)
	if err != nil {
		return nil, err
	}

	if deps.Engine == nil {
		logx.Warn().Msg("Assistant running in degraded mode: tool gateway unavailable")
	}

	return &Service{
		messages:  conversations.NewMessagesManager(deps.Store),
		engine:    deps.Engine,
		resolver:  identity.NewResolver(deps.Lookup),
		formatter: format.NewFormatter(format.Options{Currency: deps.Prompt.Currency}),
		prompt:    deps.Prompt,
		system:    model.SystemMessage(base),
		metrics:   deps.Metrics,
	}, nil
}

// Degraded reports whether the service answers without tools.
func (s *Service) Degraded() bool {
	return s.engine == nil
}

// ProcessMessage runs one turn. Engine failures are answered with
// EngineErrorMessage and leave the transcript without an assistant reply;
// only invalid input and store failures are returned as errors.
func (s *Service) ProcessMessage(ctx context.Context, in model.TurnInput) (*model.TurnOutput, error) {
	threadID := strings.TrimSpace(in.ThreadID)
	message := strings.TrimSpace(in.Message)
	if threadID == "" {
		return nil, errx.BadRequest(ErrNoThread)
	}
	if message == "" {
		return nil, errx.BadRequest(ErrEmptyMessage)
	}

	if s.Degraded() {
		s.metrics.turn(OutcomeDegraded)
		return &model.TurnOutput{ThreadID: threadID, Response: DegradedMessage, Fallback: true}, nil
	}

	log := func(state string) {
		logx.Debug().Str("thread_id", threadID).Str("state", state).Msg("Turn state")
	}

	log(StateReceived)
	thread, err := s.messages.BeginTurn(ctx, threadID, s.system, in.History, message)
	if err != nil {
		s.metrics.turn(OutcomeStoreError)
		return nil, err
	}

	log(StateIdentityCheck)
	tc := thread.Context
	res := s.resolver.Resolve(ctx, &tc, message)
	logx.Debug().
		Str("thread_id", threadID).
		Str("claim", res.Claim.Kind.String()).
		Str("source", string(res.Source)).
		Bool("lookup", res.LookupAttempted).
		Msg("Identity resolved")
	if res.Changed {
		if err := s.messages.SaveContext(ctx, threadID, tc); err != nil {
			s.metrics.turn(OutcomeStoreError)
			return nil, err
		}
	}
	saved := tc

	log(StateDelegated)
	sysPrompt, err := prompts.RenderSystem(ctx, s.prompt, &tc)
	if err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("System prompt render failed")
		s.metrics.turn(OutcomeEngineError)
		return &model.TurnOutput{ThreadID: threadID, Response: EngineErrorMessage, Fallback: true, UserID: tc.UserID}, nil
	}

	start := time.Now()
	result, err := s.engine.Invoke(ctx, model.EngineRequest{
		ThreadID:   threadID,
		Transcript: conversations.BuildTranscript(thread, sysPrompt),
		UserID:     tc.UserID,
	})
	s.metrics.engineSeconds(time.Since(start).Seconds())
	if err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("Reasoning engine failed")
		s.metrics.turn(OutcomeEngineError)
		return &model.TurnOutput{ThreadID: threadID, Response: EngineErrorMessage, Fallback: true, UserID: tc.UserID}, nil
	}
	s.metrics.tools(result.Invocations)

	learnIdentity(&tc, result.Invocations)

	log(StateFormatted)
	out := s.shape(threadID, result, tc)
	if out.Fallback {
		s.metrics.fallback(out.Intent.String())
	}

	log(StateAppended)
	if err := s.messages.SaveResponse(ctx, threadID, out.Text); err != nil {
		s.metrics.turn(OutcomeStoreError)
		return nil, err
	}

	updateContext(&tc, out, result.Invocations)
	if tc != saved {
		if err := s.messages.SaveContext(ctx, threadID, tc); err != nil {
			s.metrics.turn(OutcomeStoreError)
			return nil, err
		}
	}

	if out.Fallback {
		s.metrics.turn(OutcomeFallback)
	} else {
		s.metrics.turn(OutcomeOK)
	}

	logx.Info().
		Str("thread_id", threadID).
		Str("intent", out.Intent.String()).
		Bool("fallback", out.Fallback).
		Int("tool_invocations", len(result.Invocations)).
		Float64("cost_usd", result.CostUSD).
		Msg("Turn completed")

	return &model.TurnOutput{
		ThreadID: threadID,
		Response: out.Text,
		Intent:   string(out.Intent),
		Fallback: out.Fallback,
		UserID:   tc.UserID,
	}, nil
}

func (s *Service) shape(threadID string, result *model.EngineResult, tc model.ThreadContext) format.Outcome {
	if !tc.HasUser() {
		for _, inv := range result.Invocations {
			if inv.FailedWith(toolbox.ErrIdentityRequired) {
				logx.Info().Str("thread_id", threadID).Str("tool", inv.Name).Msg("Tool blocked until user id is known")
				return format.Outcome{Text: format.AskForUserID, Intent: format.IntentForTool(inv.Name), Fallback: true}
			}
		}
	}
	return s.formatter.Shape(format.Input{
		ThreadID:    threadID,
		Draft:       result.Text,
		Invocations: result.Invocations,
		Context:     tc,
	})
}

// learnIdentity keeps the id found by a lookup the engine made during the turn.
func learnIdentity(tc *model.ThreadContext, invs []model.ToolInvocation) {
	for i := len(invs) - 1; i >= 0; i-- {
		inv := invs[i]
		if inv.Name != model.ToolGetUserIDByName || !inv.Succeeded() {
			continue
		}
		id, err := identity.ParseUserIDPayload(inv.Result)
		if err != nil {
			continue
		}
		if !tc.HasUser() {
			tc.SetUser(id)
			if name := inv.StringArg("name"); name != "" {
				tc.UserName = name
			}
		}
		return
	}
}

var (
	searchArgs  = []string{"query", "search_query", "description"}
	productArgs = []string{"product_name", "name", "product"}
)

func firstArg(inv model.ToolInvocation, keys []string) string {
	for _, k := range keys {
		if v := inv.StringArg(k); v != "" {
			return v
		}
	}
	return ""
}

func updateContext(tc *model.ThreadContext, out format.Outcome, invs []model.ToolInvocation) {
	for _, inv := range invs {
		switch inv.Name {
		case model.ToolSearchProducts:
			if q := firstArg(inv, searchArgs); q != "" {
				tc.LastSearch = q
			}
		case model.ToolProductDetails:
			if p := firstArg(inv, productArgs); p != "" {
				tc.CurrentProduct = p
			}
		}
	}

	switch {
	case out.Intent != format.IntentNone:
		tc.LastAction = string(out.Intent)
	case len(invs) > 0:
		tc.LastAction = invs[len(invs)-1].Name
	}
}
