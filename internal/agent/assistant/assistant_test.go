package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/finn-shopping-assistant/server/internal/agent/format"
	"github.com/finn-shopping-assistant/server/internal/agent/model"
	"github.com/finn-shopping-assistant/server/internal/agent/session"
	"github.com/finn-shopping-assistant/server/internal/agent/toolbox"
	errx "github.com/finn-shopping-assistant/server/internal/core/error"
)

func newService(t *testing.T, store model.ConversationStore, engine *scriptedRunner, lookup *fakeLookup) *Service {
	t.Helper()

	deps := Deps{Store: store, Prompt: model.PromptConfig{AssistantName: "Finn", StoreName: "GenAI Sports", Currency: "€"}}
	if engine != nil {
		deps.Engine = engine
	}
	if lookup != nil {
		deps.Lookup = lookup
	}
	svc, err := NewService(context.Background(), deps)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func storedThread(t *testing.T, store model.ConversationStore, id string) *model.Thread {
	t.Helper()

	th, err := store.GetOrCreate(context.Background(), id, model.SystemMessage("unused"))
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	return th
}

func TestProcessMessageExplicitIDSkipsLookup(t *testing.T) {
	t.Parallel()

	for _, msg := range []string{
		"I'm user id 5, show my orders",
		"my ID is 5",
		"user_id 5 here",
		"Hi, I am user 5",
	} {
		store := session.NewMemoryStore()
		engine := &scriptedRunner{}
		lookup := &fakeLookup{ids: map[string]int64{}}
		svc := newService(t, store, engine, lookup)

		out, err := svc.ProcessMessage(context.Background(), model.TurnInput{ThreadID: "t1", Message: msg})
		if err != nil {
			t.Fatalf("ProcessMessage(%q) error = %v", msg, err)
		}
		if out.UserID == nil || *out.UserID != 5 {
			t.Fatalf("ProcessMessage(%q) UserID = %v, want 5", msg, out.UserID)
		}
		if len(lookup.names) != 0 {
			t.Fatalf("ProcessMessage(%q) looked up %v, want no lookup", msg, lookup.names)
		}
		if got := engine.requests[0].UserID; got == nil || *got != 5 {
			t.Fatalf("engine request UserID = %v, want 5", got)
		}
		if th := storedThread(t, store, "t1"); th.Context.UserID == nil || *th.Context.UserID != 5 {
			t.Fatalf("stored UserID = %v, want 5", th.Context.UserID)
		}
	}
}

func TestProcessMessageNamedIntroductionLooksUpFirst(t *testing.T) {
	t.Parallel()

	var trace []string
	store := session.NewMemoryStore()
	engine := &scriptedRunner{trace: &trace}
	lookup := &fakeLookup{ids: map[string]int64{"Maria": 12}, trace: &trace}
	svc := newService(t, store, engine, lookup)

	out, err := svc.ProcessMessage(context.Background(), model.TurnInput{ThreadID: "t1", Message: "Hi, my name is Maria"})
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if strings.Join(trace, ",") != "lookup,engine" {
		t.Fatalf("call order = %v, want lookup before engine", trace)
	}
	if out.UserID == nil || *out.UserID != 12 {
		t.Fatalf("UserID = %v, want 12", out.UserID)
	}
	th := storedThread(t, store, "t1")
	if th.Context.UserName != "Maria" {
		t.Fatalf("UserName = %q, want Maria", th.Context.UserName)
	}
	if !strings.Contains(engine.requests[0].Transcript[0].Content, "12") {
		t.Fatalf("system prompt does not carry the resolved id:\n%s", engine.requests[0].Transcript[0].Content)
	}
}

func TestProcessMessageFailedLookupLeavesIDUnset(t *testing.T) {
	t.Parallel()

	for _, lookupErr := range []error{errors.New("tool failed"), errors.New("not a number")} {
		store := session.NewMemoryStore()
		engine := &scriptedRunner{results: []*model.EngineResult{{
			Text: "Could you tell me your user ID?",
			Invocations: []model.ToolInvocation{
				{Name: model.ToolGetUserIDByName, Arguments: []byte(`{"name":"Maria"}`), Err: lookupErr},
			},
		}}}
		svc := newService(t, store, engine, &fakeLookup{err: lookupErr})

		out, err := svc.ProcessMessage(context.Background(), model.TurnInput{ThreadID: "t1", Message: "I'm Maria"})
		if err != nil {
			t.Fatalf("ProcessMessage() error = %v", err)
		}
		if out.UserID != nil {
			t.Fatalf("UserID = %d, want unset", *out.UserID)
		}
		if th := storedThread(t, store, "t1"); th.Context.UserID != nil {
			t.Fatalf("stored UserID = %d, want unset", *th.Context.UserID)
		}
	}
}

func TestProcessMessageIdentityIsSticky(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	engine := &scriptedRunner{}
	lookup := &fakeLookup{ids: map[string]int64{"Bob": 99}}
	svc := newService(t, store, engine, lookup)
	ctx := context.Background()

	if _, err := svc.ProcessMessage(ctx, model.TurnInput{ThreadID: "t1", Message: "my user id is 9"}); err != nil {
		t.Fatalf("first ProcessMessage() error = %v", err)
	}
	for _, msg := range []string{"show me running shoes", "I'm Bob", "what about delivery?"} {
		out, err := svc.ProcessMessage(ctx, model.TurnInput{ThreadID: "t1", Message: msg})
		if err != nil {
			t.Fatalf("ProcessMessage(%q) error = %v", msg, err)
		}
		if out.UserID == nil || *out.UserID != 9 {
			t.Fatalf("ProcessMessage(%q) UserID = %v, want 9", msg, out.UserID)
		}
	}
	if len(lookup.names) != 0 {
		t.Fatalf("lookups = %v, want none once the id is sticky", lookup.names)
	}
}

func TestProcessMessageShoppingListEmpty(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	engine := &scriptedRunner{results: []*model.EngineResult{{
		Text:        "Ok Ana, here is your shopping list:\n• Product: Invented\nBrand: X",
		Invocations: []model.ToolInvocation{{Name: model.ToolShowShoppingList, Arguments: []byte(`{"user_id":4}`), Empty: true}},
	}}}
	svc := newService(t, store, engine, nil)

	out, err := svc.ProcessMessage(context.Background(), model.TurnInput{ThreadID: "t1", Message: "my user id is 4, show my shopping list"})
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if out.Response != format.ShoppingListApology {
		t.Fatalf("Response = %q, want shopping-list apology", out.Response)
	}
	if strings.Contains(out.Response, "Product:") || !out.Fallback {
		t.Fatalf("ProcessMessage() = %+v", out)
	}
}

func TestProcessMessageRendersProductDetail(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	engine := &scriptedRunner{results: []*model.EngineResult{{
		Text: "The Nimbus 25 is great!",
		Invocations: []model.ToolInvocation{invocation(model.ToolProductDetails, `{"product_name":"Nimbus 25"}`,
			`[{"name":"Nimbus 25","price":169.99,"brand":"ASICS","category":"Running","sizes":[40,41,42,43,44],"colors":["Black/Gold"],"description":"Flagship cushioned running shoe..."}]`)},
	}}}
	svc := newService(t, store, engine, nil)

	out, err := svc.ProcessMessage(context.Background(), model.TurnInput{ThreadID: "t1", Message: "tell me about the Nimbus 25"})
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	want := "• Product Name: Nimbus 25\n• Price: €169.99\n• Brand: ASICS\n• Category: Running\n" +
		"• Sizes: 40, 41, 42, 43, 44\n• Colors: Black/Gold\n• Description: Flagship cushioned running shoe..."
	if out.Response != want {
		t.Fatalf("Response =\n%s\nwant\n%s", out.Response, want)
	}

	th := storedThread(t, store, "t1")
	if th.Context.CurrentProduct != "Nimbus 25" {
		t.Fatalf("CurrentProduct = %q, want Nimbus 25", th.Context.CurrentProduct)
	}
	if th.Context.LastAction != string(format.IntentProductDetail) {
		t.Fatalf("LastAction = %q, want %q", th.Context.LastAction, format.IntentProductDetail)
	}
	last := th.Messages[len(th.Messages)-1]
	if last.Role != model.RoleAssistant || last.Content != want {
		t.Fatalf("last stored message = %+v, want the rendered reply", last)
	}
}

func TestProcessMessageHistoryReplacesTranscript(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	engine := &scriptedRunner{}
	svc := newService(t, store, engine, nil)
	ctx := context.Background()

	if _, err := svc.ProcessMessage(ctx, model.TurnInput{ThreadID: "t1", Message: "old message"}); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}

	history := []model.Message{
		model.SystemMessage("ignored"),
		model.UserMessage("hi"),
		model.AssistantMessage("hello"),
	}
	if _, err := svc.ProcessMessage(ctx, model.TurnInput{ThreadID: "t1", Message: "new message", History: history}); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}

	sent := engine.requests[1].Transcript
	wantRoles := []model.Role{model.RoleSystem, model.RoleUser, model.RoleAssistant, model.RoleUser}
	if len(sent) != len(wantRoles) {
		t.Fatalf("engine transcript = %+v, want %d messages", sent, len(wantRoles))
	}
	for i, role := range wantRoles {
		if sent[i].Role != role {
			t.Fatalf("transcript[%d].Role = %s, want %s", i, sent[i].Role, role)
		}
	}
	if sent[1].Content != "hi" || sent[2].Content != "hello" || sent[3].Content != "new message" {
		t.Fatalf("engine transcript = %+v", sent)
	}
	for _, m := range storedThread(t, store, "t1").Messages {
		if m.Content == "old message" || m.Content == "ignored" {
			t.Fatalf("stored transcript kept %q", m.Content)
		}
	}
}

func TestProcessMessageEngineErrorIsNotAppended(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	svc, err := NewService(context.Background(), Deps{
		Store:   store,
		Engine:  &scriptedRunner{err: errors.New("model unavailable")},
		Metrics: metrics,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	out, err := svc.ProcessMessage(context.Background(), model.TurnInput{ThreadID: "t1", Message: "hello"})
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if out.Response != EngineErrorMessage {
		t.Fatalf("Response = %q, want %q", out.Response, EngineErrorMessage)
	}

	th := storedThread(t, store, "t1")
	for _, m := range th.Messages {
		if m.Role == model.RoleAssistant {
			t.Fatalf("assistant message appended after engine failure: %+v", m)
		}
	}
	if got := testutil.ToFloat64(metrics.Turns.WithLabelValues(OutcomeEngineError)); got != 1 {
		t.Fatalf("engine_error turns = %v, want 1", got)
	}
}

func TestProcessMessageDegraded(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	svc := newService(t, store, nil, nil)
	if !svc.Degraded() {
		t.Fatalf("Degraded() = false, want true without an engine")
	}

	out, err := svc.ProcessMessage(context.Background(), model.TurnInput{ThreadID: "t1", Message: "hello"})
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if out.Response != DegradedMessage {
		t.Fatalf("Response = %q, want %q", out.Response, DegradedMessage)
	}
}

func TestProcessMessageRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	engine := &scriptedRunner{}
	svc := newService(t, session.NewMemoryStore(), engine, nil)

	for _, in := range []model.TurnInput{
		{ThreadID: "t1", Message: "   "},
		{ThreadID: "", Message: "hello"},
	} {
		_, err := svc.ProcessMessage(context.Background(), in)
		if errx.StatusOf(err) != 400 {
			t.Fatalf("ProcessMessage(%+v) status = %d, want 400 (err %v)", in, errx.StatusOf(err), err)
		}
	}
	if engine.calls() != 0 {
		t.Fatalf("engine called %d times for invalid input", engine.calls())
	}
}

func TestProcessMessageAsksForIDWhenToolBlocked(t *testing.T) {
	t.Parallel()

	engine := &scriptedRunner{results: []*model.EngineResult{{
		Text: "Here are your orders: ...",
		Invocations: []model.ToolInvocation{
			{Name: model.ToolShowOrders, Err: toolbox.ErrIdentityRequired},
		},
	}}}
	svc := newService(t, session.NewMemoryStore(), engine, nil)

	out, err := svc.ProcessMessage(context.Background(), model.TurnInput{ThreadID: "t1", Message: "show my orders"})
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if out.Response != format.AskForUserID {
		t.Fatalf("Response = %q, want %q", out.Response, format.AskForUserID)
	}
}

func TestProcessMessageLearnsIdentityFromTurn(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	engine := &scriptedRunner{results: []*model.EngineResult{{
		Text: "Thanks Lena!",
		Invocations: []model.ToolInvocation{
			invocation(model.ToolGetUserIDByName, `{"name":"Lena"}`, `[{"user_id":31}]`),
		},
	}}}
	svc := newService(t, store, engine, nil)

	out, err := svc.ProcessMessage(context.Background(), model.TurnInput{ThreadID: "t1", Message: "it's Lena"})
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if out.UserID == nil || *out.UserID != 31 {
		t.Fatalf("UserID = %v, want 31", out.UserID)
	}
	th := storedThread(t, store, "t1")
	if th.Context.UserName != "Lena" || th.Context.UserID == nil || *th.Context.UserID != 31 {
		t.Fatalf("stored context = %+v", th.Context)
	}
}

func TestProcessMessageStoreFailure(t *testing.T) {
	t.Parallel()

	store := &flakyStore{MemoryStore: session.NewMemoryStore(), failAppend: true}
	svc := newService(t, store, &scriptedRunner{}, nil)

	_, err := svc.ProcessMessage(context.Background(), model.TurnInput{ThreadID: "t1", Message: "hello"})
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("ProcessMessage() error = %v, want %v", err, errStoreDown)
	}
}

func TestProcessMessageOrdersForNamedUser(t *testing.T) {
	t.Parallel()

	engine := &scriptedRunner{results: []*model.EngineResult{{
		Text:        "Here are your orders",
		Invocations: []model.ToolInvocation{invocation(model.ToolShowOrders, `{"user_id":12}`, `{"user_name":"Maria","orders":[]}`)},
	}}}
	svc := newService(t, session.NewMemoryStore(), engine, nil)

	out, err := svc.ProcessMessage(context.Background(), model.TurnInput{ThreadID: "t1", Message: "my user id is 12. Any orders?"})
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if want := "Ok Maria, you have no orders yet."; out.Response != want {
		t.Fatalf("Response = %q, want %q", out.Response, want)
	}
	if out.UserID == nil || *out.UserID != 12 {
		t.Fatalf("UserID = %v, want 12", out.UserID)
	}
}
