package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/finn-shopping-assistant/server/internal/agent/model"
)

var cfg = model.PromptConfig{AssistantName: "Finn", StoreName: "GenAI Sports", Currency: "€"}

func TestRenderSystemWithoutContext(t *testing.T) {
	t.Parallel()

	got, err := RenderSystem(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("RenderSystem() error = %v", err)
	}
	for _, want := range []string{
		"I'm Finn, your AI Sport shopping assistant",
		"`search-products`",
		"• Price: €<price>",
		"USER|0,<longitude>,<latitude>",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("RenderSystem() missing %q", want)
		}
	}
	if strings.Contains(got, "KNOWN CONTEXT") {
		t.Fatal("RenderSystem(nil) should not render a context section")
	}
}

func TestRenderSystemWithContext(t *testing.T) {
	t.Parallel()

	tc := &model.ThreadContext{UserName: "Ana", LastSearch: "trail shoes"}
	tc.SetUser(0)

	got, err := RenderSystem(context.Background(), cfg, tc)
	if err != nil {
		t.Fatalf("RenderSystem() error = %v", err)
	}
	for _, want := range []string{"KNOWN CONTEXT", "- user_id: 0", "- user name: Ana", "- last search: trail shoes"} {
		if !strings.Contains(got, want) {
			t.Fatalf("RenderSystem() missing %q in\n%s", want, got)
		}
	}
	if strings.Contains(got, "last action") {
		t.Fatal("RenderSystem() rendered an empty field")
	}
}

func TestRenderLookup(t *testing.T) {
	t.Parallel()

	got, err := RenderLookup(context.Background(), cfg)
	if err != nil {
		t.Fatalf("RenderLookup() error = %v", err)
	}
	if !strings.Contains(got, "`get-user-id-by-name`") {
		t.Fatalf("RenderLookup() = %q", got)
	}
}
