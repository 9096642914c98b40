package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/finn-shopping-assistant/server/internal/agent/format"
	"github.com/finn-shopping-assistant/server/internal/agent/model"
)

//go:embed template/system_prompt.txt
var systemPrompt string

//go:embed template/lookup_prompt.txt
var lookupPrompt string

func baseVars(cfg model.PromptConfig) map[string]any {
	currency := cfg.Currency
	if currency == "" {
		currency = format.DefaultCurrency
	}
	return map[string]any{
		"AssistantName":       cfg.AssistantName,
		"StoreName":           cfg.StoreName,
		"Currency":            currency,
		"LookupTool":          model.ToolGetUserIDByName,
		"SearchTool":          model.ToolSearchProducts,
		"DetailsTool":         model.ToolProductDetails,
		"ShoppingListTool":    model.ToolShowShoppingList,
		"PlaceOrderTool":      model.ToolPlaceOrder,
		"OrdersTool":          model.ToolShowOrders,
		"DeliveryTool":        model.ToolGetDeliveryMethods,
		"StoresTool":          model.ToolFindStoresNear,
		"Apology":             format.GenericApology,
		"ShoppingListApology": format.ShoppingListApology,
		"AskForUserID":        format.AskForUserID,
	}
}

// RenderSystem renders the assistant system prompt. A non-nil tc adds what is
// already known about the conversation.
func RenderSystem(ctx context.Context, cfg model.PromptConfig, tc *model.ThreadContext) (string, error) {
	vars := baseVars(cfg)
	vars["HasContext"] = false
	for _, k := range []string{"UserID", "UserName", "LastSearch", "LastAction", "CurrentProduct"} {
		vars[k] = ""
	}
	if tc != nil {
		if tc.UserID != nil {
			vars["UserID"] = strconv.FormatInt(*tc.UserID, 10)
		}
		vars["UserName"] = tc.UserName
		vars["LastSearch"] = tc.LastSearch
		vars["LastAction"] = tc.LastAction
		vars["CurrentProduct"] = tc.CurrentProduct
		vars["HasContext"] = tc.UserID != nil || tc.UserName != "" || tc.LastSearch != "" ||
			tc.LastAction != "" || tc.CurrentProduct != ""
	}
	return render(ctx, systemPrompt, vars)
}

// RenderLookup renders the system prompt of the name lookup turn.
func RenderLookup(ctx context.Context, cfg model.PromptConfig) (string, error) {
	return render(ctx, lookupPrompt, baseVars(cfg))
}

// render goes through the eino prompt component so prompt callbacks fire.
func render(ctx context.Context, tpl string, vars map[string]any) (string, error) {
	msgs, err := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(tpl)).Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt render: empty result")
	}
	return msgs[0].Content, nil
}
