// Package format owns the reply grammars of the assistant. Replies backed by
// tool data are rendered from that data; replies that look like a grammar but
// have no data behind them are replaced by a fixed apology.
package format

import "github.com/finn-shopping-assistant/server/internal/agent/model"

// Intent is the response category a reply belongs to.
type Intent string

const (
	IntentNone            Intent = ""
	IntentProductList     Intent = "product_list"
	IntentProductDetail   Intent = "product_detail"
	IntentShoppingList    Intent = "shopping_list"
	IntentStoreList       Intent = "store_list"
	IntentOrderStatus     Intent = "order_status"
	IntentDeliveryMethods Intent = "delivery_methods"
	IntentOrderPlacement  Intent = "order_placement"
)

const (
	GenericApology      = "I'm sorry, I could not retrieve that information right now. Please try again or provide more details, or ensure I have your correct user ID."
	ShoppingListApology = "I'm sorry, I could not retrieve your shopping list at this moment. Please ensure I have your correct user ID or try again later."
	AskForUserID        = "I'm sorry, I couldn't find your account. Could you please provide your user ID?"

	ProductListHeader = "Here are some products:"
	DefaultCurrency   = "€"
)

var toolIntents = map[string]Intent{
	model.ToolSearchProducts:     IntentProductList,
	model.ToolProductDetails:     IntentProductDetail,
	model.ToolShowShoppingList:   IntentShoppingList,
	model.ToolFindStoresNear:     IntentStoreList,
	model.ToolShowOrders:         IntentOrderStatus,
	model.ToolGetDeliveryMethods: IntentDeliveryMethods,
	model.ToolPlaceOrder:         IntentOrderPlacement,
}

// IntentForTool maps a gateway tool to the grammar its data is shown with.
func IntentForTool(tool string) Intent {
	return toolIntents[tool]
}

// Apology is the fixed text emitted when the intent has no data to show.
func (i Intent) Apology() string {
	if i == IntentShoppingList {
		return ShoppingListApology
	}
	return GenericApology
}

func (i Intent) String() string {
	if i == IntentNone {
		return "none"
	}
	return string(i)
}

// IsApology reports whether text is one of the fixed fallback sentences.
func IsApology(text string) bool {
	switch text {
	case GenericApology, ShoppingListApology, AskForUserID:
		return true
	}
	return false
}
