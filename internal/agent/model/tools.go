package model

import (
	"encoding/json"
	"errors"
)

// Tool names exposed by the toolbox gateway.
const (
	ToolGetUserIDByName    = "get-user-id-by-name"
	ToolSearchProducts     = "search-products"
	ToolProductDetails     = "tell-more-details-about-product"
	ToolShowShoppingList   = "show-shopping-list"
	ToolPlaceOrder         = "place-order"
	ToolShowOrders         = "show-orders"
	ToolGetDeliveryMethods = "get-delivery-methods"
	ToolFindStoresNear     = "find-stores-near"
)

// ToolInvocation records one tool call made during a single turn.
type ToolInvocation struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Err       error           `json:"-"`
	Empty     bool            `json:"empty,omitempty"`
}

// Succeeded reports whether the call returned non-empty data.
func (t ToolInvocation) Succeeded() bool {
	return t.Err == nil && !t.Empty
}

// Failed reports whether the call errored; empty results are not failures.
func (t ToolInvocation) Failed() bool {
	return t.Err != nil
}

// FailedWith reports whether the call failed with target in its chain.
func (t ToolInvocation) FailedWith(target error) bool {
	return t.Err != nil && errors.Is(t.Err, target)
}

// StringArg returns a string argument, or "" when absent.
func (t ToolInvocation) StringArg(name string) string {
	if len(t.Arguments) == 0 {
		return ""
	}
	var args map[string]any
	if err := json.Unmarshal(t.Arguments, &args); err != nil {
		return ""
	}
	if s, ok := args[name].(string); ok {
		return s
	}
	return ""
}
