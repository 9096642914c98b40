package format

import (
	"fmt"
	"strconv"
	"strings"
)

// Renderer writes tool data in the reply grammars.
type Renderer struct {
	Currency string
}

func (r Renderer) currency() string {
	if r.Currency == "" {
		return DefaultCurrency
	}
	return r.Currency
}

func (r Renderer) ProductList(products []Product) string {
	var b strings.Builder
	b.WriteString(ProductListHeader)
	for _, p := range products {
		// Every product carries a description line, blank when the catalogue has none.
		fmt.Fprintf(&b, "\n• Product: %s\nImage: %s\n%s", p.Name, p.Name, oneLine(string(p.Description)))
	}
	return b.String()
}

func (r Renderer) ProductDetail(p *ProductDetail) string {
	lines := []string{
		"• Product Name: " + string(p.Name),
		"• Price: " + p.Price.format(r.currency()),
		"• Brand: " + string(p.Brand),
		"• Category: " + string(p.Category),
		"• Sizes: " + p.Sizes.join(),
		"• Colors: " + p.Colors.join(),
		"• Description: " + oneLine(string(p.Description)),
	}
	return strings.Join(lines, "\n")
}

func (r Renderer) ShoppingList(userName string, sl *ShoppingList) string {
	blocks := make([]string, 0, len(sl.Items))
	for _, it := range sl.Items {
		blocks = append(blocks, strings.Join([]string{
			"• Product: " + it.name(),
			"Brand: " + string(it.Brand),
			"Category: " + string(it.Category),
			"Size: " + string(it.Size),
			"Color: " + string(it.Color),
			"Price: " + it.Price.format(r.currency()),
			"Quantity: " + string(it.Quantity),
		}, "\n"))
	}
	return fmt.Sprintf("Ok %s, here is your shopping list:\n", userName) + strings.Join(blocks, "\n\n")
}

func (r Renderer) StoreList(sl *StoreList) string {
	lines := make([]string, 0, len(sl.Stores)+1)
	lines = append(lines, fmt.Sprintf("USER|0,%s,%s", sl.UserLongitude, sl.UserLatitude))
	for _, s := range sl.Stores {
		lines = append(lines, fmt.Sprintf("%s|%s,%s,%s", s.Name, meters(s.Distance), s.Longitude, s.Latitude))
	}
	return strings.Join(lines, "\n")
}

// NoOrders is the order-status reply for a user without orders.
func NoOrders(userName string) string {
	return fmt.Sprintf("Ok %s, you have no orders yet.", userName)
}

func (r Renderer) Orders(userName string, orders *Orders) string {
	if len(orders.Orders) == 0 {
		return NoOrders(userName)
	}
	cur := r.currency()
	blocks := make([]string, 0, len(orders.Orders))
	for _, o := range orders.Orders {
		lines := []string{
			"• Order: #" + string(o.ID),
			"Store: " + string(o.Store),
			"Total Amount: " + o.TotalAmount.format(cur),
			"Shipping Address: " + string(o.ShippingAddress),
			"Delivery Method: " + string(o.DeliveryMethod),
			"Status: " + string(o.Status),
			"Items:",
		}
		for _, it := range o.Items {
			lines = append(lines, fmt.Sprintf("- %s (Size: %s, Color: %s) x%s %s",
				it.Product, it.Size, it.Color, it.Quantity, it.Price.format(cur)))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return fmt.Sprintf("Ok %s, here are your orders:\n", userName) + strings.Join(blocks, "\n\n")
}

func (r Renderer) DeliveryMethods(methods []DeliveryMethod) string {
	blocks := make([]string, 0, len(methods))
	for _, m := range methods {
		blocks = append(blocks, strings.Join([]string{
			"• " + string(m.Name),
			"  Description: " + oneLine(string(m.Description)),
			"  Cost: " + m.Cost.format(r.currency()),
			"  Estimated Delivery Time: " + string(m.EstimatedTime),
		}, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

func meters(distance text) string {
	v, err := strconv.ParseFloat(string(distance), 64)
	if err != nil {
		return string(distance)
	}
	return strconv.FormatFloat(v, 'f', 0, 64)
}

// oneLine keeps free text from breaking the line structure of a grammar.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
