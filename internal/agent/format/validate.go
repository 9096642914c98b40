package format

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	reShoppingHeader = regexp.MustCompile(`^Ok .+, here is your shopping list:$`)
	reOrdersHeader   = regexp.MustCompile(`^Ok .+, here are your orders:$`)
	reNoOrders       = regexp.MustCompile(`^Ok .+, you have no orders yet\.$`)
	reUserLine       = regexp.MustCompile(`^USER\|0,-?\d+(\.\d+)?,-?\d+(\.\d+)?$`)
	reStoreLine      = regexp.MustCompile(`^[^|]+\|\d+(\.\d+)?,-?\d+(\.\d+)?,-?\d+(\.\d+)?$`)
	reOrderItem      = regexp.MustCompile(`^- .+ \(Size: .*, Color: .*\) x\d+ \S+$`)
	reBulletName     = regexp.MustCompile(`^• \S.*$`)
)

var detailPrefixes = []string{
	"• Product Name: ", "• Price: ", "• Brand: ", "• Category: ",
	"• Sizes: ", "• Colors: ", "• Description: ",
}

var shoppingPrefixes = []string{
	"• Product: ", "Brand: ", "Category: ", "Size: ", "Color: ", "Price: ", "Quantity: ",
}

var orderPrefixes = []string{
	"• Order: #", "Store: ", "Total Amount: ", "Shipping Address: ",
	"Delivery Method: ", "Status: ",
}

var deliveryPrefixes = []string{
	"  Description: ", "  Cost: ", "  Estimated Delivery Time: ",
}

// Detect classifies text that imitates one of the data grammars. Plain
// conversational text and the fixed apologies are IntentNone.
func Detect(text string) Intent {
	text = strings.TrimSpace(text)
	if text == "" || IsApology(text) {
		return IntentNone
	}
	lines := splitLines(text)
	first := lines[0]

	switch {
	case reUserLine.MatchString(first):
		return IntentStoreList
	case reShoppingHeader.MatchString(first):
		return IntentShoppingList
	case reOrdersHeader.MatchString(first), reNoOrders.MatchString(first):
		return IntentOrderStatus
	}
	if intent := detectFields(lines); intent != IntentNone {
		return intent
	}
	if first == ProductListHeader {
		return IntentProductList
	}
	return IntentNone
}

var (
	reFieldLine   = regexp.MustCompile(`^([A-Za-z][A-Za-z ]{0,30}?)\s*:`)
	reOrderNumber = regexp.MustCompile(`(?i)^order:?\s*#\s*\d+`)
	reBullet      = regexp.MustCompile(`^[\s•*\-]+`)
)

// fieldIntents maps field labels that belong to a single grammar.
var fieldIntents = map[string]Intent{
	"product name":            IntentProductDetail,
	"sizes":                   IntentProductDetail,
	"colors":                  IntentProductDetail,
	"image":                   IntentProductList,
	"size":                    IntentShoppingList,
	"color":                   IntentShoppingList,
	"quantity":                IntentShoppingList,
	"order":                   IntentOrderStatus,
	"total amount":            IntentOrderStatus,
	"shipping address":        IntentOrderStatus,
	"delivery method":         IntentOrderStatus,
	"status":                  IntentOrderStatus,
	"items":                   IntentOrderStatus,
	"cost":                    IntentDeliveryMethods,
	"estimated delivery time": IntentDeliveryMethods,
}

// sharedFields appear in more than one grammar.
var sharedFields = map[string]bool{
	"product": true, "brand": true, "category": true,
	"price": true, "description": true, "store": true,
}

// fieldPriority breaks ties between grammars with the same field count.
var fieldPriority = []Intent{
	IntentShoppingList, IntentOrderStatus, IntentProductDetail,
	IntentDeliveryMethods, IntentProductList,
}

// fieldLabel returns the lowercased label of a "Label: value" line, bulleted
// or not, and "order" for order number lines such as "Order #12".
func fieldLabel(line string) string {
	l := reBullet.ReplaceAllString(line, "")
	if reOrderNumber.MatchString(l) {
		return "order"
	}
	m := reFieldLine.FindStringSubmatch(l)
	if m == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(m[1]))
}

// detectFields classifies a reply by the data fields it lists. Two field
// lines, or a single order number, are enough to count as grammar output.
func detectFields(lines []string) Intent {
	scores := map[Intent]int{}
	fields := 0
	orderNumber := false
	for _, l := range lines {
		label := fieldLabel(l)
		if label == "" {
			continue
		}
		if intent, ok := fieldIntents[label]; ok {
			scores[intent]++
			fields++
			if label == "order" {
				orderNumber = true
			}
		} else if sharedFields[label] {
			fields++
		}
	}
	if fields < 2 && !orderNumber {
		return IntentNone
	}

	header := strings.ToLower(lines[0])
	switch {
	case strings.Contains(header, "shopping list"):
		return IntentShoppingList
	case strings.Contains(header, "your orders"):
		return IntentOrderStatus
	}

	best := IntentNone
	for _, intent := range fieldPriority {
		if scores[intent] > scores[best] {
			best = intent
		}
	}
	if best == IntentNone {
		return IntentProductDetail
	}
	return best
}

// ErrGrammar is wrapped by every Validate failure.
var ErrGrammar = errors.New("reply does not match grammar")

func grammarErr(intent Intent, format string, args ...any) error {
	return fmt.Errorf("%w %s: %s", ErrGrammar, intent, fmt.Sprintf(format, args...))
}

// Validate parses text against the grammar of intent.
func Validate(intent Intent, text string) error {
	lines := splitLines(strings.TrimSpace(text))
	if len(lines) == 0 || lines[0] == "" {
		return grammarErr(intent, "empty reply")
	}

	switch intent {
	case IntentProductList:
		return validateProductList(lines)
	case IntentProductDetail:
		if len(lines) != len(detailPrefixes) {
			return grammarErr(intent, "want %d lines, got %d", len(detailPrefixes), len(lines))
		}
		return expectPrefixes(intent, lines, detailPrefixes)
	case IntentShoppingList:
		if !reShoppingHeader.MatchString(lines[0]) {
			return grammarErr(intent, "bad header %q", lines[0])
		}
		return validateBlocks(intent, lines[1:], func(block []string) error {
			if len(block) != len(shoppingPrefixes) {
				return grammarErr(intent, "item has %d lines", len(block))
			}
			return expectPrefixes(intent, block, shoppingPrefixes)
		})
	case IntentStoreList:
		if !reUserLine.MatchString(lines[0]) {
			return grammarErr(intent, "bad user line %q", lines[0])
		}
		for _, l := range lines[1:] {
			if !reStoreLine.MatchString(l) {
				return grammarErr(intent, "bad store line %q", l)
			}
		}
		return nil
	case IntentOrderStatus:
		if len(lines) == 1 && reNoOrders.MatchString(lines[0]) {
			return nil
		}
		if !reOrdersHeader.MatchString(lines[0]) {
			return grammarErr(intent, "bad header %q", lines[0])
		}
		return validateBlocks(intent, lines[1:], func(block []string) error {
			if len(block) < len(orderPrefixes)+1 {
				return grammarErr(intent, "order has %d lines", len(block))
			}
			if err := expectPrefixes(intent, block, orderPrefixes); err != nil {
				return err
			}
			if block[len(orderPrefixes)] != "Items:" {
				return grammarErr(intent, "missing Items: line")
			}
			for _, l := range block[len(orderPrefixes)+1:] {
				if !reOrderItem.MatchString(l) {
					return grammarErr(intent, "bad item line %q", l)
				}
			}
			return nil
		})
	case IntentDeliveryMethods:
		return validateBlocks(intent, lines, func(block []string) error {
			if len(block) != len(deliveryPrefixes)+1 || !reBulletName.MatchString(block[0]) {
				return grammarErr(intent, "bad method block %q", block)
			}
			return expectPrefixes(intent, block[1:], deliveryPrefixes)
		})
	case IntentOrderPlacement, IntentNone:
		return nil
	}
	return grammarErr(intent, "unknown intent")
}

func validateProductList(lines []string) error {
	intent := IntentProductList
	if lines[0] != ProductListHeader {
		return grammarErr(intent, "bad header %q", lines[0])
	}
	body := lines[1:]
	if len(body) == 0 {
		return grammarErr(intent, "no products")
	}
	for i := 0; i < len(body); {
		if !strings.HasPrefix(body[i], "• Product: ") {
			return grammarErr(intent, "want product line, got %q", body[i])
		}
		name := strings.TrimPrefix(body[i], "• Product: ")
		if i+1 >= len(body) || body[i+1] != "Image: "+name {
			return grammarErr(intent, "missing image line for %q", name)
		}
		i += 2
		if i < len(body) && !strings.HasPrefix(body[i], "• Product: ") {
			i++
		}
	}
	return nil
}

// validateBlocks splits lines on blank lines and checks every block.
func validateBlocks(intent Intent, lines []string, check func([]string) error) error {
	var blocks [][]string
	var cur []string
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			if len(cur) > 0 {
				blocks = append(blocks, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, l)
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	if len(blocks) == 0 {
		return grammarErr(intent, "no entries")
	}
	for _, b := range blocks {
		if err := check(b); err != nil {
			return err
		}
	}
	return nil
}

func expectPrefixes(intent Intent, lines, prefixes []string) error {
	for i, p := range prefixes {
		if !strings.HasPrefix(lines[i], p) {
			return grammarErr(intent, "line %d: want prefix %q, got %q", i+1, p, lines[i])
		}
	}
	return nil
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}
