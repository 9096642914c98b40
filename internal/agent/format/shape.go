package format

import (
	"errors"
	"strings"

	"github.com/finn-shopping-assistant/server/internal/agent/model"
	logx "github.com/finn-shopping-assistant/server/pkg/logger"
)

type Options struct {
	Currency string
}

// Formatter turns an engine draft plus the turn's tool calls into the reply.
type Formatter struct {
	render Renderer
}

func NewFormatter(opts Options) *Formatter {
	return &Formatter{render: Renderer{Currency: opts.Currency}}
}

// Input is everything Shape looks at for one turn.
type Input struct {
	ThreadID    string
	Draft       string
	Invocations []model.ToolInvocation
	Context     model.ThreadContext
}

// Outcome is the shaped reply.
type Outcome struct {
	Text     string
	Intent   Intent
	Fallback bool
	// Source is the tool whose data backs the reply, empty otherwise.
	Source string
	// DraftErr records how the engine draft diverged from the grammar.
	DraftErr error
}

// Shape applies the reply contract:
//   - the last formatting tool of the turn decides the intent;
//   - tool data is rendered in that intent's grammar;
//   - a failed or empty tool yields the intent's apology;
//   - a grammar-looking draft without tool data yields an apology.
func (f *Formatter) Shape(in Input) Outcome {
	draft := strings.TrimSpace(in.Draft)

	inv, ok := lastFormattingCall(in.Invocations)
	if !ok {
		if draft == "" {
			return f.fallback(in, IntentNone, "empty draft")
		}
		if detected := Detect(draft); detected != IntentNone {
			return f.fallback(in, detected, "grammar without tool data")
		}
		return Outcome{Text: draft}
	}

	intent := IntentForTool(inv.Name)
	if intent == IntentOrderPlacement {
		if !inv.Succeeded() || draft == "" {
			return f.fallback(in, intent, "order placement not confirmed")
		}
		return Outcome{Text: draft, Intent: intent, Source: inv.Name}
	}

	if inv.Failed() {
		return f.fallback(in, intent, "tool failed: "+inv.Err.Error())
	}

	text, err := f.renderData(intent, inv, in.Context)
	if err != nil {
		return f.fallback(in, intent, err.Error())
	}

	out := Outcome{Text: text, Intent: intent, Source: inv.Name}
	if draft != text {
		out.DraftErr = Validate(intent, draft)
		if out.DraftErr != nil {
			logx.Debug().
				Str("thread_id", in.ThreadID).
				Str("intent", intent.String()).
				Err(out.DraftErr).
				Msg("draft replaced by canonical rendering")
		}
	}
	return out
}

func (f *Formatter) renderData(intent Intent, inv model.ToolInvocation, tc model.ThreadContext) (string, error) {
	if inv.Empty && intent != IntentOrderStatus {
		return "", ErrNoData
	}

	switch intent {
	case IntentProductList:
		products, err := DecodeProducts(inv.Result)
		if err != nil {
			return "", err
		}
		return f.render.ProductList(products), nil

	case IntentProductDetail:
		detail, err := DecodeProductDetail(inv.Result)
		if err != nil {
			return "", err
		}
		return f.render.ProductDetail(detail), nil

	case IntentShoppingList:
		sl, err := DecodeShoppingList(inv.Result)
		if err != nil {
			return "", err
		}
		name, err := userName(sl.UserName, tc)
		if err != nil {
			return "", err
		}
		return f.render.ShoppingList(name, sl), nil

	case IntentStoreList:
		stores, err := DecodeStores(inv.Result)
		if err != nil {
			return "", err
		}
		return f.render.StoreList(stores), nil

	case IntentOrderStatus:
		orders := &Orders{}
		if !inv.Empty {
			var err error
			if orders, err = DecodeOrders(inv.Result); err != nil {
				return "", err
			}
		}
		name, err := userName(orders.UserName, tc)
		if err != nil {
			return "", err
		}
		return f.render.Orders(name, orders), nil

	case IntentDeliveryMethods:
		methods, err := DecodeDeliveryMethods(inv.Result)
		if err != nil {
			return "", err
		}
		return f.render.DeliveryMethods(methods), nil
	}
	return "", errors.New("no renderer for intent " + intent.String())
}

var errNoUserName = errors.New("user name unknown")

func userName(fromTool string, tc model.ThreadContext) (string, error) {
	if name := strings.TrimSpace(fromTool); name != "" {
		return name, nil
	}
	if tc.UserName != "" {
		return tc.UserName, nil
	}
	return "", errNoUserName
}

func (f *Formatter) fallback(in Input, intent Intent, reason string) Outcome {
	logx.Warn().
		Str("thread_id", in.ThreadID).
		Str("intent", intent.String()).
		Str("reason", reason).
		Msg("reply replaced by apology")
	return Outcome{Text: intent.Apology(), Intent: intent, Fallback: true}
}

func lastFormattingCall(invs []model.ToolInvocation) (model.ToolInvocation, bool) {
	for i := len(invs) - 1; i >= 0; i-- {
		if IntentForTool(invs[i].Name) != IntentNone {
			return invs[i], true
		}
	}
	return model.ToolInvocation{}, false
}
