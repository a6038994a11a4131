package platform

import (
	"strings"

	"rankitopixel/internal/browser"
	"rankitopixel/internal/events"
	"rankitopixel/internal/pkg/money"
)

var checkoutPathKeywords = []string{"/checkout", "/cart", "/carrinho", "/finalizar"}

// Query parameters that conventionally carry a site-search term.
var searchQueryParams = []string{"q", "s", "search", "busca"}

// GenericAdapter is the convention-based fallback for custom stores: it
// reads schema.org structured data and data-attribute conventions instead
// of platform globals. Always last in the registry and always detects.
type GenericAdapter struct {
	ctx *Context
}

// NewGenericAdapter creates the adapter.
func NewGenericAdapter() *GenericAdapter {
	return &GenericAdapter{}
}

// Name implements Adapter.
func (a *GenericAdapter) Name() string { return "generic" }

// Detect always matches; the registry places this adapter last.
func (a *GenericAdapter) Detect(_ *browser.Environment) bool { return true }

// Wire activates structured-data product capture and the checkout
// heuristic.
func (a *GenericAdapter) Wire(ctx *Context) {
	a.ctx = ctx

	a.sendProductView(ctx)
	a.sendBeginCheckout(ctx)
	a.sendSearch(ctx)
}

// sendSearch fires when the page URL carries a conventional search
// parameter with a non-empty term.
func (a *GenericAdapter) sendSearch(ctx *Context) {
	for _, param := range searchQueryParams {
		term := strings.TrimSpace(ctx.Env.Query(param))
		if term == "" {
			continue
		}
		ctx.Send(events.TypeSearch, map[string]any{
			"source":       "generic",
			"search_term":  term,
			"search_param": param,
		})
		return
	}
}

// sendProductView reads the page's JSON-LD blocks for a Product object.
func (a *GenericAdapter) sendProductView(ctx *Context) {
	for _, block := range ctx.Env.Document.JSONLD() {
		if blockType, _ := block["@type"].(string); blockType != "Product" {
			continue
		}
		data := map[string]any{"source": "generic"}
		if name := digString(block, "name"); name != "" {
			data["product_name"] = name
		}
		if id := digString(block, "sku"); id != "" {
			data["product_id"] = id
		} else if id := digString(block, "productID"); id != "" {
			data["product_id"] = id
		}
		if offers := digMap(block, "offers"); offers != nil {
			if price, ok := toFloat(offers["price"]); ok {
				data["price"] = price
			}
			if currency := digString(offers, "priceCurrency"); currency != "" {
				data["currency"] = currency
			}
		}
		ctx.Send(events.TypeProductView, data)
		return
	}
}

// sendBeginCheckout fires when the URL looks like a cart or checkout page
// and the page carries a recognizable total element.
func (a *GenericAdapter) sendBeginCheckout(ctx *Context) {
	path := strings.ToLower(ctx.Env.PageURLString())
	matched := false
	for _, keyword := range checkoutPathKeywords {
		if strings.Contains(path, keyword) {
			matched = true
			break
		}
	}
	if !matched {
		return
	}

	totalText := ctx.Env.Document.FirstText(
		"[data-checkout-total]",
		"[data-cart-total]",
		".checkout-total",
		".cart-total",
		".order-total",
	)
	if totalText == "" {
		return
	}

	data := map[string]any{"source": "generic"}
	if total, ok := money.ParseAmount(totalText); ok {
		data["order_value"] = total
		data["currency"] = money.CurrencyFromSymbol(totalText)
	}
	ctx.Send(events.TypeBeginCheckout, data)
}

// OnClick maps data-attribute conventions to cart events. Sites opt in by
// tagging buttons with data-product-id plus a recognizable class.
func (a *GenericAdapter) OnClick(el *browser.Element) {
	if a.ctx == nil || el == nil {
		return
	}
	productID := el.Attr("data-product-id")
	if productID == "" {
		return
	}

	data := map[string]any{"source": "generic", "product_id": productID}
	if name := el.Attr("data-product-name"); name != "" {
		data["product_name"] = name
	}
	if priceText := el.Attr("data-product-price"); priceText != "" {
		if price, ok := money.ParseAmount(priceText); ok {
			data["price"] = price
		}
	}

	switch {
	case el.HasClass("add-to-cart") || el.Attr("data-action") == "add-to-cart":
		a.ctx.Send(events.TypeAddToCart, data)
	case el.HasClass("remove-from-cart") || el.Attr("data-action") == "remove-from-cart":
		a.ctx.Send(events.TypeRemoveFromCart, data)
	}
}
