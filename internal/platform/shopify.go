package platform

import (
	"log/slog"
	"strings"
	"sync"

	"rankitopixel/internal/browser"
	"rankitopixel/internal/events"
)

// ShopifyAdapter reads the storefront builder's in-page analytics globals.
// The platform emits no removal event, so the adapter polls the cart
// endpoint and diffs item lists against the previous poll; removals can
// only be inferred, never observed.
type ShopifyAdapter struct {
	mu       sync.Mutex
	snapshot map[string]CartItem
	ctx      *Context
}

// NewShopifyAdapter creates the adapter.
func NewShopifyAdapter() *ShopifyAdapter {
	return &ShopifyAdapter{}
}

// Name implements Adapter.
func (a *ShopifyAdapter) Name() string { return "shopify" }

// Detect looks for the platform globals.
func (a *ShopifyAdapter) Detect(env *browser.Environment) bool {
	return env.HasGlobal("Shopify") || env.HasGlobal("ShopifyAnalytics")
}

// Wire activates product-view capture, checkout state reading and the
// cart-removal poller.
func (a *ShopifyAdapter) Wire(ctx *Context) {
	a.ctx = ctx

	a.sendProductView(ctx)
	a.capturePurchase(ctx)

	if ctx.Cart != nil {
		a.refreshSnapshot()
		ctx.Every(ctx.CartPoll, a.PollCart)
	}
}

// sendProductView reads the analytics meta for product pages.
func (a *ShopifyAdapter) sendProductView(ctx *Context) {
	analytics, _ := ctx.Env.Global("ShopifyAnalytics")
	if digString(analytics, "meta", "page", "pageType") != "product" {
		return
	}
	product := digMap(analytics, "meta", "product")
	if product == nil {
		return
	}

	data := map[string]any{"source": "shopify"}
	if id, ok := product["id"]; ok {
		data["product_id"] = id
	}
	if variants, ok := product["variants"].([]any); ok && len(variants) > 0 {
		if name := digString(variants[0], "name"); name != "" {
			data["product_name"] = name
		}
		// Variant prices arrive in cents.
		if cents, ok := toFloat(dig(variants[0], "price")); ok {
			data["price"] = cents / 100
		}
	}
	if data["product_name"] == nil && ctx.Env.Title != "" {
		data["product_name"] = ctx.Env.Title
	}
	ctx.Send(events.TypeProductView, data)
}

// capturePurchase reads checkout state straight from the platform globals
// on thank-you pages, after a settle delay for late-populated state.
func (a *ShopifyAdapter) capturePurchase(ctx *Context) {
	shopify, _ := ctx.Env.Global("Shopify")
	checkout := digMap(shopify, "checkout")
	if checkout == nil {
		return
	}

	ctx.AfterFunc(ctx.CheckoutSettle, func() {
		if !ctx.MarkPurchaseSent() {
			return
		}
		data := map[string]any{"source": "shopify"}
		if id, ok := checkout["order_id"]; ok {
			data["order_id"] = id
		}
		if total, ok := toFloat(checkout["total_price"]); ok {
			data["order_value"] = total
		}
		if currency, ok := checkout["currency"].(string); ok {
			data["currency"] = currency
		}
		if items, ok := checkout["line_items"].([]any); ok {
			data["item_count"] = len(items)
		}
		ctx.Send(events.TypePurchase, data)
	})
}

// OnClick watches for cart-add submissions; the cart is re-read shortly
// afterwards because the platform applies the add asynchronously.
func (a *ShopifyAdapter) OnClick(el *browser.Element) {
	if a.ctx == nil || a.ctx.Cart == nil || !IsCartAddTrigger(el) {
		return
	}
	a.ctx.AfterFunc(a.ctx.CartRecheck, a.checkForAdditions)
}

// IsCartAddTrigger reports whether a clicked element belongs to a
// cart-add form.
func IsCartAddTrigger(el *browser.Element) bool {
	if el == nil {
		return false
	}
	if strings.Contains(el.Attr("data-form-action"), "/cart/add") {
		return true
	}
	return el.HasClass("add-to-cart") || el.Attr("name") == "add"
}

// checkForAdditions diffs the cart against the last snapshot and emits
// add_to_cart for new or increased lines.
func (a *ShopifyAdapter) checkForAdditions() {
	items, err := a.ctx.Cart.ReadCart()
	if err != nil {
		a.ctx.Logger.Debug("cart re-read failed", slog.Any("error", err))
		return
	}

	a.mu.Lock()
	previous := a.snapshot
	a.snapshot = indexCart(items)
	current := a.snapshot
	a.mu.Unlock()

	for id, item := range current {
		before, existed := previous[id]
		if !existed || item.Quantity > before.Quantity {
			added := item.Quantity
			if existed {
				added = item.Quantity - before.Quantity
			}
			a.ctx.Send(events.TypeAddToCart, map[string]any{
				"source":       "shopify",
				"product_id":   item.ID,
				"product_name": item.Title,
				"quantity":     added,
				"price":        item.Price,
			})
		}
	}
}

// PollCart diffs the cart against the previous poll and emits
// remove_from_cart for missing or decreased lines. Exported so tests can
// drive polls without the ticker.
func (a *ShopifyAdapter) PollCart() {
	items, err := a.ctx.Cart.ReadCart()
	if err != nil {
		a.ctx.Logger.Debug("cart poll failed", slog.Any("error", err))
		return
	}

	a.mu.Lock()
	previous := a.snapshot
	a.snapshot = indexCart(items)
	current := a.snapshot
	a.mu.Unlock()

	for id, before := range previous {
		now, exists := current[id]
		if exists && now.Quantity >= before.Quantity {
			continue
		}
		removed := before.Quantity
		if exists {
			removed = before.Quantity - now.Quantity
		}
		a.ctx.Send(events.TypeRemoveFromCart, map[string]any{
			"source":       "shopify",
			"product_id":   before.ID,
			"product_name": before.Title,
			"quantity":     removed,
			"price":        before.Price,
		})
	}
}

func (a *ShopifyAdapter) refreshSnapshot() {
	items, err := a.ctx.Cart.ReadCart()
	if err != nil {
		return
	}
	a.mu.Lock()
	a.snapshot = indexCart(items)
	a.mu.Unlock()
}

func indexCart(items []CartItem) map[string]CartItem {
	indexed := make(map[string]CartItem, len(items))
	for _, item := range items {
		indexed[item.ID] = item
	}
	return indexed
}
