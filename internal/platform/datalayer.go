package platform

import (
	"sync"

	"rankitopixel/internal/browser"
	"rankitopixel/internal/events"
)

// DataLayer models the tag-management data layer. Hosts push items the way
// page scripts push onto window.dataLayer; interceptors observe each item
// before it lands. The push contract is strict: interceptors see every item
// exactly once, the item is appended unmodified regardless of what
// interceptors do, and an interceptor can never break other consumers.
type DataLayer struct {
	mu           sync.Mutex
	items        []map[string]any
	interceptors []func(map[string]any)
}

// NewDataLayer creates an empty data layer.
func NewDataLayer() *DataLayer {
	return &DataLayer{}
}

// Push appends an item, notifying interceptors first.
func (d *DataLayer) Push(item map[string]any) {
	d.mu.Lock()
	interceptors := make([]func(map[string]any), len(d.interceptors))
	copy(interceptors, d.interceptors)
	d.mu.Unlock()

	for _, fn := range interceptors {
		func() {
			defer func() { recover() }()
			fn(item)
		}()
	}

	d.mu.Lock()
	d.items = append(d.items, item)
	d.mu.Unlock()
}

// Intercept registers an observer for future pushes.
func (d *DataLayer) Intercept(fn func(map[string]any)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interceptors = append(d.interceptors, fn)
}

// Items returns a snapshot of everything pushed so far.
func (d *DataLayer) Items() []map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]map[string]any, len(d.items))
	copy(out, d.items)
	return out
}

// DataLayerAdapter translates tag-management e-commerce pushes into the
// standard event vocabulary. It is installed in addition to whichever
// primary adapter owns the page.
type DataLayerAdapter struct{}

// NewDataLayerAdapter creates the adapter.
func NewDataLayerAdapter() *DataLayerAdapter {
	return &DataLayerAdapter{}
}

// Name implements Adapter.
func (a *DataLayerAdapter) Name() string { return "datalayer" }

// Detect looks for a data layer global.
func (a *DataLayerAdapter) Detect(env *browser.Environment) bool {
	v, ok := env.Global("dataLayer")
	if !ok {
		return false
	}
	_, ok = v.(*DataLayer)
	return ok
}

// Wire registers the push interceptor.
func (a *DataLayerAdapter) Wire(ctx *Context) {
	v, _ := ctx.Env.Global("dataLayer")
	layer, ok := v.(*DataLayer)
	if !ok {
		return
	}
	layer.Intercept(func(item map[string]any) {
		a.translate(ctx, item)
	})
}

// translate maps one pushed item to an event, when it carries one of the
// recognized e-commerce markers.
func (a *DataLayerAdapter) translate(ctx *Context, item map[string]any) {
	name, _ := item["event"].(string)
	ecommerce, _ := item["ecommerce"].(map[string]any)

	if name == "" && ecommerce != nil {
		// Universal-Analytics-style nesting: the marker is a key inside
		// the ecommerce object rather than a top-level event field.
		for _, candidate := range []string{"purchase", "add", "remove", "checkout"} {
			if _, ok := ecommerce[candidate]; ok {
				name = candidate
				break
			}
		}
	}

	switch name {
	case "purchase":
		if !ctx.MarkPurchaseSent() {
			return
		}
		ctx.Send(events.TypePurchase, purchaseData(item, ecommerce))
	case "add_to_cart", "add":
		ctx.Send(events.TypeAddToCart, itemData(item, ecommerce))
	case "remove_from_cart", "remove":
		ctx.Send(events.TypeRemoveFromCart, itemData(item, ecommerce))
	case "begin_checkout", "checkout":
		ctx.Send(events.TypeBeginCheckout, itemData(item, ecommerce))
	}
}

func purchaseData(item, ecommerce map[string]any) map[string]any {
	data := map[string]any{"source": "datalayer"}
	section := ecommerce
	if section == nil {
		section = item
	}
	if nested, ok := section["purchase"].(map[string]any); ok {
		section = nested
	}
	for from, to := range map[string]string{
		"transaction_id": "order_id",
		"value":          "order_value",
		"currency":       "currency",
		"items":          "items",
	} {
		if v, ok := section[from]; ok {
			data[to] = v
		}
	}
	return data
}

func itemData(item, ecommerce map[string]any) map[string]any {
	data := map[string]any{"source": "datalayer"}
	section := ecommerce
	if section == nil {
		section = item
	}
	for _, key := range []string{"items", "value", "currency"} {
		if v, ok := section[key]; ok {
			data[key] = v
		}
	}
	return data
}
