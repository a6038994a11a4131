package platform

import (
	"regexp"
	"strings"

	"rankitopixel/internal/browser"
	"rankitopixel/internal/events"
	"rankitopixel/internal/pkg/money"
)

var (
	orderIDFromPath = regexp.MustCompile(`order-received/(\d+)`)
	quantitySuffix  = regexp.MustCompile(`\s*[×x]\s*\d+\s*$`)
	quantityMarker  = regexp.MustCompile(`[×x]\s*(\d+)`)
)

// Localized "payment method" label prefixes that confirmation themes prepend
// to the value cell.
var paymentLabelPrefixes = []string{
	"payment method:",
	"método de pagamento:",
	"metodo de pagamento:",
	"forma de pagamento:",
}

// WooCommerceAdapter covers the storefront plugin. Purchase capture is
// two-tier: a structured order global when the site installed the bridge
// snippet, otherwise scraping the confirmation page DOM. The scrape runs
// after a settle delay and only when no structured purchase went out.
type WooCommerceAdapter struct {
	ctx *Context
}

// NewWooCommerceAdapter creates the adapter.
func NewWooCommerceAdapter() *WooCommerceAdapter {
	return &WooCommerceAdapter{}
}

// Name implements Adapter.
func (a *WooCommerceAdapter) Name() string { return "woocommerce" }

// Detect looks for the plugin's script globals or body classes.
func (a *WooCommerceAdapter) Detect(env *browser.Environment) bool {
	if env.HasGlobal("wc_add_to_cart_params") || env.HasGlobal("woocommerce_params") {
		return true
	}
	return env.Document.Exists("body.woocommerce, body.woocommerce-page")
}

// Wire activates product-view, checkout and purchase capture.
func (a *WooCommerceAdapter) Wire(ctx *Context) {
	a.ctx = ctx

	a.sendProductView(ctx)
	a.sendBeginCheckout(ctx)

	if a.onConfirmationPage(ctx.Env) {
		a.captureStructuredPurchase(ctx)
		ctx.AfterFunc(ctx.ConfirmationSettle, func() {
			a.scrapePurchase(ctx)
		})
	}
}

func (a *WooCommerceAdapter) sendProductView(ctx *Context) {
	doc := ctx.Env.Document
	if !doc.Exists("body.single-product") {
		return
	}
	data := map[string]any{"source": "woocommerce"}
	if name := doc.FirstText(".product_title", "h1.entry-title"); name != "" {
		data["product_name"] = name
	}
	if id := doc.Attr("[data-product_id]", "data-product_id"); id != "" {
		data["product_id"] = id
	}
	priceText := doc.FirstText(
		".summary .price .woocommerce-Price-amount",
		".price .woocommerce-Price-amount",
		".price .amount",
	)
	if priceText != "" {
		if price, ok := money.ParseAmount(priceText); ok {
			data["price"] = price
			data["currency"] = money.CurrencyFromSymbol(priceText)
		}
	}
	ctx.Send(events.TypeProductView, data)
}

func (a *WooCommerceAdapter) sendBeginCheckout(ctx *Context) {
	doc := ctx.Env.Document
	if !doc.Exists("body.woocommerce-checkout") || a.onConfirmationPage(ctx.Env) {
		return
	}
	data := map[string]any{"source": "woocommerce"}
	totalText := doc.FirstText(
		".order-total .woocommerce-Price-amount",
		".order-total .amount",
	)
	if totalText != "" {
		if total, ok := money.ParseAmount(totalText); ok {
			data["order_value"] = total
			data["currency"] = money.CurrencyFromSymbol(totalText)
		}
	}
	ctx.Send(events.TypeBeginCheckout, data)
}

// onConfirmationPage recognizes the order-received page by URL or markup.
func (a *WooCommerceAdapter) onConfirmationPage(env *browser.Environment) bool {
	if strings.Contains(env.PageURLString(), "order-received") {
		return true
	}
	return env.Document.Exists(".woocommerce-order-received, .woocommerce-thankyou-order-received")
}

// captureStructuredPurchase reads the bridge snippet's order global.
func (a *WooCommerceAdapter) captureStructuredPurchase(ctx *Context) {
	order, ok := ctx.Env.Global("rankitoOrderData")
	if !ok {
		return
	}
	orderMap, ok := order.(map[string]any)
	if !ok || !ctx.MarkPurchaseSent() {
		return
	}

	data := map[string]any{"source": "woocommerce"}
	if id, ok := orderMap["order_id"]; ok {
		data["order_id"] = id
	}
	if total, ok := toFloat(orderMap["total"]); ok {
		data["order_value"] = total
	}
	if currency := digString(orderMap, "currency"); currency != "" {
		data["currency"] = currency
	}
	if method := digString(orderMap, "payment_method"); method != "" {
		data["payment_method"] = method
	}
	if items, ok := orderMap["items"].([]any); ok {
		data["item_count"] = len(items)
		data["items"] = items
	}
	ctx.Send(events.TypePurchase, data)
}

// scrapePurchase is the DOM fallback for confirmation pages without the
// bridge snippet. Everything scraped is best-effort; a field that cannot
// be read is omitted rather than guessed.
func (a *WooCommerceAdapter) scrapePurchase(ctx *Context) {
	if ctx.PurchaseAlreadySent() {
		return
	}
	doc := ctx.Env.Document
	if doc == nil {
		return
	}
	if !ctx.MarkPurchaseSent() {
		return
	}

	data := map[string]any{"source": "woocommerce", "scraped": true}

	if id := a.scrapeOrderID(ctx.Env); id != "" {
		data["order_id"] = id
	}

	totalText := doc.FirstText(
		".woocommerce-order-overview__total .woocommerce-Price-amount",
		".woocommerce-order-overview__total strong",
		".order_details .total .amount",
		".order_details .total",
	)
	if totalText != "" {
		if total, ok := money.ParseAmount(totalText); ok {
			data["order_value"] = total
			data["currency"] = money.CurrencyFromSymbol(totalText)
		}
	}

	if method := a.scrapePaymentMethod(doc); method != "" {
		data["payment_method"] = method
	}

	names := a.scrapeProductNames(doc)
	if len(names) > 0 {
		data["products"] = names
	}

	if count := a.scrapeItemCount(doc, len(names)); count > 0 {
		data["item_count"] = count
	}

	ctx.Send(events.TypePurchase, data)
}

// scrapeOrderID prefers the order number embedded in the URL path; themes
// rarely rewrite it. DOM cells are the fallback.
func (a *WooCommerceAdapter) scrapeOrderID(env *browser.Environment) string {
	if m := orderIDFromPath.FindStringSubmatch(env.PageURLString()); m != nil {
		return m[1]
	}
	return env.Document.FirstText(
		".woocommerce-order-overview__order strong",
		".order_details .order strong",
		"li.order strong",
	)
}

func (a *WooCommerceAdapter) scrapePaymentMethod(doc *browser.Document) string {
	method := doc.FirstText(
		".woocommerce-order-overview__payment-method strong",
		".order_details .method strong",
		"li.method",
	)
	lower := strings.ToLower(method)
	for _, prefix := range paymentLabelPrefixes {
		if strings.HasPrefix(lower, prefix) {
			method = strings.TrimSpace(method[len(prefix):])
			break
		}
	}
	return method
}

// scrapeProductNames strips the "× N" quantity suffix the order table
// appends to each name, then dedupes.
func (a *WooCommerceAdapter) scrapeProductNames(doc *browser.Document) []string {
	raw := doc.Texts(".woocommerce-table--order-details .product-name, .order_details .product-name")
	seen := make(map[string]bool, len(raw))
	var names []string
	for _, text := range raw {
		name := strings.TrimSpace(quantitySuffix.ReplaceAllString(text, ""))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// scrapeItemCount sums the quantity markers in the order table, falling
// back to the number of distinct products.
func (a *WooCommerceAdapter) scrapeItemCount(doc *browser.Document, productCount int) int {
	total := 0
	for _, cell := range doc.Texts(".woocommerce-table--order-details .product-quantity, .order_details .product-quantity") {
		if m := quantityMarker.FindStringSubmatch(cell); m != nil {
			if n, ok := toInt(m[1]); ok {
				total += n
			}
		}
	}
	if total > 0 {
		return total
	}
	return productCount
}

// OnClick classifies the plugin's stereotyped cart button classes. Cart
// mutations surface as clicks rather than state changes on this platform.
func (a *WooCommerceAdapter) OnClick(el *browser.Element) {
	if a.ctx == nil || el == nil {
		return
	}
	switch {
	case el.HasClass("add_to_cart_button") || el.HasClass("ajax_add_to_cart") || el.HasClass("single_add_to_cart_button"):
		data := map[string]any{"source": "woocommerce"}
		if id := el.Attr("data-product_id"); id != "" {
			data["product_id"] = id
		}
		if name := el.Attr("data-product_name"); name != "" {
			data["product_name"] = name
		}
		a.ctx.Send(events.TypeAddToCart, data)
	case el.HasClass("remove") || el.HasClass("remove_from_cart_button"):
		data := map[string]any{"source": "woocommerce"}
		if id := el.Attr("data-product_id"); id != "" {
			data["product_id"] = id
		}
		a.ctx.Send(events.TypeRemoveFromCart, data)
	}
}
