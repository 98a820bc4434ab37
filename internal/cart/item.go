package cart

import (
	"strings"

	"Storefront/internal/catalog"
)

type ProductType = catalog.ProductType

// LineItem is one product variant in a cart. Stored items always have
// Quantity >= 1.
type LineItem struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Type     ProductType `json:"type"`
	Weight   string      `json:"weight"`
	Price    int64       `json:"price"`
	Quantity int         `json:"quantity"`
}

func (it LineItem) Total() int64 { return it.Price * int64(it.Quantity) }

// ItemID derives the identity of a product variant.
func ItemID(name, weight string) string {
	return strings.TrimSpace(name) + "_" + strings.TrimSpace(weight)
}

// QuickAddID is the identity a single quick-added unit of name carries.
func QuickAddID(name string) string {
	return ItemID(name, "single")
}

func (it LineItem) valid() bool {
	return it.ID != "" && it.Quantity >= 1 && it.Price >= 0
}

type Totals struct {
	ItemCount int   `json:"item_count"`
	Subtotal  int64 `json:"subtotal"`
}

func totalsOf(items []LineItem) Totals {
	var t Totals
	for _, it := range items {
		t.ItemCount += it.Quantity
		t.Subtotal += it.Total()
	}
	return t
}

func clone(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

func indexOf(items []LineItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
