// Package cart holds the storefront's local shopping cart: a mirror of the
// remote order that gives the shopper instant feedback while the
// authoritative state lives in the commerce backend.
package cart

// Item is a single cart line: one product variant and its quantity.
// UnitPrice is in minor currency units (cents).
type Item struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image,omitempty"`
}

// Snapshot is the persisted shape of the cart. Total and TotalItems are
// derived from Items and recomputed with every mutation; they are stored so
// a reload does not need to recompute before first paint.
//
// The cart-open UI flag is deliberately absent: it does not survive a reload.
type Snapshot struct {
	Items      []Item `json:"items"`
	Total      int64  `json:"total"`
	TotalItems int    `json:"totalItems"`
}

func computeTotals(items []Item) (total int64, count int) {
	for _, it := range items {
		total += it.UnitPrice * int64(it.Quantity)
		count += it.Quantity
	}
	return total, count
}
