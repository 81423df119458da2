// =============================================================================
// Subscription Flow Audit - Order Grouper
// =============================================================================
//
// Groups line items into orders.
//
// GROUPING LOGIC:
//   1. Drop rows that must never participate:
//        - the name contains "Extender" (add-on accessory, not a garment)
//        - the order id contains "EXC" (exchange / cancellation)
//   2. Group the remaining rows by (source, order id). Order ids are unique
//      within one export; the same id in two sources is two occurrences.
//   3. Orders appear in order of first occurrence, and items keep their
//      original row order inside an order. Nothing is re-sorted.
//
// =============================================================================

package orders

import (
	"strings"

	"github.com/ginjaninja78/subscription-flow-audit/internal/types"
)

const (
	extenderMarker = "Extender"
	exchangeMarker = "EXC"
)

// Dropped reports whether an item is excluded before grouping.
func Dropped(item types.LineItem) bool {
	return strings.Contains(item.RawName, extenderMarker) ||
		strings.Contains(item.OrderID, exchangeMarker)
}

// Group groups items into orders, preserving first-occurrence order.
//
// RETURNS:
//   - The grouped orders.
//   - The number of items dropped by the exclusion rules.
func Group(items []types.LineItem) ([]types.Order, int) {
	index := make(map[types.OrderKey]int)
	var out []types.Order
	dropped := 0

	for _, item := range items {
		if Dropped(item) {
			dropped++
			continue
		}

		key := types.OrderKey{SourceIndex: item.SourceIndex, OrderID: item.OrderID}
		i, exists := index[key]
		if !exists {
			i = len(out)
			index[key] = i
			out = append(out, types.Order{
				OrderID:     item.OrderID,
				Source:      item.Source,
				SourceIndex: item.SourceIndex,
			})
		}
		out[i].Items = append(out[i].Items, item)
	}

	return out, dropped
}
