// =============================================================================
// Subscription Flow Audit - Order Classifier
// =============================================================================
//
// Assigns each order exactly one authoritative subscription type.
//
// ALGORITHM (two phases, no mutation of the input):
//   1. Detect: the order is subscription-bearing iff at least one item name
//      matches a detection pattern of the subscription rule table. Orders
//      that are not subscription-bearing are outside this engine's domain
//      and are returned as not classified, without a diagnostic.
//   2. Resolve: the first item (row order) whose name contains the literal
//      "Subscription" is the ground truth. Its resolved type is written onto
//      a copy of every item, overriding whatever another item might resolve
//      to on its own (shared vocabulary such as "Bra Set").
//
// FAILURE MODES (diagnostic + order skipped):
//   - detected but no literal "Subscription" item
//   - the literal item does not resolve to a known box
//
// =============================================================================

package orders

import (
	"github.com/ginjaninja78/subscription-flow-audit/internal/diagnostics"
	"github.com/ginjaninja78/subscription-flow-audit/internal/subscription"
	"github.com/ginjaninja78/subscription-flow-audit/internal/types"
)

// Outcome is the result of classifying one order.
type Outcome int

const (
	// NotSubscription: no item matched a detection pattern.
	NotSubscription Outcome = iota

	// Classified: the order carries an authoritative type.
	Classified

	// Skipped: detected but unclassifiable; a diagnostic was produced.
	Skipped
)

// SubscriptionBearing reports whether any item matches a detection pattern.
func SubscriptionBearing(order types.Order) bool {
	for _, item := range order.Items {
		if subscription.Resolve(item.RawName) != types.SubscriptionNone {
			return true
		}
	}
	return false
}

// Classify returns a classified copy of order.
//
// RETURNS:
//   - The classified order (meaningful only when the outcome is Classified).
//   - The outcome.
//   - A diagnostic when the outcome is Skipped.
func Classify(order types.Order) (types.Order, Outcome, *diagnostics.Diagnostic) {
	if !SubscriptionBearing(order) {
		return order, NotSubscription, nil
	}

	var literal *types.LineItem
	for i := range order.Items {
		if subscription.IsLiteral(order.Items[i].RawName) {
			literal = &order.Items[i]
			break
		}
	}

	if literal == nil {
		d := diagnostics.Warning(diagnostics.MissingSubscriptionLine, order.Source, order.OrderID,
			"subscription box detected but no line item contains %q", "Subscription")
		return order, Skipped, &d
	}

	authoritative := subscription.Resolve(literal.RawName)
	if authoritative == types.SubscriptionNone {
		d := diagnostics.Warning(diagnostics.UnknownSubscriptionLine, order.Source, order.OrderID,
			"subscription line %q does not name a known box", literal.RawName)
		return order, Skipped, &d
	}

	classified := types.Order{
		OrderID:          order.OrderID,
		Source:           order.Source,
		SourceIndex:      order.SourceIndex,
		Items:            make([]types.LineItem, len(order.Items)),
		SubscriptionType: authoritative,
	}
	for i, item := range order.Items {
		item.SubscriptionType = authoritative
		classified.Items[i] = item
	}

	return classified, Classified, nil
}

// =============================================================================
// BATCH CLASSIFICATION
// =============================================================================

// Result summarizes the classification of a batch.
type Result struct {
	// Orders are the classified orders in input order.
	Orders []types.Order

	// Observed is the set of subscription types assigned in this batch.
	Observed subscription.TypeSet

	NotSubscription int
	Skipped         int
	Diagnostics     []diagnostics.Diagnostic
}

// ClassifyAll classifies every order sequentially, preserving input order.
func ClassifyAll(orders []types.Order) Result {
	var res Result
	for _, order := range orders {
		classified, outcome, diag := Classify(order)
		switch outcome {
		case Classified:
			res.Orders = append(res.Orders, classified)
			res.Observed.Add(classified.SubscriptionType)
		case Skipped:
			res.Skipped++
			if diag != nil {
				res.Diagnostics = append(res.Diagnostics, *diag)
			}
		default:
			res.NotSubscription++
		}
	}
	return res
}
