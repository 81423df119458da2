// =============================================================================
// Subscription Flow Audit - Flow Graph Builder
// =============================================================================
//
// Builds the layered flow graph from classified orders:
//
//   Subscription -> primary Bra -> primary Panty -> Leftover items
//
// PER ORDER:
//   1. Subscription -> Bra: the first item (row order) that is a bra, is not
//      skip-listed, and satisfies the box's bra rule. Weight = its quantity.
//      When no item qualifies the order emits no edges and a diagnostic.
//   2. Bra -> Panty: the first other item that is a panty and not
//      skip-listed. Weight = the panty's quantity.
//   3. Panty -> Leftover: every remaining item that is not the chosen bra,
//      not the chosen panty, not a subscription line and not skip-listed.
//      Leftover nodes are shared across the whole dataset by label.
//
// GRAPH INVARIANTS:
//   - nodes are unique by (layer, label); the same name in two layers is
//     two nodes
//   - edges are unique by (source node, target node); repeated edges are
//     merged by summing weights
//   - edges only go from a layer to a later layer, so the graph is a DAG
//
// The builder is the only owner of the node/edge accumulator. Orders must be
// added sequentially so first-match tie-breaks stay deterministic.
//
// =============================================================================

package flowgraph

import (
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/subscription-flow-audit/internal/diagnostics"
	"github.com/ginjaninja78/subscription-flow-audit/internal/garment"
	"github.com/ginjaninja78/subscription-flow-audit/internal/subscription"
	"github.com/ginjaninja78/subscription-flow-audit/internal/types"
)

// =============================================================================
// ORDER AUDIT
// =============================================================================

// Status is the fulfilment verdict for one classified order.
type Status string

const (
	StatusComplete     Status = "complete"
	StatusMissingBra   Status = "missing_bra"
	StatusMissingPanty Status = "missing_panty"
)

// OrderAudit records how one order was placed in the graph.
type OrderAudit struct {
	OrderID          string
	Source           string
	SubscriptionType types.SubscriptionType

	// PrimaryBra and PrimaryPanty are labels; empty when not found.
	PrimaryBra   string
	PrimaryPanty string

	// Leftovers are the leftover labels in row order.
	Leftovers []string

	// ItemCount is the sum of quantities over every item of the order.
	ItemCount int

	// TotalSpent is the sum of line totals over every item of the order.
	TotalSpent decimal.Decimal

	// DiscountCodes are the distinct codes used, in row order.
	DiscountCodes []string

	Status Status
}

// =============================================================================
// BUILDER
// =============================================================================

type edgeKey struct {
	source int
	target int
}

// Builder accumulates nodes and edges across orders.
type Builder struct {
	nodes     []types.FlowNode
	nodeIndex map[types.NodeKey]int

	edges     []types.FlowEdge
	edgeIndex map[edgeKey]int

	audits []OrderAudit
	diags  diagnostics.Collector
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		nodeIndex: make(map[types.NodeKey]int),
		edgeIndex: make(map[edgeKey]int),
	}
}

// Result is the output of a complete build.
type Result struct {
	Graph       types.Graph
	Audits      []OrderAudit
	Diagnostics []diagnostics.Diagnostic
}

// Build runs a fresh builder over orders.
func Build(orders []types.Order) Result {
	b := NewBuilder()
	for _, o := range orders {
		b.Add(o)
	}
	return b.Result()
}

// Add places one classified order into the graph and returns its audit.
// Orders with SubscriptionNone are ignored.
func (b *Builder) Add(order types.Order) (OrderAudit, bool) {
	if order.SubscriptionType == types.SubscriptionNone {
		return OrderAudit{}, false
	}

	audit := newAudit(order)
	subNode := b.node(types.LayerSubscription, order.SubscriptionType.String())

	// Step 1: Subscription -> Bra.
	braIdx := primaryBra(order)
	if braIdx < 0 {
		audit.Status = StatusMissingBra
		b.warn(diagnostics.MissingPrimaryBra, order,
			"no line item satisfies the %s bra rule", order.SubscriptionType)
		b.audits = append(b.audits, audit)
		return audit, true
	}
	bra := order.Items[braIdx]
	braNode := b.node(types.LayerBra, bra.Label())
	b.edge(subNode, braNode, bra.Quantity)
	audit.PrimaryBra = bra.Label()

	// Step 2: Bra -> Panty.
	pantyIdx := primaryPanty(order, braIdx)
	pantyNode := -1
	if pantyIdx >= 0 {
		panty := order.Items[pantyIdx]
		pantyNode = b.node(types.LayerPanty, panty.Label())
		b.edge(braNode, pantyNode, panty.Quantity)
		audit.PrimaryPanty = panty.Label()
		audit.Status = StatusComplete
	} else {
		audit.Status = StatusMissingPanty
		b.warn(diagnostics.MissingPrimaryPanty, order,
			"primary bra %q has no matching panty", bra.Label())
	}

	// Step 3: Panty -> Leftovers.
	for i, item := range order.Items {
		if i == braIdx || i == pantyIdx || isSubscriptionLine(item) || garment.IsSkipped(item.RawName) {
			continue
		}
		leftoverNode := b.node(types.LayerLeftover, item.Label())
		audit.Leftovers = append(audit.Leftovers, item.Label())
		if pantyNode >= 0 {
			b.edge(pantyNode, leftoverNode, item.Quantity)
		}
	}

	b.audits = append(b.audits, audit)
	return audit, true
}

// Result returns copies of the accumulated graph, audits and diagnostics.
func (b *Builder) Result() Result {
	g := types.Graph{
		Nodes: make([]types.FlowNode, len(b.nodes)),
		Edges: make([]types.FlowEdge, len(b.edges)),
	}
	copy(g.Nodes, b.nodes)
	copy(g.Edges, b.edges)

	audits := make([]OrderAudit, len(b.audits))
	copy(audits, b.audits)
	return Result{Graph: g, Audits: audits, Diagnostics: b.diags.All()}
}

// =============================================================================
// SELECTION
// =============================================================================

// primaryBra returns the index of the first item satisfying the bra rule of
// the order's box, or -1.
func primaryBra(order types.Order) int {
	for i, item := range order.Items {
		if garment.IsBra(item.RawName) &&
			!garment.IsSkipped(item.RawName) &&
			subscription.MatchesBra(order.SubscriptionType, item.RawName) {
			return i
		}
	}
	return -1
}

// primaryPanty returns the index of the first panty other than the chosen
// bra, or -1.
func primaryPanty(order types.Order, braIdx int) int {
	for i, item := range order.Items {
		if i == braIdx {
			continue
		}
		if garment.IsPanty(item.RawName) && !garment.IsSkipped(item.RawName) {
			return i
		}
	}
	return -1
}

func isSubscriptionLine(item types.LineItem) bool {
	return subscription.IsLiteral(item.RawName) || subscription.Resolve(item.RawName) != types.SubscriptionNone
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

// node returns the id of the (layer, label) node, creating it on first use.
func (b *Builder) node(layer types.Layer, label string) int {
	key := types.NodeKey{Layer: layer, Label: label}
	if id, ok := b.nodeIndex[key]; ok {
		return id
	}
	id := len(b.nodes)
	b.nodes = append(b.nodes, types.FlowNode{ID: id, Label: label, Layer: layer})
	b.nodeIndex[key] = id
	return id
}

// edge adds weight to the (source, target) edge, creating it on first use.
func (b *Builder) edge(source, target, weight int) {
	if weight < 0 {
		weight = 0
	}
	key := edgeKey{source: source, target: target}
	if i, ok := b.edgeIndex[key]; ok {
		b.edges[i].Weight += weight
		return
	}
	b.edgeIndex[key] = len(b.edges)
	b.edges = append(b.edges, types.FlowEdge{SourceNodeID: source, TargetNodeID: target, Weight: weight})
}

func (b *Builder) warn(code diagnostics.Code, order types.Order, format string, args ...interface{}) {
	b.diags.Warn(code, order.Source, order.OrderID, format, args...)
}

func newAudit(order types.Order) OrderAudit {
	audit := OrderAudit{
		OrderID:          order.OrderID,
		Source:           order.Source,
		SubscriptionType: order.SubscriptionType,
		TotalSpent:       decimal.Zero,
	}
	seen := make(map[string]bool)
	for _, item := range order.Items {
		audit.ItemCount += item.Quantity
		audit.TotalSpent = audit.TotalSpent.Add(item.LineTotal)
		if item.DiscountCode != nil && !seen[*item.DiscountCode] {
			seen[*item.DiscountCode] = true
			audit.DiscountCodes = append(audit.DiscountCodes, *item.DiscountCode)
		}
	}
	return audit
}
