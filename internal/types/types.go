// =============================================================================
// Subscription Flow Audit - Shared Types
// =============================================================================
//
// This package contains the data model shared by every stage of the pipeline.
// Keeping it in one leaf package avoids import cycles between:
//   - ingest      (creates LineItems)
//   - orders      (groups and classifies Orders)
//   - flowgraph   (builds FlowNodes and FlowEdges)
//   - report / xmlwriter (render results)
//
// DATA FLOW:
//   raw rows -> []LineItem -> []Order -> classified []Order -> Graph
//
// =============================================================================

package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SUBSCRIPTION TYPE
// =============================================================================

// SubscriptionType is the closed set of subscription-box variants an order can
// be classified into.
type SubscriptionType int

const (
	// SubscriptionNone means no known box was detected.
	SubscriptionNone SubscriptionType = iota
	ReliefBraSet
	SupportBraSet
	SheerBraSet
	WirelessBraSet
)

var subscriptionTypeNames = map[SubscriptionType]string{
	SubscriptionNone: "None",
	ReliefBraSet:     "ReliefBraSet",
	SupportBraSet:    "SupportBraSet",
	SheerBraSet:      "SheerBraSet",
	WirelessBraSet:   "WirelessBraSet",
}

// String returns the canonical name, which is also the Subscription node label.
func (s SubscriptionType) String() string {
	if name, ok := subscriptionTypeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SubscriptionType(%d)", int(s))
}

// ParseSubscriptionType is the inverse of String.
func ParseSubscriptionType(name string) (SubscriptionType, error) {
	for t, n := range subscriptionTypeNames {
		if n == name {
			return t, nil
		}
	}
	return SubscriptionNone, fmt.Errorf("unknown subscription type %q", name)
}

// AllSubscriptionTypes lists the non-None types in table order.
func AllSubscriptionTypes() []SubscriptionType {
	return []SubscriptionType{ReliefBraSet, SupportBraSet, SheerBraSet, WirelessBraSet}
}

// =============================================================================
// GARMENT CATEGORY
// =============================================================================

// GarmentCategory is derived from a product name. It is never stored.
type GarmentCategory int

const (
	Other GarmentCategory = iota
	Bra
	Panty
)

// String returns a lower-case category name.
func (c GarmentCategory) String() string {
	switch c {
	case Bra:
		return "bra"
	case Panty:
		return "panty"
	default:
		return "other"
	}
}

// =============================================================================
// LINE ITEM
// =============================================================================

// LineItem is one row of a commerce export: a single SKU within an order.
// It is treated as immutable once created; the classifier produces copies
// carrying the authoritative SubscriptionType instead of mutating in place.
type LineItem struct {
	// Date is the date attached to the source the row came from.
	Date time.Time

	// RawName is the untouched "Lineitem name" column.
	RawName string

	// Subtype, Product and Variant are the dash-delimited parts of RawName.
	Subtype string
	Product string
	Variant string

	// Quantity is "Lineitem quantity"; malformed values become 0.
	Quantity int

	// UnitPrice is "Lineitem price"; LineTotal is "Total".
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal

	// DiscountCode is nil when the export column is empty.
	DiscountCode *string

	// OrderID is the "Name" column.
	OrderID string

	// Source identifies the file the row came from.
	Source string

	// SourceIndex is the position of Source in the run's source list.
	SourceIndex int

	// RowNumber is the 1-based data row within Source.
	RowNumber int

	// SubscriptionType is set only on classified copies.
	SubscriptionType SubscriptionType
}

// Label is the name used for this item in the flow graph.
func (li LineItem) Label() string {
	if li.Product != "" {
		return li.Product
	}
	return li.RawName
}

// =============================================================================
// ORDER
// =============================================================================

// OrderKey identifies one order occurrence. Order ids are unique within a
// single export, so the source index is part of the key.
type OrderKey struct {
	SourceIndex int
	OrderID     string
}

// Order owns its items exclusively, in original row order.
type Order struct {
	OrderID          string
	Source           string
	SourceIndex      int
	Items            []LineItem
	SubscriptionType SubscriptionType
}

// Key returns the grouping key of the order.
func (o Order) Key() OrderKey {
	return OrderKey{SourceIndex: o.SourceIndex, OrderID: o.OrderID}
}

// =============================================================================
// FLOW GRAPH
// =============================================================================

// Layer is a column of the flow diagram. Edges only go to a higher layer.
type Layer int

const (
	LayerSubscription Layer = iota
	LayerBra
	LayerPanty
	LayerLeftover
)

// String returns the lower-case layer name.
func (l Layer) String() string {
	switch l {
	case LayerSubscription:
		return "subscription"
	case LayerBra:
		return "bra"
	case LayerPanty:
		return "panty"
	case LayerLeftover:
		return "leftover"
	default:
		return fmt.Sprintf("layer(%d)", int(l))
	}
}

// NodeKey is the identity of a FlowNode.
type NodeKey struct {
	Layer Layer
	Label string
}

// FlowNode is unique by (Layer, Label). ID is its index in Graph.Nodes.
type FlowNode struct {
	ID    int
	Label string
	Layer Layer
}

// Key returns the identity of the node.
func (n FlowNode) Key() NodeKey {
	return NodeKey{Layer: n.Layer, Label: n.Label}
}

// FlowEdge carries the summed quantity of every contributing line item.
type FlowEdge struct {
	SourceNodeID int
	TargetNodeID int
	Weight       int
}

// Graph is the complete layered flow graph of a run.
type Graph struct {
	Nodes []FlowNode
	Edges []FlowEdge
}
