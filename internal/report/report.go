// =============================================================================
// Subscription Flow Audit - Audit Report
// =============================================================================
//
// Turns a finished run into human-facing reports:
//
//   - an XLSX workbook (sheets Orders, Edges, Diagnostics, Families)
//   - a Markdown summary, optionally rendered to a standalone HTML page
//
// Reports only read the run; they never change the graph or the audits.
//
// =============================================================================

package report

import (
	"sort"
	"time"

	"github.com/ginjaninja78/subscription-flow-audit/internal/catalog"
	"github.com/ginjaninja78/subscription-flow-audit/internal/diagnostics"
	"github.com/ginjaninja78/subscription-flow-audit/internal/flowgraph"
	"github.com/ginjaninja78/subscription-flow-audit/internal/types"
)

// Stats are the run counters shown at the top of every report.
type Stats struct {
	Sources          int
	RowsRead         int
	RowsDropped      int
	OrdersGrouped    int
	NotSubscription  int
	OrdersSkipped    int
	OrdersClassified int
}

// Input is everything a report renders.
type Input struct {
	RunID       string
	GeneratedAt time.Time

	Stats Stats

	// Observed are the subscription types assigned in the run, first-seen.
	Observed []types.SubscriptionType

	Graph       types.Graph
	Audits      []flowgraph.OrderAudit
	Diagnostics []diagnostics.Diagnostic
}

// =============================================================================
// AGGREGATIONS
// =============================================================================

// TypeSummary counts audit outcomes for one subscription type.
type TypeSummary struct {
	Type         types.SubscriptionType
	Orders       int
	Complete     int
	MissingBra   int
	MissingPanty int
}

// SummarizeByType groups audits by subscription type, in enum order.
func SummarizeByType(audits []flowgraph.OrderAudit) []TypeSummary {
	byType := make(map[types.SubscriptionType]*TypeSummary)
	for _, a := range audits {
		s, ok := byType[a.SubscriptionType]
		if !ok {
			s = &TypeSummary{Type: a.SubscriptionType}
			byType[a.SubscriptionType] = s
		}
		s.Orders++
		switch a.Status {
		case flowgraph.StatusComplete:
			s.Complete++
		case flowgraph.StatusMissingBra:
			s.MissingBra++
		case flowgraph.StatusMissingPanty:
			s.MissingPanty++
		}
	}

	var out []TypeSummary
	for _, t := range types.AllSubscriptionTypes() {
		if s, ok := byType[t]; ok {
			out = append(out, *s)
		}
	}
	return out
}

// FamilyCount is how many orders shipped a primary bra of one family.
type FamilyCount struct {
	Type   types.SubscriptionType
	Family string
	Color  string
	Orders int
}

// FamilyBreakdown counts primary bras by (type, family, color), in order of
// first appearance.
func FamilyBreakdown(audits []flowgraph.OrderAudit) []FamilyCount {
	type familyKey struct {
		t      types.SubscriptionType
		family string
		color  string
	}

	index := make(map[familyKey]int)
	var out []FamilyCount
	for _, a := range audits {
		if a.PrimaryBra == "" {
			continue
		}
		f := catalog.ParseFamily(a.PrimaryBra)
		k := familyKey{t: a.SubscriptionType, family: f.Family, color: f.Color}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, FamilyCount{Type: a.SubscriptionType, Family: f.Family, Color: f.Color})
		}
		out[i].Orders++
	}
	return out
}

// LabeledEdge is an edge with its endpoint nodes resolved.
type LabeledEdge struct {
	Source types.FlowNode
	Target types.FlowNode
	Weight int
}

// TopEdges returns up to n edges by descending weight. Ties keep graph order.
// n <= 0 returns every edge.
func TopEdges(g types.Graph, n int) []LabeledEdge {
	edges := make([]LabeledEdge, len(g.Edges))
	for i, e := range g.Edges {
		edges[i] = LabeledEdge{Source: g.Nodes[e.SourceNodeID], Target: g.Nodes[e.TargetNodeID], Weight: e.Weight}
	}
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].Weight > edges[j].Weight })
	if n > 0 && len(edges) > n {
		edges = edges[:n]
	}
	return edges
}
