package flowgraph

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/subscription-flow-audit/internal/catalog"
	"github.com/ginjaninja78/subscription-flow-audit/internal/diagnostics"
	"github.com/ginjaninja78/subscription-flow-audit/internal/orders"
	"github.com/ginjaninja78/subscription-flow-audit/internal/types"
)

type row struct {
	order string
	name  string
	qty   int
}

func lineItems(source int, rows ...row) []types.LineItem {
	items := make([]types.LineItem, len(rows))
	for i, r := range rows {
		n := catalog.ParseName(r.name)
		items[i] = types.LineItem{
			OrderID:     r.order,
			RawName:     r.name,
			Subtype:     n.Subtype,
			Product:     n.Product,
			Variant:     n.Variant,
			Quantity:    r.qty,
			UnitPrice:   decimal.NewFromInt(10),
			LineTotal:   decimal.NewFromInt(int64(10 * r.qty)),
			Source:      "orders.csv",
			SourceIndex: source,
			RowNumber:   i + 2,
		}
	}
	return items
}

func classified(t *testing.T, items []types.LineItem) []types.Order {
	t.Helper()
	grouped, _ := orders.Group(items)
	return orders.ClassifyAll(grouped).Orders
}

// labeledEdge is an edge rendered with node labels for readable comparisons.
type labeledEdge struct {
	Source string
	Target string
	Weight int
}

func labeled(g types.Graph) []labeledEdge {
	out := make([]labeledEdge, len(g.Edges))
	for i, e := range g.Edges {
		out[i] = labeledEdge{
			Source: g.Nodes[e.SourceNodeID].Label,
			Target: g.Nodes[e.TargetNodeID].Label,
			Weight: e.Weight,
		}
	}
	return out
}

var order1001 = []row{
	{"#1001", "Custom Relief Bra Set Subscription Box - S", 1},
	{"#1001", "Dreamscape Relief Bra - S", 1},
	{"#1001", "Nude Thong - M", 1},
	{"#1001", "Black Bralette - M", 1},
}

var order1002 = []row{
	{"#1002", "Custom Sheer Bra Set Subscription Box - S", 1},
	{"#1002", "Nude Relief Bra - S", 1},
}

func TestBuild_CompleteOrder(t *testing.T) {
	res := Build(classified(t, lineItems(0, order1001...)))

	want := []labeledEdge{
		{"ReliefBraSet", "Dreamscape Relief Bra", 1},
		{"Dreamscape Relief Bra", "Nude Thong", 1},
		{"Nude Thong", "Black Bralette", 1},
	}
	if diff := cmp.Diff(want, labeled(res.Graph)); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, res.Graph.Nodes, 4)
	assert.Equal(t, types.LayerLeftover, res.Graph.Nodes[3].Layer)
	assert.Empty(t, res.Diagnostics)

	require.Len(t, res.Audits, 1)
	audit := res.Audits[0]
	assert.Equal(t, StatusComplete, audit.Status)
	assert.Equal(t, "Dreamscape Relief Bra", audit.PrimaryBra)
	assert.Equal(t, "Nude Thong", audit.PrimaryPanty)
	assert.Equal(t, []string{"Black Bralette"}, audit.Leftovers)
	assert.Equal(t, 4, audit.ItemCount)
	assert.True(t, decimal.NewFromInt(40).Equal(audit.TotalSpent))
}

func TestBuild_MissingBraEmitsNoEdges(t *testing.T) {
	res := Build(classified(t, lineItems(0, order1002...)))

	assert.Empty(t, res.Graph.Edges)
	for _, n := range res.Graph.Nodes {
		assert.Equal(t, types.LayerSubscription, n.Layer)
	}

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, diagnostics.MissingPrimaryBra, res.Diagnostics[0].Code)
	assert.Equal(t, "#1002", res.Diagnostics[0].OrderID)

	require.Len(t, res.Audits, 1)
	assert.Equal(t, StatusMissingBra, res.Audits[0].Status)
	assert.Equal(t, "#1002", res.Audits[0].OrderID)
}

func TestBuild_MissingPantyKeepsLeftovers(t *testing.T) {
	res := Build(classified(t, lineItems(0,
		row{"#7", "Custom Relief Bra Set Subscription Box - S", 1},
		row{"#7", "Dreamscape Relief Bra - S", 1},
		row{"#7", "Lace Scrunchie - OS", 1},
	)))

	assert.Equal(t, []labeledEdge{{"ReliefBraSet", "Dreamscape Relief Bra", 1}}, labeled(res.Graph))

	var leftovers []string
	for _, n := range res.Graph.Nodes {
		if n.Layer == types.LayerLeftover {
			leftovers = append(leftovers, n.Label)
		}
	}
	assert.Equal(t, []string{"Lace Scrunchie"}, leftovers)

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, diagnostics.MissingPrimaryPanty, res.Diagnostics[0].Code)
	assert.Equal(t, StatusMissingPanty, res.Audits[0].Status)
}

func TestBuild_MergesRepeatedEdges(t *testing.T) {
	res := Build(classified(t, lineItems(0,
		row{"#1", "Custom Wireless Bra Set Subscription - S", 1},
		row{"#1", "Black Bralette - S", 1},
		row{"#1", "Rose Thong - S", 2},
		row{"#2", "Custom Wireless Bra Set Subscription - M", 1},
		row{"#2", "Black Bralette - M", 1},
		row{"#2", "Rose Thong - M", 3},
	)))

	want := []labeledEdge{
		{"WirelessBraSet", "Black Bralette", 2},
		{"Black Bralette", "Rose Thong", 5},
	}
	if diff := cmp.Diff(want, labeled(res.Graph)); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_SameLabelInTwoLayersIsTwoNodes(t *testing.T) {
	// "Black Bralette" is the primary bra of #1 and a leftover of #2.
	res := Build(classified(t, lineItems(0,
		row{"#1", "Custom Wireless Bra Set Subscription - S", 1},
		row{"#1", "Black Bralette - S", 1},
		row{"#1", "Nude Thong - S", 1},
		row{"#2", "Custom Relief Bra Set Subscription Box - S", 1},
		row{"#2", "Dreamscape Relief Bra - S", 1},
		row{"#2", "Nude Thong - S", 1},
		row{"#2", "Black Bralette - S", 1},
	)))

	var layers []types.Layer
	for _, n := range res.Graph.Nodes {
		if n.Label == "Black Bralette" {
			layers = append(layers, n.Layer)
		}
	}
	assert.ElementsMatch(t, []types.Layer{types.LayerBra, types.LayerLeftover}, layers)
	require.NoError(t, Validate(res.Graph))
}

func TestBuild_PrimaryBraIsNeverPanty(t *testing.T) {
	// A combination product satisfies both predicates; once picked as the
	// bra it must not be reused as the panty.
	res := Build(classified(t, lineItems(0,
		row{"#1", "Custom Wireless Bra Set Subscription - S", 1},
		row{"#1", "Bralette and Brief Set - S", 1},
		row{"#1", "Nude Thong - S", 1},
	)))

	require.Len(t, res.Audits, 1)
	assert.Equal(t, "Bralette and Brief Set", res.Audits[0].PrimaryBra)
	assert.Equal(t, "Nude Thong", res.Audits[0].PrimaryPanty)
}

func TestBuild_InvariantsOverMixedBatch(t *testing.T) {
	items := lineItems(0, append(append([]row{}, order1001...), order1002...)...)
	items = append(items, lineItems(0,
		row{"#1003", "Custom Support Bra Set Subscription Box - M", 1},
		row{"#1003", "Ivory Support Bralette - M", 1},
		row{"#1003", "Ivory High Waist Brief - M", 2},
		row{"#1003", "Quarterly Auto Renew - 3 Months", 1},
		row{"#1003", "Silk Sleep Mask - OS", 1},
	)...)

	res := Build(classified(t, items))
	require.NoError(t, Validate(res.Graph))
	assert.True(t, acyclic(res.Graph))

	for _, e := range res.Graph.Edges {
		assert.Greater(t, e.Weight, 0)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	items := lineItems(0, append(append([]row{}, order1001...), order1002...)...)

	first := Build(classified(t, items))
	second := Build(classified(t, items))

	if diff := cmp.Diff(first.Graph, second.Graph); diff != "" {
		t.Errorf("graph differs between runs (-first +second):\n%s", diff)
	}
}

func TestBuild_DuplicateSourceDoublesWeights(t *testing.T) {
	rows := []row{
		{"#1", "Custom Wireless Bra Set Subscription - S", 1},
		{"#1", "Black Bralette - S", 1},
		{"#1", "Rose Thong - S", 2},
		{"#1", "Silk Sleep Mask - OS", 3},
	}

	once := Build(classified(t, lineItems(0, rows...)))
	twice := Build(classified(t, append(lineItems(0, rows...), lineItems(1, rows...)...)))

	assert.Equal(t, once.Graph.Nodes, twice.Graph.Nodes)
	require.Len(t, twice.Graph.Edges, len(once.Graph.Edges))
	for i := range once.Graph.Edges {
		assert.Equal(t, 2*once.Graph.Edges[i].Weight, twice.Graph.Edges[i].Weight)
	}
}

func TestBuild_IgnoresUnclassifiedOrders(t *testing.T) {
	b := NewBuilder()
	_, ok := b.Add(types.Order{OrderID: "#9"})
	assert.False(t, ok)
	assert.Empty(t, b.Result().Graph.Nodes)
}

func TestSankey_Encodings(t *testing.T) {
	doc := ToSankey(Build(classified(t, lineItems(0, order1001...))).Graph)

	raw, err := EncodeJSON(doc)
	require.NoError(t, err)

	var generic map[string][]map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &generic))
	require.Len(t, generic["nodes"], 4)
	assert.Equal(t, map[string]interface{}{"name": "ReliefBraSet"}, generic["nodes"][0])
	assert.Equal(t, map[string]interface{}{"source": 0.0, "target": 1.0, "value": 1.0}, generic["links"][0])

	bin, err := EncodeCBOR(doc)
	require.NoError(t, err)
	var decoded Sankey
	require.NoError(t, cbor.Unmarshal(bin, &decoded))
	if diff := cmp.Diff(doc, decoded); diff != "" {
		t.Errorf("cbor mismatch (-want +got):\n%s", diff)
	}
}

func TestSankey_KeepsIsolatedNodes(t *testing.T) {
	items := lineItems(0, append(append([]row{}, order1001...), order1002...)...)
	doc := ToSankey(Build(classified(t, items)).Graph)

	require.Len(t, doc.Nodes, 5)
	assert.Equal(t, SankeyNode{Name: "SheerBraSet"}, doc.Nodes[4])
	require.Len(t, doc.Links, 3)
	for _, l := range doc.Links {
		assert.NotEqual(t, 4, l.Source)
		assert.NotEqual(t, 4, l.Target)
	}
}

func TestValidate_RejectsBackwardEdge(t *testing.T) {
	g := types.Graph{
		Nodes: []types.FlowNode{
			{ID: 0, Label: "Nude Thong", Layer: types.LayerPanty},
			{ID: 1, Label: "Black Bralette", Layer: types.LayerBra},
		},
		Edges: []types.FlowEdge{{SourceNodeID: 0, TargetNodeID: 1, Weight: 1}},
	}
	assert.Error(t, Validate(g))
}

// acyclic runs Kahn's algorithm over g.
func acyclic(g types.Graph) bool {
	indegree := make([]int, len(g.Nodes))
	adj := make([][]int, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.SourceNodeID] = append(adj[e.SourceNodeID], e.TargetNodeID)
		indegree[e.TargetNodeID]++
	}
	var queue []int
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, m := range adj[n] {
			indegree[m]--
			if indegree[m] == 0 {
				queue = append(queue, m)
			}
		}
	}
	return visited == len(g.Nodes)
}
