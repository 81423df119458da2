package flowgraph

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/ginjaninja78/subscription-flow-audit/internal/types"
)

// SankeyNode is a node in the layout input; its position in the node array
// is its index.
type SankeyNode struct {
	Name string `json:"name"`
}

// SankeyLink references nodes by zero-based index.
type SankeyLink struct {
	Source int `json:"source"`
	Target int `json:"target"`
	Value  int `json:"value"`
}

// Sankey is the {nodes, links} document consumed by flow-diagram layouts.
type Sankey struct {
	Nodes []SankeyNode `json:"nodes"`
	Links []SankeyLink `json:"links"`
}

// ToSankey converts g. Node ids are already dense indices.
//
// Every node is emitted, including nodes with no links: the subscription
// node of a missing-bra order and the bra node of a missing-panty order
// stay in the document so the node array matches the graph one-to-one.
func ToSankey(g types.Graph) Sankey {
	doc := Sankey{
		Nodes: make([]SankeyNode, len(g.Nodes)),
		Links: make([]SankeyLink, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		doc.Nodes[i] = SankeyNode{Name: n.Label}
	}
	for i, e := range g.Edges {
		doc.Links[i] = SankeyLink{Source: e.SourceNodeID, Target: e.TargetNodeID, Value: e.Weight}
	}
	return doc
}

// EncodeJSON returns the indented JSON document.
func EncodeJSON(doc Sankey) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// EncodeCBOR returns the CBOR encoding of doc.
func EncodeCBOR(doc Sankey) ([]byte, error) {
	return cbor.Marshal(doc)
}

// Validate checks the structural invariants of g: dense node ids, unique
// node keys, unique edges, non-negative weights and strictly increasing
// layers along every edge.
func Validate(g types.Graph) error {
	keys := make(map[types.NodeKey]bool, len(g.Nodes))
	for i, n := range g.Nodes {
		if n.ID != i {
			return fmt.Errorf("node %q has id %d at index %d", n.Label, n.ID, i)
		}
		if keys[n.Key()] {
			return fmt.Errorf("duplicate node %s/%q", n.Layer, n.Label)
		}
		keys[n.Key()] = true
	}

	seen := make(map[edgeKey]bool, len(g.Edges))
	for _, e := range g.Edges {
		if e.SourceNodeID < 0 || e.SourceNodeID >= len(g.Nodes) || e.TargetNodeID < 0 || e.TargetNodeID >= len(g.Nodes) {
			return fmt.Errorf("edge %d->%d references a missing node", e.SourceNodeID, e.TargetNodeID)
		}
		k := edgeKey{source: e.SourceNodeID, target: e.TargetNodeID}
		if seen[k] {
			return fmt.Errorf("duplicate edge %d->%d", e.SourceNodeID, e.TargetNodeID)
		}
		seen[k] = true

		if e.Weight < 0 {
			return fmt.Errorf("edge %d->%d has negative weight %d", e.SourceNodeID, e.TargetNodeID, e.Weight)
		}
		src, dst := g.Nodes[e.SourceNodeID], g.Nodes[e.TargetNodeID]
		if dst.Layer <= src.Layer {
			return fmt.Errorf("edge %s/%q -> %s/%q does not advance a layer", src.Layer, src.Label, dst.Layer, dst.Label)
		}
	}
	return nil
}
