// =============================================================================
// Subscription Flow Audit - GraphML Writer
// =============================================================================
//
// Writes the flow graph as GraphML so it can be opened in graph tools
// (yEd, Gephi, networkx) next to the Sankey JSON.
//
// XML STRUCTURE:
//
//   <graphml xmlns="http://graphml.graphdrawing.org/xmlns">
//     <key id="label"  for="node" attr.name="label"  attr.type="string"/>
//     <key id="layer"  for="node" attr.name="layer"  attr.type="string"/>
//     <key id="weight" for="edge" attr.name="weight" attr.type="int"/>
//     <graph id="flow" edgedefault="directed">
//       <node id="n0">
//         <data key="label">ReliefBraSet</data>
//         <data key="layer">subscription</data>
//       </node>
//       <edge id="e0" source="n0" target="n1">
//         <data key="weight">3</data>
//       </edge>
//     </graph>
//   </graphml>
//
// Node and edge ids are derived from graph positions, so output is stable
// for a given graph.
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/ginjaninja78/subscription-flow-audit/internal/types"
)

// GraphMLNamespace is the GraphML XML namespace.
const GraphMLNamespace = "http://graphml.graphdrawing.org/xmlns"

// =============================================================================
// GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for GraphML generation.
type GenerateOptions struct {
	// Indent is the string used for indentation.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration determines whether to include the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool

	// GraphID is the id attribute of the <graph> element.
	// Default: "flow"
	GraphID string
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
		GraphID:               "flow",
	}
}

// =============================================================================
// DOCUMENT STRUCTURE
// =============================================================================

type graphML struct {
	XMLName xml.Name `xml:"graphml"`
	XMLNS   string   `xml:"xmlns,attr"`
	Keys    []key    `xml:"key"`
	Graph   graph    `xml:"graph"`
}

type key struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr"`
}

type graph struct {
	ID          string `xml:"id,attr"`
	EdgeDefault string `xml:"edgedefault,attr"`
	Nodes       []node `xml:"node"`
	Edges       []edge `xml:"edge"`
}

type node struct {
	ID   string `xml:"id,attr"`
	Data []data `xml:"data"`
}

type edge struct {
	ID     string `xml:"id,attr"`
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
	Data   []data `xml:"data"`
}

type data struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// =============================================================================
// GENERATION FUNCTIONS
// =============================================================================

// Generate renders g as GraphML with the default options.
func Generate(g types.Graph) ([]byte, error) {
	return GenerateWithOptions(g, DefaultGenerateOptions())
}

// GenerateWithOptions renders g as GraphML.
//
// RETURNS:
//   - The GraphML document as a byte slice.
//   - An error if marshalling fails.
func GenerateWithOptions(g types.Graph, options GenerateOptions) ([]byte, error) {
	var buffer bytes.Buffer

	if options.IncludeXMLDeclaration {
		buffer.WriteString(xml.Header)
	}

	doc := buildDocument(g, options)

	out, err := xml.MarshalIndent(doc, "", options.Indent)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphML: %w", err)
	}
	buffer.Write(out)
	buffer.WriteByte('\n')

	return buffer.Bytes(), nil
}

// buildDocument constructs the GraphML document structure.
func buildDocument(g types.Graph, options GenerateOptions) *graphML {
	graphID := options.GraphID
	if graphID == "" {
		graphID = "flow"
	}

	doc := &graphML{
		XMLNS: GraphMLNamespace,
		Keys: []key{
			{ID: "label", For: "node", AttrName: "label", AttrType: "string"},
			{ID: "layer", For: "node", AttrName: "layer", AttrType: "string"},
			{ID: "weight", For: "edge", AttrName: "weight", AttrType: "int"},
		},
		Graph: graph{
			ID:          graphID,
			EdgeDefault: "directed",
			Nodes:       make([]node, 0, len(g.Nodes)),
			Edges:       make([]edge, 0, len(g.Edges)),
		},
	}

	for _, n := range g.Nodes {
		doc.Graph.Nodes = append(doc.Graph.Nodes, node{
			ID: nodeID(n.ID),
			Data: []data{
				{Key: "label", Value: n.Label},
				{Key: "layer", Value: n.Layer.String()},
			},
		})
	}

	for i, e := range g.Edges {
		doc.Graph.Edges = append(doc.Graph.Edges, edge{
			ID:     "e" + strconv.Itoa(i),
			Source: nodeID(e.SourceNodeID),
			Target: nodeID(e.TargetNodeID),
			Data:   []data{{Key: "weight", Value: strconv.Itoa(e.Weight)}},
		})
	}

	return doc
}

func nodeID(id int) string {
	return "n" + strconv.Itoa(id)
}
