package flow

import (
	"fmt"
	"strconv"

	"github.com/awalterschulze/gographviz"
)

// ExportDOT renders a graph in Graphviz DOT form for inspection outside
// the editor. Flow edges draw solid; link edges (tool attachments) draw
// dashed. Node labels fall back to the type id when the definition is
// unknown.
func ExportDOT(g Graph, defs *DefinitionRegistry) (string, error) {
	viz := gographviz.NewGraph()
	if err := viz.SetName("flow"); err != nil {
		return "", fmt.Errorf("export dot: %w", err)
	}
	if err := viz.SetDir(true); err != nil {
		return "", fmt.Errorf("export dot: %w", err)
	}

	for _, n := range g.Nodes {
		label := n.Type
		if def, ok := defs.Get(n.Type); ok && def.Name != "" {
			label = def.Name
		}
		attrs := map[string]string{
			"label": strconv.Quote(label),
			"shape": "box",
		}
		if n.IsReroute() {
			attrs["shape"] = "point"
		}
		if err := viz.AddNode("flow", strconv.Quote(n.ID), attrs); err != nil {
			return "", fmt.Errorf("export dot: node %s: %w", n.ID, err)
		}
	}

	for _, e := range g.Edges {
		attrs := map[string]string{
			"label": strconv.Quote(string(e.Data.SourceType)),
		}
		if e.Data.Channel == ChannelLink {
			attrs["style"] = "dashed"
		}
		if err := viz.AddEdge(strconv.Quote(e.Source), strconv.Quote(e.Target), true, attrs); err != nil {
			return "", fmt.Errorf("export dot: edge %s: %w", e.ID, err)
		}
	}
	return viz.String(), nil
}
