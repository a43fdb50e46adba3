package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SethBurkart123/covalt/pkg/flow"
)

func graphCmd() *cobra.Command {
	var (
		format     string
		catalogDir string
	)

	cmd := &cobra.Command{
		Use:   "graph <graph.json>",
		Short: "Print a human-readable summary of a flow graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}
			g, err := flow.ParseGraph(src)
			if err != nil {
				return err
			}
			defs, err := buildDefinitions(catalogDir)
			if err != nil {
				return err
			}

			switch strings.ToLower(format) {
			case "dot":
				out, err := flow.ExportDOT(g, defs)
				if err != nil {
					return err
				}
				fmt.Print(out)
			case "text", "":
				fmt.Print(renderText(g, defs))
			default:
				return fmt.Errorf("unknown format %q: use text or dot", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or dot")
	cmd.Flags().StringVar(&catalogDir, "catalog", "", "directory of extra node definition YAML files")
	return cmd
}

// walkOrder returns node IDs in BFS order from trigger nodes; unreachable
// nodes are appended in sorted order at the end.
func walkOrder(g flow.Graph, defs *flow.DefinitionRegistry) []string {
	var roots []string
	for _, n := range g.Nodes {
		if def, ok := defs.Get(n.Type); ok && def.Category == flow.CategoryTrigger {
			roots = append(roots, n.ID)
		}
	}
	sort.Strings(roots)

	outgoing := make(map[string][]string)
	for _, e := range g.Edges {
		outgoing[e.Source] = append(outgoing[e.Source], e.Target)
	}
	for id := range outgoing {
		sort.Strings(outgoing[id])
	}

	visited := map[string]bool{}
	var order []string
	queue := roots
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		order = append(order, cur)
		queue = append(queue, outgoing[cur]...)
	}

	var rest []string
	for _, n := range g.Nodes {
		if !visited[n.ID] {
			rest = append(rest, n.ID)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// truncate shortens s to maxLen chars, appending "…" if needed.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "…"
}

// renderText produces the human-readable text summary.
func renderText(g flow.Graph, defs *flow.DefinitionRegistry) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Graph: %d nodes, %d edges\n", len(g.Nodes), len(g.Edges))

	nodesByID := make(map[string]flow.FlowNode, len(g.Nodes))
	maxIDLen := 4
	for _, n := range g.Nodes {
		nodesByID[n.ID] = n
		if len(n.ID) > maxIDLen {
			maxIDLen = len(n.ID)
		}
	}

	fmt.Fprintf(&sb, "\nNodes:\n")
	for _, id := range walkOrder(g, defs) {
		n := nodesByID[id]
		name := n.Type
		if def, ok := defs.Get(n.Type); ok {
			name = def.Name
		}

		keys := make([]string, 0, len(n.Data))
		for k := range n.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var dataParts []string
		for _, k := range keys {
			dataParts = append(dataParts, k+"="+truncate(fmt.Sprint(n.Data[k]), 40))
		}
		fmt.Fprintf(&sb, "  %-*s  %-16s  %s\n", maxIDLen, id, name, strings.Join(dataParts, " "))
	}

	fmt.Fprintf(&sb, "\nEdges:\n")
	maxFromLen := 4
	for _, e := range g.Edges {
		if len(e.Source) > maxFromLen {
			maxFromLen = len(e.Source)
		}
	}
	for _, e := range g.Edges {
		wire := fmt.Sprintf("%s → %s.%s", e.SourceHandle, e.Target, e.TargetHandle)
		if e.Data.Channel == flow.ChannelLink {
			wire += "  [link]"
		}
		if e.Data.SourceType != "" {
			wire += fmt.Sprintf("  (%s)", e.Data.SourceType)
		}
		fmt.Fprintf(&sb, "  %-*s.%s\n", maxFromLen, e.Source, wire)
	}

	return sb.String()
}
