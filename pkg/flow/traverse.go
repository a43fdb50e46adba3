package flow

// ClosureOptions bounds a reachability traversal.
type ClosureOptions struct {
	// StopAt nodes are not crossed: their successors (or predecessors) are
	// never visited through them.
	StopAt map[string]bool
	// IncludeStopNodes adds a reached stop node itself to the result.
	IncludeStopNodes bool
}

// DownstreamClosure computes forward reachability from startIDs over the
// edge set, breadth-first. Every start id is included unless it is a stop
// node excluded by the options. Running the closure again on its own result
// returns the same set.
func DownstreamClosure(startIDs []string, edges []FlowEdge, opts ClosureOptions) map[string]bool {
	return closure(startIDs, edges, opts, false)
}

// UpstreamClosure computes backward reachability from startIDs: the same
// algorithm over the reverse adjacency.
func UpstreamClosure(startIDs []string, edges []FlowEdge, opts ClosureOptions) map[string]bool {
	return closure(startIDs, edges, opts, true)
}

func closure(startIDs []string, edges []FlowEdge, opts ClosureOptions, reverse bool) map[string]bool {
	adjacency := make(map[string][]string)
	for _, e := range edges {
		if reverse {
			adjacency[e.Target] = append(adjacency[e.Target], e.Source)
		} else {
			adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		}
	}

	result := make(map[string]bool)
	visited := make(map[string]bool)
	queue := append([]string(nil), startIDs...)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		if opts.StopAt[id] {
			if opts.IncludeStopNodes {
				result[id] = true
			}
			// Never walk past a stop node.
			continue
		}
		result[id] = true

		for _, next := range adjacency[id] {
			if !visited[next] {
				queue = append(queue, next)
			}
		}
	}
	return result
}

// FilterFlowEdges returns only the edges participating in the execution
// dependency graph. Link edges (tool attachments) are not dependencies.
func FilterFlowEdges(edges []FlowEdge) []FlowEdge {
	var out []FlowEdge
	for _, e := range edges {
		if e.Data.Channel == ChannelFlow {
			out = append(out, e)
		}
	}
	return out
}
