package flow

import "sort"

// RunPlan is the planner's decision for one execution request: which nodes
// are excluded as non-firing alternate triggers, and which nodes' cached
// outputs may be reused verbatim. Everything else upstream of the target
// must execute.
type RunPlan struct {
	Target           string          `json:"target"`
	ExcludedTriggers map[string]bool `json:"excludedTriggers"`
	Reusable         map[string]bool `json:"reusable"`
}

// PlanRequest carries everything PlanRun needs. It is consumed read-only.
type PlanRequest struct {
	Target string
	Nodes  []FlowNode
	Edges  []FlowEdge
	// StopAt holds pinned node ids: invalidation does not propagate past
	// them, and their own cached output stays reusable.
	StopAt map[string]bool
	// ChangedNodes are nodes whose inputs or data changed since the cache
	// was populated; everything downstream of them is stale.
	ChangedNodes []string
	// CachedOutputIDs are the node ids present in the output cache.
	CachedOutputIDs []string
	// FiringTrigger is the single trigger actually firing this run. Empty
	// means the graph has no trigger ambiguity to resolve.
	FiringTrigger string
}

// PlanRun decides which nodes must re-execute for a run targeting
// req.Target. Pure function: identical inputs produce identical plans.
//
// A cached output is reusable iff its node is not downstream of a changed
// node (bounded by the pinned set) and is not a non-firing alternate
// trigger upstream of the target.
func PlanRun(req PlanRequest, defs *DefinitionRegistry) RunPlan {
	flowEdges := FilterFlowEdges(req.Edges)

	upstream := UpstreamClosure([]string{req.Target}, flowEdges, ClosureOptions{})

	excluded := make(map[string]bool)
	if req.FiringTrigger != "" {
		for _, n := range req.Nodes {
			if !upstream[n.ID] || n.ID == req.FiringTrigger {
				continue
			}
			if def, ok := defs.Get(n.Type); ok && def.Category == CategoryTrigger {
				excluded[n.ID] = true
			}
		}
	}

	invalidated := DownstreamClosure(req.ChangedNodes, flowEdges, ClosureOptions{
		StopAt: req.StopAt,
	})

	reusable := make(map[string]bool)
	for _, id := range req.CachedOutputIDs {
		if invalidated[id] || excluded[id] {
			continue
		}
		reusable[id] = true
	}

	return RunPlan{
		Target:           req.Target,
		ExcludedTriggers: excluded,
		Reusable:         reusable,
	}
}

// BuildCachedOutputs returns the subset of cache whose node id is not in
// the invalidated set. Entries that survive are passed through unchanged.
func BuildCachedOutputs[V any](cache map[string]V, invalidated map[string]bool) map[string]V {
	out := make(map[string]V, len(cache))
	for id, v := range cache {
		if invalidated[id] {
			continue
		}
		out[id] = v
	}
	return out
}

// ReusableIDs returns the plan's reusable node ids in sorted order, for
// deterministic logging and tests.
func (p RunPlan) ReusableIDs() []string {
	out := make([]string, 0, len(p.Reusable))
	for id := range p.Reusable {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
