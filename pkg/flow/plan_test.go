package flow

import (
	"reflect"
	"testing"
)

func planRegistry(t *testing.T) *DefinitionRegistry {
	t.Helper()
	reg := NewDefinitionRegistry()
	defs := []*NodeDefinition{
		{ID: "trigger", Name: "Trigger", Category: CategoryTrigger},
		{ID: "task", Name: "Task", Category: CategoryCore},
	}
	for _, d := range defs {
		if err := reg.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.ID, err)
		}
	}
	return reg
}

func planNodes(types map[string]string) []FlowNode {
	out := make([]FlowNode, 0, len(types))
	for id, typ := range types {
		out = append(out, FlowNode{ID: id, Type: typ})
	}
	return out
}

func TestPlanRunExcludesNonFiringTriggers(t *testing.T) {
	reg := planRegistry(t)
	nodes := planNodes(map[string]string{
		"t1": "trigger", "t2": "trigger", "a": "task", "end": "task",
	})
	edges := []FlowEdge{
		flowEdge("t1", "a"),
		flowEdge("t2", "a"),
		flowEdge("a", "end"),
	}

	plan := PlanRun(PlanRequest{
		Target:          "end",
		Nodes:           nodes,
		Edges:           edges,
		CachedOutputIDs: []string{"t2", "a"},
		FiringTrigger:   "t1",
	}, reg)

	if !plan.ExcludedTriggers["t2"] {
		t.Errorf("t2 is a non-firing alternate trigger and must be excluded")
	}
	if plan.ExcludedTriggers["t1"] {
		t.Errorf("the firing trigger must never be excluded")
	}
	if plan.Reusable["t2"] {
		t.Errorf("an excluded trigger's cached output must not be reused")
	}
	if !plan.Reusable["a"] {
		t.Errorf("unchanged cached node should be reusable")
	}
}

func TestPlanRunNoFiringTriggerMeansNoExclusions(t *testing.T) {
	reg := planRegistry(t)
	nodes := planNodes(map[string]string{"t1": "trigger", "t2": "trigger", "end": "task"})
	edges := []FlowEdge{flowEdge("t1", "end"), flowEdge("t2", "end")}

	plan := PlanRun(PlanRequest{Target: "end", Nodes: nodes, Edges: edges}, reg)
	if len(plan.ExcludedTriggers) != 0 {
		t.Errorf("no firing trigger declared, expected no exclusions, got %v", plan.ExcludedTriggers)
	}
}

func TestPlanRunIgnoresTriggersOutsideUpstream(t *testing.T) {
	reg := planRegistry(t)
	// t2 feeds a sibling branch that never reaches the target.
	nodes := planNodes(map[string]string{
		"t1": "trigger", "t2": "trigger", "a": "task", "other": "task",
	})
	edges := []FlowEdge{
		flowEdge("t1", "a"),
		flowEdge("t2", "other"),
	}

	plan := PlanRun(PlanRequest{
		Target:        "a",
		Nodes:         nodes,
		Edges:         edges,
		FiringTrigger: "t1",
	}, reg)
	if plan.ExcludedTriggers["t2"] {
		t.Errorf("triggers outside the target's upstream are irrelevant, not excluded")
	}
}

func TestPlanRunInvalidationStopsAtPinnedNodes(t *testing.T) {
	reg := planRegistry(t)
	nodes := planNodes(map[string]string{
		"a": "task", "b": "task", "c": "task", "end": "task",
	})
	edges := []FlowEdge{
		flowEdge("a", "b"),
		flowEdge("b", "c"),
		flowEdge("c", "end"),
	}

	plan := PlanRun(PlanRequest{
		Target:          "end",
		Nodes:           nodes,
		Edges:           edges,
		ChangedNodes:    []string{"a"},
		StopAt:          map[string]bool{"c": true},
		CachedOutputIDs: []string{"a", "b", "c"},
	}, reg)

	want := []string{"c"}
	if got := plan.ReusableIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("reusable = %v, want %v: the pinned node shields itself and its downstream", got, want)
	}
}

func TestPlanRunLinkEdgesAreNotDependencies(t *testing.T) {
	reg := planRegistry(t)
	nodes := planNodes(map[string]string{"tools": "task", "a": "task", "end": "task"})
	link := flowEdge("tools", "a")
	link.Data.Channel = ChannelLink
	edges := []FlowEdge{link, flowEdge("a", "end")}

	plan := PlanRun(PlanRequest{
		Target:          "end",
		Nodes:           nodes,
		Edges:           edges,
		ChangedNodes:    []string{"tools"},
		CachedOutputIDs: []string{"a"},
	}, reg)

	if !plan.Reusable["a"] {
		t.Errorf("a change propagated across a link edge; links are not execution dependencies")
	}
}

func TestBuildCachedOutputs(t *testing.T) {
	cache := map[string]int{"a": 1, "b": 2, "c": 3}
	got := BuildCachedOutputs(cache, map[string]bool{"b": true})
	want := map[string]int{"a": 1, "c": 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildCachedOutputs = %v, want %v", got, want)
	}
	// Input map is never mutated.
	if len(cache) != 3 {
		t.Errorf("source cache mutated: %v", cache)
	}
}

func TestPlanRunDeterministic(t *testing.T) {
	reg := planRegistry(t)
	req := PlanRequest{
		Target: "end",
		Nodes:  planNodes(map[string]string{"t1": "trigger", "t2": "trigger", "end": "task"}),
		Edges: []FlowEdge{
			flowEdge("t1", "end"),
			flowEdge("t2", "end"),
		},
		CachedOutputIDs: []string{"t1", "t2"},
		FiringTrigger:   "t1",
	}
	first := PlanRun(req, reg)
	second := PlanRun(req, reg)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical requests produced different plans:\n%+v\n%+v", first, second)
	}
}
