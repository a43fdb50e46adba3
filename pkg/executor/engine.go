package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/SethBurkart123/covalt/pkg/flow"
)

const chatStartType = "chat-start"

// Engine executes flow graphs against a NodeExecutor registry.
type Engine struct {
	reg    *Registry
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(reg *Registry, logger *slog.Logger) (*Engine, error) {
	if reg == nil {
		return nil, fmt.Errorf("executor registry must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{reg: reg, logger: logger}, nil
}

// RunOptions configures one run.
type RunOptions struct {
	// RunID identifies the run in events; a fresh id is generated when empty.
	RunID string
	// ChatID ties the run to a chat session, if any.
	ChatID string
	// UserMessage seeds trigger nodes (chat-start) with the user's input.
	UserMessage string
	// Plan, when set, excludes non-firing triggers and marks nodes whose
	// cached outputs may be reused without executing.
	Plan *flow.RunPlan
	// Cached holds previously produced outputs, keyed by node id. Only
	// nodes the plan marks reusable are read from it.
	Cached map[string]Outputs
	// OnEvent receives run events; nil disables event delivery.
	OnEvent func(Event)
	// OnNodeError decides whether a node failure aborts the run. Nodes
	// may override per-instance with data key "on_error" = "continue".
	ContinueOnError bool
}

// Run executes the graph's flow nodes in topological order.
//
// Only nodes with a registered executor participate; when the graph has a
// chat-start node, execution is restricted to its connected flow
// component so structurally attached sub-graphs never run as independent
// roots. Dead branches (nodes whose inputs produced no data, e.g. the
// untaken side of a conditional) are skipped.
func (e *Engine) Run(ctx context.Context, g flow.Graph, opts RunOptions) (*RunResult, error) {
	rt, err := NewRuntime(g)
	if err != nil {
		return nil, err
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	emit := func(ev Event) {
		if opts.OnEvent != nil {
			ev.RunID = runID
			opts.OnEvent(ev)
		}
	}

	flowNodes := e.flowNodes(g.Nodes)
	if len(flowNodes) == 0 {
		return &RunResult{RunID: runID, Outputs: map[string]Outputs{}}, nil
	}
	flowEdges := restrictEdges(flow.FilterFlowEdges(g.Edges), flowNodes)
	flowNodes, flowEdges = activeSubgraph(flowNodes, flowEdges)

	order, err := topoSort(flowNodes, flowEdges)
	if err != nil {
		return nil, err
	}

	nodesByID := make(map[string]flow.FlowNode, len(flowNodes))
	for _, n := range flowNodes {
		nodesByID[n.ID] = n
	}

	result := &RunResult{
		RunID:   runID,
		Outputs: make(map[string]Outputs, len(order)),
	}
	portValues := result.Outputs

	for _, nodeID := range order {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("run cancelled at node %q: %w", nodeID, ctx.Err())
		default:
		}

		node := nodesByID[nodeID]

		if opts.Plan != nil && opts.Plan.ExcludedTriggers[nodeID] {
			emit(Event{NodeID: nodeID, NodeType: node.Type, Type: EventSkipped,
				Data: map[string]any{"reason": "non-firing trigger"}})
			continue
		}
		if opts.Plan != nil && opts.Plan.Reusable[nodeID] {
			if cached, ok := opts.Cached[nodeID]; ok {
				portValues[nodeID] = cached
				result.Reused = append(result.Reused, nodeID)
				emit(Event{NodeID: nodeID, NodeType: node.Type, Type: EventCached})
				continue
			}
		}

		exec, ok := e.reg.Get(node.Type)
		if !ok {
			continue
		}

		inputs := gatherInputs(nodeID, flowEdges, portValues)

		// Dead branch: upstream produced nothing for us.
		if len(inputs) == 0 && hasIncoming(nodeID, flowEdges) {
			result.Skipped = append(result.Skipped, nodeID)
			emit(Event{NodeID: nodeID, NodeType: node.Type, Type: EventSkipped,
				Data: map[string]any{"reason": "dead branch"}})
			continue
		}

		ec := &ExecContext{
			NodeID:      nodeID,
			RunID:       runID,
			ChatID:      opts.ChatID,
			UserMessage: opts.UserMessage,
			Runtime:     rt,
			Emit:        emit,
		}

		e.logger.Info("executing node", "run", runID, "node", nodeID, "type", node.Type)
		emit(Event{NodeID: nodeID, NodeType: node.Type, Type: EventStarted})

		outputs, execErr := exec.Execute(ctx, node.Data, inputs, ec)
		if execErr != nil {
			emit(Event{NodeID: nodeID, NodeType: node.Type, Type: EventError,
				Data: map[string]any{"error": execErr.Error()}})
			if opts.ContinueOnError || node.Data["on_error"] == "continue" {
				portValues[nodeID] = Outputs{"output": {
					Type:  flow.SocketJSON,
					Value: map[string]any{"error": execErr.Error()},
				}}
				result.Order = append(result.Order, nodeID)
				continue
			}
			return nil, fmt.Errorf("node %q (type=%q): %w", nodeID, node.Type, execErr)
		}

		portValues[nodeID] = outputs
		result.Order = append(result.Order, nodeID)
		emit(Event{NodeID: nodeID, NodeType: node.Type, Type: EventCompleted})
	}

	return result, nil
}

// flowNodes filters to nodes that have a registered executor.
func (e *Engine) flowNodes(nodes []flow.FlowNode) []flow.FlowNode {
	var out []flow.FlowNode
	for _, n := range nodes {
		if _, ok := e.reg.Get(n.Type); ok {
			out = append(out, n)
		}
	}
	return out
}

func restrictEdges(edges []flow.FlowEdge, nodes []flow.FlowNode) []flow.FlowEdge {
	ids := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = true
	}
	var out []flow.FlowEdge
	for _, e := range edges {
		if ids[e.Source] && ids[e.Target] {
			out = append(out, e)
		}
	}
	return out
}

// activeSubgraph restricts execution to the flow component(s) connected
// to a chat-start node, when one exists. This keeps structurally attached
// sub-agents from running as independent flow roots.
func activeSubgraph(nodes []flow.FlowNode, edges []flow.FlowEdge) ([]flow.FlowNode, []flow.FlowEdge) {
	var starts []string
	for _, n := range nodes {
		if n.Type == chatStartType {
			starts = append(starts, n.ID)
		}
	}
	if len(starts) == 0 {
		return nodes, edges
	}

	// Undirected reachability from chat-start.
	adjacency := make(map[string][]string)
	for _, e := range edges {
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		adjacency[e.Target] = append(adjacency[e.Target], e.Source)
	}
	active := make(map[string]bool)
	queue := starts
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if active[id] {
			continue
		}
		active[id] = true
		queue = append(queue, adjacency[id]...)
	}

	var keptNodes []flow.FlowNode
	for _, n := range nodes {
		if active[n.ID] {
			keptNodes = append(keptNodes, n)
		}
	}
	var keptEdges []flow.FlowEdge
	for _, e := range edges {
		if active[e.Source] && active[e.Target] {
			keptEdges = append(keptEdges, e)
		}
	}
	return keptNodes, keptEdges
}

// topoSort is Kahn's algorithm with sorted tie-breaking, so execution
// order is deterministic for a given graph. Errors on cycles.
func topoSort(nodes []flow.FlowNode, edges []flow.FlowEdge) ([]string, error) {
	inDegree := make(map[string]int, len(nodes))
	adjacency := make(map[string][]string)
	for _, n := range nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range edges {
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		inDegree[e.Target]++
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		next := append([]string(nil), adjacency[id]...)
		sort.Strings(next)
		for _, n := range next {
			inDegree[n]--
			if inDegree[n] == 0 {
				queue = append(queue, n)
				sort.Strings(queue)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, fmt.Errorf("cycle detected in flow graph")
	}
	return order, nil
}

// gatherInputs pulls values from upstream output ports along flow edges,
// applying runtime coercion for typed socket pairs. The untyped data
// spine never coerces. A failed conversion passes the value through
// unchanged rather than dropping it.
func gatherInputs(nodeID string, edges []flow.FlowEdge, portValues map[string]Outputs) map[string]DataValue {
	inputs := make(map[string]DataValue)
	for _, e := range edges {
		if e.Target != nodeID {
			continue
		}
		sourceOutputs, ok := portValues[e.Source]
		if !ok {
			continue
		}
		value, ok := sourceOutputs[outgoingHandle(e)]
		if !ok {
			continue
		}

		targetType := e.Data.TargetType
		if targetType != "" && targetType != flow.SocketData &&
			value.Type != flow.SocketData && value.Type != targetType {
			if cv, err := Coerce(value, targetType); err == nil {
				value = cv
			}
		}
		inputs[incomingHandle(e)] = value
	}
	return inputs
}

func hasIncoming(nodeID string, edges []flow.FlowEdge) bool {
	for _, e := range edges {
		if e.Target == nodeID {
			return true
		}
	}
	return false
}
