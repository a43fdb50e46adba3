package executor

import (
	"fmt"

	"github.com/SethBurkart123/covalt/pkg/flow"
)

// Runtime indexes one graph for the duration of a run: node lookup and
// per-channel edge adjacency. Node executors query it to resolve their
// structural attachments (link edges) without re-scanning the edge list.
type Runtime struct {
	nodesByID map[string]flow.FlowNode
	incoming  map[string][]flow.FlowEdge
	outgoing  map[string][]flow.FlowEdge
}

// NewRuntime builds the index. Every edge must carry a valid channel and
// reference known nodes.
func NewRuntime(g flow.Graph) (*Runtime, error) {
	rt := &Runtime{
		nodesByID: make(map[string]flow.FlowNode, len(g.Nodes)),
		incoming:  make(map[string][]flow.FlowEdge),
		outgoing:  make(map[string][]flow.FlowEdge),
	}
	for _, n := range g.Nodes {
		rt.nodesByID[n.ID] = n
	}
	for _, e := range g.Edges {
		if e.Data.Channel != flow.ChannelFlow && e.Data.Channel != flow.ChannelLink {
			return nil, &flow.ChannelError{EdgeID: e.ID, Channel: e.Data.Channel}
		}
		if _, ok := rt.nodesByID[e.Source]; !ok {
			return nil, fmt.Errorf("edge %s references unknown source node %s", e.ID, e.Source)
		}
		if _, ok := rt.nodesByID[e.Target]; !ok {
			return nil, fmt.Errorf("edge %s references unknown target node %s", e.ID, e.Target)
		}
		rt.incoming[e.Target] = append(rt.incoming[e.Target], e)
		rt.outgoing[e.Source] = append(rt.outgoing[e.Source], e)
	}
	return rt, nil
}

// Node returns a node by id.
func (rt *Runtime) Node(id string) (flow.FlowNode, bool) {
	n, ok := rt.nodesByID[id]
	return n, ok
}

// IncomingEdges returns edges into a node, optionally filtered by channel
// ("" matches all) and target handle ("" matches all).
func (rt *Runtime) IncomingEdges(nodeID string, channel flow.Channel, targetHandle string) []flow.FlowEdge {
	var out []flow.FlowEdge
	for _, e := range rt.incoming[nodeID] {
		if channel != "" && e.Data.Channel != channel {
			continue
		}
		if targetHandle != "" && incomingHandle(e) != targetHandle {
			continue
		}
		out = append(out, e)
	}
	return out
}

// OutgoingEdges returns edges out of a node, optionally filtered by
// channel and source handle.
func (rt *Runtime) OutgoingEdges(nodeID string, channel flow.Channel, sourceHandle string) []flow.FlowEdge {
	var out []flow.FlowEdge
	for _, e := range rt.outgoing[nodeID] {
		if channel != "" && e.Data.Channel != channel {
			continue
		}
		if sourceHandle != "" && outgoingHandle(e) != sourceHandle {
			continue
		}
		out = append(out, e)
	}
	return out
}

// LinkSources returns the nodes attached to a handle via link edges,
// following pass-through reroutes to the real source.
func (rt *Runtime) LinkSources(nodeID, targetHandle string) []flow.FlowNode {
	var out []flow.FlowNode
	seen := make(map[string]bool)
	var walk func(nodeID, handle string)
	walk = func(nodeID, handle string) {
		for _, e := range rt.IncomingEdges(nodeID, flow.ChannelLink, handle) {
			src, ok := rt.Node(e.Source)
			if !ok || seen[src.ID] {
				continue
			}
			seen[src.ID] = true
			if src.IsReroute() {
				walk(src.ID, flow.RerouteInputHandle)
				continue
			}
			out = append(out, src)
		}
	}
	walk(nodeID, targetHandle)
	return out
}

func incomingHandle(e flow.FlowEdge) string {
	if e.TargetHandle == "" {
		return "input"
	}
	return e.TargetHandle
}

func outgoingHandle(e flow.FlowEdge) string {
	if e.SourceHandle == "" {
		return "output"
	}
	return e.SourceHandle
}
