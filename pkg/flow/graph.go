package flow

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Channel classifies an edge. Flow edges carry runtime data and form the
// execution dependency graph; link edges attach capabilities (tools) and
// are ignored by traversal.
type Channel string

const (
	ChannelFlow Channel = "flow"
	ChannelLink Channel = "link"
)

// RerouteType is the node type id of the pass-through wire-bend node.
const RerouteType = "reroute"

// rerouteTypeKey is the data-bag key holding a reroute node's inferred
// socket type.
const rerouteTypeKey = "_socketType"

// Position is a canvas coordinate. The engine stores it verbatim and does
// no coordinate math.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FlowNode is a runtime node instance.
type FlowNode struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data"`
}

// IsReroute reports whether the node is a pass-through reroute.
func (n *FlowNode) IsReroute() bool { return n.Type == RerouteType }

// InferredType returns a reroute node's inferred socket type. The second
// result is false for non-reroute nodes and for reroutes that have not yet
// adopted a type from a peer.
func (n *FlowNode) InferredType() (SocketType, bool) {
	if !n.IsReroute() {
		return "", false
	}
	s, ok := n.Data[rerouteTypeKey].(string)
	if !ok || s == "" {
		return "", false
	}
	return SocketType(s), true
}

// SetInferredType records the socket type a reroute adopted from its peer.
func (n *FlowNode) SetInferredType(t SocketType) {
	if n.Data == nil {
		n.Data = make(map[string]any)
	}
	n.Data[rerouteTypeKey] = string(t)
}

// EdgeData is the payload carried on every edge. Channel is mandatory; the
// cached endpoint types let the canvas redraw without re-resolving
// definitions and are re-derived on load.
type EdgeData struct {
	Channel    Channel    `json:"channel"`
	SourceType SocketType `json:"sourceType,omitempty"`
	TargetType SocketType `json:"targetType,omitempty"`
}

// FlowEdge is a directed connection between two node handles.
type FlowEdge struct {
	ID           string   `json:"id"`
	Source       string   `json:"source"`
	SourceHandle string   `json:"sourceHandle"`
	Target       string   `json:"target"`
	TargetHandle string   `json:"targetHandle"`
	Data         EdgeData `json:"data"`
}

// Connection is the endpoint tuple the UI hands to Connect and
// IsValidConnection before an edge exists.
type Connection struct {
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

// Graph is the persisted form: plain node and edge lists.
type Graph struct {
	Nodes []FlowNode `json:"nodes"`
	Edges []FlowEdge `json:"edges"`
}

// ParseGraph decodes a persisted graph document.
func ParseGraph(data []byte) (Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return Graph{}, fmt.Errorf("parse graph: %w", err)
	}
	return g, nil
}

// EncodeGraph serializes a graph to the persisted JSON form.
func EncodeGraph(g Graph) ([]byte, error) {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode graph: %w", err)
	}
	return data, nil
}

// NewNodeID returns a collision-resistant node instance id.
func NewNodeID() string { return uuid.NewString() }

// NewEdgeID returns a collision-resistant edge id.
func NewEdgeID() string { return "e-" + uuid.NewString() }

// validChannel reports whether c is one of the two defined channels.
func validChannel(c Channel) bool {
	return c == ChannelFlow || c == ChannelLink
}
