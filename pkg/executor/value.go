// Package executor runs flow graphs: nodes execute in topological order
// over flow edges, with typed values routed between ports and link edges
// resolved for structural composition (tool attachment).
package executor

import "github.com/SethBurkart123/covalt/pkg/flow"

// DataValue is one typed value travelling along a flow edge.
type DataValue struct {
	Type  flow.SocketType `json:"type"`
	Value any             `json:"value"`
}

// Outputs maps a node's output handles to the values it produced.
type Outputs map[string]DataValue

// ModelSpec is the payload carried on model sockets: which provider and
// model to call, and with what sampling temperature.
type ModelSpec struct {
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// ModelID returns the spec in "provider:model" form.
func (m ModelSpec) ModelID() string {
	return m.Provider + ":" + m.Model
}

// EventType identifies a run event.
type EventType string

const (
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventCached    EventType = "cached"
	EventSkipped   EventType = "skipped"
	EventError     EventType = "error"
	// EventProgress carries intra-node activity, e.g. an agent node's
	// tool calls while its loop is still running.
	EventProgress EventType = "progress"
)

// Event is emitted as a run progresses, one stream per run.
type Event struct {
	RunID    string         `json:"runId"`
	NodeID   string         `json:"nodeId"`
	NodeType string         `json:"nodeType"`
	Type     EventType      `json:"type"`
	Data     map[string]any `json:"data,omitempty"`
}

// RunResult summarizes a completed run.
type RunResult struct {
	RunID string `json:"runId"`
	// Order is the node execution order actually used.
	Order []string `json:"order"`
	// Outputs holds every node's produced (or reused) output values.
	Outputs map[string]Outputs `json:"outputs"`
	// Reused lists nodes whose cached outputs were reused without executing.
	Reused []string `json:"reused,omitempty"`
	// Skipped lists dead-branch nodes that never received input.
	Skipped []string `json:"skipped,omitempty"`
}
