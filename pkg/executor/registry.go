package executor

import (
	"context"
	"fmt"
)

// ExecContext carries per-node run state into an executor.
type ExecContext struct {
	NodeID      string
	RunID       string
	ChatID      string
	UserMessage string
	Runtime     *Runtime
	Emit        func(Event)
}

// NodeExecutor executes one node type. Implementations must be safe for
// reuse across runs; per-run state travels in the arguments.
type NodeExecutor interface {
	NodeType() string
	// Execute consumes the node's data bag and gathered inputs and
	// returns the values for its output handles.
	Execute(ctx context.Context, data map[string]any, inputs map[string]DataValue, ec *ExecContext) (Outputs, error)
}

// Registry looks up NodeExecutor implementations by node type. Nodes
// without an executor are structural: they participate via link edges
// and never run in the flow phase.
type Registry struct {
	executors map[string]NodeExecutor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]NodeExecutor)}
}

// Register adds an executor. Re-registering a node type is a programmer
// error.
func (r *Registry) Register(e NodeExecutor) error {
	if e == nil || e.NodeType() == "" {
		return fmt.Errorf("executor must have a node type")
	}
	if _, exists := r.executors[e.NodeType()]; exists {
		return fmt.Errorf("executor for %q already registered", e.NodeType())
	}
	r.executors[e.NodeType()] = e
	return nil
}

// Get returns the executor for a node type.
func (r *Registry) Get(nodeType string) (NodeExecutor, bool) {
	e, ok := r.executors[nodeType]
	return e, ok
}
