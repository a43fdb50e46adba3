package flow

import "fmt"

// Category groups node definitions in the palette. CategoryTrigger is
// load-bearing: the run planner uses it to find competing trigger nodes.
type Category string

const (
	CategoryTrigger Category = "trigger"
	CategoryCore    Category = "core"
	CategoryFlow    Category = "flow"
	CategoryAI      Category = "ai"
	CategoryTools   Category = "tools"
	CategoryData    Category = "data"
	CategoryUtility Category = "utility"
)

// NodeDefinition is the static descriptor for a node type. Definitions are
// registered once at startup and never mutated afterwards.
type NodeDefinition struct {
	ID         string      `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name"`
	Category   Category    `json:"category" yaml:"category"`
	Icon       string      `json:"icon,omitempty" yaml:"icon,omitempty"`
	Parameters []Parameter `json:"parameters" yaml:"parameters"`
}

// Parameter returns the parameter with the given id.
func (d *NodeDefinition) Parameter(id string) (Parameter, bool) {
	for _, p := range d.Parameters {
		if p.ID == id {
			return p, true
		}
	}
	return Parameter{}, false
}

// DefinitionRegistry maps node type ids to their definitions.
type DefinitionRegistry struct {
	defs  map[string]*NodeDefinition
	order []string
}

// NewDefinitionRegistry creates an empty registry.
func NewDefinitionRegistry() *DefinitionRegistry {
	return &DefinitionRegistry{defs: make(map[string]*NodeDefinition)}
}

// Register adds a definition. Re-registering an id is a programmer error.
func (r *DefinitionRegistry) Register(def *NodeDefinition) error {
	if def == nil || def.ID == "" {
		return fmt.Errorf("node definition must have an id")
	}
	if _, exists := r.defs[def.ID]; exists {
		return fmt.Errorf("node definition %q already registered", def.ID)
	}
	r.defs[def.ID] = def
	r.order = append(r.order, def.ID)
	return nil
}

// Get returns the definition for a node type id. Callers must treat a
// false result as "feature unavailable" and degrade gracefully.
func (r *DefinitionRegistry) Get(id string) (*NodeDefinition, bool) {
	def, ok := r.defs[id]
	return def, ok
}

// List returns all definitions in registration order.
func (r *DefinitionRegistry) List() []*NodeDefinition {
	out := make([]*NodeDefinition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.defs[id])
	}
	return out
}

// CompatibleOutputSockets returns the definition's output-capable
// parameters that could feed a target socket of type want.
//
// Note the deliberate asymmetry with CanConnect: this reverse check matches
// exact types only, plus the special case that an agent output may feed a
// tools socket (sub-agents attach as tools). The coercion table does not
// apply on this path.
func CompatibleOutputSockets(def *NodeDefinition, want SocketType) []Parameter {
	var out []Parameter
	for _, p := range def.Parameters {
		if !p.CanActAsSource() {
			continue
		}
		st := p.EffectiveSocketType()
		if st == want || (st == SocketAgent && want == SocketTools) {
			out = append(out, p)
		}
	}
	return out
}
