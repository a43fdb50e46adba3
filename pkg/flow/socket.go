// Package flow implements the node-graph engine behind the agent flow
// editor: socket typing and coercion, node definitions with auto-expanding
// parameters, the mutable graph store with undo/redo, dependency traversal,
// and the execution run planner.
package flow

// SocketType identifies the kind of data a socket carries.
type SocketType string

const (
	SocketAgent   SocketType = "agent"
	SocketTools   SocketType = "tools"
	SocketModel   SocketType = "model"
	SocketInt     SocketType = "int"
	SocketFloat   SocketType = "float"
	SocketString  SocketType = "string"
	SocketBoolean SocketType = "boolean"
	SocketJSON    SocketType = "json"
	SocketMessage SocketType = "message"
	// SocketData is the untyped spine used by pass-through nodes (reroute,
	// merge) before a concrete type is known.
	SocketData SocketType = "data"
)

// SocketStyle is the visual metadata the canvas uses to draw a socket.
type SocketStyle struct {
	Color string `json:"color"`
	Shape string `json:"shape"`
}

// socketStyles is defined once at process start and never mutated.
var socketStyles = map[SocketType]SocketStyle{
	SocketAgent:   {Color: "#8b5cf6", Shape: "circle"},
	SocketTools:   {Color: "#f59e0b", Shape: "square"},
	SocketModel:   {Color: "#ec4899", Shape: "diamond"},
	SocketInt:     {Color: "#22c55e", Shape: "circle"},
	SocketFloat:   {Color: "#4ade80", Shape: "circle"},
	SocketString:  {Color: "#3b82f6", Shape: "circle"},
	SocketBoolean: {Color: "#ef4444", Shape: "circle"},
	SocketJSON:    {Color: "#eab308", Shape: "circle"},
	SocketMessage: {Color: "#06b6d4", Shape: "circle"},
	SocketData:    {Color: "#9ca3af", Shape: "circle"},
}

var defaultSocketStyle = SocketStyle{Color: "#9ca3af", Shape: "circle"}

// implicitCoercions gates editor-time connections between mismatched socket
// types. One hop only, never bidirectional: int widens to float, primitives
// render to string. Anything touching agent/tools/model never coerces.
var implicitCoercions = map[[2]SocketType]bool{
	{SocketInt, SocketFloat}:      true,
	{SocketInt, SocketString}:     true,
	{SocketFloat, SocketString}:   true,
	{SocketBoolean, SocketString}: true,
	{SocketJSON, SocketString}:    true,
}

// CanCoerce reports whether a value of type src may implicitly convert to
// dst. Identity is always allowed; everything else consults the table.
func CanCoerce(src, dst SocketType) bool {
	if src == dst {
		return true
	}
	return implicitCoercions[[2]SocketType{src, dst}]
}

// CanConnect reports whether a source socket of type src may connect into
// the target parameter. An explicit AcceptsTypes list on the target
// overrides every other rule, including identity and coercion; otherwise
// the source must match or coerce to the target's socket type.
func CanConnect(src SocketType, target Parameter) bool {
	if len(target.AcceptsTypes) > 0 {
		for _, t := range target.AcceptsTypes {
			if t == src {
				return true
			}
		}
		return false
	}
	return CanCoerce(src, target.EffectiveSocketType())
}

// SocketStyleFor returns the registry style for a socket type, merged with
// caller overrides. Unknown types get the neutral default style.
func SocketStyleFor(t SocketType, overrides *SocketStyle) SocketStyle {
	style, ok := socketStyles[t]
	if !ok {
		style = defaultSocketStyle
	}
	if overrides != nil {
		if overrides.Color != "" {
			style.Color = overrides.Color
		}
		if overrides.Shape != "" {
			style.Shape = overrides.Shape
		}
	}
	return style
}

// SocketTypes returns all registered socket type identifiers.
func SocketTypes() []SocketType {
	out := make([]SocketType, 0, len(socketStyles))
	for t := range socketStyles {
		out = append(out, t)
	}
	return out
}
