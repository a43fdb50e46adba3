package flow

import (
	"fmt"
	"strconv"
	"strings"
)

// ParamMode controls how a parameter is presented on the node.
type ParamMode string

const (
	// ModeConstant renders a control only, no socket.
	ModeConstant ParamMode = "constant"
	// ModeInput and ModeOutput render a pure socket.
	ModeInput  ParamMode = "input"
	ModeOutput ParamMode = "output"
	// ModeHybrid renders a control with an optional input socket; the
	// control is hidden while the socket is connected.
	ModeHybrid ParamMode = "hybrid"
)

// SocketSide places a socket on the left (input) or right (output) edge.
type SocketSide string

const (
	SideInput  SocketSide = "input"
	SideOutput SocketSide = "output"
)

// OverflowPolicy decides what happens when a handle at MaxConnections
// receives another connection.
type OverflowPolicy string

const (
	// OverflowReject drops the new edge silently.
	OverflowReject OverflowPolicy = "reject"
	// OverflowReplace removes the oldest edge from the handle first.
	OverflowReplace OverflowPolicy = "replace"
)

// SocketSpec configures the socket half of a parameter.
type SocketSpec struct {
	Type          SocketType `json:"type,omitempty" yaml:"type,omitempty"`
	Side          SocketSide `json:"side,omitempty" yaml:"side,omitempty"`
	Bidirectional bool       `json:"bidirectional,omitempty" yaml:"bidirectional,omitempty"`
	// Channel forces every edge on this socket onto a channel, overriding
	// the tools-involving default.
	Channel Channel `json:"channel,omitempty" yaml:"channel,omitempty"`
}

// AutoExpand declares a parameter that presents a variable number of
// indexed socket instances driven by live connections.
type AutoExpand struct {
	Min int `json:"min,omitempty" yaml:"min,omitempty"` // clamped to >= 1
	Max int `json:"max,omitempty" yaml:"max,omitempty"` // 0 = unbounded
}

// NumberRange constrains a numeric constant/hybrid control.
type NumberRange struct {
	Min  *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max  *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Step float64  `json:"step,omitempty" yaml:"step,omitempty"`
}

// Parameter describes one named slot on a node type.
type Parameter struct {
	ID      string       `json:"id" yaml:"id"`
	Type    SocketType   `json:"type" yaml:"type"`
	Label   string       `json:"label" yaml:"label"`
	Mode    ParamMode    `json:"mode" yaml:"mode"`
	Default any          `json:"default,omitempty" yaml:"default,omitempty"`
	Range   *NumberRange `json:"range,omitempty" yaml:"range,omitempty"`
	Options []string     `json:"options,omitempty" yaml:"options,omitempty"`
	Socket  *SocketSpec  `json:"socket,omitempty" yaml:"socket,omitempty"`
	// AcceptsTypes, when set, is the complete allow-list for incoming
	// connections and overrides the coercion rules.
	AcceptsTypes   []SocketType   `json:"acceptsTypes,omitempty" yaml:"acceptsTypes,omitempty"`
	MaxConnections int            `json:"maxConnections,omitempty" yaml:"maxConnections,omitempty"` // 0 = unlimited
	OnExceedMax    OverflowPolicy `json:"onExceedMax,omitempty" yaml:"onExceedMax,omitempty"`
	AutoExpand     *AutoExpand    `json:"autoExpand,omitempty" yaml:"autoExpand,omitempty"`
}

// EffectiveSocketType returns the socket's wire type: the explicit socket
// type when configured, else the parameter's semantic type.
func (p Parameter) EffectiveSocketType() SocketType {
	if p.Socket != nil && p.Socket.Type != "" {
		return p.Socket.Type
	}
	return p.Type
}

// side returns where the socket sits, defaulting by mode.
func (p Parameter) side() SocketSide {
	if p.Socket != nil && p.Socket.Side != "" {
		return p.Socket.Side
	}
	if p.Mode == ModeOutput {
		return SideOutput
	}
	return SideInput
}

// CanActAsSource reports whether edges may leave this parameter's socket.
func (p Parameter) CanActAsSource() bool {
	if p.Mode == ModeConstant {
		return false
	}
	if p.Socket != nil && p.Socket.Bidirectional {
		return true
	}
	return p.side() == SideOutput
}

// CanActAsTarget reports whether edges may arrive at this parameter's socket.
func (p Parameter) CanActAsTarget() bool {
	if p.Mode == ModeConstant {
		return false
	}
	if p.Socket != nil && p.Socket.Bidirectional {
		return true
	}
	return p.side() == SideInput
}

// HasSocket reports whether the parameter renders a socket at all.
func (p Parameter) HasSocket() bool {
	return p.Mode != ModeConstant
}

// HandleID returns the handle identifier for the n-th instance (1-based) of
// this parameter. The first instance uses the bare parameter id; later
// instances append "_<n>".
func (p Parameter) HandleID(instance int) string {
	if instance <= 1 {
		return p.ID
	}
	return fmt.Sprintf("%s_%d", p.ID, instance)
}

// instanceLabel returns the display label for the n-th instance.
func (p Parameter) instanceLabel(instance int) string {
	if instance <= 1 {
		return p.Label
	}
	return fmt.Sprintf("%s %d", p.Label, instance)
}

// handleInstance parses a handle id against this parameter, returning the
// 1-based instance index, or 0 when the handle does not belong to it.
func (p Parameter) handleInstance(handleID string) int {
	if handleID == p.ID {
		return 1
	}
	rest, ok := strings.CutPrefix(handleID, p.ID+"_")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 2 {
		return 0
	}
	return n
}

// ResolveNodeParameters expands a definition's parameter list into the
// concrete, indexed handles a node instance presents, given the set of
// currently connected handle ids. Non-expanding parameters pass through
// unchanged. For an auto-expanding parameter the instance count is the
// larger of the configured minimum and the highest connected index, plus
// one free slot when all instances are occupied, clamped to the declared
// maximum.
func ResolveNodeParameters(def *NodeDefinition, connected map[string]bool) []Parameter {
	var out []Parameter
	for _, p := range def.Parameters {
		if p.AutoExpand == nil {
			out = append(out, p)
			continue
		}

		min := p.AutoExpand.Min
		if min < 1 {
			min = 1
		}
		max := p.AutoExpand.Max

		highest := 0
		for handle := range connected {
			if n := p.handleInstance(handle); n > highest {
				highest = n
			}
		}

		count := min
		if highest > count {
			count = highest
		}
		allConnected := true
		for i := 1; i <= count; i++ {
			if !connected[p.HandleID(i)] {
				allConnected = false
				break
			}
		}
		if allConnected && (max == 0 || count < max) {
			count++
		}
		if max > 0 && count > max {
			count = max
		}

		for i := 1; i <= count; i++ {
			inst := p
			inst.ID = p.HandleID(i)
			inst.Label = p.instanceLabel(i)
			out = append(out, inst)
		}
	}
	return out
}

// ResolveParameterForHandle maps a handle id back to its parameter. Exact
// ids win; otherwise the "_<n>" suffix is matched against an auto-expanding
// parameter and a synthesized instance is returned. The second result is
// false when the handle belongs to no parameter.
func ResolveParameterForHandle(def *NodeDefinition, handleID string) (Parameter, bool) {
	if def == nil {
		return Parameter{}, false
	}
	for _, p := range def.Parameters {
		if p.ID == handleID {
			return p, true
		}
	}
	for _, p := range def.Parameters {
		if p.AutoExpand == nil {
			continue
		}
		if n := p.handleInstance(handleID); n > 0 {
			inst := p
			inst.ID = handleID
			inst.Label = p.instanceLabel(n)
			return inst, true
		}
	}
	return Parameter{}, false
}
