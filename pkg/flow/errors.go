package flow

import "fmt"

// UnknownNodeTypeError is returned when an operation references a node type
// with no registered definition. It is a construction error: the triggering
// operation aborts and the store is left unchanged.
type UnknownNodeTypeError struct {
	Type string
}

func (e *UnknownNodeTypeError) Error() string {
	return fmt.Sprintf("unknown node type %q", e.Type)
}

// ChannelError is returned during edge enrichment when an edge lacks a
// valid channel. An edge without one is a construction error, never a
// runtime default.
type ChannelError struct {
	EdgeID  string
	Channel Channel
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("edge %q has invalid channel %q", e.EdgeID, e.Channel)
}
