package executor

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/SethBurkart123/covalt/pkg/flow"
)

// Coerce converts a DataValue to the target socket type, returning a new
// value. This is the runtime counterpart of the editor's connection gate:
// it performs the actual conversion for every pair the editor allows,
// plus message unpacking for AI plumbing. The untyped data spine passes
// everything through unchanged, in both directions.
func Coerce(v DataValue, target flow.SocketType) (DataValue, error) {
	if v.Type == target {
		return v, nil
	}
	if target == flow.SocketData || v.Type == flow.SocketData {
		return v, nil
	}

	switch {
	case v.Type == flow.SocketInt && target == flow.SocketFloat:
		return DataValue{Type: flow.SocketFloat, Value: toFloat(v.Value)}, nil
	case v.Type == flow.SocketInt && target == flow.SocketString:
		return DataValue{Type: flow.SocketString, Value: formatNumber(v.Value)}, nil
	case v.Type == flow.SocketFloat && target == flow.SocketString:
		return DataValue{Type: flow.SocketString, Value: formatNumber(v.Value)}, nil
	case v.Type == flow.SocketBoolean && target == flow.SocketString:
		if b, ok := v.Value.(bool); ok && b {
			return DataValue{Type: flow.SocketString, Value: "true"}, nil
		}
		return DataValue{Type: flow.SocketString, Value: "false"}, nil
	case v.Type == flow.SocketJSON && target == flow.SocketString:
		raw, err := json.Marshal(v.Value)
		if err != nil {
			return DataValue{}, fmt.Errorf("coerce json to string: %w", err)
		}
		return DataValue{Type: flow.SocketString, Value: string(raw)}, nil
	case v.Type == flow.SocketMessage && target == flow.SocketString:
		return DataValue{Type: flow.SocketString, Value: messageContent(v.Value)}, nil
	case v.Type == flow.SocketMessage && target == flow.SocketJSON:
		if m, ok := v.Value.(map[string]any); ok {
			return DataValue{Type: flow.SocketJSON, Value: m}, nil
		}
		return DataValue{Type: flow.SocketJSON, Value: map[string]any{"content": fmt.Sprint(v.Value)}}, nil
	}

	return DataValue{}, fmt.Errorf("cannot coerce %s to %s", v.Type, target)
}

// messageContent extracts the textual content of a message payload.
func messageContent(v any) string {
	if m, ok := v.(map[string]any); ok {
		if s, ok := m["content"].(string); ok {
			return s
		}
	}
	return fmt.Sprint(v)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}

func formatNumber(v any) string {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	case json.Number:
		return n.String()
	default:
		return fmt.Sprint(v)
	}
}

// Stringify renders any DataValue as a string for template interpolation,
// using the coercion path where one exists.
func Stringify(v DataValue) string {
	if s, ok := v.Value.(string); ok {
		return s
	}
	if cv, err := Coerce(v, flow.SocketString); err == nil {
		if s, ok := cv.Value.(string); ok {
			return s
		}
	}
	return fmt.Sprint(v.Value)
}
