package executor

import (
	"testing"

	"github.com/SethBurkart123/covalt/pkg/flow"
)

func TestCoerceConversions(t *testing.T) {
	cases := []struct {
		name   string
		in     DataValue
		target flow.SocketType
		want   any
	}{
		{"identity", DataValue{flow.SocketInt, 3}, flow.SocketInt, 3},
		{"int to float", DataValue{flow.SocketInt, 3}, flow.SocketFloat, 3.0},
		{"int to string", DataValue{flow.SocketInt, 42}, flow.SocketString, "42"},
		{"float to string", DataValue{flow.SocketFloat, 2.5}, flow.SocketString, "2.5"},
		{"bool true to string", DataValue{flow.SocketBoolean, true}, flow.SocketString, "true"},
		{"bool false to string", DataValue{flow.SocketBoolean, false}, flow.SocketString, "false"},
		{"json to string", DataValue{flow.SocketJSON, map[string]any{"a": 1.0}}, flow.SocketString, `{"a":1}`},
		{"message to string", DataValue{flow.SocketMessage, map[string]any{"role": "user", "content": "hi"}}, flow.SocketString, "hi"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Coerce(c.in, c.target)
			if err != nil {
				t.Fatalf("Coerce: %v", err)
			}
			if got.Type != c.target {
				t.Errorf("type = %s, want %s", got.Type, c.target)
			}
			if got.Value != c.want {
				t.Errorf("value = %#v, want %#v", got.Value, c.want)
			}
		})
	}
}

func TestCoerceDataSpinePassesThrough(t *testing.T) {
	v := DataValue{Type: flow.SocketTools, Value: "anything"}
	got, err := Coerce(v, flow.SocketData)
	if err != nil || got != v {
		t.Errorf("typed value into data spine should pass through: %v %v", got, err)
	}

	v = DataValue{Type: flow.SocketData, Value: 7}
	got, err = Coerce(v, flow.SocketInt)
	if err != nil || got != v {
		t.Errorf("data spine value into typed port should pass through: %v %v", got, err)
	}
}

func TestCoerceMessageToJSON(t *testing.T) {
	msg := map[string]any{"role": "assistant", "content": "done"}
	got, err := Coerce(DataValue{flow.SocketMessage, msg}, flow.SocketJSON)
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	m, ok := got.Value.(map[string]any)
	if !ok || m["content"] != "done" {
		t.Errorf("message payload not preserved: %#v", got.Value)
	}
}

func TestCoerceNoPath(t *testing.T) {
	if _, err := Coerce(DataValue{flow.SocketString, "x"}, flow.SocketInt); err == nil {
		t.Errorf("string to int has no coercion path and must fail")
	}
	if _, err := Coerce(DataValue{flow.SocketTools, nil}, flow.SocketAgent); err == nil {
		t.Errorf("tools to agent must fail")
	}
}

func TestStringify(t *testing.T) {
	cases := []struct {
		in   DataValue
		want string
	}{
		{DataValue{flow.SocketString, "plain"}, "plain"},
		{DataValue{flow.SocketInt, 5}, "5"},
		{DataValue{flow.SocketMessage, map[string]any{"content": "hello"}}, "hello"},
	}
	for _, c := range cases {
		if got := Stringify(c.in); got != c.want {
			t.Errorf("Stringify(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
