package flow

import "testing"

func TestCanCoerce(t *testing.T) {
	cases := []struct {
		src, dst SocketType
		want     bool
	}{
		{SocketInt, SocketInt, true},
		{SocketAgent, SocketAgent, true},
		{SocketInt, SocketFloat, true},
		{SocketFloat, SocketInt, false},
		{SocketInt, SocketString, true},
		{SocketString, SocketInt, false},
		{SocketFloat, SocketString, true},
		{SocketString, SocketFloat, false},
		{SocketBoolean, SocketString, true},
		{SocketString, SocketBoolean, false},
		{SocketJSON, SocketString, true},
		{SocketString, SocketJSON, false},
		{SocketAgent, SocketTools, false},
		{SocketTools, SocketAgent, false},
		{SocketModel, SocketString, false},
		{SocketMessage, SocketString, false},
		// No transitive hop: boolean reaches string, never float.
		{SocketBoolean, SocketFloat, false},
	}
	for _, c := range cases {
		if got := CanCoerce(c.src, c.dst); got != c.want {
			t.Errorf("CanCoerce(%s, %s) = %v, want %v", c.src, c.dst, got, c.want)
		}
	}
}

func TestCanCoerceNeverBidirectional(t *testing.T) {
	for pair := range implicitCoercions {
		if implicitCoercions[[2]SocketType{pair[1], pair[0]}] {
			t.Errorf("coercion %s -> %s must not be bidirectional", pair[0], pair[1])
		}
	}
}

func TestCanConnectAcceptsTypesOverridesEverything(t *testing.T) {
	target := Parameter{
		ID:           "tools",
		Type:         SocketTools,
		Mode:         ModeInput,
		AcceptsTypes: []SocketType{SocketAgent},
	}
	if !CanConnect(SocketAgent, target) {
		t.Errorf("agent should connect into allow-listed tools socket")
	}
	// The allow-list replaces identity too: tools itself is not listed.
	if CanConnect(SocketTools, target) {
		t.Errorf("identity must not bypass an explicit allow-list")
	}
	if CanConnect(SocketString, target) {
		t.Errorf("string is not in the allow-list")
	}
}

func TestCanConnectFallsBackToCoercion(t *testing.T) {
	target := Parameter{ID: "v", Type: SocketString, Mode: ModeInput}
	if !CanConnect(SocketInt, target) {
		t.Errorf("int should coerce into a string socket")
	}
	if CanConnect(SocketMessage, target) {
		t.Errorf("message must not coerce into a string socket")
	}
}

func TestCanConnectUsesEffectiveSocketType(t *testing.T) {
	// Semantic type string, but the socket itself is typed json.
	target := Parameter{
		ID:     "payload",
		Type:   SocketString,
		Mode:   ModeInput,
		Socket: &SocketSpec{Type: SocketJSON},
	}
	if CanConnect(SocketInt, target) {
		t.Errorf("int does not coerce to json; socket type must win over parameter type")
	}
	if !CanConnect(SocketJSON, target) {
		t.Errorf("json identity against the socket type should connect")
	}
}

func TestSocketStyleFor(t *testing.T) {
	base := SocketStyleFor(SocketAgent, nil)
	if base.Color == "" || base.Shape == "" {
		t.Fatalf("agent style incomplete: %+v", base)
	}

	unknown := SocketStyleFor(SocketType("mystery"), nil)
	if unknown != defaultSocketStyle {
		t.Errorf("unknown type should get the default style, got %+v", unknown)
	}

	merged := SocketStyleFor(SocketAgent, &SocketStyle{Color: "#000000"})
	if merged.Color != "#000000" {
		t.Errorf("override color not applied: %+v", merged)
	}
	if merged.Shape != base.Shape {
		t.Errorf("unset override field must keep the registry shape")
	}
}
