package flow

import (
	"errors"
	"testing"
)

func storeRegistry(t *testing.T) *DefinitionRegistry {
	t.Helper()
	reg := NewDefinitionRegistry()
	defs := []*NodeDefinition{
		{
			ID: "start", Name: "Start", Category: CategoryTrigger,
			Parameters: []Parameter{
				{ID: "out", Type: SocketAgent, Mode: ModeOutput,
					MaxConnections: 1, OnExceedMax: OverflowReplace},
			},
		},
		{
			ID: "number", Name: "Number", Category: CategoryData,
			Parameters: []Parameter{
				{ID: "value", Type: SocketFloat, Mode: ModeConstant, Default: 1.5},
				{ID: "out", Type: SocketFloat, Mode: ModeOutput},
			},
		},
		{
			ID: "display", Name: "Display", Category: CategoryUtility,
			Parameters: []Parameter{
				{ID: "in", Type: SocketFloat, Mode: ModeInput},
				{ID: "text", Type: SocketString, Mode: ModeInput},
			},
		},
		{
			ID: "single", Name: "Single", Category: CategoryUtility,
			Parameters: []Parameter{
				{ID: "in", Type: SocketFloat, Mode: ModeInput, MaxConnections: 1},
			},
		},
		{
			ID: "toolbox", Name: "Toolbox", Category: CategoryTools,
			Parameters: []Parameter{
				{ID: "out", Type: SocketTools, Mode: ModeOutput},
			},
		},
		{
			ID: "bot", Name: "Bot", Category: CategoryAI,
			Parameters: []Parameter{
				{ID: "tools", Type: SocketTools, Mode: ModeInput,
					AcceptsTypes: []SocketType{SocketTools, SocketAgent}},
				{ID: "self", Type: SocketAgent, Mode: ModeOutput},
			},
		},
		{
			ID: "pipe", Name: "Pipe", Category: CategoryTools,
			Parameters: []Parameter{
				{ID: "in", Type: SocketTools, Mode: ModeInput,
					Socket: &SocketSpec{Channel: ChannelFlow}},
				{ID: "out", Type: SocketTools, Mode: ModeOutput},
			},
		},
	}
	for _, d := range defs {
		if err := reg.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.ID, err)
		}
	}
	return reg
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(storeRegistry(t))
}

func mustAdd(t *testing.T, s *Store, typ string) FlowNode {
	t.Helper()
	n, err := s.AddNode(typ, Position{})
	if err != nil {
		t.Fatalf("AddNode(%s): %v", typ, err)
	}
	return n
}

func mustConnect(t *testing.T, s *Store, src, srcHandle, dst, dstHandle string) FlowEdge {
	t.Helper()
	e, ok := s.Connect(Connection{Source: src, SourceHandle: srcHandle, Target: dst, TargetHandle: dstHandle})
	if !ok {
		t.Fatalf("Connect(%s.%s -> %s.%s) rejected", src, srcHandle, dst, dstHandle)
	}
	return e
}

func TestAddNodeUnknownType(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddNode("nope", Position{})
	var unknownErr *UnknownNodeTypeError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("want UnknownNodeTypeError, got %v", err)
	}
	if unknownErr.Type != "nope" {
		t.Errorf("error type = %q", unknownErr.Type)
	}
	if len(s.Nodes()) != 0 {
		t.Errorf("failed AddNode must leave the store untouched")
	}
}

func TestAddNodeSeedsDefaults(t *testing.T) {
	s := newTestStore(t)
	n := mustAdd(t, s, "number")
	if got := n.Data["value"]; got != 1.5 {
		t.Errorf("constant default not seeded: %v", got)
	}
	if _, ok := n.Data["out"]; ok {
		t.Errorf("output parameters must not be seeded into data")
	}
}

func TestConnectRecordsChannelAndTypes(t *testing.T) {
	s := newTestStore(t)
	num := mustAdd(t, s, "number")
	disp := mustAdd(t, s, "display")

	e := mustConnect(t, s, num.ID, "out", disp.ID, "in")
	if e.Data.Channel != ChannelFlow {
		t.Errorf("plain data connection channel = %q, want flow", e.Data.Channel)
	}
	if e.Data.SourceType != SocketFloat || e.Data.TargetType != SocketFloat {
		t.Errorf("endpoint types = %s/%s, want float/float", e.Data.SourceType, e.Data.TargetType)
	}
}

func TestConnectToolsGetsLinkChannel(t *testing.T) {
	s := newTestStore(t)
	tb := mustAdd(t, s, "toolbox")
	bot := mustAdd(t, s, "bot")

	e := mustConnect(t, s, tb.ID, "out", bot.ID, "tools")
	if e.Data.Channel != ChannelLink {
		t.Errorf("tools connection channel = %q, want link", e.Data.Channel)
	}
}

func TestConnectAgentIntoToolsSocket(t *testing.T) {
	s := newTestStore(t)
	sub := mustAdd(t, s, "bot")
	parent := mustAdd(t, s, "bot")

	e := mustConnect(t, s, sub.ID, "self", parent.ID, "tools")
	if e.Data.Channel != ChannelLink {
		t.Errorf("sub-agent attachment channel = %q, want link", e.Data.Channel)
	}
}

func TestConnectSocketChannelOverrideWins(t *testing.T) {
	s := newTestStore(t)
	tb := mustAdd(t, s, "toolbox")
	pipe := mustAdd(t, s, "pipe")

	e := mustConnect(t, s, tb.ID, "out", pipe.ID, "in")
	if e.Data.Channel != ChannelFlow {
		t.Errorf("per-socket channel override ignored: got %q", e.Data.Channel)
	}
}

func TestConnectTypeMismatchRejected(t *testing.T) {
	s := newTestStore(t)
	tb := mustAdd(t, s, "toolbox")
	disp := mustAdd(t, s, "display")

	conn := Connection{Source: tb.ID, SourceHandle: "out", Target: disp.ID, TargetHandle: "in"}
	if s.IsValidConnection(conn) {
		t.Errorf("tools -> float must not validate")
	}
	if _, ok := s.Connect(conn); ok {
		t.Errorf("tools -> float must not connect")
	}
	if len(s.Edges()) != 0 {
		t.Errorf("rejected connection must not create an edge")
	}
}

func TestConnectCoercedTypes(t *testing.T) {
	s := newTestStore(t)
	num := mustAdd(t, s, "number")
	disp := mustAdd(t, s, "display")

	// float output into string input rides the coercion table.
	e := mustConnect(t, s, num.ID, "out", disp.ID, "text")
	if e.Data.SourceType != SocketFloat || e.Data.TargetType != SocketString {
		t.Errorf("coerced edge types = %s/%s", e.Data.SourceType, e.Data.TargetType)
	}
}

func TestConnectNormalizesDirection(t *testing.T) {
	s := newTestStore(t)
	num := mustAdd(t, s, "number")
	disp := mustAdd(t, s, "display")

	// Endpoints arrive in drag order: input first.
	e, ok := s.Connect(Connection{
		Source: disp.ID, SourceHandle: "in",
		Target: num.ID, TargetHandle: "out",
	})
	if !ok {
		t.Fatalf("reversed drag should normalize and connect")
	}
	if e.Source != num.ID || e.Target != disp.ID {
		t.Errorf("edge direction = %s -> %s, want %s -> %s", e.Source, e.Target, num.ID, disp.ID)
	}
}

func TestConnectRejectsDuplicateAndSelf(t *testing.T) {
	s := newTestStore(t)
	num := mustAdd(t, s, "number")
	disp := mustAdd(t, s, "display")

	mustConnect(t, s, num.ID, "out", disp.ID, "in")
	if _, ok := s.Connect(Connection{Source: num.ID, SourceHandle: "out", Target: disp.ID, TargetHandle: "in"}); ok {
		t.Errorf("duplicate edge must be rejected")
	}
	if _, ok := s.Connect(Connection{Source: num.ID, SourceHandle: "out", Target: num.ID, TargetHandle: "out"}); ok {
		t.Errorf("self connection must be rejected")
	}
}

func TestMaxConnectionsReplace(t *testing.T) {
	s := newTestStore(t)
	start := mustAdd(t, s, "start")
	bot1 := mustAdd(t, s, "bot")
	bot2 := mustAdd(t, s, "bot")

	mustConnect(t, s, start.ID, "out", bot1.ID, "tools")
	mustConnect(t, s, start.ID, "out", bot2.ID, "tools")

	edges := s.Edges()
	if len(edges) != 1 {
		t.Fatalf("replace policy must keep a single edge, got %d", len(edges))
	}
	if edges[0].Target != bot2.ID {
		t.Errorf("newest connection must survive; edge targets %s", edges[0].Target)
	}
}

func TestMaxConnectionsReject(t *testing.T) {
	s := newTestStore(t)
	a := mustAdd(t, s, "number")
	b := mustAdd(t, s, "number")
	sink := mustAdd(t, s, "single")

	mustConnect(t, s, a.ID, "out", sink.ID, "in")
	if _, ok := s.Connect(Connection{Source: b.ID, SourceHandle: "out", Target: sink.ID, TargetHandle: "in"}); ok {
		t.Fatalf("reject policy must drop the overflow edge")
	}
	if len(s.Edges()) != 1 {
		t.Errorf("overflow rejection must leave existing edges alone")
	}

	// A rejected connect leaves no history entry: one undo removes the
	// accepted edge, not a phantom step.
	if !s.Undo() {
		t.Fatalf("undo after accepted connect")
	}
	if len(s.Edges()) != 0 {
		t.Errorf("undo should remove the only accepted edge")
	}
}

func TestRemoveNodeCascadesEdges(t *testing.T) {
	s := newTestStore(t)
	num := mustAdd(t, s, "number")
	disp := mustAdd(t, s, "display")
	mustConnect(t, s, num.ID, "out", disp.ID, "in")

	if !s.RemoveNode(num.ID) {
		t.Fatalf("RemoveNode failed")
	}
	if len(s.Nodes()) != 1 || len(s.Edges()) != 0 {
		t.Errorf("node removal must cascade to its edges: %d nodes, %d edges",
			len(s.Nodes()), len(s.Edges()))
	}
	if s.RemoveNode(num.ID) {
		t.Errorf("removing a missing node must be a no-op")
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	s := newTestStore(t)
	n := mustAdd(t, s, "number")

	s.UpdateNodeData(n.ID, "value", 7.25)
	s.FlushHistory()

	if got, _ := s.Node(n.ID); got.Data["value"] != 7.25 {
		t.Fatalf("data update not applied: %v", got.Data["value"])
	}
	if !s.Undo() {
		t.Fatalf("undo data edit")
	}
	if got, _ := s.Node(n.ID); got.Data["value"] != 1.5 {
		t.Errorf("undo should restore the seeded default, got %v", got.Data["value"])
	}
	if !s.Redo() {
		t.Fatalf("redo data edit")
	}
	if got, _ := s.Node(n.ID); got.Data["value"] != 7.25 {
		t.Errorf("redo should restore the edit, got %v", got.Data["value"])
	}

	// Undo back to the empty document.
	if !s.Undo() || !s.Undo() {
		t.Fatalf("undo to empty")
	}
	if len(s.Nodes()) != 0 {
		t.Errorf("full undo should empty the store")
	}
	if s.Undo() {
		t.Errorf("undo on empty history must be a no-op")
	}
}

func TestDebouncedEditsCollapseToOneStep(t *testing.T) {
	s := newTestStore(t)
	n := mustAdd(t, s, "number")

	// A slider drag: many rapid writes.
	for _, v := range []float64{2, 3, 4, 5} {
		s.UpdateNodeData(n.ID, "value", v)
	}
	s.FlushHistory()

	if !s.Undo() {
		t.Fatalf("undo burst")
	}
	if got, _ := s.Node(n.ID); got.Data["value"] != 1.5 {
		t.Errorf("the whole burst must undo as one step back to %v, got %v", 1.5, got.Data["value"])
	}
}

func TestUndoCommitsPendingDebounce(t *testing.T) {
	s := newTestStore(t)
	n := mustAdd(t, s, "number")

	s.UpdateNodeData(n.ID, "value", 9.0)
	// No explicit flush: Undo must still see the pending burst.
	if !s.Undo() {
		t.Fatalf("undo with pending debounce")
	}
	if got, _ := s.Node(n.ID); got.Data["value"] != 1.5 {
		t.Errorf("pending edit must become the undone step, got %v", got.Data["value"])
	}
}

func TestPositionChangesAreNotHistory(t *testing.T) {
	s := newTestStore(t)
	n := mustAdd(t, s, "number")

	s.UpdateNodePosition(n.ID, Position{X: 100, Y: 200})
	if got, _ := s.Node(n.ID); got.Position.X != 100 {
		t.Fatalf("position not applied")
	}

	// The only history entry is the node add itself.
	if !s.Undo() {
		t.Fatalf("undo")
	}
	if len(s.Nodes()) != 0 {
		t.Errorf("undo skipped the move and should remove the node")
	}
}

func TestUndoRestoresByValue(t *testing.T) {
	s := newTestStore(t)
	n := mustAdd(t, s, "number")
	s.UpdateNodeData(n.ID, "tags", []any{"a"})
	s.FlushHistory()
	s.UpdateNodeData(n.ID, "tags", []any{"a", "b"})
	s.FlushHistory()

	if !s.Undo() {
		t.Fatalf("undo")
	}
	got, _ := s.Node(n.ID)
	tags, ok := got.Data["tags"].([]any)
	if !ok || len(tags) != 1 || tags[0] != "a" {
		t.Fatalf("restored value wrong: %v", got.Data["tags"])
	}

	// Mutating the returned copy must not poison history.
	tags[0] = "mutated"
	if !s.Redo() {
		t.Fatalf("redo")
	}
	if !s.Undo() {
		t.Fatalf("undo again")
	}
	again, _ := s.Node(n.ID)
	if again.Data["tags"].([]any)[0] != "a" {
		t.Errorf("history entries must be isolated from caller mutation")
	}
}

func TestRerouteInfersTypeFromFirstPeer(t *testing.T) {
	s := newTestStore(t)
	num := mustAdd(t, s, "number")
	rr := mustAdd(t, s, RerouteType)

	mustConnect(t, s, num.ID, "out", rr.ID, RerouteInputHandle)

	got, _ := s.Node(rr.ID)
	if inferred, ok := got.InferredType(); !ok || inferred != SocketFloat {
		t.Fatalf("reroute should infer float from its peer, got %v %v", inferred, ok)
	}

	// Typed now: a tools source no longer fits.
	tb := mustAdd(t, s, "toolbox")
	if s.IsValidConnection(Connection{Source: tb.ID, SourceHandle: "out", Target: rr.ID, TargetHandle: RerouteInputHandle}) {
		t.Errorf("typed reroute must enforce its inferred type")
	}

	// Pass-through out the other side still works, including coercion.
	disp := mustAdd(t, s, "display")
	mustConnect(t, s, rr.ID, RerouteOutputHandle, disp.ID, "text")
}

func TestUnsetRerouteOutputIsProvisionallyValid(t *testing.T) {
	s := newTestStore(t)
	rr := mustAdd(t, s, RerouteType)
	disp := mustAdd(t, s, "display")

	conn := Connection{Source: rr.ID, SourceHandle: RerouteOutputHandle, Target: disp.ID, TargetHandle: "in"}
	if !s.IsValidConnection(conn) {
		t.Fatalf("unset reroute output should be connectable anywhere")
	}
	mustConnect(t, s, rr.ID, RerouteOutputHandle, disp.ID, "in")

	got, _ := s.Node(rr.ID)
	if inferred, ok := got.InferredType(); !ok || inferred != SocketFloat {
		t.Errorf("reroute should adopt the target's type, got %v %v", inferred, ok)
	}
}

func TestInsertRerouteOnEdge(t *testing.T) {
	s := newTestStore(t)
	tb := mustAdd(t, s, "toolbox")
	bot := mustAdd(t, s, "bot")
	e := mustConnect(t, s, tb.ID, "out", bot.ID, "tools")

	rr, ok := s.InsertRerouteOnEdge(e.ID, Position{X: 50})
	if !ok {
		t.Fatalf("InsertRerouteOnEdge failed")
	}
	if !rr.IsReroute() {
		t.Fatalf("inserted node type = %q", rr.Type)
	}
	if inferred, _ := rr.InferredType(); inferred != SocketTools {
		t.Errorf("reroute should adopt the split edge's type, got %s", inferred)
	}

	edges := s.Edges()
	if len(edges) != 2 {
		t.Fatalf("split should yield two edges, got %d", len(edges))
	}
	for _, e := range edges {
		if e.Data.Channel != ChannelLink {
			t.Errorf("split edges must keep the original channel, got %q", e.Data.Channel)
		}
	}

	// One undo restores the single original edge.
	if !s.Undo() {
		t.Fatalf("undo split")
	}
	if len(s.Edges()) != 1 || len(s.Nodes()) != 2 {
		t.Errorf("undo should remove the reroute and restore the edge")
	}
}

func TestLoadGraphRejectsInvalidChannel(t *testing.T) {
	s := newTestStore(t)
	g := Graph{
		Nodes: []FlowNode{{ID: "a", Type: "number"}, {ID: "b", Type: "display"}},
		Edges: []FlowEdge{{ID: "e1", Source: "a", SourceHandle: "out", Target: "b", TargetHandle: "in"}},
	}
	err := s.LoadGraph(g)
	var chErr *ChannelError
	if !errors.As(err, &chErr) {
		t.Fatalf("want ChannelError, got %v", err)
	}
	if chErr.EdgeID != "e1" {
		t.Errorf("error edge id = %q", chErr.EdgeID)
	}
	if len(s.Nodes()) != 0 {
		t.Errorf("failed load must leave the store untouched")
	}
}

func TestLoadGraphEnriches(t *testing.T) {
	s := newTestStore(t)
	g := Graph{
		Nodes: []FlowNode{
			{ID: "a", Type: "number"},
			{ID: "b", Type: "display"},
		},
		Edges: []FlowEdge{
			// Stale cached types are re-derived from definitions.
			{ID: "e1", Source: "a", SourceHandle: "out", Target: "b", TargetHandle: "in",
				Data: EdgeData{Channel: ChannelFlow, SourceType: SocketString}},
			// Duplicate signature is dropped.
			{ID: "e2", Source: "a", SourceHandle: "out", Target: "b", TargetHandle: "in",
				Data: EdgeData{Channel: ChannelFlow}},
			// Dangling endpoint is pruned.
			{ID: "e3", Source: "a", SourceHandle: "out", Target: "ghost", TargetHandle: "in",
				Data: EdgeData{Channel: ChannelFlow}},
		},
	}
	if err := s.LoadGraph(g); err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}

	edges := s.Edges()
	if len(edges) != 1 {
		t.Fatalf("enrichment should keep exactly one edge, got %d", len(edges))
	}
	if edges[0].Data.SourceType != SocketFloat {
		t.Errorf("source type should be re-derived to float, got %s", edges[0].Data.SourceType)
	}
}

func TestLoadGraphSkipHistory(t *testing.T) {
	s := newTestStore(t)
	g := Graph{Nodes: []FlowNode{{ID: "a", Type: "number"}}}

	if err := s.LoadGraph(g, SkipHistory()); err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	if s.CanUndo() {
		t.Errorf("hydration must not create an undo point")
	}

	// A plain load afterwards is still undoable.
	if err := s.LoadGraph(Graph{}); err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	if !s.CanUndo() {
		t.Fatalf("plain load should be undoable")
	}
	if !s.Undo() {
		t.Fatalf("undo")
	}
	if len(s.Nodes()) != 1 {
		t.Errorf("undo should restore the hydrated graph, got %d nodes", len(s.Nodes()))
	}
}

func TestClearGraphSkipHistory(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, "number")

	s.ClearGraph(SkipHistory())
	if len(s.Nodes()) != 0 {
		t.Fatalf("clear should empty the document")
	}
	// Only the AddNode snapshot remains on the stack.
	if !s.Undo() {
		t.Fatalf("undo")
	}
	if len(s.Nodes()) != 0 {
		t.Errorf("undo should step past the unrecorded clear to the pre-add state, got %d nodes", len(s.Nodes()))
	}
}

func TestUndoDropsStaleDebouncedCommit(t *testing.T) {
	s := newTestStore(t)
	n := mustAdd(t, s, "number")
	s.UpdateNodeData(n.ID, "value", 3.5)

	// The debounce timer wins the race: it takes the pending snapshot
	// but has not committed it yet when Undo runs.
	snap, gen, ok := s.debounce.Take()
	if !ok {
		t.Fatalf("expected a pending snapshot")
	}
	if !s.Undo() {
		t.Fatalf("undo")
	}
	if len(s.Nodes()) != 0 {
		t.Fatalf("undo should restore the empty document, got %d nodes", len(s.Nodes()))
	}

	// The late commit lands after the restore and must be dropped.
	s.commitDebounced(snap, gen)
	if s.CanUndo() {
		t.Errorf("stale commit must not create an undo point")
	}
	if !s.CanRedo() {
		t.Errorf("stale commit must not clear the redo stack")
	}
	if !s.Redo() {
		t.Fatalf("redo")
	}
	if got, _ := s.Node(n.ID); got.Data["value"] != 3.5 {
		t.Errorf("redo should restore the edited node, value = %v", got.Data["value"])
	}
}

func TestCanUndoDoesNotSplitEditBurst(t *testing.T) {
	s := newTestStore(t)
	n := mustAdd(t, s, "number")

	s.UpdateNodeData(n.ID, "value", 2.0)
	if !s.CanUndo() {
		t.Fatalf("pending debounced edit must count as undoable")
	}
	s.UpdateNodeData(n.ID, "value", 3.0)
	s.FlushHistory()

	// One undo reverts the whole burst, the mid-burst CanUndo poll
	// notwithstanding.
	if !s.Undo() {
		t.Fatalf("undo burst")
	}
	got, _ := s.Node(n.ID)
	if got.Data["value"] != 1.5 {
		t.Errorf("burst should revert as one step to the default, value = %v", got.Data["value"])
	}
}

func TestPickFlow(t *testing.T) {
	s := newTestStore(t)
	num := mustAdd(t, s, "number")
	tb := mustAdd(t, s, "toolbox")
	disp := mustAdd(t, s, "display")

	if !s.StartPick(disp.ID, "in") {
		t.Fatalf("StartPick on an input socket should succeed")
	}
	if s.StartPick(num.ID, "out") {
		t.Errorf("StartPick must refuse output sockets")
	}

	if !s.IsPickableNode(num.ID) {
		t.Errorf("number offers a float output and must be pickable")
	}
	if s.IsPickableNode(tb.ID) {
		t.Errorf("toolbox has no float output and must not be pickable")
	}
	if s.IsPickableNode(disp.ID) {
		t.Errorf("the pick origin itself is never pickable")
	}

	e, ok := s.CompletePick(num.ID)
	if !ok {
		t.Fatalf("CompletePick failed")
	}
	if e.Source != num.ID || e.Target != disp.ID || e.TargetHandle != "in" {
		t.Errorf("picked edge endpoints wrong: %+v", e)
	}
	if s.Pick().Active {
		t.Errorf("pick state must clear after completion")
	}
}

func TestPickCancelledWhenOriginRemoved(t *testing.T) {
	s := newTestStore(t)
	disp := mustAdd(t, s, "display")
	if !s.StartPick(disp.ID, "in") {
		t.Fatalf("StartPick")
	}
	s.RemoveNode(disp.ID)
	if s.Pick().Active {
		t.Errorf("removing the pick origin must cancel the pick")
	}
}

func TestAutoExpandSeesLiveConnections(t *testing.T) {
	reg := storeRegistry(t)
	if err := reg.Register(&NodeDefinition{
		ID: "merge", Name: "Merge", Category: CategoryFlow,
		Parameters: []Parameter{
			{ID: "in", Type: SocketData, Label: "Input", Mode: ModeInput,
				AutoExpand: &AutoExpand{Min: 2}},
			{ID: "out", Type: SocketData, Label: "Out", Mode: ModeOutput},
		},
	}); err != nil {
		t.Fatalf("register merge: %v", err)
	}
	s := NewStore(reg)

	m := mustAdd(t, s, "merge")
	a := mustAdd(t, s, "number")
	b := mustAdd(t, s, "number")

	params, ok := s.NodeParameters(m.ID)
	if !ok {
		t.Fatalf("NodeParameters")
	}
	if got := len(params); got != 3 { // in, in_2, out
		t.Fatalf("unconnected merge should present 3 params, got %d", got)
	}

	mustConnect(t, s, a.ID, "out", m.ID, "in")
	mustConnect(t, s, b.ID, "out", m.ID, "in_2")

	params, _ = s.NodeParameters(m.ID)
	if got := len(params); got != 4 { // in, in_2, in_3, out
		t.Errorf("fully connected merge should grow a free slot, got %d params", got)
	}
}

func TestSubscribeNotifies(t *testing.T) {
	s := newTestStore(t)
	var calls int
	unsub := s.Subscribe(func() { calls++ })

	mustAdd(t, s, "number")
	if calls == 0 {
		t.Fatalf("observer not called on mutation")
	}

	seen := calls
	unsub()
	mustAdd(t, s, "number")
	if calls != seen {
		t.Errorf("unsubscribed observer still called")
	}
}
