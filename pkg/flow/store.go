package flow

import (
	"sort"
	"sync"
)

// Store is the mutable, observable graph document behind one editor
// session. All mutations are transactional with respect to history: a
// snapshot of the prior state is pushed before the change, so undo/redo
// always restores a coherent graph. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	defs *DefinitionRegistry

	nodes []FlowNode
	edges []FlowEdge

	selected map[string]bool
	hist     history
	debounce *snapshotDebouncer

	// restoring suppresses history writes while a snapshot is being
	// applied, so restore-driven mutations never record themselves.
	restoring bool

	pick PickState

	observers    map[int]func()
	nextObserver int
}

// PickState tracks an in-progress socket pick: the user clicked an input
// socket and is choosing which node's output should feed it.
type PickState struct {
	Active       bool
	OriginNode   string
	OriginHandle string
	Want         SocketType
}

// NewStore creates an empty store over the given definition registry.
func NewStore(defs *DefinitionRegistry) *Store {
	s := &Store{
		defs:      defs,
		selected:  make(map[string]bool),
		observers: make(map[int]func()),
	}
	s.debounce = newSnapshotDebouncer(s.commitDebounced)
	return s
}

// Definitions returns the registry the store resolves against.
func (s *Store) Definitions() *DefinitionRegistry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defs
}

// ReplaceDefinitions swaps the definition registry, e.g. after a catalog
// reload. Existing nodes keep their data; parameter resolution picks up
// the new definitions on the next read.
func (s *Store) ReplaceDefinitions(defs *DefinitionRegistry) {
	s.mu.Lock()
	s.defs = defs
	s.mu.Unlock()
	s.notify()
}

// Subscribe registers an observer called after every applied mutation.
// The returned function unsubscribes.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Nodes returns a deep copy of the current node list.
func (s *Store) Nodes() []FlowNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneNodes(s.nodes)
}

// Edges returns a copy of the current edge list.
func (s *Store) Edges() []FlowEdge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEdges(s.edges)
}

// Node returns a deep copy of one node.
func (s *Store) Node(id string) (FlowNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nodeLocked(id)
	if n == nil {
		return FlowNode{}, false
	}
	c := *n
	c.Data = cloneDataBag(n.Data)
	return c, true
}

// Graph returns the persisted form of the current state.
func (s *Store) Graph() Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Graph{Nodes: cloneNodes(s.nodes), Edges: cloneEdges(s.edges)}
}

func (s *Store) nodeLocked(id string) *FlowNode {
	for i := range s.nodes {
		if s.nodes[i].ID == id {
			return &s.nodes[i]
		}
	}
	return nil
}

// pushHistoryLocked records the current state as an undo point. Any
// pending debounced snapshot is committed first so entries stay ordered.
func (s *Store) pushHistoryLocked() {
	if s.restoring {
		return
	}
	s.flushPendingLocked()
	s.hist.push(cloneSnapshot(s.nodes, s.edges))
}

func (s *Store) flushPendingLocked() {
	if snap, _, ok := s.debounce.Take(); ok {
		s.hist.push(snap)
	}
}

// commitDebounced is the debouncer's commit callback; it runs from the
// timer goroutine without the store lock held. A snapshot taken before a
// history restore cancelled the debouncer carries a stale generation and
// is dropped, so it can never land on top of the restored state.
func (s *Store) commitDebounced(snap snapshot, gen uint64) {
	s.mu.Lock()
	if gen == s.debounce.Generation() {
		s.hist.push(snap)
	}
	s.mu.Unlock()
}

// FlushHistory commits any pending debounced snapshot immediately. The
// UI calls this on blur/drag-end so the burst becomes undoable right away.
func (s *Store) FlushHistory() {
	s.mu.Lock()
	s.flushPendingLocked()
	s.mu.Unlock()
}

// CanUndo reports whether an undo point exists. A pending debounced edit
// counts, but is left pending so polling never splits a burst into
// multiple undo steps.
func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.canUndo() || s.debounce.Pending()
}

// CanRedo reports whether a redo point exists.
func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.canRedo()
}

// Undo restores the most recent history entry. Pending debounced edits
// are committed first so they undo as their own step. Returns false when
// there is nothing to undo.
func (s *Store) Undo() bool {
	s.mu.Lock()
	s.flushPendingLocked()
	current := cloneSnapshot(s.nodes, s.edges)
	prev, ok := s.hist.undo(current)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.restoreLocked(prev)
	s.mu.Unlock()
	s.notify()
	return true
}

// Redo re-applies the most recently undone entry.
func (s *Store) Redo() bool {
	s.mu.Lock()
	s.flushPendingLocked()
	current := cloneSnapshot(s.nodes, s.edges)
	next, ok := s.hist.redo(current)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.restoreLocked(next)
	s.mu.Unlock()
	s.notify()
	return true
}

func (s *Store) restoreLocked(snap snapshot) {
	s.restoring = true
	s.debounce.Cancel()
	s.nodes = cloneNodes(snap.nodes)
	s.edges = cloneEdges(snap.edges)
	// Selection and pick state may reference nodes that no longer exist.
	for id := range s.selected {
		if s.nodeLocked(id) == nil {
			delete(s.selected, id)
		}
	}
	if s.pick.Active && s.nodeLocked(s.pick.OriginNode) == nil {
		s.pick = PickState{}
	}
	s.restoring = false
}

// AddNode instantiates a node of the given type at a canvas position.
// Constant and hybrid parameter defaults are seeded into the data bag.
func (s *Store) AddNode(nodeType string, pos Position) (FlowNode, error) {
	def, ok := s.defs.Get(nodeType)
	if !ok && nodeType != RerouteType {
		return FlowNode{}, &UnknownNodeTypeError{Type: nodeType}
	}

	node := FlowNode{
		ID:       NewNodeID(),
		Type:     nodeType,
		Position: pos,
		Data:     make(map[string]any),
	}
	if def != nil {
		for _, p := range def.Parameters {
			if p.Default == nil {
				continue
			}
			if p.Mode == ModeConstant || p.Mode == ModeHybrid {
				node.Data[p.ID] = cloneValue(p.Default)
			}
		}
	}

	s.mu.Lock()
	s.pushHistoryLocked()
	s.nodes = append(s.nodes, node)
	s.mu.Unlock()
	s.notify()

	out := node
	out.Data = cloneDataBag(node.Data)
	return out, nil
}

// RemoveNode deletes a node and every edge touching it. Removing the
// pick origin cancels the pick. Unknown ids are a no-op.
func (s *Store) RemoveNode(id string) bool {
	s.mu.Lock()
	if s.nodeLocked(id) == nil {
		s.mu.Unlock()
		return false
	}
	s.pushHistoryLocked()

	kept := s.nodes[:0]
	for _, n := range s.nodes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	s.nodes = kept

	keptEdges := s.edges[:0]
	for _, e := range s.edges {
		if e.Source != id && e.Target != id {
			keptEdges = append(keptEdges, e)
		}
	}
	s.edges = keptEdges

	delete(s.selected, id)
	if s.pick.Active && s.pick.OriginNode == id {
		s.pick = PickState{}
	}
	s.mu.Unlock()
	s.notify()
	return true
}

// UpdateNodePosition moves a node. Position changes are deliberately not
// recorded in history.
func (s *Store) UpdateNodePosition(id string, pos Position) {
	s.mu.Lock()
	n := s.nodeLocked(id)
	if n == nil {
		s.mu.Unlock()
		return
	}
	n.Position = pos
	s.mu.Unlock()
	s.notify()
}

// UpdateNodeData sets one data-bag value. History recording is debounced:
// a burst of edits collapses into a single undo step whose snapshot is
// the state before the first edit in the burst.
func (s *Store) UpdateNodeData(id, key string, value any) {
	s.mu.Lock()
	n := s.nodeLocked(id)
	if n == nil || s.restoring {
		s.mu.Unlock()
		return
	}
	pre := cloneSnapshot(s.nodes, s.edges)
	if n.Data == nil {
		n.Data = make(map[string]any)
	}
	n.Data[key] = cloneValue(value)
	s.mu.Unlock()

	s.debounce.Touch(pre)
	s.notify()
}

// SetSelected replaces the selection.
func (s *Store) SetSelected(ids ...string) {
	s.mu.Lock()
	s.selected = make(map[string]bool, len(ids))
	for _, id := range ids {
		if s.nodeLocked(id) != nil {
			s.selected[id] = true
		}
	}
	s.mu.Unlock()
	s.notify()
}

// SelectedNodes returns the selected node ids, sorted.
func (s *Store) SelectedNodes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.selected))
	for id := range s.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ConnectedHandles returns the set of handle ids on a node that currently
// carry at least one edge, in either direction. This drives auto-expand
// resolution.
func (s *Store) ConnectedHandles(nodeID string) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectedHandlesLocked(nodeID)
}

func (s *Store) connectedHandlesLocked(nodeID string) map[string]bool {
	out := make(map[string]bool)
	for _, e := range s.edges {
		if e.Source == nodeID {
			out[e.SourceHandle] = true
		}
		if e.Target == nodeID {
			out[e.TargetHandle] = true
		}
	}
	return out
}

// GetConnectedInputs returns, per input handle, the edges feeding it.
func (s *Store) GetConnectedInputs(nodeID string) map[string][]FlowEdge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]FlowEdge)
	for _, e := range s.edges {
		if e.Target == nodeID {
			out[e.TargetHandle] = append(out[e.TargetHandle], e)
		}
	}
	return out
}

// NodeParameters returns the concrete parameter list a node instance
// presents right now, with auto-expanding parameters resolved against the
// node's live connections.
func (s *Store) NodeParameters(nodeID string) ([]Parameter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nodeLocked(nodeID)
	if n == nil {
		return nil, false
	}
	def, ok := s.defs.Get(n.Type)
	if !ok {
		return nil, false
	}
	return ResolveNodeParameters(def, s.connectedHandlesLocked(nodeID)), true
}

// resolvedEndpoint is one side of a connection after handle resolution.
type resolvedEndpoint struct {
	node    *FlowNode
	param   Parameter
	untyped bool // unset reroute socket, adopts a type on connect
}

// Reroute nodes expose exactly these two handles.
const (
	RerouteInputHandle  = "input"
	RerouteOutputHandle = "output"
)

// endpointLocked resolves a node+handle pair to its parameter. Reroute
// sockets are synthesized from the instance's inferred type rather than
// the static definition.
func (s *Store) endpointLocked(nodeID, handle string) (resolvedEndpoint, bool) {
	n := s.nodeLocked(nodeID)
	if n == nil {
		return resolvedEndpoint{}, false
	}
	if n.IsReroute() {
		t, typed := n.InferredType()
		if !typed {
			t = SocketData
		}
		switch handle {
		case RerouteInputHandle:
			return resolvedEndpoint{
				node:    n,
				param:   Parameter{ID: handle, Type: t, Mode: ModeInput},
				untyped: !typed,
			}, true
		case RerouteOutputHandle:
			return resolvedEndpoint{
				node:    n,
				param:   Parameter{ID: handle, Type: t, Mode: ModeOutput},
				untyped: !typed,
			}, true
		}
		return resolvedEndpoint{}, false
	}

	def, ok := s.defs.Get(n.Type)
	if !ok {
		return resolvedEndpoint{}, false
	}
	p, ok := ResolveParameterForHandle(def, handle)
	if !ok || !p.HasSocket() {
		return resolvedEndpoint{}, false
	}
	return resolvedEndpoint{node: n, param: p}, true
}

// resolvedConnection is a fully validated, direction-normalized connection
// ready to materialize as an edge.
type resolvedConnection struct {
	conn     Connection
	src, dst resolvedEndpoint
	channel  Channel
}

func (s *Store) resolveConnectionLocked(c Connection) (resolvedConnection, bool) {
	if c.Source == c.Target {
		return resolvedConnection{}, false
	}
	src, ok := s.endpointLocked(c.Source, c.SourceHandle)
	if !ok {
		return resolvedConnection{}, false
	}
	dst, ok := s.endpointLocked(c.Target, c.TargetHandle)
	if !ok {
		return resolvedConnection{}, false
	}

	// The UI reports endpoints in drag order, not data-flow order. When
	// the nominal source cannot emit but the nominal target can, flip.
	if !src.param.CanActAsSource() && src.param.CanActAsTarget() && dst.param.CanActAsSource() {
		src, dst = dst, src
		c = Connection{
			Source:       src.node.ID,
			SourceHandle: src.param.ID,
			Target:       dst.node.ID,
			TargetHandle: dst.param.ID,
		}
	}
	if !src.param.CanActAsSource() || !dst.param.CanActAsTarget() {
		return resolvedConnection{}, false
	}

	for _, e := range s.edges {
		if e.Source == c.Source && e.SourceHandle == c.SourceHandle &&
			e.Target == c.Target && e.TargetHandle == c.TargetHandle {
			return resolvedConnection{}, false
		}
	}

	// An unset reroute endpoint is a wildcard: it adopts the peer's type
	// when the edge lands, so the type gate passes provisionally.
	if !src.untyped && !dst.untyped {
		if !CanConnect(src.param.EffectiveSocketType(), dst.param) {
			return resolvedConnection{}, false
		}
	}

	return resolvedConnection{
		conn:    c,
		src:     src,
		dst:     dst,
		channel: s.channelFor(src.param, dst.param),
	}, true
}

// channelFor picks an edge's channel. A per-socket override wins (target
// first); otherwise connections involving a tools socket attach as links
// and everything else is an execution dependency.
func (s *Store) channelFor(src, dst Parameter) Channel {
	if dst.Socket != nil && validChannel(dst.Socket.Channel) {
		return dst.Socket.Channel
	}
	if src.Socket != nil && validChannel(src.Socket.Channel) {
		return src.Socket.Channel
	}
	if src.EffectiveSocketType() == SocketTools || dst.EffectiveSocketType() == SocketTools {
		return ChannelLink
	}
	return ChannelFlow
}

// IsValidConnection reports whether Connect would accept the endpoints.
// Read-only; capacity limits are not consulted here because an at-capacity
// handle with a replace policy still accepts the drop.
func (s *Store) IsValidConnection(c Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.resolveConnectionLocked(c)
	return ok
}

// Connect validates and materializes an edge. Invalid endpoint pairs and
// rejected overflows return false with the store untouched and no history
// entry. On success the edge carries its channel and the resolved endpoint
// types, and unset reroute endpoints adopt their peer's type.
func (s *Store) Connect(c Connection) (FlowEdge, bool) {
	s.mu.Lock()
	rc, ok := s.resolveConnectionLocked(c)
	if !ok {
		s.mu.Unlock()
		return FlowEdge{}, false
	}

	// Capacity: a full handle either rejects the new edge outright or
	// evicts its oldest edges to make room.
	var evict []int
	if m := rc.src.param.MaxConnections; m > 0 {
		existing := s.edgesOnHandleLocked(rc.conn.Source, rc.conn.SourceHandle, true)
		if len(existing) >= m {
			if rc.src.param.OnExceedMax != OverflowReplace {
				s.mu.Unlock()
				return FlowEdge{}, false
			}
			evict = append(evict, existing[:len(existing)-m+1]...)
		}
	}
	if m := rc.dst.param.MaxConnections; m > 0 {
		existing := s.edgesOnHandleLocked(rc.conn.Target, rc.conn.TargetHandle, false)
		if len(existing) >= m {
			if rc.dst.param.OnExceedMax != OverflowReplace {
				s.mu.Unlock()
				return FlowEdge{}, false
			}
			evict = append(evict, existing[:len(existing)-m+1]...)
		}
	}

	s.pushHistoryLocked()

	if len(evict) > 0 {
		sort.Sort(sort.Reverse(sort.IntSlice(evict)))
		for _, i := range evict {
			s.edges = append(s.edges[:i], s.edges[i+1:]...)
		}
	}

	srcType := rc.src.param.EffectiveSocketType()
	dstType := rc.dst.param.EffectiveSocketType()
	switch {
	case rc.src.untyped && !rc.dst.untyped:
		srcType = dstType
		rc.src.node.SetInferredType(dstType)
	case rc.dst.untyped && !rc.src.untyped:
		dstType = srcType
		rc.dst.node.SetInferredType(srcType)
	}

	edge := FlowEdge{
		ID:           NewEdgeID(),
		Source:       rc.conn.Source,
		SourceHandle: rc.conn.SourceHandle,
		Target:       rc.conn.Target,
		TargetHandle: rc.conn.TargetHandle,
		Data: EdgeData{
			Channel:    rc.channel,
			SourceType: srcType,
			TargetType: dstType,
		},
	}
	s.edges = append(s.edges, edge)
	s.mu.Unlock()
	s.notify()
	return edge, true
}

// edgesOnHandleLocked returns indices of edges using the handle, oldest
// first.
func (s *Store) edgesOnHandleLocked(nodeID, handle string, asSource bool) []int {
	var out []int
	for i, e := range s.edges {
		if asSource && e.Source == nodeID && e.SourceHandle == handle {
			out = append(out, i)
		}
		if !asSource && e.Target == nodeID && e.TargetHandle == handle {
			out = append(out, i)
		}
	}
	return out
}

// Disconnect removes an edge by id.
func (s *Store) Disconnect(edgeID string) bool {
	s.mu.Lock()
	idx := -1
	for i, e := range s.edges {
		if e.ID == edgeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.pushHistoryLocked()
	s.edges = append(s.edges[:idx], s.edges[idx+1:]...)
	s.mu.Unlock()
	s.notify()
	return true
}

// InsertRerouteOnEdge splits an edge with a pass-through reroute node at
// the given position. The two replacement edges keep the original channel
// and outer handles; the reroute adopts the edge's source type.
func (s *Store) InsertRerouteOnEdge(edgeID string, pos Position) (FlowNode, bool) {
	s.mu.Lock()
	idx := -1
	for i, e := range s.edges {
		if e.ID == edgeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return FlowNode{}, false
	}
	orig := s.edges[idx]

	s.pushHistoryLocked()

	node := FlowNode{
		ID:       NewNodeID(),
		Type:     RerouteType,
		Position: pos,
		Data:     make(map[string]any),
	}
	if t := orig.Data.SourceType; t != "" && t != SocketData {
		node.SetInferredType(t)
	} else if t := orig.Data.TargetType; t != "" && t != SocketData {
		node.SetInferredType(t)
	}
	s.nodes = append(s.nodes, node)

	in := FlowEdge{
		ID:           NewEdgeID(),
		Source:       orig.Source,
		SourceHandle: orig.SourceHandle,
		Target:       node.ID,
		TargetHandle: RerouteInputHandle,
		Data:         EdgeData{Channel: orig.Data.Channel, SourceType: orig.Data.SourceType, TargetType: orig.Data.SourceType},
	}
	out := FlowEdge{
		ID:           NewEdgeID(),
		Source:       node.ID,
		SourceHandle: RerouteOutputHandle,
		Target:       orig.Target,
		TargetHandle: orig.TargetHandle,
		Data:         EdgeData{Channel: orig.Data.Channel, SourceType: orig.Data.SourceType, TargetType: orig.Data.TargetType},
	}
	s.edges[idx] = in
	s.edges = append(s.edges, out)
	s.mu.Unlock()
	s.notify()

	c := node
	c.Data = cloneDataBag(node.Data)
	return c, true
}

// LoadOption adjusts bulk replacement behavior.
type LoadOption func(*loadConfig)

type loadConfig struct {
	skipHistory bool
}

// SkipHistory suppresses the undo point a bulk replacement would
// normally create. Used for initial hydration, where "undo" would step
// back to an empty document the user never saw.
func SkipHistory() LoadOption {
	return func(c *loadConfig) { c.skipHistory = true }
}

// LoadGraph replaces the document with an external graph after enriching
// it: edges are validated for a legal channel, endpoint types are
// re-derived from current definitions, duplicate edges are dropped, and
// edges referencing missing nodes are pruned. The previous state becomes
// an undo point unless SkipHistory is given.
func (s *Store) LoadGraph(g Graph, opts ...LoadOption) error {
	var cfg loadConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s.mu.Lock()
	nodes, edges, err := s.enrichLocked(g)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !cfg.skipHistory {
		s.pushHistoryLocked()
	}
	s.nodes = nodes
	s.edges = edges
	s.selected = make(map[string]bool)
	s.pick = PickState{}
	s.debounce.Cancel()
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Store) enrichLocked(g Graph) ([]FlowNode, []FlowEdge, error) {
	nodes := make([]FlowNode, 0, len(g.Nodes))
	byID := make(map[string]*FlowNode, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" || byID[n.ID] != nil {
			continue
		}
		c := n
		c.Data = cloneDataBag(n.Data)
		nodes = append(nodes, c)
		byID[c.ID] = &nodes[len(nodes)-1]
	}

	edges := make([]FlowEdge, 0, len(g.Edges))
	seen := make(map[[4]string]bool)
	for _, e := range g.Edges {
		if !validChannel(e.Data.Channel) {
			return nil, nil, &ChannelError{EdgeID: e.ID, Channel: e.Data.Channel}
		}
		if byID[e.Source] == nil || byID[e.Target] == nil {
			continue
		}
		sig := [4]string{e.Source, e.SourceHandle, e.Target, e.TargetHandle}
		if seen[sig] {
			continue
		}
		seen[sig] = true
		if e.ID == "" {
			e.ID = NewEdgeID()
		}
		// Cached endpoint types in the document are advisory; re-derive
		// them from the definitions actually registered.
		if ep, ok := s.endpointForLoadLocked(byID[e.Source], e.SourceHandle); ok {
			e.Data.SourceType = ep
		}
		if ep, ok := s.endpointForLoadLocked(byID[e.Target], e.TargetHandle); ok {
			e.Data.TargetType = ep
		}
		edges = append(edges, e)
	}
	return nodes, edges, nil
}

func (s *Store) endpointForLoadLocked(n *FlowNode, handle string) (SocketType, bool) {
	if n.IsReroute() {
		if t, ok := n.InferredType(); ok {
			return t, true
		}
		return SocketData, true
	}
	def, ok := s.defs.Get(n.Type)
	if !ok {
		return "", false
	}
	p, ok := ResolveParameterForHandle(def, handle)
	if !ok {
		return "", false
	}
	return p.EffectiveSocketType(), true
}

// ClearGraph empties the document, keeping the cleared state undoable
// unless SkipHistory is given.
func (s *Store) ClearGraph(opts ...LoadOption) {
	var cfg loadConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s.mu.Lock()
	if !cfg.skipHistory {
		s.pushHistoryLocked()
	}
	s.nodes = nil
	s.edges = nil
	s.selected = make(map[string]bool)
	s.pick = PickState{}
	s.debounce.Cancel()
	s.mu.Unlock()
	s.notify()
}

// StartPick begins a socket pick from an input handle: the user will next
// choose a node whose output should feed it.
func (s *Store) StartPick(nodeID, handleID string) bool {
	s.mu.Lock()
	ep, ok := s.endpointLocked(nodeID, handleID)
	if !ok || !ep.param.CanActAsTarget() {
		s.mu.Unlock()
		return false
	}
	s.pick = PickState{
		Active:       true,
		OriginNode:   nodeID,
		OriginHandle: handleID,
		Want:         ep.param.EffectiveSocketType(),
	}
	s.mu.Unlock()
	s.notify()
	return true
}

// CancelPick abandons an in-progress pick.
func (s *Store) CancelPick() {
	s.mu.Lock()
	s.pick = PickState{}
	s.mu.Unlock()
	s.notify()
}

// Pick returns the current pick state.
func (s *Store) Pick() PickState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pick
}

// IsPickableNode reports whether the node offers at least one output
// socket compatible with the pick origin.
func (s *Store) IsPickableNode(nodeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pickSourceLocked(nodeID)
	return ok
}

// CompletePick connects the chosen node's first compatible output to the
// pick origin and clears the pick state.
func (s *Store) CompletePick(nodeID string) (FlowEdge, bool) {
	s.mu.Lock()
	p, ok := s.pickSourceLocked(nodeID)
	if !ok {
		s.mu.Unlock()
		return FlowEdge{}, false
	}
	conn := Connection{
		Source:       nodeID,
		SourceHandle: p.ID,
		Target:       s.pick.OriginNode,
		TargetHandle: s.pick.OriginHandle,
	}
	s.pick = PickState{}
	s.mu.Unlock()
	return s.Connect(conn)
}

func (s *Store) pickSourceLocked(nodeID string) (Parameter, bool) {
	if !s.pick.Active || nodeID == s.pick.OriginNode {
		return Parameter{}, false
	}
	n := s.nodeLocked(nodeID)
	if n == nil {
		return Parameter{}, false
	}
	def, ok := s.defs.Get(n.Type)
	if !ok {
		return Parameter{}, false
	}
	candidates := CompatibleOutputSockets(def, s.pick.Want)
	if len(candidates) == 0 {
		return Parameter{}, false
	}
	return candidates[0], true
}
