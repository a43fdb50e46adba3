package flow

import (
	"sync"
	"time"
)

// historyLimit bounds the undo/redo stacks; the oldest entries are dropped.
const historyLimit = 100

// snapshot is one immutable history entry: a deep copy of the node and
// edge collections taken before a mutation.
type snapshot struct {
	nodes []FlowNode
	edges []FlowEdge
}

// cloneSnapshot structurally clones the graph state. History entries must
// never alias live state, so data bags are copied all the way down.
func cloneSnapshot(nodes []FlowNode, edges []FlowEdge) snapshot {
	return snapshot{nodes: cloneNodes(nodes), edges: cloneEdges(edges)}
}

func cloneNodes(nodes []FlowNode) []FlowNode {
	out := make([]FlowNode, len(nodes))
	for i, n := range nodes {
		out[i] = n
		out[i].Data = cloneDataBag(n.Data)
	}
	return out
}

func cloneEdges(edges []FlowEdge) []FlowEdge {
	out := make([]FlowEdge, len(edges))
	copy(out, edges)
	return out
}

func cloneDataBag(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies nested maps and slices; scalars are returned as-is.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneDataBag(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// history holds the bounded past/future stacks.
type history struct {
	past   []snapshot
	future []snapshot
}

// push records a new past entry and clears the redo stack.
func (h *history) push(s snapshot) {
	h.past = append(h.past, s)
	if len(h.past) > historyLimit {
		h.past = h.past[len(h.past)-historyLimit:]
	}
	h.future = nil
}

func (h *history) canUndo() bool { return len(h.past) > 0 }
func (h *history) canRedo() bool { return len(h.future) > 0 }

// undo moves the latest past entry out and records current as redoable.
func (h *history) undo(current snapshot) (snapshot, bool) {
	if len(h.past) == 0 {
		return snapshot{}, false
	}
	prev := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = append(h.future, current)
	if len(h.future) > historyLimit {
		h.future = h.future[len(h.future)-historyLimit:]
	}
	return prev, true
}

// redo is the inverse of undo.
func (h *history) redo(current snapshot) (snapshot, bool) {
	if len(h.future) == 0 {
		return snapshot{}, false
	}
	next := h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	h.past = append(h.past, current)
	return next, true
}

// Debounce timing for data edits: rapid changes (slider drags, typing)
// coalesce into a single undo step after a quiet period, but a continuous
// stream of edits is force-committed at the max-wait ceiling so the
// snapshot can never starve.
const (
	debounceQuiet   = 300 * time.Millisecond
	debounceMaxWait = 1500 * time.Millisecond
)

// snapshotDebouncer owns the pending pre-edit snapshot and its timer.
// Flush and Cancel are first-class operations; the store flushes before
// any structural mutation, undo, or teardown.
type snapshotDebouncer struct {
	mu       sync.Mutex
	quiet    time.Duration
	maxWait  time.Duration
	timer    *time.Timer
	deadline time.Time
	pending  *snapshot
	commit   func(snapshot, uint64)

	// gen invalidates in-flight commits: a snapshot taken for commit
	// before a Cancel must not be pushed after it. Commits carry the
	// generation they were taken under; Cancel bumps it.
	gen uint64
}

func newSnapshotDebouncer(commit func(snapshot, uint64)) *snapshotDebouncer {
	return &snapshotDebouncer{
		quiet:   debounceQuiet,
		maxWait: debounceMaxWait,
		commit:  commit,
	}
}

// Touch notes a data edit. The first edit in a burst captures pre as the
// pending snapshot and arms the timer; later edits only reset the quiet
// window, up to the max-wait deadline.
func (d *snapshotDebouncer) Touch(pre snapshot) {
	d.mu.Lock()

	now := time.Now()
	if d.pending == nil {
		d.pending = &pre
		d.deadline = now.Add(d.maxWait)
	}

	wait := d.quiet
	if remaining := d.deadline.Sub(now); remaining < wait {
		wait = remaining
	}
	if wait <= 0 {
		pending := d.takeLocked()
		gen := d.gen
		d.mu.Unlock()
		d.commit(pending, gen)
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(wait, d.Flush)
	d.mu.Unlock()
}

// Flush commits the pending snapshot immediately, if any. Runs from the
// timer goroutine and on drag-end/blur. The commit callback is invoked
// without the debouncer lock held, so it may take the owner's lock.
func (d *snapshotDebouncer) Flush() {
	if pending, gen, ok := d.Take(); ok {
		d.commit(pending, gen)
	}
}

// Take removes and returns the pending snapshot without committing it,
// together with the generation it was taken under. Callers that already
// hold the owning store's lock use this to push the entry themselves.
func (d *snapshotDebouncer) Take() (snapshot, uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return snapshot{}, d.gen, false
	}
	return d.takeLocked(), d.gen, true
}

// Pending reports whether an uncommitted snapshot exists.
func (d *snapshotDebouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Generation returns the current commit generation.
func (d *snapshotDebouncer) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen
}

// Cancel drops the pending snapshot without committing and invalidates
// any commit already in flight. Used on teardown and on history restore.
func (d *snapshotDebouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
	d.gen++
}

func (d *snapshotDebouncer) takeLocked() snapshot {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	pending := *d.pending
	d.pending = nil
	return pending
}
