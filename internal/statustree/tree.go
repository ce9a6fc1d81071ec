package statustree

import (
	"fmt"
	"log/slog"
	"sort"
)

// Tree is the status tree: a single loop goroutine owns all mutable state
// (the node graph, the global revision counter, the pending-watcher set),
// exactly as §5 of the specification requires. Every exported method
// submits a closure to that goroutine and blocks for its result, so it is
// safe to call concurrently from any number of caller goroutines (HTTP
// handlers, rule helpers, timers) without any of them taking a lock
// themselves.
//
// A watcher fired by a mutation notifies its own goroutine via a channel
// (Watcher.Done). If that goroutine reacts by calling Set again, the new
// Set is a separate, later atomic operation — not nested inside the
// mutation that fired the watcher. This is the idiomatic-Go reading of "the
// watcher-set scan must tolerate additions/removals during the pass" and of
// the single-threaded-event-loop model: each individual Set is atomic
// start-to-finish, and a channel receive is an explicit suspension point
// (§5), so a watcher callback reacting to its own Done() channel is, by
// definition, on the far side of a suspension point rather than inside the
// original mutation's call stack.
type Tree struct {
	cmds chan func()
	quit chan struct{}
	done chan struct{}

	logger *slog.Logger

	// loop-goroutine-owned state.
	root           *node
	globalRevision int64
	watchers       map[uint64]*pendingWatcher
	nextWatcherID  uint64
}

// NewTree creates an empty status tree (root is an empty mapping at
// revision 1) and starts its event loop.
func NewTree(logger *slog.Logger) *Tree {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tree{
		cmds:           make(chan func()),
		quit:           make(chan struct{}),
		done:           make(chan struct{}),
		logger:         logger.With("component", "statustree"),
		root:           newEmptyMapNode(1),
		globalRevision: 1,
		watchers:       make(map[uint64]*pendingWatcher),
	}
	go t.loop()
	return t
}

func (t *Tree) loop() {
	defer close(t.done)
	for {
		select {
		case fn := <-t.cmds:
			fn()
		case <-t.quit:
			t.cancelAllWatchers()
			return
		}
	}
}

// Stop cancels every pending watcher and shuts down the loop goroutine.
func (t *Tree) Stop() {
	close(t.quit)
	<-t.done
}

func (t *Tree) submit(fn func()) {
	doneCh := make(chan struct{})
	t.cmds <- func() {
		fn()
		close(doneCh)
	}
	<-doneCh
}

// Revision returns the current revision of path. Fails with
// UnknownPathError if path does not exist, BadPathError on a syntactically
// invalid path or traversal through a scalar.
func (t *Tree) Revision(path string) (int64, error) {
	p, err := ParsePath(path)
	if err != nil {
		return 0, err
	}
	var rev int64
	var rerr error
	t.submit(func() {
		n, err := t.lookup(p)
		if err != nil {
			rerr = err
			return
		}
		rev = n.revision
	})
	return rev, rerr
}

// Get returns a deep copy of the value at path, or def if path is unknown.
// Fails with BadPathError for paths that traverse through a scalar.
func (t *Tree) Get(path string, def Value) (Value, error) {
	p, err := ParsePath(path)
	if err != nil {
		return Null(), err
	}
	result := def
	var rerr error
	t.submit(func() {
		n, err := t.lookup(p)
		if err != nil {
			if _, ok := err.(*UnknownPathError); ok {
				return
			}
			rerr = err
			return
		}
		result = nodeValue(n).Clone()
	})
	return result, rerr
}

// GetMatchingURLs expands a (possibly wildcard) path against the current
// tree and returns every concrete URL that exists, sorted for a stable
// result across calls against an unchanged tree.
func (t *Tree) GetMatchingURLs(pattern string) ([]string, error) {
	p, err := ParsePath(pattern)
	if err != nil {
		return nil, err
	}
	var results []string
	t.submit(func() {
		for _, rp := range t.expand(p) {
			results = append(results, rp.String())
		}
		sort.Strings(results)
	})
	return results, nil
}

// Set writes value at path, creating missing intermediate mapping nodes.
// If expected is non-nil, it must equal the revision of the target node or
// of some ancestor on the root-to-target path, or Set fails with
// RevisionMismatchError and the tree is left unchanged. A no-op write
// (value already equal to the current value) succeeds without changing
// any revision.
func (t *Tree) Set(path string, value Value, expected *int64) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	if p.HasWildcard() {
		return &BadPathError{Path: path, Reason: "wildcard not allowed in set"}
	}
	var rerr error
	t.submit(func() {
		changed, err := t.doSet(p, value, expected)
		if err != nil {
			rerr = err
			return
		}
		if changed {
			t.notify()
		}
	})
	return rerr
}

// Deferred creates a Watcher for path. If expected is non-nil and differs
// from the current revision of the (wildcard-prefix) root of the watched
// region, the watcher fires immediately; otherwise it fires on the next
// Set that changes any revision in expand(path).
func (t *Tree) Deferred(path string, expected *int64) (*Watcher, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	var w *Watcher
	t.submit(func() {
		w = t.createWatcher(p, expected)
	})
	return w, nil
}

// --- loop-goroutine-only internals below; never call these outside a
// submit() closure. ---

func (t *Tree) lookup(path Path) (*node, error) {
	cur := t.root
	segs := path.Segments()
	for i, seg := range segs {
		if cur.kind != KindMap {
			return nil, &BadPathError{
				Path:   path.String(),
				Reason: fmt.Sprintf("%q is not a mapping", Path{segments: segs[:i]}.String()),
			}
		}
		child, ok := cur.children[seg]
		if !ok {
			return nil, &UnknownPathError{Path: path.String()}
		}
		cur = child
	}
	return cur, nil
}

func (t *Tree) expand(pattern Path) []Path {
	type item struct{ segs []string }
	work := []item{{segs: pattern.Segments()}}
	var results []Path
	for len(work) > 0 {
		cur := work[0]
		work = work[1:]

		idx := -1
		for i, s := range cur.segs {
			if s == "*" {
				idx = i
				break
			}
		}
		if idx == -1 {
			p := Path{segments: cur.segs}
			if _, err := t.lookup(p); err == nil {
				results = append(results, p)
			}
			continue
		}

		prefix := cur.segs[:idx]
		suffix := cur.segs[idx+1:]
		prefixNode, err := t.lookup(Path{segments: prefix})
		if err != nil || prefixNode.kind != KindMap {
			continue
		}
		for name := range prefixNode.children {
			newSegs := append(append(append([]string{}, prefix...), name), suffix...)
			work = append(work, item{segs: newSegs})
		}
	}
	return results
}

// doSet performs the validate-then-commit sequence described in §4.1.
// Returns changed=true iff a new revision was stamped.
func (t *Tree) doSet(path Path, value Value, expected *int64) (bool, error) {
	segs := path.Segments()

	var existingAncestors []*node
	var existingTarget *node

	if len(segs) == 0 {
		existingTarget = t.root
	} else {
		cur := t.root
		existingAncestors = append(existingAncestors, cur)
		for i, seg := range segs {
			last := i == len(segs)-1
			if cur.kind != KindMap {
				return false, &BadPathError{
					Path:   path.String(),
					Reason: fmt.Sprintf("%q is not a mapping", Path{segments: segs[:i]}.String()),
				}
			}
			child, ok := cur.children[seg]
			if !ok {
				break // everything from here down is to be created.
			}
			if last {
				existingTarget = child
				break
			}
			cur = child
			existingAncestors = append(existingAncestors, cur)
		}
	}

	if expected != nil {
		ok := false
		for _, a := range existingAncestors {
			if a.revision == *expected {
				ok = true
				break
			}
		}
		if !ok && existingTarget != nil && existingTarget.revision == *expected {
			ok = true
		}
		if !ok {
			return false, &RevisionMismatchError{Path: path.String(), Expected: *expected}
		}
	}

	if existingTarget != nil && Equal(nodeValue(existingTarget), value) {
		return false, nil
	}

	t.globalRevision++
	r := t.globalRevision
	newTarget := valueToNode(value, r)

	if len(segs) == 0 {
		t.root = newTarget
		return true, nil
	}

	cur := t.root
	cur.revision = r
	for i, seg := range segs {
		last := i == len(segs)-1
		if last {
			cur.children[seg] = newTarget
			break
		}
		child, ok := cur.children[seg]
		if !ok {
			child = newEmptyMapNode(r)
			cur.children[seg] = child
		} else {
			child.revision = r
		}
		cur = child
	}

	t.logger.Debug("set", "path", path.String(), "revision", r)
	return true, nil
}

// notify scans a snapshot of the pending-watcher set (tolerating additions
// or removals during the pass, per §4.1) and fires every watcher whose
// observed revisions have changed.
func (t *Tree) notify() {
	ids := make([]uint64, 0, len(t.watchers))
	for id := range t.watchers {
		ids = append(ids, id)
	}
	for _, id := range ids {
		pw, ok := t.watchers[id]
		if !ok {
			continue // removed (fired or cancelled) earlier in this same pass.
		}
		newObserved := t.observe(pw.pattern)
		if !sameRevisions(pw.observed, newObserved) {
			delete(t.watchers, id)
			pw.w.done <- Outcome{}
		}
	}
}

func (t *Tree) cancelAllWatchers() {
	for id, pw := range t.watchers {
		delete(t.watchers, id)
		pw.w.done <- Outcome{Cancelled: true}
	}
}

func (t *Tree) observe(pattern Path) map[string]int64 {
	out := map[string]int64{}
	for _, p := range t.expand(pattern) {
		if n, err := t.lookup(p); err == nil {
			out[p.String()] = n.revision
		}
	}
	return out
}

func sameRevisions(a, b map[string]int64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func patternRootPath(pattern Path) Path {
	segs := pattern.Segments()
	for i, s := range segs {
		if s == "*" {
			return Path{segments: segs[:i]}
		}
	}
	return pattern
}
