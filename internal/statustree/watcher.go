package statustree

// Outcome describes why a Watcher fired.
type Outcome struct {
	// Cancelled is true when the watcher fired because it was cancelled
	// (by Watcher.Cancel or by the tree being stopped) rather than because
	// the watched region changed.
	Cancelled bool
}

// Watcher is a one-shot notification for a change to a status URL pattern.
// Obtain one from Tree.Deferred and receive from Done() to block until it
// fires.
type Watcher struct {
	id   uint64
	tree *Tree
	done chan Outcome
}

// Done returns the channel the watcher's single Outcome is delivered on.
func (w *Watcher) Done() <-chan Outcome {
	return w.done
}

// Cancel abandons the watcher before it fires. Safe to call after the
// watcher has already fired; it is then a no-op.
func (w *Watcher) Cancel() {
	doneCh := make(chan struct{})
	select {
	case w.tree.cmds <- func() {
		w.tree.cancelWatcher(w.id)
		close(doneCh)
	}:
		<-doneCh
	case <-w.tree.done:
	}
}

// pendingWatcher is the loop-goroutine-owned bookkeeping for one
// outstanding Watcher: the pattern it covers and the revisions observed
// for that pattern's expansion as of the last scan.
type pendingWatcher struct {
	id       uint64
	pattern  Path
	observed map[string]int64
	w        *Watcher
}

// createWatcher registers pw and returns its Watcher, firing immediately
// (without registering) if expected is given and already stale.
func (t *Tree) createWatcher(pattern Path, expected *int64) *Watcher {
	w := &Watcher{tree: t, done: make(chan Outcome, 1)}

	if expected != nil {
		rootPath := patternRootPath(pattern)
		rootNode, err := t.lookup(rootPath)
		rootRev := int64(-1)
		if err == nil {
			rootRev = rootNode.revision
		}
		if rootRev != *expected {
			w.done <- Outcome{}
			return w
		}
	}

	t.nextWatcherID++
	id := t.nextWatcherID
	w.id = id
	t.watchers[id] = &pendingWatcher{
		id:       id,
		pattern:  pattern,
		observed: t.observe(pattern),
		w:        w,
	}
	return w
}

// cancelWatcher removes a pending watcher and fires it with Cancelled=true.
// A no-op if the watcher already fired naturally.
func (t *Tree) cancelWatcher(id uint64) {
	pw, ok := t.watchers[id]
	if !ok {
		return
	}
	delete(t.watchers, id)
	pw.w.done <- Outcome{Cancelled: true}
}
