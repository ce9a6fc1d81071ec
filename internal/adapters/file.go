package adapters

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DonGar/house-monitor/internal/statustree"
)

// fileDebounce is the quiet period a FileAdapter waits after the last
// filesystem event before re-reading, so a multi-write save doesn't
// trigger a burst of partial-file parses.
const fileDebounce = 150 * time.Millisecond

// FileAdapter reads a JSON file into its mount URL on Start, then
// re-reads it whenever the file changes. A parse error is logged and the
// previously-set value is left in place.
type FileAdapter struct {
	deps     Deps
	mount    string
	filename string

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	stopOnce sync.Once
	done     chan struct{}
}

// NewFileAdapter builds a FileAdapter that mounts filename's parsed JSON
// contents at mount.
func NewFileAdapter(deps Deps, mount, filename string) *FileAdapter {
	return &FileAdapter{deps: deps, mount: mount, filename: filename}
}

func (a *FileAdapter) MountURL() string { return a.mount }

// Start performs the initial read and begins watching the file's
// directory for changes (fsnotify does not support watching a file that
// does not yet exist, so the directory is watched instead, matching the
// inotify-on-dirname approach the adapter's original Python implementation
// used).
func (a *FileAdapter) Start() error {
	a.reload()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(a.filename)); err != nil {
		watcher.Close()
		return err
	}

	a.mu.Lock()
	a.watcher = watcher
	a.done = make(chan struct{})
	a.mu.Unlock()

	go a.watchLoop(watcher, a.done)
	return nil
}

func (a *FileAdapter) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(a.filename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(fileDebounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			a.reload()

		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}

		case <-done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (a *FileAdapter) reload() {
	data, err := os.ReadFile(a.filename)
	if err != nil {
		if os.IsNotExist(err) {
			a.deps.logger().Info("adapter file does not exist yet", "filename", a.filename, "mount", a.mount)
			return
		}
		a.deps.logger().Error("reading adapter file failed", "filename", a.filename, "error", err)
		return
	}

	var parsed interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		a.deps.logger().Error("parsing adapter file failed", "filename", a.filename, "error", err)
		return
	}

	if err := a.deps.Tree.Set(a.mount, statustree.FromAny(parsed), nil); err != nil {
		a.deps.logger().Error("setting adapter mount failed", "mount", a.mount, "error", err)
	}
}

// Stop clears the mount subtree and stops the file watcher.
func (a *FileAdapter) Stop() error {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		watcher := a.watcher
		done := a.done
		a.mu.Unlock()

		if done != nil {
			close(done)
		}
		if watcher != nil {
			watcher.Close()
		}
	})
	return a.deps.Tree.Set(a.mount, statustree.FromAny(map[string]interface{}{}), nil)
}
