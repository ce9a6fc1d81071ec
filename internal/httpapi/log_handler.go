package httpapi

import (
	"bufio"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/DonGar/house-monitor/internal/httpapi/apierrors"
	"github.com/DonGar/house-monitor/internal/statustree"
)

// LogTail keeps the most recent log lines written to a file in memory so
// GET /log can serve them without re-reading the file on every request.
// Its line count doubles as the long-poll "revision": a GET with a
// revision equal to the current line count blocks until a new line
// arrives or the request context is cancelled.
type LogTail struct {
	mu      sync.Mutex
	lines   []string
	total   int
	maxLine int
	waiters map[chan struct{}]struct{}
}

// NewLogTail returns a LogTail that retains at most maxLines lines.
func NewLogTail(maxLines int) *LogTail {
	if maxLines <= 0 {
		maxLines = 1000
	}
	return &LogTail{
		maxLine: maxLines,
		waiters: make(map[chan struct{}]struct{}),
	}
}

// LoadFile seeds the tail with the last maxLines lines already present in
// an existing log file, so a freshly started server has history to serve.
func (t *LogTail) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(lines) > t.maxLine {
		lines = lines[len(lines)-t.maxLine:]
	}
	t.lines = lines
	t.total = len(lines)
	return scanner.Err()
}

// Write implements io.Writer so a LogTail can be chained alongside the
// process' regular lumberjack-backed log writer.
func (t *LogTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	t.lines = append(t.lines, string(p))
	t.total++
	if len(t.lines) > t.maxLine {
		t.lines = t.lines[len(t.lines)-t.maxLine:]
	}
	waiters := make([]chan struct{}, 0, len(t.waiters))
	for ch := range t.waiters {
		waiters = append(waiters, ch)
	}
	t.waiters = make(map[chan struct{}]struct{})
	t.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
	return len(p), nil
}

// Snapshot returns the currently retained lines and the revision (total
// line count) they were taken at.
func (t *LogTail) Snapshot() ([]string, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out, t.total
}

// wait blocks until a new line has been written since revision, or done
// fires. A revision older than what's retained returns immediately.
func (t *LogTail) wait(revision int, done <-chan struct{}) {
	t.mu.Lock()
	if t.total != revision {
		t.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	t.waiters[ch] = struct{}{}
	t.mu.Unlock()

	select {
	case <-ch:
	case <-done:
		t.mu.Lock()
		delete(t.waiters, ch)
		t.mu.Unlock()
	}
}

// handleLog implements GET/POST /log: return recent log lines plus a
// pseudo-revision (line count), long-polling when the caller's revision
// matches the current count.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if s.cfg.LogTail == nil {
		apierrors.Write(w, requestIDFrom(r), &statustree.UnknownPathError{Path: "/log"})
		return
	}

	if raw := r.URL.Query().Get("revision"); raw != "" {
		if revision, err := strconv.Atoi(raw); err == nil {
			s.cfg.LogTail.wait(revision, r.Context().Done())
			if r.Context().Err() != nil {
				return
			}
		}
	}

	lines, revision := s.cfg.LogTail.Snapshot()
	asAny := make([]interface{}, len(lines))
	for i, line := range lines {
		asAny[i] = line
	}
	writeStatusJSON(w, "/log", int64(revision), statustree.FromAny(asAny))
}
