package scheduling

import (
	"sync"
	"time"

	"github.com/DonGar/house-monitor/internal/statustree"
)

// CancelToken cancels a scheduled timer or watch; Cancel is idempotent and
// safe to call more than once or after the scheduled work has already run.
type CancelToken struct {
	cancel func()
}

// Cancel cancels the associated timer or watch, if it has not already
// fired.
func (c CancelToken) Cancel() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Clock reports the current time; rule helpers are built against a
// Scheduler rather than calling time.Now() directly so tests can inject a
// deterministic clock (the utc_now() seam).
type Clock func() time.Time

// Scheduler is the explicit after/on-change abstraction rule helpers are
// built on, replacing the chained-continuation control flow of the source
// implementation with straight-line code plus a cancellation token.
type Scheduler struct {
	clock Clock
}

// NewScheduler builds a Scheduler around clock. A nil clock uses
// time.Now().UTC().
func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Scheduler{clock: clock}
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() time.Time {
	return s.clock()
}

// After invokes fn once after d elapses, measured from s.Now(), unless
// cancelled first. fn runs on its own goroutine.
func (s *Scheduler) After(d time.Duration, fn func()) CancelToken {
	timer := time.NewTimer(d)
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		select {
		case <-timer.C:
			fn()
		case <-stop:
			timer.Stop()
		}
	}()

	return CancelToken{cancel: func() {
		once.Do(func() { close(stop) })
	}}
}

// OnChange arms a watcher on path and invokes fn when it fires due to a
// real change (not a cancellation). The watch is automatically re-armed by
// the caller if a repeating watch is needed; OnChange itself is one-shot,
// matching Watcher's one-shot contract.
func (s *Scheduler) OnChange(tree *statustree.Tree, path string, fn func()) (CancelToken, error) {
	w, err := tree.Deferred(path, nil)
	if err != nil {
		return CancelToken{}, err
	}

	stop := make(chan struct{})
	var once sync.Once

	go func() {
		select {
		case outcome := <-w.Done():
			select {
			case <-stop:
				return
			default:
			}
			if !outcome.Cancelled {
				fn()
			}
		case <-stop:
			w.Cancel()
		}
	}()

	return CancelToken{cancel: func() {
		once.Do(func() { close(stop) })
	}}, nil
}
