// Package rules implements the Rules Engine: a set of long-lived rule
// helpers, each scheduling itself on a timer (interval, daily-clock,
// sunrise/sunset) or a status watcher, that invoke the action manager when
// they fire.
package rules

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DonGar/house-monitor/internal/actions"
	"github.com/DonGar/house-monitor/internal/scheduling"
	"github.com/DonGar/house-monitor/internal/statustree"
)

// State is a rule helper's position in the idle/armed/stopped state
// machine described by the rules engine's lifecycle.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateStopped
)

// Variant selects which of the three scheduling strategies a helper uses.
type Variant int

const (
	VariantInterval Variant = iota
	VariantDaily
	VariantWatch
)

// Deps bundles the collaborators a RuleHelper needs. Latitude/Longitude and
// Location back the sunrise/sunset and local-clock daily variants.
type Deps struct {
	Tree      *statustree.Tree
	Scheduler *scheduling.Scheduler
	Manager   *actions.Manager
	Logger    *slog.Logger
	Location  *time.Location
	Latitude  float64
	Longitude float64
}

// RuleHelper is the tagged-variant replacement for a class hierarchy of
// per-behavior rule types: one record, a variant tag, and per-variant
// fields, with a single start/fire/stop contract.
type RuleHelper struct {
	url     string
	variant Variant

	intervalDuration time.Duration
	dailyClock       time.Duration
	dailySunEvent    *scheduling.SunEvent
	watchValuePath   string
	watchTrigger     *statustree.Value

	deps Deps

	mu       sync.Mutex
	state    State
	token    scheduling.CancelToken
	inflight sync.WaitGroup
}

func NewIntervalHelper(url string, interval time.Duration, deps Deps) *RuleHelper {
	return &RuleHelper{url: url, variant: VariantInterval, intervalDuration: interval, deps: deps}
}

func NewDailyClockHelper(url string, clock time.Duration, deps Deps) *RuleHelper {
	return &RuleHelper{url: url, variant: VariantDaily, dailyClock: clock, deps: deps}
}

func NewDailySunHelper(url string, event *scheduling.SunEvent, deps Deps) *RuleHelper {
	return &RuleHelper{url: url, variant: VariantDaily, dailySunEvent: event, deps: deps}
}

func NewWatchHelper(url, valuePath string, trigger *statustree.Value, deps Deps) *RuleHelper {
	return &RuleHelper{url: url, variant: VariantWatch, watchValuePath: valuePath, watchTrigger: trigger, deps: deps}
}

// URL is the rule's identity.
func (h *RuleHelper) URL() string { return h.url }

// State reports the helper's current lifecycle state.
func (h *RuleHelper) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Start arms the helper's first one-shot. A no-op if already started.
func (h *RuleHelper) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateIdle {
		return
	}
	h.state = StateArmed
	h.arm()
}

// Stop cancels the helper's outstanding one-shot and blocks until any fire
// already past its armed-state check has finished dispatching, so that no
// call to dispatchAction can still be running once Stop returns. idempotent.
func (h *RuleHelper) Stop() {
	h.mu.Lock()
	if h.state != StateArmed {
		h.state = StateStopped
		h.mu.Unlock()
		return
	}
	h.state = StateStopped
	h.token.Cancel()
	h.mu.Unlock()

	h.inflight.Wait()
}

// arm must be called with h.mu held.
func (h *RuleHelper) arm() {
	if h.variant == VariantWatch {
		token, err := h.deps.Scheduler.OnChange(h.deps.Tree, h.watchValuePath, h.onWatchFire)
		if err != nil {
			h.deps.Logger.Error("rule: failed to arm watch", "rule", h.url, "error", err)
			h.state = StateStopped
			return
		}
		h.token = token
		return
	}

	next := h.nextFireTime()
	delay := next.Sub(h.deps.Scheduler.Now())
	if delay < 0 {
		delay = 0
	}
	h.token = h.deps.Scheduler.After(delay, h.onTimerFire)
}

// onTimerFire runs on its own goroutine, per Scheduler.After's contract; it
// is never invoked after a successful cancellation of its token. Between
// this state check and dispatchAction returning, Stop can still flip
// h.state to StateStopped; registering with h.inflight before releasing
// h.mu, and holding that registration open across the rearm check, lets
// Stop's h.inflight.Wait block until this fire (including any rearm
// decision it makes) has fully unwound, so Stop never returns while a
// dispatch it should have cancelled is still running.
func (h *RuleHelper) onTimerFire() {
	h.mu.Lock()
	if h.state != StateArmed {
		h.mu.Unlock()
		return
	}
	h.inflight.Add(1)
	h.mu.Unlock()
	defer h.inflight.Done()

	h.dispatchAction()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateArmed {
		return
	}
	h.arm()
}

// onWatchFire runs on its own goroutine, per Scheduler.OnChange's contract.
// See onTimerFire for why the fire registers with h.inflight before
// dispatching.
func (h *RuleHelper) onWatchFire() {
	h.mu.Lock()
	if h.state != StateArmed {
		h.mu.Unlock()
		return
	}
	h.inflight.Add(1)
	h.mu.Unlock()
	defer h.inflight.Done()

	val, err := h.deps.Tree.Get(h.watchValuePath, statustree.Null())
	if err != nil {
		h.deps.Logger.Error("rule: failed reading watched value", "rule", h.url, "error", err)
	} else {
		h.evaluateWatch(val)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateArmed {
		return
	}
	h.arm()
}

// evaluateWatch applies the trigger and null-suppression rules before
// dispatching the rule's action.
func (h *RuleHelper) evaluateWatch(val statustree.Value) {
	if val.IsNull() {
		return
	}
	if h.watchTrigger != nil && !statustree.Equal(val, *h.watchTrigger) {
		return
	}
	h.dispatchAction()
}

func (h *RuleHelper) nextFireTime() time.Time {
	now := h.deps.Scheduler.Now()
	if h.variant == VariantInterval {
		return scheduling.NextInterval(now, h.intervalDuration)
	}
	if h.dailySunEvent != nil {
		return scheduling.NextSunEvent(now, h.deps.Latitude, h.deps.Longitude, *h.dailySunEvent)
	}
	return scheduling.NextDailyAt(now, h.deps.Location, h.dailyClock)
}

// dispatchAction reads the action stored as this rule's own "action" child
// and hands it to the action manager, auditing the outcome.
func (h *RuleHelper) dispatchAction() {
	action, err := h.deps.Tree.Get(h.url+"/action", statustree.Null())
	if err != nil {
		h.deps.Logger.Error("rule: failed reading action", "rule", h.url, "error", err)
		return
	}
	if action.IsNull() {
		return
	}
	if err := h.deps.Manager.DispatchAndAudit(context.Background(), "rule "+h.url, action); err != nil {
		h.deps.Logger.Error("rule: action dispatch failed", "rule", h.url, "error", err)
	}
}
