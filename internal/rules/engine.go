package rules

import (
	"sync"

	"github.com/DonGar/house-monitor/internal/statustree"
)

// Engine owns the set of live rule helpers. Rules are reconstructed from
// scratch on every Reload: there is no in-place rule edit, since a rule's
// identity is its status:// URL and the cheapest correct response to any
// configuration change is to stop everything and rebuild.
type Engine struct {
	mu      sync.Mutex
	helpers map[string]*RuleHelper
	deps    Deps
}

func NewEngine(deps Deps) *Engine {
	return &Engine{helpers: map[string]*RuleHelper{}, deps: deps}
}

// Reload stops every currently-running helper and constructs a fresh one
// for each URL presently matching status://*/rule/*. A rule that fails
// validation is logged and skipped; it does not abort construction of the
// others.
func (e *Engine) Reload() error {
	urls, err := e.deps.Tree.GetMatchingURLs("status://*/rule/*")
	if err != nil {
		return err
	}

	e.mu.Lock()
	old := e.helpers
	e.helpers = map[string]*RuleHelper{}
	e.mu.Unlock()

	for _, h := range old {
		h.Stop()
	}

	fresh := map[string]*RuleHelper{}
	for _, url := range urls {
		raw, err := e.deps.Tree.Get(url, statustree.Null())
		if err != nil || raw.IsNull() {
			continue
		}
		helper, err := ParseConfig(url, raw, e.deps)
		if err != nil {
			e.deps.Logger.Error("rule: skipped invalid rule", "rule", url, "error", err)
			continue
		}
		helper.Start()
		fresh[url] = helper
	}

	e.mu.Lock()
	e.helpers = fresh
	e.mu.Unlock()
	return nil
}

// Stop cancels every helper. Each RuleHelper.Stop call only returns once
// its own cancellation has taken effect, so by the time Stop returns no
// helper in the set will dispatch another action.
func (e *Engine) Stop() {
	e.mu.Lock()
	helpers := e.helpers
	e.helpers = map[string]*RuleHelper{}
	e.mu.Unlock()

	for _, h := range helpers {
		h.Stop()
	}
}

// Helpers returns a snapshot of the currently live rule helpers, for
// diagnostics and tests.
func (e *Engine) Helpers() []*RuleHelper {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*RuleHelper, 0, len(e.helpers))
	for _, h := range e.helpers {
		out = append(out, h)
	}
	return out
}
