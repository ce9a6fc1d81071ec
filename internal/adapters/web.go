package adapters

import (
	"strings"
	"sync"

	"github.com/DonGar/house-monitor/internal/statustree"
)

// WebRegistry tracks every mount URL a WebAdapter has registered, and
// answers the httpapi.WebUpdatable question for the HTTP PUT handler: is
// this path inside some web-adapter's area. One registry is shared by
// every WebAdapter in a running process.
type WebRegistry struct {
	mu     sync.RWMutex
	mounts []string
}

// NewWebRegistry returns an empty registry.
func NewWebRegistry() *WebRegistry {
	return &WebRegistry{}
}

func (r *WebRegistry) register(mount string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mounts = append(r.mounts, mount)
}

func (r *WebRegistry) unregister(mount string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.mounts {
		if m == mount {
			r.mounts = append(r.mounts[:i], r.mounts[i+1:]...)
			return
		}
	}
}

// IsWebUpdatable reports whether path is at or under some registered
// mount, satisfying httpapi.WebUpdatable.
func (r *WebRegistry) IsWebUpdatable(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.mounts {
		if path == m || strings.HasPrefix(path, m+"/") {
			return true
		}
	}
	return false
}

// WebAdapter initializes its mount to an empty mapping and registers it
// as web-updatable; it holds no other state of its own since incoming
// writes arrive and are applied through the ordinary PUT /status path.
type WebAdapter struct {
	deps     Deps
	mount    string
	registry *WebRegistry
}

// NewWebAdapter builds a WebAdapter whose mount is registered against
// registry.
func NewWebAdapter(deps Deps, mount string, registry *WebRegistry) *WebAdapter {
	return &WebAdapter{deps: deps, mount: mount, registry: registry}
}

func (a *WebAdapter) MountURL() string { return a.mount }

func (a *WebAdapter) Start() error {
	a.registry.register(a.mount)
	return a.deps.Tree.Set(a.mount, statustree.FromAny(map[string]interface{}{}), nil)
}

func (a *WebAdapter) Stop() error {
	a.registry.unregister(a.mount)
	return a.deps.Tree.Set(a.mount, statustree.FromAny(map[string]interface{}{}), nil)
}
