package plugin

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/optiplace/optiplace-engine/pkg/model"
)

// Registry is an ordered, thread-safe set of optimization plugins with
// per-plugin configuration. Selection prefers the highest-priority enabled
// plugin whose CanHandle accepts the request; priority ties go to the earlier
// registration.
type Registry struct {
	mu        sync.RWMutex
	entries   []*regEntry // registration order
	byName    map[string]*regEntry
	listeners []Listener
}

type regEntry struct {
	plugin Plugin
	config Config
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*regEntry),
	}
}

// Subscribe adds a lifecycle event listener. Listeners are invoked
// synchronously and must not block.
func (r *Registry) Subscribe(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Register adds a plugin with its configuration. It fails when a plugin with
// the same metadata name is already registered.
func (r *Registry) Register(p Plugin, cfg Config) error {
	md := p.Metadata()
	if md.Name == "" {
		return fmt.Errorf("plugin: cannot register plugin with empty name")
	}

	r.mu.Lock()
	if _, exists := r.byName[md.Name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("plugin: %q is already registered", md.Name)
	}
	e := &regEntry{plugin: p, config: cfg}
	r.entries = append(r.entries, e)
	r.byName[md.Name] = e
	listeners := r.snapshotListeners()
	r.mu.Unlock()

	slog.Info("plugin registered", "plugin", md.Name, "version", md.Version, "priority", cfg.Priority, "enabled", cfg.Enabled)
	emit(listeners, Event{Type: EventRegistered, Plugin: md.Name, Version: md.Version, Timestamp: time.Now()})
	return nil
}

// Unregister removes a plugin by name. No-op error if unknown.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	e, ok := r.byName[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("plugin: %q is not registered", name)
	}
	delete(r.byName, name)
	for i, cand := range r.entries {
		if cand == e {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	md := e.plugin.Metadata()
	listeners := r.snapshotListeners()
	r.mu.Unlock()

	slog.Info("plugin unregistered", "plugin", name)
	emit(listeners, Event{Type: EventUnregistered, Plugin: name, Version: md.Version, Timestamp: time.Now()})
	return nil
}

// Enable marks a plugin eligible for selection.
func (r *Registry) Enable(name string) error {
	return r.setEnabled(name, true)
}

// Disable removes a plugin from selection without unregistering it.
func (r *Registry) Disable(name string) error {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("plugin: %q is not registered", name)
	}
	e.config.Enabled = enabled
	return nil
}

// FindPlugin selects the enabled plugin handling req with the highest
// priority, ties broken by registration order. Returns nil when no plugin
// claims the request.
func (r *Registry) FindPlugin(req model.OptimizationRequest) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *regEntry
	for _, e := range r.entries {
		if !e.config.Enabled {
			continue
		}
		if !e.plugin.CanHandle(req) {
			continue
		}
		// Strict > keeps the earlier registration on ties.
		if best == nil || e.config.Priority > best.config.Priority {
			best = e
		}
	}
	if best == nil {
		return nil
	}
	return best.plugin
}

// EnabledCount returns the number of currently enabled plugins.
func (r *Registry) EnabledCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.config.Enabled {
			n++
		}
	}
	return n
}

// List returns registry entries in registration order.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, Info{
			Metadata: e.plugin.Metadata(),
			Priority: e.config.Priority,
			Enabled:  e.config.Enabled,
		})
	}
	return out
}

// snapshotListeners copies the listener slice. Callers hold r.mu.
func (r *Registry) snapshotListeners() []Listener {
	out := make([]Listener, len(r.listeners))
	copy(out, r.listeners)
	return out
}

func emit(listeners []Listener, ev Event) {
	for _, l := range listeners {
		l(ev)
	}
}
