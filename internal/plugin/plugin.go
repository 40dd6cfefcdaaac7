// Package plugin defines the optimization plugin contract and the registry
// that selects a plugin for a request. Plugins are externally supplied
// optimizers that may supersede the built-in algorithms for a request type.
package plugin

import (
	"context"
	"time"

	"github.com/optiplace/optiplace-engine/pkg/model"
)

// Plugin is the capability contract an external optimizer implements.
type Plugin interface {
	// Metadata returns the plugin's identity. Name must be unique per registry.
	Metadata() model.PluginMetadata
	// CanHandle reports whether the plugin wants this specific request.
	// It may inspect data and constraints, not just the type.
	CanHandle(req model.OptimizationRequest) bool
	// Optimize runs the plugin's algorithm. The context carries the
	// dispatcher's per-request deadline.
	Optimize(ctx context.Context, req model.OptimizationRequest) (model.OptimizationResult, error)
}

// Config is per-plugin registry configuration, held separately from the
// plugin's own metadata.
type Config struct {
	Priority int            `json:"priority"`
	Enabled  bool           `json:"enabled"`
	Settings map[string]any `json:"settings,omitempty"`
}

// EventType is a registry lifecycle event kind.
type EventType string

// Registry lifecycle events.
const (
	EventRegistered   EventType = "REGISTERED"
	EventUnregistered EventType = "UNREGISTERED"
)

// Event is a lifecycle notification for observability collaborators.
type Event struct {
	Type      EventType `json:"type"`
	Plugin    string    `json:"plugin"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// Listener receives lifecycle events synchronously and must not block.
type Listener func(Event)

// Info is a read-only registry entry snapshot, served on the API.
type Info struct {
	Metadata model.PluginMetadata `json:"metadata"`
	Priority int                  `json:"priority"`
	Enabled  bool                 `json:"enabled"`
}
