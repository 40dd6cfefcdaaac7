// Package manager implements the multi-cloud resource manager: it aggregates
// per-provider node inventories, filters and scores placement candidates,
// and geo-shards bulk workload batches before scheduling each shard.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/optiplace/optiplace-engine/internal/errors"
	"github.com/optiplace/optiplace-engine/internal/observability"
	"github.com/optiplace/optiplace-engine/internal/provider"
	"github.com/optiplace/optiplace-engine/pkg/model"
)

// Options configures a Manager.
type Options struct {
	// Regions is the static geo-region reference table.
	Regions []model.GeoRegion
	// SpareCapacityWeight and GeoDistanceWeight combine the two score
	// components when geo-sharding is active. They must sum to 1.
	SpareCapacityWeight float64
	GeoDistanceWeight   float64
	// MaxConcurrentShards bounds shard parallelism; 0 means GOMAXPROCS.
	MaxConcurrentShards int
	// Metrics may be nil.
	Metrics *observability.Metrics
	// Errors may be nil.
	Errors *errors.Collector
}

// Manager holds registered provider adapters and schedules workloads across
// them. Adapters own their node state; the manager never mutates capacity
// except through an adapter's DeployWorkload.
type Manager struct {
	mu       sync.RWMutex
	adapters map[string]provider.Adapter
	order    []string // registration order
	regions  []model.GeoRegion

	spareWeight float64
	geoWeight   float64
	maxShards   int

	metrics *observability.Metrics
	errs    *errors.Collector
}

// New creates a Manager. Zero-weight options fall back to 0.7 spare / 0.3 geo.
func New(opts Options) *Manager {
	spare, geo := opts.SpareCapacityWeight, opts.GeoDistanceWeight
	if spare == 0 && geo == 0 {
		spare, geo = 0.7, 0.3
	}
	return &Manager{
		adapters:    make(map[string]provider.Adapter),
		regions:     opts.Regions,
		spareWeight: spare,
		geoWeight:   geo,
		maxShards:   opts.MaxConcurrentShards,
		metrics:     opts.Metrics,
		errs:        opts.Errors,
	}
}

// RegisterProvider adds an adapter and merges its region reference data into
// the manager's table. Registering the same provider name twice fails.
func (m *Manager) RegisterProvider(ctx context.Context, a provider.Adapter) error {
	name := a.Name()

	regions, err := a.GetRegions(ctx)
	if err != nil {
		return fmt.Errorf("manager: fetching regions from %s: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.adapters[name]; exists {
		return fmt.Errorf("manager: provider %q is already registered", name)
	}
	m.adapters[name] = a
	m.order = append(m.order, name)

	known := make(map[string]struct{}, len(m.regions))
	for _, r := range m.regions {
		known[r.ID] = struct{}{}
	}
	for _, r := range regions {
		if _, dup := known[r.ID]; !dup {
			m.regions = append(m.regions, r)
			known[r.ID] = struct{}{}
		}
	}

	slog.Info("provider registered", "provider", name, "regions", len(regions))
	return nil
}

// Providers returns the registered provider names in registration order.
func (m *Manager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// NodeFilters restricts ListAllNodes output. Zero values match everything.
type NodeFilters struct {
	Provider string
	Region   string
	Status   model.NodeStatus
}

// ListAllNodes aggregates node snapshots across providers. An adapter
// failure is logged, reported, and skipped rather than failing the whole
// listing.
func (m *Manager) ListAllNodes(ctx context.Context, filters NodeFilters) []model.CloudNode {
	var out []model.CloudNode
	for _, name := range m.Providers() {
		if filters.Provider != "" && filters.Provider != name {
			continue
		}
		nodes, err := m.listProvider(ctx, name, filters.Region)
		if err != nil {
			continue
		}
		for _, n := range nodes {
			if filters.Status != "" && n.Status != filters.Status {
				continue
			}
			out = append(out, n)
		}
	}
	return out
}

// ScheduleWorkload places one workload on the best eligible node across all
// providers. A nil result with nil error means no candidate survived
// filtering — not a failure.
func (m *Manager) ScheduleWorkload(ctx context.Context, w model.Workload) (*model.PlacementResult, error) {
	return m.scheduleAgainst(ctx, w, nil)
}

// scheduleAgainst places w, scoring geo proximity against centroid when it
// is non-nil (shard-aware scheduling).
func (m *Manager) scheduleAgainst(ctx context.Context, w model.Workload, centroid *model.GeoRegion) (*model.PlacementResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrTimeout, "manager", err)
	}

	nodes := m.collectNodes(ctx, w)
	candidates := filterCandidates(w, nodes)
	if len(candidates) == 0 {
		m.countPlacement("", "no_candidate")
		return nil, nil
	}

	for i := range candidates {
		candidates[i].score = m.scoreCandidate(w, candidates[i], centroid)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].node.ID < candidates[j].node.ID
	})

	// Walk candidates best-first; DeployWorkload is the authoritative
	// capacity check, so a refused deploy just moves on to the next node.
	for _, c := range candidates {
		adapter := m.adapter(c.node.Provider)
		if adapter == nil {
			continue
		}
		ok, err := adapter.DeployWorkload(ctx, c.node.ID, w)
		if err != nil {
			m.reportProviderError(c.node.Provider, err)
			continue
		}
		if !ok {
			continue
		}
		m.countPlacement(c.node.Provider, "placed")
		return &model.PlacementResult{
			WorkloadID: w.ID,
			NodeID:     c.node.ID,
			Provider:   c.node.Provider,
			Score:      c.score,
		}, nil
	}

	m.countPlacement("", "exhausted")
	return nil, nil
}

// collectNodes lists nodes from every adapter the workload's provider
// preferences allow. Adapter failures exclude that provider's nodes from
// scoring rather than aborting the call.
func (m *Manager) collectNodes(ctx context.Context, w model.Workload) []model.CloudNode {
	allowed := make(map[string]struct{}, len(w.Constraints.ProviderPreferences))
	for _, p := range w.Constraints.ProviderPreferences {
		allowed[p] = struct{}{}
	}

	var out []model.CloudNode
	for _, name := range m.Providers() {
		if len(allowed) > 0 {
			if _, ok := allowed[name]; !ok {
				continue
			}
		}
		nodes, err := m.listProvider(ctx, name, "")
		if err != nil {
			continue
		}
		out = append(out, nodes...)
	}
	return out
}

func (m *Manager) listProvider(ctx context.Context, name, region string) ([]model.CloudNode, error) {
	adapter := m.adapter(name)
	if adapter == nil {
		return nil, fmt.Errorf("manager: unknown provider %q", name)
	}
	nodes, err := adapter.ListNodes(ctx, region)
	if err != nil {
		m.reportProviderError(name, err)
		return nil, err
	}
	return nodes, nil
}

func (m *Manager) adapter(name string) provider.Adapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.adapters[name]
}

// Regions returns the merged geo-region table.
func (m *Manager) Regions() []model.GeoRegion {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.GeoRegion, len(m.regions))
	copy(out, m.regions)
	return out
}

// NodeCounts returns node counts per provider and status, for the debug
// surface and gauges.
func (m *Manager) NodeCounts(ctx context.Context) map[string]int {
	counts := make(map[string]int)
	byStatus := make(map[[2]string]int)
	for _, n := range m.ListAllNodes(ctx, NodeFilters{}) {
		counts[n.Provider]++
		byStatus[[2]string{n.Provider, string(n.Status)}]++
	}
	if m.metrics != nil {
		for k, v := range byStatus {
			m.metrics.ProviderNodes.WithLabelValues(k[0], k[1]).Set(float64(v))
		}
	}
	return counts
}

func (m *Manager) reportProviderError(name string, err error) {
	slog.Warn("provider call failed", "provider", name, "error", err)
	if m.metrics != nil {
		m.metrics.ProviderErrors.WithLabelValues(name).Inc()
	}
	if m.errs != nil {
		m.errs.Report(*errors.Wrap(errors.ErrProviderError, "provider."+name, err))
	}
}

func (m *Manager) countPlacement(provider, outcome string) {
	if m.metrics == nil {
		return
	}
	if provider == "" {
		provider = "none"
	}
	m.metrics.PlacementsTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *Manager) shardParallelism() int {
	if m.maxShards > 0 {
		return m.maxShards
	}
	return runtime.GOMAXPROCS(0)
}

// observeBatch records batch-level scheduling metrics.
func (m *Manager) observeBatch(start time.Time, shards, requested, scheduled int) {
	if m.metrics == nil {
		return
	}
	m.metrics.ShardCount.Observe(float64(shards))
	m.metrics.ScheduleDuration.Observe(time.Since(start).Seconds())
	if requested > 0 {
		m.metrics.CompletionRatio.Set(float64(scheduled) / float64(requested))
	}
}
