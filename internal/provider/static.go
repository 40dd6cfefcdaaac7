package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/optiplace/optiplace-engine/pkg/model"
)

// nodeState is one node plus its deployment ledger. The per-node mutex
// serializes capacity mutation so two concurrent placements cannot both
// believe capacity was available.
type nodeState struct {
	mu       sync.Mutex
	node     model.CloudNode
	deployed map[string]model.Resources // workloadID -> claimed resources
}

// StaticAdapter is an in-memory adapter over a fixed node pool. It backs
// tests and local runs, and is the reference implementation of the capacity
// invariant: utilization never exceeds capacity component-wise.
type StaticAdapter struct {
	name    string
	regions []model.GeoRegion

	mu    sync.RWMutex
	nodes map[string]*nodeState

	initialized bool
}

// NewStatic creates a StaticAdapter for the given provider name, seeded with
// nodes and region reference data.
func NewStatic(name string, nodes []model.CloudNode, regions []model.GeoRegion) *StaticAdapter {
	a := &StaticAdapter{
		name:    name,
		regions: regions,
		nodes:   make(map[string]*nodeState, len(nodes)),
	}
	for _, n := range nodes {
		if n.Provider == "" {
			n.Provider = name
		}
		a.nodes[n.ID] = &nodeState{
			node:     n,
			deployed: make(map[string]model.Resources),
		}
	}
	return a
}

// SeedNodes builds count identical available nodes for a provider region.
// Node ids are generated.
func SeedNodes(provider, region string, count int, capacity model.Resources, labels map[string]string) []model.CloudNode {
	nodes := make([]model.CloudNode, 0, count)
	for i := 0; i < count; i++ {
		nodes = append(nodes, model.CloudNode{
			ID:       fmt.Sprintf("%s-%s-%s", provider, region, uuid.NewString()[:8]),
			Provider: provider,
			Region:   region,
			Capacity: capacity,
			Status:   model.NodeAvailable,
			Labels:   labels,
		})
	}
	return nodes
}

// Name implements Adapter.
func (a *StaticAdapter) Name() string { return a.name }

// Initialize implements Adapter.
func (a *StaticAdapter) Initialize(_ context.Context, _ map[string]any) error {
	a.mu.Lock()
	a.initialized = true
	a.mu.Unlock()
	return nil
}

// ListNodes implements Adapter. Returned nodes are copies.
func (a *StaticAdapter) ListNodes(_ context.Context, region string) ([]model.CloudNode, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.initialized {
		return nil, fmt.Errorf("provider %s: not initialized", a.name)
	}

	out := make([]model.CloudNode, 0, len(a.nodes))
	for _, ns := range a.nodes {
		ns.mu.Lock()
		n := ns.node
		ns.mu.Unlock()
		if region != "" && n.Region != region {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// GetNode implements Adapter.
func (a *StaticAdapter) GetNode(_ context.Context, id string) (model.CloudNode, error) {
	a.mu.RLock()
	ns, ok := a.nodes[id]
	a.mu.RUnlock()
	if !ok {
		return model.CloudNode{}, fmt.Errorf("provider %s: unknown node %s", a.name, id)
	}
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.node, nil
}

// DeployWorkload implements Adapter. The capacity check and the utilization
// increment happen under the node's lock.
func (a *StaticAdapter) DeployWorkload(_ context.Context, nodeID string, w model.Workload) (bool, error) {
	a.mu.RLock()
	ns, ok := a.nodes[nodeID]
	a.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("provider %s: unknown node %s", a.name, nodeID)
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.node.Status != model.NodeAvailable {
		return false, nil
	}
	if !w.Resources.Fits(ns.node.Free()) {
		return false, nil
	}
	if _, dup := ns.deployed[w.ID]; dup {
		return false, nil
	}

	ns.node.Utilization = ns.node.Utilization.Add(w.Resources)
	ns.deployed[w.ID] = w.Resources
	return true, nil
}

// RemoveWorkload implements Adapter.
func (a *StaticAdapter) RemoveWorkload(_ context.Context, nodeID, workloadID string) (bool, error) {
	a.mu.RLock()
	ns, ok := a.nodes[nodeID]
	a.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("provider %s: unknown node %s", a.name, nodeID)
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	claimed, ok := ns.deployed[workloadID]
	if !ok {
		return false, nil
	}
	ns.node.Utilization = ns.node.Utilization.Sub(claimed)
	delete(ns.deployed, workloadID)
	return true, nil
}

// GetRegions implements Adapter.
func (a *StaticAdapter) GetRegions(_ context.Context) ([]model.GeoRegion, error) {
	out := make([]model.GeoRegion, len(a.regions))
	copy(out, a.regions)
	return out, nil
}

// HealthCheck implements Adapter. A static pool is healthy once initialized.
func (a *StaticAdapter) HealthCheck(_ context.Context) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.initialized
}

// SetNodeStatus flips a node's availability. Test and operations hook.
func (a *StaticAdapter) SetNodeStatus(nodeID string, status model.NodeStatus) error {
	a.mu.RLock()
	ns, ok := a.nodes[nodeID]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("provider %s: unknown node %s", a.name, nodeID)
	}
	ns.mu.Lock()
	ns.node.Status = status
	ns.mu.Unlock()
	return nil
}
