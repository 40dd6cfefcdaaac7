// Package provider defines the cloud provider adapter contract and the
// bundled adapters: an in-memory static adapter for tests and local runs,
// and a Kubernetes-backed adapter for edge clusters. Nodes are owned by
// their adapter; callers only see snapshots and mutate capacity through
// DeployWorkload/RemoveWorkload.
package provider

import (
	"context"

	"github.com/optiplace/optiplace-engine/pkg/model"
)

// Adapter is implemented once per cloud or edge backend.
type Adapter interface {
	// Name returns the provider name ("aws", "gcp", "azure", "edge", ...).
	Name() string
	// Initialize prepares the adapter. Must be called before any other method.
	Initialize(ctx context.Context, config map[string]any) error
	// ListNodes returns node snapshots, optionally restricted to one region
	// (empty region means all).
	ListNodes(ctx context.Context, region string) ([]model.CloudNode, error)
	// GetNode returns a snapshot of one node by id.
	GetNode(ctx context.Context, id string) (model.CloudNode, error)
	// DeployWorkload claims capacity for the workload on the node. Returns
	// false without error when the node cannot take the workload (raced
	// capacity, wrong status); an error means the adapter call itself failed.
	DeployWorkload(ctx context.Context, nodeID string, w model.Workload) (bool, error)
	// RemoveWorkload releases the workload's capacity on the node.
	RemoveWorkload(ctx context.Context, nodeID, workloadID string) (bool, error)
	// GetRegions returns the provider's static region reference data.
	GetRegions(ctx context.Context) ([]model.GeoRegion, error)
	// HealthCheck reports whether the backend is reachable.
	HealthCheck(ctx context.Context) bool
}
