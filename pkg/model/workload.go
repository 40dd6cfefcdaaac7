package model

// WorkloadConstraints are hard and soft placement constraints attached to a
// workload. DataResidency lists regions the workload's data may live in;
// ProviderPreferences, when non-empty, restricts candidates to those providers.
type WorkloadConstraints struct {
	MaxLatencyMs        int      `json:"maxLatencyMs,omitempty"`
	DataResidency       []string `json:"dataResidency,omitempty"`
	ProviderPreferences []string `json:"providerPreferences,omitempty"`
}

// Workload is an immutable scheduling input: one unit of work to be placed on
// at most one node per scheduling call.
type Workload struct {
	ID               string              `json:"id"`
	Resources        Resources           `json:"resources"`
	PreferredRegions []string            `json:"preferredRegions,omitempty"`
	RequiredLabels   map[string]string   `json:"requiredLabels,omitempty"`
	Constraints      WorkloadConstraints `json:"constraints,omitempty"`
}

// PlacementResult records one successful placement. Unplaceable workloads
// produce no result at all; callers reconcile counts themselves.
type PlacementResult struct {
	WorkloadID string  `json:"workloadId"`
	NodeID     string  `json:"nodeId"`
	Provider   string  `json:"provider"`
	Score      float64 `json:"score"`
}
