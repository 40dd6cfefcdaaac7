package model

// RequestType classifies an optimization request and selects the algorithm
// (or plugin) that handles it.
type RequestType string

// Built-in request types. Plugins may claim additional, plugin-defined types.
const (
	RequestTypeResource    RequestType = "resource"
	RequestTypeScheduling  RequestType = "scheduling"
	RequestTypePerformance RequestType = "performance"
)

// OptimizationRequest is a single optimization call submitted by a client.
// The ID is caller-assigned and unique per logical call, but not guaranteed
// globally unique across time. A request is immutable once submitted.
type OptimizationRequest struct {
	ID          string         `json:"id"`
	Type        RequestType    `json:"type"`
	Data        map[string]any `json:"data"`
	Constraints map[string]any `json:"constraints,omitempty"`
}
