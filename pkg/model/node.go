package model

// NodeStatus is the availability state of a cloud node.
type NodeStatus string

// Node availability states as reported by provider adapters.
const (
	NodeAvailable   NodeStatus = "available"
	NodeBusy        NodeStatus = "busy"
	NodeUnreachable NodeStatus = "unreachable"
)

// CloudNode is a schedulable compute node in a provider's pool. Nodes are
// owned by their provider adapter; the resource manager only sees snapshots
// obtained through the adapter interface.
type CloudNode struct {
	ID          string            `json:"id"`
	Provider    string            `json:"provider"`
	Region      string            `json:"region"`
	Capacity    Resources         `json:"capacity"`
	Utilization Resources         `json:"utilization"`
	Status      NodeStatus        `json:"status"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// Free returns the node's remaining capacity per dimension.
func (n CloudNode) Free() Resources {
	return n.Capacity.Sub(n.Utilization)
}
