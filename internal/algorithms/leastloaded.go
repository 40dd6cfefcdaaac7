package algorithms

import (
	"github.com/optiplace/optiplace-engine/internal/errors"
)

// Task is the resource requirement of one schedulable task.
type Task struct {
	CPU    float64
	Memory float64
}

// NodeLoad is a candidate node's current load in percent per dimension.
type NodeLoad struct {
	ID         string
	CPULoad    float64
	MemoryLoad float64
}

// Assignment is a least-loaded scheduling decision: the chosen node and its
// estimated post-assignment load, clamped to 100 per dimension.
type Assignment struct {
	NodeID        string
	EstimatedCPU  float64
	EstimatedMem  float64
	CombinedScore float64
}

// PickLeastLoaded selects the node minimizing cpuLoad+memoryLoad, ties broken
// by input order. It fails only on an empty candidate set; estimated load
// beyond 100 is clamped, not rejected — headroom enforcement belongs to the
// constraint layer.
func PickLeastLoaded(task Task, nodes []NodeLoad) (Assignment, error) {
	if len(nodes) == 0 {
		return Assignment{}, errors.New(errors.ErrNoCandidate, "algorithms", "no suitable node: empty candidate set")
	}

	best := 0
	bestLoad := nodes[0].CPULoad + nodes[0].MemoryLoad
	for i := 1; i < len(nodes); i++ {
		if load := nodes[i].CPULoad + nodes[i].MemoryLoad; load < bestLoad {
			best = i
			bestLoad = load
		}
	}

	chosen := nodes[best]
	est := Assignment{
		NodeID:       chosen.ID,
		EstimatedCPU: min(100, chosen.CPULoad+task.CPU),
		EstimatedMem: min(100, chosen.MemoryLoad+task.Memory),
	}
	est.CombinedScore = 1 - (est.EstimatedCPU+est.EstimatedMem)/200
	return est, nil
}
