package manager

import (
	"k8s.io/apimachinery/pkg/labels"

	"github.com/optiplace/optiplace-engine/pkg/model"
)

// candidate is a node that survived filtering. regionFallback marks a node
// kept only because no node matched the workload's preferred regions; its
// final score is halved.
type candidate struct {
	node           model.CloudNode
	regionFallback bool
	score          float64
}

// filterCandidates applies the hard placement constraints: node must be
// available, must fit the workload's demand on its free capacity, must carry
// every required label, and must satisfy data-residency. Preferred regions
// are soft: when at least one node sits in a preferred region only those
// nodes survive; otherwise all eligible nodes are kept as fallbacks.
func filterCandidates(w model.Workload, nodes []model.CloudNode) []candidate {
	preferred := make(map[string]struct{}, len(w.PreferredRegions))
	for _, r := range w.PreferredRegions {
		preferred[r] = struct{}{}
	}
	residency := make(map[string]struct{}, len(w.Constraints.DataResidency))
	for _, r := range w.Constraints.DataResidency {
		residency[r] = struct{}{}
	}

	var selector labels.Selector
	if len(w.RequiredLabels) > 0 {
		selector = labels.SelectorFromSet(labels.Set(w.RequiredLabels))
	}

	var inPreferred, eligible []model.CloudNode
	for _, n := range nodes {
		if n.Status != model.NodeAvailable {
			continue
		}
		if !w.Resources.Fits(n.Free()) {
			continue
		}
		if selector != nil && !selector.Matches(labels.Set(n.Labels)) {
			continue
		}
		if len(residency) > 0 {
			if _, ok := residency[n.Region]; !ok {
				continue
			}
		}
		eligible = append(eligible, n)
		if _, ok := preferred[n.Region]; ok {
			inPreferred = append(inPreferred, n)
		}
	}

	if len(preferred) == 0 || len(inPreferred) > 0 {
		pool := eligible
		fallback := false
		if len(inPreferred) > 0 {
			pool = inPreferred
		}
		out := make([]candidate, 0, len(pool))
		for _, n := range pool {
			out = append(out, candidate{node: n, regionFallback: fallback})
		}
		return out
	}

	// Preferred regions were requested but hold no eligible node: keep the
	// rest of the fleet at a penalty instead of refusing placement.
	out := make([]candidate, 0, len(eligible))
	for _, n := range eligible {
		out = append(out, candidate{node: n, regionFallback: true})
	}
	return out
}
