// Package algorithms holds the built-in placement algorithms: a
// capacity-constrained first-fit-decreasing bin packer and a least-loaded
// node picker. Both are pure functions over typed inputs; decoding from the
// request's opaque data map lives in decode.go.
package algorithms

import (
	"sort"

	"github.com/optiplace/optiplace-engine/pkg/model"
)

// Item is one unit of demand to be packed.
type Item struct {
	ID     string
	Demand model.Resources
}

// Bin is one fixed-capacity container in a packing solution.
type Bin struct {
	Index    int
	ItemIDs  []string
	Used     model.Resources
	Capacity model.Resources
	// Oversubscribed marks a bin holding a single item whose demand alone
	// exceeds the capacity template. Such items are never dropped.
	Oversubscribed bool
}

// Remaining returns the bin's headroom per dimension, floored at zero for
// oversubscribed bins.
func (b Bin) Remaining() model.Resources {
	return b.Capacity.Sub(b.Used)
}

// PackFirstFitDecreasing partitions items into the fewest same-capacity bins
// such that no bin exceeds capacity on any dimension. Items are sorted
// descending by CPU demand with memory as tie-break, then placed first-fit
// into bins scanned in creation order. An item that alone exceeds the
// capacity template gets its own oversubscribed bin.
func PackFirstFitDecreasing(items []Item, capacity model.Resources) []Bin {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Demand.CPU != sorted[j].Demand.CPU {
			return sorted[i].Demand.CPU > sorted[j].Demand.CPU
		}
		return sorted[i].Demand.Memory > sorted[j].Demand.Memory
	})

	var bins []Bin
	for _, item := range sorted {
		if !item.Demand.Fits(capacity) {
			bins = append(bins, Bin{
				Index:          len(bins),
				ItemIDs:        []string{item.ID},
				Used:           item.Demand,
				Capacity:       capacity,
				Oversubscribed: true,
			})
			continue
		}

		placed := false
		for i := range bins {
			if bins[i].Oversubscribed {
				continue
			}
			if item.Demand.Fits(bins[i].Remaining()) {
				bins[i].ItemIDs = append(bins[i].ItemIDs, item.ID)
				bins[i].Used = bins[i].Used.Add(item.Demand)
				placed = true
				break
			}
		}
		if !placed {
			bins = append(bins, Bin{
				Index:    len(bins),
				ItemIDs:  []string{item.ID},
				Used:     item.Demand,
				Capacity: capacity,
			})
		}
	}

	return bins
}

// PackingEfficiency returns the mean utilization of the regular bins across
// the dimensions the capacity template defines, in [0,1]. Oversubscribed
// bins are excluded. Zero bins score zero.
func PackingEfficiency(bins []Bin, capacity model.Resources) float64 {
	var sum float64
	var n int
	for _, b := range bins {
		if b.Oversubscribed {
			continue
		}
		var dims, util float64
		if capacity.CPU > 0 {
			util += b.Used.CPU / capacity.CPU
			dims++
		}
		if capacity.Memory > 0 {
			util += b.Used.Memory / capacity.Memory
			dims++
		}
		if capacity.Storage > 0 {
			util += b.Used.Storage / capacity.Storage
			dims++
		}
		if capacity.GPU > 0 {
			util += b.Used.GPU / capacity.GPU
			dims++
		}
		if dims > 0 {
			sum += util / dims
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
