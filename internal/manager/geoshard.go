package manager

import (
	"context"
	"sort"
	"time"

	"github.com/optiplace/optiplace-engine/pkg/model"
)

// shard groups workloads that resolve to the same geo region. Workloads
// inside a shard keep the batch's input order.
type shard struct {
	region    model.GeoRegion
	workloads []model.Workload
}

// ScheduleWithGeoSharding partitions a workload batch by geo region, then
// schedules the shards concurrently. Each workload inside a shard is placed
// sequentially so earlier workloads claim capacity before later ones see it.
// Workloads that found no node are simply absent from the result.
func (m *Manager) ScheduleWithGeoSharding(ctx context.Context, workloads []model.Workload) []model.PlacementResult {
	start := time.Now()
	shards := m.partition(workloads)

	type shardResult struct {
		key     string
		results []model.PlacementResult
	}

	sem := make(chan struct{}, m.shardParallelism())
	out := make(chan shardResult, len(shards))

	for key, sh := range shards {
		go func(key string, sh shard) {
			sem <- struct{}{}
			defer func() { <-sem }()

			results := make([]model.PlacementResult, 0, len(sh.workloads))
			centroid := sh.region
			for _, w := range sh.workloads {
				placed, err := m.scheduleAgainst(ctx, w, &centroid)
				if err != nil || placed == nil {
					continue
				}
				results = append(results, *placed)
			}
			out <- shardResult{key: key, results: results}
		}(key, sh)
	}

	collected := make(map[string][]model.PlacementResult, len(shards))
	for range shards {
		r := <-out
		collected[r.key] = r.results
	}

	// Shard keys are emitted in sorted order so the combined slice is
	// deterministic across runs.
	keys := make([]string, 0, len(collected))
	for k := range collected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var combined []model.PlacementResult
	for _, k := range keys {
		combined = append(combined, collected[k]...)
	}

	m.observeBatch(start, len(shards), len(workloads), len(combined))
	return combined
}

// partition assigns each workload to the shard of its nearest known region:
// the first preferred region found in the reference table wins; workloads
// with no resolvable preference land in the default shard keyed by the first
// configured region.
func (m *Manager) partition(workloads []model.Workload) map[string]shard {
	regions := m.Regions()
	byID := make(map[string]model.GeoRegion, len(regions))
	for _, r := range regions {
		byID[r.ID] = r
	}

	var defaultRegion model.GeoRegion
	if len(regions) > 0 {
		defaultRegion = regions[0]
	}

	shards := make(map[string]shard)
	for _, w := range workloads {
		region := defaultRegion
		for _, pref := range w.PreferredRegions {
			if r, ok := byID[pref]; ok {
				region = r
				break
			}
		}
		s := shards[region.ID]
		s.region = region
		s.workloads = append(s.workloads, w)
		shards[region.ID] = s
	}
	return shards
}
