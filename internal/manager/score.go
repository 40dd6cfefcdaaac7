package manager

import (
	"github.com/optiplace/optiplace-engine/pkg/model"
)

// geoNeutral stands in for the geo component when either side of the
// distance has no known centroid.
const geoNeutral = 0.5

// scoreCandidate combines spare-capacity headroom with geo proximity. The
// geo component participates only when a shard centroid is given; plain
// single-workload scheduling ranks by headroom alone. Region-fallback
// candidates are halved so preferred-region nodes always outrank them at
// comparable headroom.
func (m *Manager) scoreCandidate(w model.Workload, c candidate, centroid *model.GeoRegion) float64 {
	score := spareCapacityScore(w.Resources, c.node)
	if centroid != nil {
		geo := m.geoScore(c.node.Region, *centroid)
		score = m.spareWeight*score + m.geoWeight*geo
	}
	if c.regionFallback {
		score *= 0.5
	}
	return score
}

// spareCapacityScore is the mean, over the dimensions the workload actually
// requests, of the node's post-placement headroom fraction. A node that
// would be left exactly full scores 0 on that dimension.
func spareCapacityScore(demand model.Resources, n model.CloudNode) float64 {
	free := n.Free()
	var sum float64
	var dims int

	dim := func(req, freeAmt, cap float64) {
		if req <= 0 || cap <= 0 {
			return
		}
		dims++
		headroom := (freeAmt - req) / cap
		if headroom < 0 {
			headroom = 0
		}
		sum += headroom
	}

	dim(demand.CPU, free.CPU, n.Capacity.CPU)
	dim(demand.Memory, free.Memory, n.Capacity.Memory)
	dim(demand.Storage, free.Storage, n.Capacity.Storage)
	dim(demand.GPU, free.GPU, n.Capacity.GPU)

	if dims == 0 {
		return 0
	}
	return sum / float64(dims)
}

// geoScore maps the distance between a node's region centroid and the shard
// centroid into (0,1], with 1 at zero distance and a soft 1000 km half-life.
func (m *Manager) geoScore(nodeRegion string, centroid model.GeoRegion) float64 {
	region, ok := m.regionByID(nodeRegion)
	if !ok {
		return geoNeutral
	}
	km := region.DistanceKm(centroid)
	return 1.0 / (1.0 + km/1000.0)
}

func (m *Manager) regionByID(id string) (model.GeoRegion, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.regions {
		if r.ID == id {
			return r, true
		}
	}
	return model.GeoRegion{}, false
}
