package algorithms

import (
	"github.com/optiplace/optiplace-engine/internal/errors"
	"github.com/optiplace/optiplace-engine/pkg/model"
)

// DecodePackingInput extracts items and the node capacity template from a
// resource request's data map. Expected shape:
//
//	{"items": [{"id": ..., "cpu": ..., "memory": ...}, ...],
//	 "nodeCapacity": {"cpu": ..., "memory": ...}}
func DecodePackingInput(data map[string]any) ([]Item, model.Resources, error) {
	rawItems, ok := data["items"].([]any)
	if !ok || len(rawItems) == 0 {
		return nil, model.Resources{}, errors.New(errors.ErrValidationFailed, "algorithms", "data.items must be a non-empty list")
	}

	rawCap, ok := data["nodeCapacity"].(map[string]any)
	if !ok {
		return nil, model.Resources{}, errors.New(errors.ErrValidationFailed, "algorithms", "data.nodeCapacity must be an object")
	}
	capacity := decodeResources(rawCap)
	if capacity.IsZero() {
		return nil, model.Resources{}, errors.New(errors.ErrValidationFailed, "algorithms", "data.nodeCapacity must define at least one dimension")
	}

	items := make([]Item, 0, len(rawItems))
	for i, raw := range rawItems {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, model.Resources{}, errors.New(errors.ErrValidationFailed, "algorithms", "data.items[%d] must be an object", i)
		}
		id, _ := m["id"].(string)
		if id == "" {
			return nil, model.Resources{}, errors.New(errors.ErrValidationFailed, "algorithms", "data.items[%d] missing id", i)
		}
		items = append(items, Item{ID: id, Demand: decodeResources(m)})
	}
	return items, capacity, nil
}

// PackingResultMap renders a packing solution as the opaque result payload.
func PackingResultMap(bins []Bin) map[string]any {
	out := make([]any, 0, len(bins))
	var oversubscribed []any
	for _, b := range bins {
		rem := b.Remaining()
		out = append(out, map[string]any{
			"items": toAnySlice(b.ItemIDs),
			"remaining": map[string]any{
				"cpu":     rem.CPU,
				"memory":  rem.Memory,
				"storage": rem.Storage,
				"gpu":     rem.GPU,
			},
			"oversubscribed": b.Oversubscribed,
		})
		if b.Oversubscribed {
			oversubscribed = append(oversubscribed, b.ItemIDs[0])
		}
	}
	result := map[string]any{
		"bins":     out,
		"binCount": len(bins),
	}
	if len(oversubscribed) > 0 {
		result["oversubscribedItems"] = oversubscribed
	}
	return result
}

// DecodeSchedulingInput extracts the task and candidate nodes from a
// scheduling request's data map. Expected shape:
//
//	{"task": {"cpu": ..., "memory": ...},
//	 "nodes": [{"id": ..., "cpuLoad": ..., "memoryLoad": ...}, ...]}
func DecodeSchedulingInput(data map[string]any) (Task, []NodeLoad, error) {
	rawTask, ok := data["task"].(map[string]any)
	if !ok {
		return Task{}, nil, errors.New(errors.ErrValidationFailed, "algorithms", "data.task must be an object")
	}
	task := Task{
		CPU:    toFloat(rawTask["cpu"]),
		Memory: toFloat(rawTask["memory"]),
	}

	rawNodes, ok := data["nodes"].([]any)
	if !ok {
		return Task{}, nil, errors.New(errors.ErrValidationFailed, "algorithms", "data.nodes must be a list")
	}
	nodes := make([]NodeLoad, 0, len(rawNodes))
	for i, raw := range rawNodes {
		m, ok := raw.(map[string]any)
		if !ok {
			return Task{}, nil, errors.New(errors.ErrValidationFailed, "algorithms", "data.nodes[%d] must be an object", i)
		}
		id, _ := m["id"].(string)
		if id == "" {
			return Task{}, nil, errors.New(errors.ErrValidationFailed, "algorithms", "data.nodes[%d] missing id", i)
		}
		nodes = append(nodes, NodeLoad{
			ID:         id,
			CPULoad:    toFloat(m["cpuLoad"]),
			MemoryLoad: toFloat(m["memoryLoad"]),
		})
	}
	return task, nodes, nil
}

// SchedulingResultMap renders an assignment as the opaque result payload.
func SchedulingResultMap(a Assignment) map[string]any {
	return map[string]any{
		"nodeId": a.NodeID,
		"estimatedLoad": map[string]any{
			"cpu":    a.EstimatedCPU,
			"memory": a.EstimatedMem,
		},
	}
}

// decodeResources reads cpu/memory/storage/gpu keys from a data map,
// tolerating absent dimensions.
func decodeResources(m map[string]any) model.Resources {
	return model.Resources{
		CPU:     toFloat(m["cpu"]),
		Memory:  toFloat(m["memory"]),
		Storage: toFloat(m["storage"]),
		GPU:     toFloat(m["gpu"]),
	}
}

// toFloat coerces JSON-decoded numbers. Ints appear when requests are built
// in-process rather than decoded from JSON.
func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return 0
	}
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
