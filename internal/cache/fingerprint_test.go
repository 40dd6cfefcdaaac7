package cache

import (
	"testing"

	"github.com/optiplace/optiplace-engine/pkg/model"
)

func TestFingerprint_Deterministic(t *testing.T) {
	req := model.OptimizationRequest{
		ID:   "req-1",
		Type: model.RequestTypeResource,
		Data: map[string]any{
			"items":        []any{map[string]any{"id": "a", "cpu": 1.0}},
			"nodeCapacity": map[string]any{"cpu": 100.0, "memory": 1000.0},
		},
	}
	if Fingerprint(req) != Fingerprint(req) {
		t.Error("fingerprint of identical request differs across calls")
	}
}

func TestFingerprint_OrderIndependent(t *testing.T) {
	// Structurally equal but built in different insertion orders.
	a := model.OptimizationRequest{
		ID:   "req-1",
		Type: model.RequestTypeScheduling,
		Data: map[string]any{
			"task":  map[string]any{"cpu": 10.0, "memory": 20.0},
			"nodes": []any{"n1", "n2"},
		},
		Constraints: map[string]any{"maxLatencyMs": 50.0, "region": "eu"},
	}
	b := model.OptimizationRequest{
		ID:   "req-1",
		Type: model.RequestTypeScheduling,
		Constraints: map[string]any{"region": "eu", "maxLatencyMs": 50.0},
		Data: map[string]any{
			"nodes": []any{"n1", "n2"},
			"task":  map[string]any{"memory": 20.0, "cpu": 10.0},
		},
	}
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("structurally equal requests must share a fingerprint")
	}
}

func TestFingerprint_Distinguishes(t *testing.T) {
	base := model.OptimizationRequest{
		ID:   "req-1",
		Type: model.RequestTypeResource,
		Data: map[string]any{"x": 1.0},
	}

	variants := []model.OptimizationRequest{
		{ID: "req-2", Type: base.Type, Data: base.Data},
		{ID: base.ID, Type: model.RequestTypeScheduling, Data: base.Data},
		{ID: base.ID, Type: base.Type, Data: map[string]any{"x": 2.0}},
		{ID: base.ID, Type: base.Type, Data: base.Data, Constraints: map[string]any{"y": 1.0}},
	}
	seen := map[string]int{Fingerprint(base): -1}
	for i, v := range variants {
		fp := Fingerprint(v)
		if prev, dup := seen[fp]; dup {
			t.Errorf("variant %d collides with %d", i, prev)
		}
		seen[fp] = i
	}
}

func TestFingerprint_SliceOrderMatters(t *testing.T) {
	a := model.OptimizationRequest{ID: "r", Type: "resource",
		Data: map[string]any{"items": []any{"a", "b"}}}
	b := model.OptimizationRequest{ID: "r", Type: "resource",
		Data: map[string]any{"items": []any{"b", "a"}}}
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("slice order is semantic and must change the fingerprint")
	}
}

func TestFingerprint_NestedNil(t *testing.T) {
	req := model.OptimizationRequest{
		ID:   "r",
		Type: "resource",
		Data: map[string]any{"opt": nil, "nested": map[string]any{"deep": nil}},
	}
	// Must not panic and must be stable.
	if Fingerprint(req) != Fingerprint(req) {
		t.Error("nil handling is not deterministic")
	}
}
