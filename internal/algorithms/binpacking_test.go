package algorithms

import (
	"reflect"
	"testing"

	"github.com/optiplace/optiplace-engine/pkg/model"
)

func TestPackFirstFitDecreasing_ReferenceExample(t *testing.T) {
	// 5 items against a 100 cpu / 1000 mem template. Descending by cpu the
	// order is 80, 50, 30, 30, 10, and the first-fit scan packs the trailing
	// 10 next to the 80 (the first bin with room), not into the 50+30 bin.
	items := []Item{
		{ID: "i1", Demand: model.Resources{CPU: 30, Memory: 300}},
		{ID: "i2", Demand: model.Resources{CPU: 50, Memory: 500}},
		{ID: "i3", Demand: model.Resources{CPU: 30, Memory: 300}},
		{ID: "i4", Demand: model.Resources{CPU: 80, Memory: 800}},
		{ID: "i5", Demand: model.Resources{CPU: 10, Memory: 100}},
	}
	capacity := model.Resources{CPU: 100, Memory: 1000}

	bins := PackFirstFitDecreasing(items, capacity)

	if len(bins) != 3 {
		t.Fatalf("got %d bins, want 3", len(bins))
	}

	placed := make(map[string]int)
	for _, b := range bins {
		for _, id := range b.ItemIDs {
			placed[id]++
		}
		if b.Used.CPU > capacity.CPU || b.Used.Memory > capacity.Memory {
			t.Errorf("bin %d exceeds capacity: used %+v", b.Index, b.Used)
		}
	}
	for _, it := range items {
		if placed[it.ID] != 1 {
			t.Errorf("item %s placed %d times, want exactly 1", it.ID, placed[it.ID])
		}
	}

	want := [][]string{{"i4", "i5"}, {"i2", "i1"}, {"i3"}}
	wantCPU := []float64{90, 80, 30}
	for i, b := range bins {
		if !reflect.DeepEqual(b.ItemIDs, want[i]) {
			t.Errorf("bin %d = %v, want %v", i, b.ItemIDs, want[i])
		}
		if b.Used.CPU != wantCPU[i] {
			t.Errorf("bin %d cpu = %v, want %v", i, b.Used.CPU, wantCPU[i])
		}
	}
}

func TestPackFirstFitDecreasing_CapacityInvariant(t *testing.T) {
	items := []Item{
		{ID: "a", Demand: model.Resources{CPU: 40, Memory: 100}},
		{ID: "b", Demand: model.Resources{CPU: 40, Memory: 900}},
		{ID: "c", Demand: model.Resources{CPU: 40, Memory: 100}},
		{ID: "d", Demand: model.Resources{CPU: 10, Memory: 500}},
		{ID: "e", Demand: model.Resources{CPU: 10, Memory: 500}},
	}
	capacity := model.Resources{CPU: 100, Memory: 1000}

	bins := PackFirstFitDecreasing(items, capacity)

	for _, b := range bins {
		if b.Used.CPU > capacity.CPU || b.Used.Memory > capacity.Memory {
			t.Errorf("bin %d exceeds capacity: used %+v", b.Index, b.Used)
		}
	}
}

func TestPackFirstFitDecreasing_Coverage(t *testing.T) {
	items := []Item{
		{ID: "a", Demand: model.Resources{CPU: 60, Memory: 100}},
		{ID: "b", Demand: model.Resources{CPU: 60, Memory: 100}},
		{ID: "c", Demand: model.Resources{CPU: 30, Memory: 990}},
		{ID: "d", Demand: model.Resources{CPU: 1, Memory: 1}},
	}
	bins := PackFirstFitDecreasing(items, model.Resources{CPU: 100, Memory: 1000})

	placed := make(map[string]int)
	for _, b := range bins {
		for _, id := range b.ItemIDs {
			placed[id]++
		}
	}
	for _, it := range items {
		if placed[it.ID] != 1 {
			t.Errorf("item %s placed %d times, want exactly 1", it.ID, placed[it.ID])
		}
	}
}

func TestPackFirstFitDecreasing_MemoryConstrains(t *testing.T) {
	// Items fit by cpu but not by memory; the packer must respect every dimension.
	items := []Item{
		{ID: "a", Demand: model.Resources{CPU: 10, Memory: 700}},
		{ID: "b", Demand: model.Resources{CPU: 10, Memory: 700}},
	}
	bins := PackFirstFitDecreasing(items, model.Resources{CPU: 100, Memory: 1000})
	if len(bins) != 2 {
		t.Fatalf("got %d bins, want 2 (memory-bound)", len(bins))
	}
}

func TestPackFirstFitDecreasing_OversizedItemFlagged(t *testing.T) {
	items := []Item{
		{ID: "huge", Demand: model.Resources{CPU: 150, Memory: 100}},
		{ID: "small", Demand: model.Resources{CPU: 10, Memory: 100}},
	}
	capacity := model.Resources{CPU: 100, Memory: 1000}

	bins := PackFirstFitDecreasing(items, capacity)

	if len(bins) != 2 {
		t.Fatalf("got %d bins, want 2", len(bins))
	}

	var oversized *Bin
	for i := range bins {
		if bins[i].Oversubscribed {
			oversized = &bins[i]
		}
	}
	if oversized == nil {
		t.Fatal("expected an oversubscribed bin for the oversized item")
	}
	if len(oversized.ItemIDs) != 1 || oversized.ItemIDs[0] != "huge" {
		t.Errorf("oversubscribed bin = %v, want [huge] alone", oversized.ItemIDs)
	}
	rem := oversized.Remaining()
	if rem.CPU != 0 {
		t.Errorf("oversubscribed remaining cpu = %v, want clamped 0", rem.CPU)
	}

	// No regular item lands in the oversubscribed bin.
	for _, b := range bins {
		if !b.Oversubscribed {
			for _, id := range b.ItemIDs {
				if id == "huge" {
					t.Error("oversized item leaked into a regular bin")
				}
			}
		}
	}
}

func TestPackFirstFitDecreasing_MemoryTieBreak(t *testing.T) {
	// Equal cpu: the item with larger memory is packed first.
	items := []Item{
		{ID: "smallmem", Demand: model.Resources{CPU: 50, Memory: 100}},
		{ID: "bigmem", Demand: model.Resources{CPU: 50, Memory: 900}},
	}
	bins := PackFirstFitDecreasing(items, model.Resources{CPU: 100, Memory: 1000})

	if bins[0].ItemIDs[0] != "bigmem" {
		t.Errorf("first placed = %s, want bigmem (memory tie-break)", bins[0].ItemIDs[0])
	}
}

func TestPackFirstFitDecreasing_Empty(t *testing.T) {
	bins := PackFirstFitDecreasing(nil, model.Resources{CPU: 100, Memory: 1000})
	if len(bins) != 0 {
		t.Fatalf("got %d bins for empty input, want 0", len(bins))
	}
}

func TestPackingEfficiency(t *testing.T) {
	capacity := model.Resources{CPU: 100, Memory: 1000}
	bins := []Bin{
		{Used: model.Resources{CPU: 100, Memory: 1000}, Capacity: capacity},
		{Used: model.Resources{CPU: 50, Memory: 500}, Capacity: capacity},
	}
	got := PackingEfficiency(bins, capacity)
	if got < 0.74 || got > 0.76 {
		t.Errorf("efficiency = %v, want 0.75", got)
	}

	if got := PackingEfficiency(nil, capacity); got != 0 {
		t.Errorf("efficiency of no bins = %v, want 0", got)
	}
}
