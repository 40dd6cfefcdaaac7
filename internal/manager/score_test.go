package manager

import (
	"testing"

	"github.com/optiplace/optiplace-engine/pkg/model"
)

func TestSpareCapacityScore(t *testing.T) {
	n := model.CloudNode{
		Capacity:    model.Resources{CPU: 10, Memory: 100},
		Utilization: model.Resources{CPU: 2, Memory: 20},
	}

	// CPU headroom after placement: (8-4)/10 = 0.4; memory: (80-30)/100 = 0.5.
	got := spareCapacityScore(model.Resources{CPU: 4, Memory: 30}, n)
	if want := 0.45; !almostEqual(got, want) {
		t.Fatalf("score = %v, want %v", got, want)
	}
}

func TestSpareCapacityScoreIgnoresUnrequestedDims(t *testing.T) {
	n := model.CloudNode{
		Capacity:    model.Resources{CPU: 10, Memory: 100, Storage: 1000, GPU: 4},
		Utilization: model.Resources{Storage: 999, GPU: 4},
	}

	// Only CPU is requested; the exhausted storage and GPU dimensions must
	// not drag the score down.
	got := spareCapacityScore(model.Resources{CPU: 5}, n)
	if want := 0.5; !almostEqual(got, want) {
		t.Fatalf("score = %v, want %v", got, want)
	}
}

func TestSpareCapacityScoreExactFit(t *testing.T) {
	n := model.CloudNode{Capacity: model.Resources{CPU: 4}}
	if got := spareCapacityScore(model.Resources{CPU: 4}, n); got != 0 {
		t.Fatalf("exact fit score = %v, want 0", got)
	}
}

func TestSpareCapacityScoreNoRequestedDims(t *testing.T) {
	n := model.CloudNode{Capacity: model.Resources{CPU: 4}}
	if got := spareCapacityScore(model.Resources{}, n); got != 0 {
		t.Fatalf("empty demand score = %v, want 0", got)
	}
}

func TestFilterCandidatesHardConstraints(t *testing.T) {
	w := model.Workload{Resources: model.Resources{CPU: 4, Memory: 8}}
	busy := node("busy", "aws", "us-east-1", 16, 64, 0, 0)
	busy.Status = model.NodeBusy
	nodes := []model.CloudNode{
		busy,
		node("full", "aws", "us-east-1", 4, 8, 2, 4),
		node("ok", "aws", "us-east-1", 16, 64, 0, 0),
	}

	got := filterCandidates(w, nodes)
	if len(got) != 1 || got[0].node.ID != "ok" {
		t.Fatalf("candidates = %+v, want only \"ok\"", got)
	}
	if got[0].regionFallback {
		t.Fatal("unexpected fallback flag without preferred regions")
	}
}

func TestFilterCandidatesPreferredNarrows(t *testing.T) {
	w := model.Workload{
		Resources:        model.Resources{CPU: 1},
		PreferredRegions: []string{"eu-west-1"},
	}
	nodes := []model.CloudNode{
		node("us", "aws", "us-east-1", 8, 32, 0, 0),
		node("eu", "aws", "eu-west-1", 8, 32, 0, 0),
	}

	got := filterCandidates(w, nodes)
	if len(got) != 1 || got[0].node.ID != "eu" || got[0].regionFallback {
		t.Fatalf("candidates = %+v, want only non-fallback \"eu\"", got)
	}
}

func TestFilterCandidatesFallbackWhenPreferredEmpty(t *testing.T) {
	w := model.Workload{
		Resources:        model.Resources{CPU: 1},
		PreferredRegions: []string{"ap-south-1"},
	}
	nodes := []model.CloudNode{node("us", "aws", "us-east-1", 8, 32, 0, 0)}

	got := filterCandidates(w, nodes)
	if len(got) != 1 || !got[0].regionFallback {
		t.Fatalf("candidates = %+v, want one fallback candidate", got)
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
