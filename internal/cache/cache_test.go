package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	testingclock "k8s.io/utils/clock/testing"

	"github.com/optiplace/optiplace-engine/pkg/model"
)

func newTestCache(maxSize int, ttl time.Duration) (*ResultCache, *testingclock.FakePassiveClock) {
	clk := testingclock.NewFakePassiveClock(time.Now())
	return New(maxSize, ttl, clk), clk
}

func result(id string) model.OptimizationResult {
	return model.OptimizationResult{
		RequestID: id,
		Success:   true,
		Result:    map[string]any{"answer": id},
	}
}

func TestCache_SetGet(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)

	c.Set("k1", result("r1"))
	got, ok := c.Get("k1")
	if !ok {
		t.Fatal("expected k1 to be present")
	}
	if got.RequestID != "r1" {
		t.Errorf("RequestID = %q, want r1", got.RequestID)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected missing key to be absent")
	}
}

func TestCache_EvictsLeastRecentlyTouched(t *testing.T) {
	c, _ := newTestCache(3, time.Minute)

	c.Set("a", result("a"))
	c.Set("b", result("b"))
	c.Set("c", result("c"))

	// Touch "a" so "b" is now the least recently used.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be present")
	}

	c.Set("d", result("d"))

	if c.Has("b") {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if !c.Has(k) {
			t.Errorf("%s should still be resident", k)
		}
	}

	stats := c.Stats()
	if stats.Size != 3 {
		t.Errorf("Size = %d, want 3", stats.Size)
	}
	if stats.Evictions < 1 {
		t.Errorf("Evictions = %d, want >= 1", stats.Evictions)
	}
}

func TestCache_CapacityNeverExceeded(t *testing.T) {
	const maxSize = 5
	c, _ := newTestCache(maxSize, time.Minute)

	for i := 0; i < maxSize+1; i++ {
		c.Set(fmt.Sprintf("k%d", i), result("r"))
	}

	stats := c.Stats()
	if stats.Size != maxSize {
		t.Errorf("Size = %d, want %d", stats.Size, maxSize)
	}
	if stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	const ttl = time.Minute
	c, clk := newTestCache(4, ttl)

	c.Set("k", result("r"))
	clk.SetTime(clk.Now().Add(ttl + time.Millisecond))

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expired entry to be a miss")
	}

	stats := c.Stats()
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if stats.Size != 0 {
		t.Errorf("Size = %d, want 0 (expired entry deleted on access)", stats.Size)
	}
}

func TestCache_HasDoesNotCountStats(t *testing.T) {
	c, clk := newTestCache(4, time.Minute)

	c.Set("k", result("r"))
	if !c.Has("k") {
		t.Fatal("Has should report resident entry")
	}

	stats := c.Stats()
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("Has must not count hit/miss, got %+v", stats)
	}

	// Expired entry found by Has is deleted.
	clk.SetTime(clk.Now().Add(2 * time.Minute))
	if c.Has("k") {
		t.Error("Has should report expired entry as absent")
	}
	if c.Stats().Size != 0 {
		t.Error("expired entry should be deleted by Has")
	}
}

func TestCache_SetExistingKeyRefreshesTTL(t *testing.T) {
	const ttl = time.Minute
	c, clk := newTestCache(4, ttl)

	c.Set("k", result("r1"))
	clk.SetTime(clk.Now().Add(45 * time.Second))
	c.Set("k", result("r2"))
	clk.SetTime(clk.Now().Add(30 * time.Second))

	// 75s after first insert but only 30s after refresh.
	got, ok := c.Get("k")
	if !ok {
		t.Fatal("refreshed entry should still be resident")
	}
	if got.RequestID != "r2" {
		t.Errorf("RequestID = %q, want r2", got.RequestID)
	}
}

func TestCache_DeleteAndClear(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)

	c.Set("a", result("a"))
	c.Set("b", result("b"))

	c.Delete("a")
	if c.Has("a") {
		t.Error("a should be deleted")
	}
	c.Delete("a") // idempotent

	c.Clear()
	if got := c.Stats().Size; got != 0 {
		t.Errorf("Size after Clear = %d, want 0", got)
	}
}

func TestCache_StatsCounters(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)

	c.Set("k", result("r"))
	c.Get("k")
	c.Get("k")
	c.Get("nope")

	stats := c.Stats()
	if stats.Hits != 2 {
		t.Errorf("Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
}

func TestGetOrCompute_SingleFlight(t *testing.T) {
	c, _ := newTestCache(8, time.Minute)

	var computes atomic.Int32
	release := make(chan struct{})

	const callers = 16
	var wg sync.WaitGroup
	results := make([]model.OptimizationResult, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = c.GetOrCompute("cold", func() (model.OptimizationResult, error) {
				computes.Add(1)
				<-release
				return result("computed"), nil
			})
		}(i)
	}

	// Give the goroutines time to pile onto the flight, then release it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := computes.Load(); got != 1 {
		t.Errorf("compute ran %d times, want 1", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i].RequestID != "computed" {
			t.Errorf("caller %d got %q, want computed", i, results[i].RequestID)
		}
	}

	// The computed value is now resident.
	if _, hit, _ := c.GetOrCompute("cold", nil); !hit {
		t.Error("expected subsequent call to be a cache hit")
	}
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	c, _ := newTestCache(8, time.Minute)
	boom := errors.New("solver exploded")

	_, _, err := c.GetOrCompute("k", func() (model.OptimizationResult, error) {
		return model.OptimizationResult{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if c.Has("k") {
		t.Error("failed computation must not be cached")
	}

	// Next call recomputes.
	var ran bool
	_, hit, err := c.GetOrCompute("k", func() (model.OptimizationResult, error) {
		ran = true
		return result("second"), nil
	})
	if err != nil || hit {
		t.Fatalf("unexpected hit=%v err=%v", hit, err)
	}
	if !ran {
		t.Error("expected recomputation after failed flight")
	}
}
