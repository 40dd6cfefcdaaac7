// Package engine implements the optimization dispatcher: it validates
// requests, memoizes results, routes to a registered plugin or a built-in
// algorithm, and converts every failure into a failed result instead of
// returning an error to the caller.
package engine

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/optiplace/optiplace-engine/internal/algorithms"
	"github.com/optiplace/optiplace-engine/internal/cache"
	"github.com/optiplace/optiplace-engine/internal/errors"
	"github.com/optiplace/optiplace-engine/internal/observability"
	"github.com/optiplace/optiplace-engine/internal/plugin"
	"github.com/optiplace/optiplace-engine/pkg/model"
)

const defaultRequestTimeout = 30 * time.Second

// Options configures an Engine. Cache and Registry are required; the rest
// may be nil or zero for defaults.
type Options struct {
	Cache           *cache.ResultCache
	Registry        *plugin.Registry
	Collector       observability.Collector
	Metrics         *observability.Metrics
	Errors          *errors.Collector
	RequestTimeout  time.Duration
	DecisionLogSize int
}

// Engine dispatches optimization requests. All collaborators are injected
// at construction; the engine holds no global state.
type Engine struct {
	state     *StateMachine
	cache     *cache.ResultCache
	registry  *plugin.Registry
	collector observability.Collector
	metrics   *observability.Metrics
	errs      *errors.Collector
	timeout   time.Duration
	decisions *DecisionLog

	statsMu   sync.Mutex
	lastStats cache.Stats
}

// New creates an Engine in the starting state. Init must run before
// Optimize accepts requests.
func New(opts Options) *Engine {
	collector := opts.Collector
	if collector == nil {
		collector = observability.NopCollector{}
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Engine{
		state:     NewStateMachine(),
		cache:     opts.Cache,
		registry:  opts.Registry,
		collector: collector,
		metrics:   opts.Metrics,
		errs:      opts.Errors,
		timeout:   timeout,
		decisions: NewDecisionLog(opts.DecisionLogSize),
	}
}

// Init readies the engine for dispatch. Calling it again while ready is a
// no-op; calling it after shutdown fails.
func (e *Engine) Init(_ context.Context) error {
	switch e.state.State() {
	case StateReady:
		slog.Warn("engine already initialized")
		return nil
	case StateDraining, StateStopped:
		return errors.New(errors.ErrUninitialized, "engine", "cannot initialize from state %q", e.state.State())
	}
	if e.cache == nil || e.registry == nil {
		return errors.New(errors.ErrUninitialized, "engine", "cache and registry are required")
	}
	e.state.TransitionTo(StateReady, "")
	slog.Info("engine initialized", "timeout", e.timeout)
	return nil
}

// Shutdown stops admitting requests. In-flight requests run to completion
// under their own timeouts.
func (e *Engine) Shutdown() {
	e.state.TransitionTo(StateDraining, "shutdown requested")
	e.state.TransitionTo(StateStopped, "shutdown requested")
}

// State exposes the lifecycle state for the readiness probe.
func (e *Engine) State() State { return e.state.State() }

// IsReady reports whether the engine admits requests.
func (e *Engine) IsReady() bool { return e.state.Ready() }

// Decisions returns the recent-dispatch audit log.
func (e *Engine) Decisions() *DecisionLog { return e.decisions }

// CacheStats exposes cache counters for the debug surface.
func (e *Engine) CacheStats() cache.Stats { return e.cache.Stats() }

// syncCacheMetrics folds the cache's cumulative counters into the prometheus
// instruments as deltas since the previous sync. The lock serializes the
// Stats snapshot so counters never appear to go backwards.
func (e *Engine) syncCacheMetrics() {
	if e.metrics == nil {
		return
	}
	e.statsMu.Lock()
	stats := e.cache.Stats()
	prev := e.lastStats
	e.lastStats = stats
	e.statsMu.Unlock()

	e.metrics.CacheHits.Add(float64(stats.Hits - prev.Hits))
	e.metrics.CacheMisses.Add(float64(stats.Misses - prev.Misses))
	e.metrics.CacheEvictions.Add(float64(stats.Evictions - prev.Evictions))
	e.metrics.CacheSize.Set(float64(stats.Size))
}

// Optimize dispatches one request. It never returns an error: validation
// failures, timeouts, plugin failures, and missing handlers all surface as
// a failed OptimizationResult. Successful results are cached by request
// fingerprint; failed ones are not.
func (e *Engine) Optimize(ctx context.Context, req model.OptimizationRequest) model.OptimizationResult {
	start := time.Now()

	if !e.state.Ready() {
		err := errors.New(errors.ErrUninitialized, "engine", "optimize called before init")
		return e.failed(req, err, "engine", time.Since(start))
	}
	if verr := validateRequest(req); verr != nil {
		return e.failed(req, verr, "engine", time.Since(start))
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// A caller whose fingerprint joins another caller's in-flight computation
	// is neither a cache hit nor the computer; it keeps this handler name.
	handler := "coalesced"
	key := cache.Fingerprint(req)
	result, hit, err := e.cache.GetOrCompute(key, func() (model.OptimizationResult, error) {
		r, h, cerr := e.compute(ctx, req)
		handler = h
		return r, cerr
	})
	duration := time.Since(start)
	e.syncCacheMetrics()

	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) && errors.CodeOf(err) == "" {
			err = errors.Wrap(errors.ErrTimeout, "engine", err)
		}
		return e.failed(req, err, handler, duration)
	}

	e.collector.Record(duration, string(req.Type), hit)
	if e.metrics != nil {
		e.metrics.OptimizeTotal.WithLabelValues(string(req.Type), "success").Inc()
	}
	if hit {
		handler = "cache"
	}
	e.decisions.Add(Decision{
		Time:       start,
		RequestID:  req.ID,
		Type:       string(req.Type),
		Handler:    handler,
		Success:    true,
		DurationMs: float64(duration.Milliseconds()),
	})
	return result
}

// compute runs the actual optimization for a cache miss: a matching enabled
// plugin wins over the built-ins. The returned string names the handler for
// the audit log.
func (e *Engine) compute(ctx context.Context, req model.OptimizationRequest) (model.OptimizationResult, string, error) {
	if p := e.registry.FindPlugin(req); p != nil {
		name := p.Metadata().Name
		result, err := e.runPlugin(ctx, p, req)
		return result, name, err
	}
	result, err := e.runBuiltin(ctx, req)
	return result, "builtin", err
}

func (e *Engine) runPlugin(ctx context.Context, p plugin.Plugin, req model.OptimizationRequest) (model.OptimizationResult, error) {
	name := p.Metadata().Name
	start := time.Now()

	result, err := p.Optimize(ctx, req)
	if err != nil {
		e.countPlugin(name, "error")
		return model.OptimizationResult{}, errors.Wrap(errors.ErrPluginFailed, "plugin."+name, err)
	}
	if !result.Success {
		e.countPlugin(name, "failed")
		return model.OptimizationResult{}, errors.New(errors.ErrPluginFailed, "plugin."+name, "%s", result.Error)
	}

	e.countPlugin(name, "success")
	if result.RequestID == "" {
		result.RequestID = req.ID
	}
	if result.Metrics.DurationMs == 0 {
		result.Metrics.DurationMs = time.Since(start).Milliseconds()
	}
	return result, nil
}

func (e *Engine) runBuiltin(ctx context.Context, req model.OptimizationRequest) (model.OptimizationResult, error) {
	start := time.Now()

	var (
		resultMap map[string]any
		score     float64
	)
	switch req.Type {
	case model.RequestTypeResource:
		items, capacity, err := algorithms.DecodePackingInput(req.Data)
		if err != nil {
			return model.OptimizationResult{}, err
		}
		bins := algorithms.PackFirstFitDecreasing(items, capacity)
		resultMap = algorithms.PackingResultMap(bins)
		score = algorithms.PackingEfficiency(bins, capacity)

	case model.RequestTypeScheduling:
		task, nodes, err := algorithms.DecodeSchedulingInput(req.Data)
		if err != nil {
			return model.OptimizationResult{}, err
		}
		assignment, err := algorithms.PickLeastLoaded(task, nodes)
		if err != nil {
			return model.OptimizationResult{}, err
		}
		resultMap = algorithms.SchedulingResultMap(assignment)
		score = assignment.CombinedScore

	default:
		return model.OptimizationResult{}, errors.New(errors.ErrNoCandidate, "engine",
			"no built-in algorithm or plugin handles request type %q", req.Type)
	}

	if err := ctx.Err(); err != nil {
		return model.OptimizationResult{}, errors.Wrap(errors.ErrTimeout, "engine", err)
	}
	return model.OptimizationResult{
		RequestID: req.ID,
		Success:   true,
		Result:    resultMap,
		Metrics: model.ResultMetrics{
			DurationMs: time.Since(start).Milliseconds(),
			Score:      score,
		},
	}, nil
}

// failed converts an error into the failed-result shape the boundary
// promises, records timing and outcome, and reports the error.
func (e *Engine) failed(req model.OptimizationRequest, err error, handler string, duration time.Duration) model.OptimizationResult {
	code := errors.CodeOf(err)
	outcome := string(code)
	msg := err.Error()
	if code != "" {
		msg = string(code) + ": " + msg
	} else {
		outcome = "error"
	}

	var engErr *errors.EngineError
	if stderrors.As(err, &engErr) && e.errs != nil {
		e.errs.Report(*engErr)
	}
	slog.Warn("optimize failed", "request_id", req.ID, "type", req.Type, "code", code, "error", err)

	e.collector.Record(duration, string(req.Type), false)
	if e.metrics != nil {
		e.metrics.OptimizeTotal.WithLabelValues(string(req.Type), outcome).Inc()
	}
	e.decisions.Add(Decision{
		Time:       time.Now().Add(-duration),
		RequestID:  req.ID,
		Type:       string(req.Type),
		Handler:    handler,
		Success:    false,
		DurationMs: float64(duration.Milliseconds()),
		Error:      msg,
	})

	return model.OptimizationResult{
		RequestID: req.ID,
		Success:   false,
		Error:     msg,
		Metrics: model.ResultMetrics{
			DurationMs: duration.Milliseconds(),
		},
	}
}

func (e *Engine) countPlugin(name, outcome string) {
	if e.metrics != nil {
		e.metrics.PluginExecutions.WithLabelValues(name, outcome).Inc()
	}
}
