// Package health exposes liveness, readiness, metrics, and debug endpoints
// on a port separate from the optimization API.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/optiplace/optiplace-engine/internal/cache"
	"github.com/optiplace/optiplace-engine/internal/engine"
	"github.com/optiplace/optiplace-engine/internal/errors"
	"github.com/optiplace/optiplace-engine/internal/observability"
)

// ReadinessChecker reports whether the engine admits requests.
type ReadinessChecker interface {
	IsReady() bool
}

// CacheInspector exposes result-cache counters for the debug surface.
type CacheInspector interface {
	CacheStats() cache.Stats
}

// InventoryLister returns node counts per provider.
type InventoryLister interface {
	NodeCounts(ctx context.Context) map[string]int
}

// ErrorLister returns the errors active within the report TTL.
type ErrorLister interface {
	Active() []errors.EngineError
}

// DecisionLister returns recent dispatch decisions, newest first.
type DecisionLister interface {
	Recent() []engine.Decision
}

// Server serves /healthz, /readyz, /metrics, and, when debug endpoints are
// enabled, pprof plus the engine's introspection routes.
type Server struct {
	httpServer *http.Server
	readiness  ReadinessChecker
	cache      CacheInspector
	inventory  InventoryLister
	errs       ErrorLister
	decisions  DecisionLister
	listener   net.Listener
}

// Options wires the server's collaborators. Any may be nil; its endpoint
// then reports 404.
type Options struct {
	Metrics     *observability.Metrics
	Readiness   ReadinessChecker
	Cache       CacheInspector
	Inventory   InventoryLister
	Errors      ErrorLister
	Decisions   DecisionLister
	EnableDebug bool
}

// NewServer creates the health server on the given port. Pass port=0 to let
// the OS pick a free port (useful for tests).
func NewServer(port int, opts Options) *Server {
	s := &Server{
		readiness: opts.Readiness,
		cache:     opts.Cache,
		inventory: opts.Inventory,
		errs:      opts.Errors,
		decisions: opts.Decisions,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	if opts.Metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(opts.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	if opts.EnableDebug {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		if s.cache != nil {
			mux.HandleFunc("/debug/cache", s.handleDebugCache)
		}
		if s.inventory != nil {
			mux.HandleFunc("/debug/inventory", s.handleDebugInventory)
		}
		if s.errs != nil {
			mux.HandleFunc("/debug/errors", s.handleDebugErrors)
		}
		if s.decisions != nil {
			mux.HandleFunc("/debug/decisions", s.handleDebugDecisions)
		}
	}

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", port),
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("health server listen: %w", err)
	}
	s.listener = ln
	// Update Addr to the actual address (important when port=0).
	s.httpServer.Addr = ln.Addr().String()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("health server exited", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	ready := s.readiness != nil && s.readiness.IsReady()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]bool{"ready": ready})
}

func (s *Server) handleDebugCache(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.CacheStats())
}

func (s *Server) handleDebugInventory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.inventory.NodeCounts(r.Context()))
}

func (s *Server) handleDebugErrors(w http.ResponseWriter, _ *http.Request) {
	active := s.errs.Active()
	if active == nil {
		active = []errors.EngineError{}
	}
	writeJSON(w, http.StatusOK, active)
}

func (s *Server) handleDebugDecisions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.decisions.Recent())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
