// Package server fronts the engine with a small JSON-over-HTTP API:
// optimization dispatch, batch scheduling, and read-only inventory and
// plugin listings.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/optiplace/optiplace-engine/internal/engine"
	"github.com/optiplace/optiplace-engine/internal/manager"
	"github.com/optiplace/optiplace-engine/internal/plugin"
	"github.com/optiplace/optiplace-engine/pkg/model"
)

// maxBodyBytes caps request bodies after decompression.
const maxBodyBytes = 8 << 20

// Options wires the API server's collaborators.
type Options struct {
	Engine   *engine.Engine
	Manager  *manager.Manager
	Registry *plugin.Registry
	APIKey   string
	Logger   *slog.Logger
}

// Server is the public optimization API.
type Server struct {
	httpServer *http.Server
	engine     *engine.Engine
	manager    *manager.Manager
	registry   *plugin.Registry
	listener   net.Listener
	logger     *slog.Logger
}

// NewServer creates the API server on the given port. Pass port=0 to let
// the OS pick a free port (useful for tests).
func NewServer(port int, opts Options) *Server {
	s := &Server{
		engine:   opts.Engine,
		manager:  opts.Manager,
		registry: opts.Registry,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/optimize", s.handleOptimize)
	mux.HandleFunc("POST /v1/schedule", s.handleSchedule)
	mux.HandleFunc("GET /v1/nodes", s.handleNodes)
	mux.HandleFunc("GET /v1/plugins", s.handlePlugins)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger
	handler := withCompression(mux)
	handler = withAuth(opts.APIKey, handler)
	handler = withLogging(logger, handler)

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", port),
		Handler:        handler,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("api server listen: %w", err)
	}
	s.listener = ln
	s.httpServer.Addr = ln.Addr().String()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api server exited", "error", err)
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

// handleOptimize dispatches one optimization request. The response is
// always 200 with a well-formed result; failures are reported through the
// result's success/error fields, matching the in-process contract.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req model.OptimizationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result := s.engine.Optimize(r.Context(), req)
	writeJSON(w, http.StatusOK, result)
}

type scheduleRequest struct {
	Workloads []model.Workload `json:"workloads"`
}

type scheduleResponse struct {
	Placements      []model.PlacementResult `json:"placements"`
	Requested       int                     `json:"requested"`
	Scheduled       int                     `json:"scheduled"`
	CompletionRatio float64                 `json:"completionRatio"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Workloads) == 0 {
		writeError(w, http.StatusBadRequest, "workloads must not be empty")
		return
	}

	placements := s.manager.ScheduleWithGeoSharding(r.Context(), req.Workloads)
	if placements == nil {
		placements = []model.PlacementResult{}
	}
	resp := scheduleResponse{
		Placements: placements,
		Requested:  len(req.Workloads),
		Scheduled:  len(placements),
	}
	resp.CompletionRatio = float64(resp.Scheduled) / float64(resp.Requested)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := manager.NodeFilters{
		Provider: q.Get("provider"),
		Region:   q.Get("region"),
		Status:   model.NodeStatus(q.Get("status")),
	}

	nodes := s.manager.ListAllNodes(r.Context(), filters)
	if nodes == nil {
		nodes = []model.CloudNode{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"count": len(nodes),
	})
}

func (s *Server) handlePlugins(w http.ResponseWriter, _ *http.Request) {
	plugins := s.registry.List()
	if plugins == nil {
		plugins = []plugin.Info{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"plugins": plugins,
		"enabled": s.registry.EnabledCount(),
	})
}

// decodeBody decodes a JSON body into v, writing a 400 and returning false
// on malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
