// Package api serves a graph over HTTP: dispatch requests, the loaded
// definition, hot reload, probes and metrics.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/dispatch/internal/config"
	"github.com/gyaneshwarpardhi/dispatch/internal/dag"
	"github.com/gyaneshwarpardhi/dispatch/internal/engine"
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	graph    atomic.Pointer[dag.Graph]
	loader   *config.Loader
	resolver dag.Resolver
	backend  string
	opts     []dag.DispatchOption
	log      *slog.Logger
	mux      *http.ServeMux
	handler  http.Handler
}

// New creates an HTTP handler and registers all routes. backend names the
// executor whose queue the readiness probe watches; opts apply to every
// dispatch.
func New(g *dag.Graph, loader *config.Loader, r dag.Resolver, backend string, log *slog.Logger, opts ...dag.DispatchOption) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{loader: loader, resolver: r, backend: backend, opts: opts, log: log, mux: http.NewServeMux()}
	h.graph.Store(g)

	h.mux.HandleFunc("POST /v1/dispatch", h.dispatch)
	h.mux.HandleFunc("GET /v1/graph", h.describe)
	h.mux.HandleFunc("GET /v1/graph/dot", h.dot)
	h.mux.HandleFunc("POST /v1/graph/reload", h.reload)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())
	h.handler = loggingMiddleware(log, h.mux)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// SwapGraph replaces the served graph; dispatches already running keep the
// old one.
func (h *Handler) SwapGraph(g *dag.Graph) { h.graph.Store(g) }

// Graph returns the served graph.
func (h *Handler) Graph() *dag.Graph { return h.graph.Load() }

// POST /v1/dispatch: synchronous dispatch of one input set.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(req.Inputs) == 0 {
		writeError(w, http.StatusBadRequest, "inputs are required")
		return
	}

	opts := append([]dag.DispatchOption(nil), h.opts...)
	opts = append(opts, req.options()...)
	sol, err := h.Graph().Dispatch(r.Context(), req.Inputs, opts...)
	if err != nil {
		var ne *dag.NodeError
		if errors.As(err, &ne) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Path: ne.Path})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newDispatchResponse(sol, req.Outputs))
}

// GET /v1/graph: the loaded graph.
func (h *Handler) describe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newGraphResponse(h.Graph()))
}

// GET /v1/graph/dot: the loaded graph in Graphviz DOT format.
func (h *Handler) dot(w http.ResponseWriter, r *http.Request) {
	out, err := h.Graph().DOT()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	_, _ = w.Write([]byte(out))
}

// POST /v1/graph/reload: hot-reload the definition from disk.
func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		writeError(w, http.StatusNotImplemented, "graph was not loaded from a file")
		return
	}
	def, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Rebuild and swap the graph.
	g, err := dag.Build(def, h.resolver, dag.WithLogger(h.log))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.SwapGraph(g)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":    true,
		"nodes_count": g.NodeCount(),
		"fingerprint": g.Fingerprint(),
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the backend queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util, _ := engine.Utilization(h.backend)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}
