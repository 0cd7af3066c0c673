package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gyaneshwarpardhi/dispatch/internal/dag"
)

// DispatchRequest is the body of POST /v1/dispatch.
type DispatchRequest struct {
	Inputs  map[string]any `json:"inputs"`
	Outputs []string       `json:"outputs,omitempty"`
	Cutoff  *float64       `json:"cutoff,omitempty"`
	NoCall  bool           `json:"no_call,omitempty"`
	Shrink  bool           `json:"shrink,omitempty"`
}

func (r DispatchRequest) options() []dag.DispatchOption {
	var opts []dag.DispatchOption
	if len(r.Outputs) > 0 {
		opts = append(opts, dag.Outputs(r.Outputs...))
	}
	if r.Cutoff != nil {
		opts = append(opts, dag.Cutoff(*r.Cutoff))
	}
	if r.NoCall {
		opts = append(opts, dag.NoCall())
	}
	if r.Shrink {
		opts = append(opts, dag.Shrink())
	}
	return opts
}

// DispatchResponse reports a solution. Values holds the requested outputs,
// or every value when none were requested.
type DispatchResponse struct {
	RunID    string            `json:"run_id"`
	Values   map[string]any    `json:"values"`
	Missing  []string          `json:"missing,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
	Workflow []string          `json:"workflow"`
}

func newDispatchResponse(sol *dag.Solution, outputs []string) DispatchResponse {
	resp := DispatchResponse{RunID: sol.RunID, Values: sol.Values(), Workflow: sol.Workflow().Nodes()}
	if len(outputs) > 0 {
		resp.Values = make(map[string]any, len(outputs))
		for _, id := range outputs {
			if v, ok := sol.Get(id); ok {
				resp.Values[id] = v
			} else {
				resp.Missing = append(resp.Missing, id)
			}
		}
	}
	for id, err := range sol.Errors() {
		if resp.Errors == nil {
			resp.Errors = make(map[string]string)
		}
		resp.Errors[id] = err.Error()
	}
	return resp
}

// GraphResponse describes the loaded graph.
type GraphResponse struct {
	Name        string         `json:"name"`
	Fingerprint string         `json:"fingerprint"`
	Nodes       []nodeResponse `json:"nodes"`
}

type nodeResponse struct {
	ID      string   `json:"id"`
	Kind    dag.Kind `json:"kind"`
	Inputs  []string `json:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty"`
	Default any      `json:"default,omitempty"`
}

func newGraphResponse(g *dag.Graph) GraphResponse {
	resp := GraphResponse{Name: g.Name(), Fingerprint: g.Fingerprint()}
	for _, n := range g.Nodes() {
		nr := nodeResponse{ID: n.ID(), Kind: n.Kind()}
		if c, ok := n.(dag.Callable); ok {
			nr.Inputs, nr.Outputs = c.Inputs(), c.Outputs()
		}
		if d, ok := g.DefaultOf(n.ID()); ok {
			nr.Default = d.Value
		}
		resp.Nodes = append(resp.Nodes, nr)
	}
	return resp
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope. Path is set for node
// failures.
type errorResponse struct {
	Error string   `json:"error"`
	Path  []string `json:"path,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
