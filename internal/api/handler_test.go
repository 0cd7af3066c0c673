package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/dispatch/internal/api"
	"github.com/gyaneshwarpardhi/dispatch/internal/config"
	"github.com/gyaneshwarpardhi/dispatch/internal/dag"
	"github.com/gyaneshwarpardhi/dispatch/internal/funcs"
)

const definition = `
version: "1"
name: pricing
nodes:
  - data: {id: floor, default: 3}
  - function: {id: price, function: max, inputs: [list, floor], outputs: [base]}
  - function: {id: net, expr: "base * 0.5", inputs: [base], outputs: [net_price]}
`

func newServer(t *testing.T) (*api.Handler, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(definition), 0o644))
	loader, err := config.NewLoader(path, nil)
	require.NoError(t, err)
	r := funcs.Builtins()
	g, err := dag.Build(loader.Definition(), r)
	require.NoError(t, err)
	return api.New(g, loader, r, "", nil), path
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequestWithContext(context.Background(), method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestDispatch(t *testing.T) {
	h, _ := newServer(t)

	rec, out := do(t, h, http.MethodPost, "/v1/dispatch", `{"inputs": {"list": 40}, "outputs": ["net_price", "nope"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]any{"net_price": 20.0}, out["values"])
	assert.Equal(t, []any{"nope"}, out["missing"])
	assert.NotEmpty(t, out["run_id"])

	rec, _ = do(t, h, http.MethodPost, "/v1/dispatch", `{"inputs": {}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, h, http.MethodPost, "/v1/dispatch", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDispatch_RaisedError(t *testing.T) {
	g := dag.New(dag.WithRaises(dag.RaiseAll()))
	fail, err := funcs.Builtins().Lookup("replicate")
	require.NoError(t, err)
	_, err = g.AddFunction("rep", fail, []string{"v", "n"}, []string{"out"})
	require.NoError(t, err)
	h := api.New(g, nil, funcs.Builtins(), "", nil)

	rec, out := do(t, h, http.MethodPost, "/v1/dispatch", `{"inputs": {"v": 1, "n": -1}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []any{"rep"}, out["path"])

	rec, _ = do(t, h, http.MethodPost, "/v1/graph/reload", ``)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestGraphAndReload(t *testing.T) {
	h, path := newServer(t)

	rec, out := do(t, h, http.MethodGet, "/v1/graph", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pricing", out["name"])
	before := out["fingerprint"]

	rec, _ = do(t, h, http.MethodGet, "/v1/graph/dot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"price"`)

	updated := strings.Replace(definition, "base * 0.5", "base * 0.25", 1)
	updated = strings.Replace(updated, "id: net,", "id: quarter,", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	rec, out = do(t, h, http.MethodPost, "/v1/graph/reload", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEqual(t, before, out["fingerprint"])

	_, out = do(t, h, http.MethodPost, "/v1/dispatch", `{"inputs": {"list": 40}, "outputs": ["net_price"]}`)
	assert.Equal(t, map[string]any{"net_price": 10.0}, out["values"])
}

func TestProbes(t *testing.T) {
	h, _ := newServer(t)
	rec, out := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])

	rec, out = do(t, h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", out["status"])

	rec, _ = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dispatch_")
}
