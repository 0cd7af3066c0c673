package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pricing = "../../configs/pricing.yaml"

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func TestRun(t *testing.T) {
	out := execute(t, "run", pricing, "--inputs", `{"list": 40}`, "--outputs", "net")

	var sol solutionJSON
	require.NoError(t, json.Unmarshal([]byte(out), &sol))
	assert.Equal(t, map[string]any{"net": 20.0}, sol.Values)
	assert.Contains(t, sol.Workflow, "discount")
	assert.NotContains(t, sol.Workflow, "full")
	assert.NotEmpty(t, sol.RunID)
}

func TestShrink(t *testing.T) {
	out := execute(t, "shrink", pricing, "--inputs", "list,floor", "--outputs", "base")
	assert.Contains(t, out, "id: price")
	assert.NotContains(t, out, "id: discount")
}

func TestDOT(t *testing.T) {
	out := execute(t, "dot", pricing)
	assert.True(t, strings.HasPrefix(out, "digraph"))
	assert.Contains(t, out, `"discount"`)
}

func TestCompileAndCall(t *testing.T) {
	route := filepath.Join(t.TempDir(), "net.pipe")
	out := execute(t, "compile", pricing, "--inputs", "list", "--outputs", "net", "-o", route)
	assert.Contains(t, out, "list → floor → price")

	out = execute(t, "call", pricing, route, "--records", `[{"list": 40}, {"list": 12}]`)
	assert.Equal(t, "[20]\n[6]\n", out)
}

func TestParseRecords(t *testing.T) {
	recs, err := parseRecords(`{"a": 1}`)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"a": 1.0}}, recs)

	recs, err = parseRecords(` [{"a": 1}, {"a": 2}]`)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	_, err = parseRecords("nope")
	assert.Error(t, err)
}
