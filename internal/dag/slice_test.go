package dag_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/dispatch/internal/dag"
	"github.com/gyaneshwarpardhi/dispatch/internal/token"
)

// chain builds a→h→b→h→c→h→d→h→e→h→a.
func chain(t *testing.T) *dag.Graph {
	ok := must(t)
	g := dag.New(dag.WithName("chain"))
	ids := []string{"a", "b", "c", "d", "e", "a"}
	for i := 0; i < len(ids)-1; i++ {
		ok(g.AddFunction("h", plus(1), []string{ids[i]}, []string{ids[i+1]}))
	}
	return g
}

func nodeIDs(g *dag.Graph) []string {
	var out []string
	for _, n := range g.Nodes() {
		out = append(out, n.ID())
	}
	return out
}

func TestShrinkDsp_Chain(t *testing.T) {
	g := chain(t)
	require.Equal(t, []string{"a", "b", "h", "c", "h<0>", "d", "h<1>", "e", "h<2>", "h<3>"}, nodeIDs(g))

	shrunk := g.ShrinkDsp([]string{"a"}, []string{"c"})
	assert.Equal(t, []string{"a", "b", "h", "c", "h<0>"}, nodeIDs(shrunk))
	assert.Equal(t, []string{"b"}, shrunk.Successors("h"))
	assert.Empty(t, shrunk.Predecessors("a"))
}

func TestShrinkDsp_Idempotent(t *testing.T) {
	g := chain(t)
	once := g.ShrinkDsp([]string{"a"}, []string{"c"})
	twice := once.ShrinkDsp([]string{"a"}, []string{"c"})
	assert.Equal(t, once.Fingerprint(), twice.Fingerprint())
}

func TestShrinkDsp_SameValues(t *testing.T) {
	ctx := context.Background()
	g := cycleGraph(t)
	in := map[string]any{"a": 1, "b": 3}

	full, err := g.Dispatch(ctx, in, dag.Outputs("c"))
	require.NoError(t, err)
	shrunk, err := g.ShrinkDsp([]string{"a", "b"}, []string{"c"}).Dispatch(ctx, in, dag.Outputs("c"))
	require.NoError(t, err)
	assert.Equal(t, value(t, full, "c"), value(t, shrunk, "c"))

	viaOption, err := g.Dispatch(ctx, in, dag.Outputs("c"), dag.Shrink())
	require.NoError(t, err)
	assert.Equal(t, value(t, full, "c"), value(t, viaOption, "c"))
}

func TestShrinkDsp_WaitInputsNeedAllInputs(t *testing.T) {
	ok := must(t)
	g := dag.New()
	ok(g.AddFunction("sum", builtin(t, "sum"), []string{"a", "b"}, []string{"c"}))
	ok(g.AddFunction("id", builtin(t, "identity"), []string{"a"}, []string{"c"}))

	shrunk := g.ShrinkDsp([]string{"a"}, []string{"c"})
	assert.False(t, shrunk.Has("sum"))
	assert.True(t, shrunk.Has("id"))

	ok(g.AddData("b", dag.DefaultValue(2.0)))
	shrunk = g.ShrinkDsp([]string{"a"}, []string{"c"})
	assert.True(t, shrunk.Has("sum"))
	d, has := shrunk.DefaultOf("b")
	require.True(t, has)
	assert.Equal(t, 2.0, d.Value)
}

func TestGetSubDsp(t *testing.T) {
	g := chain(t)

	// h<0> lost its only output
	sub := g.GetSubDsp([]string{"a", "h", "b", "h<0>"}, nil)
	assert.Equal(t, []string{"a", "b", "h"}, nodeIDs(sub))

	sub = g.GetSubDsp([]string{"a", "h", "b"}, [][2]string{{"a", "h"}})
	assert.Equal(t, []string{"a", "b"}, nodeIDs(sub))

	assert.Empty(t, nodeIDs(g.GetSubDsp([]string{"missing"}, nil)))
}

func TestGetSubDsp_MissingOutputsGoToSink(t *testing.T) {
	ok := must(t)
	g := dag.New()
	ok(g.AddFunction("f", builtin(t, "bypass"), []string{"a", "b"}, []string{"c", "d"}))

	sub := g.GetSubDsp([]string{"a", "b", "f", "c"}, nil)
	fn := sub.Node("f").(*dag.FunctionNode)
	assert.Equal(t, []string{"c", token.SinkID}, fn.Outputs())

	sol, err := sub.Dispatch(context.Background(), map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, 1, value(t, sol, "c"))
	_, set := sol.Get("d")
	assert.False(t, set)
}

func TestSubGraphFromWorkflow(t *testing.T) {
	ok := must(t)
	g := dag.New()
	ok(g.AddFunction("f", builtin(t, "sum"), []string{"a", "b"}, []string{"c"}))
	ok(g.AddFunction("g", builtin(t, "identity"), []string{"c"}, []string{"d"}))
	ok(g.AddFunction("k", builtin(t, "identity"), []string{"x"}, []string{"y"}))

	fwd := g.SubGraphFromWorkflow([]string{"c"}, false, false)
	assert.Equal(t, []string{"c", "d", "g"}, nodeIDs(fwd))

	rev := g.SubGraphFromWorkflow([]string{"c"}, true, false)
	assert.Equal(t, []string{"a", "b", "c", "f"}, nodeIDs(rev))

	// from a alone f is incomplete unless its missing inputs are added
	assert.False(t, g.SubGraphFromWorkflow([]string{"a"}, false, false).Has("f"))
	assert.True(t, g.SubGraphFromWorkflow([]string{"a"}, false, true).Has("f"))
}

func TestSolution_SubGraphFromWorkflow(t *testing.T) {
	g := cycleGraph(t)
	sol, err := g.Dispatch(context.Background(), map[string]any{"a": 1, "b": 3})
	require.NoError(t, err)

	wf := sol.SubGraphFromWorkflow([]string{"b"}, false)
	assert.True(t, wf.Has("max"))
	assert.True(t, wf.Has("c"))
	assert.False(t, wf.Has("a"))

	up := sol.SubGraphFromWorkflow([]string{"c"}, true)
	for _, id := range []string{"a", "b", "max", "c"} {
		assert.True(t, up.Has(id), id)
	}
	assert.False(t, up.Has("min"))
}
