package dag_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/dispatch/internal/dag"
	"github.com/gyaneshwarpardhi/dispatch/internal/token"
)

func TestAddFunction_IDs(t *testing.T) {
	ok := must(t)
	g := dag.New()
	id := builtin(t, "identity")

	assert.Equal(t, "identity", ok(g.AddFunction("", id, []string{"a"}, []string{"b"})))
	// same content is a no-op
	assert.Equal(t, "identity", ok(g.AddFunction("", id, []string{"a"}, []string{"b"})))
	// different content is suffixed in creation order
	assert.Equal(t, "identity<0>", ok(g.AddFunction("", id, []string{"b"}, []string{"c"})))
	assert.Equal(t, "identity<1>", ok(g.AddFunction("", id, []string{"c"}, []string{"d"})))
	assert.Equal(t, "identity<0>", ok(g.AddFunction("identity", id, []string{"b"}, []string{"c"})))
	assert.Equal(t, 7, g.NodeCount())
	assert.Equal(t, []string{"identity"}, g.Successors("a"))
	assert.Equal(t, []string{"identity<0>"}, g.Predecessors("c"))
}

func TestAddFunction_Errors(t *testing.T) {
	ok := must(t)
	g := dag.New()
	id := builtin(t, "identity")
	ok(g.AddFunction("f", id, []string{"a"}, []string{"b"}))

	tests := []struct {
		name string
		add  func() (string, error)
	}{
		{"no inputs or outputs", func() (string, error) { return g.AddFunction("g", id, nil, nil) }},
		{"nil callable", func() (string, error) { return g.AddFunction("g", nil, []string{"a"}, nil) }},
		{"input is a function", func() (string, error) { return g.AddFunction("g", id, []string{"f"}, []string{"c"}) }},
		{"output is a function", func() (string, error) { return g.AddFunction("g", id, []string{"a"}, []string{"f"}) }},
		{"id is a data node", func() (string, error) { return g.AddFunction("a", id, []string{"b"}, []string{"c"}) }},
		{"arity", func() (string, error) { return g.AddFunction("g", id, []string{"a", "b"}, []string{"c"}) }},
		{"sink input", func() (string, error) { return g.AddFunction("g", id, []string{token.SinkID}, []string{"c"}) }},
		{"bad domain", func() (string, error) {
			return g.AddFunction("g", id, []string{"a"}, []string{"c"}, dag.DomainExpr("a >"))
		}},
		{"data on function id", func() (string, error) { return g.AddData("f") }},
	}
	before := g.NodeCount()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.add()
			assert.ErrorIs(t, err, dag.ErrConstruction)
		})
	}
	// a rejected call creates none of its missing data nodes
	assert.Equal(t, before, g.NodeCount())
	assert.False(t, g.Has("c"))
}

func TestAddData_Redefines(t *testing.T) {
	ok := must(t)
	g := dag.New()
	ok(g.AddData("a", dag.DefaultValue(1)))
	ok(g.AddFunction("f", builtin(t, "identity"), []string{"a"}, []string{"b"}))
	ok(g.AddData("a", dag.DefaultValue(2), dag.Describe("redefined")))

	assert.Equal(t, 0, g.Node("a").Index())
	assert.Equal(t, "redefined", g.Node("a").Description())
	d, has := g.DefaultOf("a")
	require.True(t, has)
	assert.Equal(t, 2, d.Value)

	ok(g.AddData("a", dag.DefaultValue(token.Empty)))
	_, has = g.DefaultOf("a")
	assert.False(t, has)

	assert.ErrorIs(t, g.SetDefaultValue("f", 1, 0), dag.ErrConstruction)
	assert.ErrorIs(t, g.SetDefaultValue("nope", 1, 0), dag.ErrUnknownNode)
}

func TestAddFromLists(t *testing.T) {
	g := dag.New()
	data, fns, _, err := g.AddFromLists(
		[]dag.DataSpec{{ID: "a", Options: []dag.Option{dag.DefaultValue(1)}}, {ID: "b"}},
		[]dag.FunctionSpec{
			{Func: builtin(t, "max"), Inputs: []string{"a", "b"}, Outputs: []string{"c"}},
			{Func: builtin(t, "max"), Inputs: []string{"c", "b"}, Outputs: []string{"d"}},
		},
		nil,
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, data)
	assert.Equal(t, []string{"max", "max<0>"}, fns)
}

func TestCopy_DoesNotShare(t *testing.T) {
	ok := must(t)
	g := dag.New()
	ok(g.AddData("a", dag.DefaultValue(1)))
	ok(g.AddFunction("f", builtin(t, "identity"), []string{"a"}, []string{"b"},
		dag.InputWeights(map[string]float64{"a": 3})))

	c := g.Copy()
	require.NoError(t, c.SetDefaultValue("a", 5, 0))
	ok(c.AddFunction("g", builtin(t, "identity"), []string{"b"}, []string{"z"}))

	d, _ := g.DefaultOf("a")
	assert.Equal(t, 1, d.Value)
	assert.False(t, g.Has("g"))
	assert.Equal(t, []string{"f"}, g.Successors("a"))
	assert.Equal(t, g.Node("f").(*dag.FunctionNode).InputWeights(), c.Node("f").(*dag.FunctionNode).InputWeights())
	assert.NotSame(t, g.Node("f"), c.Node("f"))
	assert.NotEqual(t, g.Fingerprint(), c.Fingerprint())
}

// inner doubles x into y.
func inner(t *testing.T) *dag.Graph {
	ok := must(t)
	g := dag.New(dag.WithName("inner"))
	ok(g.AddData("x", dag.DefaultValue(5.0)))
	ok(g.AddFunction("double", dag.Fn(func(args ...any) (any, error) {
		return args[0].(float64) * 2, nil
	}), []string{"x"}, []string{"y"}))
	return g
}

func TestDispatcher_Nested(t *testing.T) {
	ok := must(t)
	outer := dag.New(dag.WithName("outer"))
	ok(outer.AddDispatcher("dsp", inner(t),
		[]dag.Link{{From: "a", To: "x"}}, []dag.Link{{From: "y", To: "b"}, {From: "x", To: "echo"}}))

	sol, err := outer.Dispatch(context.Background(), map[string]any{"a": 2.0})
	require.NoError(t, err)
	assert.Equal(t, 4.0, value(t, sol, "b"))
	assert.Equal(t, 2.0, value(t, sol, "echo"))

	v, err := sol.GetNode(dag.AttrValue, "dsp", "y")
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)
	sub, ok2 := sol.SubSol("dsp")
	require.True(t, ok2)
	assert.Equal(t, []string{"x", "y"}, sub.Keys())
	n, err := sol.GetNode(dag.AttrNode, "dsp", "double")
	require.NoError(t, err)
	assert.Equal(t, dag.KindFunction, n.(dag.Node).Kind())
	_, err = sol.GetNode(dag.AttrValue, "nope", "y")
	assert.ErrorIs(t, err, dag.ErrUnknownNode)

	var nested []string
	for _, e := range sol.Pipe() {
		if e.ID == "dsp" {
			for _, s := range e.Sub {
				nested = append(nested, s.ID)
			}
		}
	}
	assert.Equal(t, []string{"x", "double", "y"}, nested)
}

func TestDispatcher_IncludeDefaults(t *testing.T) {
	ok := must(t)
	outer := dag.New()
	ok(outer.AddDispatcher("dsp", inner(t), []dag.Link{{From: "a", To: "x"}}, []dag.Link{{From: "y", To: "b"}},
		dag.IncludeDefaults()))
	d, has := outer.DefaultOf("a")
	require.True(t, has)
	assert.Equal(t, 5.0, d.Value)

	sol, err := outer.Dispatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 10.0, value(t, sol, "b"))
}

func TestDispatcher_Errors(t *testing.T) {
	ok := must(t)
	in := dag.New(dag.WithName("in"), dag.WithRaises(dag.RaiseAll()))
	ok(in.AddFunction("fail", failing("deep"), []string{"x"}, []string{"y"}))

	outer := dag.New(dag.WithRaises(dag.RaiseFor("dsp")))
	ok(outer.AddDispatcher("dsp", in, dag.Same("x"), dag.Same("y")))
	_, err := outer.Dispatch(context.Background(), map[string]any{"x": 1.0})
	var ne *dag.NodeError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, []string{"dsp", "fail"}, ne.Path)
	assert.EqualError(t, ne.Err, "deep")

	outer.SetRaises(dag.Raises{})
	sol, err := outer.Dispatch(context.Background(), map[string]any{"x": 1.0})
	require.NoError(t, err)
	assert.Error(t, sol.Errors()["dsp"])
	_, set := sol.Get("y")
	assert.False(t, set)

	_, err = outer.AddDispatcher("bad", in, []dag.Link{{From: "x", To: "missing"}}, dag.Same("y"))
	assert.ErrorIs(t, err, dag.ErrConstruction)

	before := outer.NodeCount()
	_, err = outer.AddDispatcher("dsp", in, []dag.Link{{From: "p", To: "x"}}, []dag.Link{{From: "y", To: "q"}},
		dag.DomainExpr("p >"))
	assert.ErrorIs(t, err, dag.ErrConstruction)
	_, err = outer.AddDispatcher("x", in, []dag.Link{{From: "p", To: "x"}}, []dag.Link{{From: "y", To: "q"}})
	assert.ErrorIs(t, err, dag.ErrConstruction)
	assert.Equal(t, before, outer.NodeCount())
	assert.False(t, outer.Has("p"))
	assert.False(t, outer.Has("q"))
}

func TestDispatcher_SameContentIsNoop(t *testing.T) {
	ok := must(t)
	outer := dag.New()
	ok(outer.AddDispatcher("dsp", inner(t), []dag.Link{{From: "a", To: "x"}}, []dag.Link{{From: "y", To: "b"}}))
	assert.Equal(t, "dsp", ok(outer.AddDispatcher("dsp", inner(t), []dag.Link{{From: "a", To: "x"}}, []dag.Link{{From: "y", To: "b"}})))
	assert.Equal(t, "dsp<0>", ok(outer.AddDispatcher("dsp", inner(t), []dag.Link{{From: "b", To: "x"}}, []dag.Link{{From: "y", To: "c"}})))
}

func TestDOT(t *testing.T) {
	g := cycleGraph(t)
	out, err := g.DOT()
	require.NoError(t, err)
	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, `"max"`)

	sol, err := g.Dispatch(context.Background(), map[string]any{"a": 1, "b": 3})
	require.NoError(t, err)
	out, err = sol.DOT()
	require.NoError(t, err)
	assert.Contains(t, out, `"c"`)
}
