package dag_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/gyaneshwarpardhi/dispatch/internal/config"
	"github.com/gyaneshwarpardhi/dispatch/internal/dag"
	"github.com/gyaneshwarpardhi/dispatch/internal/funcs"
)

func weight(w float64) *float64 { return &w }

func pricingDef() *config.GraphDef {
	return &config.GraphDef{
		Version: "1",
		Name:    "pricing",
		Nodes: []config.NodeDef{
			{Data: &config.DataDef{ID: "list"}},
			{Data: &config.DataDef{ID: "floor", Default: 3}},
			{Function: &config.FunctionDef{ID: "price", Function: "max", Inputs: []string{"list", "floor"}, Outputs: []string{"base"}}},
			{Function: &config.FunctionDef{ID: "discount", Expr: "base * 0.5", Inputs: []string{"base"}, Outputs: []string{"net"},
				Domain: "base > 10"}},
			{Function: &config.FunctionDef{ID: "full", Expr: "base * 1", Inputs: []string{"base"}, Outputs: []string{"net"},
				Weight: weight(5)}},
		},
	}
}

func TestBuild_Dispatch(t *testing.T) {
	g, err := dag.Build(pricingDef(), funcs.Builtins())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	tests := []struct {
		list float64
		want float64
	}{
		{list: 40, want: 20},
		{list: 4, want: 4},
		{list: 1, want: 3},
	}
	for _, tc := range tests {
		sol, err := g.Dispatch(context.Background(), map[string]any{"list": tc.list}, dag.Outputs("net"))
		if err != nil {
			t.Fatalf("list=%v: dispatch: %v", tc.list, err)
		}
		got, ok := sol.Get("net")
		if !ok {
			t.Fatalf("list=%v: net not set", tc.list)
		}
		if got != tc.want {
			t.Errorf("list=%v: net = %v, want %v", tc.list, got, tc.want)
		}
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		node config.NodeDef
		want error
	}{
		{"empty node", config.NodeDef{}, dag.ErrConstruction},
		{"unknown function", config.NodeDef{Function: &config.FunctionDef{Function: "nope", Inputs: []string{"a"}}}, funcs.ErrUnknownFunction},
		{"no callable", config.NodeDef{Function: &config.FunctionDef{Inputs: []string{"a"}}}, dag.ErrConstruction},
		{"unknown transform", config.NodeDef{Data: &config.DataDef{ID: "a", Transform: "nope"}}, funcs.ErrUnknownFunction},
		{"dispatcher without graph", config.NodeDef{Dispatcher: &config.DispatcherDef{ID: "d"}}, dag.ErrConstruction},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			def := &config.GraphDef{Name: "bad", Nodes: []config.NodeDef{tc.node}}
			_, err := dag.Build(def, funcs.Builtins())
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestBuild_Dispatcher(t *testing.T) {
	def := &config.GraphDef{
		Name: "outer",
		Nodes: []config.NodeDef{
			{Dispatcher: &config.DispatcherDef{
				ID:              "inner",
				Graph:           pricingDef(),
				Inputs:          []config.LinkDef{{From: "amount", To: "list"}},
				Outputs:         []config.LinkDef{{From: "net", To: "total"}},
				IncludeDefaults: true,
			}},
		},
	}
	g, err := dag.Build(def, funcs.Builtins())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	sol, err := g.Dispatch(context.Background(), map[string]any{"amount": 30.0})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got, _ := sol.Get("total"); got != 15.0 {
		t.Errorf("total = %v, want 15", got)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	r := funcs.Builtins()
	g, err := dag.Build(pricingDef(), r)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var buf bytes.Buffer
	if err := g.Save(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := dag.Load(&buf, r)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Fingerprint() != g.Fingerprint() {
		t.Errorf("fingerprint changed across save/load")
	}
	if loaded.Name() != "pricing" {
		t.Errorf("name = %q", loaded.Name())
	}

	want, _ := g.Dispatch(context.Background(), map[string]any{"list": 40.0})
	got, _ := loaded.Dispatch(context.Background(), map[string]any{"list": 40.0})
	if w, _ := want.Get("net"); w != 20.0 {
		t.Fatalf("original net = %v", w)
	}
	if v, _ := got.Get("net"); v != 20.0 {
		t.Errorf("loaded net = %v, want 20", v)
	}
}

func TestSave_NotSerializable(t *testing.T) {
	g := dag.New()
	if _, err := g.AddFunction("f", plus(1), []string{"a"}, []string{"b"}); err != nil {
		t.Fatal(err)
	}
	err := g.Save(&bytes.Buffer{})
	if !errors.Is(err, dag.ErrNotSerializable) {
		t.Fatalf("err = %v, want ErrNotSerializable", err)
	}

	g = dag.New()
	if _, err := g.AddFunction("f", builtin(t, "identity"), []string{"a"}, []string{"b"}, dag.Ref("identity"),
		dag.InputDomain(func([]any) (bool, error) { return true, nil })); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Definition(); !errors.Is(err, dag.ErrNotSerializable) {
		t.Fatalf("err = %v, want ErrNotSerializable", err)
	}
}
