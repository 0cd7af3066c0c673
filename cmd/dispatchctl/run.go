package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/dispatch/internal/dag"
)

// ─── run ──────────────────────────────────────────────────────────────────────

func runCmd(a *app) *cobra.Command {
	var (
		inputs  string
		outputs []string
		shrink  bool
		noCall  bool
		dot     bool
	)

	cmd := &cobra.Command{
		Use:   "run <graph.yaml>",
		Short: "Dispatch a graph and print the solution as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.load(args[0])
			if err != nil {
				return err
			}
			in, err := parseInputs(inputs)
			if err != nil {
				return err
			}
			opts := a.dispatchOptions()
			if len(outputs) > 0 {
				opts = append(opts, dag.Outputs(outputs...))
			}
			if shrink {
				opts = append(opts, dag.Shrink())
			}
			if noCall {
				opts = append(opts, dag.NoCall())
			}
			sol, err := g.Dispatch(cmd.Context(), in, opts...)
			if err != nil {
				return err
			}
			if dot {
				out, err := sol.DOT()
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
				return nil
			}
			return printSolution(cmd.OutOrStdout(), sol, outputs)
		},
	}

	cmd.Flags().StringVar(&inputs, "inputs", "{}", "inputs as a JSON object, or @file to read it from a file")
	cmd.Flags().StringSliceVar(&outputs, "outputs", nil, "requested outputs (comma separated)")
	cmd.Flags().BoolVar(&shrink, "shrink", false, "shrink the graph to the inputs and outputs first")
	cmd.Flags().BoolVar(&noCall, "no-call", false, "only explore the route, do not call functions")
	cmd.Flags().BoolVar(&dot, "dot", false, "print the workflow in DOT format instead of JSON")
	return cmd
}

// parseInputs decodes a JSON object given inline or as @path.
func parseInputs(s string) (map[string]any, error) {
	var r io.Reader = strings.NewReader(s)
	if path, ok := strings.CutPrefix(s, "@"); ok {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("read inputs: %w", err)
		}
		defer f.Close()
		r = f
	}
	in := make(map[string]any)
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("parse inputs: %w", err)
	}
	return in, nil
}

type solutionJSON struct {
	RunID    string            `json:"run_id"`
	Values   map[string]any    `json:"values"`
	Order    []string          `json:"order"`
	Errors   map[string]string `json:"errors,omitempty"`
	Workflow []string          `json:"workflow"`
}

func printSolution(w io.Writer, sol *dag.Solution, outputs []string) error {
	out := solutionJSON{RunID: sol.RunID, Values: sol.Values(), Order: sol.Keys(), Workflow: sol.Workflow().Nodes()}
	if len(outputs) > 0 {
		out.Values = make(map[string]any)
		for _, id := range outputs {
			if v, ok := sol.Get(id); ok {
				out.Values[id] = v
			}
		}
	}
	errs := sol.Errors()
	ids := make([]string, 0, len(errs))
	for id := range errs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if out.Errors == nil {
			out.Errors = make(map[string]string)
		}
		out.Errors[id] = errs[id].Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// redispatch runs one dispatch and logs instead of failing; used by watch.
func redispatch(ctx context.Context, a *app, g *dag.Graph, in map[string]any, outputs []string, w io.Writer) {
	opts := a.dispatchOptions()
	if len(outputs) > 0 {
		opts = append(opts, dag.Outputs(outputs...))
	}
	sol, err := g.Dispatch(ctx, in, opts...)
	if err != nil {
		a.log.Warn("dispatch failed", "graph", g.Name(), "err", err)
		return
	}
	if err := printSolution(w, sol, outputs); err != nil {
		a.log.Warn("print solution", "err", err)
	}
}
