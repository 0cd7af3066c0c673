package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ─── shrink ───────────────────────────────────────────────────────────────────

func shrinkCmd(a *app) *cobra.Command {
	var (
		inputs  []string
		outputs []string
	)

	cmd := &cobra.Command{
		Use:   "shrink <graph.yaml>",
		Short: "Print the minimal sub-graph linking the inputs to the outputs",
		Long: `shrink prunes the graph to the nodes that take part in computing the
outputs from the inputs and prints the result as a graph definition.

Without --inputs every data node may be an input; without --outputs every
reachable node is kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.load(args[0])
			if err != nil {
				return err
			}
			def, err := g.ShrinkDsp(inputs, outputs).Definition()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(def)
			if err != nil {
				return fmt.Errorf("encode definition: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringSliceVar(&inputs, "inputs", nil, "input data ids (comma separated)")
	cmd.Flags().StringSliceVar(&outputs, "outputs", nil, "output data ids (comma separated)")
	return cmd
}

// ─── dot ──────────────────────────────────────────────────────────────────────

func dotCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dot <graph.yaml>",
		Short: "Print the graph in Graphviz DOT format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.load(args[0])
			if err != nil {
				return err
			}
			out, err := g.DOT()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
