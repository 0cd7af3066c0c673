package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/dispatch/internal/subdsp"
)

// ─── compile ──────────────────────────────────────────────────────────────────

func compileCmd(a *app) *cobra.Command {
	var (
		inputs  []string
		outputs []string
		out     string
	)

	cmd := &cobra.Command{
		Use:   "compile <graph.yaml>",
		Short: "Compile the route from the inputs to the outputs into a pipe file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.load(args[0])
			if err != nil {
				return err
			}
			p, err := subdsp.Compile(cmd.Context(), g, inputs, outputs)
			if err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			defer f.Close()
			if err := p.Save(f); err != nil {
				return err
			}
			steps := make([]string, 0, len(p.Route()))
			for _, s := range p.Route() {
				steps = append(steps, s.ID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pipe %s → %s\n  route: %s\n", p.ID(), out, strings.Join(steps, " → "))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&inputs, "inputs", nil, "input data ids (comma separated)")
	cmd.Flags().StringSliceVar(&outputs, "outputs", nil, "output data ids (comma separated)")
	cmd.Flags().StringVarP(&out, "out", "o", "route.pipe", "pipe file to write")
	_ = cmd.MarkFlagRequired("outputs")
	return cmd
}

// ─── call ─────────────────────────────────────────────────────────────────────

func callCmd(a *app) *cobra.Command {
	var records string

	cmd := &cobra.Command{
		Use:   "call <graph.yaml> <route.pipe>",
		Short: "Replay a compiled pipe on one record or a JSON array of records",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.load(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[1], err)
			}
			defer f.Close()
			p, err := subdsp.LoadPipe(f, g)
			if err != nil {
				return err
			}
			recs, err := parseRecords(records)
			if err != nil {
				return err
			}
			results, err := subdsp.Batch(cmd.Context(), p, recs, a.settings.Engine.Workers)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, r := range results {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&records, "records", "{}", "a JSON object or array of objects, or @file to read it from a file")
	return cmd
}

// parseRecords accepts a single JSON object or an array of them.
func parseRecords(s string) ([]map[string]any, error) {
	data := []byte(s)
	if path, ok := strings.CutPrefix(s, "@"); ok {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read records: %w", err)
		}
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var recs []map[string]any
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("parse records: %w", err)
		}
		return recs, nil
	}
	rec := make(map[string]any)
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse records: %w", err)
	}
	return []map[string]any{rec}, nil
}
