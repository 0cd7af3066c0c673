package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gyaneshwarpardhi/dispatch/internal/token"
)

// Validate checks a graph definition for:
//   - Duplicate ids within one graph
//   - Nodes that set none or more than one of data/function/dispatcher
//   - Required fields and well-formed links
//   - Data ids that name a function or dispatcher of the same graph
//
// All problems are reported together.
func Validate(def *GraphDef) error {
	if def.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string
	validateGraph(def, "graph "+def.Name, &errs)
	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateGraph(def *GraphDef, loc string, errs *[]string) {
	if def.Name == "" {
		*errs = append(*errs, fmt.Sprintf("%s: name is required", loc))
	}
	if def.Weight < 0 {
		*errs = append(*errs, fmt.Sprintf("%s: weight must not be negative", loc))
	}
	for i, p := range def.Raises.Prefixes {
		if p == "" {
			*errs = append(*errs, fmt.Sprintf("%s.raises.prefixes[%d]: empty prefix", loc, i))
		}
	}

	ids := make(map[string]string) // id → location
	callables := make(map[string]bool)
	var refs []ref
	seen := func(id, at string) {
		if prev, ok := ids[id]; ok {
			*errs = append(*errs, fmt.Sprintf("%s: duplicate id %q (first seen at %s, again at %s)", loc, id, prev, at))
			return
		}
		ids[id] = at
	}

	for i, n := range def.Nodes {
		at := fmt.Sprintf("%s.nodes[%d]", loc, i)
		set := 0
		for _, ok := range []bool{n.Data != nil, n.Function != nil, n.Dispatcher != nil} {
			if ok {
				set++
			}
		}
		if set != 1 {
			*errs = append(*errs, fmt.Sprintf("%s: exactly one of data/function/dispatcher must be set", at))
			continue
		}
		switch {
		case n.Data != nil:
			d := n.Data
			if d.ID == "" {
				*errs = append(*errs, fmt.Sprintf("%s.data: id is required", at))
				continue
			}
			if d.ID == token.SinkID || d.ID == token.EndID {
				*errs = append(*errs, fmt.Sprintf("%s.data: %s is reserved", at, d.ID))
			}
			seen(d.ID, "data "+d.ID)
		case n.Function != nil:
			f := n.Function
			if f.ID != "" {
				seen(f.ID, "function "+f.ID)
				callables[f.ID] = true
				at = "function " + f.ID
			}
			if (f.Function == "") == (f.Expr == "") {
				*errs = append(*errs, fmt.Sprintf("%s: exactly one of function/expr must be set", at))
			}
			if len(f.Inputs) == 0 && len(f.Outputs) == 0 {
				*errs = append(*errs, fmt.Sprintf("%s: inputs or outputs are required", at))
			}
			if f.Weight != nil && *f.Weight < 0 {
				*errs = append(*errs, fmt.Sprintf("%s: weight must not be negative", at))
			}
			checkWeights(f.InputWeights, f.Inputs, at+".input_weights", errs)
			checkWeights(f.OutputWeights, f.Outputs, at+".output_weights", errs)
			refs = append(refs, ref{at, f.Inputs}, ref{at, f.Outputs})
		case n.Dispatcher != nil:
			d := n.Dispatcher
			if d.ID != "" {
				seen(d.ID, "dispatcher "+d.ID)
				callables[d.ID] = true
				at = "dispatcher " + d.ID
			}
			if d.Graph == nil {
				*errs = append(*errs, fmt.Sprintf("%s: graph is required", at))
			} else {
				validateGraph(d.Graph, at+".graph", errs)
			}
			if len(d.Inputs) == 0 && len(d.Outputs) == 0 {
				*errs = append(*errs, fmt.Sprintf("%s: inputs or outputs are required", at))
			}
			var outer []string
			for j, l := range d.Inputs {
				if l.From == "" || l.To == "" {
					*errs = append(*errs, fmt.Sprintf("%s.inputs[%d]: from and to are required", at, j))
				}
				outer = append(outer, l.From)
			}
			for j, l := range d.Outputs {
				if l.From == "" || l.To == "" {
					*errs = append(*errs, fmt.Sprintf("%s.outputs[%d]: from and to are required", at, j))
				}
				outer = append(outer, l.To)
			}
			refs = append(refs, ref{at, outer})
		}
	}

	for _, r := range refs {
		for _, id := range r.ids {
			if callables[id] {
				*errs = append(*errs, fmt.Sprintf("%s: %q is a function or dispatcher, not a data node", r.at, id))
			}
		}
	}
}

// ref records the data ids a callable refers to.
type ref struct {
	at  string
	ids []string
}

func checkWeights(w map[string]float64, ids []string, loc string, errs *[]string) {
	for _, id := range slices.Sorted(maps.Keys(w)) {
		if !slices.Contains(ids, id) {
			*errs = append(*errs, fmt.Sprintf("%s: %q is not listed", loc, id))
		}
		if w[id] < 0 {
			*errs = append(*errs, fmt.Sprintf("%s: weight of %q must not be negative", loc, id))
		}
	}
}
