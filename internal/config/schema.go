package config

// GraphDef is the top-level YAML structure of a graph definition. It is also
// the persisted form of a graph.
type GraphDef struct {
	Version     string    `yaml:"version" msgpack:"version"`
	Name        string    `yaml:"name" msgpack:"name"`
	Description string    `yaml:"description,omitempty" msgpack:"description,omitempty"`
	Weight      float64   `yaml:"weight,omitempty" msgpack:"weight,omitempty"`
	Raises      RaisesDef `yaml:"raises,omitempty" msgpack:"raises,omitempty"`
	// Nodes are created in list order; the order decides tie-breaks.
	Nodes []NodeDef `yaml:"nodes" msgpack:"nodes"`
}

// RaisesDef selects the nodes whose errors abort a dispatch: all of them, or
// the ones whose id starts with one of Prefixes.
type RaisesDef struct {
	All      bool     `yaml:"all,omitempty" msgpack:"all,omitempty"`
	Prefixes []string `yaml:"prefixes,omitempty" msgpack:"prefixes,omitempty"`
}

// NodeDef is a discriminated union: exactly one of Data, Function or
// Dispatcher is set.
type NodeDef struct {
	Data       *DataDef       `yaml:"data,omitempty" msgpack:"data,omitempty"`
	Function   *FunctionDef   `yaml:"function,omitempty" msgpack:"function,omitempty"`
	Dispatcher *DispatcherDef `yaml:"dispatcher,omitempty" msgpack:"dispatcher,omitempty"`
}

// DataDef declares a data node. Transform and Filters name registered
// functions.
type DataDef struct {
	ID          string   `yaml:"id" msgpack:"id"`
	Description string   `yaml:"description,omitempty" msgpack:"description,omitempty"`
	Default     any      `yaml:"default,omitempty" msgpack:"default,omitempty"`
	InitialDist float64  `yaml:"initial_dist,omitempty" msgpack:"initial_dist,omitempty"`
	Wildcard    bool     `yaml:"wildcard,omitempty" msgpack:"wildcard,omitempty"`
	WaitInputs  bool     `yaml:"wait_inputs,omitempty" msgpack:"wait_inputs,omitempty"`
	Transform   string   `yaml:"transform,omitempty" msgpack:"transform,omitempty"`
	Filters     []string `yaml:"filters,omitempty" msgpack:"filters,omitempty"`
}

// FunctionDef declares a function node. Exactly one of Function (a registry
// name) or Expr (a formula over the input ids) is set.
type FunctionDef struct {
	ID            string             `yaml:"id,omitempty" msgpack:"id,omitempty"`
	Description   string             `yaml:"description,omitempty" msgpack:"description,omitempty"`
	Function      string             `yaml:"function,omitempty" msgpack:"function,omitempty"`
	Expr          string             `yaml:"expr,omitempty" msgpack:"expr,omitempty"`
	Inputs        []string           `yaml:"inputs,omitempty" msgpack:"inputs,omitempty"`
	Outputs       []string           `yaml:"outputs,omitempty" msgpack:"outputs,omitempty"`
	Domain        string             `yaml:"domain,omitempty" msgpack:"domain,omitempty"`
	Weight        *float64           `yaml:"weight,omitempty" msgpack:"weight,omitempty"`
	InputWeights  map[string]float64 `yaml:"input_weights,omitempty" msgpack:"input_weights,omitempty"`
	OutputWeights map[string]float64 `yaml:"output_weights,omitempty" msgpack:"output_weights,omitempty"`
	WaitInputs    *bool              `yaml:"wait_inputs,omitempty" msgpack:"wait_inputs,omitempty"`
	Executor      string             `yaml:"executor,omitempty" msgpack:"executor,omitempty"`
}

// DispatcherDef nests an inline graph definition.
type DispatcherDef struct {
	ID              string    `yaml:"id,omitempty" msgpack:"id,omitempty"`
	Description     string    `yaml:"description,omitempty" msgpack:"description,omitempty"`
	Graph           *GraphDef `yaml:"graph" msgpack:"graph"`
	Inputs          []LinkDef `yaml:"inputs,omitempty" msgpack:"inputs,omitempty"`
	Outputs         []LinkDef `yaml:"outputs,omitempty" msgpack:"outputs,omitempty"`
	IncludeDefaults bool      `yaml:"include_defaults,omitempty" msgpack:"include_defaults,omitempty"`
	Domain          string    `yaml:"domain,omitempty" msgpack:"domain,omitempty"`
	Weight          *float64  `yaml:"weight,omitempty" msgpack:"weight,omitempty"`
	WaitInputs      *bool     `yaml:"wait_inputs,omitempty" msgpack:"wait_inputs,omitempty"`
}

// LinkDef maps a data id of one graph onto a data id of another. A link
// written as a plain string maps an id onto itself.
type LinkDef struct {
	From string `yaml:"from" msgpack:"from"`
	To   string `yaml:"to" msgpack:"to"`
}

// UnmarshalYAML accepts both "id" and {from: a, to: b}.
func (l *LinkDef) UnmarshalYAML(unmarshal func(any) error) error {
	var id string
	if err := unmarshal(&id); err == nil {
		l.From, l.To = id, id
		return nil
	}
	type plain LinkDef
	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}
	*l = LinkDef(p)
	return nil
}

// HasDefault reports whether the data node declares a default value.
func (d *DataDef) HasDefault() bool { return d.Default != nil }
