package dag

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/gyaneshwarpardhi/dispatch/internal/config"
)

// Save writes the graph as an opaque msgpack blob. It fails with
// ErrNotSerializable when the graph holds callables that cannot be named.
func (g *Graph) Save(w io.Writer) error {
	def, err := g.Definition()
	if err != nil {
		return err
	}
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(def); err != nil {
		return fmt.Errorf("save graph %s: %w", g.name, err)
	}
	return nil
}

// Load reads a graph written by Save, resolving function names through r.
func Load(rd io.Reader, r Resolver, opts ...GraphOption) (*Graph, error) {
	dec := msgpack.NewDecoder(rd)
	dec.UseLooseInterfaceDecoding(true)
	var def config.GraphDef
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	return Build(&def, r, opts...)
}
