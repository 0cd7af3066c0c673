package dag

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"slices"
	"strconv"
)

// Fingerprint is a sha256 over the structure of the graph: node ids, kinds,
// inputs and outputs, weights, callable references, domain sources, default
// ids and distances, dispatcher links and nested fingerprints. Default
// values are not part of it; they are inputs like any other.
//
// Determinism rules:
//   - Nodes are written in creation order, which is part of the structure.
//   - Maps are written sorted by key.
//   - All fields are length-prefixed to avoid ambiguity.
func (g *Graph) Fingerprint() string {
	h := sha256.New()
	fp := fingerprinter{h: h}
	fp.str("graph")
	fp.float(g.weight)
	fp.bool(g.raises.all)
	fp.strs(g.raises.prefixes)
	for _, n := range g.nodes {
		fp.str(string(n.Kind()))
		fp.str(n.ID())
		fp.bool(n.WaitInputs())
		switch x := n.(type) {
		case *DataNode:
			fp.bool(x.wildcard)
			fp.str(x.transformRef)
			fp.strs(x.filterRefs)
			d, ok := g.defaults[x.id]
			fp.bool(ok)
			if ok {
				fp.float(d.InitialDist)
			}
		case *FunctionNode:
			fp.str(x.ref)
			if x.ref == "" {
				fp.str(funcName(x.fn))
			}
			fp.strs(x.inputs)
			fp.strs(x.outputs)
			fp.str(x.domainSrc)
			fp.bool(x.domain != nil)
			fp.bool(x.hasWeight)
			fp.float(x.weight)
			fp.weights(x.inpWeight)
			fp.weights(x.outWeight)
		case *DispatcherNode:
			fp.links(x.inputs)
			fp.links(x.outputs)
			fp.bool(x.includeDefaults)
			fp.str(x.domainSrc)
			fp.bool(x.domain != nil)
			fp.bool(x.hasWeight)
			fp.float(x.weight)
			fp.str(x.graph.Fingerprint())
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

type fingerprinter struct {
	h hash.Hash
}

func (f fingerprinter) field(data []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(data)))
	f.h.Write(n[:])
	f.h.Write(data)
}

func (f fingerprinter) str(s string) { f.field([]byte(s)) }

func (f fingerprinter) bool(b bool) { f.str(strconv.FormatBool(b)) }

func (f fingerprinter) float(v float64) { f.str(strconv.FormatFloat(v, 'g', -1, 64)) }

func (f fingerprinter) strs(ss []string) {
	f.str(strconv.Itoa(len(ss)))
	for _, s := range ss {
		f.str(s)
	}
}

func (f fingerprinter) weights(m map[string]float64) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	f.strs(keys)
	for _, k := range keys {
		f.float(m[k])
	}
}

func (f fingerprinter) links(ls []Link) {
	f.str(strconv.Itoa(len(ls)))
	for _, l := range ls {
		f.str(l.From)
		f.str(l.To)
	}
}
