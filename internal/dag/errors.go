package dag

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConstruction reports an invalid Add* call.
	ErrConstruction = errors.New("invalid graph construction")
	// ErrUnknownNode reports a lookup of an id that is not in the graph or solution.
	ErrUnknownNode = errors.New("unknown node")
	// ErrNotSerializable reports a graph holding callables without registry names.
	ErrNotSerializable = errors.New("graph is not serializable")
	// ErrOutputArity reports a callable returning a different number of
	// results than its declared outputs.
	ErrOutputArity = errors.New("result count does not match outputs")
)

func constructionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConstruction, fmt.Sprintf(format, args...))
}

// NodeError is an invocation failure raised out of a dispatch. Path holds the
// ids of the nested dispatcher nodes leading to the failing node, outermost
// first, ending with the failing node itself.
type NodeError struct {
	Path []string
	Err  error
}

func (e *NodeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("node %s: %v", strings.Join(e.Path, "/"), e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// Node returns the id of the failing node.
func (e *NodeError) Node() string {
	if len(e.Path) == 0 {
		return ""
	}
	return e.Path[len(e.Path)-1]
}

// nest prefixes the path of a nested failure with the dispatcher id.
func nest(id string, err error) *NodeError {
	var ne *NodeError
	if errors.As(err, &ne) {
		return &NodeError{Path: append([]string{id}, ne.Path...), Err: ne.Err}
	}
	return &NodeError{Path: []string{id}, Err: err}
}
