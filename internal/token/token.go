// Package token defines the reserved node ids and reserved values shared by
// every part of the dispatch engine.
package token

// Token is a reserved marker. Tokens are compared structurally: a Token never
// equals a value of any other type, and two tokens are equal only when they are
// the same marker.
type Token uint8

const (
	// Start is the synthetic source of inputs and default values.
	Start Token = iota + 1
	// Sink discards an output slot.
	Sink
	// End closes a compiled route.
	End
	// Self is a data node whose value is the owning graph.
	Self
	// Empty removes a default value or vetoes the storage of a value.
	Empty
	// None is an explicit "no value", distinct from absence.
	None
)

var names = map[Token]string{
	Start: "start",
	Sink:  "sink",
	End:   "end",
	Self:  "self",
	Empty: "empty",
	None:  "none",
}

// String returns the marker name.
func (t Token) String() string {
	if n, ok := names[t]; ok {
		return n
	}
	return "unknown"
}

// ID returns the reserved node id of the marker. Reserved ids are enclosed in
// angle brackets so they cannot collide with ids produced by auto-suffixing.
func (t Token) ID() string {
	return "<" + t.String() + ">"
}

// Reserved node ids.
var (
	StartID = Start.ID()
	SinkID  = Sink.ID()
	EndID   = End.ID()
	SelfID  = Self.ID()
)

// IsReservedID reports whether id is one of the reserved node ids.
func IsReservedID(id string) bool {
	switch id {
	case StartID, SinkID, EndID, SelfID:
		return true
	}
	return false
}

// IsEmpty reports whether v is the Empty marker.
func IsEmpty(v any) bool {
	t, ok := v.(Token)
	return ok && t == Empty
}

// IsNone reports whether v is the None marker.
func IsNone(v any) bool {
	t, ok := v.(Token)
	return ok && t == None
}

// Vetoes reports whether v asks the receiver not to store it.
func Vetoes(v any) bool {
	return IsEmpty(v) || IsNone(v)
}
