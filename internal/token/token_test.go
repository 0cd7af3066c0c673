package token

import "testing"

func TestReservedIDs(t *testing.T) {
	for _, id := range []string{StartID, SinkID, EndID, SelfID} {
		if !IsReservedID(id) {
			t.Errorf("IsReservedID(%q) = false", id)
		}
	}
	for _, id := range []string{"start", "a<0>", ""} {
		if IsReservedID(id) {
			t.Errorf("IsReservedID(%q) = true", id)
		}
	}
}

func TestVetoes(t *testing.T) {
	tests := []struct {
		v    any
		want bool
	}{
		{Empty, true},
		{None, true},
		{Start, false},
		{nil, false},
		{"none", false},
		{uint8(None), false},
	}
	for _, tc := range tests {
		if got := Vetoes(tc.v); got != tc.want {
			t.Errorf("Vetoes(%#v) = %v, want %v", tc.v, got, tc.want)
		}
	}
}
