package funcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(t *testing.T, r *Registry, name string, args ...any) []any {
	t.Helper()
	fn, err := r.Lookup(name)
	require.NoError(t, err)
	out, err := fn.Call(context.Background(), args)
	require.NoError(t, err)
	return out
}

func TestBuiltins(t *testing.T) {
	r := Builtins()
	cases := []struct {
		name string
		args []any
		want []any
	}{
		{"max", []any{1, 3}, []any{3}},
		{"max", []any{1, -3}, []any{1}},
		{"min", []any{3, 3.5, 2.0}, []any{2.0}},
		{"sum", []any{1, 2, 3.5}, []any{6.5}},
		{"identity", []any{"x"}, []any{"x"}},
		{"bypass", []any{1, "b"}, []any{1, "b"}},
		{"replicate", []any{"v", 3}, []any{"v", "v", "v"}},
		{"summation", []any{[]any{1, 2, 3}}, []any{6.0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, call(t, r, tc.name, tc.args...))
		})
	}
}

func TestBuiltinErrors(t *testing.T) {
	r := Builtins()
	fn, err := r.Lookup("max")
	require.NoError(t, err)
	_, err = fn.Call(context.Background(), []any{1, "x"})
	assert.Error(t, err)

	fn, err = r.Lookup("identity")
	require.NoError(t, err)
	_, err = fn.Call(context.Background(), []any{1, 2})
	assert.Error(t, err)

	fn, err = r.Lookup("replicate")
	require.NoError(t, err)
	_, err = fn.Call(context.Background(), []any{1, -1})
	assert.Error(t, err)

	_, err = r.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownFunction)
}

func TestRegistryDuplicatePanics(t *testing.T) {
	r := Builtins()
	fn, _ := r.Lookup("max")
	assert.Panics(t, func() { r.Register("max", fn) })
	assert.Contains(t, r.Names(), "summation")
}

func TestFormula(t *testing.T) {
	f, err := NewFormula("a * b + 1", []string{"a", "b"})
	require.NoError(t, err)
	out, err := f.Call(context.Background(), []any{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []any{7.0}, out)
	assert.Equal(t, "a * b + 1", f.Expression())
	lo, hi := f.Arity()
	assert.Equal(t, 2, lo)
	assert.Equal(t, 2, hi)

	_, err = NewFormula("a * z", []string{"a"})
	assert.Error(t, err)

	_, err = f.Call(context.Background(), []any{2, "x"})
	assert.Error(t, err)
}
