package condition

import (
	"testing"
)

func ctx(kv ...interface{}) Vars {
	m := make(Vars)
	for i := 0; i < len(kv)-1; i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return m
}

type evalCase struct {
	name    string
	expr    string
	ctx     EvalContext
	want    bool
	wantErr bool
}

func TestEvaluate(t *testing.T) {
	cases := []evalCase{
		// Numeric comparisons
		{
			name: "gt true",
			expr: "amount > 1000",
			ctx:  ctx("amount", float64(1500)),
			want: true,
		},
		{
			name: "gt false",
			expr: "amount > 1000",
			ctx:  ctx("amount", float64(500)),
			want: false,
		},
		{
			name: "gte equal",
			expr: "amount >= 1000",
			ctx:  ctx("amount", float64(1000)),
			want: true,
		},
		{
			name: "lt true",
			expr: "amount < 100",
			ctx:  ctx("amount", float64(50)),
			want: true,
		},
		// String equality
		{
			name: "eq string true",
			expr: `category == "food"`,
			ctx:  ctx("category", "food"),
			want: true,
		},
		{
			name: "eq string false",
			expr: `category == "food"`,
			ctx:  ctx("category", "electronics"),
			want: false,
		},
		{
			name: "neq string",
			expr: `category != "food"`,
			ctx:  ctx("category", "electronics"),
			want: true,
		},
		// Boolean
		{
			name: "bool eq true",
			expr: "is_first_login == true",
			ctx:  ctx("is_first_login", true),
			want: true,
		},
		{
			name: "bool eq false literal",
			expr: "is_first_login == false",
			ctx:  ctx("is_first_login", true),
			want: false,
		},
		// AND / OR
		{
			name: "AND both true",
			expr: `category == "food" AND amount > 500`,
			ctx:  ctx("category", "food", "amount", float64(1000)),
			want: true,
		},
		{
			name: "AND first false",
			expr: `category == "food" AND amount > 500`,
			ctx:  ctx("category", "clothing", "amount", float64(1000)),
			want: false,
		},
		{
			name: "OR first true",
			expr: `category == "food" OR amount > 500`,
			ctx:  ctx("category", "clothing", "amount", float64(1000)),
			want: true,
		},
		{
			name: "OR both false",
			expr: `category == "food" OR amount > 500`,
			ctx:  ctx("category", "clothing", "amount", float64(10)),
			want: false,
		},
		// NOT
		{
			name: "NOT true",
			expr: `NOT amount > 1000`,
			ctx:  ctx("amount", float64(500)),
			want: true,
		},
		// contains
		{
			name: "contains true",
			expr: `tags contains "vip"`,
			ctx:  ctx("tags", "vip-member"),
			want: true,
		},
		{
			name: "contains false",
			expr: `tags contains "vip"`,
			ctx:  ctx("tags", "regular"),
			want: false,
		},
		// matches (regex)
		{
			name: "matches true",
			expr: `email matches ".*@example\\.com"`,
			ctx:  ctx("email", "user@example.com"),
			want: true,
		},
		{
			name: "matches false",
			expr: `email matches ".*@example\\.com"`,
			ctx:  ctx("email", "user@other.com"),
			want: false,
		},
		// Nested field
		{
			name: "nested field",
			expr: "battery.soc >= 0.2",
			ctx:  ctx("battery", map[string]interface{}{"soc": 0.5}),
			want: true,
		},
		// Arithmetic
		{
			name: "product positive",
			expr: "c * b > 0",
			ctx:  ctx("c", 3, "b", 3),
			want: true,
		},
		{
			name: "product negative",
			expr: "c * b > 0",
			ctx:  ctx("c", 1, "b", -3),
			want: false,
		},
		{
			name: "binary minus without spaces",
			expr: "a-1 == 2",
			ctx:  ctx("a", 3),
			want: true,
		},
		{
			name: "grouped arithmetic",
			expr: "(a + b) * 2 == 10",
			ctx:  ctx("a", 2, "b", 3),
			want: true,
		},
		{
			name: "grouped boolean",
			expr: "(a > 1 OR b > 1) AND a < 10",
			ctx:  ctx("a", 0, "b", 3),
			want: true,
		},
		{
			name: "quoted identifier",
			expr: "`engine speed` > 800",
			ctx:  ctx("engine speed", 900.0),
			want: true,
		},
		// Truthiness
		{
			name: "bare field true",
			expr: "enabled",
			ctx:  ctx("enabled", true),
			want: true,
		},
		{
			name: "bare zero is false",
			expr: "a - b",
			ctx:  ctx("a", 2, "b", 2),
			want: false,
		},
		// Error cases
		{
			name:    "division by zero",
			expr:    "a / b > 1",
			ctx:     ctx("a", 1, "b", 0),
			wantErr: true,
		},
		{
			name:    "unknown field",
			expr:    "missing > 10",
			ctx:     ctx("amount", float64(100)),
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ast, err := Parse(tc.expr)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tc.expr, err)
			}
			got, err := Evaluate(ast, tc.ctx)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil (result=%v)", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Evaluate error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tc.expr, got, tc.want)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []string{
		`"unterminated`,
		`amount 1000`, // missing operator
		``,            // empty (will fail at comparison level)
	}
	for _, expr := range cases {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr)
			if err == nil {
				t.Errorf("expected parse error for %q, got nil", expr)
			}
		})
	}
}

func TestFormula(t *testing.T) {
	cases := []struct {
		expr string
		vars Vars
		want float64
	}{
		{"a * b + 1", Vars{"a": 2, "b": 3}, 7},
		{"a - -1", Vars{"a": 2}, 3},
		{"(a + b) / 2", Vars{"a": 1, "b": 4}, 2.5},
		{"x * 0.05", Vars{"x": 1500.0}, 75},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			f, err := CompileFormula(tc.expr)
			if err != nil {
				t.Fatalf("CompileFormula(%q) error: %v", tc.expr, err)
			}
			got, err := f.Eval(tc.vars)
			if err != nil {
				t.Fatalf("Eval error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Eval(%q) = %v, want %v", tc.expr, got, tc.want)
			}
		})
	}
}

func TestFields(t *testing.T) {
	got, err := Fields("c * b > 0 AND NOT battery.soc < c OR `engine speed` > 1")
	if err != nil {
		t.Fatalf("Fields error: %v", err)
	}
	want := []string{"c", "b", "battery", "engine speed"}
	if len(got) != len(want) {
		t.Fatalf("Fields = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Fields[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
