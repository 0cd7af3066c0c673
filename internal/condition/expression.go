package condition

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// -----------------------------------------------------------------------
// AST nodes
// -----------------------------------------------------------------------

// Expr is the common interface for all boolean AST nodes.
type Expr interface {
	exprNode()
}

// BinaryExpr represents AND / OR.
type BinaryExpr struct {
	Op    string // "AND" | "OR"
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// NotExpr represents NOT <expr>.
type NotExpr struct {
	Expr Expr
}

func (*NotExpr) exprNode() {}

// ComparisonExpr represents <operand> <operator> <operand>.
type ComparisonExpr struct {
	Left  Operand
	Op    Operator
	Right Operand
}

func (*ComparisonExpr) exprNode() {}

// TruthExpr is a bare operand used as a condition ("enabled", "a * b").
// Zero numbers, false, empty strings and missing values are false.
type TruthExpr struct {
	Operand Operand
}

func (*TruthExpr) exprNode() {}

// -----------------------------------------------------------------------
// Operands
// -----------------------------------------------------------------------

// Operand is a value-producing node: a literal, a field path or arithmetic.
type Operand interface {
	operandNode()
}

// LiteralOperand holds a pre-parsed constant.
type LiteralOperand struct {
	Value interface{}
}

func (*LiteralOperand) operandNode() {}

// FieldOperand holds a dot-separated path like "battery.soc".
type FieldOperand struct {
	Path []string
}

func (*FieldOperand) operandNode() {}

// ArithOperand applies + - * / to two operands.
type ArithOperand struct {
	Op    byte
	Left  Operand
	Right Operand
}

func (*ArithOperand) operandNode() {}

// -----------------------------------------------------------------------
// Tokenizer
// -----------------------------------------------------------------------

type tokenKind int

const (
	tokWord   tokenKind = iota // identifier or keyword
	tokQuoted                  // `identifier with spaces`
	tokOp                      // ==, !=, >=, <=, >, <, + - * /
	tokString                  // "…" or '…'
	tokNumber                  // 42 | 3.14
	tokBool                    // true | false
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	val  string
}

// endsOperand reports whether a '-' following t is a binary minus.
func endsOperand(tokens []token) bool {
	if len(tokens) == 0 {
		return false
	}
	switch tokens[len(tokens)-1].kind {
	case tokWord, tokQuoted, tokNumber, tokString, tokBool, tokRParen:
		return true
	}
	return false
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(expr) {
		ch := expr[i]
		if unicode.IsSpace(rune(ch)) {
			i++
			continue
		}
		if ch == '(' {
			tokens = append(tokens, token{tokLParen, "("})
			i++
			continue
		}
		if ch == ')' {
			tokens = append(tokens, token{tokRParen, ")"})
			i++
			continue
		}
		if ch == '=' || ch == '!' || ch == '<' || ch == '>' {
			if i+1 < len(expr) && expr[i+1] == '=' {
				tokens = append(tokens, token{tokOp, expr[i : i+2]})
				i += 2
			} else {
				tokens = append(tokens, token{tokOp, string(ch)})
				i++
			}
			continue
		}
		if ch == '*' || ch == '/' || ch == '+' {
			tokens = append(tokens, token{tokOp, string(ch)})
			i++
			continue
		}
		// '-' is a sign only where an operand is expected.
		if ch == '-' && (endsOperand(tokens) || i+1 >= len(expr) || !unicode.IsDigit(rune(expr[i+1]))) {
			tokens = append(tokens, token{tokOp, "-"})
			i++
			continue
		}
		if ch == '"' || ch == '\'' {
			quote := ch
			j := i + 1
			for j < len(expr) && expr[j] != quote {
				if expr[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(expr) {
				return nil, fmt.Errorf("unterminated string starting at position %d", i)
			}
			inner := expr[i+1 : j]
			inner = strings.ReplaceAll(inner, `\"`, `"`)
			inner = strings.ReplaceAll(inner, `\'`, `'`)
			inner = strings.ReplaceAll(inner, `\\`, `\`)
			tokens = append(tokens, token{tokString, inner})
			i = j + 1
			continue
		}
		// Backquoted identifiers allow node ids with spaces or symbols.
		if ch == '`' {
			j := strings.IndexByte(expr[i+1:], '`')
			if j < 0 {
				return nil, fmt.Errorf("unterminated identifier starting at position %d", i)
			}
			tokens = append(tokens, token{tokQuoted, expr[i+1 : i+1+j]})
			i += j + 2
			continue
		}
		if unicode.IsDigit(rune(ch)) || ch == '-' {
			j := i
			if expr[j] == '-' {
				j++
			}
			for j < len(expr) && (unicode.IsDigit(rune(expr[j])) || expr[j] == '.' || expr[j] == 'e' || expr[j] == 'E') {
				j++
			}
			tokens = append(tokens, token{tokNumber, expr[i:j]})
			i = j
			continue
		}
		if unicode.IsLetter(rune(ch)) || ch == '_' {
			j := i
			for j < len(expr) && (unicode.IsLetter(rune(expr[j])) || unicode.IsDigit(rune(expr[j])) || expr[j] == '_' || expr[j] == '.') {
				j++
			}
			word := expr[i:j]
			switch strings.ToLower(word) {
			case "true", "false":
				tokens = append(tokens, token{tokBool, strings.ToLower(word)})
			default:
				tokens = append(tokens, token{tokWord, word})
			}
			i = j
			continue
		}
		return nil, fmt.Errorf("unexpected character %q at position %d", ch, i)
	}
	tokens = append(tokens, token{tokEOF, ""})
	return tokens, nil
}

// -----------------------------------------------------------------------
// Recursive-descent parser
// -----------------------------------------------------------------------

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) consume() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) expect(kind tokenKind, val string) error {
	t := p.peek()
	if t.kind != kind || (val != "" && t.val != val) {
		return fmt.Errorf("expected %q but got %q", val, t.val)
	}
	p.consume()
	return nil
}

// Parse parses a boolean expression string into an AST.
func Parse(expr string) (Expr, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected token %q after expression", p.peek().val)
	}
	return node, nil
}

// ParseValue parses an arithmetic expression ("a * b + 1") into an operand.
func ParseValue(expr string) (Operand, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	op, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected token %q after expression", p.peek().val)
	}
	return op, nil
}

// or_expr = and_expr ( "OR" and_expr )*
func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokWord && strings.ToUpper(p.peek().val) == "OR" {
		p.consume()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

// and_expr = not_expr ( "AND" not_expr )*
func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokWord && strings.ToUpper(p.peek().val) == "AND" {
		p.consume()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

// not_expr = [ "NOT" ] not_expr | "(" or_expr ")" | comparison
//
// A parenthesis may open either a boolean group or an arithmetic operand
// ("(a + b) * c > 0"); the group is tried first and abandoned when an
// operator follows it.
func (p *parser) parseNot() (Expr, error) {
	if p.peek().kind == tokWord && strings.ToUpper(p.peek().val) == "NOT" {
		p.consume()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Expr: inner}, nil
	}
	if p.peek().kind == tokLParen {
		mark := p.pos
		p.consume()
		inner, err := p.parseOr()
		if err == nil && p.peek().kind == tokRParen {
			p.consume()
			if p.peek().kind != tokOp {
				return inner, nil
			}
		}
		p.pos = mark
	}
	return p.parseComparison()
}

// comparison = sum [ operator sum ]
func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}

	t := p.peek()
	var op Operator
	switch {
	case t.kind == tokOp && isComparison(t.val):
		op = Operator(t.val)
		p.consume()
	case t.kind == tokWord && strings.ToLower(t.val) == "contains":
		op = OpContains
		p.consume()
	case t.kind == tokWord && strings.ToLower(t.val) == "matches":
		op = OpMatches
		p.consume()
	default:
		return &TruthExpr{Operand: left}, nil
	}

	right, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	return &ComparisonExpr{Left: left, Op: op, Right: right}, nil
}

// sum = product ( ("+" | "-") product )*
func (p *parser) parseSum() (Operand, error) {
	left, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t.kind == tokOp && (t.val == "+" || t.val == "-"); t = p.peek() {
		p.consume()
		right, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		left = &ArithOperand{Op: t.val[0], Left: left, Right: right}
	}
	return left, nil
}

// product = primary ( ("*" | "/") primary )*
func (p *parser) parseProduct() (Operand, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t.kind == tokOp && (t.val == "*" || t.val == "/"); t = p.peek() {
		p.consume()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &ArithOperand{Op: t.val[0], Left: left, Right: right}
	}
	return left, nil
}

// primary = field_path | literal | "(" sum ")"
func (p *parser) parsePrimary() (Operand, error) {
	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.consume()
		inner, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokString:
		p.consume()
		return &LiteralOperand{Value: t.val}, nil
	case tokNumber:
		p.consume()
		f, err := strconv.ParseFloat(t.val, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.val)
		}
		return &LiteralOperand{Value: f}, nil
	case tokBool:
		p.consume()
		return &LiteralOperand{Value: t.val == "true"}, nil
	case tokWord:
		p.consume()
		return &FieldOperand{Path: strings.Split(t.val, ".")}, nil
	case tokQuoted:
		p.consume()
		return &FieldOperand{Path: []string{t.val}}, nil
	default:
		return nil, fmt.Errorf("expected operand, got %q", t.val)
	}
}

func isComparison(op string) bool {
	switch Operator(op) {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Fields returns the distinct root names referenced by an expression, in
// order of first appearance.
func Fields(expr string) ([]string, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, t := range tokens {
		if t.kind == tokQuoted {
			if !seen[t.val] {
				seen[t.val] = true
				out = append(out, t.val)
			}
			continue
		}
		if t.kind != tokWord {
			continue
		}
		switch strings.ToUpper(t.val) {
		case "AND", "OR", "NOT", "CONTAINS", "MATCHES":
			continue
		}
		root := strings.SplitN(t.val, ".", 2)[0]
		if !seen[root] {
			seen[root] = true
			out = append(out, root)
		}
	}
	return out, nil
}
