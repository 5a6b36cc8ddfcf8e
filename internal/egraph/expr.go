package egraph

import (
	"fmt"
	"strings"
	"unicode"
)

// Expr is a parsed s-expression. Leaves have no children.
// In patterns, a leaf whose Op starts with '?' is a variable.
type Expr struct {
	Op       string
	Children []*Expr
}

// IsVar reports whether the node is a pattern variable.
func (e *Expr) IsVar() bool {
	return len(e.Children) == 0 && strings.HasPrefix(e.Op, "?") && len(e.Op) > 1
}

// String renders the expression back to s-expression form.
func (e *Expr) String() string {
	if len(e.Children) == 0 {
		return e.Op
	}
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(e.Op)
	for _, c := range e.Children {
		b.WriteByte(' ')
		b.WriteString(c.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Parse reads a single s-expression.
//
// Grammar:
//
//	expr := atom | "(" atom expr* ")"
//	atom := any run of characters other than whitespace and parentheses
func Parse(src string) (*Expr, error) {
	toks := tokenize(src)
	if len(toks) == 0 {
		return nil, fmt.Errorf("%w: empty expression", ErrParse)
	}
	p := &parser{toks: toks}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("%w: trailing input %q in %q", ErrParse, p.toks[p.pos], src)
	}
	return e, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParse(src string) *Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

func tokenize(src string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range src {
		switch {
		case r == '(' || r == ')':
			flush()
			toks = append(toks, string(r))
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

type parser struct {
	toks []string
	pos  int
}

func (p *parser) expr() (*Expr, error) {
	if p.pos >= len(p.toks) {
		return nil, fmt.Errorf("%w: unexpected end of input", ErrParse)
	}
	tok := p.toks[p.pos]
	p.pos++

	switch tok {
	case ")":
		return nil, fmt.Errorf("%w: unexpected ')'", ErrParse)
	case "(":
		if p.pos >= len(p.toks) {
			return nil, fmt.Errorf("%w: unexpected end of input", ErrParse)
		}
		op := p.toks[p.pos]
		if op == "(" || op == ")" {
			return nil, fmt.Errorf("%w: list must start with an operator", ErrParse)
		}
		p.pos++
		e := &Expr{Op: op}
		for {
			if p.pos >= len(p.toks) {
				return nil, fmt.Errorf("%w: missing ')' after %q", ErrParse, op)
			}
			if p.toks[p.pos] == ")" {
				p.pos++
				return e, nil
			}
			child, err := p.expr()
			if err != nil {
				return nil, err
			}
			e.Children = append(e.Children, child)
		}
	default:
		return &Expr{Op: tok}, nil
	}
}
