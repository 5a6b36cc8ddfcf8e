package queryir

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery is wrapped by every validation error.
var ErrInvalidQuery = errors.New("invalid query")

// Validate checks q against schema: tables and columns must exist, values
// must match their column's kind, and joins need a condition. All problems
// are reported, joined with errors.Join.
func Validate(schema Schema, q Query) error {
	v := &validator{schema: schema}
	v.query(q)
	return errors.Join(v.errs...)
}

type validator struct {
	schema Schema
	errs   []error
}

func (v *validator) fail(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...)))
}

func (v *validator) query(q Query) {
	switch q := q.(type) {
	case Select:
		v.selectNode(q)
	case *Select:
		v.selectNode(*q)
	case Join:
		v.join(q)
	case *Join:
		v.join(*q)
	case nil:
		v.fail("nil query")
	default:
		v.fail("unknown query type %T", q)
	}
}

func (v *validator) selectNode(s Select) (Table, bool) {
	t, ok := v.schema[s.From]
	if !ok {
		v.fail("unknown table %q", s.From)
		return Table{}, false
	}
	for _, f := range s.Fields {
		if _, ok := t.Column(f); !ok {
			v.fail("%s: unknown column %q", t.Name, f)
		}
	}
	v.predicate(t, s.Filter)
	return t, true
}

func (v *validator) join(j Join) {
	left, lok := v.selectNode(j.Left)
	right, rok := v.selectNode(j.Right)
	if !lok || !rok {
		return
	}
	if j.On.Left == "" || j.On.Right == "" {
		v.fail("join %s with %s: condition is required", left.Name, right.Name)
		return
	}
	lc, lok := left.Column(j.On.Left)
	if !lok {
		v.fail("%s: unknown column %q", left.Name, j.On.Left)
	}
	rc, rok := right.Column(j.On.Right)
	if !rok {
		v.fail("%s: unknown column %q", right.Name, j.On.Right)
	}
	if lok && rok && lc.Kind != rc.Kind {
		v.fail("join %s.%s with %s.%s: kinds %s and %s differ",
			left.Name, lc.Name, right.Name, rc.Name, lc.Kind, rc.Kind)
	}
}

func (v *validator) predicate(t Table, p Predicate) {
	switch p := p.(type) {
	case nil:
	case Equals:
		v.equals(t, p)
	case *Equals:
		v.equals(t, *p)
	case AtLeast:
		v.atLeast(t, p)
	case *AtLeast:
		v.atLeast(t, *p)
	case And:
		for _, sub := range p.Predicates {
			v.predicate(t, sub)
		}
	case *And:
		for _, sub := range p.Predicates {
			v.predicate(t, sub)
		}
	case ColumnEquals, *ColumnEquals:
		v.fail("%s: column comparison is only allowed as a join condition", t.Name)
	default:
		v.fail("unknown predicate type %T", p)
	}
}

func (v *validator) equals(t Table, eq Equals) {
	c, ok := t.Column(eq.Field)
	if !ok {
		v.fail("%s: unknown column %q", t.Name, eq.Field)
		return
	}
	var kind string
	switch eq.Value.(type) {
	case string:
		kind = KindText
	case int, int64:
		kind = KindInteger
	case bool:
		kind = KindBool
	default:
		v.fail("%s.%s: unsupported value type %T", t.Name, c.Name, eq.Value)
		return
	}
	if kind != c.Kind {
		v.fail("%s.%s: %s value for %s column", t.Name, c.Name, kind, c.Kind)
	}
}

func (v *validator) atLeast(t Table, a AtLeast) {
	c, ok := t.Column(a.Field)
	if !ok {
		v.fail("%s: unknown column %q", t.Name, a.Field)
		return
	}
	if c.Kind != KindInteger {
		v.fail("%s.%s: >= needs an integer column, got %s", t.Name, c.Name, c.Kind)
	}
}
