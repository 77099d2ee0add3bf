package remote

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterOp is a comparison understood by every gateway
type FilterOp string

const (
	OpEq    FilterOp = "eq"
	OpNeq   FilterOp = "neq"
	OpIn    FilterOp = "in"
	OpILike FilterOp = "ilike"
	OpGt    FilterOp = "gt"
	OpLt    FilterOp = "lt"
)

// Filter compares one column against a value. For OpIn the value is a slice.
type Filter struct {
	Column string
	Op     FilterOp
	Value  any
}

func Eq(column string, value any) Filter  { return Filter{Column: column, Op: OpEq, Value: value} }
func Neq(column string, value any) Filter { return Filter{Column: column, Op: OpNeq, Value: value} }
func Gt(column string, value any) Filter  { return Filter{Column: column, Op: OpGt, Value: value} }
func Lt(column string, value any) Filter  { return Filter{Column: column, Op: OpLt, Value: value} }

// In matches rows whose column equals any of values
func In(column string, values ...any) Filter {
	return Filter{Column: column, Op: OpIn, Value: values}
}

// ILike matches a case-insensitive pattern where % is a wildcard
func ILike(column, pattern string) Filter {
	return Filter{Column: column, Op: OpILike, Value: pattern}
}

// Values returns the operands of an OpIn filter
func (f Filter) Values() []any {
	switch v := f.Value.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

// Match evaluates the filter against a row
func (f Filter) Match(row Row) bool {
	got, ok := row[f.Column]
	switch f.Op {
	case OpEq:
		return ok && Text(got) == Text(f.Value)
	case OpNeq:
		return !ok || Text(got) != Text(f.Value)
	case OpIn:
		if !ok {
			return false
		}
		for _, v := range f.Values() {
			if Text(got) == Text(v) {
				return true
			}
		}
		return false
	case OpILike:
		return ok && likeMatch(strings.ToLower(Text(got)), strings.ToLower(Text(f.Value)))
	case OpGt:
		return ok && compare(got, f.Value) > 0
	case OpLt:
		return ok && compare(got, f.Value) < 0
	}
	return false
}

// MatchQuery reports whether row satisfies the filters of q
func MatchQuery(row Row, q Query) bool {
	for _, f := range q.Filters {
		if !f.Match(row) {
			return false
		}
	}
	if len(q.AnyOf) == 0 {
		return true
	}
	for _, f := range q.AnyOf {
		if f.Match(row) {
			return true
		}
	}
	return false
}

// Text renders a column value the way it appears in a query string
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func compare(a, b any) int {
	as, bs := Text(a), Text(b)
	af, aerr := strconv.ParseFloat(as, 64)
	bf, berr := strconv.ParseFloat(bs, 64)
	if aerr == nil && berr == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(as, bs)
}

func likeMatch(s, pattern string) bool {
	parts := strings.Split(pattern, "%")
	if len(parts) == 1 {
		return s == pattern
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, p := range parts[1 : len(parts)-1] {
		i := strings.Index(s, p)
		if i < 0 {
			return false
		}
		s = s[i+len(p):]
	}
	return strings.HasSuffix(s, last)
}
