// Package withdsl parses the textual with-spec syntax into an eagerload.WithSpec.
//
//	writer:author{comments(limit: 5, order: "created_at desc")}, tags
//
// Loads take the arguments limit, order (or order_by) and where. A where
// object maps columns to literals (equality), null (IS NULL) or operator
// objects such as {gt: 3, lte: 10}; the keys AND, OR and NOT take an object
// or a list of objects.
package withdsl

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/spf13/cast"

	"github.com/satishbabariya/prisma-go-relations/eagerload"
	"github.com/satishbabariya/prisma-go-relations/query"
)

// ErrSyntax is matched by every error returned from Parse and ParseFilter.
var ErrSyntax = errors.New("invalid with-spec")

// SyntaxError reports a malformed with-spec at a source position.
type SyntaxError struct {
	Pos lexer.Position
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

func syntaxError(pos lexer.Position, format string, args ...any) error {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Parse parses a with-spec expression.
func Parse(input string) (eagerload.WithSpec, error) {
	return ParseReader("", strings.NewReader(input))
}

// ParseReader parses a with-spec expression from r. filename is used in
// error positions.
func ParseReader(filename string, r io.Reader) (eagerload.WithSpec, error) {
	raw, err := parser.Parse(filename, r)
	if err != nil {
		return nil, wrapParseError(err)
	}
	return convertList(raw)
}

func wrapParseError(err error) error {
	var perr participle.Error
	if errors.As(err, &perr) {
		return &SyntaxError{Pos: perr.Position(), Msg: perr.Message()}
	}
	return fmt.Errorf("%w: %v", ErrSyntax, err)
}

// ParseFilter parses a where object such as {status: "live", score: {gt: 3}}.
func ParseFilter(input string) (*query.Filter, error) {
	raw, err := filterParser.ParseString("", input)
	if err != nil {
		return nil, wrapParseError(err)
	}
	if raw.Object == nil {
		return nil, syntaxError(raw.Pos, "where expects an object")
	}
	return convertFilter(query.AND, raw.Object)
}

// MustParse is like Parse but panics on error.
func MustParse(input string) eagerload.WithSpec {
	spec, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return spec
}

func convertList(l *List) (eagerload.WithSpec, error) {
	spec := make(eagerload.WithSpec, len(l.Items))
	seen := make(map[string]bool, len(l.Items))
	for _, item := range l.Items {
		if seen[item.Alias] {
			return nil, syntaxError(item.Pos, "duplicate alias %q", item.Alias)
		}
		seen[item.Alias] = true

		key := item.Alias
		if item.Relation != "" {
			key += ":" + item.Relation
		}
		value, err := convertItem(item)
		if err != nil {
			return nil, err
		}
		spec[key] = value
	}
	return spec, nil
}

func convertItem(item *Item) (any, error) {
	var nested eagerload.WithSpec
	if item.Nested != nil {
		var err error
		if nested, err = convertList(item.Nested); err != nil {
			return nil, err
		}
	}
	if len(item.Args) == 0 {
		if nested != nil {
			return nested, nil
		}
		return true, nil
	}

	opts := make(map[string]any, len(item.Args)+1)
	for _, arg := range item.Args {
		name := arg.Name
		switch name {
		case "order", "order_by", "orderBy":
			name = "order_by"
		case "limit", "where":
		default:
			return nil, syntaxError(arg.Pos, "unknown argument %q (expected limit, order or where)", arg.Name)
		}
		if _, dup := opts[name]; dup {
			return nil, syntaxError(arg.Pos, "argument %q given twice", arg.Name)
		}

		value, err := convertArg(name, arg)
		if err != nil {
			return nil, err
		}
		opts[name] = value
	}
	if nested != nil {
		opts["with"] = nested
	}
	return opts, nil
}

func convertArg(name string, arg *Arg) (any, error) {
	v := arg.Value
	switch name {
	case "limit":
		if v.Number == nil {
			return nil, syntaxError(v.Pos, "limit expects a number")
		}
		n, err := cast.ToIntE(*v.Number)
		if err != nil || n < 0 || strings.Contains(*v.Number, ".") {
			return nil, syntaxError(v.Pos, "limit expects a non-negative integer, got %s", *v.Number)
		}
		return n, nil
	case "order_by":
		return convertOrder(v)
	default:
		if v.Object == nil {
			return nil, syntaxError(v.Pos, "where expects an object")
		}
		return convertFilter(query.AND, v.Object)
	}
}

func convertOrder(v *Value) (string, error) {
	switch {
	case v.String != nil:
		return *v.String, nil
	case v.Ident != nil:
		return *v.Ident, nil
	case v.List != nil:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			s, err := convertOrder(item)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, ", "), nil
	}
	return "", syntaxError(v.Pos, "order expects a string or a list of strings")
}

var operators = map[string]query.ComparisonOperator{
	string(query.Equals):     query.Equals,
	string(query.NotEquals):  query.NotEquals,
	string(query.In):         query.In,
	string(query.NotIn):      query.NotIn,
	string(query.Lt):         query.Lt,
	string(query.Lte):        query.Lte,
	string(query.Gt):         query.Gt,
	string(query.Gte):        query.Gte,
	string(query.Contains):   query.Contains,
	string(query.StartsWith): query.StartsWith,
	string(query.EndsWith):   query.EndsWith,
	string(query.IsNull):     query.IsNull,
}

func convertFilter(op query.LogicalOperator, fields []*Field) (*query.Filter, error) {
	f := &query.Filter{Operator: op}
	for _, field := range fields {
		switch field.Key {
		case string(query.AND), string(query.OR), string(query.NOT):
			group, err := convertGroup(query.LogicalOperator(field.Key), field.Value)
			if err != nil {
				return nil, err
			}
			f.NestedFilters = append(f.NestedFilters, *group)
			continue
		}

		v := field.Value
		switch {
		case v.Null:
			f.Conditions = append(f.Conditions, query.Cmp(field.Key, query.IsNull, true))
		case v.Object != nil:
			for _, c := range v.Object {
				cmp, ok := operators[c.Key]
				if !ok {
					return nil, syntaxError(c.Pos, "unknown operator %q on %s", c.Key, field.Key)
				}
				value, err := literal(c.Value)
				if err != nil {
					return nil, err
				}
				if (cmp == query.In || cmp == query.NotIn) && c.Value.List == nil {
					return nil, syntaxError(c.Value.Pos, "%s expects a list", c.Key)
				}
				f.Conditions = append(f.Conditions, query.Cmp(field.Key, cmp, value))
			}
		default:
			value, err := literal(v)
			if err != nil {
				return nil, err
			}
			if _, isList := value.([]any); isList {
				f.Conditions = append(f.Conditions, query.Cmp(field.Key, query.In, value))
				continue
			}
			f.Conditions = append(f.Conditions, query.Eq(field.Key, value))
		}
	}
	return f, nil
}

// convertGroup builds an AND/OR/NOT group from an object or a list of objects.
func convertGroup(op query.LogicalOperator, v *Value) (*query.Filter, error) {
	objects := [][]*Field{v.Object}
	if v.Object == nil {
		if v.List == nil {
			return nil, syntaxError(v.Pos, "%s expects an object or a list of objects", op)
		}
		objects = objects[:0]
		for _, item := range v.List {
			if item.Object == nil {
				return nil, syntaxError(item.Pos, "%s expects objects", op)
			}
			objects = append(objects, item.Object)
		}
	}

	group := &query.Filter{Operator: op}
	for _, fields := range objects {
		child, err := convertFilter(query.AND, fields)
		if err != nil {
			return nil, err
		}
		group.NestedFilters = append(group.NestedFilters, *child)
	}
	return group, nil
}

// literal converts a value to its Go form: string, int, float64, bool, nil,
// []any or map[string]any.
func literal(v *Value) (any, error) {
	switch {
	case v.String != nil:
		return *v.String, nil
	case v.Number != nil:
		if strings.Contains(*v.Number, ".") {
			return cast.ToFloat64E(*v.Number)
		}
		return cast.ToIntE(*v.Number)
	case v.Bool != nil:
		return *v.Bool == "true", nil
	case v.Null:
		return nil, nil
	case v.Ident != nil:
		return *v.Ident, nil
	case v.List != nil:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			value, err := literal(item)
			if err != nil {
				return nil, err
			}
			out[i] = value
		}
		return out, nil
	case v.Object != nil:
		out := make(map[string]any, len(v.Object))
		for _, field := range v.Object {
			value, err := literal(field.Value)
			if err != nil {
				return nil, err
			}
			out[field.Key] = value
		}
		return out, nil
	}
	return nil, syntaxError(v.Pos, "empty value")
}
