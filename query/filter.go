package query

import (
	"fmt"
	"strings"
)

// Filter represents query conditions with support for nested logical combinations.
// Example: (status='active' AND role='admin') OR verified=true
//
//	Filter{
//	  Operator: OR,
//	  NestedFilters: [
//	    Filter{Operator: AND, Conditions: [{status='active'}, {role='admin'}]},
//	    Filter{Conditions: [{verified=true}]}
//	  ]
//	}
type Filter struct {
	Conditions    []Condition
	NestedFilters []Filter
	Operator      LogicalOperator
}

// LogicalOperator represents logical operators for combining conditions.
type LogicalOperator string

const (
	// AND combines conditions with AND.
	AND LogicalOperator = "AND"
	// OR combines conditions with OR.
	OR LogicalOperator = "OR"
	// NOT negates the AND of its conditions.
	NOT LogicalOperator = "NOT"
)

// Condition represents a single filter condition.
type Condition struct {
	Field    string
	Operator ComparisonOperator
	Value    any
}

// ComparisonOperator represents comparison operators.
type ComparisonOperator string

const (
	Equals     ComparisonOperator = "equals"
	NotEquals  ComparisonOperator = "not"
	In         ComparisonOperator = "in"
	NotIn      ComparisonOperator = "notIn"
	Lt         ComparisonOperator = "lt"
	Lte        ComparisonOperator = "lte"
	Gt         ComparisonOperator = "gt"
	Gte        ComparisonOperator = "gte"
	Contains   ComparisonOperator = "contains"
	StartsWith ComparisonOperator = "startsWith"
	EndsWith   ComparisonOperator = "endsWith"
	// IsNull matches NULL when Value is true (or nil), NOT NULL when false.
	IsNull ComparisonOperator = "isNull"
)

// Where builds an AND filter from conditions.
func Where(conditions ...Condition) *Filter {
	return &Filter{Conditions: conditions, Operator: AND}
}

// Eq creates an equals condition.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Operator: Equals, Value: value}
}

// Cmp creates a condition with an arbitrary operator.
func Cmp(field string, op ComparisonOperator, value any) Condition {
	return Condition{Field: field, Operator: op, Value: value}
}

// IsEmpty reports whether the filter has no conditions at any depth.
func (f *Filter) IsEmpty() bool {
	if f == nil {
		return true
	}
	if len(f.Conditions) > 0 {
		return false
	}
	for i := range f.NestedFilters {
		if !f.NestedFilters[i].IsEmpty() {
			return false
		}
	}
	return true
}

// And returns a filter that requires both f and other. Either may be nil.
func (f *Filter) And(other *Filter) *Filter {
	switch {
	case f.IsEmpty():
		return other
	case other.IsEmpty():
		return f
	}
	return &Filter{
		NestedFilters: []Filter{*f, *other},
		Operator:      AND,
	}
}

// Validate checks operators and field names.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	switch f.Operator {
	case "", AND, OR, NOT:
	default:
		return fmt.Errorf("unsupported logical operator %q", f.Operator)
	}
	for _, c := range f.Conditions {
		if c.Field == "" {
			return fmt.Errorf("condition with operator %q has no field", c.Operator)
		}
		switch c.Operator {
		case Equals, NotEquals, Lt, Lte, Gt, Gte, Contains, StartsWith, EndsWith, IsNull:
		case In, NotIn:
			if _, ok := c.Value.([]any); !ok {
				return fmt.Errorf("condition %s %s expects []any, got %T", c.Field, c.Operator, c.Value)
			}
		default:
			return fmt.Errorf("unsupported comparison operator %q on %s", c.Operator, c.Field)
		}
	}
	for i := range f.NestedFilters {
		if err := f.NestedFilters[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// OrderBy defines sorting.
type OrderBy struct {
	Field     string
	Direction SortDirection
}

// SortDirection represents sort direction.
type SortDirection string

const (
	// Asc sorts ascending.
	Asc SortDirection = "asc"
	// Desc sorts descending.
	Desc SortDirection = "desc"
)

// String renders the ordering as "field asc".
func (o OrderBy) String() string {
	dir := o.Direction
	if dir == "" {
		dir = Asc
	}
	return o.Field + " " + string(dir)
}

// Descending reports whether the ordering is descending.
func (o OrderBy) Descending() bool {
	return strings.EqualFold(string(o.Direction), string(Desc))
}

// ParseOrderBy parses "created_at desc, id" into OrderBy values.
func ParseOrderBy(s string) ([]OrderBy, error) {
	var out []OrderBy
	for _, part := range strings.Split(s, ",") {
		fields := strings.Fields(part)
		switch len(fields) {
		case 0:
			continue
		case 1:
			out = append(out, OrderBy{Field: fields[0], Direction: Asc})
		case 2:
			switch strings.ToLower(fields[1]) {
			case "asc":
				out = append(out, OrderBy{Field: fields[0], Direction: Asc})
			case "desc":
				out = append(out, OrderBy{Field: fields[0], Direction: Desc})
			default:
				return nil, fmt.Errorf("invalid sort direction %q for %s", fields[1], fields[0])
			}
		default:
			return nil, fmt.Errorf("invalid order clause %q", strings.TrimSpace(part))
		}
	}
	return out, nil
}
