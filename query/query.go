// Package query defines the query-execution contract the eager loader consumes.
package query

import (
	"context"
	"fmt"
	"strings"
)

// Source executes fetches against a data store.
// Implementations must honor Keys, Where and OrderBy; Limit is global.
type Source interface {
	Fetch(ctx context.Context, f *Fetch) ([]*Row, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, f *Fetch) ([]*Row, error)

// Fetch implements Source.
func (fn SourceFunc) Fetch(ctx context.Context, f *Fetch) ([]*Row, error) {
	return fn(ctx, f)
}

// Fetch describes a single SELECT against one table.
type Fetch struct {
	Table   string
	Keys    *KeyFilter // optional tuple IN filter
	Where   *Filter    // AND-combined with Keys
	OrderBy []OrderBy
	Limit   *int
}

// String returns a compact description used in logs and errors.
func (f *Fetch) String() string {
	var b strings.Builder
	b.WriteString(f.Table)
	if f.Keys != nil {
		fmt.Fprintf(&b, " keys(%s)=%d", strings.Join(f.Keys.Columns, ","), len(f.Keys.Tuples))
	}
	if f.Where != nil && !f.Where.IsEmpty() {
		b.WriteString(" where")
	}
	if len(f.OrderBy) > 0 {
		parts := make([]string, len(f.OrderBy))
		for i, ob := range f.OrderBy {
			parts[i] = ob.String()
		}
		fmt.Fprintf(&b, " order(%s)", strings.Join(parts, ", "))
	}
	if f.Limit != nil {
		fmt.Fprintf(&b, " limit=%d", *f.Limit)
	}
	return b.String()
}

// KeyFilter restricts a fetch to rows whose Columns match one of Tuples.
// Every tuple has len(Columns) values.
type KeyFilter struct {
	Columns []string
	Tuples  [][]any
}

// NewKeyFilter creates a key filter, validating tuple arity.
func NewKeyFilter(columns []string, tuples [][]any) (*KeyFilter, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("key filter requires at least one column")
	}
	for i, t := range tuples {
		if len(t) != len(columns) {
			return nil, fmt.Errorf("key tuple %d has %d values, expected %d", i, len(t), len(columns))
		}
	}
	return &KeyFilter{Columns: columns, Tuples: tuples}, nil
}

// Values returns the first column of every tuple, for single-column filters.
func (k *KeyFilter) Values() []any {
	values := make([]any, len(k.Tuples))
	for i, t := range k.Tuples {
		values[i] = t[0]
	}
	return values
}
