// Package memory provides an in-memory query.Source for tests and demos.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/satishbabariya/prisma-go-relations/query"
	"github.com/spf13/cast"
)

// Source holds tables of rows in memory and records every fetch it serves.
type Source struct {
	mu       sync.Mutex
	tables   map[string][]map[string]any
	failures map[string]error
	fetches  []query.Fetch
}

// New creates an empty source.
func New() *Source {
	return &Source{
		tables:   make(map[string][]map[string]any),
		failures: make(map[string]error),
	}
}

// Insert appends rows to table, creating it if needed. Inserting no rows
// creates an empty table.
func (s *Source) Insert(table string, rows ...map[string]any) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.tables[table]
	for _, r := range rows {
		existing = append(existing, copyValues(r))
	}
	if existing == nil {
		existing = []map[string]any{}
	}
	s.tables[table] = existing
	return s
}

// Tables returns the names of all tables, sorted.
func (s *Source) Tables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FailOn makes every fetch against table return err. A nil err clears it.
func (s *Source) FailOn(table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.failures, table)
		return
	}
	s.failures[table] = err
}

// Queries returns the number of fetches served, including failed ones.
func (s *Source) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fetches)
}

// Fetches returns a copy of the recorded fetches in arrival order.
func (s *Source) Fetches() []query.Fetch {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]query.Fetch, len(s.fetches))
	copy(out, s.fetches)
	return out
}

// FetchesFor returns the recorded fetches against one table.
func (s *Source) FetchesFor(table string) []query.Fetch {
	var out []query.Fetch
	for _, f := range s.Fetches() {
		if f.Table == table {
			out = append(out, f)
		}
	}
	return out
}

// Reset clears the fetch log.
func (s *Source) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches = nil
}

// Fetch implements query.Source. Returned rows are fresh copies.
func (s *Source) Fetch(ctx context.Context, f *query.Fetch) ([]*query.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f == nil || f.Table == "" {
		return nil, fmt.Errorf("fetch requires a table")
	}
	if err := f.Where.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.fetches = append(s.fetches, *f)
	if err := s.failures[f.Table]; err != nil {
		s.mu.Unlock()
		return nil, err
	}
	table, ok := s.tables[f.Table]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("table %q does not exist", f.Table)
	}
	snapshot := make([]map[string]any, len(table))
	copy(snapshot, table)
	s.mu.Unlock()

	keys, err := indexKeys(f.Keys)
	if err != nil {
		return nil, err
	}

	var rows []*query.Row
	for _, values := range snapshot {
		if keys != nil && !keys.match(values) {
			continue
		}
		if !matches(f.Where, values) {
			continue
		}
		rows = append(rows, query.NewRow(copyValues(values)))
	}

	query.SortRows(rows, f.OrderBy)
	if f.Limit != nil && *f.Limit >= 0 && len(rows) > *f.Limit {
		rows = rows[:*f.Limit]
	}
	if rows == nil {
		rows = []*query.Row{}
	}
	return rows, nil
}

type keyIndex struct {
	columns []string
	tuples  map[string]struct{}
}

func indexKeys(k *query.KeyFilter) (*keyIndex, error) {
	if k == nil {
		return nil, nil
	}
	if len(k.Columns) == 0 {
		return nil, fmt.Errorf("key filter requires at least one column")
	}
	idx := &keyIndex{columns: k.Columns, tuples: make(map[string]struct{}, len(k.Tuples))}
	for i, t := range k.Tuples {
		if len(t) != len(k.Columns) {
			return nil, fmt.Errorf("key tuple %d has %d values, expected %d", i, len(t), len(k.Columns))
		}
		if key, ok := tupleKey(t); ok {
			idx.tuples[key] = struct{}{}
		}
	}
	return idx, nil
}

func (k *keyIndex) match(values map[string]any) bool {
	tuple := make([]any, len(k.columns))
	for i, c := range k.columns {
		tuple[i] = values[c]
	}
	key, ok := tupleKey(tuple)
	if !ok {
		return false
	}
	_, found := k.tuples[key]
	return found
}

func tupleKey(tuple []any) (string, bool) {
	parts := make([]string, len(tuple))
	for i, v := range tuple {
		c, ok := query.Canonical(v)
		if !ok {
			return "", false
		}
		parts[i] = c
	}
	return strings.Join(parts, "\x1f"), true
}

func matches(f *query.Filter, values map[string]any) bool {
	if f.IsEmpty() {
		return true
	}

	var results []bool
	for _, c := range f.Conditions {
		results = append(results, matchCondition(c, values))
	}
	for i := range f.NestedFilters {
		if f.NestedFilters[i].IsEmpty() {
			continue
		}
		results = append(results, matches(&f.NestedFilters[i], values))
	}

	switch f.Operator {
	case query.OR:
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	case query.NOT:
		return !all(results)
	default:
		return all(results)
	}
}

func all(results []bool) bool {
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

func matchCondition(c query.Condition, values map[string]any) bool {
	v := values[c.Field]
	_, notNull := query.Canonical(v)

	switch c.Operator {
	case query.Equals:
		if c.Value == nil {
			return !notNull
		}
		return query.Equal(v, c.Value)
	case query.NotEquals:
		if c.Value == nil {
			return notNull
		}
		return notNull && !query.Equal(v, c.Value)
	case query.In, query.NotIn:
		list, _ := c.Value.([]any)
		found := false
		for _, item := range list {
			if query.Equal(v, item) {
				found = true
				break
			}
		}
		if c.Operator == query.In {
			return found
		}
		return notNull && !found
	case query.Lt:
		return notNull && query.Compare(v, c.Value) < 0
	case query.Lte:
		return notNull && query.Compare(v, c.Value) <= 0
	case query.Gt:
		return notNull && query.Compare(v, c.Value) > 0
	case query.Gte:
		return notNull && query.Compare(v, c.Value) >= 0
	case query.Contains:
		return notNull && strings.Contains(cast.ToString(v), cast.ToString(c.Value))
	case query.StartsWith:
		return notNull && strings.HasPrefix(cast.ToString(v), cast.ToString(c.Value))
	case query.EndsWith:
		return notNull && strings.HasSuffix(cast.ToString(v), cast.ToString(c.Value))
	case query.IsNull:
		if want, err := cast.ToBoolE(c.Value); err == nil && c.Value != nil && !want {
			return notNull
		}
		return !notNull
	}
	return false
}

func copyValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
