package eagerload

import (
	"sort"
	"strings"

	"github.com/satishbabariya/prisma-go-relations/query"
	"github.com/satishbabariya/prisma-go-relations/relation"
)

// keySet is a deduplicated set of key tuples in first-seen order.
type keySet struct {
	tuples [][]any
	seen   map[string]struct{}
}

func newKeySet() *keySet {
	return &keySet{seen: make(map[string]struct{})}
}

func (k *keySet) add(canonical string, tuple []any) {
	if _, ok := k.seen[canonical]; ok {
		return
	}
	k.seen[canonical] = struct{}{}
	k.tuples = append(k.tuples, tuple)
}

func (k *keySet) len() int { return len(k.tuples) }

// filter returns the tuples as a key filter on columns.
func (k *keySet) filter(columns []string) *query.KeyFilter {
	return &query.KeyFilter{Columns: columns, Tuples: k.tuples}
}

// rowKey projects fields from a row. ok is false when any component is NULL.
func rowKey(row *query.Row, fields []string) (canonical string, tuple []any, ok bool) {
	tuple = make([]any, len(fields))
	parts := make([]string, len(fields))
	for i, f := range fields {
		v := row.Get(f)
		c, notNull := query.Canonical(v)
		if !notNull {
			return "", nil, false
		}
		tuple[i] = v
		parts[i] = c
	}
	return strings.Join(parts, "\x1f"), tuple, true
}

// extractKeys collects the distinct non-NULL key tuples of parents on fields.
func extractKeys(parents []*query.Row, fields []string) *keySet {
	keys := newKeySet()
	for _, p := range parents {
		if canonical, tuple, ok := rowKey(p, fields); ok {
			keys.add(canonical, tuple)
		}
	}
	return keys
}

// partitions groups polymorphic ids by discriminator value.
type partitions struct {
	byType       map[string]*keySet
	unregistered []string
}

// types returns the partitioned discriminator values, sorted.
func (p *partitions) types() []string {
	types := make([]string, 0, len(p.byType))
	for t := range p.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// partitionByType splits parents by d.TypeColumn. Rows with a NULL type or id
// join nothing; types without a registered target are reported as unregistered.
func partitionByType(parents []*query.Row, d *relation.PolymorphicBelongsTo) *partitions {
	p := &partitions{byType: make(map[string]*keySet)}
	unregistered := make(map[string]struct{})

	for _, parent := range parents {
		typeValue, ok := query.Canonical(parent.Get(d.TypeColumn))
		if !ok {
			continue
		}
		if _, registered := d.Targets[typeValue]; !registered {
			unregistered[typeValue] = struct{}{}
			continue
		}
		canonical, tuple, ok := rowKey(parent, []string{d.IDColumn})
		if !ok {
			continue
		}
		keys, exists := p.byType[typeValue]
		if !exists {
			keys = newKeySet()
			p.byType[typeValue] = keys
		}
		keys.add(canonical, tuple)
	}

	for t := range unregistered {
		p.unregistered = append(p.unregistered, t)
	}
	sort.Strings(p.unregistered)
	return p
}
