package eagerload

import (
	"sort"
	"sync"

	"github.com/satishbabariya/prisma-go-relations/query"
)

// attachment is a pending write of a relation value onto a row.
type attachment struct {
	row   *query.Row
	alias string
	value any
}

// journal buffers attachments until the whole plan has succeeded, so a
// failed resolution leaves every row untouched.
type journal struct {
	mu      sync.Mutex
	entries []attachment
}

func (j *journal) record(row *query.Row, alias string, value any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, attachment{row: row, alias: alias, value: value})
}

func (j *journal) commit() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, a := range j.entries {
		a.row.Attach(a.alias, a.value)
	}
	j.entries = nil
}

// rowSet collects rows once each, in first-seen order.
type rowSet struct {
	rows []*query.Row
	seen map[*query.Row]struct{}
}

func newRowSet() *rowSet {
	return &rowSet{seen: make(map[*query.Row]struct{})}
}

func (s *rowSet) add(rows ...*query.Row) {
	for _, r := range rows {
		if r == nil {
			continue
		}
		if _, ok := s.seen[r]; ok {
			continue
		}
		s.seen[r] = struct{}{}
		s.rows = append(s.rows, r)
	}
}

// index groups fetched rows by the canonical key of fields, preserving fetch
// order within each group.
type index struct {
	groups   map[string][]*query.Row
	position map[*query.Row]int
}

func buildIndex(rows []*query.Row, fields []string) *index {
	idx := &index{
		groups:   make(map[string][]*query.Row),
		position: make(map[*query.Row]int, len(rows)),
	}
	for i, r := range rows {
		idx.position[r] = i
		key, _, ok := rowKey(r, fields)
		if !ok {
			continue
		}
		idx.groups[key] = append(idx.groups[key], r)
	}
	return idx
}

func (idx *index) lookup(key string) []*query.Row {
	return idx.groups[key]
}

// first returns the first row of a group, or nil.
func (idx *index) first(key string) *query.Row {
	if rows := idx.groups[key]; len(rows) > 0 {
		return rows[0]
	}
	return nil
}

// ordered deduplicates rows and sorts them back into fetch order.
func (idx *index) ordered(rows []*query.Row) []*query.Row {
	set := newRowSet()
	set.add(rows...)
	out := set.rows
	sort.SliceStable(out, func(i, j int) bool {
		return idx.position[out[i]] < idx.position[out[j]]
	})
	return out
}

// plural builds the attached sequence for one parent: deduplicated, in fetch
// order, capped at limit. The result is never nil.
func plural(matches []*query.Row, limit *int) []*query.Row {
	set := newRowSet()
	set.add(matches...)
	out := set.rows
	if limit != nil && len(out) > *limit {
		out = out[:*limit]
	}
	result := make([]*query.Row, len(out))
	copy(result, out)
	return result
}

// attachPlural records a plural result and adds it to children.
func (x *run) attachPlural(parent *query.Row, n *Node, matches []*query.Row, children *rowSet) {
	value := plural(matches, n.Options.Limit)
	x.journal.record(parent, n.Alias, value)
	children.add(value...)
}

// attachSingular records a singular result (possibly nil) and adds it to children.
func (x *run) attachSingular(parent *query.Row, n *Node, match *query.Row, children *rowSet) {
	x.journal.record(parent, n.Alias, match)
	children.add(match)
}
