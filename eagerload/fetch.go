package eagerload

import (
	"context"
	"fmt"
	"time"

	"github.com/satishbabariya/prisma-go-relations/query"
	"github.com/satishbabariya/prisma-go-relations/relation"
)

// node loads one plan node onto parents and recurses into its children.
func (x *run) node(ctx context.Context, parents []*query.Row, n *Node, parentPath string) error {
	path := n.pathFrom(parentPath)
	x.stats.touch(path, n.Descriptor.Kind())

	var children *rowSet
	var err error
	switch d := n.Descriptor.(type) {
	case *relation.Direct:
		children, err = x.loadDirect(ctx, parents, n, d, path)
	case *relation.ThroughJunction:
		children, err = x.loadJunction(ctx, parents, n, d, path)
	case *relation.PolymorphicHasMany:
		children, err = x.loadHasMany(ctx, parents, n, d, path)
	case *relation.PolymorphicBelongsTo:
		return x.loadBelongsTo(ctx, parents, n, d, path)
	default:
		return fmt.Errorf("relation %s on %s has unsupported kind %T", n.Relation, n.Source, d)
	}
	if err != nil {
		return err
	}
	return x.level(ctx, children.rows, n.Children, path)
}

func (x *run) loadDirect(ctx context.Context, parents []*query.Row, n *Node, d *relation.Direct, path string) (*rowSet, error) {
	children := newRowSet()
	keys := extractKeys(parents, d.LocalFields)

	var idx *index
	if keys.len() > 0 {
		rows, err := x.fetch(ctx, n, path, &query.Fetch{
			Table:   d.Target.Name,
			Keys:    keys.filter(d.TargetFields),
			Where:   n.Options.Where,
			OrderBy: n.Options.OrderBy,
		})
		if err != nil {
			return nil, err
		}
		idx = buildIndex(rows, d.TargetFields)
	}

	for _, parent := range parents {
		var matches []*query.Row
		if key, _, ok := rowKey(parent, d.LocalFields); ok && idx != nil {
			matches = idx.lookup(key)
		}
		if d.Plural {
			x.attachPlural(parent, n, matches, children)
			continue
		}
		var match *query.Row
		if len(matches) > 0 {
			match = matches[0]
		}
		x.attachSingular(parent, n, match, children)
	}
	return children, nil
}

func (x *run) loadJunction(ctx context.Context, parents []*query.Row, n *Node, d *relation.ThroughJunction, path string) (*rowSet, error) {
	children := newRowSet()
	keys := extractKeys(parents, d.LocalFields)

	// source key -> distinct target keys, in junction order
	links := make(map[string][]string)
	var idx *index
	if keys.len() > 0 {
		junctionRows, err := x.fetch(ctx, n, path, &query.Fetch{
			Table: d.Junction.Name,
			Keys:  keys.filter(d.JunctionLocalFields),
		})
		if err != nil {
			return nil, err
		}

		targetKeys := newKeySet()
		linked := make(map[string]map[string]struct{})
		for _, jr := range junctionRows {
			sourceKey, _, ok := rowKey(jr, d.JunctionLocalFields)
			if !ok {
				continue
			}
			targetKey, tuple, ok := rowKey(jr, d.JunctionTargetFields)
			if !ok {
				continue
			}
			targetKeys.add(targetKey, tuple)
			if linked[sourceKey] == nil {
				linked[sourceKey] = make(map[string]struct{})
			}
			if _, dup := linked[sourceKey][targetKey]; dup {
				continue
			}
			linked[sourceKey][targetKey] = struct{}{}
			links[sourceKey] = append(links[sourceKey], targetKey)
		}

		if targetKeys.len() > 0 {
			rows, err := x.fetch(ctx, n, path, &query.Fetch{
				Table:   d.Target.Name,
				Keys:    targetKeys.filter(d.TargetKeyFields),
				Where:   n.Options.Where,
				OrderBy: n.Options.OrderBy,
			})
			if err != nil {
				return nil, err
			}
			idx = buildIndex(rows, d.TargetKeyFields)
		}
	}

	for _, parent := range parents {
		var matches []*query.Row
		if key, _, ok := rowKey(parent, d.LocalFields); ok && idx != nil {
			for _, targetKey := range links[key] {
				matches = append(matches, idx.lookup(targetKey)...)
			}
			matches = idx.ordered(matches)
		}
		x.attachPlural(parent, n, matches, children)
	}
	return children, nil
}

func (x *run) loadHasMany(ctx context.Context, parents []*query.Row, n *Node, d *relation.PolymorphicHasMany, path string) (*rowSet, error) {
	children := newRowSet()
	sourceKeys := d.SourceKeys()
	targetKeys := []string{d.IDColumn}
	keys := extractKeys(parents, sourceKeys)

	var idx *index
	if keys.len() > 0 {
		rows, err := x.fetch(ctx, n, path, &query.Fetch{
			Table:   d.Target.Name,
			Keys:    keys.filter(targetKeys),
			Where:   query.Where(query.Eq(d.TypeColumn, d.TypeValue)).And(n.Options.Where),
			OrderBy: n.Options.OrderBy,
		})
		if err != nil {
			return nil, err
		}
		idx = buildIndex(rows, targetKeys)
	}

	for _, parent := range parents {
		var matches []*query.Row
		if key, _, ok := rowKey(parent, sourceKeys); ok && idx != nil {
			matches = idx.lookup(key)
		}
		x.attachPlural(parent, n, matches, children)
	}
	return children, nil
}

func (x *run) loadBelongsTo(ctx context.Context, parents []*query.Row, n *Node, d *relation.PolymorphicBelongsTo, path string) error {
	parts := partitionByType(parents, d)
	if len(parts.unregistered) > 0 {
		if x.resolver.policy == DiscriminatorError {
			return &UnregisteredDiscriminatorError{Relation: path, Value: parts.unregistered[0]}
		}
		x.log.Debug("skipping unregistered discriminator values", "relation", path, "values", parts.unregistered)
	}

	keyColumn := []string{d.KeyColumn()}
	indexes := make(map[string]*index, len(parts.byType))
	for _, typeValue := range parts.types() {
		rows, err := x.fetch(ctx, n, path, &query.Fetch{
			Table:   d.Targets[typeValue].Name,
			Keys:    parts.byType[typeValue].filter(keyColumn),
			Where:   n.Options.Where,
			OrderBy: n.Options.OrderBy,
		})
		if err != nil {
			return err
		}
		indexes[typeValue] = buildIndex(rows, keyColumn)
	}

	byType := make(map[string]*rowSet)
	for _, parent := range parents {
		var match *query.Row
		typeValue, _ := query.Canonical(parent.Get(d.TypeColumn))
		if idx, ok := indexes[typeValue]; ok {
			if key, _, ok := rowKey(parent, []string{d.IDColumn}); ok {
				match = idx.first(key)
			}
		}
		if byType[typeValue] == nil {
			byType[typeValue] = newRowSet()
		}
		x.attachSingular(parent, n, match, byType[typeValue])
	}

	for _, typeValue := range parts.types() {
		rows := byType[typeValue]
		if rows == nil || len(rows.rows) == 0 {
			continue
		}
		if err := n.typeErrs[typeValue]; err != nil {
			return err
		}
		if err := x.level(ctx, rows.rows, n.ByType[typeValue], path+"["+typeValue+"]"); err != nil {
			return err
		}
	}
	return nil
}

// fetch dispatches f to the source, splitting the key set into chunks when a
// per-query key cap is configured. Every dispatch counts as one query.
func (x *run) fetch(ctx context.Context, n *Node, path string, f *query.Fetch) ([]*query.Row, error) {
	chunks := []*query.Fetch{f}
	if size := x.resolver.maxKeys; size > 0 && f.Keys != nil && len(f.Keys.Tuples) > size {
		chunks = chunks[:0]
		for start := 0; start < len(f.Keys.Tuples); start += size {
			end := min(start+size, len(f.Keys.Tuples))
			chunk := *f
			chunk.Keys = &query.KeyFilter{Columns: f.Keys.Columns, Tuples: f.Keys.Tuples[start:end]}
			chunks = append(chunks, &chunk)
		}
	}

	var all []*query.Row
	for _, chunk := range chunks {
		rows, err := x.dispatch(ctx, n, path, chunk)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	if len(chunks) > 1 {
		query.SortRows(all, f.OrderBy)
	}
	return all, nil
}

func (x *run) dispatch(ctx context.Context, n *Node, path string, f *query.Fetch) ([]*query.Row, error) {
	kind := string(n.Descriptor.Kind())
	keys := 0
	if f.Keys != nil {
		keys = len(f.Keys.Tuples)
	}

	start := time.Now()
	rows, err := x.resolver.source.Fetch(ctx, f)
	elapsed := time.Since(start)

	x.stats.query(path, len(rows))
	x.resolver.metrics.FetchCompleted(kind, f.Table, len(rows), elapsed, err)
	if err != nil {
		x.log.Debug("eagerload fetch failed", "relation", path, "kind", kind, "table", f.Table, "keys", keys, "error", err)
		return nil, &QueryExecutionError{Table: f.Table, Relation: path, Cause: err}
	}
	x.log.Debug("eagerload fetch", "relation", path, "kind", kind, "table", f.Table, "keys", keys, "rows", len(rows), "duration", elapsed)

	out := make([]*query.Row, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}
