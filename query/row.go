package query

import "sort"

// Row is a result row: column values plus eager-loaded relations.
//
// Related holds, per alias, either a *Row (singular, nil when nothing
// matched) or a []*Row (plural, never nil).
type Row struct {
	Values  map[string]any
	Related map[string]any
}

// NewRow creates a row from column values.
func NewRow(values map[string]any) *Row {
	if values == nil {
		values = make(map[string]any)
	}
	return &Row{Values: values}
}

// Get returns a column value.
func (r *Row) Get(column string) any {
	if r == nil {
		return nil
	}
	return r.Values[column]
}

// Has reports whether alias was attached to the row.
func (r *Row) Has(alias string) bool {
	if r == nil || r.Related == nil {
		return false
	}
	_, ok := r.Related[alias]
	return ok
}

// One returns the singular relation attached under alias.
func (r *Row) One(alias string) *Row {
	if r == nil || r.Related == nil {
		return nil
	}
	one, _ := r.Related[alias].(*Row)
	return one
}

// Many returns the plural relation attached under alias.
func (r *Row) Many(alias string) []*Row {
	if r == nil || r.Related == nil {
		return nil
	}
	many, _ := r.Related[alias].([]*Row)
	return many
}

// Attach stores a relation value under alias.
func (r *Row) Attach(alias string, value any) {
	if r.Related == nil {
		r.Related = make(map[string]any)
	}
	r.Related[alias] = value
}

// Map flattens the row and its relations into plain maps, for encoding.
// Relation aliases take precedence over columns of the same name.
func (r *Row) Map() map[string]any {
	if r == nil {
		return nil
	}
	out := make(map[string]any, len(r.Values)+len(r.Related))
	for k, v := range r.Values {
		out[k] = v
	}
	aliases := make([]string, 0, len(r.Related))
	for alias := range r.Related {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		switch v := r.Related[alias].(type) {
		case *Row:
			if v == nil {
				out[alias] = nil
			} else {
				out[alias] = v.Map()
			}
		case []*Row:
			items := make([]map[string]any, len(v))
			for i, child := range v {
				items[i] = child.Map()
			}
			out[alias] = items
		default:
			out[alias] = v
		}
	}
	return out
}

// Rows builds rows from plain column maps.
func Rows(values ...map[string]any) []*Row {
	rows := make([]*Row, len(values))
	for i, v := range values {
		rows[i] = NewRow(v)
	}
	return rows
}
