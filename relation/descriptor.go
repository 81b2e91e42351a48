// Package relation declares associations between tables and stores them in a registry.
package relation

import "sort"

// Table references a table by name. Columns is optional; when known it is
// used to validate the fields relations point at.
type Table struct {
	Name    string
	Columns []string
}

// NewTable creates a table reference.
func NewTable(name string, columns ...string) Table {
	return Table{Name: name, Columns: columns}
}

// HasColumn reports whether the table declares column. Tables without a
// column list accept any column.
func (t Table) HasColumn(column string) bool {
	if len(t.Columns) == 0 {
		return true
	}
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Kind identifies the descriptor variant.
type Kind string

const (
	KindDirect               Kind = "direct"
	KindThroughJunction      Kind = "through_junction"
	KindPolymorphicBelongsTo Kind = "polymorphic_belongs_to"
	KindPolymorphicHasMany   Kind = "polymorphic_has_many"
)

// Descriptor describes one named association from a source table.
// The set of implementations is closed: Direct, ThroughJunction,
// PolymorphicBelongsTo and PolymorphicHasMany.
type Descriptor interface {
	Kind() Kind
	// IsPlural reports whether the relation attaches a sequence.
	IsPlural() bool
	// TargetTables lists every table the relation can load rows from.
	TargetTables() []Table
	descriptor()
}

// Direct is a one/many relation joined by local and target field tuples.
type Direct struct {
	Target       Table
	LocalFields  []string
	TargetFields []string
	Plural       bool
}

func (d *Direct) Kind() Kind            { return KindDirect }
func (d *Direct) IsPlural() bool        { return d.Plural }
func (d *Direct) TargetTables() []Table { return []Table{d.Target} }
func (d *Direct) descriptor()           {}

// ThroughJunction is a many-to-many relation through an intermediate table.
type ThroughJunction struct {
	Target               Table
	LocalFields          []string
	Junction             Table
	JunctionLocalFields  []string
	JunctionTargetFields []string
	TargetKeyFields      []string
}

func (d *ThroughJunction) Kind() Kind            { return KindThroughJunction }
func (d *ThroughJunction) IsPlural() bool        { return true }
func (d *ThroughJunction) TargetTables() []Table { return []Table{d.Target} }
func (d *ThroughJunction) descriptor()           {}

// PolymorphicBelongsTo points at one of several tables, chosen by the value
// of TypeColumn on the source row. IDColumn holds the target key.
type PolymorphicBelongsTo struct {
	TypeColumn string
	IDColumn   string
	// TargetKey is the key column on every target table; defaults to "id".
	TargetKey string
	Targets   map[string]Table
}

func (d *PolymorphicBelongsTo) Kind() Kind     { return KindPolymorphicBelongsTo }
func (d *PolymorphicBelongsTo) IsPlural() bool { return false }
func (d *PolymorphicBelongsTo) descriptor()    {}

// TargetTables returns the registered target tables ordered by discriminator value.
func (d *PolymorphicBelongsTo) TargetTables() []Table {
	types := d.TypeValues()
	tables := make([]Table, len(types))
	for i, t := range types {
		tables[i] = d.Targets[t]
	}
	return tables
}

// TypeValues returns the registered discriminator values, sorted.
func (d *PolymorphicBelongsTo) TypeValues() []string {
	types := make([]string, 0, len(d.Targets))
	for t := range d.Targets {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// TargetFor returns the table registered for a discriminator value.
func (d *PolymorphicBelongsTo) TargetFor(typeValue string) (Table, bool) {
	t, ok := d.Targets[typeValue]
	return t, ok
}

// KeyColumn returns the key column on target tables.
func (d *PolymorphicBelongsTo) KeyColumn() string {
	if d.TargetKey == "" {
		return "id"
	}
	return d.TargetKey
}

// PolymorphicHasMany loads target rows whose TypeColumn equals TypeValue and
// whose IDColumn matches the source key. Both columns live on the target.
type PolymorphicHasMany struct {
	Target          Table
	TypeColumn      string
	IDColumn        string
	TypeValue       string
	SourceKeyFields []string
}

func (d *PolymorphicHasMany) Kind() Kind            { return KindPolymorphicHasMany }
func (d *PolymorphicHasMany) IsPlural() bool        { return true }
func (d *PolymorphicHasMany) TargetTables() []Table { return []Table{d.Target} }
func (d *PolymorphicHasMany) descriptor()           {}

// SourceKeys returns the source key fields, defaulting to ["id"].
func (d *PolymorphicHasMany) SourceKeys() []string {
	if len(d.SourceKeyFields) == 0 {
		return []string{"id"}
	}
	return d.SourceKeyFields
}

// TargetTable returns the single target table of a descriptor. ok is false
// for polymorphic belongs-to, whose target depends on row data.
func TargetTable(d Descriptor) (Table, bool) {
	switch d := d.(type) {
	case *Direct:
		return d.Target, true
	case *ThroughJunction:
		return d.Target, true
	case *PolymorphicHasMany:
		return d.Target, true
	}
	return Table{}, false
}

// Clone returns a deep copy of d, so a registered descriptor cannot be
// changed through slices or maps the caller still holds.
func Clone(d Descriptor) Descriptor {
	switch d := d.(type) {
	case *Direct:
		if d == nil {
			return d
		}
		return &Direct{
			Target:       d.Target.clone(),
			LocalFields:  cloneFields(d.LocalFields),
			TargetFields: cloneFields(d.TargetFields),
			Plural:       d.Plural,
		}
	case *ThroughJunction:
		if d == nil {
			return d
		}
		return &ThroughJunction{
			Target:               d.Target.clone(),
			LocalFields:          cloneFields(d.LocalFields),
			Junction:             d.Junction.clone(),
			JunctionLocalFields:  cloneFields(d.JunctionLocalFields),
			JunctionTargetFields: cloneFields(d.JunctionTargetFields),
			TargetKeyFields:      cloneFields(d.TargetKeyFields),
		}
	case *PolymorphicBelongsTo:
		if d == nil {
			return d
		}
		c := &PolymorphicBelongsTo{
			TypeColumn: d.TypeColumn,
			IDColumn:   d.IDColumn,
			TargetKey:  d.TargetKey,
		}
		if d.Targets != nil {
			c.Targets = make(map[string]Table, len(d.Targets))
			for typeValue, t := range d.Targets {
				c.Targets[typeValue] = t.clone()
			}
		}
		return c
	case *PolymorphicHasMany:
		if d == nil {
			return d
		}
		return &PolymorphicHasMany{
			Target:          d.Target.clone(),
			TypeColumn:      d.TypeColumn,
			IDColumn:        d.IDColumn,
			TypeValue:       d.TypeValue,
			SourceKeyFields: cloneFields(d.SourceKeyFields),
		}
	}
	return d
}

func (t Table) clone() Table {
	return Table{Name: t.Name, Columns: cloneFields(t.Columns)}
}

func cloneFields(fields []string) []string {
	if fields == nil {
		return nil
	}
	return append(make([]string, 0, len(fields)), fields...)
}
