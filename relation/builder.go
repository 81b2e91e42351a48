package relation

import "errors"

// Builder collects the relations of one source table inside Define.
type Builder struct {
	source       Table
	declarations []*Declaration
}

// Declaration is a relation pending registration.
type Declaration struct {
	entry Entry
}

// As sets the display name of the relation.
func (d *Declaration) As(display string) *Declaration {
	d.entry.Display = display
	return d
}

// Junction describes the intermediate table of a many-to-many relation.
// SourceFields and TargetKeyFields default to ["id"].
type Junction struct {
	Table Table
	// SourceFields are the source columns referenced by LocalFields.
	SourceFields []string
	// LocalFields are junction columns pointing at the source.
	LocalFields []string
	// TargetFields are junction columns pointing at the target.
	TargetFields []string
	// TargetKeyFields are the target columns referenced by TargetFields.
	TargetKeyFields []string
}

// Define registers the relations declared by fn on source. Every declaration
// is validated first; if any fails, the joined errors are returned and
// nothing is registered.
func (r *Registry) Define(source Table, fn func(*Builder)) error {
	source = source.clone()
	b := &Builder{source: source}
	fn(b)

	var errs []error
	for _, decl := range b.declarations {
		decl.entry.Descriptor = Clone(decl.entry.Descriptor)
		if err := Validate(source, decl.entry.Name, decl.entry.Descriptor); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}
	r.rememberTable(source)
	for _, decl := range b.declarations {
		entry := decl.entry
		r.store(&entry)
	}
	return nil
}

// Relation declares a relation from an already built descriptor.
func (b *Builder) Relation(name string, d Descriptor) *Declaration {
	decl := &Declaration{entry: Entry{Source: b.source, Name: name, Descriptor: d}}
	b.declarations = append(b.declarations, decl)
	return decl
}

// One declares a singular direct relation where source.localFields match
// target.targetFields.
func (b *Builder) One(name string, target Table, localFields, targetFields []string) *Declaration {
	return b.Relation(name, &Direct{
		Target:       target,
		LocalFields:  localFields,
		TargetFields: targetFields,
	})
}

// Many declares a plural direct relation.
func (b *Builder) Many(name string, target Table, localFields, targetFields []string) *Declaration {
	return b.Relation(name, &Direct{
		Target:       target,
		LocalFields:  localFields,
		TargetFields: targetFields,
		Plural:       true,
	})
}

// ManyThrough declares a many-to-many relation through a junction table.
func (b *Builder) ManyThrough(name string, target Table, j Junction) *Declaration {
	return b.Relation(name, &ThroughJunction{
		Target:               target,
		LocalFields:          orID(j.SourceFields),
		Junction:             j.Table,
		JunctionLocalFields:  j.LocalFields,
		JunctionTargetFields: j.TargetFields,
		TargetKeyFields:      orID(j.TargetKeyFields),
	})
}

// OnePolymorphic declares a belongs-to relation whose target table is picked
// by typeColumn. targets maps discriminator values to tables.
func (b *Builder) OnePolymorphic(name, typeColumn, idColumn string, targets map[string]Table) *Declaration {
	copied := make(map[string]Table, len(targets))
	for k, v := range targets {
		copied[k] = v
	}
	return b.Relation(name, &PolymorphicBelongsTo{
		TypeColumn: typeColumn,
		IDColumn:   idColumn,
		Targets:    copied,
	})
}

// ManyPolymorphic declares the inverse of a polymorphic belongs-to: target
// rows whose typeColumn equals typeValue and whose idColumn references the
// source key (default "id").
func (b *Builder) ManyPolymorphic(name string, target Table, typeColumn, idColumn, typeValue string, sourceKey ...string) *Declaration {
	return b.Relation(name, &PolymorphicHasMany{
		Target:          target,
		TypeColumn:      typeColumn,
		IDColumn:        idColumn,
		TypeValue:       typeValue,
		SourceKeyFields: sourceKey,
	})
}

func orID(fields []string) []string {
	if len(fields) == 0 {
		return []string{"id"}
	}
	return fields
}
