package relation

// Validate checks a descriptor declared on source under name. Column
// existence is only checked against tables that list their columns.
func Validate(source Table, name string, d Descriptor) error {
	if source.Name == "" {
		return invalid(source.Name, name, "source table has no name")
	}
	if name == "" {
		return invalid(source.Name, name, "relation has no name")
	}

	switch d := d.(type) {
	case *Direct:
		return validateDirect(source, name, d)
	case *ThroughJunction:
		return validateJunction(source, name, d)
	case *PolymorphicBelongsTo:
		return validateBelongsTo(source, name, d)
	case *PolymorphicHasMany:
		return validateHasMany(source, name, d)
	case nil:
		return invalid(source.Name, name, "descriptor is nil")
	default:
		return invalid(source.Name, name, "unsupported descriptor %T", d)
	}
}

func validateDirect(source Table, name string, d *Direct) error {
	if d.Target.Name == "" {
		return invalid(source.Name, name, "target table has no name")
	}
	if err := checkPair(source.Name, name, "local", d.LocalFields, "target", d.TargetFields); err != nil {
		return err
	}
	if err := checkColumns(source.Name, name, source, d.LocalFields...); err != nil {
		return err
	}
	return checkColumns(source.Name, name, d.Target, d.TargetFields...)
}

func validateJunction(source Table, name string, d *ThroughJunction) error {
	if d.Target.Name == "" {
		return invalid(source.Name, name, "target table has no name")
	}
	if d.Junction.Name == "" {
		return invalid(source.Name, name, "junction table has no name")
	}
	if err := checkPair(source.Name, name, "local", d.LocalFields, "junction local", d.JunctionLocalFields); err != nil {
		return err
	}
	if err := checkPair(source.Name, name, "junction target", d.JunctionTargetFields, "target key", d.TargetKeyFields); err != nil {
		return err
	}
	if err := checkColumns(source.Name, name, source, d.LocalFields...); err != nil {
		return err
	}
	junctionColumns := append(append([]string{}, d.JunctionLocalFields...), d.JunctionTargetFields...)
	if err := checkColumns(source.Name, name, d.Junction, junctionColumns...); err != nil {
		return err
	}
	return checkColumns(source.Name, name, d.Target, d.TargetKeyFields...)
}

func validateBelongsTo(source Table, name string, d *PolymorphicBelongsTo) error {
	if d.TypeColumn == "" || d.IDColumn == "" {
		return invalid(source.Name, name, "type and id columns are required")
	}
	if len(d.Targets) == 0 {
		return invalid(source.Name, name, "targets are empty")
	}
	if err := checkColumns(source.Name, name, source, d.TypeColumn, d.IDColumn); err != nil {
		return err
	}
	for _, typeValue := range d.TypeValues() {
		target := d.Targets[typeValue]
		if typeValue == "" {
			return invalid(source.Name, name, "target has an empty type value")
		}
		if target.Name == "" {
			return invalid(source.Name, name, "target for type %q has no table name", typeValue)
		}
		if err := checkColumns(source.Name, name, target, d.KeyColumn()); err != nil {
			return err
		}
	}
	return nil
}

func validateHasMany(source Table, name string, d *PolymorphicHasMany) error {
	if d.Target.Name == "" {
		return invalid(source.Name, name, "target table has no name")
	}
	if d.TypeColumn == "" || d.IDColumn == "" {
		return invalid(source.Name, name, "type and id columns are required")
	}
	if d.TypeValue == "" {
		return invalid(source.Name, name, "type value is empty")
	}
	keys := d.SourceKeys()
	if len(keys) != 1 {
		return invalid(source.Name, name, "expected 1 source key field for id column %q, got %d", d.IDColumn, len(keys))
	}
	if keys[0] == "" {
		return invalid(source.Name, name, "source key field is empty")
	}
	if err := checkColumns(source.Name, name, source, keys...); err != nil {
		return err
	}
	return checkColumns(source.Name, name, d.Target, d.TypeColumn, d.IDColumn)
}

// checkPair validates two field tuples that must line up one to one.
func checkPair(table, name, leftLabel string, left []string, rightLabel string, right []string) error {
	if len(left) == 0 {
		return invalid(table, name, "%s fields are empty", leftLabel)
	}
	if len(left) != len(right) {
		return invalid(table, name, "%s fields %v do not match %s fields %v", leftLabel, left, rightLabel, right)
	}
	for i := range left {
		if left[i] == "" || right[i] == "" {
			return invalid(table, name, "field %d is empty", i)
		}
	}
	return nil
}

func checkColumns(source, name string, t Table, columns ...string) error {
	for _, c := range columns {
		if !t.HasColumn(c) {
			return invalid(source, name, "column %q does not exist on %q", c, t.Name)
		}
	}
	return nil
}
