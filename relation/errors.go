package relation

import (
	"errors"
	"fmt"
)

// Error types for registry operations.
var (
	// ErrUnknownRelation is returned when a relation name is not registered for a table.
	ErrUnknownRelation = errors.New("unknown relation")

	// ErrInvalidDescriptor is returned when a descriptor fails validation.
	ErrInvalidDescriptor = errors.New("invalid relation descriptor")

	// ErrRegistrySealed is returned when registering into a sealed registry.
	ErrRegistrySealed = errors.New("relation registry is sealed")
)

// UnknownRelationError names the table and the alias that could not be resolved.
type UnknownRelationError struct {
	Table    string
	Relation string
	// Alias is the key the caller used; it differs from Relation for "alias:relation" keys.
	Alias string
}

// Error implements the error interface.
func (e *UnknownRelationError) Error() string {
	if e.Alias != "" && e.Alias != e.Relation {
		return fmt.Sprintf("unknown relation %q (alias %q) on table %q", e.Relation, e.Alias, e.Table)
	}
	return fmt.Sprintf("unknown relation %q on table %q", e.Relation, e.Table)
}

// Unwrap returns ErrUnknownRelation.
func (e *UnknownRelationError) Unwrap() error {
	return ErrUnknownRelation
}

// InvalidDescriptorError describes why a descriptor was rejected.
type InvalidDescriptorError struct {
	Table    string
	Relation string
	Reason   string
}

// Error implements the error interface.
func (e *InvalidDescriptorError) Error() string {
	return fmt.Sprintf("invalid relation %s.%s: %s", e.Table, e.Relation, e.Reason)
}

// Unwrap returns ErrInvalidDescriptor.
func (e *InvalidDescriptorError) Unwrap() error {
	return ErrInvalidDescriptor
}

func invalid(table, name, format string, args ...any) error {
	return &InvalidDescriptorError{Table: table, Relation: name, Reason: fmt.Sprintf(format, args...)}
}
