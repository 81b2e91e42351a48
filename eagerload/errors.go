package eagerload

import (
	"errors"
	"fmt"
)

// Error types for resolution.
var (
	// ErrQueryExecutionFailed is returned when the source fails a fetch.
	ErrQueryExecutionFailed = errors.New("query execution failed")

	// ErrUnregisteredDiscriminator is returned under DiscriminatorError when a
	// polymorphic type value has no registered target.
	ErrUnregisteredDiscriminator = errors.New("unregistered discriminator value")

	// ErrInvalidLoadOptions is returned when a with-spec entry cannot be parsed.
	ErrInvalidLoadOptions = errors.New("invalid load options")
)

// QueryExecutionError wraps a source failure with the node that issued it.
type QueryExecutionError struct {
	Table    string
	Relation string
	Cause    error
}

// Error implements the error interface.
func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("%s: loading %s from %s: %v", ErrQueryExecutionFailed, e.Relation, e.Table, e.Cause)
}

// Unwrap returns the source error.
func (e *QueryExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches ErrQueryExecutionFailed as well as the cause.
func (e *QueryExecutionError) Is(target error) bool {
	return target == ErrQueryExecutionFailed
}

// UnregisteredDiscriminatorError names the relation and the unmatched type value.
type UnregisteredDiscriminatorError struct {
	Relation string
	Value    string
}

// Error implements the error interface.
func (e *UnregisteredDiscriminatorError) Error() string {
	return fmt.Sprintf("relation %s: %s %q", e.Relation, ErrUnregisteredDiscriminator, e.Value)
}

// Unwrap returns ErrUnregisteredDiscriminator.
func (e *UnregisteredDiscriminatorError) Unwrap() error {
	return ErrUnregisteredDiscriminator
}

func invalidOptions(alias, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidLoadOptions, alias, fmt.Sprintf(format, args...))
}
