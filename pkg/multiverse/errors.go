package multiverse

import (
	"errors"
	"fmt"
)

// ErrMissingMultiverse is returned when a Universe is constructed without a
// Multiverse. Universes cannot translate records on their own, so a detached
// universe is always a programming error.
var ErrMissingMultiverse = errors.New("universe requires a multiverse")

// SchemaNotFoundError indicates that no universal schema is registered for a
// record type. Surfaced at map-derivation time, before any record is touched.
type SchemaNotFoundError struct {
	// Name is the record-type name that has no registered universal schema.
	Name string
}

func (e *SchemaNotFoundError) Error() string {
	return fmt.Sprintf("no universal schema registered for %q", e.Name)
}

// UnmappedFieldError indicates that a universal field has no local
// counterpart and no declared default. Fatal at map-derivation time.
type UnmappedFieldError struct {
	// Schema is the local schema that fails to cover the field.
	Schema string

	// Universe is the universe the derivation was requested for.
	Universe string

	// Field is the universal field name with no local counterpart.
	Field string
}

func (e *UnmappedFieldError) Error() string {
	return fmt.Sprintf("universal field %q has no mapping in schema %q (universe %q)", e.Field, e.Schema, e.Universe)
}

// DuplicateFieldError is returned by LocalSchema.Add when a field name is
// already present.
type DuplicateFieldError struct {
	Schema string
	Field  string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("field %q already exists in schema %q", e.Field, e.Schema)
}

// DuplicateUniverseError is returned by Multiverse.AddUniverse when a
// universe name is already registered and replace was not requested.
type DuplicateUniverseError struct {
	Name string
}

func (e *DuplicateUniverseError) Error() string {
	return fmt.Sprintf("universe %q is already registered", e.Name)
}

// UniverseNotFoundError indicates a transport request named a universe the
// multiverse does not know.
type UniverseNotFoundError struct {
	Name string
}

func (e *UniverseNotFoundError) Error() string {
	return fmt.Sprintf("universe %q is not registered", e.Name)
}

// CollectionNotFoundError indicates a transport request named a collection
// missing from one of its universes.
type CollectionNotFoundError struct {
	Universe   string
	Collection string
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("collection %q not found in universe %q", e.Collection, e.Universe)
}

// ValidationError wraps a validator failure with the schema and universe the
// record was being translated into.
type ValidationError struct {
	Schema   string
	Universe string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record invalid for schema %q (universe %q): %v", e.Schema, e.Universe, e.Err)
}

// Unwrap exposes the underlying validator error for errors.Is/As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
