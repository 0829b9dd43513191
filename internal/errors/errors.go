// Package errors defines the error taxonomy of the training-table pipeline.
//
// Loader and engine failures fall into three families: parse errors (a value
// in a game log cannot be interpreted), schema errors (a required column is
// absent), and integrity errors (the merge join key does not uniquely
// identify a game). Data-cleaning steps never produce errors.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline-level conditions.
var (
	// ErrInvalidSpan is returned when the configured window length is not
	// a positive integer.
	ErrInvalidSpan = errors.New("span must be a positive integer")

	// ErrNoEntities is returned when the input directory yields no
	// entity game logs at all.
	ErrNoEntities = errors.New("no entity game logs found")

	// ErrEmptyTable is returned when a stage receives a table with no
	// rows where rows are required to proceed.
	ErrEmptyTable = errors.New("table has no rows")
)

// ParseError reports a value in an entity's game log that could not be
// interpreted, naming the entity and record so the offending source line can
// be located.
type ParseError struct {
	Entity string
	Row    int
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("entity %s row %d: cannot parse %s value %q: %v",
			e.Entity, e.Row, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("entity %s row %d: cannot parse %s value %q",
		e.Entity, e.Row, e.Field, e.Value)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a ParseError for the given entity, record position
// and field.
func NewParseError(entity string, row int, field, value string, err error) *ParseError {
	return &ParseError{Entity: entity, Row: row, Field: field, Value: value, Err: err}
}

// SchemaError reports a required column missing from an entity's game log.
type SchemaError struct {
	Entity string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("entity %s: required column %q missing from game log", e.Entity, e.Column)
}

// NewSchemaError creates a SchemaError naming the missing column.
func NewSchemaError(entity, column string) *SchemaError {
	return &SchemaError{Entity: entity, Column: column}
}

// IntegrityError reports a join-key collision during the perspective merge:
// one side of the join holds more than one row for a key that must uniquely
// identify a single game. The merge refuses to pick a row arbitrarily.
type IntegrityError struct {
	Key   string
	Side  string
	Count int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("join key %q appears %d times on the %s side; key must identify a single game",
		e.Key, e.Count, e.Side)
}

// NewIntegrityError creates an IntegrityError for a duplicated join key.
func NewIntegrityError(key, side string, count int) *IntegrityError {
	return &IntegrityError{Key: key, Side: side, Count: count}
}

// IsParseError reports whether err wraps a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsSchemaError reports whether err wraps a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsIntegrityError reports whether err wraps an IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
