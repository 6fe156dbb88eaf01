package records

import (
	"errors"
	"fmt"
	"strings"
)

// Kind describes how a column is interpreted when it is loaded.
type Kind int

const (
	Categorical Kind = iota
	Numeric
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	default:
		return "categorical"
	}
}

// Field is a column the caller requires to be present in the input.
type Field struct {
	Name string
	Kind Kind
}

// Schema lists the required fields of a dataset. Columns present in the input
// but not listed here are still loaded, as categorical values.
type Schema struct {
	Fields []Field
}

// Categorical adds required categorical fields and returns the schema.
func (s Schema) Categorical(names ...string) Schema {
	for _, n := range names {
		s.Fields = append(s.Fields, Field{Name: n, Kind: Categorical})
	}
	return s
}

// Numeric adds required numeric fields and returns the schema.
func (s Schema) Numeric(names ...string) Schema {
	for _, n := range names {
		s.Fields = append(s.Fields, Field{Name: n, Kind: Numeric})
	}
	return s
}

// ErrSchema is matched by every SchemaError.
var ErrSchema = errors.New("schema error")

// SchemaError reports fields that a dataset or a view does not carry.
type SchemaError struct {
	Fields []string
	Reason string
}

func (e *SchemaError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "required field missing"
	}
	return fmt.Sprintf("%s: %s", reason, strings.Join(e.Fields, ", "))
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

func missingFields(fields ...string) *SchemaError {
	return &SchemaError{Fields: fields}
}
