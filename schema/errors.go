package schema

import (
	"errors"
	"fmt"
)

// ErrSchemaParse matches every error raised while reading a parameter source.
var ErrSchemaParse = errors.New("schema parse error")

// SchemaParseError reports a declaration that could not be read unambiguously.
type SchemaParseError struct {
	Symbol string
	Reason string
}

func (e *SchemaParseError) Error() string {
	return fmt.Sprintf("schema: %s: %s", e.Symbol, e.Reason)
}

func (e *SchemaParseError) Is(target error) bool { return target == ErrSchemaParse }

// MissingFeatureError is returned when a required declaration is absent.
type MissingFeatureError struct {
	Feature string
	Symbol  string
}

func (e *MissingFeatureError) Error() string {
	if e.Feature == "" || e.Feature == e.Symbol {
		return fmt.Sprintf("schema: missing declaration %q", e.Symbol)
	}
	return fmt.Sprintf("schema: feature %s: missing declaration %q", e.Feature, e.Symbol)
}

func (e *MissingFeatureError) Is(target error) bool { return target == ErrSchemaParse }

// ShapeError is returned when a declaration holds the wrong number of values.
type ShapeError struct {
	Symbol string
	Want   int
	Got    int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("schema: %s: expected %d values, found %d", e.Symbol, e.Want, e.Got)
}

func (e *ShapeError) Is(target error) bool { return target == ErrSchemaParse }

// PatternNotFoundError is returned by Write when a symbol does not match exactly once.
type PatternNotFoundError struct {
	Symbol  string
	Matches int
}

func (e *PatternNotFoundError) Error() string {
	return fmt.Sprintf("schema: %s: expected exactly one declaration, found %d", e.Symbol, e.Matches)
}
