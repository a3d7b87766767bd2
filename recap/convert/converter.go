// Package convert translates external schema dialects to and from the
// canonical type model.
//
// Each dialect has a Converter. ToCanonical rejects constructs the canonical
// model cannot represent with an *UnsupportedSchemaError. FromCanonical
// accepts every canonical value and encodes constructs the dialect lacks
// with its closest idiom.
package convert

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/recap/recap/types"
)

// Dialect names used in errors and by callers selecting an output format.
const (
	DialectTableSchema = "tableschema"
	DialectJSONSchema  = "jsonschema"
	DialectParquet     = "parquet"
)

// ErrNilSchema indicates a nil schema or type was passed to a converter.
var ErrNilSchema = errors.New("convert: nil schema")

// Converter translates between a dialect's schema value S and the canonical
// type model.
type Converter[S any] interface {
	// ToCanonical converts a dialect schema to a canonical type.
	ToCanonical(s S) (types.Type, error)

	// FromCanonical converts a canonical type to a dialect schema.
	FromCanonical(t types.Type) (S, error)
}

// UnsupportedSchemaError reports a dialect construct with no canonical
// equivalent.
type UnsupportedSchemaError struct {
	Dialect   string
	Construct string
	Path      string // dotted location of the construct, "" for the root
}

func (e *UnsupportedSchemaError) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "<root>"
	}
	return fmt.Sprintf("convert: %s: unsupported %s at %s", e.Dialect, e.Construct, loc)
}

func unsupported(dialect, construct, path string) error {
	return &UnsupportedSchemaError{Dialect: dialect, Construct: construct, Path: path}
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// rootStruct wraps a non-struct canonical type as the single field "value"
// for dialects whose root must be a record.
func rootStruct(t types.Type) types.Struct {
	if s, ok := t.(types.Struct); ok {
		return s
	}
	return types.MustStruct(types.Field{Name: "value", Type: t})
}

// splitNullable separates a null alternative from a union. It reports the
// remaining type and whether null was present. A union of only null and one
// other type collapses to that type.
func splitNullable(t types.Type) (types.Type, bool) {
	u, ok := t.(types.Union)
	if !ok || !u.Contains(types.Null()) {
		return t, false
	}
	var rest []types.Type
	for _, alt := range u.Types() {
		if !types.Equal(alt, types.Null()) {
			rest = append(rest, alt)
		}
	}
	merged, err := types.Merge(rest...)
	if err != nil {
		return t, false
	}
	return merged, true
}
