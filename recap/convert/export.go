package convert

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/pithecene-io/recap/recap/types"
)

// DialectCanonical names the canonical type model itself.
const DialectCanonical = "canonical"

// ErrUnknownDialect indicates an output dialect Export does not produce.
var ErrUnknownDialect = errors.New("convert: unknown dialect")

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// Dialects returns the dialect names Export accepts.
func Dialects() []string {
	return []string{DialectCanonical, DialectJSONSchema, DialectTableSchema, DialectParquet}
}

// Export converts t to the schema value of dialect: a types.Type for
// canonical, *jsonschema.Schema, *TableSchema or *ParquetSchema.
func Export(t types.Type, dialect string) (any, error) {
	if t == nil {
		return nil, ErrNilSchema
	}
	switch dialect {
	case DialectCanonical, "":
		return t, nil
	case DialectJSONSchema:
		return JSONSchemaConverter{}.FromCanonical(t)
	case DialectTableSchema:
		return TableSchemaConverter{}.FromCanonical(t)
	case DialectParquet:
		return ParquetConverter{}.FromCanonical(t)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}
}

// ExportJSON is Export followed by indented JSON encoding.
func ExportJSON(t types.Type, dialect string) ([]byte, error) {
	v, err := Export(t, dialect)
	if err != nil {
		return nil, err
	}
	if ct, ok := v.(types.Type); ok {
		return types.MarshalIndent(ct, "", "  ")
	}
	return jsonCodec.MarshalIndent(v, "", "  ")
}
