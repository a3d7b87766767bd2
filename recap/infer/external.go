package infer

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/pithecene-io/recap/recap/convert"
	"github.com/pithecene-io/recap/recap/types"
)

// External is a schema in one external dialect, as produced by an adapter.
// Exactly one of Table, JSON and Parquet is set, selected by Dialect.
type External struct {
	Dialect string
	Table   *convert.TableSchema
	JSON    *jsonschema.Schema
	Parquet *convert.ParquetSchema
}

// Canonical converts the schema with its dialect's converter.
func (e External) Canonical() (types.Type, error) {
	switch e.Dialect {
	case convert.DialectTableSchema:
		return convert.TableSchemaConverter{}.ToCanonical(e.Table)
	case convert.DialectJSONSchema:
		return convert.JSONSchemaConverter{}.ToCanonical(e.JSON)
	case convert.DialectParquet:
		return convert.ParquetConverter{}.ToCanonical(e.Parquet)
	default:
		return nil, fmt.Errorf("infer: unknown dialect %q", e.Dialect)
	}
}

// Prober is the adapter for tabular formats.
type Prober interface {
	Probe(ctx context.Context, src *Source) (External, error)
}
