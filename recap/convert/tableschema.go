package convert

import (
	"fmt"

	"github.com/pithecene-io/recap/recap/types"
)

// -----------------------------------------------------------------------------
// Table Schema types
// -----------------------------------------------------------------------------

// TableSchema is a frictionless Table Schema: an ordered list of typed
// columns.
type TableSchema struct {
	Fields []TableField `json:"fields"`
}

// TableField describes one column of a TableSchema.
type TableField struct {
	Name        string            `json:"name"`
	Type        string            `json:"type,omitempty"`
	Format      string            `json:"format,omitempty"`
	Constraints *TableConstraints `json:"constraints,omitempty"`
}

// TableConstraints holds the column constraints recap understands.
type TableConstraints struct {
	Required bool `json:"required,omitempty"`
}

// Required reports whether the column is marked required.
func (f TableField) Required() bool {
	return f.Constraints != nil && f.Constraints.Required
}

// Table Schema type names.
const (
	TableString    = "string"
	TableNumber    = "number"
	TableInteger   = "integer"
	TableBoolean   = "boolean"
	TableDate      = "date"
	TableTime      = "time"
	TableDatetime  = "datetime"
	TableYear      = "year"
	TableYearMonth = "yearmonth"
	TableDuration  = "duration"
	TableObject    = "object"
	TableArray     = "array"
	TableAny       = "any"
)

// Temporal types that carry over as annotated strings.
var tableTemporal = map[string]bool{
	TableDate:      true,
	TableTime:      true,
	TableDatetime:  true,
	TableYearMonth: true,
	TableDuration:  true,
}

// String formats that carry over as logical annotations.
var tableStringFormats = map[string]bool{
	"email": true,
	"uri":   true,
	"uuid":  true,
}

// -----------------------------------------------------------------------------
// Converter
// -----------------------------------------------------------------------------

// TableSchemaConverter converts between Table Schema and canonical types.
type TableSchemaConverter struct{}

var _ Converter[*TableSchema] = TableSchemaConverter{}

// ToCanonical returns a struct with one field per column, in column order.
// A column is nullable unless constraints.required is set.
func (TableSchemaConverter) ToCanonical(s *TableSchema) (types.Type, error) {
	if s == nil {
		return nil, ErrNilSchema
	}
	fields := make([]types.Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		t, err := tableFieldType(f)
		if err != nil {
			return nil, err
		}
		fields = append(fields, types.Field{Name: f.Name, Type: t, Nullable: !f.Required()})
	}
	st, err := types.NewStruct(fields...)
	if err != nil {
		return nil, fmt.Errorf("convert: %s: %w", DialectTableSchema, err)
	}
	return st, nil
}

func tableFieldType(f TableField) (types.Type, error) {
	switch f.Type {
	case "", TableString:
		switch {
		case f.Format == "binary":
			return types.Bytes(), nil
		case tableStringFormats[f.Format]:
			return types.String().WithLogical(f.Format), nil
		default:
			return types.String(), nil
		}
	case TableNumber:
		return types.Float(64), nil
	case TableInteger:
		return types.Int(64), nil
	case TableBoolean:
		return types.Bool(), nil
	case TableYear:
		return types.Int(64).WithLogical(TableYear), nil
	}
	if tableTemporal[f.Type] {
		return types.String().WithLogical(f.Type), nil
	}
	return nil, unsupported(DialectTableSchema, "type "+f.Type, f.Name)
}

// FromCanonical returns a Table Schema for t. A non-struct root becomes a
// single column named "value". Nested structs, lists and unions, which Table
// Schema cannot describe, become object, array and any columns.
func (TableSchemaConverter) FromCanonical(t types.Type) (*TableSchema, error) {
	if t == nil {
		return nil, ErrNilSchema
	}
	root := rootStruct(t)
	out := &TableSchema{Fields: make([]TableField, 0, root.Len())}
	for _, f := range root.Fields() {
		ft, hadNull := splitNullable(f.Type)
		field := tableFieldFor(ft)
		field.Name = f.Name
		if !f.Nullable && !hadNull {
			field.Constraints = &TableConstraints{Required: true}
		}
		out.Fields = append(out.Fields, field)
	}
	return out, nil
}

func tableFieldFor(t types.Type) TableField {
	switch v := t.(type) {
	case types.Scalar:
		switch v.Kind() {
		case types.KindBool:
			return TableField{Type: TableBoolean}
		case types.KindInt:
			if v.Logical() == TableYear {
				return TableField{Type: TableYear}
			}
			return TableField{Type: TableInteger}
		case types.KindFloat:
			return TableField{Type: TableNumber}
		case types.KindString:
			switch {
			case tableTemporal[v.Logical()]:
				return TableField{Type: v.Logical()}
			case tableStringFormats[v.Logical()]:
				return TableField{Type: TableString, Format: v.Logical()}
			}
			return TableField{Type: TableString}
		case types.KindBytes:
			if v.Logical() == "uuid" {
				return TableField{Type: TableString, Format: "uuid"}
			}
			return TableField{Type: TableString, Format: "binary"}
		default:
			return TableField{Type: TableAny}
		}
	case types.List:
		return TableField{Type: TableArray}
	case types.Struct:
		return TableField{Type: TableObject}
	default:
		return TableField{Type: TableAny}
	}
}
