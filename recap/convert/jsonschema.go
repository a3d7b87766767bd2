package convert

import (
	"slices"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/pithecene-io/recap/recap/types"
)

// Draft202012 is the $schema URI stamped on generated JSON Schemas.
const Draft202012 = "https://json-schema.org/draft/2020-12/schema"

// JSON Schema string formats and their canonical logical names.
var jsonFormatToLogical = map[string]string{
	"date":      "date",
	"time":      "time",
	"date-time": "datetime",
	"duration":  "duration",
	"uuid":      "uuid",
	"email":     "email",
	"uri":       "uri",
}

var jsonLogicalToFormat = func() map[string]string {
	m := make(map[string]string, len(jsonFormatToLogical))
	for f, l := range jsonFormatToLogical {
		m[l] = f
	}
	return m
}()

// JSONSchemaConverter converts between JSON Schema and canonical types.
type JSONSchemaConverter struct{}

var _ Converter[*jsonschema.Schema] = JSONSchemaConverter{}

// ToCanonical converts s to a canonical type.
//
// Objects become structs with properties ordered by name; a property is
// nullable unless listed in required. A type array or anyOf becomes a union.
// The empty schema becomes the empty struct. References, the applicators
// allOf, oneOf, not and if/then/else, and keywords describing map-like
// objects or array contents (additionalProperties other than false,
// dependentSchemas, contains and the like) are not supported.
func (JSONSchemaConverter) ToCanonical(s *jsonschema.Schema) (types.Type, error) {
	if s == nil {
		return nil, ErrNilSchema
	}
	return jsonToCanonical(s, "")
}

func jsonToCanonical(s *jsonschema.Schema, path string) (types.Type, error) {
	if s == nil {
		return types.MustStruct(), nil
	}
	switch {
	case s.Ref != "" || s.DynamicRef != "":
		return nil, unsupported(DialectJSONSchema, "$ref", path)
	case len(s.AllOf) > 0:
		return nil, unsupported(DialectJSONSchema, "allOf", path)
	case len(s.OneOf) > 0:
		return nil, unsupported(DialectJSONSchema, "oneOf", path)
	case s.Not != nil:
		return nil, unsupported(DialectJSONSchema, "not", path)
	case s.If != nil || s.Then != nil || s.Else != nil:
		return nil, unsupported(DialectJSONSchema, "if/then/else", path)
	case len(s.PrefixItems) > 0:
		return nil, unsupported(DialectJSONSchema, "prefixItems", path)
	case len(s.PatternProperties) > 0:
		return nil, unsupported(DialectJSONSchema, "patternProperties", path)
	case s.AdditionalProperties != nil && !isFalseSchema(s.AdditionalProperties):
		return nil, unsupported(DialectJSONSchema, "additionalProperties", path)
	case s.PropertyNames != nil:
		return nil, unsupported(DialectJSONSchema, "propertyNames", path)
	case len(s.DependentSchemas) > 0:
		return nil, unsupported(DialectJSONSchema, "dependentSchemas", path)
	case s.UnevaluatedProperties != nil:
		return nil, unsupported(DialectJSONSchema, "unevaluatedProperties", path)
	case s.UnevaluatedItems != nil:
		return nil, unsupported(DialectJSONSchema, "unevaluatedItems", path)
	case s.Contains != nil:
		return nil, unsupported(DialectJSONSchema, "contains", path)
	}

	if len(s.AnyOf) > 0 {
		alts := make([]types.Type, 0, len(s.AnyOf))
		for _, sub := range s.AnyOf {
			t, err := jsonToCanonical(sub, path)
			if err != nil {
				return nil, err
			}
			alts = append(alts, t)
		}
		return types.Merge(alts...)
	}

	if len(s.Types) > 0 {
		alts := make([]types.Type, 0, len(s.Types))
		for _, name := range s.Types {
			t, err := jsonNamedType(name, s, path)
			if err != nil {
				return nil, err
			}
			alts = append(alts, t)
		}
		return types.Merge(alts...)
	}

	switch {
	case s.Type != "":
		return jsonNamedType(s.Type, s, path)
	case len(s.Properties) > 0:
		return jsonNamedType("object", s, path)
	case s.Items != nil:
		return jsonNamedType("array", s, path)
	default:
		return types.MustStruct(), nil
	}
}

// isFalseSchema reports whether s is the boolean schema false, which closes
// an object to undeclared properties.
func isFalseSchema(s *jsonschema.Schema) bool {
	if s.Not == nil {
		return false
	}
	b, err := jsonCodec.Marshal(s)
	return err == nil && string(b) == "false"
}

func jsonNamedType(name string, s *jsonschema.Schema, path string) (types.Type, error) {
	switch name {
	case "null":
		return types.Null(), nil
	case "boolean":
		return types.Bool(), nil
	case "integer":
		if s.Format == "int32" {
			return types.Int(32), nil
		}
		return types.Int(64), nil
	case "number":
		if s.Format == "float" {
			return types.Float(32), nil
		}
		return types.Float(64), nil
	case "string":
		if s.ContentEncoding == "base64" {
			return types.Bytes(), nil
		}
		if logical, ok := jsonFormatToLogical[s.Format]; ok {
			return types.String().WithLogical(logical), nil
		}
		return types.String(), nil
	case "array":
		if s.Items == nil {
			return types.NewList(types.Null()), nil
		}
		values, err := jsonToCanonical(s.Items, joinPath(path, "items"))
		if err != nil {
			return nil, err
		}
		return types.NewList(values), nil
	case "object":
		return jsonObject(s, path)
	default:
		return nil, unsupported(DialectJSONSchema, "type "+name, path)
	}
}

func jsonObject(s *jsonschema.Schema, path string) (types.Type, error) {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	slices.Sort(names)

	fields := make([]types.Field, 0, len(names))
	for _, name := range names {
		t, err := jsonToCanonical(s.Properties[name], joinPath(path, name))
		if err != nil {
			return nil, err
		}
		fields = append(fields, types.Field{
			Name:     name,
			Type:     t,
			Nullable: !slices.Contains(s.Required, name),
		})
	}
	return types.NewStruct(fields...)
}

// FromCanonical converts t to a JSON Schema document. Unions of plain
// scalars become type arrays; other unions become anyOf. Bytes are encoded
// as base64 strings.
func (JSONSchemaConverter) FromCanonical(t types.Type) (*jsonschema.Schema, error) {
	if t == nil {
		return nil, ErrNilSchema
	}
	s := jsonFromCanonical(t)
	s.Schema = Draft202012
	return s, nil
}

func jsonFromCanonical(t types.Type) *jsonschema.Schema {
	switch v := t.(type) {
	case types.Scalar:
		return jsonScalar(v)
	case types.List:
		return &jsonschema.Schema{Type: "array", Items: jsonFromCanonical(v.Values())}
	case types.Struct:
		s := &jsonschema.Schema{Type: "object"}
		if v.Len() == 0 {
			return s
		}
		s.Properties = make(map[string]*jsonschema.Schema, v.Len())
		for _, f := range v.Fields() {
			s.Properties[f.Name] = jsonFromCanonical(f.Type)
			if !f.Nullable {
				s.Required = append(s.Required, f.Name)
			}
		}
		return s
	case types.Union:
		alts := make([]*jsonschema.Schema, 0, len(v.Types()))
		names := make([]string, 0, len(v.Types()))
		plain := true
		for _, alt := range v.Types() {
			sub := jsonFromCanonical(alt)
			alts = append(alts, sub)
			if isPlainType(sub) && !slices.Contains(names, sub.Type) {
				names = append(names, sub.Type)
			} else {
				plain = false
			}
		}
		if plain {
			return &jsonschema.Schema{Types: names}
		}
		return &jsonschema.Schema{AnyOf: alts}
	default:
		return &jsonschema.Schema{}
	}
}

func jsonScalar(s types.Scalar) *jsonschema.Schema {
	switch s.Kind() {
	case types.KindNull:
		return &jsonschema.Schema{Type: "null"}
	case types.KindBool:
		return &jsonschema.Schema{Type: "boolean"}
	case types.KindInt:
		out := &jsonschema.Schema{Type: "integer"}
		if s.Bits() == 32 {
			out.Format = "int32"
		}
		return out
	case types.KindFloat:
		out := &jsonschema.Schema{Type: "number"}
		if s.Bits() == 32 {
			out.Format = "float"
		}
		return out
	case types.KindString:
		return &jsonschema.Schema{Type: "string", Format: jsonLogicalToFormat[s.Logical()]}
	case types.KindBytes:
		return &jsonschema.Schema{Type: "string", ContentEncoding: "base64"}
	default:
		return &jsonschema.Schema{}
	}
}

// isPlainType reports whether s is a bare {"type": name} for a scalar name.
func isPlainType(s *jsonschema.Schema) bool {
	switch s.Type {
	case "null", "boolean", "integer", "number", "string":
	default:
		return false
	}
	return s.Format == "" && s.ContentEncoding == ""
}
