package infer

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/pithecene-io/recap/recap/convert"
	"github.com/pithecene-io/recap/recap/types"
)

func decode(t *testing.T, doc string) any {
	t.Helper()
	var v any
	if err := jsonAPI.UnmarshalFromString(doc, &v); err != nil {
		t.Fatalf("decode %s: %v", doc, err)
	}
	return v
}

func build(t *testing.T, docs ...string) *jsonschema.Schema {
	t.Helper()
	b := NewBuilder()
	for _, doc := range docs {
		if err := b.Add(decode(t, doc)); err != nil {
			t.Fatalf("Add(%s) error = %v", doc, err)
		}
	}
	return b.Schema()
}

func canonical(t *testing.T, s *jsonschema.Schema) types.Type {
	t.Helper()
	got, err := convert.JSONSchemaConverter{}.ToCanonical(s)
	if err != nil {
		t.Fatalf("ToCanonical() error = %v", err)
	}
	return got
}

func mustUnion(t *testing.T, alts ...types.Type) types.Union {
	t.Helper()
	u, err := types.NewUnion(alts...)
	if err != nil {
		t.Fatalf("NewUnion() error = %v", err)
	}
	return u
}

func TestBuilder_Empty(t *testing.T) {
	s := NewBuilder().Schema()
	if s.Type != "" || len(s.Types) != 0 || s.Properties != nil {
		t.Errorf("Schema() = %+v, want empty schema", s)
	}
	if s.Schema != convert.Draft202012 {
		t.Errorf("$schema = %q, want %q", s.Schema, convert.Draft202012)
	}
	if got := canonical(t, s); !types.Equal(got, types.MustStruct()) {
		t.Errorf("canonical = %v, want empty struct", got)
	}
}

func TestBuilder_Scalars(t *testing.T) {
	tests := []struct {
		docs  []string
		typ   string
		types []string
	}{
		{[]string{`1`}, "integer", nil},
		{[]string{`1.5`}, "number", nil},
		{[]string{`1`, `2.5`}, "number", nil},
		{[]string{`1e3`}, "number", nil},
		{[]string{`"x"`}, "string", nil},
		{[]string{`true`}, "boolean", nil},
		{[]string{`null`}, "null", nil},
		{[]string{`1`, `null`}, "", []string{"integer", "null"}},
		{[]string{`"x"`, `1`, `false`}, "", []string{"boolean", "integer", "string"}},
	}
	for _, tt := range tests {
		s := build(t, tt.docs...)
		if s.Type != tt.typ || !slices.Equal(s.Types, tt.types) {
			t.Errorf("docs %v: type = %q, types = %v; want %q, %v", tt.docs, s.Type, s.Types, tt.typ, tt.types)
		}
	}
}

func TestBuilder_Objects(t *testing.T) {
	s := build(t, `{"a":1,"b":"x"}`, `{"a":2,"c":true}`)

	if s.Type != "object" {
		t.Fatalf("type = %q, want object", s.Type)
	}
	if !slices.Equal(s.Required, []string{"a"}) {
		t.Errorf("required = %v, want [a]", s.Required)
	}

	want := types.MustStruct(
		types.Field{Name: "a", Type: types.Int(64)},
		types.Field{Name: "b", Type: types.String(), Nullable: true},
		types.Field{Name: "c", Type: types.Bool(), Nullable: true},
	)
	if got := canonical(t, s); !types.Equal(got, want) {
		t.Errorf("canonical = %v, want %v", got, want)
	}
}

func TestBuilder_Arrays(t *testing.T) {
	s := build(t, `{"tags":["a","b"]}`, `{"tags":[]}`, `{"tags":[1]}`)

	want := types.MustStruct(types.Field{
		Name: "tags",
		Type: types.NewList(mustUnion(t, types.Int(64), types.String())),
	})
	if got := canonical(t, s); !types.Equal(got, want) {
		t.Errorf("canonical = %v, want %v", got, want)
	}

	empty := build(t, `[]`)
	if got := canonical(t, empty); !types.Equal(got, types.NewList(types.Null())) {
		t.Errorf("canonical([]) = %v, want list<null>", got)
	}
}

func TestBuilder_MixedObjectAndScalar(t *testing.T) {
	s := build(t, `{"a":1}`, `null`)
	if !slices.Equal(s.Types, []string{"null", "object"}) {
		t.Fatalf("types = %v, want [null object]", s.Types)
	}
	if _, ok := s.Properties["a"]; !ok {
		t.Errorf("properties = %v, want a", s.Properties)
	}
}

// Adding a value never drops a property or makes one required.
func TestBuilder_Monotonic(t *testing.T) {
	docs := []string{`{"a":1}`, `{"a":"x"}`, `{"a":null,"b":[1.5]}`, `{}`}

	b := NewBuilder()
	var prev *jsonschema.Schema
	for _, doc := range docs {
		if err := b.Add(decode(t, doc)); err != nil {
			t.Fatalf("Add(%s) error = %v", doc, err)
		}
		cur := b.Schema()
		if prev != nil {
			for name := range prev.Properties {
				if _, ok := cur.Properties[name]; !ok {
					t.Errorf("after %s: property %q dropped", doc, name)
				}
			}
			for _, name := range cur.Required {
				if !slices.Contains(prev.Required, name) {
					t.Errorf("after %s: %q became required", doc, name)
				}
			}
		}
		prev = cur
	}

	want := types.MustStruct(
		types.Field{Name: "a", Type: mustUnion(t, types.Int(64), types.Null(), types.String()), Nullable: true},
		types.Field{Name: "b", Type: types.NewList(types.Float(64)), Nullable: true},
	)
	if got := canonical(t, prev); !types.Equal(got, want) {
		t.Errorf("canonical = %v, want %v", got, want)
	}
}

func TestBuilder_Float64Values(t *testing.T) {
	b := NewBuilder()
	for _, v := range []any{float64(3), float64(2)} {
		if err := b.Add(v); err != nil {
			t.Fatalf("Add(%v) error = %v", v, err)
		}
	}
	if s := b.Schema(); s.Type != "integer" {
		t.Errorf("type = %q, want integer", s.Type)
	}
	if err := b.Add(json.Number("2.5")); err != nil {
		t.Fatalf("Add error = %v", err)
	}
	if s := b.Schema(); s.Type != "number" {
		t.Errorf("type = %q, want number", s.Type)
	}
}

func TestBuilder_UnsupportedValue(t *testing.T) {
	err := NewBuilder().Add(map[string]any{"a": struct{}{}})
	if err == nil {
		t.Error("expected error for unsupported value")
	}
}
