// Package types defines the canonical type model that every schema dialect
// converts to and from.
//
// A canonical type is one of four shapes: a scalar of a primitive kind, a
// list of an element type, a struct of ordered named fields, or a union of
// two or more distinct alternatives. Values are immutable: constructors copy
// their inputs and accessors return copies.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidType indicates a type that violates a model invariant.
var ErrInvalidType = errors.New("types: invalid type")

// -----------------------------------------------------------------------------
// Kind
// -----------------------------------------------------------------------------

// Kind identifies the shape of a canonical type.
type Kind uint8

// Kind constants. Scalar kinds come first.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindStruct
	KindUnion
	kindMax // sentinel for validation
)

var kindNames = [...]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindBytes:  "bytes",
	KindList:   "list",
	KindStruct: "struct",
	KindUnion:  "union",
}

// String returns the kind's tag as used in the JSON representation.
func (k Kind) String() string {
	if k >= kindMax {
		return fmt.Sprintf("kind(%d)", k)
	}
	return kindNames[k]
}

// IsScalar reports whether k is a primitive kind.
func (k Kind) IsScalar() bool {
	return k <= KindBytes
}

// kindByName resolves a JSON tag back to a Kind.
func kindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// -----------------------------------------------------------------------------
// Type
// -----------------------------------------------------------------------------

// Type is a canonical type. The set of implementations is closed:
// Scalar, List, Struct and Union.
type Type interface {
	// Kind returns the shape of the type.
	Kind() Kind

	// String returns a compact human-readable rendering.
	String() string

	// MarshalJSON encodes the type in its stable JSON representation.
	MarshalJSON() ([]byte, error)

	sealed()
}

// -----------------------------------------------------------------------------
// Scalar
// -----------------------------------------------------------------------------

// Scalar is a primitive type.
//
// Bits optionally records a width: 8, 16, 32, 64 or 96 for integers, 16, 32
// or 64 for floats, and a positive multiple of 8 for fixed-width bytes.
// Zero means variable or unspecified. Logical optionally annotates how the
// primitive is interpreted (for example "date", "timestamp-micros", "uuid").
type Scalar struct {
	kind    Kind
	bits    int
	logical string
}

// NewScalar validates and returns a scalar type.
func NewScalar(kind Kind, bits int, logical string) (Scalar, error) {
	if !kind.IsScalar() {
		return Scalar{}, fmt.Errorf("%w: %s is not a scalar kind", ErrInvalidType, kind)
	}
	if !validBits(kind, bits) {
		return Scalar{}, fmt.Errorf("%w: %d bits not valid for %s", ErrInvalidType, bits, kind)
	}
	if strings.TrimSpace(logical) != logical {
		return Scalar{}, fmt.Errorf("%w: logical name %q has surrounding space", ErrInvalidType, logical)
	}
	return Scalar{kind: kind, bits: bits, logical: logical}, nil
}

func validBits(kind Kind, bits int) bool {
	switch kind {
	case KindInt:
		switch bits {
		case 8, 16, 32, 64, 96:
			return true
		}
		return false
	case KindFloat:
		switch bits {
		case 16, 32, 64:
			return true
		}
		return false
	case KindBytes:
		return bits >= 0 && bits%8 == 0
	default:
		return bits == 0
	}
}

func mustScalar(kind Kind, bits int) Scalar {
	s, err := NewScalar(kind, bits, "")
	if err != nil {
		panic(err)
	}
	return s
}

// Null returns the null type.
func Null() Scalar { return Scalar{kind: KindNull} }

// Bool returns the boolean type.
func Bool() Scalar { return Scalar{kind: KindBool} }

// Int returns a signed integer type of the given width.
// It panics if bits is not one of 8, 16, 32, 64 or 96.
func Int(bits int) Scalar { return mustScalar(KindInt, bits) }

// Float returns a floating point type of the given width.
// It panics if bits is not one of 16, 32 or 64.
func Float(bits int) Scalar { return mustScalar(KindFloat, bits) }

// String returns the UTF-8 string type.
func String() Scalar { return Scalar{kind: KindString} }

// Bytes returns the variable-length byte string type.
func Bytes() Scalar { return Scalar{kind: KindBytes} }

// FixedBytes returns a byte string type of exactly n bytes.
func FixedBytes(n int) Scalar { return mustScalar(KindBytes, n*8) }

// Kind implements Type.
func (s Scalar) Kind() Kind { return s.kind }

// Bits returns the width in bits, or zero when unspecified.
func (s Scalar) Bits() int { return s.bits }

// Logical returns the logical annotation, or "".
func (s Scalar) Logical() string { return s.logical }

// WithLogical returns a copy of s annotated with the given logical name.
func (s Scalar) WithLogical(name string) Scalar {
	s.logical = name
	return s
}

// String implements Type.
func (s Scalar) String() string {
	var b strings.Builder
	b.WriteString(s.kind.String())
	if s.bits != 0 {
		fmt.Fprintf(&b, "%d", s.bits)
	}
	if s.logical != "" {
		b.WriteString("<" + s.logical + ">")
	}
	return b.String()
}

func (Scalar) sealed() {}

// -----------------------------------------------------------------------------
// List
// -----------------------------------------------------------------------------

// List is a homogeneous sequence of an element type.
type List struct {
	values Type
}

// NewList returns a list of values. It panics if values is nil.
func NewList(values Type) List {
	if values == nil {
		panic("types: list element type is nil")
	}
	return List{values: values}
}

// Kind implements Type.
func (List) Kind() Kind { return KindList }

// Values returns the element type.
func (l List) Values() Type { return l.values }

// String implements Type.
func (l List) String() string { return "list<" + l.values.String() + ">" }

func (List) sealed() {}

// -----------------------------------------------------------------------------
// Struct
// -----------------------------------------------------------------------------

// Field is a named member of a Struct.
type Field struct {
	Name     string
	Type     Type
	Nullable bool
}

// Struct is an ordered collection of uniquely named fields.
// Field order is significant.
type Struct struct {
	fields []Field
}

// NewStruct returns a struct with the given fields in order.
// Field names must be non-empty and unique, and every field needs a type.
func NewStruct(fields ...Field) (Struct, error) {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return Struct{}, fmt.Errorf("%w: field name cannot be empty", ErrInvalidType)
		}
		if seen[f.Name] {
			return Struct{}, fmt.Errorf("%w: duplicate field name %q", ErrInvalidType, f.Name)
		}
		if f.Type == nil {
			return Struct{}, fmt.Errorf("%w: field %q has no type", ErrInvalidType, f.Name)
		}
		seen[f.Name] = true
	}
	return Struct{fields: append([]Field(nil), fields...)}, nil
}

// MustStruct is like NewStruct but panics on error.
func MustStruct(fields ...Field) Struct {
	s, err := NewStruct(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Kind implements Type.
func (Struct) Kind() Kind { return KindStruct }

// Fields returns a copy of the fields in order.
func (s Struct) Fields() []Field { return append([]Field(nil), s.fields...) }

// Len returns the number of fields.
func (s Struct) Len() int { return len(s.fields) }

// Field returns the named field.
func (s Struct) Field(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// String implements Type.
func (s Struct) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		p := f.Name + ": " + f.Type.String()
		if f.Nullable {
			p += "?"
		}
		parts[i] = p
	}
	return "struct<" + strings.Join(parts, ", ") + ">"
}

func (Struct) sealed() {}

// -----------------------------------------------------------------------------
// Union
// -----------------------------------------------------------------------------

// Union is an ordered set of at least two distinct alternatives.
// Unions never directly contain other unions.
type Union struct {
	types []Type
}

// NewUnion returns the union of alts. Nested unions are flattened and
// structurally equal alternatives are kept once, in first-seen order.
// Fewer than two distinct alternatives is an error.
func NewUnion(alts ...Type) (Union, error) {
	flat := flatten(alts)
	if len(flat) < 2 {
		return Union{}, fmt.Errorf("%w: union needs at least two distinct alternatives, got %d", ErrInvalidType, len(flat))
	}
	return Union{types: flat}, nil
}

// Merge returns the single distinct alternative of alts, or their union when
// there is more than one.
func Merge(alts ...Type) (Type, error) {
	flat := flatten(alts)
	switch len(flat) {
	case 0:
		return nil, fmt.Errorf("%w: nothing to merge", ErrInvalidType)
	case 1:
		return flat[0], nil
	default:
		return Union{types: flat}, nil
	}
}

func flatten(alts []Type) []Type {
	var out []Type
	var add func(t Type)
	add = func(t Type) {
		if t == nil {
			return
		}
		if u, ok := t.(Union); ok {
			for _, inner := range u.types {
				add(inner)
			}
			return
		}
		for _, existing := range out {
			if Equal(existing, t) {
				return
			}
		}
		out = append(out, t)
	}
	for _, t := range alts {
		add(t)
	}
	return out
}

// Kind implements Type.
func (Union) Kind() Kind { return KindUnion }

// Types returns a copy of the alternatives in order.
func (u Union) Types() []Type { return append([]Type(nil), u.types...) }

// Contains reports whether t is one of the alternatives.
func (u Union) Contains(t Type) bool {
	for _, alt := range u.types {
		if Equal(alt, t) {
			return true
		}
	}
	return false
}

// String implements Type.
func (u Union) String() string {
	parts := make([]string, len(u.types))
	for i, t := range u.types {
		parts[i] = t.String()
	}
	return "union<" + strings.Join(parts, ", ") + ">"
}

func (Union) sealed() {}

// -----------------------------------------------------------------------------
// Equality
// -----------------------------------------------------------------------------

// Equal reports whether a and b are structurally equal. Struct field order
// and union alternative order are significant.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case Scalar:
		y, ok := b.(Scalar)
		return ok && x == y
	case List:
		y, ok := b.(List)
		return ok && Equal(x.values, y.values)
	case Struct:
		y, ok := b.(Struct)
		if !ok || len(x.fields) != len(y.fields) {
			return false
		}
		for i := range x.fields {
			fx, fy := x.fields[i], y.fields[i]
			if fx.Name != fy.Name || fx.Nullable != fy.Nullable || !Equal(fx.Type, fy.Type) {
				return false
			}
		}
		return true
	case Union:
		y, ok := b.(Union)
		if !ok || len(x.types) != len(y.types) {
			return false
		}
		for i := range x.types {
			if !Equal(x.types[i], y.types[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
