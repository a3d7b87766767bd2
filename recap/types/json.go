package types

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// wireType is the stable JSON shape of a canonical type.
type wireType struct {
	Type    string      `json:"type"`
	Bits    int         `json:"bits,omitempty"`
	Logical string      `json:"logical,omitempty"`
	Values  *wireType   `json:"values,omitempty"`
	Fields  []wireField `json:"fields,omitempty"`
	Types   []wireType  `json:"types,omitempty"`
}

type wireField struct {
	Name     string   `json:"name"`
	Type     wireType `json:"type"`
	Nullable bool     `json:"nullable"`
}

// Marshal encodes t in its stable JSON representation:
//
//	{"type":"int","bits":64}
//	{"type":"list","values":{"type":"string"}}
//	{"type":"struct","fields":[{"name":"a","type":{"type":"bool"},"nullable":true}]}
//	{"type":"union","types":[{"type":"int","bits":64},{"type":"string"}]}
func Marshal(t Type) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrInvalidType)
	}
	return jsonCodec.Marshal(toWire(t))
}

// MarshalIndent is like Marshal but indents the output.
func MarshalIndent(t Type, prefix, indent string) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrInvalidType)
	}
	return jsonCodec.MarshalIndent(toWire(t), prefix, indent)
}

// Unmarshal decodes a type from its JSON representation, enforcing every
// model invariant.
func Unmarshal(data []byte) (Type, error) {
	var w wireType
	if err := jsonCodec.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidType, err)
	}
	return fromWire(w)
}

// MarshalJSON implements Type.
func (s Scalar) MarshalJSON() ([]byte, error) { return Marshal(s) }

// MarshalJSON implements Type.
func (l List) MarshalJSON() ([]byte, error) { return Marshal(l) }

// MarshalJSON implements Type.
func (s Struct) MarshalJSON() ([]byte, error) { return Marshal(s) }

// MarshalJSON implements Type.
func (u Union) MarshalJSON() ([]byte, error) { return Marshal(u) }

func toWire(t Type) wireType {
	switch v := t.(type) {
	case Scalar:
		return wireType{Type: v.kind.String(), Bits: v.bits, Logical: v.logical}
	case List:
		values := toWire(v.values)
		return wireType{Type: KindList.String(), Values: &values}
	case Struct:
		w := wireType{Type: KindStruct.String(), Fields: make([]wireField, len(v.fields))}
		for i, f := range v.fields {
			w.Fields[i] = wireField{Name: f.Name, Type: toWire(f.Type), Nullable: f.Nullable}
		}
		return w
	case Union:
		w := wireType{Type: KindUnion.String(), Types: make([]wireType, len(v.types))}
		for i, alt := range v.types {
			w.Types[i] = toWire(alt)
		}
		return w
	default:
		panic(fmt.Sprintf("types: unknown type %T", t))
	}
}

func fromWire(w wireType) (Type, error) {
	kind, ok := kindByName(w.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown type tag %q", ErrInvalidType, w.Type)
	}
	switch kind {
	case KindList:
		if w.Values == nil {
			return nil, fmt.Errorf("%w: list without values", ErrInvalidType)
		}
		values, err := fromWire(*w.Values)
		if err != nil {
			return nil, err
		}
		return NewList(values), nil
	case KindStruct:
		fields := make([]Field, len(w.Fields))
		for i, wf := range w.Fields {
			ft, err := fromWire(wf.Type)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", wf.Name, err)
			}
			fields[i] = Field{Name: wf.Name, Type: ft, Nullable: wf.Nullable}
		}
		return NewStruct(fields...)
	case KindUnion:
		alts := make([]Type, len(w.Types))
		for i, wt := range w.Types {
			alt, err := fromWire(wt)
			if err != nil {
				return nil, err
			}
			if alt.Kind() == KindUnion {
				return nil, fmt.Errorf("%w: nested union", ErrInvalidType)
			}
			alts[i] = alt
		}
		u, err := NewUnion(alts...)
		if err != nil {
			return nil, err
		}
		if len(u.types) != len(alts) {
			return nil, fmt.Errorf("%w: union has duplicate alternatives", ErrInvalidType)
		}
		return u, nil
	default:
		return NewScalar(kind, w.Bits, w.Logical)
	}
}
