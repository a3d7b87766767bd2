package infer

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/pithecene-io/recap/recap/convert"
)

// Builder folds decoded JSON values into a JSON Schema that accepts all of
// them. Its state only widens: adding a value never narrows the schema.
//
// Values are those produced by a JSON decoder into any: nil, bool,
// json.Number or float64, string, []any and map[string]any.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	root node
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add widens the schema to accept v.
func (b *Builder) Add(v any) error {
	return b.root.add(v, "")
}

// Schema returns the schema accepting every value added so far. With no
// values added it is the empty schema.
func (b *Builder) Schema() *jsonschema.Schema {
	s := b.root.schema()
	s.Schema = convert.Draft202012
	return s
}

// JSON type names in output order.
const (
	typeArray   = "array"
	typeBoolean = "boolean"
	typeInteger = "integer"
	typeNull    = "null"
	typeNumber  = "number"
	typeObject  = "object"
	typeString  = "string"
)

type scalarSet uint8

const (
	seenNull scalarSet = 1 << iota
	seenBoolean
	seenInteger
	seenNumber
	seenString
)

type node struct {
	scalars scalarSet

	// object is non-nil once an object was added.
	object *objectNode

	// array is true once an array was added; items covers every element.
	array bool
	items *node
}

type objectNode struct {
	properties map[string]*node
	// required holds the keys present in every object added so far.
	required map[string]bool
}

func (n *node) add(v any, path string) error {
	switch v := v.(type) {
	case nil:
		n.scalars |= seenNull
	case bool:
		n.scalars |= seenBoolean
	case string:
		n.scalars |= seenString
	case json.Number:
		if isInteger(v) {
			n.scalars |= seenInteger
		} else {
			n.scalars |= seenNumber
		}
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			n.scalars |= seenInteger
		} else {
			n.scalars |= seenNumber
		}
	case []any:
		n.array = true
		for _, elem := range v {
			if n.items == nil {
				n.items = &node{}
			}
			if err := n.items.add(elem, path+"[]"); err != nil {
				return err
			}
		}
	case map[string]any:
		return n.addObject(v, path)
	default:
		return fmt.Errorf("infer: unsupported value %T at %s", v, displayPath(path))
	}
	return nil
}

func (n *node) addObject(v map[string]any, path string) error {
	if n.object == nil {
		n.object = &objectNode{
			properties: make(map[string]*node, len(v)),
			required:   make(map[string]bool, len(v)),
		}
		for key := range v {
			n.object.required[key] = true
		}
	} else {
		for key := range n.object.required {
			if _, ok := v[key]; !ok {
				delete(n.object.required, key)
			}
		}
	}
	for key, val := range v {
		prop, ok := n.object.properties[key]
		if !ok {
			prop = &node{}
			n.object.properties[key] = prop
		}
		if err := prop.add(val, joinJSONPath(path, key)); err != nil {
			return err
		}
	}
	return nil
}

// isInteger reports whether a decoded number has no fraction or exponent.
func isInteger(n json.Number) bool {
	return !strings.ContainsAny(n.String(), ".eE")
}

func (n *node) typeNames() []string {
	var names []string
	if n.array {
		names = append(names, typeArray)
	}
	if n.scalars&seenBoolean != 0 {
		names = append(names, typeBoolean)
	}
	// number subsumes integer.
	if n.scalars&seenInteger != 0 && n.scalars&seenNumber == 0 {
		names = append(names, typeInteger)
	}
	if n.scalars&seenNull != 0 {
		names = append(names, typeNull)
	}
	if n.scalars&seenNumber != 0 {
		names = append(names, typeNumber)
	}
	if n.object != nil {
		names = append(names, typeObject)
	}
	if n.scalars&seenString != 0 {
		names = append(names, typeString)
	}
	return names
}

func (n *node) schema() *jsonschema.Schema {
	s := &jsonschema.Schema{}
	names := n.typeNames()
	switch len(names) {
	case 0:
		return s
	case 1:
		s.Type = names[0]
	default:
		s.Types = names
	}

	if n.object != nil {
		s.Properties = make(map[string]*jsonschema.Schema, len(n.object.properties))
		for key, prop := range n.object.properties {
			s.Properties[key] = prop.schema()
		}
		for key := range n.object.required {
			s.Required = append(s.Required, key)
		}
		slices.Sort(s.Required)
	}
	if n.items != nil {
		s.Items = n.items.schema()
	}
	return s
}

func joinJSONPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func displayPath(p string) string {
	if p == "" {
		return "<root>"
	}
	return p
}
