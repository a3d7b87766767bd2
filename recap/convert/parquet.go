package convert

import (
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"

	"github.com/pithecene-io/recap/recap/types"
)

// -----------------------------------------------------------------------------
// Parquet dialect types
// -----------------------------------------------------------------------------

// Repetition is a Parquet field repetition level.
type Repetition uint8

// Repetition constants.
const (
	Required Repetition = iota
	Optional
	Repeated
)

func (r Repetition) String() string {
	switch r {
	case Optional:
		return "optional"
	case Repeated:
		return "repeated"
	default:
		return "required"
	}
}

// MarshalText encodes the repetition by name.
func (r Repetition) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// PhysicalType names a Parquet physical type. Groups have no physical type.
type PhysicalType string

// Physical type constants.
const (
	Boolean           PhysicalType = "BOOLEAN"
	Int32             PhysicalType = "INT32"
	Int64             PhysicalType = "INT64"
	Int96             PhysicalType = "INT96"
	Float             PhysicalType = "FLOAT"
	Double            PhysicalType = "DOUBLE"
	ByteArray         PhysicalType = "BYTE_ARRAY"
	FixedLenByteArray PhysicalType = "FIXED_LEN_BYTE_ARRAY"
)

// Logical annotation names.
const (
	LogicalString    = "STRING"
	LogicalEnum      = "ENUM"
	LogicalJSON      = "JSON"
	LogicalBSON      = "BSON"
	LogicalUUID      = "UUID"
	LogicalDate      = "DATE"
	LogicalTime      = "TIME"
	LogicalTimestamp = "TIMESTAMP"
	LogicalInt       = "INT"
	LogicalDecimal   = "DECIMAL"
	LogicalList      = "LIST"
	LogicalMap       = "MAP"
	LogicalUnknown   = "UNKNOWN"
)

// Timestamp unit names.
const (
	UnitMillis = "millis"
	UnitMicros = "micros"
	UnitNanos  = "nanos"
)

// ParquetLogical is a logical type annotation on a Parquet node.
type ParquetLogical struct {
	Type     string `json:"type"`
	BitWidth int    `json:"bitWidth,omitempty"` // INT
	Signed   bool   `json:"signed,omitempty"`   // INT
	Unit     string `json:"unit,omitempty"`     // TIMESTAMP, TIME
}

// ParquetNode is one node of a Parquet schema tree. Leaves carry a physical
// type; groups carry children in declaration order.
type ParquetNode struct {
	Name       string          `json:"name"`
	Repetition Repetition      `json:"repetition"`
	Physical   PhysicalType    `json:"physical,omitempty"`
	Length     int             `json:"length,omitempty"` // FIXED_LEN_BYTE_ARRAY
	Logical    *ParquetLogical `json:"logical,omitempty"`
	Children   []ParquetNode   `json:"children,omitempty"`
}

// IsGroup reports whether n is a group node.
func (n ParquetNode) IsGroup() bool {
	return n.Physical == ""
}

func (n ParquetNode) logicalType() string {
	if n.Logical == nil {
		return ""
	}
	return n.Logical.Type
}

// ParquetSchema is an ordered Parquet message schema.
type ParquetSchema struct {
	Name   string        `json:"name"`
	Fields []ParquetNode `json:"fields"`
}

// String renders the schema in Parquet's message text format.
func (s *ParquetSchema) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "message %s {\n", s.Name)
	for _, f := range s.Fields {
		writeParquetNode(&b, f, 1)
	}
	b.WriteString("}\n")
	return b.String()
}

func writeParquetNode(b *strings.Builder, n ParquetNode, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent + n.Repetition.String() + " ")
	switch {
	case n.IsGroup():
		b.WriteString("group " + n.Name)
	case n.Physical == FixedLenByteArray:
		fmt.Fprintf(b, "fixed_len_byte_array(%d) %s", n.Length, n.Name)
	case n.Physical == ByteArray:
		b.WriteString("binary " + n.Name)
	default:
		b.WriteString(strings.ToLower(string(n.Physical)) + " " + n.Name)
	}
	if l := n.Logical; l != nil {
		switch l.Type {
		case LogicalInt:
			fmt.Fprintf(b, " (INT(%d,%t))", l.BitWidth, l.Signed)
		case LogicalTimestamp, LogicalTime:
			fmt.Fprintf(b, " (%s(%s))", l.Type, l.Unit)
		default:
			b.WriteString(" (" + l.Type + ")")
		}
	}
	if !n.IsGroup() {
		b.WriteString(";\n")
		return
	}
	b.WriteString(" {\n")
	for _, c := range n.Children {
		writeParquetNode(b, c, depth+1)
	}
	b.WriteString(indent + "}\n")
}

// -----------------------------------------------------------------------------
// Extraction from parquet-go schemas
// -----------------------------------------------------------------------------

// ParquetFromSchema extracts the dialect tree from a parquet-go schema, such
// as one read from a file footer.
func ParquetFromSchema(s *parquet.Schema) (*ParquetSchema, error) {
	if s == nil {
		return nil, ErrNilSchema
	}
	out := &ParquetSchema{Name: s.Name()}
	for _, f := range s.Fields() {
		out.Fields = append(out.Fields, extractParquetNode(f.Name(), f))
	}
	return out, nil
}

func extractParquetNode(name string, n parquet.Node) ParquetNode {
	node := ParquetNode{Name: name, Repetition: Required}
	switch {
	case n.Repeated():
		node.Repetition = Repeated
	case n.Optional():
		node.Repetition = Optional
	}

	typ := n.Type()
	node.Logical = extractLogical(typ.LogicalType())

	if !n.Leaf() {
		for _, f := range n.Fields() {
			node.Children = append(node.Children, extractParquetNode(f.Name(), f))
		}
		return node
	}

	switch typ.Kind() {
	case parquet.Boolean:
		node.Physical = Boolean
	case parquet.Int32:
		node.Physical = Int32
	case parquet.Int64:
		node.Physical = Int64
	case parquet.Int96:
		node.Physical = Int96
	case parquet.Float:
		node.Physical = Float
	case parquet.Double:
		node.Physical = Double
	case parquet.FixedLenByteArray:
		node.Physical = FixedLenByteArray
		node.Length = typ.Length()
	default:
		node.Physical = ByteArray
	}
	return node
}

func extractLogical(lt *format.LogicalType) *ParquetLogical {
	if lt == nil {
		return nil
	}
	switch {
	case lt.UTF8 != nil:
		return &ParquetLogical{Type: LogicalString}
	case lt.Enum != nil:
		return &ParquetLogical{Type: LogicalEnum}
	case lt.Json != nil:
		return &ParquetLogical{Type: LogicalJSON}
	case lt.Bson != nil:
		return &ParquetLogical{Type: LogicalBSON}
	case lt.UUID != nil:
		return &ParquetLogical{Type: LogicalUUID}
	case lt.Date != nil:
		return &ParquetLogical{Type: LogicalDate}
	case lt.Time != nil:
		return &ParquetLogical{Type: LogicalTime, Unit: timeUnit(lt.Time.Unit)}
	case lt.Timestamp != nil:
		return &ParquetLogical{Type: LogicalTimestamp, Unit: timeUnit(lt.Timestamp.Unit)}
	case lt.Integer != nil:
		return &ParquetLogical{Type: LogicalInt, BitWidth: int(lt.Integer.BitWidth), Signed: lt.Integer.IsSigned}
	case lt.Decimal != nil:
		return &ParquetLogical{Type: LogicalDecimal}
	case lt.List != nil:
		return &ParquetLogical{Type: LogicalList}
	case lt.Map != nil:
		return &ParquetLogical{Type: LogicalMap}
	case lt.Unknown != nil:
		return &ParquetLogical{Type: LogicalUnknown}
	default:
		return nil
	}
}

func timeUnit(u format.TimeUnit) string {
	switch {
	case u.Millis != nil:
		return UnitMillis
	case u.Nanos != nil:
		return UnitNanos
	default:
		return UnitMicros
	}
}

// -----------------------------------------------------------------------------
// Building parquet-go schemas
// -----------------------------------------------------------------------------

// Schema builds a parquet-go schema from the dialect tree. parquet-go orders
// group fields by name, so the built schema may list fields in a different
// order than s.
func (s *ParquetSchema) Schema() (*parquet.Schema, error) {
	group := make(parquet.Group, len(s.Fields))
	for _, f := range s.Fields {
		n, err := buildParquetNode(f, f.Name)
		if err != nil {
			return nil, err
		}
		group[f.Name] = n
	}
	name := s.Name
	if name == "" {
		name = "schema"
	}
	return parquet.NewSchema(name, group), nil
}

func buildParquetNode(n ParquetNode, path string) (parquet.Node, error) {
	var node parquet.Node
	var err error
	if n.IsGroup() {
		node, err = buildParquetGroup(n, path)
	} else {
		node, err = buildParquetLeaf(n, path)
	}
	if err != nil {
		return nil, err
	}

	switch n.Repetition {
	case Optional:
		node = parquet.Optional(node)
	case Repeated:
		node = parquet.Repeated(node)
	}
	return node, nil
}

func buildParquetGroup(n ParquetNode, path string) (parquet.Node, error) {
	switch n.logicalType() {
	case "":
	case LogicalList:
		elem, ok := listElement(n)
		if !ok {
			return nil, unsupported(DialectParquet, "LIST shape", path)
		}
		en, err := buildParquetNode(elem, joinPath(path, elem.Name))
		if err != nil {
			return nil, err
		}
		return parquet.List(en), nil
	default:
		return nil, unsupported(DialectParquet, n.logicalType()+" group", path)
	}

	group := make(parquet.Group, len(n.Children))
	for _, c := range n.Children {
		cn, err := buildParquetNode(c, joinPath(path, c.Name))
		if err != nil {
			return nil, err
		}
		group[c.Name] = cn
	}
	return group, nil
}

func buildParquetLeaf(n ParquetNode, path string) (parquet.Node, error) {
	if l := n.Logical; l != nil {
		switch l.Type {
		case LogicalString:
			return parquet.String(), nil
		case LogicalEnum:
			return parquet.Enum(), nil
		case LogicalJSON:
			return parquet.JSON(), nil
		case LogicalUUID:
			return parquet.UUID(), nil
		case LogicalDate:
			return parquet.Date(), nil
		case LogicalTimestamp:
			switch l.Unit {
			case UnitMillis:
				return parquet.Timestamp(parquet.Millisecond), nil
			case UnitNanos:
				return parquet.Timestamp(parquet.Nanosecond), nil
			default:
				return parquet.Timestamp(parquet.Microsecond), nil
			}
		case LogicalInt:
			if l.Signed {
				return parquet.Int(l.BitWidth), nil
			}
			return parquet.Uint(l.BitWidth), nil
		default:
			return nil, unsupported(DialectParquet, "logical type "+l.Type, path)
		}
	}

	switch n.Physical {
	case Boolean:
		return parquet.Leaf(parquet.BooleanType), nil
	case Int32:
		return parquet.Leaf(parquet.Int32Type), nil
	case Int64:
		return parquet.Leaf(parquet.Int64Type), nil
	case Int96:
		return parquet.Leaf(parquet.Int96Type), nil
	case Float:
		return parquet.Leaf(parquet.FloatType), nil
	case Double:
		return parquet.Leaf(parquet.DoubleType), nil
	case FixedLenByteArray:
		return parquet.Leaf(parquet.FixedLenByteArrayType(n.Length)), nil
	case ByteArray:
		return parquet.Leaf(parquet.ByteArrayType), nil
	default:
		return nil, unsupported(DialectParquet, "physical type "+string(n.Physical), path)
	}
}

// listElement returns the element node of a LIST-annotated group. The
// three-level form wraps the element in a repeated group with one child;
// the two-level form repeats the element directly.
func listElement(n ParquetNode) (ParquetNode, bool) {
	if len(n.Children) != 1 || n.Children[0].Repetition != Repeated {
		return ParquetNode{}, false
	}
	rep := n.Children[0]
	// Repeated groups named "array" or "<name>_tuple" are two-level
	// elements even with a single child.
	twoLevel := rep.Name == "array" || rep.Name == n.Name+"_tuple"
	if rep.IsGroup() && rep.logicalType() == "" && len(rep.Children) == 1 && !twoLevel {
		return rep.Children[0], true
	}
	elem := rep
	elem.Repetition = Required
	return elem, true
}

// isLegacyList reports whether an unannotated group follows the LIST layout
// written by older tools: a single repeated child named "list" or "bag".
func isLegacyList(n ParquetNode) bool {
	if !n.IsGroup() || n.Logical != nil || len(n.Children) != 1 {
		return false
	}
	c := n.Children[0]
	return c.Repetition == Repeated && (c.Name == "list" || c.Name == "bag")
}

// -----------------------------------------------------------------------------
// Converter
// -----------------------------------------------------------------------------

// ParquetConverter converts between Parquet schemas and canonical types.
type ParquetConverter struct{}

var _ Converter[*ParquetSchema] = ParquetConverter{}

// ToCanonical converts s to a struct with one field per top-level column.
// Optional columns are nullable. LIST groups and repeated fields become
// lists, and optional list elements become a union with null.
func (ParquetConverter) ToCanonical(s *ParquetSchema) (types.Type, error) {
	if s == nil {
		return nil, ErrNilSchema
	}
	fields, err := parquetFields(s.Fields, "")
	if err != nil {
		return nil, err
	}
	return types.NewStruct(fields...)
}

func parquetFields(nodes []ParquetNode, parent string) ([]types.Field, error) {
	fields := make([]types.Field, 0, len(nodes))
	for _, n := range nodes {
		path := joinPath(parent, n.Name)
		t, err := parquetNodeType(n, path)
		if err != nil {
			return nil, err
		}
		if n.Repetition == Repeated {
			t = types.NewList(t)
		}
		fields = append(fields, types.Field{Name: n.Name, Type: t, Nullable: n.Repetition == Optional})
	}
	return fields, nil
}

// parquetNodeType converts n ignoring its own repetition.
func parquetNodeType(n ParquetNode, path string) (types.Type, error) {
	if !n.IsGroup() {
		return parquetLeafType(n, path)
	}

	if n.logicalType() == LogicalList || isLegacyList(n) {
		elem, ok := listElement(n)
		if !ok {
			return nil, unsupported(DialectParquet, "LIST shape", path)
		}
		t, err := parquetNodeType(elem, joinPath(path, elem.Name))
		if err != nil {
			return nil, err
		}
		switch elem.Repetition {
		case Optional:
			t, err = types.Merge(t, types.Null())
			if err != nil {
				return nil, err
			}
		case Repeated:
			t = types.NewList(t)
		}
		return types.NewList(t), nil
	}

	if lt := n.logicalType(); lt != "" {
		return nil, unsupported(DialectParquet, lt, path)
	}

	fields, err := parquetFields(n.Children, path)
	if err != nil {
		return nil, err
	}
	return types.NewStruct(fields...)
}

func parquetLeafType(n ParquetNode, path string) (types.Type, error) {
	if l := n.Logical; l != nil {
		switch l.Type {
		case LogicalString:
			return types.String(), nil
		case LogicalEnum:
			return types.String().WithLogical("enum"), nil
		case LogicalJSON:
			return types.String().WithLogical("json"), nil
		case LogicalUUID:
			return types.FixedBytes(16).WithLogical("uuid"), nil
		case LogicalDate:
			return types.Int(32).WithLogical("date"), nil
		case LogicalTimestamp:
			return types.Int(64).WithLogical("timestamp-" + l.Unit), nil
		case LogicalInt:
			s, err := types.NewScalar(types.KindInt, l.BitWidth, "")
			if err != nil {
				return nil, unsupported(DialectParquet, fmt.Sprintf("INT(%d)", l.BitWidth), path)
			}
			if !l.Signed {
				s = s.WithLogical("unsigned")
			}
			return s, nil
		default:
			return nil, unsupported(DialectParquet, l.Type, path)
		}
	}

	switch n.Physical {
	case Boolean:
		return types.Bool(), nil
	case Int32:
		return types.Int(32), nil
	case Int64:
		return types.Int(64), nil
	case Int96:
		return types.Int(96), nil
	case Float:
		return types.Float(32), nil
	case Double:
		return types.Float(64), nil
	case ByteArray:
		return types.Bytes(), nil
	case FixedLenByteArray:
		if n.Length <= 0 {
			return nil, unsupported(DialectParquet, "FIXED_LEN_BYTE_ARRAY without length", path)
		}
		return types.FixedBytes(n.Length), nil
	default:
		return nil, unsupported(DialectParquet, "physical type "+string(n.Physical), path)
	}
}

// FromCanonical converts t to a Parquet schema. A non-struct root becomes a
// single column named "value". Lists use the three-level LIST layout, unions
// become a group of optional memberN fields, and the null type becomes an
// optional BYTE_ARRAY.
func (ParquetConverter) FromCanonical(t types.Type) (*ParquetSchema, error) {
	if t == nil {
		return nil, ErrNilSchema
	}
	root := rootStruct(t)
	out := &ParquetSchema{Name: "schema"}
	for _, f := range root.Fields() {
		out.Fields = append(out.Fields, parquetNodeFor(f.Name, f.Type, f.Nullable))
	}
	return out, nil
}

func parquetNodeFor(name string, t types.Type, nullable bool) ParquetNode {
	t, hadNull := splitNullable(t)
	node := ParquetNode{Name: name, Repetition: Required}
	if nullable || hadNull {
		node.Repetition = Optional
	}

	switch v := t.(type) {
	case types.Scalar:
		parquetScalar(&node, v)
	case types.List:
		elem := parquetNodeFor("element", v.Values(), false)
		node.Logical = &ParquetLogical{Type: LogicalList}
		node.Children = []ParquetNode{{
			Name:       "list",
			Repetition: Repeated,
			Children:   []ParquetNode{elem},
		}}
	case types.Struct:
		for _, f := range v.Fields() {
			node.Children = append(node.Children, parquetNodeFor(f.Name, f.Type, f.Nullable))
		}
	case types.Union:
		for i, alt := range v.Types() {
			node.Children = append(node.Children, parquetNodeFor(fmt.Sprintf("member%d", i), alt, true))
		}
	}
	return node
}

func parquetScalar(node *ParquetNode, s types.Scalar) {
	switch s.Kind() {
	case types.KindNull:
		node.Physical = ByteArray
		node.Repetition = Optional
	case types.KindBool:
		node.Physical = Boolean
	case types.KindInt:
		parquetInt(node, s)
	case types.KindFloat:
		node.Physical = Double
		if s.Bits() == 32 {
			node.Physical = Float
		}
	case types.KindString:
		node.Physical = ByteArray
		switch s.Logical() {
		case "enum":
			node.Logical = &ParquetLogical{Type: LogicalEnum}
		case "json":
			node.Logical = &ParquetLogical{Type: LogicalJSON}
		default:
			node.Logical = &ParquetLogical{Type: LogicalString}
		}
	case types.KindBytes:
		switch {
		case s.Logical() == "uuid" && s.Bits() == 128:
			node.Physical = FixedLenByteArray
			node.Length = 16
			node.Logical = &ParquetLogical{Type: LogicalUUID}
		case s.Bits() > 0:
			node.Physical = FixedLenByteArray
			node.Length = s.Bits() / 8
		default:
			node.Physical = ByteArray
		}
	}
}

func parquetInt(node *ParquetNode, s types.Scalar) {
	bits := s.Bits()
	switch {
	case s.Logical() == "date" && bits == 32:
		node.Physical = Int32
		node.Logical = &ParquetLogical{Type: LogicalDate}
		return
	case strings.HasPrefix(s.Logical(), "timestamp-") && bits == 64:
		node.Physical = Int64
		node.Logical = &ParquetLogical{Type: LogicalTimestamp, Unit: strings.TrimPrefix(s.Logical(), "timestamp-")}
		return
	case bits == 96:
		node.Physical = Int96
		return
	}

	node.Physical = Int32
	if bits == 64 {
		node.Physical = Int64
	}
	switch {
	case s.Logical() == "unsigned":
		node.Logical = &ParquetLogical{Type: LogicalInt, BitWidth: bits, Signed: false}
	case bits < 32:
		node.Logical = &ParquetLogical{Type: LogicalInt, BitWidth: bits, Signed: true}
	}
}
