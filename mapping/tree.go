package mapping

// NodeKind tags the variant held by a Node.
type NodeKind int

const (
	KindLeaf NodeKind = iota
	KindObject
	KindArray
)

func (k NodeKind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	}
	return "unknown"
}

// Node is one node of a resolved hierarchical description.
//
// Exactly one variant is meaningful, selected by Kind:
//   - KindObject: Fields (ordered) and the optional Mapping table
//   - KindArray: Items
//   - KindLeaf: Type (source kind and format)
//
// A node with a non-empty Ref is a reference to Description.Definitions and
// carries no variant of its own.
type Node struct {
	Kind NodeKind
	Ref  string

	Fields  []Field
	Mapping map[string]FieldMapping

	Items *Node

	Type SourceType
}

// Field is a named child of an object node.
type Field struct {
	Name string
	Node *Node
}

// SourceType is the type descriptor of a leaf in the source description.
type SourceType struct {
	Kind   string
	Format string
}

// FieldMapping maps one source field to an output column.
// Type overrides the inferred scalar type when set.
type FieldMapping struct {
	Column string
	Type   ScalarType
}

// Parameter declares a request-only input field: a GET-style named
// parameter or an entry of the filterable-field list.
type Parameter struct {
	Name string
	Type SourceType
	// Override forces the scalar type of the column created for the parameter.
	Override ScalarType
}

// Description is the resolved API description for one table.
type Description struct {
	Name        string
	Root        *Node
	Definitions map[string]*Node
	Parameters  []Parameter
	Filterable  []Parameter
	Paging      Paging
}

// Object returns an object node with the given fields.
func Object(fields ...Field) *Node {
	return &Node{Kind: KindObject, Fields: fields}
}

// ArrayOf returns an array node with the given items.
func ArrayOf(items *Node) *Node {
	return &Node{Kind: KindArray, Items: items}
}

// Leaf returns a leaf node of the given source kind and format.
func Leaf(kind, format string) *Node {
	return &Node{Kind: KindLeaf, Type: SourceType{Kind: kind, Format: format}}
}

// RefTo returns a reference node resolved against Description.Definitions.
func RefTo(name string) *Node {
	return &Node{Ref: name}
}

// F is shorthand for a Field.
func F(name string, n *Node) Field {
	return Field{Name: name, Node: n}
}

// WithMapping sets the field-mapping table of an object node and returns it.
func (n *Node) WithMapping(m map[string]FieldMapping) *Node {
	n.Mapping = m
	return n
}
