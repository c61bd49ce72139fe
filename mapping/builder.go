package mapping

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnresolvedRef is returned when a description references a type
	// that is not present in its definitions.
	ErrUnresolvedRef = errors.New("unresolved type reference")

	// ErrInvalidDescription is returned for structurally broken descriptions.
	ErrInvalidDescription = errors.New("invalid description")
)

// Discover walks a description tree and produces the table's flat column
// catalog, its deepest array path and the request-only columns.
func Discover(desc *Description) (*Table, error) {
	if desc == nil || desc.Root == nil {
		return nil, fmt.Errorf("%w: missing root node", ErrInvalidDescription)
	}
	b := &builder{
		defs:    desc.Definitions,
		names:   nameSet{},
		reverse: map[string][]int{},
	}

	root, err := b.resolve(desc.Root)
	if err != nil {
		return nil, err
	}

	path, err := b.rowPath(root)
	if err != nil {
		return nil, err
	}

	if err := b.extract(root, path); err != nil {
		return nil, err
	}

	b.requestOnly(desc.Parameters)
	b.requestOnly(desc.Filterable)

	if len(b.columns) == 0 {
		return nil, fmt.Errorf("%w: table %q has no columns", ErrInvalidDescription, desc.Name)
	}

	return NewTable(desc.Name, b.columns, path, desc.Paging), nil
}

type builder struct {
	defs    map[string]*Node
	columns []Column
	names   nameSet
	// reverse maps a source leaf name to every output column carrying it.
	reverse map[string][]int
	// responseCount is the number of columns found in the response shape.
	responseCount int
}

// resolve follows references until it reaches a concrete node.
func (b *builder) resolve(n *Node) (*Node, error) {
	seen := map[string]bool{}
	for n != nil && n.Ref != "" {
		name := refName(n.Ref)
		if seen[name] {
			return nil, fmt.Errorf("%w: reference cycle through %q", ErrInvalidDescription, name)
		}
		seen[name] = true
		target, ok := b.defs[name]
		if !ok || target == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnresolvedRef, n.Ref)
		}
		n = target
	}
	if n == nil {
		return nil, fmt.Errorf("%w: nil node", ErrInvalidDescription)
	}
	return n, nil
}

// refName accepts "#/definitions/X", "#/components/schemas/X" and bare names.
func refName(ref string) string {
	if i := strings.LastIndexByte(ref, '/'); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// rowPath computes the deepest array path of the root node.
func (b *builder) rowPath(root *Node) ([]string, error) {
	switch root.Kind {
	case KindArray:
		items, err := b.resolve(root.Items)
		if err != nil {
			return nil, err
		}
		if items.Kind != KindObject {
			return nil, fmt.Errorf("%w: root array items must be objects, got %s", ErrInvalidDescription, items.Kind)
		}
		sub, _, err := b.deepest(items, map[*Node]bool{})
		if err != nil {
			return nil, err
		}
		return append([]string{RootSegment}, sub...), nil
	case KindObject:
		path, _, err := b.deepest(root, map[*Node]bool{})
		return path, err
	case KindLeaf:
		return nil, fmt.Errorf("%w: root must be an object or array", ErrInvalidDescription)
	}
	return nil, fmt.Errorf("%w: unknown node kind %d", ErrInvalidDescription, root.Kind)
}

// deepest returns the chain of field names below an object node that passes
// through the most nested arrays of objects. Plain objects on the way are
// transit segments. Ties keep the first declared field.
func (b *builder) deepest(obj *Node, visiting map[*Node]bool) ([]string, int, error) {
	if visiting[obj] {
		return nil, 0, nil
	}
	visiting[obj] = true
	defer delete(visiting, obj)

	var best []string
	bestCount := 0
	for _, f := range obj.Fields {
		child, err := b.resolve(f.Node)
		if err != nil {
			return nil, 0, err
		}

		var sub []string
		count := 0
		switch child.Kind {
		case KindArray:
			items, err := b.resolve(child.Items)
			if err != nil {
				return nil, 0, err
			}
			if items.Kind != KindObject {
				continue
			}
			sub, count, err = b.deepest(items, visiting)
			if err != nil {
				return nil, 0, err
			}
			count++
		case KindObject:
			sub, count, err = b.deepest(child, visiting)
			if err != nil {
				return nil, 0, err
			}
		case KindLeaf:
			continue
		}

		if count > bestCount {
			bestCount = count
			best = append([]string{f.Name}, sub...)
		}
	}
	return best, bestCount, nil
}

// extract collects the response columns from every object on the row path.
func (b *builder) extract(root *Node, path []string) error {
	level := root
	start := 0
	if root.Kind == KindArray {
		items, err := b.resolve(root.Items)
		if err != nil {
			return err
		}
		level = items
		start = 1
		if err := b.collect(level, path[:1]); err != nil {
			return err
		}
	} else if err := b.collect(level, nil); err != nil {
		return err
	}

	for i := start; i < len(path); i++ {
		next, err := b.child(level, path[i])
		if err != nil {
			return err
		}
		if err := b.collect(next, path[:i+1]); err != nil {
			return err
		}
		level = next
	}
	b.responseCount = len(b.columns)
	return nil
}

// child returns the element object reached from obj through the named field.
func (b *builder) child(obj *Node, name string) (*Node, error) {
	for _, f := range obj.Fields {
		if f.Name != name {
			continue
		}
		n, err := b.resolve(f.Node)
		if err != nil {
			return nil, err
		}
		if n.Kind == KindArray {
			return b.resolve(n.Items)
		}
		return n, nil
	}
	return nil, fmt.Errorf("%w: path segment %q not found", ErrInvalidDescription, name)
}

// collect adds a column for every mapped scalar field of an object node.
// Collections are never columns, so path segments are skipped implicitly.
func (b *builder) collect(obj *Node, prefix []string) error {
	qualifier := ""
	if len(prefix) > 0 {
		qualifier = prefix[len(prefix)-1]
	}
	for _, f := range obj.Fields {
		n, err := b.resolve(f.Node)
		if err != nil {
			return err
		}
		if n.Kind != KindLeaf {
			continue
		}

		var name string
		var override ScalarType
		if obj.Mapping != nil {
			m, ok := obj.Mapping[f.Name]
			if !ok {
				continue
			}
			name, override = m.Column, m.Type
		}
		if name == "" {
			name = NormalizeIdentifier(f.Name)
		}

		source := make([]string, 0, len(prefix)+1)
		source = append(source, prefix...)
		source = append(source, f.Name)

		b.add(Column{
			Name:       b.names.claim(name, qualifier),
			Type:       ResolveType(n.Type.Kind, n.Type.Format, override),
			SourcePath: source,
			Direction:  DirectionResponse,
		})
	}
	return nil
}

func (b *builder) add(c Column) {
	b.reverse[c.SourceName()] = append(b.reverse[c.SourceName()], len(b.columns))
	b.columns = append(b.columns, c)
}

// requestOnly applies the request-side direction passes: a declared input
// matching response columns promotes all of them to BOTH, otherwise a new
// REQUEST column is created.
func (b *builder) requestOnly(params []Parameter) {
	for _, p := range params {
		if p.Name == "" {
			continue
		}
		matches := b.matches(p.Name)
		if len(matches) > 0 {
			for _, i := range matches {
				if b.columns[i].Direction == DirectionResponse {
					b.columns[i].Direction = DirectionBoth
				}
			}
			continue
		}
		if b.hasRequest(p.Name) {
			continue
		}
		b.add(Column{
			Name:       b.names.claim(NormalizeIdentifier(p.Name), ""),
			Type:       ResolveType(p.Type.Kind, p.Type.Format, p.Override),
			SourcePath: []string{p.Name},
			Direction:  DirectionRequest,
		})
	}
}

// matches returns response columns whose source leaf or output name equals name.
func (b *builder) matches(name string) []int {
	seen := map[int]bool{}
	var out []int
	for _, i := range b.reverse[name] {
		if i < b.responseCount && !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	for i := 0; i < b.responseCount; i++ {
		if b.columns[i].Name == name && !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	return out
}

func (b *builder) hasRequest(source string) bool {
	for _, c := range b.columns[b.responseCount:] {
		if c.SourceName() == source {
			return true
		}
	}
	return false
}
