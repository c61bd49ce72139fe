package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/hugr-lab/restport/mapping"
)

// columnSpec is one x-columns entry: a column name or {name, type}.
type columnSpec struct {
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"`
}

var columnSpecType = reflect.TypeOf(columnSpec{})

func stringToColumnSpecHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != columnSpecType {
		return data, nil
	}
	return columnSpec{Name: data.(string)}, nil
}

// buildDescription converts a JSON-schema-like YAML tree into a
// description. Definitions come from defs and from the root's own
// "definitions" or "components.schemas" keys.
func buildDescription(root, defs *yaml.Node) (*mapping.Description, error) {
	root = deref(root)
	desc := &mapping.Description{Definitions: map[string]*mapping.Node{}}

	if err := addDefinitions(desc, defs); err != nil {
		return nil, err
	}
	if root.Kind == yaml.MappingNode {
		if err := addDefinitions(desc, lookup(root, "definitions")); err != nil {
			return nil, err
		}
		if comps := lookup(root, "components"); comps != nil {
			if err := addDefinitions(desc, lookup(deref(comps), "schemas")); err != nil {
				return nil, err
			}
		}
	}

	n, err := buildNode(root, "$")
	if err != nil {
		return nil, err
	}
	desc.Root = n
	return desc, nil
}

func addDefinitions(desc *mapping.Description, defs *yaml.Node) error {
	if defs == nil || defs.Kind == 0 {
		return nil
	}
	defs = deref(defs)
	if defs.Kind != yaml.MappingNode {
		return fmt.Errorf("definitions must be a mapping, line %d", defs.Line)
	}
	for i := 0; i+1 < len(defs.Content); i += 2 {
		name := defs.Content[i].Value
		n, err := buildNode(defs.Content[i+1], "#/definitions/"+name)
		if err != nil {
			return err
		}
		desc.Definitions[name] = n
	}
	return nil
}

// buildNode converts one schema node. path locates it in error messages.
func buildNode(y *yaml.Node, path string) (*mapping.Node, error) {
	y = deref(y)
	if y.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: schema must be a mapping, line %d", path, y.Line)
	}

	var (
		kind, format, ref string
		properties, items *yaml.Node
		columns           map[string]mapping.FieldMapping
	)
	for i := 0; i+1 < len(y.Content); i += 2 {
		key, val := y.Content[i].Value, deref(y.Content[i+1])
		var err error
		switch key {
		case "$ref":
			ref = val.Value
		case "type":
			kind, err = typeName(val)
		case "format":
			format = val.Value
		case "properties":
			properties = val
		case "items":
			items = val
		case "x-columns":
			columns, err = columnMapping(val)
		}
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", path, key, err)
		}
	}

	if ref != "" {
		return mapping.RefTo(ref), nil
	}
	switch {
	case kind == "array":
		if items == nil {
			return nil, fmt.Errorf("%s: array without items, line %d", path, y.Line)
		}
		it, err := buildNode(items, path+"[]")
		if err != nil {
			return nil, err
		}
		return mapping.ArrayOf(it), nil
	case kind == "object" || (kind == "" && properties != nil):
		obj := mapping.Object()
		if properties != nil {
			if properties.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("%s.properties: must be a mapping, line %d", path, properties.Line)
			}
			for i := 0; i+1 < len(properties.Content); i += 2 {
				name := properties.Content[i].Value
				child, err := buildNode(properties.Content[i+1], path+"."+name)
				if err != nil {
					return nil, err
				}
				obj.Fields = append(obj.Fields, mapping.F(name, child))
			}
		}
		if columns != nil {
			obj.WithMapping(columns)
		}
		return obj, nil
	}
	return mapping.Leaf(kind, format), nil
}

// typeName reads "type", accepting the ["string", "null"] list form.
func typeName(n *yaml.Node) (string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return strings.ToLower(n.Value), nil
	case yaml.SequenceNode:
		for _, c := range n.Content {
			if v := strings.ToLower(c.Value); v != "null" {
				return v, nil
			}
		}
		return "", nil
	}
	return "", fmt.Errorf("must be a string or a list, line %d", n.Line)
}

func columnMapping(n *yaml.Node) (map[string]mapping.FieldMapping, error) {
	var raw map[string]any
	if err := n.Decode(&raw); err != nil {
		return nil, err
	}
	var specs map[string]columnSpec
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  stringToColumnSpecHook,
		ErrorUnused: true,
		Result:      &specs,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, err
	}

	out := make(map[string]mapping.FieldMapping, len(specs))
	for field, s := range specs {
		fm := mapping.FieldMapping{Column: s.Name}
		if s.Type != "" {
			t, ok := mapping.ParseScalarType(s.Type)
			if !ok {
				return nil, fmt.Errorf("field %q: unknown column type %q", field, s.Type)
			}
			fm.Type = t
		}
		out[field] = fm
	}
	return out, nil
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// deref unwraps document and alias nodes.
func deref(n *yaml.Node) *yaml.Node {
	for {
		switch {
		case n.Kind == yaml.DocumentNode && len(n.Content) > 0:
			n = n.Content[0]
		case n.Kind == yaml.AliasNode && n.Alias != nil:
			n = n.Alias
		default:
			return n
		}
	}
}
