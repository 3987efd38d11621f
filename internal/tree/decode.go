package tree

import (
	"github.com/mark3labs/restdocs2openapi/internal/docerr"
	"github.com/mark3labs/restdocs2openapi/internal/include"
	"gopkg.in/yaml.v3"
)

// Decode parses YAML (JSON is accepted too) into a tree. Scalars tagged
// with include.Tag become Include nodes; when base is set their location is
// joined onto it. Empty input decodes to a null scalar.
func Decode(data []byte, base string) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &docerr.StructureError{Message: "invalid YAML", Cause: err}
	}
	if doc.Kind == 0 {
		return Null(), nil
	}
	return FromYAML(&doc, base)
}

// FromYAML converts a decoded yaml.Node.
func FromYAML(n *yaml.Node, base string) (*Node, error) {
	if n == nil {
		return Null(), nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return FromYAML(n.Content[0], base)
	case yaml.AliasNode:
		return FromYAML(n.Alias, base)
	case yaml.ScalarNode:
		if include.IsInclude(n) {
			inc, err := include.Decode(n, base)
			if err != nil {
				return nil, err
			}
			out := Ref(inc)
			out.Line = n.Line
			return out, nil
		}
		return &Node{Kind: ScalarKind, Value: n.Value, Tag: n.ShortTag(), Line: n.Line}, nil
	case yaml.SequenceNode:
		if include.IsInclude(n) {
			return nil, &docerr.StructureError{Line: n.Line, Message: include.Tag + " must tag a scalar file location"}
		}
		out := &Node{Kind: SequenceKind, Line: n.Line, Items: make([]*Node, 0, len(n.Content))}
		for _, c := range n.Content {
			item, err := FromYAML(c, base)
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, item)
		}
		return out, nil
	case yaml.MappingNode:
		if include.IsInclude(n) {
			return nil, &docerr.StructureError{Line: n.Line, Message: include.Tag + " must tag a scalar file location"}
		}
		out := &Node{Kind: MappingKind, Line: n.Line, Pairs: make([]Pair, 0, len(n.Content)/2)}
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind == yaml.AliasNode {
				k = k.Alias
			}
			if k.Kind != yaml.ScalarNode {
				return nil, &docerr.StructureError{Line: k.Line, Message: "mapping keys must be scalars"}
			}
			child, err := FromYAML(v, base)
			if err != nil {
				return nil, err
			}
			out.Pairs = append(out.Pairs, Pair{Key: k.Value, Value: child})
		}
		return out, nil
	default:
		return nil, &docerr.StructureError{Line: n.Line, Message: "unsupported YAML node"}
	}
}
