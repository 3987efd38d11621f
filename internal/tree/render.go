package tree

import (
	"bytes"
	"fmt"
	"path"
	"path/filepath"

	"github.com/mark3labs/restdocs2openapi/internal/docerr"
	"github.com/mark3labs/restdocs2openapi/internal/include"
	"gopkg.in/yaml.v3"
)

// Renderer materializes a tree into YAML, resolving include markers
// according to Mode.
//
// In ModeInline, an include is looked up in Local first (documents produced
// in the same run and not yet written) and otherwise read from Dir. Loaded
// content is decoded and rendered recursively, so includes inside included
// files are inlined too, relative to the directory of the file holding them.
type Renderer struct {
	Mode  include.Mode
	Dir   string
	Local map[string]*Node
}

// Render converts n to a yaml.Node.
func (r Renderer) Render(n *Node) (*yaml.Node, error) {
	s := &renderState{r: r, active: map[string]bool{}}
	return s.node(n)
}

// Marshal renders n and encodes it as a YAML document with two-space indent.
func (r Renderer) Marshal(n *Node) ([]byte, error) {
	y, err := r.Render(n)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(y); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

type renderState struct {
	r Renderer
	// active holds resolved include paths on the current resolution stack.
	active map[string]bool
}

func (s *renderState) node(n *Node) (*yaml.Node, error) {
	if n == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: NullTag, Value: "null"}, nil
	}
	switch n.Kind {
	case ScalarKind:
		tag := n.Tag
		if tag == "" {
			tag = StrTag
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: n.Value}, nil
	case SequenceKind:
		out := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range n.Items {
			y, err := s.node(item)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, y)
		}
		return out, nil
	case MappingKind:
		return s.mapping(n)
	case IncludeKind:
		return include.Encode(n.Include, s.r.Mode, s.load)
	default:
		return nil, fmt.Errorf("tree: cannot render node kind %v", n.Kind)
	}
}

func (s *renderState) mapping(n *Node) (*yaml.Node, error) {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	seen := make(map[string]bool, len(n.Pairs))
	add := func(key string, v *yaml.Node) error {
		if seen[key] {
			return &docerr.StructureError{Field: key, Message: "duplicate key after inlining"}
		}
		seen[key] = true
		out.Content = append(out.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: StrTag, Value: key}, v)
		return nil
	}
	for _, p := range n.Pairs {
		if p.Splice && s.r.Mode == include.ModeInline {
			inner, err := s.spliced(p)
			if err != nil {
				return nil, err
			}
			for _, ip := range inner.Pairs {
				v, err := s.node(ip.Value)
				if err != nil {
					return nil, err
				}
				if err := add(ip.Key, v); err != nil {
					return nil, err
				}
			}
			continue
		}
		v, err := s.node(p.Value)
		if err != nil {
			return nil, err
		}
		if err := add(p.Key, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// spliced returns the mapping whose entries replace a splice pair.
func (s *renderState) spliced(p Pair) (*Node, error) {
	v := p.Value
	if v != nil && v.Kind == IncludeKind {
		loaded, err := s.resolve(v.Include)
		if err != nil {
			return nil, err
		}
		v = loaded
	}
	if v == nil || v.Kind != MappingKind {
		return nil, &docerr.StructureError{Field: p.Key, Message: "spliced value must be a mapping"}
	}
	return v, nil
}

func (s *renderState) resolve(inc include.Include) (*Node, error) {
	if t, ok := s.r.Local[inc.Location]; ok {
		return t, nil
	}
	data, err := include.Read(s.r.Dir, inc)
	if err != nil {
		return nil, err
	}
	t, err := Decode(data, path.Dir(filepath.ToSlash(inc.Location)))
	if err != nil {
		return nil, fmt.Errorf("decode include %s: %w", inc.Location, err)
	}
	return t, nil
}

func (s *renderState) load(inc include.Include) (*yaml.Node, error) {
	key := filepath.Clean(include.Resolve(s.r.Dir, inc))
	if s.active[key] {
		return nil, &docerr.StructureError{Field: inc.Location, Message: "include cycle"}
	}
	t, err := s.resolve(inc)
	if err != nil {
		return nil, err
	}
	s.active[key] = true
	defer delete(s.active, key)
	return s.node(t)
}
