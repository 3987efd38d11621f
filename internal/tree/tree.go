// Package tree is the typed document tree shared by the fragment decoder and
// the document assembler.
//
// A Node is a tagged union of scalar, sequence, mapping and include. Mapping
// keys keep insertion order so rendering is deterministic. Include nodes are
// symbolic markers: they are resolved only when the tree is rendered (see
// Renderer).
package tree

import (
	"strconv"

	"github.com/mark3labs/restdocs2openapi/internal/include"
)

// Kind identifies the variant a Node holds.
type Kind int

const (
	ScalarKind Kind = iota + 1
	SequenceKind
	MappingKind
	IncludeKind
)

func (k Kind) String() string {
	switch k {
	case ScalarKind:
		return "scalar"
	case SequenceKind:
		return "sequence"
	case MappingKind:
		return "mapping"
	case IncludeKind:
		return "include"
	default:
		return "unknown"
	}
}

// YAML core tags used for scalars.
const (
	StrTag   = "!!str"
	IntTag   = "!!int"
	FloatTag = "!!float"
	BoolTag  = "!!bool"
	NullTag  = "!!null"
)

// Node is one value of the tree.
type Node struct {
	Kind Kind
	// Value and Tag hold scalar text and its resolved YAML tag.
	Value string
	Tag   string
	Items []*Node
	Pairs []Pair
	// Include is set for IncludeKind.
	Include include.Include
	// Line is the source line for decoded nodes, 0 for built ones.
	Line int
}

// Pair is one mapping entry.
type Pair struct {
	Key   string
	Value *Node
	// Splice asks the renderer to merge the entries of Value (a mapping, or
	// an include resolving to one) into the parent mapping when includes are
	// inlined. Lazy rendering keeps Key with the reference as value.
	Splice bool
}

func Str(s string) *Node { return &Node{Kind: ScalarKind, Tag: StrTag, Value: s} }

func Int(i int) *Node { return &Node{Kind: ScalarKind, Tag: IntTag, Value: strconv.Itoa(i)} }

func Bool(b bool) *Node { return &Node{Kind: ScalarKind, Tag: BoolTag, Value: strconv.FormatBool(b)} }

func Null() *Node { return &Node{Kind: ScalarKind, Tag: NullTag, Value: "null"} }

func Seq(items ...*Node) *Node { return &Node{Kind: SequenceKind, Items: items} }

func Map() *Node { return &Node{Kind: MappingKind} }

func Ref(inc include.Include) *Node { return &Node{Kind: IncludeKind, Include: inc} }

// Set appends key, or replaces the value of an existing key in place.
// It returns n so calls can be chained.
func (n *Node) Set(key string, v *Node) *Node {
	for i := range n.Pairs {
		if n.Pairs[i].Key == key {
			n.Pairs[i].Value = v
			return n
		}
	}
	n.Pairs = append(n.Pairs, Pair{Key: key, Value: v})
	return n
}

// SetIf sets key only when v is not nil.
func (n *Node) SetIf(key string, v *Node) *Node {
	if v == nil {
		return n
	}
	return n.Set(key, v)
}

// Splice appends a pair whose value is merged into n when inlining.
func (n *Node) Splice(key string, v *Node) *Node {
	n.Pairs = append(n.Pairs, Pair{Key: key, Value: v, Splice: true})
	return n
}

// Get returns the value stored under key.
func (n *Node) Get(key string) (*Node, bool) {
	if n == nil || n.Kind != MappingKind {
		return nil, false
	}
	for _, p := range n.Pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Keys returns mapping keys in order.
func (n *Node) Keys() []string {
	if n == nil || n.Kind != MappingKind {
		return nil
	}
	keys := make([]string, 0, len(n.Pairs))
	for _, p := range n.Pairs {
		keys = append(keys, p.Key)
	}
	return keys
}

// Len is the number of items or pairs.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	switch n.Kind {
	case SequenceKind:
		return len(n.Items)
	case MappingKind:
		return len(n.Pairs)
	}
	return 0
}

// IsNull reports whether n is absent or an explicit null scalar.
func (n *Node) IsNull() bool {
	return n == nil || (n.Kind == ScalarKind && n.Tag == NullTag)
}

// Path is a dotted location used in error messages.
func Path(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
