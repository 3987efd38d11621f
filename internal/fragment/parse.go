// Package fragment turns one decoded fragment document into a typed record.
//
// A fragment documents exactly one verb on exactly one path:
//
//	/carts/{id}:
//	  get:
//	    summary: get cart
//	    responses:
//	      200:
//	        content:
//	          application/json:
//	            schema: !include 'cart-schema.json'
//	            example: !include 'cart.json'
//
// Optional sections may be missing. Shape errors are reported as
// *docerr.StructureError carrying the fragment id and a dotted field path.
package fragment

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mark3labs/restdocs2openapi/internal/docerr"
	"github.com/mark3labs/restdocs2openapi/internal/include"
	"github.com/mark3labs/restdocs2openapi/internal/tree"
)

// ParseOptions controls ParseFile.
type ParseOptions struct {
	// IncludeRelativeToFragment prefixes include locations with the absolute
	// directory of the fragment file, so they resolve without copying the
	// referenced files next to the output.
	IncludeRelativeToFragment bool
}

// ParseFile reads, decodes and parses one fragment file. The fragment id is
// the name of the directory containing the file.
func ParseFile(path string, opts ParseOptions) (Fragment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fragment{}, &docerr.IOError{Op: "read", Path: path, Cause: err}
	}
	dir := filepath.Dir(path)
	id := filepath.Base(dir)
	base := ""
	if opts.IncludeRelativeToFragment {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return Fragment{}, &docerr.IOError{Op: "resolve", Path: dir, Cause: err}
		}
		base = abs
	}
	root, err := tree.Decode(data, base)
	if err != nil {
		return Fragment{}, withID(err, id)
	}
	return Parse(root, id)
}

// Parse converts a decoded fragment tree.
func Parse(root *tree.Node, id string) (Fragment, error) {
	p := parser{id: id}
	if root == nil || root.Kind != tree.MappingKind {
		return Fragment{}, p.fail("", root, "fragment must be a mapping with one path key")
	}
	if root.Len() != 1 {
		return Fragment{}, p.fail("", root, "fragment must contain exactly one path, found "+strconv.Itoa(root.Len()))
	}
	pair := root.Pairs[0]
	if !strings.HasPrefix(pair.Key, "/") {
		return Fragment{}, p.fail(pair.Key, root, "path must start with '/'")
	}
	m, err := p.method(pair.Key, pair.Value)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{ID: id, Path: pair.Key, Method: m}, nil
}

type parser struct {
	id string
}

func (p parser) fail(field string, n *tree.Node, msg string) error {
	line := 0
	if n != nil {
		line = n.Line
	}
	return &docerr.StructureError{FragmentID: p.id, Field: field, Line: line, Message: msg}
}

func (p parser) mapping(field string, n *tree.Node) (*tree.Node, error) {
	if n.IsNull() {
		return nil, nil
	}
	if n.Kind != tree.MappingKind {
		return nil, p.fail(field, n, "expected a mapping, got "+n.Kind.String())
	}
	return n, nil
}

func (p parser) str(field string, n *tree.Node) (string, error) {
	if n.IsNull() {
		return "", nil
	}
	if n.Kind != tree.ScalarKind {
		return "", p.fail(field, n, "expected a scalar, got "+n.Kind.String())
	}
	return n.Value, nil
}

func (p parser) boolean(field string, n *tree.Node) (*bool, error) {
	if n.IsNull() {
		return nil, nil
	}
	if n.Kind != tree.ScalarKind {
		return nil, p.fail(field, n, "expected a boolean")
	}
	b, err := strconv.ParseBool(n.Value)
	if err != nil {
		return nil, p.fail(field, n, "expected a boolean, got "+strconv.Quote(n.Value))
	}
	return &b, nil
}

func (p parser) method(path string, n *tree.Node) (Method, error) {
	item, err := p.mapping(path, n)
	if err != nil {
		return Method{}, err
	}
	if item.Len() != 1 {
		return Method{}, p.fail(path, n, "path must contain exactly one method, found "+strconv.Itoa(item.Len()))
	}
	pair := item.Pairs[0]
	verb := strings.ToLower(pair.Key)
	field := tree.Path(path, pair.Key)
	if !IsVerb(verb) {
		return Method{}, p.fail(field, pair.Value, "unknown HTTP method "+strconv.Quote(pair.Key))
	}
	op, err := p.mapping(field, pair.Value)
	if err != nil {
		return Method{}, err
	}

	m := Method{Verb: verb}
	if v, ok := op.Get("summary"); ok {
		if m.Summary, err = p.str(tree.Path(field, "summary"), v); err != nil {
			return Method{}, err
		}
	}
	if v, ok := op.Get("operationId"); ok {
		if m.OperationID, err = p.str(tree.Path(field, "operationId"), v); err != nil {
			return Method{}, err
		}
	}
	if v, ok := op.Get("parameters"); ok {
		if m.Parameters, err = p.parameters(tree.Path(field, "parameters"), v); err != nil {
			return Method{}, err
		}
	}
	if v, ok := op.Get("requestBody"); ok {
		if m.RequestContent, err = p.requestBody(tree.Path(field, "requestBody"), v); err != nil {
			return Method{}, err
		}
	}
	if v, ok := op.Get("responses"); ok {
		if m.Responses, err = p.responses(tree.Path(field, "responses"), v); err != nil {
			return Method{}, err
		}
	}
	return m, nil
}

func (p parser) parameters(field string, n *tree.Node) ([]Parameter, error) {
	if n.IsNull() {
		return nil, nil
	}
	if n.Kind != tree.SequenceKind {
		return nil, p.fail(field, n, "parameters must be a list")
	}
	out := make([]Parameter, 0, n.Len())
	for i, item := range n.Items {
		f := field + "[" + strconv.Itoa(i) + "]"
		m, err := p.mapping(f, item)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, p.fail(f, item, "parameter must be a mapping")
		}
		var prm Parameter
		name, _ := m.Get("name")
		if prm.Name, err = p.str(tree.Path(f, "name"), name); err != nil {
			return nil, err
		}
		in, _ := m.Get("in")
		if prm.In, err = p.str(tree.Path(f, "in"), in); err != nil {
			return nil, err
		}
		if prm.Name == "" || prm.In == "" {
			return nil, p.fail(f, item, "parameter needs name and in")
		}
		if v, ok := m.Get("description"); ok {
			if prm.Description, err = p.str(tree.Path(f, "description"), v); err != nil {
				return nil, err
			}
		}
		if v, ok := m.Get("required"); ok {
			if prm.Required, err = p.boolean(tree.Path(f, "required"), v); err != nil {
				return nil, err
			}
		}
		if v, ok := m.Get("schema"); ok {
			s, err := p.mapping(tree.Path(f, "schema"), v)
			if err != nil {
				return nil, err
			}
			t, _ := s.Get("type")
			if prm.Type, err = p.str(tree.Path(f, "schema.type"), t); err != nil {
				return nil, err
			}
		}
		if v, ok := m.Get("example"); ok && !v.IsNull() {
			if v.Kind != tree.ScalarKind {
				return nil, p.fail(tree.Path(f, "example"), v, "parameter example must be a scalar")
			}
			prm.Example = v
		}
		out = append(out, prm)
	}
	return out, nil
}

func (p parser) requestBody(field string, n *tree.Node) (*RequestContent, error) {
	m, err := p.mapping(field, n)
	if err != nil || m == nil || m.Len() == 0 {
		return nil, err
	}
	rc := &RequestContent{}
	if v, ok := m.Get("required"); ok {
		b, err := p.boolean(tree.Path(field, "required"), v)
		if err != nil {
			return nil, err
		}
		rc.Required = b != nil && *b
	}
	if v, ok := m.Get("content"); ok {
		if rc.Contents, err = p.contents(tree.Path(field, "content"), v); err != nil {
			return nil, err
		}
	}
	return rc, nil
}

func (p parser) responses(field string, n *tree.Node) ([]Response, error) {
	m, err := p.mapping(field, n)
	if err != nil || m == nil {
		return nil, err
	}
	out := make([]Response, 0, m.Len())
	for _, pair := range m.Pairs {
		f := tree.Path(field, pair.Key)
		status, err := strconv.Atoi(strings.TrimSpace(pair.Key))
		if err != nil || status < 100 || status > 599 {
			return nil, p.fail(f, pair.Value, "response status must be an HTTP status code")
		}
		r := Response{Status: status}
		body, err := p.mapping(f, pair.Value)
		if err != nil {
			return nil, err
		}
		if v, ok := body.Get("description"); ok {
			if r.Description, err = p.str(tree.Path(f, "description"), v); err != nil {
				return nil, err
			}
		}
		if v, ok := body.Get("headers"); ok {
			if r.Headers, err = p.headers(tree.Path(f, "headers"), v); err != nil {
				return nil, err
			}
		}
		if v, ok := body.Get("links"); ok {
			if r.Links, err = p.links(tree.Path(f, "links"), v); err != nil {
				return nil, err
			}
		}
		if v, ok := body.Get("content"); ok {
			if r.Contents, err = p.contents(tree.Path(f, "content"), v); err != nil {
				return nil, err
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func (p parser) contents(field string, n *tree.Node) ([]Content, error) {
	m, err := p.mapping(field, n)
	if err != nil || m == nil {
		return nil, err
	}
	out := make([]Content, 0, m.Len())
	for _, pair := range m.Pairs {
		f := tree.Path(field, pair.Key)
		c := Content{ContentType: pair.Key}
		media, err := p.mapping(f, pair.Value)
		if err != nil {
			return nil, err
		}
		if v, ok := media.Get("schema"); ok && !v.IsNull() {
			if v.Kind != tree.IncludeKind {
				return nil, p.fail(tree.Path(f, "schema"), v, "schema must be an "+include.Tag+" reference")
			}
			inc := v.Include
			c.Schema = &inc
		}
		if v, ok := media.Get("example"); ok && !v.IsNull() {
			inc, err := p.include(tree.Path(f, "example"), v)
			if err != nil {
				return nil, err
			}
			c.Examples = append(c.Examples, inc)
		}
		if v, ok := media.Get("examples"); ok {
			more, err := p.examples(tree.Path(f, "examples"), v)
			if err != nil {
				return nil, err
			}
			c.Examples = append(c.Examples, more...)
		}
		out = append(out, c)
	}
	return out, nil
}

func (p parser) include(field string, n *tree.Node) (include.Include, error) {
	if n.Kind != tree.IncludeKind {
		return include.Include{}, p.fail(field, n, "expected an "+include.Tag+" reference")
	}
	return n.Include, nil
}

// examples accepts a list of includes, a mapping of name to include, or a
// mapping of name to {value: include}.
func (p parser) examples(field string, n *tree.Node) ([]include.Include, error) {
	if n.IsNull() {
		return nil, nil
	}
	var out []include.Include
	switch n.Kind {
	case tree.SequenceKind:
		for i, item := range n.Items {
			inc, err := p.include(field+"["+strconv.Itoa(i)+"]", item)
			if err != nil {
				return nil, err
			}
			out = append(out, inc)
		}
	case tree.MappingKind:
		for _, pair := range n.Pairs {
			f := tree.Path(field, pair.Key)
			v := pair.Value
			if v != nil && v.Kind == tree.MappingKind {
				v, _ = v.Get("value")
				f = tree.Path(f, "value")
			}
			if v == nil {
				return nil, p.fail(f, pair.Value, "example needs a value")
			}
			inc, err := p.include(f, v)
			if err != nil {
				return nil, err
			}
			out = append(out, inc)
		}
	default:
		return nil, p.fail(field, n, "examples must be a list or a mapping")
	}
	return out, nil
}

func (p parser) headers(field string, n *tree.Node) ([]ResponseHeader, error) {
	m, err := p.mapping(field, n)
	if err != nil || m == nil {
		return nil, err
	}
	out := make([]ResponseHeader, 0, m.Len())
	for _, pair := range m.Pairs {
		f := tree.Path(field, pair.Key)
		h := ResponseHeader{Name: pair.Key}
		body, err := p.mapping(f, pair.Value)
		if err != nil {
			return nil, err
		}
		if v, ok := body.Get("description"); ok {
			if h.Description, err = p.str(tree.Path(f, "description"), v); err != nil {
				return nil, err
			}
		}
		if v, ok := body.Get("example"); ok && !v.IsNull() {
			if v.Kind != tree.ScalarKind {
				return nil, p.fail(tree.Path(f, "example"), v, "header example must be a scalar")
			}
			h.Example = v
		}
		out = append(out, h)
	}
	return out, nil
}

func (p parser) links(field string, n *tree.Node) ([]Link, error) {
	m, err := p.mapping(field, n)
	if err != nil || m == nil {
		return nil, err
	}
	out := make([]Link, 0, m.Len())
	for _, pair := range m.Pairs {
		f := tree.Path(field, pair.Key)
		l := Link{Rel: pair.Key}
		body, err := p.mapping(f, pair.Value)
		if err != nil {
			return nil, err
		}
		if v, ok := body.Get("operationId"); ok {
			if l.OperationID, err = p.str(tree.Path(f, "operationId"), v); err != nil {
				return nil, err
			}
		}
		if l.OperationID == "" {
			return nil, p.fail(f, pair.Value, "link needs an operationId")
		}
		if v, ok := body.Get("description"); ok {
			if l.Description, err = p.str(tree.Path(f, "description"), v); err != nil {
				return nil, err
			}
		}
		if v, ok := body.Get("parameters"); ok {
			params, err := p.mapping(tree.Path(f, "parameters"), v)
			if err != nil {
				return nil, err
			}
			for _, pp := range pairs(params) {
				loc, err := p.str(tree.Path(f, "parameters."+pp.Key), pp.Value)
				if err != nil {
					return nil, err
				}
				l.Parameters = append(l.Parameters, LinkParameter{Name: pp.Key, Location: loc})
			}
		}
		out = append(out, l)
	}
	return out, nil
}

// pairs returns the entries of an optional mapping.
func pairs(m *tree.Node) []tree.Pair {
	if m == nil {
		return nil
	}
	return m.Pairs
}

func withID(err error, id string) error {
	if se, ok := err.(*docerr.StructureError); ok && se.FragmentID == "" {
		cp := *se
		cp.FragmentID = id
		return &cp
	}
	return err
}
