package document

import (
	"path"
	"strconv"
	"strings"

	"github.com/mark3labs/restdocs2openapi/internal/fragment"
	"github.com/mark3labs/restdocs2openapi/internal/include"
	"github.com/mark3labs/restdocs2openapi/internal/merge"
	"github.com/mark3labs/restdocs2openapi/internal/tree"
)

// RootTree lays out the root document. Every group appears under paths as
// a splice pair referencing fileName(group.Key): lazy rendering writes the
// include, inline rendering merges the group's paths in place.
func (d Document) RootTree(fileName func(key string) string) *tree.Node {
	root := tree.Map().Set("openapi", tree.Str(d.Metadata.OpenAPIVersion))
	root.Set("info", infoTree(d.Metadata))
	root.SetIf("servers", serversTree(d.Metadata))

	paths := tree.Map()
	for _, g := range d.Groups {
		paths.Splice(g.Key, tree.Ref(include.Include{Location: fileName(g.Key)}))
	}
	root.Set("paths", paths)
	return root
}

func infoTree(md Metadata) *tree.Node {
	info := md.Info
	n := tree.Map().Set("title", tree.Str(info.Title))
	if info.Description != "" {
		n.Set("description", tree.Str(info.Description))
	}
	n.Set("version", tree.Str(info.Version))
	if c := info.Contact; c != nil && (c.Name != "" || c.Email != "" || c.URL != "") {
		contact := tree.Map()
		if c.Name != "" {
			contact.Set("name", tree.Str(c.Name))
		}
		if c.Email != "" {
			contact.Set("email", tree.Str(c.Email))
		}
		if c.URL != "" {
			contact.Set("url", tree.Str(c.URL))
		}
		n.Set("contact", contact)
	}
	return n
}

func serversTree(md Metadata) *tree.Node {
	var items []*tree.Node
	for _, s := range md.Servers {
		if s == nil || (s.URL == "" && s.Description == "") {
			continue
		}
		item := tree.Map()
		if s.URL != "" {
			item.Set("url", tree.Str(s.URL))
		}
		if s.Description != "" {
			item.Set("description", tree.Str(s.Description))
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil
	}
	return tree.Seq(items...)
}

// Tree lays out the group as a paths mapping: path, verb, operation.
func (g ResourceGroup) Tree() *tree.Node {
	paths := tree.Map()
	for _, r := range g.Resources {
		paths.Set(r.Path, resourceTree(r))
	}
	return paths
}

func resourceTree(r merge.Resource) *tree.Node {
	item := tree.Map()
	for _, m := range r.Methods {
		item.Set(m.Verb, methodTree(m))
	}
	return item
}

func methodTree(m fragment.Method) *tree.Node {
	op := tree.Map()
	if m.Summary != "" {
		op.Set("summary", tree.Str(m.Summary))
	}
	if m.OperationID != "" {
		op.Set("operationId", tree.Str(m.OperationID))
	}
	if len(m.Parameters) > 0 {
		params := tree.Seq()
		for _, p := range m.Parameters {
			params.Items = append(params.Items, parameterTree(p))
		}
		op.Set("parameters", params)
	}
	if rc := m.RequestContent; rc != nil && len(rc.Contents) > 0 {
		op.Set("requestBody", tree.Map().
			Set("required", tree.Bool(rc.Required)).
			Set("content", contentsTree(rc.Contents)))
	}
	if len(m.Responses) > 0 {
		responses := tree.Map()
		for _, r := range m.Responses {
			responses.Set(strconv.Itoa(r.Status), responseTree(r))
		}
		op.Set("responses", responses)
	}
	return op
}

func parameterTree(p fragment.Parameter) *tree.Node {
	n := tree.Map().Set("name", tree.Str(p.Name)).Set("in", tree.Str(p.In))
	if p.Description != "" {
		n.Set("description", tree.Str(p.Description))
	}
	if p.Required != nil {
		n.Set("required", tree.Bool(*p.Required))
	}
	if p.Type != "" {
		n.Set("schema", tree.Map().Set("type", tree.Str(p.Type)))
	}
	n.SetIf("example", scalar(p.Example))
	return n
}

// uniqueHeaders keeps the first header of each name. Fields left empty there
// are taken from later headers of the same name.
func uniqueHeaders(hs []fragment.ResponseHeader) []fragment.ResponseHeader {
	out := make([]fragment.ResponseHeader, 0, len(hs))
	at := map[string]int{}
	for _, h := range hs {
		i, ok := at[h.Name]
		if !ok {
			at[h.Name] = len(out)
			out = append(out, h)
			continue
		}
		if out[i].Description == "" {
			out[i].Description = h.Description
		}
		if out[i].Example == nil {
			out[i].Example = h.Example
		}
	}
	return out
}

// uniqueLinks is uniqueHeaders for links, keyed by rel.
func uniqueLinks(ls []fragment.Link) []fragment.Link {
	out := make([]fragment.Link, 0, len(ls))
	at := map[string]int{}
	for _, l := range ls {
		i, ok := at[l.Rel]
		if !ok {
			at[l.Rel] = len(out)
			out = append(out, l)
			continue
		}
		if out[i].OperationID == "" {
			out[i].OperationID = l.OperationID
		}
		if out[i].Description == "" {
			out[i].Description = l.Description
		}
		if len(out[i].Parameters) == 0 {
			out[i].Parameters = l.Parameters
		}
	}
	return out
}

func responseTree(r fragment.Response) *tree.Node {
	n := tree.Map().Set("description", tree.Str(r.Description))
	if len(r.Headers) > 0 {
		headers := tree.Map()
		for _, h := range uniqueHeaders(r.Headers) {
			hn := tree.Map()
			if h.Description != "" {
				hn.Set("description", tree.Str(h.Description))
			}
			hn.SetIf("example", scalar(h.Example))
			headers.Set(h.Name, hn)
		}
		n.Set("headers", headers)
	}
	if len(r.Links) > 0 {
		links := tree.Map()
		for _, l := range uniqueLinks(r.Links) {
			ln := tree.Map().Set("operationId", tree.Str(l.OperationID))
			if l.Description != "" {
				ln.Set("description", tree.Str(l.Description))
			}
			if len(l.Parameters) > 0 {
				params := tree.Map()
				for _, p := range l.Parameters {
					params.Set(p.Name, tree.Str(p.Location))
				}
				ln.Set("parameters", params)
			}
			links.Set(l.Rel, ln)
		}
		n.Set("links", links)
	}
	if len(r.Contents) > 0 {
		n.Set("content", contentsTree(r.Contents))
	}
	return n
}

func contentsTree(cs []fragment.Content) *tree.Node {
	n := tree.Map()
	for _, c := range cs {
		media := tree.Map()
		if c.Schema != nil {
			media.Set("schema", tree.Ref(*c.Schema))
		}
		switch len(c.Examples) {
		case 0:
		case 1:
			media.Set("example", tree.Ref(c.Examples[0]))
		default:
			examples := tree.Map()
			names := ExampleNames(c.Examples)
			for i, ex := range c.Examples {
				examples.Set(names[i], tree.Map().Set("value", tree.Ref(ex)))
			}
			media.Set("examples", examples)
		}
		n.Set(c.ContentType, media)
	}
	return n
}

// ExampleNames derives one unique name per example from its file name:
// "carts/cart-get-response.json" is named "cart-get". Repeated names get
// "-2", "-3" and so on.
func ExampleNames(examples []include.Include) []string {
	names := make([]string, len(examples))
	used := map[string]bool{}
	for i, ex := range examples {
		base := path.Base(ex.Location)
		base = strings.TrimSuffix(base, path.Ext(base))
		base = strings.TrimSuffix(base, "-request")
		base = strings.TrimSuffix(base, "-response")
		if base == "" || base == "." || base == "/" {
			base = "example"
		}
		name := base
		for n := 2; used[name]; n++ {
			name = base + "-" + strconv.Itoa(n)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

// scalar copies a decoded scalar so rendering never shares nodes with the
// parsed fragment.
func scalar(n *tree.Node) *tree.Node {
	if n == nil {
		return nil
	}
	return &tree.Node{Kind: n.Kind, Value: n.Value, Tag: n.Tag}
}
