// Package merge combines fragments that document the same path into one
// resource.
//
// Fragments come from independent test cases, so the same operation is
// usually observed several times with different bodies and statuses. The
// merge is deterministic for a given fragment order:
//
//   - one Method per verb, emitted in the order of fragment.Verbs
//   - summary and operationId: the longest non-empty value in characters,
//     earliest on ties
//   - request body required if any fragment requires it
//   - contents grouped by content type, schemas combined by a SchemaMerger
//   - responses grouped by status and sorted ascending; headers and links are
//     concatenated in fragment order (rendering keeps one per name)
//   - response description: first non-empty value
//   - parameters: taken from the first fragment of the verb
package merge

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/restdocs2openapi/internal/docerr"
	"github.com/mark3labs/restdocs2openapi/internal/fragment"
	"github.com/mark3labs/restdocs2openapi/internal/include"
)

// ErrNoFragments is returned when MergeResource is called with nothing to merge.
var ErrNoFragments = errors.New("merge: no fragments")

// SchemaMerger combines the JSON schemas observed for one content type into
// a single schema file.
type SchemaMerger interface {
	MergeSchemas(schemas []include.Include) (include.Include, error)
}

// SchemaMergerFunc adapts a function to SchemaMerger.
type SchemaMergerFunc func(schemas []include.Include) (include.Include, error)

func (f SchemaMergerFunc) MergeSchemas(schemas []include.Include) (include.Include, error) {
	return f(schemas)
}

// ExamplePolicy decides which example references survive a merge.
type ExamplePolicy int

const (
	// ExamplesCollectAll keeps every example in fragment order, duplicates included.
	ExamplesCollectAll ExamplePolicy = iota
	// ExamplesFirstOnly keeps the first example per content type.
	ExamplesFirstOnly
)

func (p ExamplePolicy) String() string {
	switch p {
	case ExamplesCollectAll:
		return "all"
	case ExamplesFirstOnly:
		return "first"
	default:
		return fmt.Sprintf("ExamplePolicy(%d)", int(p))
	}
}

// ParseExamplePolicy accepts "all" or "first".
func ParseExamplePolicy(s string) (ExamplePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ExamplesCollectAll, nil
	case "first":
		return ExamplesFirstOnly, nil
	default:
		return 0, fmt.Errorf("unknown example policy %q (want all or first)", s)
	}
}

// Option configures a merge.
type Option func(*options)

type options struct {
	examples ExamplePolicy
}

// WithExamplePolicy selects how examples are collected. The default is
// ExamplesCollectAll.
func WithExamplePolicy(p ExamplePolicy) Option {
	return func(o *options) { o.examples = p }
}

// Resource is the merged documentation of one path.
type Resource struct {
	Path    string
	Methods []fragment.Method
}

// Method returns the merged method for verb.
func (r Resource) Method(verb string) (fragment.Method, bool) {
	for _, m := range r.Methods {
		if m.Verb == verb {
			return m, true
		}
	}
	return fragment.Method{}, false
}

// MergeResource merges fragments sharing one path. A fragment with a
// different path fails with *docerr.PathMismatchError. Fragments are not
// modified.
func MergeResource(fragments []fragment.Fragment, sm SchemaMerger, opts ...Option) (Resource, error) {
	if len(fragments) == 0 {
		return Resource{}, ErrNoFragments
	}
	o := options{examples: ExamplesCollectAll}
	for _, opt := range opts {
		opt(&o)
	}
	m := merger{sm: sm, opts: o}

	path := fragments[0].Path
	for _, f := range fragments[1:] {
		if f.Path != path {
			return Resource{}, &docerr.PathMismatchError{Expected: path, Got: f.Path, FragmentID: f.ID}
		}
	}

	var verbs []string
	byVerb := map[string][]fragment.Fragment{}
	for _, f := range fragments {
		v := f.Method.Verb
		if _, ok := byVerb[v]; !ok {
			verbs = append(verbs, v)
		}
		byVerb[v] = append(byVerb[v], f)
	}
	sort.SliceStable(verbs, func(i, j int) bool { return verbRank(verbs[i]) < verbRank(verbs[j]) })

	res := Resource{Path: path, Methods: make([]fragment.Method, 0, len(verbs))}
	for _, v := range verbs {
		method, err := m.method(path, v, byVerb[v])
		if err != nil {
			return Resource{}, err
		}
		res.Methods = append(res.Methods, method)
	}
	return res, nil
}

// MergeAll groups fragments by path and merges each group. Resources are
// returned sorted by path.
func MergeAll(fragments []fragment.Fragment, sm SchemaMerger, opts ...Option) ([]Resource, error) {
	var paths []string
	byPath := map[string][]fragment.Fragment{}
	for _, f := range fragments {
		if _, ok := byPath[f.Path]; !ok {
			paths = append(paths, f.Path)
		}
		byPath[f.Path] = append(byPath[f.Path], f)
	}
	sort.Strings(paths)

	out := make([]Resource, 0, len(paths))
	for _, p := range paths {
		r, err := MergeResource(byPath[p], sm, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func verbRank(v string) int {
	for i, known := range fragment.Verbs {
		if known == v {
			return i
		}
	}
	return len(fragment.Verbs)
}

type merger struct {
	sm   SchemaMerger
	opts options
}

// sourced pairs a value with the id of the fragment it came from, so schema
// merge failures can name their inputs.
type sourced[T any] struct {
	id  string
	val T
}

func (m merger) method(path, verb string, group []fragment.Fragment) (fragment.Method, error) {
	first := group[0].Method
	out := fragment.Method{
		Verb:       verb,
		Parameters: append([]fragment.Parameter(nil), first.Parameters...),
	}

	var (
		required  bool
		hasBody   bool
		reqConts  []sourced[fragment.Content]
		responses []sourced[fragment.Response]
	)
	for _, f := range group {
		out.Summary = longer(out.Summary, f.Method.Summary)
		out.OperationID = longer(out.OperationID, f.Method.OperationID)
		if rc := f.Method.RequestContent; rc != nil {
			hasBody = true
			required = required || rc.Required
			for _, c := range rc.Contents {
				reqConts = append(reqConts, sourced[fragment.Content]{f.ID, c})
			}
		}
		for _, r := range f.Method.Responses {
			responses = append(responses, sourced[fragment.Response]{f.ID, r})
		}
	}

	where := strings.ToUpper(verb) + " " + path
	if hasBody {
		contents, err := m.contents(where+" request", reqConts)
		if err != nil {
			return fragment.Method{}, err
		}
		out.RequestContent = &fragment.RequestContent{Required: required, Contents: contents}
	}

	rs, err := m.responses(where, responses)
	if err != nil {
		return fragment.Method{}, err
	}
	out.Responses = rs
	return out, nil
}

func (m merger) responses(where string, in []sourced[fragment.Response]) ([]fragment.Response, error) {
	if len(in) == 0 {
		return nil, nil
	}
	var statuses []int
	byStatus := map[int][]sourced[fragment.Response]{}
	for _, r := range in {
		s := r.val.Status
		if _, ok := byStatus[s]; !ok {
			statuses = append(statuses, s)
		}
		byStatus[s] = append(byStatus[s], r)
	}
	sort.Ints(statuses)

	out := make([]fragment.Response, 0, len(statuses))
	for _, s := range statuses {
		merged := fragment.Response{Status: s}
		var contents []sourced[fragment.Content]
		for _, r := range byStatus[s] {
			if merged.Description == "" {
				merged.Description = r.val.Description
			}
			merged.Headers = append(merged.Headers, r.val.Headers...)
			merged.Links = append(merged.Links, r.val.Links...)
			for _, c := range r.val.Contents {
				contents = append(contents, sourced[fragment.Content]{r.id, c})
			}
		}
		mc, err := m.contents(fmt.Sprintf("%s response %d", where, s), contents)
		if err != nil {
			return nil, err
		}
		merged.Contents = mc
		out = append(out, merged)
	}
	return out, nil
}

func (m merger) contents(where string, in []sourced[fragment.Content]) ([]fragment.Content, error) {
	if len(in) == 0 {
		return nil, nil
	}
	var types []string
	byType := map[string][]sourced[fragment.Content]{}
	for _, c := range in {
		ct := c.val.ContentType
		if _, ok := byType[ct]; !ok {
			types = append(types, ct)
		}
		byType[ct] = append(byType[ct], c)
	}

	out := make([]fragment.Content, 0, len(types))
	for _, ct := range types {
		merged := fragment.Content{ContentType: ct}
		var (
			schemas []include.Include
			ids     []string
		)
		for _, c := range byType[ct] {
			merged.Examples = append(merged.Examples, c.val.Examples...)
			if c.val.Schema != nil {
				schemas = append(schemas, *c.val.Schema)
				ids = append(ids, c.id)
			}
		}
		if m.opts.examples == ExamplesFirstOnly && len(merged.Examples) > 1 {
			merged.Examples = merged.Examples[:1:1]
		}
		if len(schemas) > 0 {
			s, err := m.schema(schemas)
			if err != nil {
				return nil, fmt.Errorf("merge schemas for %s %s (fragments %s): %w",
					where, ct, strings.Join(ids, ", "), err)
			}
			merged.Schema = &s
		}
		out = append(out, merged)
	}
	return out, nil
}

func (m merger) schema(schemas []include.Include) (include.Include, error) {
	if m.sm == nil {
		return schemas[0], nil
	}
	return m.sm.MergeSchemas(schemas)
}

// longer returns b when it has strictly more characters than a.
func longer(a, b string) string {
	if utf8.RuneCountInString(b) > utf8.RuneCountInString(a) {
		return b
	}
	return a
}
