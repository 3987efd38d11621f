package fragment

import (
	"github.com/mark3labs/restdocs2openapi/internal/include"
	"github.com/mark3labs/restdocs2openapi/internal/tree"
)

// Fragment is one test-observed sample of one operation.
type Fragment struct {
	// ID names the fragment, usually the directory the fragment file sits in.
	ID     string
	Path   string
	Method Method
}

// Method is a single verb on a path. Empty strings mean the value is absent.
type Method struct {
	Verb           string
	Summary        string
	OperationID    string
	Parameters     []Parameter
	RequestContent *RequestContent
	Responses      []Response
}

// Parameter is keyed by (Name, In).
type Parameter struct {
	Name        string
	In          string // path|query|header|cookie
	Description string
	// Required is nil when the fragment does not say.
	Required *bool
	// Type is schema.type.
	Type string
	// Example keeps the scalar as written so numbers stay numbers.
	Example *tree.Node
}

type RequestContent struct {
	Required bool
	Contents []Content
}

// Content is one media type entry, keyed by ContentType.
type Content struct {
	ContentType string
	Schema      *include.Include
	Examples    []include.Include
}

// Response is keyed by Status.
type Response struct {
	Status      int
	Description string
	Contents    []Content
	Headers     []ResponseHeader
	Links       []Link
}

type ResponseHeader struct {
	Name        string
	Description string
	Example     *tree.Node
}

type Link struct {
	Rel         string
	OperationID string
	Description string
	Parameters  []LinkParameter
}

// LinkParameter maps a parameter of the linked operation to a runtime
// expression such as "$response.body#/id".
type LinkParameter struct {
	Name     string
	Location string
}

// Verbs lists the HTTP methods a fragment may document, in the order used
// when rendering.
var Verbs = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// IsVerb reports whether s is one of Verbs.
func IsVerb(s string) bool {
	for _, v := range Verbs {
		if v == s {
			return true
		}
	}
	return false
}
