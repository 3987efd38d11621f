// Package document groups merged resources and lays them out as OpenAPI
// documents.
//
// Assembly is pure: it produces tree.Node values whose example and schema
// references are still include markers. Materializing them (lazy reference
// or inline content) is left to tree.Renderer.
package document

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mark3labs/restdocs2openapi/internal/merge"
)

// RootGroup is the key of the group holding "/".
const RootGroup = "root"

// GroupKeyFunc maps a resource path to the key of the group it belongs to.
type GroupKeyFunc func(path string) string

// FirstPathSegment returns the first non-empty path segment, or RootGroup
// when there is none.
func FirstPathSegment(p string) string {
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			return seg
		}
	}
	return RootGroup
}

// Metadata is the info and servers block of the root document. Unset fields
// are omitted from the output.
type Metadata struct {
	OpenAPIVersion string
	Info           openapi3.Info
	Servers        openapi3.Servers
}

// ResourceGroup is emitted as one document. All resources share Key.
type ResourceGroup struct {
	Key       string
	Resources []merge.Resource
}

// Document is the result of one aggregation.
type Document struct {
	Metadata Metadata
	Groups   []ResourceGroup
}

// Assemble groups resources by key. Groups are sorted by key, resources
// within a group by path length and then path, so the same input always
// yields the same layout. A nil key uses FirstPathSegment.
func Assemble(resources []merge.Resource, key GroupKeyFunc, md Metadata) Document {
	if key == nil {
		key = FirstPathSegment
	}
	byKey := map[string][]merge.Resource{}
	for _, r := range resources {
		k := key(r.Path)
		byKey[k] = append(byKey[k], r)
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := Document{Metadata: md, Groups: make([]ResourceGroup, 0, len(keys))}
	for _, k := range keys {
		rs := append([]merge.Resource(nil), byKey[k]...)
		sort.SliceStable(rs, func(i, j int) bool {
			if len(rs[i].Path) != len(rs[j].Path) {
				return len(rs[i].Path) < len(rs[j].Path)
			}
			return rs[i].Path < rs[j].Path
		})
		doc.Groups = append(doc.Groups, ResourceGroup{Key: k, Resources: rs})
	}
	return doc
}

// GroupFileName names the file of a group: braces are dropped and slashes
// become dashes. A name equal to prefix (the root document's name) gets a
// "-group" suffix so the two files never collide.
func GroupFileName(key, prefix, suffix string) string {
	name := strings.NewReplacer("{", "", "}", "", "/", "-").Replace(key)
	name = strings.Trim(name, "-")
	if name == "" {
		name = RootGroup
	}
	if name == prefix {
		name += "-group"
	}
	return name + suffix
}

// FileNames assigns every group a distinct file name. Names come from
// GroupFileName; when two keys map to the same name (for example "{id}" and
// "id"), the later key in group order gets a "-2", "-3", ... suffix.
func (d Document) FileNames(prefix, suffix string) map[string]string {
	names := make(map[string]string, len(d.Groups))
	taken := map[string]bool{prefix + suffix: true}
	for _, g := range d.Groups {
		name := GroupFileName(g.Key, prefix, suffix)
		if taken[name] {
			base := strings.TrimSuffix(name, suffix)
			for n := 2; ; n++ {
				name = fmt.Sprintf("%s-%d%s", base, n, suffix)
				if !taken[name] {
					break
				}
			}
		}
		taken[name] = true
		names[g.Key] = name
	}
	return names
}
