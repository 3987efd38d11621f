package tree

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/restdocs2openapi/internal/docerr"
	"github.com/mark3labs/restdocs2openapi/internal/include"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cartFragment = `/carts/{id}:
  get:
    summary: get cart
    responses:
      200:
        description: ok
        content:
          application/json:
            schema: !include 'cart-schema.json'
            example: !include 'cart.json'
`

func TestDecode_Fragment(t *testing.T) {
	t.Parallel()

	root, err := Decode([]byte(cartFragment), "")
	require.NoError(t, err)
	require.Equal(t, MappingKind, root.Kind)
	assert.Equal(t, []string{"/carts/{id}"}, root.Keys())

	item, _ := root.Get("/carts/{id}")
	get, ok := item.Get("get")
	require.True(t, ok)
	summary, _ := get.Get("summary")
	assert.Equal(t, "get cart", summary.Value)
	assert.Equal(t, StrTag, summary.Tag)

	responses, _ := get.Get("responses")
	assert.Equal(t, []string{"200"}, responses.Keys())
	ok200, _ := responses.Get("200")
	content, _ := ok200.Get("content")
	media, _ := content.Get("application/json")
	schema, _ := media.Get("schema")
	assert.Equal(t, IncludeKind, schema.Kind)
	assert.Equal(t, include.Include{Location: "cart-schema.json"}, schema.Include)
	assert.Equal(t, 9, schema.Line)
}

func TestDecode_IncludeBase(t *testing.T) {
	t.Parallel()

	root, err := Decode([]byte("example: !include cart.json\n"), "snippets/cart-get")
	require.NoError(t, err)
	ex, _ := root.Get("example")
	assert.Equal(t, "snippets/cart-get/cart.json", ex.Include.Location)
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte("a: [b"), "")
	assert.True(t, errors.Is(err, docerr.ErrStructure))

	_, err = Decode([]byte("? [a]\n: b\n"), "")
	assert.True(t, errors.Is(err, docerr.ErrStructure))

	_, err = Decode([]byte("a: !include {x: y}\n"), "")
	assert.True(t, errors.Is(err, docerr.ErrStructure))
}

func TestDecode_Empty(t *testing.T) {
	t.Parallel()

	n, err := Decode(nil, "")
	require.NoError(t, err)
	assert.True(t, n.IsNull())
}

func TestSetKeepsOrderAndReplaces(t *testing.T) {
	t.Parallel()

	m := Map().Set("b", Str("1")).Set("a", Str("2")).Set("b", Str("3"))
	assert.Equal(t, []string{"b", "a"}, m.Keys())
	v, _ := m.Get("b")
	assert.Equal(t, "3", v.Value)

	m.SetIf("skip", nil)
	assert.Equal(t, 2, m.Len())
}

func TestMarshal_Lazy(t *testing.T) {
	t.Parallel()

	doc := Map().
		Set("openapi", Str("3.0.1")).
		Set("responses", Map().Set("200", Map().
			Set("description", Str("")).
			Set("content", Map().Set("application/json", Map().
				Set("example", Ref(include.Include{Location: "cart.json"}))))))

	out, err := Renderer{Mode: include.ModeLazy}.Marshal(doc)
	require.NoError(t, err)
	want := `openapi: 3.0.1
responses:
  "200":
    description: ""
    content:
      application/json:
        example: !include 'cart.json'
`
	assert.Equal(t, want, string(out))
}

func TestMarshal_LazyRoundTrip(t *testing.T) {
	t.Parallel()

	root, err := Decode([]byte(cartFragment), "")
	require.NoError(t, err)
	out, err := Renderer{Mode: include.ModeLazy}.Marshal(root)
	require.NoError(t, err)
	assert.Contains(t, string(out), "schema: !include 'cart-schema.json'")
	assert.Contains(t, string(out), "example: !include 'cart.json'")

	again, err := Decode(out, "")
	require.NoError(t, err)
	item, _ := again.Get("/carts/{id}")
	get, _ := item.Get("get")
	responses, _ := get.Get("responses")
	assert.Equal(t, []string{"200"}, responses.Keys())
}

func TestMarshal_InlineFromDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cart.json"), []byte(`{"id": 1, "items": ["a"]}`), 0o600))

	doc := Map().Set("example", Ref(include.Include{Location: "cart.json"}))
	out, err := Renderer{Mode: include.ModeInline, Dir: dir}.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, "example:\n  id: 1\n  items:\n    - a\n", string(out))
}

func TestMarshal_InlineMissingFails(t *testing.T) {
	t.Parallel()

	doc := Map().Set("example", Ref(include.Include{Location: "nope.json"}))
	_, err := Renderer{Mode: include.ModeInline, Dir: t.TempDir()}.Marshal(doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, docerr.ErrMissingIncludeTarget))
}

func TestMarshal_SpliceLocal(t *testing.T) {
	t.Parallel()

	group := Map().Set("/carts", Map().Set("get", Map().Set("summary", Str("list"))))
	root := Map().Set("paths", Map().Splice("carts", Ref(include.Include{Location: "carts.yaml"})))

	lazy, err := Renderer{Mode: include.ModeLazy}.Marshal(root)
	require.NoError(t, err)
	assert.Equal(t, "paths:\n  carts: !include 'carts.yaml'\n", string(lazy))

	r := Renderer{Mode: include.ModeInline, Local: map[string]*Node{"carts.yaml": group}}
	inline, err := r.Marshal(root)
	require.NoError(t, err)
	assert.Equal(t, "paths:\n  /carts:\n    get:\n      summary: list\n", string(inline))
}

func TestMarshal_IncludeCycle(t *testing.T) {
	t.Parallel()

	a := Map().Set("next", Ref(include.Include{Location: "b.yaml"}))
	b := Map().Set("next", Ref(include.Include{Location: "a.yaml"}))
	r := Renderer{Mode: include.ModeInline, Local: map[string]*Node{"a.yaml": a, "b.yaml": b}}
	_, err := r.Marshal(Ref(include.Include{Location: "a.yaml"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, docerr.ErrStructure))
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

func TestMarshal_InlineNestedRelativeToIncludingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"sub/outer.yaml": "inner: !include 'inner.yaml'\n",
		"sub/inner.yaml": "value: 1\n",
	})

	doc := Map().Set("a", Ref(include.Include{Location: "sub/outer.yaml"}))
	out, err := Renderer{Mode: include.ModeInline, Dir: dir}.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, "a:\n  inner:\n    value: 1\n", string(out))
}

func TestMarshal_InlineSameNameInOtherDirIsNotACycle(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"node.yaml":     "child: !include 'sub/mid.yaml'\n",
		"sub/mid.yaml":  "child: !include 'node.yaml'\n",
		"sub/node.yaml": "leaf: true\n",
	})

	out, err := Renderer{Mode: include.ModeInline, Dir: dir}.Marshal(Ref(include.Include{Location: "node.yaml"}))
	require.NoError(t, err)
	assert.Equal(t, "child:\n  child:\n    leaf: true\n", string(out))
}

func TestMarshal_InlineCycleThroughOtherSpelling(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.yaml": "next: !include './a.yaml'\n",
	})

	_, err := Renderer{Mode: include.ModeInline, Dir: dir}.Marshal(Ref(include.Include{Location: "a.yaml"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, docerr.ErrStructure))
}
