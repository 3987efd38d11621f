package e2e

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	cli "github.com/mark3labs/restdocs2openapi/internal/cli"
	"github.com/pb33f/libopenapi"
)

// Two captured samples of the same operation plus an unrelated resource.
var snippetFiles = map[string]string{
	"cart-get/openapi-resource.yaml": `/carts/{id}:
  get:
    summary: get cart
    operationId: getCart
    parameters:
      - name: id
        in: path
        required: true
        schema:
          type: integer
        example: 1
    responses:
      200:
        description: the cart
        links:
          self:
            operationId: getCart
            parameters:
              id: $response.body#/id
        content:
          application/json:
            schema: !include 'cart-schema-response.json'
            example: !include 'cart-get-response.json'
`,
	"cart-get/cart-schema-response.json": `{"type":"object","properties":{"id":{"type":"integer"}}}`,
	"cart-get/cart-get-response.json":    `{"id": 1}`,
	"cart-get-with-items/openapi-resource.yaml": `/carts/{id}:
  get:
    summary: get cart with its items
    parameters:
      - name: id
        in: path
        required: true
        schema:
          type: integer
    responses:
      200:
        description: the cart
        content:
          application/json:
            schema: !include 'cart-items-schema-response.json'
            example: !include 'cart-get-with-items-response.json'
      404:
        description: unknown cart
`,
	"cart-get-with-items/cart-items-schema-response.json":   `{"type":"object","properties":{"items":{"type":"array","items":{"type":"string"}}}}`,
	"cart-get-with-items/cart-get-with-items-response.json": `{"id": 2, "items": ["apple"]}`,
	"products-list/openapi-resource.yaml": `/products:
  get:
    responses:
      200:
        description: products
`,
}

func writeSnippets(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "generated-snippets")
	for rel, body := range snippetFiles {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return dir
}

func runCLI(t *testing.T, args ...string) {
	t.Helper()
	root := cli.NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("cli execute %v: %v", args, err)
	}
}

func digestDir(t *testing.T, dir string) (files []string, sum string) {
	t.Helper()
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			return rerr
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	sort.Strings(files)
	h := sha256.New()
	for _, rel := range files {
		b, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		// hash path + contents
		_, _ = h.Write([]byte(rel))
		_, _ = h.Write(b)
	}
	return files, hex.EncodeToString(h.Sum(nil))
}

func TestE2E_Lazy_Deterministic(t *testing.T) {
	t.Parallel()
	snippets := writeSnippets(t)
	dir1 := t.TempDir()
	dir2 := t.TempDir()

	runCLI(t, "aggregate", "--snippets", snippets, "--out", dir1, "--title", "Shop")
	runCLI(t, "aggregate", "--snippets", snippets, "--out", dir2, "--title", "Shop")

	files1, sum1 := digestDir(t, dir1)
	files2, sum2 := digestDir(t, dir2)
	if !slicesEqual(files1, files2) || sum1 != sum2 {
		t.Fatalf("outputs differ between runs\nfiles1=%v\nfiles2=%v\nsum1=%s\nsum2=%s", files1, files2, sum1, sum2)
	}

	want := []string{
		"api.yaml",
		"cart-get-response.json",
		"cart-get-with-items-response.json",
		"cart-items-schema-merged-response.json",
		"cart-items-schema-response.json",
		"cart-schema-response.json",
		"carts.yaml",
		"products.yaml",
	}
	if !slicesEqual(files1, want) {
		t.Fatalf("unexpected files:\n got %v\nwant %v", files1, want)
	}

	// A second run over its own output regenerates in place.
	runCLI(t, "aggregate", "--snippets", snippets, "--out", dir1, "--title", "Shop")
	if _, again := digestDir(t, dir1); again != sum1 {
		t.Fatalf("regeneration changed output")
	}

	carts := readFile(t, filepath.Join(dir1, "carts.yaml"))
	for _, s := range []string{
		"summary: get cart with its items",
		"operationId: getCart",
		"schema: !include 'cart-items-schema-merged-response.json'",
		"value: !include 'cart-get-response.json'",
		"value: !include 'cart-get-with-items-response.json'",
		`"404":`,
	} {
		if !strings.Contains(carts, s) {
			t.Fatalf("carts.yaml missing %q:\n%s", s, carts)
		}
	}
}

func TestE2E_Inline_IsValidOpenAPI(t *testing.T) {
	t.Parallel()
	snippets := writeSnippets(t)
	out := t.TempDir()

	runCLI(t, "aggregate", "--snippets", snippets, "--out", out, "--inline",
		"--title", "Shop", "--api-version", "1.0.0", "--server-url", "https://shop.example.com")

	files, _ := digestDir(t, out)
	for _, f := range files {
		if strings.HasSuffix(f, ".yaml") && f != "api.yaml" {
			t.Fatalf("inline mode wrote a group document: %s", f)
		}
	}
	data := []byte(readFile(t, filepath.Join(out, "api.yaml")))

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("kin-openapi load: %v\n%s", err, data)
	}
	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("kin-openapi validate: %v\n%s", err, data)
	}
	if doc.Paths.Find("/carts/{id}") == nil || doc.Paths.Find("/products") == nil {
		t.Fatalf("missing paths in inline document:\n%s", data)
	}

	ldoc, err := libopenapi.NewDocument(data)
	if err != nil {
		t.Fatalf("libopenapi parse: %v", err)
	}
	model, errs := ldoc.BuildV3Model()
	if errs != nil {
		t.Fatalf("libopenapi build: %v", errs)
	}
	var paths []string
	for pair := model.Model.Paths.PathItems.First(); pair != nil; pair = pair.Next() {
		paths = append(paths, pair.Key())
		if pair.Key() == "/carts/{id}" && pair.Value().Get.Summary != "get cart with its items" {
			t.Fatalf("unexpected summary %q", pair.Value().Get.Summary)
		}
	}
	if !slicesEqual(paths, []string{"/carts/{id}", "/products"}) {
		t.Fatalf("unexpected path order: %v", paths)
	}
	if len(model.Model.Servers) != 1 || model.Model.Servers[0].URL != "https://shop.example.com" {
		t.Fatalf("unexpected servers: %+v", model.Model.Servers)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func slicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
