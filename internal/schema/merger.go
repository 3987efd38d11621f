// Package schema provides merge.SchemaMerger implementations.
//
// FileMerger loads every referenced JSON schema, drops exact duplicates and
// composes the rest into one schema with allOf. The composed schema is
// written next to the inputs and referenced by the returned include.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mark3labs/restdocs2openapi/internal/docerr"
	"github.com/mark3labs/restdocs2openapi/internal/include"
	"github.com/mark3labs/restdocs2openapi/internal/logging"
	"github.com/spf13/afero"
)

// ErrNoSchemas is returned when a merger is called with an empty list.
var ErrNoSchemas = errors.New("schema: nothing to merge")

// FirstMerger keeps the first schema and ignores the rest.
type FirstMerger struct{}

func (FirstMerger) MergeSchemas(schemas []include.Include) (include.Include, error) {
	if len(schemas) == 0 {
		return include.Include{}, ErrNoSchemas
	}
	return schemas[0], nil
}

// FileMerger reads schema files relative to Dir.
type FileMerger struct {
	Dir string
	// Fs defaults to the OS file system.
	Fs afero.Fs
	// DryRun computes the merged location without writing it.
	DryRun bool
	Logger logging.Logger

	// Merged lists the files written (or, in a dry run, planned) so far.
	Merged []string
}

func (m *FileMerger) fs() afero.Fs {
	if m.Fs == nil {
		return afero.NewOsFs()
	}
	return m.Fs
}

// Draft identifiers dropped before parsing; they name the source document,
// not the shape.
var dropKeys = []string{"$schema", "$id", "id"}

func (m *FileMerger) MergeSchemas(schemas []include.Include) (include.Include, error) {
	if len(schemas) == 0 {
		return include.Include{}, ErrNoSchemas
	}
	if len(schemas) == 1 {
		return schemas[0], nil
	}
	log := logging.OrNop(m.Logger)

	var (
		unique []*openapi3.Schema
		seen   = map[string]bool{}
	)
	for _, s := range schemas {
		parsed, canon, err := m.load(s)
		if err != nil {
			return include.Include{}, err
		}
		if seen[canon] {
			continue
		}
		seen[canon] = true
		unique = append(unique, parsed)
	}
	if len(unique) == 1 {
		log.Debug("schemas identical, keeping first", "schema", schemas[0].Location, "count", len(schemas))
		return schemas[0], nil
	}

	composed := openapi3.NewAllOfSchema(unique...)
	data, err := json.MarshalIndent(composed, "", "  ")
	if err != nil {
		return include.Include{}, fmt.Errorf("encode merged schema: %w", err)
	}
	first := schemas[0].Location
	if filepath.IsAbs(filepath.FromSlash(first)) {
		// Inputs outside Dir; the merged file still belongs next to the output.
		first = path.Base(first)
	}
	out := include.Include{Location: MergedName(first)}
	target := include.Resolve(m.Dir, out)
	if m.DryRun {
		m.Merged = append(m.Merged, target)
		return out, nil
	}
	if err := afero.WriteFile(m.fs(), target, append(data, '\n'), 0o644); err != nil {
		return include.Include{}, &docerr.IOError{Op: "write", Path: target, Cause: err}
	}
	m.Merged = append(m.Merged, target)
	log.Info("merged schemas", "out", out.Location, "inputs", len(schemas), "distinct", len(unique))
	return out, nil
}

// load returns the parsed schema and a canonical encoding used to detect
// duplicates. Object keys are sorted by encoding/json, so formatting and key
// order do not matter.
func (m *FileMerger) load(inc include.Include) (*openapi3.Schema, string, error) {
	raw, err := include.ReadFs(m.fs(), m.Dir, inc)
	if err != nil {
		return nil, "", err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, "", fmt.Errorf("schema %s: %w", inc.Location, err)
	}
	for _, k := range dropKeys {
		delete(doc, k)
	}
	canon, err := json.Marshal(doc)
	if err != nil {
		return nil, "", fmt.Errorf("schema %s: %w", inc.Location, err)
	}
	s := openapi3.NewSchema()
	if err := s.UnmarshalJSON(canon); err != nil {
		return nil, "", fmt.Errorf("schema %s: %w", inc.Location, err)
	}
	return s, string(bytes.TrimSpace(canon)), nil
}

// MergedName derives the merged schema file name from the first input:
// "cart-schema-response.json" becomes "cart-schema-merged-response.json" and
// "cart-schema.json" becomes "cart-schema-merged.json".
func MergedName(loc string) string {
	dir, file := path.Split(loc)
	base := strings.TrimSuffix(file, ".json")
	suffix := ".json"
	for _, role := range []string{"-request", "-response"} {
		if strings.HasSuffix(base, role) {
			base = strings.TrimSuffix(base, role)
			suffix = role + suffix
			break
		}
	}
	return dir + base + "-merged" + suffix
}
