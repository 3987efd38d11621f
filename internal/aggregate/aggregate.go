// Package aggregate runs the whole build step: discover fragment files, copy
// captured bodies, parse, merge, assemble and write the documents.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/restdocs2openapi/internal/docerr"
	"github.com/mark3labs/restdocs2openapi/internal/document"
	"github.com/mark3labs/restdocs2openapi/internal/emitter/yamlemitter"
	"github.com/mark3labs/restdocs2openapi/internal/fragment"
	"github.com/mark3labs/restdocs2openapi/internal/include"
	"github.com/mark3labs/restdocs2openapi/internal/logging"
	"github.com/mark3labs/restdocs2openapi/internal/merge"
	"github.com/mark3labs/restdocs2openapi/internal/schema"
	"github.com/mark3labs/restdocs2openapi/internal/snippets"
	"github.com/mark3labs/restdocs2openapi/internal/validate"
	"github.com/spf13/afero"
)

// DocumentSuffix is the extension of every written document.
const DocumentSuffix = ".yaml"

// Defaults applied to unset options.
const (
	DefaultPrefix         = "api"
	DefaultOpenAPIVersion = "3.0.1"
	DefaultTitle          = "API documentation"
	DefaultVersion        = "0.1.0"
)

// Options configures one run.
type Options struct {
	SnippetsDir string // required
	OutDir      string // required
	// Prefix names the root document, e.g. "api" for api.yaml.
	Prefix   string
	Metadata document.Metadata
	Mode     include.Mode
	Examples merge.ExamplePolicy
	// IncludeRelativeToFragment resolves includes against each fragment's
	// directory instead of OutDir.
	IncludeRelativeToFragment bool
	// NoSchemaMerge keeps the first schema per content type instead of
	// composing them with allOf.
	NoSchemaMerge bool
	// GroupKey defaults to document.FirstPathSegment.
	GroupKey document.GroupKeyFunc
	// Validate loads the written root, with every include resolved, into
	// kin-openapi and libopenapi. Ignored on dry-run.
	Validate bool
	DryRun   bool
	Force    bool
	Logger   logging.Logger
}

// Result summarizes a run.
type Result struct {
	OutDir    string
	Root      string
	Fragments int
	Resources int
	Groups    int
	// Examples lists captured bodies copied (or, on dry-run, to be copied).
	Examples []string
	// Schemas lists composed schema files, written or planned.
	Schemas []string
	Planned  []yamlemitter.PlannedFile
	// Validation is set when Options.Validate passed.
	Validation *validate.Report
}

func (o *Options) validate() error {
	if strings.TrimSpace(o.SnippetsDir) == "" {
		return errors.New("aggregate: SnippetsDir is required")
	}
	if strings.TrimSpace(o.OutDir) == "" {
		return errors.New("aggregate: OutDir is required")
	}
	if strings.ContainsAny(o.Prefix, `/\`) {
		return fmt.Errorf("aggregate: prefix %q must be a file name", o.Prefix)
	}
	return nil
}

// Run executes the pipeline. It checks ctx between fragments and between
// written files; every other failure is returned as is, with the fragment
// or file that caused it.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Metadata.OpenAPIVersion == "" {
		opts.Metadata.OpenAPIVersion = DefaultOpenAPIVersion
	}
	if opts.Metadata.Info.Title == "" {
		opts.Metadata.Info.Title = DefaultTitle
	}
	if opts.Metadata.Info.Version == "" {
		opts.Metadata.Info.Version = DefaultVersion
	}
	var fsys afero.Fs = afero.NewOsFs()
	if opts.DryRun {
		// Copies land in memory; reads fall through to disk.
		fsys = afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(fsys), afero.NewMemMapFs())
	}
	log := logging.OrNop(opts.Logger).With("snippets", opts.SnippetsDir)
	res := &Result{OutDir: opts.OutDir}

	files, err := snippets.Discover(fsys, opts.SnippetsDir)
	if err != nil {
		return nil, err
	}
	log.Info("discovered fragments", "count", len(files))
	if len(files) == 0 {
		log.Warn("no fragment files found", "prefix", snippets.FragmentPrefix)
	}

	// Bodies are copied first so the schema merger and inline rendering find
	// them in OutDir.
	if err := fsys.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, &docerr.IOError{Op: "mkdir", Path: opts.OutDir, Cause: err}
	}
	copied, err := snippets.CopyExamples(fsys, opts.SnippetsDir, opts.OutDir)
	if err != nil {
		return nil, err
	}
	for _, c := range copied {
		log.Debug("copied example", "from", c.From, "to", c.To, "dry_run", opts.DryRun)
		res.Examples = append(res.Examples, c.To)
	}

	frags := make([]fragment.Fragment, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frag, err := fragment.ParseFile(f, fragment.ParseOptions{IncludeRelativeToFragment: opts.IncludeRelativeToFragment})
		if err != nil {
			return nil, fmt.Errorf("fragment %s: %w", f, err)
		}
		log.Debug("parsed fragment", "id", frag.ID, "path", frag.Path, "method", frag.Method.Verb)
		frags = append(frags, frag)
	}
	res.Fragments = len(frags)

	sm := schemaMerger(opts, fsys, log)
	resources, err := merge.MergeAll(frags, sm, merge.WithExamplePolicy(opts.Examples))
	if err != nil {
		return nil, err
	}
	if fm, ok := sm.(*schema.FileMerger); ok {
		res.Schemas = fm.Merged
	}
	res.Resources = len(resources)
	for _, r := range resources {
		log.Debug("merged resource", "path", r.Path, "methods", len(r.Methods))
	}

	doc := document.Assemble(resources, opts.GroupKey, opts.Metadata)
	res.Groups = len(doc.Groups)
	names := doc.FileNames(opts.Prefix, DocumentSuffix)
	fileName := func(key string) string { return names[key] }

	rootName := opts.Prefix + DocumentSuffix
	docs := []yamlemitter.Document{{RelPath: rootName, Tree: doc.RootTree(fileName)}}
	for _, g := range doc.Groups {
		docs = append(docs, yamlemitter.Document{RelPath: fileName(g.Key), Tree: g.Tree(), Part: true})
	}

	emitted, err := yamlemitter.Emit(ctx, docs, yamlemitter.Options{
		OutDir: opts.OutDir,
		Mode:   opts.Mode,
		Force:  opts.Force,
		DryRun: opts.DryRun,
		Logger: log,
	})
	if err != nil {
		return nil, err
	}
	res.Root = filepath.Join(opts.OutDir, rootName)
	res.Planned = emitted.Planned

	if opts.Validate && !opts.DryRun {
		data, err := yamlemitter.Inline(docs, rootName, opts.OutDir)
		if err != nil {
			return nil, err
		}
		rep, err := validate.Document(ctx, data, res.Root)
		if err != nil {
			return nil, err
		}
		log.Info("validated document", "paths", rep.Paths, "operations", rep.Operations)
		res.Validation = rep
	}
	log.Info("aggregated documentation",
		"fragments", res.Fragments, "resources", res.Resources, "groups", res.Groups,
		"mode", opts.Mode.String(), "dry_run", opts.DryRun)
	return res, nil
}

func schemaMerger(opts Options, fsys afero.Fs, log logging.Logger) merge.SchemaMerger {
	if opts.NoSchemaMerge {
		return schema.FirstMerger{}
	}
	return &schema.FileMerger{Dir: opts.OutDir, Fs: fsys, DryRun: opts.DryRun, Logger: log}
}
