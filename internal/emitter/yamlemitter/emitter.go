// Package yamlemitter materializes assembled document trees as YAML files.
package yamlemitter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/restdocs2openapi/internal/docerr"
	"github.com/mark3labs/restdocs2openapi/internal/include"
	"github.com/mark3labs/restdocs2openapi/internal/logging"
	"github.com/mark3labs/restdocs2openapi/internal/tree"
)

// Marker is the first line of every written document. Files starting with
// it are overwritten freely; any other existing file needs Force.
const Marker = "# Code generated by restdocs2openapi. DO NOT EDIT."

// Document is one output file.
type Document struct {
	RelPath string
	Tree    *tree.Node
	// Part marks a group document. In inline mode parts are spliced into
	// the root document and not written on their own.
	Part bool
}

// Options controls how documents are written.
type Options struct {
	OutDir string // required; includes are resolved against it in inline mode
	Mode   include.Mode
	Force  bool // overwrite files not written by this tool
	DryRun bool // don't write, only plan; rendering falls back to lazy mode
	Logger logging.Logger
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result returns the planned files in write order.
type Result struct {
	Planned []PlannedFile
}

// Emit renders docs and writes them below opts.OutDir.
func Emit(ctx context.Context, docs []Document, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("yamlemitter: OutDir is required")
	}
	log := logging.OrNop(opts.Logger)

	mode := opts.Mode
	if opts.DryRun {
		mode = include.ModeLazy
	}
	r := renderer(docs, mode, opts.OutDir)

	files := map[string][]byte{}
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d.Part && mode == include.ModeInline {
			continue
		}
		body, err := r.Marshal(d.Tree)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", d.RelPath, err)
		}
		files[filepath.ToSlash(d.RelPath)] = append([]byte(Marker+"\n"), body...)
	}

	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, p)
	}
	sort.Strings(rels)

	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		planned = append(planned, PlannedFile{RelPath: rel, Size: len(files[rel]), Mode: 0o644})
	}

	if !opts.DryRun {
		if err := writeFiles(ctx, opts.OutDir, rels, files, opts.Force, log); err != nil {
			return nil, err
		}
	}
	return &Result{Planned: planned}, nil
}

func renderer(docs []Document, mode include.Mode, dir string) tree.Renderer {
	local := make(map[string]*tree.Node, len(docs))
	for _, d := range docs {
		local[filepath.ToSlash(d.RelPath)] = d.Tree
	}
	return tree.Renderer{Mode: mode, Dir: dir, Local: local}
}

// Inline renders the document at rel with every include resolved, without
// the Marker line. Includes that are not among docs are read from dir.
func Inline(docs []Document, rel, dir string) ([]byte, error) {
	r := renderer(docs, include.ModeInline, dir)
	for _, d := range docs {
		if filepath.ToSlash(d.RelPath) == filepath.ToSlash(rel) {
			return r.Marshal(d.Tree)
		}
	}
	return nil, fmt.Errorf("yamlemitter: no document %s", rel)
}

func writeFiles(ctx context.Context, outDir string, rels []string, files map[string][]byte, force bool, log logging.Logger) error {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve out dir: %w", err)
	}
	// Pre-flight so nothing is written when one target is foreign.
	if !force {
		for _, rel := range rels {
			p := filepath.Join(abs, filepath.FromSlash(rel))
			ours, err := generated(p)
			if err != nil {
				return &docerr.IOError{Op: "read", Path: p, Cause: err}
			}
			if !ours {
				return fmt.Errorf("yamlemitter: %s exists and was not generated by this tool (use --force to overwrite)", p)
			}
		}
	}
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := filepath.Join(abs, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return &docerr.IOError{Op: "mkdir", Path: filepath.Dir(p), Cause: err}
		}
		// atomic write via temp file + rename
		tmp := p + ".tmp-" + time.Now().Format("20060102150405")
		if err := os.WriteFile(tmp, files[rel], 0o644); err != nil {
			return &docerr.IOError{Op: "write", Path: tmp, Cause: err}
		}
		if err := os.Rename(tmp, p); err != nil {
			_ = os.Remove(tmp)
			return &docerr.IOError{Op: "rename", Path: p, Cause: err}
		}
		log.Debug("wrote document", "path", p, "bytes", len(files[rel]))
	}
	return nil
}

// generated reports whether p is absent or starts with Marker.
func generated(p string) (bool, error) {
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	defer f.Close()
	line, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		// empty file
		return false, nil
	}
	return bytes.Equal(bytes.TrimRight(line, "\r\n"), []byte(Marker)), nil
}
