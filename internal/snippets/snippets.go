// Package snippets finds fragment files in a snippets directory and copies
// the captured request and response bodies next to the generated documents.
package snippets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mark3labs/restdocs2openapi/internal/docerr"
	"github.com/spf13/afero"
)

// FragmentPrefix starts the file name of every fragment.
const FragmentPrefix = "openapi-resource"

// ExampleSuffixes end the names of files copied by CopyExamples.
var ExampleSuffixes = []string{"-request.json", "-response.json"}

// IsFragment reports whether name (a base name) is a fragment file.
func IsFragment(name string) bool {
	if !strings.HasPrefix(name, FragmentPrefix) {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// IsExample reports whether name (a base name) is a captured body.
func IsExample(name string) bool {
	for _, s := range ExampleSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// Discover returns every fragment file below root, sorted by path.
func Discover(fsys afero.Fs, root string) ([]string, error) {
	info, err := fsys.Stat(root)
	if err != nil {
		return nil, &docerr.IOError{Op: "stat", Path: root, Cause: err}
	}
	if !info.IsDir() {
		return nil, &docerr.IOError{Op: "walk", Path: root, Cause: fmt.Errorf("not a directory")}
	}
	var out []string
	err = afero.Walk(fsys, root, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() && IsFragment(fi.Name()) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, &docerr.IOError{Op: "walk", Path: root, Cause: err}
	}
	sort.Strings(out)
	return out, nil
}

// Copied records one file copied by CopyExamples.
type Copied struct {
	From string
	To   string
}

// FindExamples returns every captured body below snippetsDir, sorted by path.
func FindExamples(fsys afero.Fs, snippetsDir string) ([]string, error) {
	var files []string
	err := afero.Walk(fsys, snippetsDir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() && IsExample(fi.Name()) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, &docerr.IOError{Op: "walk", Path: snippetsDir, Cause: err}
	}
	sort.Strings(files)
	return files, nil
}

// CopyExamples copies every captured body below snippetsDir into outDir,
// flattened by base name and overwriting existing files. Files are visited
// in path order, so when two directories hold the same name the last one
// wins deterministically.
func CopyExamples(fsys afero.Fs, snippetsDir, outDir string) ([]Copied, error) {
	files, err := FindExamples(fsys, snippetsDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	if err := fsys.MkdirAll(outDir, 0o755); err != nil {
		return nil, &docerr.IOError{Op: "mkdir", Path: outDir, Cause: err}
	}

	out := make([]Copied, 0, len(files))
	for _, src := range files {
		dst := filepath.Join(outDir, filepath.Base(src))
		if err := copyFile(fsys, src, dst); err != nil {
			return nil, err
		}
		out = append(out, Copied{From: src, To: dst})
	}
	return out, nil
}

func copyFile(fsys afero.Fs, src, dst string) error {
	in, err := fsys.Open(src)
	if err != nil {
		return &docerr.IOError{Op: "open", Path: src, Cause: err}
	}
	defer in.Close()

	outF, err := fsys.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return &docerr.IOError{Op: "create", Path: dst, Cause: err}
	}
	if _, err := io.Copy(outF, in); err != nil {
		_ = outF.Close()
		return &docerr.IOError{Op: "copy", Path: dst, Cause: err}
	}
	if err := outF.Close(); err != nil {
		return &docerr.IOError{Op: "close", Path: dst, Cause: err}
	}
	return nil
}
