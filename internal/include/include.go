// Package include implements the "!include" reference: a tagged YAML scalar
// saying that a field's content lives in another file.
//
// Decoding never touches the file system. Encoding either keeps the
// reference (ModeLazy) or splices the loaded content in (ModeInline).
package include

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/mark3labs/restdocs2openapi/internal/docerr"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Tag marks a scalar as an Include.
const Tag = "!include"

// Include points at an external file. Location is kept exactly as written
// (or prefixed with the fragment directory when decoding with a base).
type Include struct {
	Location string
}

func (i Include) String() string { return Tag + " " + i.Location }

// Mode selects how includes are encoded in the output.
type Mode int

const (
	// ModeLazy keeps the reference as a tagged scalar.
	ModeLazy Mode = iota
	// ModeInline loads the referenced file and splices its content.
	ModeInline
)

func (m Mode) String() string {
	switch m {
	case ModeLazy:
		return "lazy"
	case ModeInline:
		return "inline"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// IsInclude reports whether n carries the include tag.
func IsInclude(n *yaml.Node) bool {
	return n != nil && n.Tag == Tag
}

// Decode turns a tagged scalar into an Include. When base is not empty the
// location is joined onto it, so the reference stays valid relative to the
// fragment's directory.
func Decode(n *yaml.Node, base string) (Include, error) {
	if n == nil {
		return Include{}, &docerr.StructureError{Message: "nil include node"}
	}
	if n.Kind != yaml.ScalarNode {
		return Include{}, &docerr.StructureError{Line: n.Line, Message: Tag + " must tag a scalar file location"}
	}
	loc := strings.TrimSpace(n.Value)
	if loc == "" {
		return Include{}, &docerr.StructureError{Line: n.Line, Message: Tag + " with empty location"}
	}
	if base != "" && !filepath.IsAbs(loc) {
		loc = path.Join(filepath.ToSlash(base), loc)
	}
	return Include{Location: loc}, nil
}

// Reference returns the lazy encoding of inc: a scalar tagged with Tag whose
// value is the literal location.
func Reference(inc Include) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: Tag, Value: inc.Location, Style: yaml.SingleQuotedStyle}
}

// LoadFunc produces the inlined content of an include.
type LoadFunc func(inc Include) (*yaml.Node, error)

// Encode renders inc according to mode. Inline mode delegates to load so the
// caller decides how nested includes are resolved.
func Encode(inc Include, mode Mode, load LoadFunc) (*yaml.Node, error) {
	switch mode {
	case ModeLazy:
		return Reference(inc), nil
	case ModeInline:
		if load == nil {
			return nil, fmt.Errorf("include: inline mode needs a loader")
		}
		return load(inc)
	default:
		return nil, fmt.Errorf("include: unknown mode %v", mode)
	}
}

// Resolve returns the file system path of inc relative to dir.
func Resolve(dir string, inc Include) string {
	loc := filepath.FromSlash(inc.Location)
	if filepath.IsAbs(loc) || dir == "" {
		return loc
	}
	return filepath.Join(dir, loc)
}

// Read loads the bytes an include points at. A missing file fails with a
// MissingIncludeTargetError rather than producing empty content.
func Read(dir string, inc Include) ([]byte, error) {
	return ReadFs(afero.NewOsFs(), dir, inc)
}

// ReadFs is Read over fsys.
func ReadFs(fsys afero.Fs, dir string, inc Include) ([]byte, error) {
	p := Resolve(dir, inc)
	data, err := afero.ReadFile(fsys, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &docerr.MissingIncludeTargetError{Location: inc.Location, Path: p, Cause: err}
		}
		return nil, &docerr.IOError{Op: "read", Path: p, Cause: err}
	}
	return data, nil
}
