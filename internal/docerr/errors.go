// Package docerr provides the error types raised while aggregating fragments.
//
// Every error is fatal to the build step. The types carry enough context
// (fragment id, file path, include location) for the CLI to point at the
// offending input, and they match their sentinel with errors.Is:
//
//	if errors.Is(err, docerr.ErrPathMismatch) {
//	    // fragments were grouped incorrectly upstream
//	}
package docerr

import (
	"errors"
	"fmt"
)

var (
	// ErrStructure indicates a fragment does not have the expected shape.
	ErrStructure = errors.New("structure error")

	// ErrPathMismatch indicates fragments passed to one merge disagree on path.
	ErrPathMismatch = errors.New("path mismatch")

	// ErrMissingIncludeTarget indicates an included file does not exist.
	ErrMissingIncludeTarget = errors.New("missing include target")

	// ErrIO indicates a read or write failure.
	ErrIO = errors.New("i/o error")
)

// StructureError reports fragment content that does not match the expected
// shape: a missing required key, a wrong node kind or wrong arity.
type StructureError struct {
	// FragmentID identifies the fragment (empty when not known yet).
	FragmentID string
	// Field is a dotted path to the offending node, e.g. "/carts.get.responses".
	Field string
	// Line is the 1-based source line, 0 if unknown.
	Line    int
	Message string
	Cause   error
}

func (e *StructureError) Error() string {
	msg := "structure error"
	if e.FragmentID != "" {
		msg += " in fragment " + e.FragmentID
	}
	if e.Field != "" {
		msg += " at " + e.Field
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StructureError) Unwrap() error { return e.Cause }

func (e *StructureError) Is(target error) bool { return target == ErrStructure }

// PathMismatchError reports a fragment whose path differs from the path of
// the resource being merged.
type PathMismatchError struct {
	Expected   string
	Got        string
	FragmentID string
}

func (e *PathMismatchError) Error() string {
	return fmt.Sprintf("path mismatch: fragment %s has path %q, expected %q (fragments for a resource must share a path)",
		e.FragmentID, e.Got, e.Expected)
}

func (e *PathMismatchError) Is(target error) bool { return target == ErrPathMismatch }

// MissingIncludeTargetError reports an include whose file could not be found
// while inlining it.
type MissingIncludeTargetError struct {
	// Location is the include location as written in the document.
	Location string
	// Path is the resolved file system path that was tried.
	Path  string
	Cause error
}

func (e *MissingIncludeTargetError) Error() string {
	msg := fmt.Sprintf("missing include target %q", e.Location)
	if e.Path != "" && e.Path != e.Location {
		msg += " (resolved to " + e.Path + ")"
	}
	return msg
}

func (e *MissingIncludeTargetError) Unwrap() error { return e.Cause }

func (e *MissingIncludeTargetError) Is(target error) bool { return target == ErrMissingIncludeTarget }

// IOError wraps a generic read or write failure.
type IOError struct {
	// Op is the operation that failed: "read", "write", "walk", "copy", "mkdir".
	Op    string
	Path  string
	Cause error
}

func (e *IOError) Error() string {
	msg := e.Op
	if msg == "" {
		msg = "io"
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *IOError) Unwrap() error { return e.Cause }

func (e *IOError) Is(target error) bool { return target == ErrIO }
