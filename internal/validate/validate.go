// Package validate checks an aggregated document with both OpenAPI
// toolchains the project depends on: kin-openapi validates the document and
// libopenapi builds its v3 model.
package validate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/pb33f/libopenapi"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes validation failures.
type ErrorCode string

const (
	ParseError      ErrorCode = "ParseError"
	VersionError    ErrorCode = "VersionError"
	ValidationError ErrorCode = "ValidationError"
	ModelError      ErrorCode = "ModelError"
)

// Error is a structured failure with an optional JSON Pointer into the
// document.
type Error struct {
	Code        ErrorCode
	Message     string
	Location    string // file the document was written to
	JSONPointer string // e.g. "#/paths/~1carts/get"
	Cause       error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Cause }

// Report summarizes a valid document.
type Report struct {
	OpenAPIVersion string
	Paths          int
	Operations     int
}

// Document validates data, a fully inlined OpenAPI 3 document. location is
// only used in errors.
func Document(ctx context.Context, data []byte, location string) (*Report, error) {
	version, err := detectVersion(data)
	if err != nil {
		return nil, &Error{Code: VersionError, Message: err.Error(), Location: location, Cause: err}
	}

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false
	loader.Context = ctx
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, mapError(err, location)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, mapError(err, location)
	}

	ldoc, err := libopenapi.NewDocument(data)
	if err != nil {
		return nil, &Error{Code: ModelError, Message: fmt.Sprintf("libopenapi: %v", err), Location: location, Cause: err}
	}
	if _, errs := ldoc.BuildV3Model(); len(errs) > 0 {
		err := errors.Join(errs...)
		return nil, &Error{Code: ModelError, Message: fmt.Sprintf("libopenapi: build v3 model: %v", err), Location: location, Cause: err}
	}

	rep := &Report{OpenAPIVersion: version, Paths: len(doc.Paths)}
	for _, item := range doc.Paths {
		rep.Operations += len(item.Operations())
	}
	return rep, nil
}

// detectVersion returns the openapi field when it names a 3.x version.
func detectVersion(data []byte) (string, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}
	v, _ := root["openapi"].(string)
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "3.") {
		return "", fmt.Errorf("document: missing or unsupported version %q (expected 'openapi: 3.x')", v)
	}
	return v, nil
}

func mapError(err error, location string) error {
	code := ValidationError
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "unmarshal") || strings.Contains(lower, "invalid character") {
		code = ParseError
	}
	return &Error{Code: code, Message: err.Error(), Location: location, JSONPointer: extractJSONPointer(err), Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	// First error of a MultiError is enough for a message.
	var me openapi3.MultiError
	if errors.As(err, &me) && len(me) > 0 {
		return extractJSONPointer(me[0])
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
		if se.SchemaField != "" {
			return se.SchemaField
		}
	}
	if m := jsonPtrRe.FindString(err.Error()); m != "" {
		return m
	}
	return ""
}
