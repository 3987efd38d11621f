package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/restdocs2openapi/internal/include"
	"github.com/mark3labs/restdocs2openapi/internal/logging"
	"github.com/mark3labs/restdocs2openapi/internal/merge"
)

// captureConfig swaps the runner for one that records the resolved config.
func captureConfig(t *testing.T) **AggregateConfig {
	t.Helper()
	var captured *AggregateConfig
	aggregateRunner = func(ctx context.Context, cfg *AggregateConfig) error {
		captured = cfg
		return nil
	}
	t.Cleanup(func() { aggregateRunner = runAggregate })
	return &captured
}

func TestAggregateConfigDefaults(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	captured := captureConfig(t)

	root.SetArgs([]string{"aggregate"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	cfg := *captured
	if cfg == nil {
		t.Fatalf("expected config to be captured")
	}
	if cfg.Snippets != filepath.Join("build", "generated-snippets") {
		t.Errorf("snippets default: got %q", cfg.Snippets)
	}
	if cfg.Out != filepath.Join("build", "openapi") {
		t.Errorf("out default: got %q", cfg.Out)
	}
	if cfg.Prefix != "api" || cfg.OpenAPIVersion != "3.0.1" || cfg.APIVersion != "0.1.0" {
		t.Errorf("metadata defaults: got %+v", cfg)
	}
	if cfg.Examples != "all" {
		t.Errorf("examples default: got %q", cfg.Examples)
	}
}

func TestAggregateConfigFromFlags(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	captured := captureConfig(t)

	root.SetArgs([]string{
		"--verbose",
		"aggregate",
		"--snippets", "snips",
		"--out", "./docs",
		"--prefix", "cart-api",
		"--title", "Cart API",
		"--api-version", "1.2.0",
		"--contact-email", "team@example.com",
		"--server-url", "https://api.example.com",
		"--server-description", "production",
		"--inline",
		"--examples", "FIRST",
		"--include-relative",
		"--no-schema-merge",
		"--dry-run",
		"--force",
	})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	cfg := *captured
	if cfg == nil {
		t.Fatalf("expected config to be captured")
	}
	if cfg.Snippets != "snips" || cfg.Out != "./docs" || cfg.Prefix != "cart-api" {
		t.Errorf("paths mismatch: %+v", cfg)
	}
	if cfg.Title != "Cart API" || cfg.APIVersion != "1.2.0" {
		t.Errorf("metadata mismatch: %+v", cfg)
	}
	if cfg.Examples != "first" {
		t.Errorf("examples not normalized: %q", cfg.Examples)
	}
	if !cfg.Inline || !cfg.IncludeRelative || !cfg.NoSchemaMerge || !cfg.DryRun || !cfg.Force || !cfg.Verbose {
		t.Errorf("bool flags not applied: %+v", cfg)
	}

	opts := cfg.Options(logging.Nop())
	if opts.Mode != include.ModeInline {
		t.Errorf("mode: got %v", opts.Mode)
	}
	if opts.Examples != merge.ExamplesFirstOnly {
		t.Errorf("example policy: got %v", opts.Examples)
	}
	if opts.Metadata.Info.Contact == nil || opts.Metadata.Info.Contact.Email != "team@example.com" {
		t.Errorf("contact: got %+v", opts.Metadata.Info.Contact)
	}
	if len(opts.Metadata.Servers) != 1 || opts.Metadata.Servers[0].Description != "production" {
		t.Errorf("servers: got %+v", opts.Metadata.Servers)
	}
	if !opts.IncludeRelativeToFragment || !opts.NoSchemaMerge {
		t.Errorf("pipeline switches: got %+v", opts)
	}
}

func TestAggregateConfigPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := strings.TrimSpace(`snippets: cfg-snippets
out: from-config
title: Config Title
api-version: "2.0.0"
contact_name: Config Team
examples: first
dryRun: true
force: false
verbose: true
`) + "\n"
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	captured := captureConfig(t)

	root.SetArgs([]string{
		"--config", configPath,
		"aggregate",
		"--snippets", "flag-snippets",
		"--examples", "all",
		"--dry-run=false",
		"--force",
	})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	cfg := *captured
	if cfg == nil {
		t.Fatalf("expected config to be captured")
	}
	if cfg.Snippets != "flag-snippets" {
		t.Errorf("snippets: want flag-snippets got %q", cfg.Snippets)
	}
	if cfg.Out != "from-config" {
		t.Errorf("out: want from-config got %q", cfg.Out)
	}
	if cfg.Title != "Config Title" || cfg.APIVersion != "2.0.0" || cfg.ContactName != "Config Team" {
		t.Errorf("metadata from config: %+v", cfg)
	}
	if cfg.Examples != "all" {
		t.Errorf("examples: want all got %q", cfg.Examples)
	}
	if cfg.DryRun {
		t.Errorf("expected dry-run false after flag override")
	}
	if !cfg.Force {
		t.Errorf("expected force true after flag override")
	}
	if !cfg.Verbose {
		t.Errorf("expected verbose true from config file")
	}
	if cfg.ConfigPath != configPath {
		t.Errorf("config path mismatch: got %q", cfg.ConfigPath)
	}
}

func TestAggregateConfigFromJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configPath, []byte(`{"out": "json-out", "inline": true}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	captured := captureConfig(t)

	root.SetArgs([]string{"--config", configPath, "aggregate"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if cfg := *captured; cfg == nil || cfg.Out != "json-out" || !cfg.Inline {
		t.Fatalf("json config not applied: %+v", cfg)
	}
}

func TestAggregateConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		return p
	}

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"unknown key", []string{"--config", write("unknown.yaml", "unknown: value\n"), "aggregate"}, "unknown field"},
		{"bad bool", []string{"--config", write("bool.yaml", "inline: maybe\n"), "aggregate"}, "invalid boolean"},
		{"unquoted version", []string{"--config", write("num.yaml", "apiVersion: 1.0\n"), "aggregate"}, "expected string"},
		{"missing config", []string{"--config", filepath.Join(tmpDir, "absent.yaml"), "aggregate"}, "read config file"},
		{"bad examples", []string{"aggregate", "--examples", "some"}, "--examples"},
		{"bad prefix", []string{"aggregate", "--prefix", "a/b"}, "--prefix"},
		{"bad openapi version", []string{"aggregate", "--openapi-version", "2.0"}, "--openapi-version"},
		{"bad email", []string{"aggregate", "--contact-email", "nope"}, "--contact-email"},
		{"orphan server description", []string{"aggregate", "--server-description", "prod"}, "--server-url"},
		{"empty out", []string{"aggregate", "--out", " "}, "--out is required"},
		{"positional arg", []string{"aggregate", "extra"}, "unknown command"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := NewRootCmd()
			root.SetOut(io.Discard)
			root.SetErr(io.Discard)
			captured := captureConfig(t)
			root.SetArgs(tc.args)

			err := root.Execute()
			if err == nil {
				t.Fatalf("expected an error")
			}
			if *captured != nil {
				t.Fatalf("runner should not be called")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
			if tc.name != "positional arg" && !errors.Is(err, ErrUsage) {
				t.Fatalf("expected usage error, got %v", err)
			}
		})
	}
}
