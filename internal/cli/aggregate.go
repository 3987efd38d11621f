package cli

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mark3labs/restdocs2openapi/internal/aggregate"
	"github.com/mark3labs/restdocs2openapi/internal/docerr"
	"github.com/mark3labs/restdocs2openapi/internal/document"
	"github.com/mark3labs/restdocs2openapi/internal/include"
	"github.com/mark3labs/restdocs2openapi/internal/logging"
	"github.com/mark3labs/restdocs2openapi/internal/merge"
	"github.com/mark3labs/restdocs2openapi/internal/validate"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AggregateConfig captures all inputs that influence the aggregate command
// after merging defaults, config file values, and CLI overrides.
type AggregateConfig struct {
	Snippets          string
	Out               string
	Prefix            string
	OpenAPIVersion    string
	Title             string
	Description       string
	APIVersion        string
	ContactName       string
	ContactEmail      string
	ContactURL        string
	ServerURL         string
	ServerDescription string
	Inline            bool
	Examples          string
	IncludeRelative   bool
	NoSchemaMerge     bool
	Validate          bool
	ConfigPath        string
	DryRun            bool
	Force             bool
	Verbose           bool
}

func defaultAggregateConfig() AggregateConfig {
	return AggregateConfig{
		Snippets:       filepath.Join("build", "generated-snippets"),
		Out:            filepath.Join("build", "openapi"),
		Prefix:         aggregate.DefaultPrefix,
		OpenAPIVersion: aggregate.DefaultOpenAPIVersion,
		Title:          aggregate.DefaultTitle,
		APIVersion:     aggregate.DefaultVersion,
		Examples:       merge.ExamplesCollectAll.String(),
	}
}

var aggregateRunner = runAggregate

func newAggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Merge OpenAPI fragments into a root document and per-group documents",
		Long: "Merge the openapi-resource fragments found below the snippets directory into " +
			"OpenAPI documents. Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  restdocs2openapi aggregate --snippets build/generated-snippets --out build/openapi
  restdocs2openapi aggregate --inline --title "Cart API" --api-version 1.2.0
  restdocs2openapi --config restdocs2openapi.yaml aggregate --dry-run`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveAggregateConfig(cmd)
			if err != nil {
				return err
			}
			return aggregateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("snippets", "", "Directory holding openapi-resource fragments (default build/generated-snippets)")
	flags.String("out", "", "Output directory (default build/openapi)")
	flags.String("prefix", "", "Root document name without extension (default api)")
	flags.String("openapi-version", "", "OpenAPI version written to the root document (default 3.0.1)")
	flags.String("title", "", "API title")
	flags.String("description", "", "API description")
	flags.String("api-version", "", "API version (default 0.1.0)")
	flags.String("contact-name", "", "Contact name")
	flags.String("contact-email", "", "Contact email")
	flags.String("contact-url", "", "Contact URL")
	flags.String("server-url", "", "Server URL")
	flags.String("server-description", "", "Server description")
	flags.Bool("inline", false, "Write one self-contained document with every include resolved")
	flags.String("examples", "", "Examples kept per content type (all|first); defaults to all")
	flags.Bool("include-relative", false, "Resolve includes against each fragment's directory")
	flags.Bool("no-schema-merge", false, "Keep the first schema per content type instead of merging")
	flags.Bool("validate", false, "Validate the written root document as OpenAPI 3")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite files not written by restdocs2openapi")

	return cmd
}

func resolveAggregateConfig(cmd *cobra.Command) (*AggregateConfig, error) {
	cfg := defaultAggregateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyAggregateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyAggregateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var stringFlags = map[string]func(*AggregateConfig) *string{
	"snippets":           func(c *AggregateConfig) *string { return &c.Snippets },
	"out":                func(c *AggregateConfig) *string { return &c.Out },
	"prefix":             func(c *AggregateConfig) *string { return &c.Prefix },
	"openapi-version":    func(c *AggregateConfig) *string { return &c.OpenAPIVersion },
	"title":              func(c *AggregateConfig) *string { return &c.Title },
	"description":        func(c *AggregateConfig) *string { return &c.Description },
	"api-version":        func(c *AggregateConfig) *string { return &c.APIVersion },
	"contact-name":       func(c *AggregateConfig) *string { return &c.ContactName },
	"contact-email":      func(c *AggregateConfig) *string { return &c.ContactEmail },
	"contact-url":        func(c *AggregateConfig) *string { return &c.ContactURL },
	"server-url":         func(c *AggregateConfig) *string { return &c.ServerURL },
	"server-description": func(c *AggregateConfig) *string { return &c.ServerDescription },
	"examples":           func(c *AggregateConfig) *string { return &c.Examples },
}

var boolFlags = map[string]func(*AggregateConfig) *bool{
	"inline":           func(c *AggregateConfig) *bool { return &c.Inline },
	"include-relative": func(c *AggregateConfig) *bool { return &c.IncludeRelative },
	"no-schema-merge":  func(c *AggregateConfig) *bool { return &c.NoSchemaMerge },
	"validate":         func(c *AggregateConfig) *bool { return &c.Validate },
	"dry-run":          func(c *AggregateConfig) *bool { return &c.DryRun },
	"force":            func(c *AggregateConfig) *bool { return &c.Force },
	"verbose":          func(c *AggregateConfig) *bool { return &c.Verbose },
}

func applyAggregateFlagOverrides(flags *pflag.FlagSet, cfg *AggregateConfig) error {
	for name, field := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*field(cfg) = strings.TrimSpace(value)
	}
	for name, field := range boolFlags {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*field(cfg) = value
	}
	return nil
}

func (c *AggregateConfig) normalize() {
	for _, field := range stringFlags {
		p := field(c)
		*p = strings.TrimSpace(*p)
	}
	c.Examples = strings.ToLower(c.Examples)
}

func (c *AggregateConfig) validate() error {
	if c.Snippets == "" {
		return newUsageError("aggregate: --snippets is required (set via flag or config file)")
	}
	if c.Out == "" {
		return newUsageError("aggregate: --out is required (set via flag or config file)")
	}
	if c.Prefix == "" || strings.ContainsAny(c.Prefix, `/\`) {
		return newUsageError(fmt.Sprintf("aggregate: --prefix %q must be a plain file name", c.Prefix))
	}
	if !strings.HasPrefix(c.OpenAPIVersion, "3.") {
		return newUsageError(fmt.Sprintf("aggregate: unsupported --openapi-version %q (want 3.x)", c.OpenAPIVersion))
	}
	if _, err := merge.ParseExamplePolicy(c.Examples); err != nil {
		return newUsageError(fmt.Sprintf("aggregate: unsupported --examples %q (allowed: all, first)", c.Examples))
	}
	if c.ContactEmail != "" {
		if _, err := mail.ParseAddress(c.ContactEmail); err != nil {
			return newUsageError(fmt.Sprintf("aggregate: invalid --contact-email %q: %v", c.ContactEmail, err))
		}
	}
	if c.ServerDescription != "" && c.ServerURL == "" {
		return newUsageError("aggregate: --server-description needs --server-url")
	}
	return nil
}

// Options maps the resolved config onto the pipeline.
func (c *AggregateConfig) Options(log logging.Logger) aggregate.Options {
	policy, _ := merge.ParseExamplePolicy(c.Examples)
	mode := include.ModeLazy
	if c.Inline {
		mode = include.ModeInline
	}
	md := document.Metadata{
		OpenAPIVersion: c.OpenAPIVersion,
		Info: openapi3.Info{
			Title:       c.Title,
			Description: c.Description,
			Version:     c.APIVersion,
		},
	}
	if c.ContactName != "" || c.ContactEmail != "" || c.ContactURL != "" {
		md.Info.Contact = &openapi3.Contact{Name: c.ContactName, Email: c.ContactEmail, URL: c.ContactURL}
	}
	if c.ServerURL != "" {
		md.Servers = openapi3.Servers{{URL: c.ServerURL, Description: c.ServerDescription}}
	}
	return aggregate.Options{
		SnippetsDir:               c.Snippets,
		OutDir:                    c.Out,
		Prefix:                    c.Prefix,
		Metadata:                  md,
		Mode:                      mode,
		Examples:                  policy,
		IncludeRelativeToFragment: c.IncludeRelative,
		NoSchemaMerge:             c.NoSchemaMerge,
		Validate:                  c.Validate,
		DryRun:                    c.DryRun,
		Force:                     c.Force,
		Logger:                    log,
	}
}

func runAggregate(ctx context.Context, cfg *AggregateConfig) error {
	log := logging.New(os.Stderr, cfg.Verbose)

	absOut := cfg.Out
	if ap, err := filepath.Abs(cfg.Out); err == nil {
		absOut = ap
	}

	res, err := aggregate.Run(ctx, cfg.Options(log))
	if err != nil {
		if mapped := fragmentError(err); mapped != nil {
			return mapped
		}
		return wrapOutputError(err, absOut)
	}

	if cfg.DryRun {
		paths := make([]string, 0, len(res.Planned))
		for _, p := range res.Planned {
			paths = append(paths, p.RelPath)
		}
		printPlan(absOut, len(res.Planned), paths)
		if len(res.Examples) > 0 {
			fmt.Fprintf(os.Stdout, "Examples to copy (%d):\n", len(res.Examples))
			for _, e := range res.Examples {
				fmt.Fprintf(os.Stdout, "- %s\n", filepath.Base(e))
			}
		}
		if len(res.Schemas) > 0 {
			fmt.Fprintf(os.Stdout, "Schemas to merge (%d):\n", len(res.Schemas))
			for _, s := range res.Schemas {
				fmt.Fprintf(os.Stdout, "- %s\n", filepath.Base(s))
			}
		}
		return nil
	}
	printSummary(absOut, res)
	return nil
}

var (
	green = color.New(color.FgGreen, color.Bold).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
)

func printSummary(outDir string, res *aggregate.Result) {
	fmt.Fprintf(os.Stdout, "%s %d files to %s\n", green("Wrote"), len(res.Planned), outDir)
	fmt.Fprintf(os.Stdout, "  %s %d fragments, %d resources, %d groups, %d examples\n",
		cyan("from"), res.Fragments, res.Resources, res.Groups, len(res.Examples))
	if v := res.Validation; v != nil {
		fmt.Fprintf(os.Stdout, "  %s OpenAPI %s, %d paths, %d operations\n",
			green("valid"), v.OpenAPIVersion, v.Paths, v.Operations)
	}
}

func printPlan(outDir string, count int, relPaths []string) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, count)
	for _, p := range relPaths {
		fmt.Fprintf(os.Stdout, "- %s\n", p)
	}
}

// fragmentError turns input and validation problems into usage errors
// naming the fragment or document. It returns nil for anything else.
func fragmentError(err error) error {
	var (
		se *docerr.StructureError
		pm *docerr.PathMismatchError
		mi *docerr.MissingIncludeTargetError
		ve *validate.Error
	)
	switch {
	case errors.As(err, &se):
		msg := fmt.Sprintf("fragment: %s", err)
		if se.Field != "" {
			msg = fmt.Sprintf("%s\nField: %s", msg, se.Field)
		}
		return wrapUsageError(msg, err)
	case errors.As(err, &pm):
		return wrapUsageError(fmt.Sprintf("merge: %s", pm), err)
	case errors.As(err, &mi):
		return wrapUsageError(fmt.Sprintf("include: %s\nHint: run without --inline or check that the file was captured.", mi), err)
	case errors.As(err, &ve):
		msg := fmt.Sprintf("validate: %s", ve.Message)
		if ve.Location != "" {
			msg = fmt.Sprintf("%s\nLocation: %s", msg, ve.Location)
		}
		if ve.JSONPointer != "" {
			msg = fmt.Sprintf("%s\nPointer: %s", msg, ve.JSONPointer)
		}
		return wrapUsageError(msg, err)
	}
	return nil
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "not generated") {
		return wrapUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg), err)
	}
	return err
}

func applyAggregateConfigFromFile(cfg *AggregateConfig, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	raw := v.AllSettings()
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		if name, ok := configStringKey(key); ok {
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*stringFlags[name](cfg) = str
			continue
		}
		if name, ok := configBoolKey(key); ok {
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*boolFlags[name](cfg) = val
			continue
		}
		return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
	}

	return nil
}

func configStringKey(key string) (string, bool) {
	normalized := normalizeKey(key)
	for name := range stringFlags {
		if normalizeKey(name) == normalized {
			return name, true
		}
	}
	return "", false
}

func configBoolKey(key string) (string, bool) {
	normalized := normalizeKey(key)
	for name := range boolFlags {
		if normalizeKey(name) == normalized {
			return name, true
		}
	}
	return "", false
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T (quote version numbers)", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}
