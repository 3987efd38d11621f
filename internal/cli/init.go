package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const defaultConfigName = "restdocs2openapi.yaml"

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
	Verbose    bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample restdocs2openapi configuration file",
		Long:  "Scaffold a commented restdocs2openapi configuration file that documents the aggregate options.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			return initRunner(cmd.Context(), &InitConfig{
				OutputPath: out,
				Force:      force,
				Verbose:    verbose,
			})
		},
	}

	cmd.Flags().String("out", defaultConfigName, "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = defaultConfigName
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force {
		if st.Mode().IsRegular() {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
		}
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot create parent directory: %v", err))
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"

	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err))
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return newUsageError(fmt.Sprintf("init: cannot place file at %s: %v", absPath, err))
	}
	fmt.Fprintf(os.Stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML documents every key the aggregate command reads.
const sampleConfigYAML = `# restdocs2openapi configuration (YAML; JSON and TOML work too)
# All fields are optional. Command-line flags override config values.

# Directory scanned for openapi-resource*.yaml fragments.
# snippets: build/generated-snippets

# Output directory for the root document, group documents and copied examples.
# out: build/openapi

# Root document name without extension; groups are written next to it.
# prefix: api

# Root document metadata. Quote version numbers.
# openapiVersion: "3.0.1"
# title: API documentation
# description: ""
# apiVersion: "0.1.0"

# Optional contact block.
# contactName: API team
# contactEmail: api@example.com
# contactUrl: https://example.com

# Optional single server entry.
# serverUrl: https://api.example.com
# serverDescription: production

# Write one self-contained document instead of !include references.
# inline: false

# Examples kept per content type: all or first.
# examples: all

# Resolve includes against each fragment's directory instead of the output directory.
# includeRelative: false

# Keep the first schema per content type instead of composing them with allOf.
# noSchemaMerge: false

# Validate the written root document, includes resolved, as OpenAPI 3.
# validate: false

# Preview planned outputs without writing files.
# dryRun: false

# Overwrite files that were not written by restdocs2openapi.
# force: false

# Enable verbose logging.
# verbose: false
`
