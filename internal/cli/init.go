package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

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
		Short: "Scaffold a sample openapi2mcp configuration file",
		Long:  "Scaffold a commented openapi2mcp configuration file that documents available options.",
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
			cfg := &InitConfig{
				OutputPath: out,
				Force:      force,
				Verbose:    verbose,
			}
			return initRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("out", "openapi2mcp.yaml", "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = "openapi2mcp.yaml"
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"
	if err := writeFileAtomic(absPath, []byte(content), cfg.Force); err != nil {
		return newUsageError(fmt.Sprintf("init: %v", err))
	}
	fmt.Fprintf(os.Stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# openapi2mcp configuration (YAML)
# All fields are optional. Command-line flags override config values.

# Path to the OpenAPI 3 document (JSON or YAML).
# input: ./openapi.yaml

# Output file for the generated server. Derived from the input name when omitted.
# output: ./server.py

# Server transport (stdio|pubsub). Defaults to stdio.
# transport: stdio

# Prefix applied to generated resource paths.
# mount: api/v1

# Additionally write an llms.txt manifest next to the output.
# llmsTxt: false

# Run full OpenAPI validation before generating.
# validate: false

# Preview planned outputs without writing files.
# dryRun: false

# Overwrite existing output files.
# force: false

# Enable verbose logging.
# verbose: false
`
