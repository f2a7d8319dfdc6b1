package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var checkRunner = runCheck

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify that generated output is up to date with its document",
		Long: "Regenerate the server from the input document in memory and compare it " +
			"byte for byte against the existing output file. Exits non-zero on drift.",
		Example: "  openapi2mcp check --input api.yaml --output server.py",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return checkRunner(cmd.Context(), cfg)
		},
	}

	// Check takes the same inputs as generate since it replays generation.
	addGenerateFlags(cmd)
	return cmd
}

func runCheck(ctx context.Context, cfg *GenerateConfig) error {
	res, err := buildArtifacts(ctx, cfg)
	if err != nil {
		return err
	}

	existing, err := os.ReadFile(cfg.Output)
	if err != nil {
		return newUsageError(fmt.Sprintf("check: read output %q: %v", cfg.Output, err))
	}
	if !bytes.Equal(existing, []byte(res.Source)) {
		return fmt.Errorf("check: %s is out of date with %s (rerun generate)", cfg.Output, cfg.Input)
	}

	if cfg.LlmsTxt {
		llmsPath := filepath.Join(filepath.Dir(cfg.Output), "llms.txt")
		manifest, err := os.ReadFile(llmsPath)
		if err != nil {
			return newUsageError(fmt.Sprintf("check: read manifest %q: %v", llmsPath, err))
		}
		if !bytes.Equal(manifest, []byte(res.Manifest)) {
			return fmt.Errorf("check: %s is out of date with %s (rerun generate)", llmsPath, cfg.Input)
		}
	}

	fmt.Fprintf(os.Stdout, "%s is up to date\n", cfg.Output)
	return nil
}
