package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcpgen/openapi2mcp/internal/emitter/pyemitter"
	"github.com/mcpgen/openapi2mcp/internal/resolver"
	"github.com/mcpgen/openapi2mcp/internal/spec"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// GenerateConfig captures all inputs that influence the generate command
// after merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Input      string
	Output     string
	Transport  string
	Mount      string
	LlmsTxt    bool
	Validate   bool
	ConfigPath string
	DryRun     bool
	Force      bool
	Verbose    bool
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{Transport: pyemitter.TransportStdio}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an MCP server from an OpenAPI 3 document",
		Long: "Generate a Python MCP server from an OpenAPI 3 document. " +
			"Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  openapi2mcp generate --input api.yaml --output server.py
  openapi2mcp generate -i api.json -o server.py --transport pubsub --mount api/v1
  openapi2mcp --config config.yaml generate --llms-txt --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	addGenerateFlags(cmd)
	return cmd
}

func addGenerateFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("input", "i", "", "Path to the OpenAPI 3 document (JSON or YAML)")
	flags.StringP("output", "o", "", "Output file for the generated server (derived from input when omitted)")
	flags.String("transport", "", "Server transport (stdio|pubsub); defaults to stdio")
	flags.String("mount", "", "Prefix applied to generated resource paths")
	flags.Bool("llms-txt", false, "Additionally write an llms.txt manifest next to the output")
	flags.Bool("validate", false, "Run full OpenAPI validation before generating")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output files")
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	if flags.Changed("input") {
		value, err := flags.GetString("input")
		if err != nil {
			return err
		}
		cfg.Input = strings.TrimSpace(value)
	}
	if flags.Changed("output") {
		value, err := flags.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = strings.TrimSpace(value)
	}
	if flags.Changed("transport") {
		value, err := flags.GetString("transport")
		if err != nil {
			return err
		}
		cfg.Transport = strings.TrimSpace(value)
	}
	if flags.Changed("mount") {
		value, err := flags.GetString("mount")
		if err != nil {
			return err
		}
		cfg.Mount = strings.TrimSpace(value)
	}
	if flags.Changed("llms-txt") {
		value, err := flags.GetBool("llms-txt")
		if err != nil {
			return err
		}
		cfg.LlmsTxt = value
	}
	if flags.Changed("validate") {
		value, err := flags.GetBool("validate")
		if err != nil {
			return err
		}
		cfg.Validate = value
	}
	if flags.Changed("dry-run") {
		value, err := flags.GetBool("dry-run")
		if err != nil {
			return err
		}
		cfg.DryRun = value
	}
	if flags.Changed("force") {
		value, err := flags.GetBool("force")
		if err != nil {
			return err
		}
		cfg.Force = value
	}
	if flags.Changed("verbose") {
		value, err := flags.GetBool("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Output = strings.TrimSpace(c.Output)
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	c.Mount = strings.TrimSpace(c.Mount)
	if c.Transport == "" {
		c.Transport = pyemitter.TransportStdio
	}
	if c.Output == "" && c.Input != "" {
		base := filepath.Base(c.Input)
		base = strings.TrimSuffix(base, filepath.Ext(base))
		c.Output = base + "_server.py"
	}
}

func (c *GenerateConfig) validate() error {
	if c.Input == "" {
		return newUsageError("generate: --input is required (set via flag or config file)")
	}
	switch c.Transport {
	case pyemitter.TransportStdio, pyemitter.TransportPubSub:
	default:
		return newUsageError(fmt.Sprintf("generate: unsupported --transport %q (allowed: stdio, pubsub)", c.Transport))
	}
	return nil
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	res, err := buildArtifacts(ctx, cfg)
	if err != nil {
		return err
	}

	outPath := cfg.Output
	llmsPath := filepath.Join(filepath.Dir(outPath), "llms.txt")

	if cfg.DryRun {
		planned := []plannedFile{{outPath, len(res.Source)}}
		if cfg.LlmsTxt {
			planned = append(planned, plannedFile{llmsPath, len(res.Manifest)})
		}
		printPlan(planned)
		return nil
	}

	if err := writeFileAtomic(outPath, []byte(res.Source), cfg.Force); err != nil {
		return wrapOutputError(err, outPath)
	}
	if cfg.Verbose {
		fmt.Fprintf(os.Stdout, "Wrote server to %s\n", outPath)
	}
	if cfg.LlmsTxt {
		if err := writeFileAtomic(llmsPath, []byte(res.Manifest), cfg.Force); err != nil {
			return wrapOutputError(err, llmsPath)
		}
		if cfg.Verbose {
			fmt.Fprintf(os.Stdout, "Wrote manifest to %s\n", llmsPath)
		}
	}
	return nil
}

// buildArtifacts runs the full pipeline for the given configuration: read,
// parse, optionally validate, normalize, resolve, emit. It is shared by
// generate and check.
func buildArtifacts(ctx context.Context, cfg *GenerateConfig) (*pyemitter.Result, error) {
	data, err := os.ReadFile(cfg.Input)
	if err != nil {
		return nil, newUsageError(fmt.Sprintf("read input %q: %v", cfg.Input, err))
	}

	if cfg.Validate {
		if err := spec.ValidateDocument(ctx, data); err != nil {
			return nil, friendlySpecError(err)
		}
	}

	root, err := spec.Parse(data)
	if err != nil {
		return nil, friendlySpecError(err)
	}
	ns, err := spec.Normalize(root)
	if err != nil {
		return nil, friendlySpecError(err)
	}
	plan, err := resolver.Resolve(ns)
	if err != nil {
		return nil, friendlySpecError(err)
	}

	res, err := pyemitter.Emit(plan, pyemitter.Options{
		Transport:      cfg.Transport,
		MountPath:      cfg.Mount,
		DescribeOutput: cfg.LlmsTxt,
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// friendlySpecError maps the structured pipeline errors into usage errors so
// they print without a stack of wrapping noise.
func friendlySpecError(err error) error {
	var malformed *spec.MalformedSpecError
	var unresolved *resolver.UnresolvedReferenceError
	var collision *resolver.NameCollisionError
	switch {
	case errors.As(err, &malformed),
		errors.As(err, &unresolved),
		errors.As(err, &collision):
		return newUsageError(err.Error())
	}
	return err
}

type plannedFile struct {
	path string
	size int
}

func printPlan(files []plannedFile) {
	fmt.Fprintf(os.Stdout, "Planned writes (%d files):\n", len(files))
	for _, f := range files {
		fmt.Fprintf(os.Stdout, "- %s (%d bytes)\n", f.path, f.size)
	}
}

func wrapOutputError(err error, path string) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") ||
		strings.Contains(lower, "exists") || strings.Contains(lower, "rename") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --output or use --force when appropriate.", path, msg))
	}
	return err
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		normalized := normalizeKey(key)
		switch normalized {
		case "input":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Input = str
		case "output":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Output = str
		case "transport":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Transport = str
		case "mount":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Mount = str
		case "llmstxt":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.LlmsTxt = val
		case "validate":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Validate = val
		case "dryrun":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.DryRun = val
		case "force":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Force = val
		case "verbose":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Verbose = val
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
	}

	return nil
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
		return "", fmt.Errorf("expected string, got %T", v)
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
