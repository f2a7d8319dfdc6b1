package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInit_WritesSampleConfig(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "openapi2mcp.yaml")

	_ = captureStdout(func() {
		if err := execute(t, "init", "--out", outPath); err != nil {
			t.Fatalf("init: %v", err)
		}
	})

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	for _, want := range []string{"# input:", "# transport: stdio", "# llmsTxt:"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("sample config missing %q", want)
		}
	}
}

func TestInit_RefusesOverwriteWithoutForce(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "openapi2mcp.yaml")
	if err := os.WriteFile(outPath, []byte("input: x\n"), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", outPath})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected error without --force")
	}

	_ = captureStdout(func() {
		if err := execute(t, "init", "--out", outPath, "--force"); err != nil {
			t.Fatalf("init --force: %v", err)
		}
	})
}
