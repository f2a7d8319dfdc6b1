package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalSpecYAML = "" +
	"openapi: 3.0.0\n" +
	"info:\n" +
	"  title: Test API\n" +
	"  version: '1.0.0'\n" +
	"components:\n" +
	"  schemas:\n" +
	"    Greeting:\n" +
	"      type: object\n" +
	"      required: [text]\n" +
	"      properties:\n" +
	"        text:\n" +
	"          type: string\n" +
	"paths:\n" +
	"  /hello:\n" +
	"    get:\n" +
	"      operationId: sayHello\n" +
	"      summary: Hello\n" +
	"      responses:\n" +
	"        '200':\n" +
	"          description: ok\n" +
	"          content:\n" +
	"            application/json:\n" +
	"              schema:\n" +
	"                $ref: '#/components/schemas/Greeting'\n"

func captureStdout(fn func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	defer func() { os.Stdout = old }()
	fn()
	_ = w.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func writeSpec(t *testing.T, dir string) string {
	t.Helper()
	specPath := filepath.Join(dir, "spec.yaml")
	if err := os.WriteFile(specPath, []byte(minimalSpecYAML), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return specPath
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	return root.Execute()
}

func TestGeneratePipeline_WritesServer(t *testing.T) {
	dir := t.TempDir()
	specPath := writeSpec(t, dir)
	outPath := filepath.Join(dir, "server.py")

	if err := execute(t, "generate", "--input", specPath, "--output", outPath, "--llms-txt"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	src, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	for _, want := range []string{
		"class Greeting(BaseModel):",
		`@Server.resource(path="sayHello")`,
		"transport = BlockingStdioTransport()",
	} {
		if !strings.Contains(string(src), want) {
			t.Errorf("server.py missing %q", want)
		}
	}

	manifest, err := os.ReadFile(filepath.Join(dir, "llms.txt"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if !strings.Contains(string(manifest), "Resource path: sayHello") {
		t.Errorf("llms.txt missing resource entry")
	}
}

func TestGeneratePipeline_DryRun(t *testing.T) {
	dir := t.TempDir()
	specPath := writeSpec(t, dir)
	outPath := filepath.Join(dir, "server.py")

	out := captureStdout(func() {
		if err := execute(t, "generate", "--input", specPath, "--output", outPath, "--dry-run"); err != nil {
			t.Fatalf("execute: %v", err)
		}
	})
	if !strings.Contains(out, "Planned writes") {
		t.Fatalf("expected dry-run plan output, got: %s", out)
	}
	if _, err := os.Stat(outPath); err == nil {
		t.Fatalf("expected no writes on dry-run")
	}
}

func TestGeneratePipeline_ForceRequiredToOverwrite(t *testing.T) {
	dir := t.TempDir()
	specPath := writeSpec(t, dir)
	outPath := filepath.Join(dir, "server.py")

	if err := execute(t, "generate", "--input", specPath, "--output", outPath); err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if err := execute(t, "generate", "--input", specPath, "--output", outPath); err == nil {
		t.Fatalf("expected overwrite error without --force")
	}
	if err := execute(t, "generate", "--input", specPath, "--output", outPath, "--force"); err != nil {
		t.Fatalf("generate with --force: %v", err)
	}
}

func TestGeneratePipeline_Deterministic(t *testing.T) {
	dir := t.TempDir()
	specPath := writeSpec(t, dir)
	outA := filepath.Join(dir, "a.py")
	outB := filepath.Join(dir, "b.py")

	if err := execute(t, "generate", "--input", specPath, "--output", outA); err != nil {
		t.Fatalf("generate a: %v", err)
	}
	if err := execute(t, "generate", "--input", specPath, "--output", outB); err != nil {
		t.Fatalf("generate b: %v", err)
	}

	a, _ := os.ReadFile(outA)
	b, _ := os.ReadFile(outB)
	if !bytes.Equal(a, b) {
		t.Fatalf("generated output differs across runs")
	}
}

func TestCheckPipeline(t *testing.T) {
	dir := t.TempDir()
	specPath := writeSpec(t, dir)
	outPath := filepath.Join(dir, "server.py")

	if err := execute(t, "generate", "--input", specPath, "--output", outPath); err != nil {
		t.Fatalf("generate: %v", err)
	}

	out := captureStdout(func() {
		if err := execute(t, "check", "--input", specPath, "--output", outPath); err != nil {
			t.Fatalf("check: %v", err)
		}
	})
	if !strings.Contains(out, "up to date") {
		t.Fatalf("expected up-to-date message, got: %s", out)
	}

	// Any drift in the generated file must fail the check.
	if err := os.WriteFile(outPath, []byte("# edited by hand\n"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if err := execute(t, "check", "--input", specPath, "--output", outPath); err == nil {
		t.Fatalf("expected drift error")
	}
}

func TestGeneratePipeline_MalformedSpec(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "bad.yaml")
	bad := "openapi: 3.0.0\ncomponents:\n  schemas:\n    A:\n      oneOf:\n        - type: string\n"
	if err := os.WriteFile(specPath, []byte(bad), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}

	err := execute(t, "generate", "--input", specPath, "--output", filepath.Join(dir, "out.py"))
	if err == nil {
		t.Fatalf("expected error for malformed document")
	}
	if !strings.Contains(err.Error(), "unsupported combinator") {
		t.Fatalf("unexpected error text: %v", err)
	}
}
