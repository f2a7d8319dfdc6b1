// Package pyemitter renders an emission plan as a single-file Python MCP
// server plus an optional llms.txt manifest. It is a pure text transform:
// no filesystem access, and the same plan and options always produce
// byte-identical output.
package pyemitter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mcpgen/openapi2mcp/internal/resolver"
	"github.com/mcpgen/openapi2mcp/internal/spec"
)

// Transport selects the runtime entry point of the generated server.
const (
	TransportStdio  = "stdio"
	TransportPubSub = "pubsub"
)

// Options controls rendering. Transport is required; MountPath may be empty.
type Options struct {
	Transport      string // stdio | pubsub
	MountPath      string // prefix for generated resource identifiers
	DescribeOutput bool   // additionally render the llms.txt manifest
}

// Result holds the rendered artifacts. Manifest is empty unless
// DescribeOutput was set.
type Result struct {
	Source   string
	Manifest string
}

// Emit renders the plan. Types are emitted in plan order, which the resolver
// guarantees is dependency order up to late-bound cycle edges; GET
// operations become resources, everything else becomes tools.
func Emit(plan *resolver.EmissionPlan, opts Options) (*Result, error) {
	if plan == nil {
		return nil, fmt.Errorf("pyemitter: nil plan")
	}
	switch opts.Transport {
	case TransportStdio, TransportPubSub:
	case "":
		return nil, fmt.Errorf("pyemitter: transport is required (%s or %s)", TransportStdio, TransportPubSub)
	default:
		return nil, fmt.Errorf("pyemitter: unsupported transport %q (%s or %s)", opts.Transport, TransportStdio, TransportPubSub)
	}
	mount := strings.Trim(opts.MountPath, "/")

	var b strings.Builder
	writeHeader(&b, plan, opts.Transport)
	writeModels(&b, plan)

	b.WriteString("\napp = Server()\n")

	for _, op := range plan.Operations {
		if op.Method == spec.GET {
			writeResource(&b, &op, mount)
		} else {
			writeTool(&b, &op)
		}
	}

	writeMain(&b, opts.Transport)

	res := &Result{Source: b.String()}
	if opts.DescribeOutput {
		res.Manifest = renderManifest(plan, mount)
	}
	return res, nil
}

// writeHeader renders the module docstring and imports. The future import
// keeps all annotations lazy; datetime imports appear only when some type in
// the plan needs them.
func writeHeader(b *strings.Builder, plan *resolver.EmissionPlan, transport string) {
	title := plan.Title
	if title == "" {
		title = "Generated API"
	}
	fmt.Fprintf(b, "\"\"\"MCP server for %s", escapePy(title))
	if plan.Version != "" {
		fmt.Fprintf(b, " (version %s)", escapePy(plan.Version))
	}
	b.WriteString(".\"\"\"\n\nfrom __future__ import annotations\n\n")

	usesDatetime, usesDate := false, false
	walkRefs(plan, func(ref *resolver.TypeRef) {
		if ref.Kind == resolver.TypePrimitive && ref.Name == "string" {
			switch ref.Format {
			case "date-time":
				usesDatetime = true
			case "date":
				usesDate = true
			}
		}
	})

	imports := []string{
		"import logging",
		"from typing import List, Optional, Any, Dict, Union",
		"from pydantic import BaseModel, Field",
		"from mcp import AbstractResource, AbstractTool, BlockingStdioTransport, Server, Message, Context",
	}
	if usesDatetime {
		imports = append(imports, "from datetime import datetime")
	}
	if usesDate {
		imports = append(imports, "from datetime import date")
	}
	if transport == TransportPubSub {
		imports = append(imports, "from mcp.transport.gcp_pubsub import GooglePubSubTransport")
	}
	// Stable order regardless of which conditional imports were added.
	sort.Strings(imports)
	b.WriteString(strings.Join(imports, "\n"))
	b.WriteString("\n\nlogger = logging.getLogger(__name__)\n")
}

func writeModels(b *strings.Builder, plan *resolver.EmissionPlan) {
	for _, te := range plan.Types {
		b.WriteString("\n\n")
		if te.Alias != nil {
			writeAlias(b, &te)
			continue
		}
		writeModel(b, &te)
	}
	if len(plan.Types) > 0 {
		b.WriteString("\n")
	}
}

// writeAlias renders top-level array, primitive and pass-through reference
// schemas as plain assignments instead of classes.
func writeAlias(b *strings.Builder, te *resolver.TypeEmission) {
	if te.Description != "" {
		fmt.Fprintf(b, "# %s\n", strings.ReplaceAll(te.Description, "\n", " "))
	}
	fmt.Fprintf(b, "%s = %s", pyName(te.Name), pyType(te.Alias))
}

func writeModel(b *strings.Builder, te *resolver.TypeEmission) {
	name := pyName(te.Name)
	fmt.Fprintf(b, "class %s(BaseModel):\n", name)
	doc := te.Description
	if doc == "" {
		doc = fmt.Sprintf("Model for schema %s.", te.Source)
	}
	fmt.Fprintf(b, "    \"\"\"%s\"\"\"\n", strings.ReplaceAll(doc, `"""`, `'''`))

	if len(te.Fields) == 0 {
		b.WriteString("    pass")
		return
	}

	lines := make([]string, 0, len(te.Fields))
	for _, f := range te.Fields {
		fieldName := pyFieldName(f.Name)
		typ := pyType(&f.Type)
		if !f.Required {
			typ = optional(typ)
		}

		var args []string
		if f.Required {
			args = append(args, "default=...")
		} else {
			args = append(args, "default=None")
		}
		if f.Description != "" {
			// %q quotes and escapes in one step; pre-escaping here would
			// double the backslashes in the generated source.
			args = append(args, fmt.Sprintf("description=%q", flatten(f.Description)))
		}
		if fieldName != f.Name {
			args = append(args, fmt.Sprintf("alias=%q", f.Name))
		}

		// Plain annotations unless Field carries more than the default.
		switch {
		case len(args) > 1:
			lines = append(lines, fmt.Sprintf("    %s: %s = Field(%s)", fieldName, typ, strings.Join(args, ", ")))
		case f.Required:
			lines = append(lines, fmt.Sprintf("    %s: %s", fieldName, typ))
		default:
			lines = append(lines, fmt.Sprintf("    %s: %s = None", fieldName, typ))
		}
	}
	b.WriteString(strings.Join(lines, "\n"))
}

// writeResource renders a GET operation as an MCP resource. The resource
// identifier is the operation name, prefixed by the mount path when set;
// query parameters arrive through the request payload.
func writeResource(b *strings.Builder, op *resolver.OperationEmission, mount string) {
	path := pyName(op.Name)
	if mount != "" {
		path = mount + "/" + path
	}
	out := "None"
	if op.Output != nil {
		out = pyType(op.Output)
	}
	class := className(op.Name, "Resource")

	fmt.Fprintf(b, "\n\n@Server.resource(path=%q)\n", path)
	fmt.Fprintf(b, "class %s(AbstractResource[%s]):\n", class, out)
	writeHandlerDoc(b, op)
	fmt.Fprintf(b, "    async def query(self, ctx: Context, **kwargs) -> %s:\n", out)
	fmt.Fprintf(b, "        logger.info(\"executing resource %s\")\n", path)

	wrote := false
	for i := range op.Params {
		p := &op.Params[i]
		if p.In != "query" {
			continue
		}
		varName := pyFieldName(p.Name)
		typ := pyType(&p.Type)
		if p.Required {
			fmt.Fprintf(b, "        %s: %s = ctx.payload[%q]\n", varName, typ, p.Name)
		} else {
			fmt.Fprintf(b, "        %s: %s = ctx.payload.get(%q)\n", varName, optional(typ), p.Name)
		}
		wrote = true
	}
	if wrote {
		b.WriteString("\n")
	}
	b.WriteString("        raise NotImplementedError(\"resource logic is not implemented\")\n")
}

// writeTool renders a non-GET operation as an MCP tool whose argument is the
// request body model.
func writeTool(b *strings.Builder, op *resolver.OperationEmission) {
	in := "BaseModel"
	if op.Input != nil {
		in = pyType(op.Input)
	}
	out := "None"
	if op.Output != nil {
		out = pyType(op.Output)
	}
	class := className(op.Name, "Tool")

	fmt.Fprintf(b, "\n\n@Server.tool(name=%q)\n", pyName(op.Name))
	fmt.Fprintf(b, "class %s(AbstractTool[%s, %s]):\n", class, in, out)
	writeHandlerDoc(b, op)
	fmt.Fprintf(b, "    async def execute(self, arg: %s, ctx: Context) -> %s:\n", in, out)
	fmt.Fprintf(b, "        logger.info(\"executing tool %s\")\n", pyName(op.Name))

	wrote := false
	for i := range op.Params {
		p := &op.Params[i]
		typ := pyType(&p.Type)
		if !p.Required {
			typ = optional(typ)
		}
		fmt.Fprintf(b, "        # %s (%s): %s\n", p.Name, p.In, typ)
		wrote = true
	}
	if wrote {
		b.WriteString("\n")
	}
	b.WriteString("        raise NotImplementedError(\"tool logic is not implemented\")\n")
}

func writeHandlerDoc(b *strings.Builder, op *resolver.OperationEmission) {
	summary := op.Summary
	if summary == "" {
		summary = "Handler for " + op.Name
	}
	fmt.Fprintf(b, "    \"\"\"%s\n\n    %s %s\n    \"\"\"\n",
		strings.ReplaceAll(summary, `"""`, `'''`),
		strings.ToUpper(string(op.Method)), op.Path)
}

func writeMain(b *strings.Builder, transport string) {
	b.WriteString(`

def main():
    logging.basicConfig(level=logging.INFO, format="%(asctime)s - %(name)s - %(levelname)s - %(message)s")
`)
	switch transport {
	case TransportPubSub:
		b.WriteString(`    transport = GooglePubSubTransport(
        project_id="YOUR_GCP_PROJECT_ID",
        mcp_subscription_id="YOUR_MCP_PUBSUB_SUBSCRIPTION",
        agent_topic_id="YOUR_AGENT_PUBSUB_TOPIC",
    )
`)
	default:
		b.WriteString("    transport = BlockingStdioTransport()\n")
	}
	b.WriteString(`    app.serve(transport=transport)


if __name__ == "__main__":
    main()
`)
}
