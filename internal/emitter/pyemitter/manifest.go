package pyemitter

import (
	"fmt"
	"strings"

	"github.com/mcpgen/openapi2mcp/internal/resolver"
	"github.com/mcpgen/openapi2mcp/internal/spec"
)

// renderManifest produces the llms.txt companion document: a plain-text
// catalogue of the generated resources and tools for consumption by language
// models and humans alike.
func renderManifest(plan *resolver.EmissionPlan, mount string) string {
	var lines []string
	title := plan.Title
	if title == "" {
		title = "Generated API"
	}
	lines = append(lines,
		fmt.Sprintf("# %s", title),
		"",
		"This document describes the tools (actions) and resources (data queries)",
		"exposed by the generated MCP server.",
		"---",
	)

	lines = append(lines, "Available Resources (GET operations):")
	found := false
	for i := range plan.Operations {
		op := &plan.Operations[i]
		if op.Method != spec.GET {
			continue
		}
		found = true
		path := pyName(op.Name)
		if mount != "" {
			path = mount + "/" + path
		}
		lines = append(lines, "", "Resource path: "+path)
		lines = append(lines, fmt.Sprintf("  Operation: GET %s", op.Path))
		lines = appendOpDetails(lines, op)
	}
	if !found {
		lines = append(lines, "  None.")
	}

	lines = append(lines, "", "---", "", "Available Tools (non-GET operations):")
	found = false
	for i := range plan.Operations {
		op := &plan.Operations[i]
		if op.Method == spec.GET {
			continue
		}
		found = true
		lines = append(lines, "", "Tool name: "+pyName(op.Name))
		lines = append(lines, fmt.Sprintf("  Operation: %s %s", strings.ToUpper(string(op.Method)), op.Path))
		if op.Input != nil {
			lines = append(lines, "  Input model: "+manifestType(op.Input))
		}
		lines = appendOpDetails(lines, op)
	}
	if !found {
		lines = append(lines, "  None.")
	}

	lines = append(lines, "", "---", "", "Generated types:")
	if len(plan.Types) == 0 {
		lines = append(lines, "  None.")
	}
	for i := range plan.Types {
		lines = append(lines, "  - "+pyName(plan.Types[i].Name))
	}

	lines = append(lines, "",
		"---",
		"Type names refer to the Pydantic models defined in the generated server.")
	return strings.Join(lines, "\n") + "\n"
}

func appendOpDetails(lines []string, op *resolver.OperationEmission) []string {
	if op.Summary != "" {
		lines = append(lines, "  Summary: "+op.Summary)
	}
	if op.Description != "" {
		lines = append(lines, "  Description: "+strings.ReplaceAll(op.Description, "\n", " "))
	}
	if op.Output != nil {
		lines = append(lines, "  Returns: "+manifestType(op.Output))
	}
	for i := range op.Params {
		p := &op.Params[i]
		req := "optional"
		if p.Required {
			req = "required"
		}
		lines = append(lines, fmt.Sprintf("  Parameter: %s (in %s, %s, %s)", p.Name, p.In, manifestType(&p.Type), req))
	}
	return lines
}

// manifestType renders a type for the manifest without the quoting used in
// source annotations.
func manifestType(ref *resolver.TypeRef) string {
	switch ref.Kind {
	case resolver.TypeNamed:
		return pyName(ref.Name)
	case resolver.TypeList:
		return "List[" + manifestType(ref.Elem) + "]"
	case resolver.TypeMap:
		return "Dict[str, Any]"
	case resolver.TypeAny:
		return "Any"
	default:
		return pyPrimitive(ref.Name, ref.Format)
	}
}
