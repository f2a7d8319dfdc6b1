package pyemitter

import (
	"fmt"
	"strings"

	"github.com/mcpgen/openapi2mcp/internal/resolver"
)

// pythonKeywords cannot be used as identifiers in generated code; names that
// collide get a trailing underscore, matching the usual Python convention.
var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// pyName turns an already-sanitized identifier into a safe Python one.
func pyName(name string) string {
	if pythonKeywords[name] {
		return name + "_"
	}
	return name
}

// pyFieldName additionally lowercases nothing and only guards structure:
// field names come straight from the document, so invalid runes become
// underscores here rather than in the resolver.
func pyFieldName(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		out = "_field"
	}
	return pyName(out)
}

// pyType renders a type expression. Late-bound references are quoted so the
// annotation stays valid while the target class is still being defined.
func pyType(ref *resolver.TypeRef) string {
	switch ref.Kind {
	case resolver.TypeNamed:
		name := pyName(ref.Name)
		if ref.LateBound {
			return fmt.Sprintf("%q", name)
		}
		return name
	case resolver.TypeList:
		return "List[" + pyType(ref.Elem) + "]"
	case resolver.TypeMap:
		return "Dict[str, Any]"
	case resolver.TypeAny:
		return "Any"
	default:
		return pyPrimitive(ref.Name, ref.Format)
	}
}

func pyPrimitive(typ, format string) string {
	switch typ {
	case "integer":
		return "int"
	case "number":
		return "float"
	case "boolean":
		return "bool"
	case "string":
		switch format {
		case "date-time":
			return "datetime"
		case "date":
			return "date"
		case "byte", "binary":
			return "bytes"
		}
		return "str"
	}
	return "Any"
}

// optional wraps a rendered type in Optional[...] unless that would be a
// no-op.
func optional(t string) string {
	if t == "Any" || strings.HasPrefix(t, "Optional[") {
		return t
	}
	return "Optional[" + t + "]"
}

// className derives a handler class name from a sanitized operation name,
// e.g. getPet -> GetPetResource, create_user -> Create_userTool.
func className(opName, suffix string) string {
	name := pyName(opName)
	return strings.ToUpper(name[:1]) + name[1:] + suffix
}

// flatten collapses newlines so a description fits on one source line.
func flatten(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// escapePy makes a document string safe inside a double-quoted Python
// literal.
func escapePy(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// walkRefs visits every type reference reachable from the plan, which drives
// the conditional datetime imports.
func walkRefs(plan *resolver.EmissionPlan, fn func(*resolver.TypeRef)) {
	var walk func(*resolver.TypeRef)
	walk = func(ref *resolver.TypeRef) {
		if ref == nil {
			return
		}
		fn(ref)
		walk(ref.Elem)
	}
	for _, te := range plan.Types {
		walk(te.Alias)
		for i := range te.Fields {
			walk(&te.Fields[i].Type)
		}
	}
	for _, op := range plan.Operations {
		for i := range op.Params {
			walk(&op.Params[i].Type)
		}
		walk(op.Input)
		walk(op.Output)
	}
}
