package spec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cast"
	"github.com/yosida95/uritemplate/v3"
	"gopkg.in/yaml.v3"
)

// refPattern is the only reference grammar the normalizer accepts: local
// schema pointers. Anything else (external files, parameters, responses) is
// a hard error rather than a silent fallback.
var refPattern = regexp.MustCompile(`^#/components/schemas/([^/]+)$`)

// httpMethods recognized under a path item. Document iteration drives
// operation order; this set only filters out non-method keys like
// "parameters" and "summary".
var httpMethods = map[string]HttpMethod{
	"get":     GET,
	"post":    POST,
	"put":     PUT,
	"delete":  DELETE,
	"patch":   PATCH,
	"head":    HEAD,
	"options": OPTIONS,
}

// Normalize converts a parsed document tree into a NormalizedSpec. It is a
// pure transform: no I/O, no mutation of the input, and no reference
// resolution — $ref strings become KindReference nodes so that cyclic
// documents cannot recurse here.
func Normalize(root *yaml.Node) (*NormalizedSpec, error) {
	root = deref(root)
	if root == nil || root.Kind != yaml.MappingNode {
		return nil, malformed("", "document root must be a mapping")
	}

	version := scalarString(mapGet(root, "openapi"))
	if version == "" {
		return nil, malformed("#/openapi", "missing openapi version (expected 3.x)")
	}
	if !strings.HasPrefix(version, "3.") {
		return nil, malformed("#/openapi", "unsupported OpenAPI version %q (only 3.x is supported)", version)
	}

	ns := &NormalizedSpec{Schemas: make(map[string]*SchemaNode)}

	if info := deref(mapGet(root, "info")); info != nil && info.Kind == yaml.MappingNode {
		ns.Title = scalarString(mapGet(info, "title"))
		ns.Version = scalarString(mapGet(info, "version"))
		ns.Description = scalarString(mapGet(info, "description"))
	}

	if comps := deref(mapGet(root, "components")); comps != nil {
		schemas := deref(mapGet(comps, "schemas"))
		if schemas != nil {
			if schemas.Kind != yaml.MappingNode {
				return nil, malformed("#/components/schemas", "must be a mapping")
			}
			var err error
			forEachEntry(schemas, func(name string, def *yaml.Node) bool {
				var node *SchemaNode
				node, err = buildSchema(def, "#/components/schemas/"+name)
				if err != nil {
					return false
				}
				node.Name = name
				ns.SchemaNames = append(ns.SchemaNames, name)
				ns.Schemas[name] = node
				return true
			})
			if err != nil {
				return nil, err
			}
		}
	}

	paths := deref(mapGet(root, "paths"))
	if paths != nil && paths.Kind == yaml.MappingNode {
		var err error
		forEachEntry(paths, func(path string, item *yaml.Node) bool {
			if !strings.HasPrefix(path, "/") {
				return true // x- extensions and the like
			}
			err = buildPathItem(ns, path, deref(item))
			return err == nil
		})
		if err != nil {
			return nil, err
		}
	}

	return ns, nil
}

// buildSchema classifies one schema node. Classification is closed: a shape
// that is neither a reference, an object, an array, nor a known primitive
// fails instead of degrading to a permissive any-type.
func buildSchema(def *yaml.Node, path string) (*SchemaNode, error) {
	def = deref(def)
	if def == nil || def.Kind != yaml.MappingNode {
		return nil, malformed(path, "schema must be a mapping")
	}

	if refNode := mapGet(def, "$ref"); refNode != nil {
		ref := scalarString(refNode)
		m := refPattern.FindStringSubmatch(ref)
		if m == nil {
			return nil, malformed(path+"/$ref", "reference %q does not match #/components/schemas/<name>", ref)
		}
		return &SchemaNode{Kind: KindReference, Ref: m[1]}, nil
	}

	for _, kw := range []string{"oneOf", "allOf", "anyOf", "not"} {
		if mapGet(def, kw) != nil {
			return nil, malformed(path, "unsupported combinator %q", kw)
		}
	}

	typ := scalarString(mapGet(def, "type"))
	desc := scalarString(mapGet(def, "description"))
	props := deref(mapGet(def, "properties"))
	items := mapGet(def, "items")

	switch {
	case typ == "object" || (typ == "" && props != nil):
		node := &SchemaNode{Kind: KindObject, Description: desc}
		if req := mapGet(def, "required"); req != nil {
			node.Required = stringSlice(req)
		}
		if props != nil {
			if props.Kind != yaml.MappingNode {
				return nil, malformed(path+"/properties", "must be a mapping")
			}
			var err error
			forEachEntry(props, func(name string, propDef *yaml.Node) bool {
				var child *SchemaNode
				child, err = buildSchema(propDef, path+"/properties/"+name)
				if err != nil {
					return false
				}
				node.Properties = append(node.Properties, Property{Name: name, Schema: child})
				return true
			})
			if err != nil {
				return nil, err
			}
		}
		return node, nil

	case typ == "array" || (typ == "" && items != nil):
		if items == nil {
			return nil, malformed(path, "array schema is missing items")
		}
		elem, err := buildSchema(items, path+"/items")
		if err != nil {
			return nil, err
		}
		return &SchemaNode{Kind: KindArray, Items: elem, Description: desc}, nil

	case typ == "string" || typ == "integer" || typ == "number" || typ == "boolean":
		return &SchemaNode{
			Kind:        KindPrimitive,
			Type:        typ,
			Format:      scalarString(mapGet(def, "format")),
			Description: desc,
		}, nil

	case typ == "":
		return nil, malformed(path, "schema cannot be classified: no type, $ref, properties, or items")

	default:
		return nil, malformed(path, "unsupported schema type %q", typ)
	}
}

func buildPathItem(ns *NormalizedSpec, path string, item *yaml.Node) error {
	if item == nil || item.Kind != yaml.MappingNode {
		return malformed(pathPointer(path), "path item must be a mapping")
	}

	tmpl, err := uritemplate.New(path)
	if err != nil {
		return malformed(pathPointer(path), "invalid path template: %v", err)
	}

	var pathParams []ParameterSpec
	if params := mapGet(item, "parameters"); params != nil {
		pathParams, err = buildParameters(params, pathPointer(path)+"/parameters")
		if err != nil {
			return err
		}
	}

	var opErr error
	forEachEntry(item, func(key string, opNode *yaml.Node) bool {
		method, ok := httpMethods[strings.ToLower(key)]
		if !ok {
			return true // parameters, summary, description, extensions
		}
		op, err := buildOperation(path, method, deref(opNode), pathParams, tmpl.Varnames())
		if err != nil {
			opErr = err
			return false
		}
		ns.Operations = append(ns.Operations, *op)
		return true
	})
	return opErr
}

func buildOperation(path string, method HttpMethod, opNode *yaml.Node, pathParams []ParameterSpec, templateVars []string) (*OperationRecord, error) {
	ptr := pathPointer(path) + "/" + string(method)
	if opNode == nil || opNode.Kind != yaml.MappingNode {
		return nil, malformed(ptr, "operation must be a mapping")
	}

	op := &OperationRecord{
		Method:      method,
		Path:        path,
		Summary:     scalarString(mapGet(opNode, "summary")),
		Description: scalarString(mapGet(opNode, "description")),
	}

	op.ID = scalarString(mapGet(opNode, "operationId"))
	if op.ID == "" {
		op.ID = fallbackOperationID(method, path)
	}

	// Path-level parameters first, then operation-level ones which override
	// by (location, name).
	merged := append([]ParameterSpec(nil), pathParams...)
	if params := mapGet(opNode, "parameters"); params != nil {
		opParams, err := buildParameters(params, ptr+"/parameters")
		if err != nil {
			return nil, err
		}
		for _, p := range opParams {
			replaced := false
			for i := range merged {
				if merged[i].In == p.In && merged[i].Name == p.Name {
					merged[i] = p
					replaced = true
					break
				}
			}
			if !replaced {
				merged = append(merged, p)
			}
		}
	}

	// Template variables without a declared parameter become required string
	// path parameters, so every placeholder ends up bound in the handler
	// signature.
	for _, v := range templateVars {
		declared := false
		for _, p := range merged {
			if p.In == "path" && p.Name == v {
				declared = true
				break
			}
		}
		if !declared {
			merged = append(merged, ParameterSpec{
				Name:     v,
				In:       "path",
				Required: true,
				Schema:   &SchemaNode{Kind: KindPrimitive, Type: "string"},
			})
		}
	}
	op.Parameters = merged

	if rb := deref(mapGet(opNode, "requestBody")); rb != nil {
		if rb.Kind != yaml.MappingNode {
			return nil, malformed(ptr+"/requestBody", "request body must be a mapping")
		}
		schema, err := contentSchema(rb, ptr+"/requestBody")
		if err != nil {
			return nil, err
		}
		op.RequestBody = schema
	}

	if resps := deref(mapGet(opNode, "responses")); resps != nil {
		if resps.Kind != yaml.MappingNode {
			return nil, malformed(ptr+"/responses", "responses must be a mapping")
		}
		var respErr error
		forEachEntry(resps, func(code string, respNode *yaml.Node) bool {
			respNode = deref(respNode)
			if respNode == nil || respNode.Kind != yaml.MappingNode {
				respErr = malformed(ptr+"/responses/"+code, "response must be a mapping")
				return false
			}
			if mapGet(respNode, "$ref") != nil {
				respErr = malformed(ptr+"/responses/"+code, "response references are not supported (only #/components/schemas/<name> schema references)")
				return false
			}
			schema, err := contentSchema(respNode, ptr+"/responses/"+code)
			if err != nil {
				respErr = err
				return false
			}
			op.Responses = append(op.Responses, ResponseSpec{Status: code, Schema: schema})
			return true
		})
		if respErr != nil {
			return nil, respErr
		}
	}

	return op, nil
}

func buildParameters(node *yaml.Node, ptr string) ([]ParameterSpec, error) {
	node = deref(node)
	if node.Kind != yaml.SequenceNode {
		return nil, malformed(ptr, "parameters must be a sequence")
	}
	out := make([]ParameterSpec, 0, len(node.Content))
	for i, pn := range node.Content {
		p, err := buildParameter(deref(pn), fmt.Sprintf("%s/%d", ptr, i))
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func buildParameter(node *yaml.Node, ptr string) (*ParameterSpec, error) {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil, malformed(ptr, "parameter must be a mapping")
	}
	if mapGet(node, "$ref") != nil {
		return nil, malformed(ptr, "parameter references are not supported (only #/components/schemas/<name> schema references)")
	}
	name := scalarString(mapGet(node, "name"))
	if name == "" {
		return nil, malformed(ptr, "parameter is missing a name")
	}
	in := scalarString(mapGet(node, "in"))
	switch in {
	case "path", "query", "header", "cookie":
	default:
		return nil, malformed(ptr, "parameter %q has unsupported location %q", name, in)
	}

	p := &ParameterSpec{
		Name:     name,
		In:       in,
		Required: scalarBool(mapGet(node, "required")),
	}
	if in == "path" {
		p.Required = true // path parameters are always required in OpenAPI 3
	}

	if schemaNode := mapGet(node, "schema"); schemaNode != nil {
		schema, err := buildSchema(schemaNode, ptr+"/schema")
		if err != nil {
			return nil, err
		}
		p.Schema = schema
	} else {
		p.Schema = &SchemaNode{Kind: KindPrimitive, Type: "string"}
	}
	return p, nil
}

// contentSchema extracts the body schema of a request body or response,
// preferring application/json and falling back to */*. A missing content
// block or media schema is not an error: the body is simply untyped.
func contentSchema(node *yaml.Node, ptr string) (*SchemaNode, error) {
	content := deref(mapGet(node, "content"))
	if content == nil || content.Kind != yaml.MappingNode {
		return nil, nil
	}
	for _, mime := range []string{"application/json", "*/*"} {
		media := deref(mapGet(content, mime))
		if media == nil {
			continue
		}
		schemaNode := mapGet(media, "schema")
		if schemaNode == nil {
			return nil, nil
		}
		return buildSchema(schemaNode, ptr+"/content/"+mime+"/schema")
	}
	return nil, nil
}

// fallbackOperationID derives a stable identifier from the method and path
// when the document omits operationId, e.g. GET /users/{id} -> get_users_id.
func fallbackOperationID(method HttpMethod, path string) string {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	cleaned := make([]string, 0, len(parts)+1)
	cleaned = append(cleaned, string(method))
	for _, part := range parts {
		part = strings.NewReplacer("{", "", "}", "").Replace(part)
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}
	return strings.Join(cleaned, "_")
}

// pathPointer renders a JSON-pointer location for a path key, escaping the
// slashes inside the key itself (e.g. /pets/{id} -> #/paths/~1pets~1{id}).
func pathPointer(path string) string {
	escaped := strings.ReplaceAll(strings.ReplaceAll(path, "~", "~0"), "/", "~1")
	return "#/paths/" + escaped
}

// deref follows YAML alias nodes so anchors behave like inline content.
func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// mapGet returns the value node for key in a mapping node, or nil.
func mapGet(n *yaml.Node, key string) *yaml.Node {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// forEachEntry walks a mapping node's entries in document order. The callback
// returns false to stop early.
func forEachEntry(n *yaml.Node, fn func(key string, value *yaml.Node) bool) {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if !fn(n.Content[i].Value, n.Content[i+1]) {
			return
		}
	}
}

func scalarString(n *yaml.Node) string {
	n = deref(n)
	if n == nil || n.Kind != yaml.ScalarNode {
		return ""
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return ""
	}
	return cast.ToString(v)
}

func scalarBool(n *yaml.Node) bool {
	n = deref(n)
	if n == nil || n.Kind != yaml.ScalarNode {
		return false
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return false
	}
	return cast.ToBool(v)
}

func stringSlice(n *yaml.Node) []string {
	n = deref(n)
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	var v []any
	if err := n.Decode(&v); err != nil {
		return nil
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil
	}
	return out
}
