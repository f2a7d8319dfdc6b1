// Package resolver turns a normalized document into an emission plan: named
// schemas ordered so that every model is declared before its uses, with
// cycles broken by late-bound references.
package resolver

import (
	"regexp"
	"strings"

	"github.com/mcpgen/openapi2mcp/internal/spec"
)

// visitState tracks DFS progress per schema name.
type visitState int

const (
	unvisited visitState = iota
	inProgress
	resolved
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type resolver struct {
	ns      *spec.NormalizedSpec
	state   map[string]visitState
	names   map[string]string // sanitized model identifier -> declared schema name
	opNames map[string]string // sanitized operation identifier -> operationId
	plan    *EmissionPlan
}

// Resolve walks the schema graph depth-first in document order and returns
// the emission plan. The traversal is deterministic: the same document
// always yields the same plan, and resolving twice yields equal plans.
func Resolve(ns *spec.NormalizedSpec) (*EmissionPlan, error) {
	r := &resolver{
		ns:      ns,
		state:   make(map[string]visitState, len(ns.SchemaNames)),
		names:   make(map[string]string),
		opNames: make(map[string]string),
		plan: &EmissionPlan{
			Title:       ns.Title,
			Version:     ns.Version,
			Description: ns.Description,
		},
	}

	for _, name := range ns.SchemaNames {
		if _, err := r.modelIdentifier(name); err != nil {
			return nil, err
		}
	}

	for _, name := range ns.SchemaNames {
		if err := r.visit(name); err != nil {
			return nil, err
		}
	}

	for _, op := range ns.Operations {
		emission, err := r.resolveOperation(&op)
		if err != nil {
			return nil, err
		}
		r.plan.Operations = append(r.plan.Operations, *emission)
	}

	return r.plan, nil
}

// visit resolves one named schema and everything it depends on, emitting the
// schema after its dependencies (post-order). A reference back into an
// in-progress schema is a cycle edge and is left late-bound instead of being
// followed.
func (r *resolver) visit(name string) error {
	switch r.state[name] {
	case resolved, inProgress:
		return nil
	}
	r.state[name] = inProgress

	node := r.ns.Schemas[name]
	origin := "schema " + name
	emission := TypeEmission{
		Name:        sanitizeIdentifier(name),
		Source:      name,
		Kind:        node.Kind,
		Description: node.Description,
	}

	switch node.Kind {
	case spec.KindObject:
		for _, prop := range node.Properties {
			ref, err := r.typeRef(prop.Schema, origin)
			if err != nil {
				return err
			}
			emission.Fields = append(emission.Fields, FieldEmission{
				Name:        prop.Name,
				Type:        *ref,
				Required:    node.IsRequired(prop.Name),
				Description: prop.Schema.Description,
			})
		}

	case spec.KindReference:
		// A top-level schema that is itself a reference becomes an alias.
		ref, err := r.typeRef(node, origin)
		if err != nil {
			return err
		}
		emission.Alias = ref

	default: // KindArray, KindPrimitive
		ref, err := r.typeRef(node, origin)
		if err != nil {
			return err
		}
		emission.Alias = ref
	}

	r.state[name] = resolved
	r.plan.Types = append(r.plan.Types, emission)
	return nil
}

// typeRef resolves one schema node into a type expression, recursing through
// named references first so they are emitted before this use.
func (r *resolver) typeRef(node *spec.SchemaNode, origin string) (*TypeRef, error) {
	switch node.Kind {
	case spec.KindReference:
		if _, ok := r.ns.Schemas[node.Ref]; !ok {
			return nil, &UnresolvedReferenceError{Ref: node.Ref, Origin: origin}
		}
		lateBound := r.state[node.Ref] == inProgress
		if !lateBound {
			if err := r.visit(node.Ref); err != nil {
				return nil, err
			}
		}
		return &TypeRef{Kind: TypeNamed, Name: sanitizeIdentifier(node.Ref), LateBound: lateBound}, nil

	case spec.KindArray:
		elem, err := r.typeRef(node.Items, origin)
		if err != nil {
			return nil, err
		}
		return &TypeRef{Kind: TypeList, Elem: elem}, nil

	case spec.KindObject:
		// Anonymous inline objects are not lifted into named models; they
		// stay generic mappings.
		for _, prop := range node.Properties {
			if _, err := r.typeRef(prop.Schema, origin); err != nil {
				return nil, err
			}
		}
		return &TypeRef{Kind: TypeMap}, nil

	default:
		return &TypeRef{Kind: TypePrimitive, Name: node.Type, Format: node.Format}, nil
	}
}

func (r *resolver) resolveOperation(op *spec.OperationRecord) (*OperationEmission, error) {
	origin := "operation " + op.ID
	name, err := r.operationIdentifier(op.ID)
	if err != nil {
		return nil, err
	}

	emission := &OperationEmission{
		Name:        name,
		Method:      op.Method,
		Path:        op.Path,
		Summary:     op.Summary,
		Description: op.Description,
	}

	for _, p := range op.Parameters {
		ref, err := r.typeRef(p.Schema, origin)
		if err != nil {
			return nil, err
		}
		emission.Params = append(emission.Params, ParamEmission{
			Name:     p.Name,
			In:       p.In,
			Required: p.Required,
			Type:     *ref,
		})
	}

	if op.RequestBody != nil {
		ref, err := r.typeRef(op.RequestBody, origin)
		if err != nil {
			return nil, err
		}
		emission.Input = ref
	}

	if resp := selectResponse(op.Responses); resp != nil && resp.Schema != nil {
		ref, err := r.typeRef(resp.Schema, origin)
		if err != nil {
			return nil, err
		}
		emission.Output = ref
	}

	return emission, nil
}

// selectResponse picks the first 2xx response in document order, then the
// default response.
func selectResponse(responses []spec.ResponseSpec) *spec.ResponseSpec {
	for i := range responses {
		s := responses[i].Status
		if len(s) == 3 && strings.HasPrefix(s, "2") {
			return &responses[i]
		}
	}
	for i := range responses {
		if responses[i].Status == "default" {
			return &responses[i]
		}
	}
	return nil
}

// modelIdentifier sanitizes a declared schema name, failing when two
// distinct names collapse to one identifier. Schema names are unique mapping
// keys, so a repeat of the same declared name never occurs here.
func (r *resolver) modelIdentifier(name string) (string, error) {
	ident := sanitizeIdentifier(name)
	if prev, ok := r.names[ident]; ok && prev != name {
		return "", &NameCollisionError{Identifier: ident, First: prev, Second: name}
	}
	r.names[ident] = name
	return ident, nil
}

// operationIdentifier is stricter than modelIdentifier: every operation is a
// distinct record, so any repeated identifier — a duplicated operationId or
// two derived IDs collapsing to the same name — would emit one handler class
// shadowing another.
func (r *resolver) operationIdentifier(id string) (string, error) {
	ident := sanitizeIdentifier(id)
	if prev, ok := r.opNames[ident]; ok {
		return "", &NameCollisionError{Identifier: ident, First: prev, Second: id}
	}
	r.opNames[ident] = id
	return ident, nil
}

// sanitizeIdentifier keeps names that are already valid identifiers
// verbatim; otherwise every invalid rune becomes an underscore, with a
// leading underscore added when the name starts with a digit.
func sanitizeIdentifier(name string) string {
	if identPattern.MatchString(name) {
		return name
	}
	var b strings.Builder
	for i, r := range name {
		valid := r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9' && i > 0)
		if i == 0 && r >= '0' && r <= '9' {
			b.WriteByte('_')
			b.WriteRune(r)
			continue
		}
		if valid {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "_"
	}
	return out
}
