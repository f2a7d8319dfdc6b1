package resolver

import "github.com/mcpgen/openapi2mcp/internal/spec"

// RefKind classifies a TypeRef.
type RefKind int

const (
	// TypePrimitive is a scalar: string, integer, number or boolean, with an
	// optional format qualifier.
	TypePrimitive RefKind = iota
	// TypeNamed points at an emitted model by its sanitized name. LateBound
	// marks references that close a cycle and must be rendered as forward
	// declarations.
	TypeNamed
	// TypeList wraps an element type.
	TypeList
	// TypeMap stands in for anonymous inline objects, which are not lifted
	// into named models.
	TypeMap
	// TypeAny is an untyped value (body with no schema).
	TypeAny
)

// TypeRef is a resolved type expression. It never points back into the
// schema graph: named references carry only the target's sanitized name, so
// a plan is safe to walk without cycle guards.
type TypeRef struct {
	Kind      RefKind
	Name      string // TypePrimitive: string|integer|number|boolean; TypeNamed: model name
	Format    string // TypePrimitive only, e.g. date-time
	Elem      *TypeRef
	LateBound bool
}

// FieldEmission is one field of an emitted model, in document order.
type FieldEmission struct {
	Name        string
	Type        TypeRef
	Required    bool
	Description string
}

// TypeEmission is one named type ready to be rendered. Exactly one of
// Fields (object models) or Alias (top-level array and primitive schemas)
// is meaningful, selected by Kind.
type TypeEmission struct {
	Name        string    // sanitized identifier
	Source      string    // declared schema name before sanitization
	Kind        spec.Kind // KindObject or the aliased kind
	Fields      []FieldEmission
	Alias       *TypeRef
	Description string
}

// ParamEmission is one resolved operation parameter.
type ParamEmission struct {
	Name     string
	In       string
	Required bool
	Type     TypeRef
}

// OperationEmission is one resolved operation. Output is the body type of
// the first 2xx response in document order, falling back to the default
// response; nil when the operation produces no typed body.
type OperationEmission struct {
	Name        string // sanitized operationId
	Method      spec.HttpMethod
	Path        string
	Summary     string
	Description string
	Params      []ParamEmission
	Input       *TypeRef // request body, nil when absent
	Output      *TypeRef
}

// EmissionPlan is the resolver's output. Types are in dependency
// post-order: every model appears after the models it references, except
// across late-bound edges. Operations keep document order.
type EmissionPlan struct {
	Title       string
	Version     string
	Description string
	Types       []TypeEmission
	Operations  []OperationEmission
}
