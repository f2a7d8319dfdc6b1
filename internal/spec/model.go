package spec

// Normalized in-memory model produced by the loader and consumed by the
// resolver. All entities are read-only after Normalize returns.

type HttpMethod string

const (
	GET     HttpMethod = "get"
	POST    HttpMethod = "post"
	PUT     HttpMethod = "put"
	DELETE  HttpMethod = "delete"
	PATCH   HttpMethod = "patch"
	HEAD    HttpMethod = "head"
	OPTIONS HttpMethod = "options"
)

// Kind classifies a SchemaNode. The set is closed: the normalizer rejects
// shapes it cannot classify instead of guessing.
type Kind int

const (
	KindObject Kind = iota
	KindArray
	KindPrimitive
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindPrimitive:
		return "primitive"
	case KindReference:
		return "reference"
	}
	return "unknown"
}

// SchemaNode is one node of the schema graph. The kind-specific field group
// selected by Kind is populated. References are kept as bare names and
// resolved later, so cyclic documents never recurse at load time.
type SchemaNode struct {
	Name string // declared name for top-level entries, empty for nested nodes
	Kind Kind

	// KindObject
	Properties []Property
	Required   []string

	// KindArray
	Items *SchemaNode

	// KindPrimitive: string|integer|number|boolean
	Type   string
	Format string

	// KindReference: target schema name from #/components/schemas/<name>
	Ref string

	Description string
}

// Property is a named member of an object schema. Order follows the source
// document and determines generated field order.
type Property struct {
	Name   string
	Schema *SchemaNode
}

// IsRequired reports whether the named property appears in the object's
// required list.
func (n *SchemaNode) IsRequired(prop string) bool {
	for _, r := range n.Required {
		if r == prop {
			return true
		}
	}
	return false
}

// ParameterSpec describes one operation parameter.
type ParameterSpec struct {
	Name     string
	In       string // path|query|header|cookie
	Required bool
	Schema   *SchemaNode
}

// ResponseSpec pairs a status code ("200", "default") with its body schema.
type ResponseSpec struct {
	Status string
	Schema *SchemaNode // nil when the response declares no JSON body
}

// OperationRecord is one path+method pair in document order.
type OperationRecord struct {
	ID          string // operationId or the method_path fallback
	Method      HttpMethod
	Path        string
	Summary     string
	Description string
	Parameters  []ParameterSpec
	RequestBody *SchemaNode // nil when the operation has no JSON body
	Responses   []ResponseSpec
}

// NormalizedSpec is the loader's output: named schema definitions plus the
// operation list. SchemaNames preserves document order so the resolver can
// traverse deterministically; the map exists for lookup only.
type NormalizedSpec struct {
	Title       string
	Version     string
	Description string
	SchemaNames []string
	Schemas     map[string]*SchemaNode
	Operations  []OperationRecord
}
