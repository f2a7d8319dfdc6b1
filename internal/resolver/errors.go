package resolver

import "fmt"

// UnresolvedReferenceError reports a $ref whose target is not declared under
// components/schemas.
type UnresolvedReferenceError struct {
	Ref    string // missing target name
	Origin string // schema or operation the dangling reference was found in
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference %q in %s", e.Ref, e.Origin)
}

// NameCollisionError reports two distinct declared names that sanitize to
// the same identifier, which would silently merge generated definitions.
type NameCollisionError struct {
	Identifier string
	First      string
	Second     string
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("name collision: %q and %q both sanitize to %q", e.First, e.Second, e.Identifier)
}
