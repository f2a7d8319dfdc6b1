package spec

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// ValidateDocument runs the full OpenAPI 3 structural validation over the raw
// document. It is strictly opt-in: the normalizer accepts anything it can
// classify, while this check enforces the complete specification and rejects
// documents the permissive path would let through.
func ValidateDocument(ctx context.Context, data []byte) error {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return &MalformedSpecError{Message: fmt.Sprintf("load document: %v", err), Cause: err}
	}
	if err := doc.Validate(ctx); err != nil {
		return &MalformedSpecError{Message: fmt.Sprintf("validate document: %v", err), Cause: err}
	}
	return nil
}
