package spec

import "fmt"

// MalformedSpecError reports a structurally invalid document: unsupported
// version, bad reference syntax, or a schema shape that cannot be classified.
// Path points at the offending entity with a JSON-pointer-like location so
// the message is actionable.
type MalformedSpecError struct {
	Path    string // e.g. "#/components/schemas/Pet/properties/tag"
	Message string
	Cause   error
}

func (e *MalformedSpecError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("malformed spec at %s: %s", e.Path, e.Message)
	}
	return "malformed spec: " + e.Message
}

func (e *MalformedSpecError) Unwrap() error { return e.Cause }

func malformed(path, format string, args ...any) *MalformedSpecError {
	return &MalformedSpecError{Path: path, Message: fmt.Sprintf(format, args...)}
}
