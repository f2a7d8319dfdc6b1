package spec

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse decodes raw UTF-8 JSON or YAML bytes into a generic node tree.
// yaml.v3 handles both syntaxes and, unlike map[string]any decoding, keeps
// mapping keys in document order, which later fixes generated field order.
//
// Parse is the I/O-side boundary: everything after it operates on the node
// tree and never touches raw bytes again.
func Parse(data []byte) (*yaml.Node, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, &MalformedSpecError{Message: "document is empty"}
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &MalformedSpecError{Message: fmt.Sprintf("parse document: %v", err), Cause: err}
	}
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		return root.Content[0], nil
	}
	return &root, nil
}
