package spec

import (
	"context"
	"errors"
	"testing"
)

func TestValidateDocument(t *testing.T) {
	t.Parallel()
	valid := []byte(`
openapi: 3.0.0
info:
  title: V
  version: "1"
paths: {}
`)
	if err := ValidateDocument(context.Background(), valid); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}

	// Missing info is accepted by the permissive normalizer but must fail
	// strict validation.
	invalid := []byte(`
openapi: 3.0.0
paths: {}
`)
	err := ValidateDocument(context.Background(), invalid)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var mse *MalformedSpecError
	if !errors.As(err, &mse) {
		t.Fatalf("expected MalformedSpecError, got %T", err)
	}
}
