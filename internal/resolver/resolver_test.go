package resolver

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/mcpgen/openapi2mcp/internal/spec"
)

const orgSpec = `openapi: 3.0.0
info:
  title: Org API
  version: "1.0"
components:
  schemas:
    Employee:
      type: object
      required: [name]
      properties:
        name:
          type: string
        manager:
          $ref: '#/components/schemas/Employee'
        department:
          $ref: '#/components/schemas/Department'
    Department:
      type: object
      properties:
        title:
          type: string
        company:
          $ref: '#/components/schemas/Company'
        head:
          $ref: '#/components/schemas/Employee'
    Company:
      type: object
      properties:
        name:
          type: string
paths:
  /employees/{id}:
    get:
      operationId: getEmployee
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Employee'
`

func resolve(t *testing.T, doc string) *EmissionPlan {
	t.Helper()
	root, err := spec.Parse([]byte(strings.TrimSpace(doc)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ns, err := spec.Normalize(root)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	plan, err := Resolve(ns)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return plan
}

func typeNames(plan *EmissionPlan) []string {
	out := make([]string, 0, len(plan.Types))
	for _, te := range plan.Types {
		out = append(out, te.Name)
	}
	return out
}

func field(t *testing.T, te TypeEmission, name string) FieldEmission {
	t.Helper()
	for _, f := range te.Fields {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("%s: missing field %q", te.Name, name)
	return FieldEmission{}
}

func TestResolve_CyclePostOrder(t *testing.T) {
	t.Parallel()
	plan := resolve(t, orgSpec)

	// Employee is in progress while Department resolves, so the Company
	// dependency is emitted first, then Department, then Employee. The
	// Department->Employee edge is the only late-bound one.
	want := []string{"Company", "Department", "Employee"}
	if got := typeNames(plan); !reflect.DeepEqual(got, want) {
		t.Fatalf("type order: got %v, want %v", got, want)
	}

	emp := plan.Types[2]
	mgr := field(t, emp, "manager")
	if mgr.Type.Kind != TypeNamed || mgr.Type.Name != "Employee" || !mgr.Type.LateBound {
		t.Errorf("Employee.manager: expected late-bound self reference, got %+v", mgr.Type)
	}
	dep := field(t, emp, "department")
	if dep.Type.Kind != TypeNamed || dep.Type.Name != "Department" || dep.Type.LateBound {
		t.Errorf("Employee.department: expected resolved reference, got %+v", dep.Type)
	}
	if !field(t, emp, "name").Required || mgr.Required {
		t.Errorf("Employee required flags wrong")
	}

	depT := plan.Types[1]
	head := field(t, depT, "head")
	if !head.Type.LateBound {
		t.Errorf("Department.head: expected late-bound back edge, got %+v", head.Type)
	}
	company := field(t, depT, "company")
	if company.Type.LateBound {
		t.Errorf("Department.company: forward dependency must not be late-bound")
	}

	if len(plan.Operations) != 1 {
		t.Fatalf("operations: got %d", len(plan.Operations))
	}
	op := plan.Operations[0]
	if op.Name != "getEmployee" || op.Method != spec.GET {
		t.Errorf("operation: got %+v", op)
	}
	if op.Output == nil || op.Output.Kind != TypeNamed || op.Output.Name != "Employee" {
		t.Errorf("operation output: got %+v", op.Output)
	}
	if len(op.Params) != 1 || op.Params[0].Name != "id" || !op.Params[0].Required {
		t.Errorf("operation params: got %+v", op.Params)
	}
}

func TestResolve_SelfReferenceOnly(t *testing.T) {
	t.Parallel()
	plan := resolve(t, `
openapi: 3.0.0
components:
  schemas:
    Node:
      type: object
      properties:
        next:
          $ref: '#/components/schemas/Node'
`)
	if len(plan.Types) != 1 || plan.Types[0].Name != "Node" {
		t.Fatalf("types: got %v", typeNames(plan))
	}
	next := field(t, plan.Types[0], "next")
	if !next.Type.LateBound {
		t.Errorf("Node.next: expected late-bound, got %+v", next.Type)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	t.Parallel()
	a := resolve(t, orgSpec)
	b := resolve(t, orgSpec)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("plans differ across runs")
	}
}

func TestResolve_DanglingReference(t *testing.T) {
	t.Parallel()
	root, err := spec.Parse([]byte(`
openapi: 3.0.0
components:
  schemas:
    A:
      type: object
      properties:
        b:
          $ref: '#/components/schemas/Missing'
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ns, err := spec.Normalize(root)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	_, err = Resolve(ns)
	var ure *UnresolvedReferenceError
	if !errors.As(err, &ure) {
		t.Fatalf("expected UnresolvedReferenceError, got %v", err)
	}
	if ure.Ref != "Missing" || ure.Origin != "schema A" {
		t.Errorf("error fields: got %+v", ure)
	}
}

func TestResolve_NameCollision(t *testing.T) {
	t.Parallel()
	root, err := spec.Parse([]byte(`
openapi: 3.0.0
components:
  schemas:
    user-record:
      type: object
    user_record:
      type: object
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ns, err := spec.Normalize(root)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	_, err = Resolve(ns)
	var nce *NameCollisionError
	if !errors.As(err, &nce) {
		t.Fatalf("expected NameCollisionError, got %v", err)
	}
	if nce.Identifier != "user_record" {
		t.Errorf("identifier: got %q", nce.Identifier)
	}
}

func TestResolve_OperationNameCollision(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			// The same operationId on two operations would emit two handler
			// classes with one name, the second shadowing the first.
			"duplicate operationId",
			`
openapi: 3.0.0
paths:
  /a:
    get:
      operationId: dup
      responses:
        "200": {description: ok}
  /b:
    get:
      operationId: dup
      responses:
        "200": {description: ok}
`,
			"dup",
		},
		{
			// Derived IDs can collapse too: GET /a/b and GET /a_b both
			// fall back to get_a_b.
			"derived id collapse",
			`
openapi: 3.0.0
paths:
  /a/b:
    get:
      responses:
        "200": {description: ok}
  /a_b:
    get:
      responses:
        "200": {description: ok}
`,
			"get_a_b",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			root, err := spec.Parse([]byte(strings.TrimSpace(tc.doc)))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			ns, err := spec.Normalize(root)
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			_, err = Resolve(ns)
			var nce *NameCollisionError
			if !errors.As(err, &nce) {
				t.Fatalf("expected NameCollisionError, got %v", err)
			}
			if nce.Identifier != tc.want {
				t.Errorf("identifier: got %q, want %q", nce.Identifier, tc.want)
			}
		})
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	t.Parallel()
	cases := []struct{ in, want string }{
		{"Pet", "Pet"},
		{"already_valid", "already_valid"},
		{"user-record", "user_record"},
		{"My Model", "My_Model"},
		{"123abc", "_123abc"},
		{"a.b.c", "a_b_c"},
	}
	for _, tc := range cases {
		if got := sanitizeIdentifier(tc.in); got != tc.want {
			t.Errorf("sanitizeIdentifier(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolve_AliasSchemas(t *testing.T) {
	t.Parallel()
	plan := resolve(t, `
openapi: 3.0.0
components:
  schemas:
    Tag:
      type: string
    TagList:
      type: array
      items:
        $ref: '#/components/schemas/Tag'
`)
	want := []string{"Tag", "TagList"}
	if got := typeNames(plan); !reflect.DeepEqual(got, want) {
		t.Fatalf("type order: got %v, want %v", got, want)
	}
	if plan.Types[0].Alias == nil || plan.Types[0].Alias.Kind != TypePrimitive || plan.Types[0].Alias.Name != "string" {
		t.Errorf("Tag alias: got %+v", plan.Types[0].Alias)
	}
	list := plan.Types[1].Alias
	if list == nil || list.Kind != TypeList || list.Elem.Kind != TypeNamed || list.Elem.Name != "Tag" {
		t.Errorf("TagList alias: got %+v", list)
	}
}
