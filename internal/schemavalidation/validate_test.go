package schemavalidation

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"glidetype/internal/geometry"
)

type schemaCase struct {
	name         string
	schemaPath   string
	instancePath string
}

func TestSchemaValidation(t *testing.T) {
	repoRoot := repoRoot(t)
	cases := []schemaCase{
		{
			name:         "keyboard-layout",
			schemaPath:   filepath.Join(repoRoot, "docs", "schema", "keyboard-layout-v1.schema.json"),
			instancePath: filepath.Join(repoRoot, "docs", "spec", "fixtures", "keyboard-layout-v1.json"),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			validateInstance(t, tc.schemaPath, tc.instancePath)
		})
	}
}

// TestFixtureParses keeps the published fixture loadable by the geometry
// package, not just schema-valid.
func TestFixtureParses(t *testing.T) {
	repoRoot := repoRoot(t)
	path := filepath.Join(repoRoot, "docs", "spec", "fixtures", "keyboard-layout-v1.json")

	kb, err := geometry.Load(path)
	if err != nil {
		t.Fatalf("load fixture layout: %v", err)
	}
	if kb.KeyCount() != 5 {
		t.Errorf("fixture key count = %d, want 5", kb.KeyCount())
	}
	if !kb.HasSweetSpotData(kb.KeyIndexOf('a')) {
		t.Error("fixture 'a' key should carry sweet-spot data")
	}
	list := kb.ProximityCodePoints('e', geometry.NotACoordinate, geometry.NotACoordinate)
	if len(list) == 0 || list[0] != 'e' {
		t.Errorf("fixture proximity list for 'e' = %v", list)
	}
}

func validateInstance(t *testing.T, schemaPath, instancePath string) {
	schemaData, err := os.ReadFile(schemaPath)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}

	instanceData, err := os.ReadFile(instancePath)
	if err != nil {
		t.Fatalf("read instance: %v", err)
	}

	var instance any
	if err := json.Unmarshal(instanceData, &instance); err != nil {
		t.Fatalf("unmarshal instance: %v", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaPath, bytes.NewReader(schemaData)); err != nil {
		t.Fatalf("add schema resource: %v", err)
	}
	schema, err := compiler.Compile(schemaPath)
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}

	if err := schema.Validate(instance); err != nil {
		t.Fatalf("schema validation failed for %s: %v", filepath.Base(instancePath), err)
	}
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot locate caller")
	}
	return filepath.Dir(filepath.Dir(filepath.Dir(file)))
}
