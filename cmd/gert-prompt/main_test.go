package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestRunValidate(t *testing.T) {
	cases := []struct {
		name    string
		kind    string
		content string
		wantErr bool
	}{
		{
			name:    "valid prompt",
			kind:    "prompt",
			content: "id: greet\nname: greet\nuser_message_template: \"hi {{name}}\"\n",
		},
		{
			name:    "prompt missing template and chain",
			kind:    "prompt",
			content: "id: broken\nname: broken\n",
			wantErr: true,
		},
		{
			name:    "valid gate",
			kind:    "gate",
			content: "id: tests-pass\nname: Tests pass\ntype: verification\nseverity: high\ncriteria:\n  - all tests pass\nverify_command: \"go test ./...\"\n",
		},
		{
			name:    "gate missing verify_command",
			kind:    "gate",
			content: "id: tests-pass\nname: Tests pass\ntype: verification\nseverity: high\ncriteria:\n  - all tests pass\n",
			wantErr: true,
		},
		{
			name:    "gate invalid type",
			kind:    "gate",
			content: "id: tests-pass\nname: Tests pass\ntype: bogus\nseverity: high\ncriteria:\n  - n/a\n",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTemp(t, "descriptor.yaml", tc.content)
			validateKind = tc.kind
			err := runValidate(validateCmd, []string{path})
			if tc.wantErr && err == nil {
				t.Fatal("expected an error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRunValidate_UnknownKind(t *testing.T) {
	path := writeTemp(t, "descriptor.yaml", "id: x\n")
	validateKind = "bogus"
	if err := runValidate(validateCmd, []string{path}); err == nil {
		t.Fatal("expected an error for an unrecognized --kind")
	}
}

func TestRunSchemaExport(t *testing.T) {
	for _, kind := range []string{"prompt", "gate", "methodology"} {
		schemaExportKind = kind
		if err := runSchemaExport(schemaExportCmd, nil); err != nil {
			t.Fatalf("export %s schema: %v", kind, err)
		}
	}
}

func TestRunSchemaExport_UnknownKind(t *testing.T) {
	schemaExportKind = "bogus"
	if err := runSchemaExport(schemaExportCmd, nil); err == nil {
		t.Fatal("expected an error for an unrecognized --kind")
	}
}
