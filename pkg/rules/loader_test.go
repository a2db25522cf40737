package rules

import (
	"os"
	"path/filepath"
	"testing"
)

const loaderTestPrefix = "rules:loader_test"

func TestLoadRuleSet_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `name: custom
version: "2.0.0"
rules:
  - capability: android.permission.POST_NOTIFICATIONS
    platform: "< 33"
  - capability: android.permission.WRITE_EXTERNAL_STORAGE
    platform: ">= 29"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("%s - write: %v", loaderTestPrefix, err)
	}

	set, err := LoadRuleSet(path)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", loaderTestPrefix, err)
	}
	if set.Name != "custom" || len(set.Rules) != 2 {
		t.Fatalf("%s - got %+v", loaderTestPrefix, set)
	}
	if set.Rules[0].Platform != "< 33" {
		t.Errorf("%s - Rules[0].Platform = %q", loaderTestPrefix, set.Rules[0].Platform)
	}
}

func TestLoadRuleSet_EnvFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "env.yaml")
	if err := os.WriteFile(path, []byte("name: from-env\nrules: []\n"), 0o600); err != nil {
		t.Fatalf("%s - write: %v", loaderTestPrefix, err)
	}
	t.Setenv("RULES_FILE", path)

	set, err := LoadRuleSet(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", loaderTestPrefix, err)
	}
	if set.Name != "from-env" {
		t.Errorf("%s - Name = %q, want from-env", loaderTestPrefix, set.Name)
	}
}

func TestLoadRuleSet_InvalidFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("rules: [unterminated"), 0o600); err != nil {
		t.Fatalf("%s - write: %v", loaderTestPrefix, err)
	}
	t.Setenv("RULES_FILE", "")

	set, err := LoadRuleSet(path)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", loaderTestPrefix, err)
	}
	if set.Name != GetDefaultRuleSet().Name {
		t.Errorf("%s - Name = %q, want default", loaderTestPrefix, set.Name)
	}
}
