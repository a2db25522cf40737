package db

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const migrationsTestPrefix = "db:migrations_test"

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("%s - failed to write %s: %v", migrationsTestPrefix, name, err)
		}
	}
}

func TestLoadMigrationFiles_SortedSQLOnly(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"003_third.sql":  "THIRD",
		"001_first.sql":  "FIRST",
		"002_second.sql": "SECOND",
		"README.md":      "# Migrations",
		"notes.txt":      "skip me",
	})
	if err := os.Mkdir(filepath.Join(dir, "nested.sql"), 0o755); err != nil {
		t.Fatalf("%s - mkdir: %v", migrationsTestPrefix, err)
	}

	result, err := LoadMigrationFiles(dir)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", migrationsTestPrefix, err)
	}
	var names, bodies []string
	for _, m := range result {
		names = append(names, m.Name)
		bodies = append(bodies, m.SQL)
	}
	if got := strings.Join(names, ","); got != "001_first.sql,002_second.sql,003_third.sql" {
		t.Errorf("%s - names = %s", migrationsTestPrefix, got)
	}
	if got := strings.Join(bodies, ","); got != "FIRST,SECOND,THIRD" {
		t.Errorf("%s - bodies = %s", migrationsTestPrefix, got)
	}
}

func TestLoadMigrationFiles_EmptyAndMissing(t *testing.T) {
	result, err := LoadMigrationFiles(t.TempDir())
	if err != nil || len(result) != 0 {
		t.Errorf("%s - empty dir: result=%v err=%v", migrationsTestPrefix, result, err)
	}

	if _, err := LoadMigrationFiles(filepath.Join(t.TempDir(), "nonexistent")); err == nil {
		t.Errorf("%s - expected error for non-existent directory", migrationsTestPrefix)
	}
}

func TestLoadMigrationFiles_RepoMigrations(t *testing.T) {
	result, err := LoadMigrationFiles(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", migrationsTestPrefix, err)
	}
	if len(result) == 0 || !strings.Contains(result[0].SQL, "CREATE TABLE IF NOT EXISTS launch_journal") {
		t.Errorf("%s - first migration does not create launch_journal", migrationsTestPrefix)
	}
}
