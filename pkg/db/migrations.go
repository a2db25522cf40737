package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Migration is one forward-only schema step.
type Migration struct {
	Name string
	SQL  string
}

// LoadMigrationFiles reads the .sql files in dir in name order. Directories
// and other extensions are skipped.
func LoadMigrationFiles(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("db:migrations - failed to read migration dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("db:migrations - failed to read %s: %w", name, err)
		}
		migrations = append(migrations, Migration{Name: name, SQL: string(data)})
	}
	return migrations, nil
}
