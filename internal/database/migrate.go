package database

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

// Migration is one versioned SQL schema change with its rollback.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

//go:embed migrations/*.sql
var migrationFS embed.FS

var migrations []Migration

func init() {
	loaded, err := LoadMigrations(migrationFS, "migrations")
	if err != nil {
		panic(fmt.Sprintf("load embedded migrations: %v", err))
	}
	migrations = loaded
}

// LoadMigrations reads NNNNNN_name.up.sql / NNNNNN_name.down.sql pairs from dir,
// sorted by version. Every up script needs a matching down script.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	seen := make(map[int]string)
	var out []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		base := strings.TrimSuffix(name, ".up.sql")
		versionPart, label, ok := strings.Cut(base, "_")
		if !ok || label == "" {
			return nil, fmt.Errorf("invalid migration file name %q", name)
		}
		version, err := strconv.Atoi(versionPart)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("invalid migration version in %q", name)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d (%s, %s)", version, prev, name)
		}
		seen[version] = name

		up, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read up migration %s: %w", name, err)
		}
		down, err := fs.ReadFile(fsys, path.Join(dir, base+".down.sql"))
		if err != nil {
			return nil, fmt.Errorf("failed to read down migration for %s: %w", name, err)
		}

		out = append(out, Migration{
			Version:    version,
			Name:       label,
			UpScript:   string(up),
			DownScript: string(down),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// GetMigrations returns the embedded migrations in version order.
func GetMigrations() []Migration {
	return migrations
}

// GetMigrationByVersion returns the embedded migration with the given version, or nil.
func GetMigrationByVersion(version int) *Migration {
	for i := range migrations {
		if migrations[i].Version == version {
			return &migrations[i]
		}
	}
	return nil
}

func (m *Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}
