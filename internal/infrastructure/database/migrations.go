package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

// MigrationsFS should be set by the migrations package to embed migration
// files. This allows migrations to be compiled into the binary.
//
// Usage:
//
//	//go:embed *.sql
//	var migrationsFS embed.FS
//
//	func init() {
//	    database.MigrationsFS = migrationsFS
//	}
var MigrationsFS embed.FS

// MigrationsDir is the directory within MigrationsFS containing migration
// files. "." when files are at the root of the embedded filesystem.
var MigrationsDir = "."

// Migration represents a single database migration.
type Migration struct {
	// Version is the migration version extracted from the filename.
	// Format: YYYYMMDD_HHMMSS (e.g., 20240301_120000)
	Version string

	// Name is the human-readable migration name.
	Name string

	// UpSQL contains the SQL to apply this migration.
	UpSQL string

	// DownSQL contains the SQL to rollback this migration.
	DownSQL string
}

// Migrate applies all pending migrations to the database.
// Migrations are applied in version order, each in its own transaction:
// a failing migration is rolled back, earlier ones stay committed, and
// re-running Migrate() after a fix continues from the failure point.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: If any migration fails (that migration is rolled back)
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	if len(migrations) == 0 {
		return nil
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// createMigrationsTable creates the schema_migrations table if it doesn't exist.
func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("executing create table: %w", err)
	}
	return nil
}

// appliedVersions returns the set of applied migration versions.
func (db *DB) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return applied, nil
}

// applyMigration applies a single migration within a transaction.
func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.Version,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}

// loadMigrations loads all migration files from the embedded filesystem,
// sorted by version. Files follow the naming convention
// YYYYMMDD_HHMMSS_description.up.sql / .down.sql.
func loadMigrations() ([]Migration, error) {
	var empty embed.FS
	if MigrationsFS == empty {
		return nil, nil // No embedded migrations registered
	}

	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		isUp := strings.HasSuffix(name, ".up.sql")
		isDown := strings.HasSuffix(name, ".down.sql")
		if !isUp && !isDown {
			continue
		}

		version, migName, err := parseMigrationFilename(name)
		if err != nil {
			return nil, err
		}

		data, err := fs.ReadFile(MigrationsFS, joinMigrationPath(name))
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", name, err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: migName}
			byVersion[version] = m
		}
		if isUp {
			m.UpSQL = string(data)
		} else {
			m.DownSQL = string(data)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			return nil, fmt.Errorf("migration %s has no up SQL", m.Version)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// parseMigrationFilename extracts the version and name from a migration
// filename such as "20240301_120000_initial_schema.up.sql".
func parseMigrationFilename(filename string) (version, name string, err error) {
	base := strings.TrimSuffix(strings.TrimSuffix(filename, ".up.sql"), ".down.sql")
	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 3 {
		return "", "", fmt.Errorf("invalid migration filename %q: want YYYYMMDD_HHMMSS_name", filename)
	}
	return parts[0] + "_" + parts[1], parts[2], nil
}

// joinMigrationPath builds the embedded-FS path for a migration file.
func joinMigrationPath(name string) string {
	if MigrationsDir == "." || MigrationsDir == "" {
		return name
	}
	return MigrationsDir + "/" + name
}
