package database

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Migration represents one schema migration read from disk. Files are
// named NNN_description.up.sql (and optionally .down.sql).
type Migration struct {
	Version  string
	Title    string
	UpSQL    string
	DownSQL  string
	Checksum string
}

// MigrationExecutor applies pending migrations and refuses to run when
// an already-applied migration file has been edited.
type MigrationExecutor struct {
	db *sql.DB
}

// NewMigrationExecutor creates a new migration executor
func NewMigrationExecutor(db *sql.DB) *MigrationExecutor {
	return &MigrationExecutor{db: db}
}

// RunMigrations executes all pending migrations from the migrations directory
func (m *MigrationExecutor) RunMigrations(migrationsPath string) error {
	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := m.readMigrationFiles(migrationsPath)
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	if err := m.validateChecksums(migrations); err != nil {
		return fmt.Errorf("migration validation failed: %w", err)
	}

	applied, err := m.appliedVersions()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if _, ok := applied[migration.Version]; ok {
			continue
		}
		if err := m.execute(migration); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
		}
		slog.Info("Applied migration", "version", migration.Version, "title", migration.Title)
	}

	return nil
}

func (m *MigrationExecutor) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			title VARCHAR(500),
			checksum VARCHAR(64),
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := m.db.Exec(query)
	return err
}

func (m *MigrationExecutor) readMigrationFiles(migrationsPath string) ([]Migration, error) {
	files, err := os.ReadDir(migrationsPath)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]*Migration)
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			continue
		}
		version := parts[0]

		isUp := strings.HasSuffix(name, ".up.sql")
		isDown := strings.HasSuffix(name, ".down.sql")
		if !isUp && !isDown {
			continue
		}

		content, err := os.ReadFile(filepath.Join(migrationsPath, name))
		if err != nil {
			return nil, err
		}

		mig := byVersion[version]
		if mig == nil {
			title := strings.TrimSuffix(strings.TrimSuffix(parts[1], ".up.sql"), ".down.sql")
			title = strings.ReplaceAll(title, "_", " ")
			mig = &Migration{Version: version, Title: title}
			byVersion[version] = mig
		}

		if isUp {
			mig.UpSQL = string(content)
			mig.Checksum = checksum(string(content))
		} else {
			mig.DownSQL = string(content)
		}
	}

	var migrations []Migration
	for _, mig := range byVersion {
		if mig.UpSQL != "" {
			migrations = append(migrations, *mig)
		}
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func (m *MigrationExecutor) appliedVersions() (map[string]string, error) {
	rows, err := m.db.Query(`SELECT version, checksum FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			slog.Error("Failed to close rows", "error", err)
		}
	}(rows)

	applied := make(map[string]string)
	for rows.Next() {
		var version string
		var sum sql.NullString
		if err := rows.Scan(&version, &sum); err != nil {
			return nil, err
		}
		applied[version] = sum.String
	}
	return applied, rows.Err()
}

func (m *MigrationExecutor) validateChecksums(migrations []Migration) error {
	applied, err := m.appliedVersions()
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		sum, ok := applied[migration.Version]
		if !ok || sum == "" {
			continue
		}
		if sum != migration.Checksum {
			return fmt.Errorf(
				"applied migration %s (%s) has been modified on disk; restore the original file or add a new migration",
				migration.Version, migration.Title,
			)
		}
	}
	return nil
}

func (m *MigrationExecutor) execute(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			slog.Error("Failed to rollback transaction", "error", err)
		}
	}()

	if _, err := tx.Exec(migration.UpSQL); err != nil {
		return fmt.Errorf("migration SQL failed: %w", err)
	}

	query := `INSERT INTO schema_migrations (version, title, checksum) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(query, migration.Version, migration.Title, migration.Checksum); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

func checksum(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
