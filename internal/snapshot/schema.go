package snapshot

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(context.Background(), func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}
		if err := createSnapshotTables(tx); err != nil {
			return err
		}
		if err := createRunsTable(tx); err != nil {
			return err
		}
		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Database schema initialized", "version", currentSchemaVersion)
		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", "version", version)
		return nil
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	db.logger.Info("Running database migrations",
		"from_version", version,
		"to_version", currentSchemaVersion,
	)

	// Version 0 is a file created without a schema (an interrupted first
	// open); the create statements are idempotent.
	return db.WithTx(context.Background(), func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}
		if err := createSnapshotTables(tx); err != nil {
			return err
		}
		if err := createRunsTable(tx); err != nil {
			return err
		}
		return setSchemaVersion(tx, currentSchemaVersion)
	})
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	ctx := context.Background()

	var tableName string
	err := db.QueryRowContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("DELETE FROM schema_version")
	if err != nil {
		return err
	}
	_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// createSchemaVersionTable creates the schema_version tracking table
func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createSnapshotTables creates the baseline tables. snapshot_meta holds a
// saved_at row whenever a baseline exists, so an empty project can be told
// apart from no baseline at all.
func createSnapshotTables(tx *sql.Tx) error {
	statements := []struct {
		name string
		sql  string
	}{
		{"snapshot_meta", `
			CREATE TABLE IF NOT EXISTS snapshot_meta (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`},
		{"modules", `
			CREATE TABLE IF NOT EXISTS modules (
				id TEXT PRIMARY KEY,
				path TEXT NOT NULL,
				content_hash TEXT NOT NULL
			)`},
		{"module_deps", `
			CREATE TABLE IF NOT EXISTS module_deps (
				module_id TEXT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
				dependency TEXT NOT NULL,
				PRIMARY KEY (module_id, dependency)
			)`},
		{"test_suites", `
			CREATE TABLE IF NOT EXISTS test_suites (
				path TEXT PRIMARY KEY,
				content_hash TEXT NOT NULL
			)`},
		{"test_suite_deps", `
			CREATE TABLE IF NOT EXISTS test_suite_deps (
				suite_path TEXT NOT NULL REFERENCES test_suites(path) ON DELETE CASCADE,
				dependency TEXT NOT NULL,
				PRIMARY KEY (suite_path, dependency)
			)`},
	}

	for _, st := range statements {
		if _, err := tx.Exec(st.sql); err != nil {
			return fmt.Errorf("failed to create %s table: %w", st.name, err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_module_deps_dependency ON module_deps(dependency)",
		"CREATE INDEX IF NOT EXISTS idx_test_suite_deps_dependency ON test_suite_deps(dependency)",
	}
	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create snapshot index: %w", err)
		}
	}
	return nil
}

// createRunsTable creates the run history table
func createRunsTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			selected INTEGER NOT NULL,
			total INTEGER NOT NULL,
			modules INTEGER NOT NULL,
			saved INTEGER NOT NULL,
			outcome TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}
	if _, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)"); err != nil {
		return fmt.Errorf("failed to create runs index: %w", err)
	}
	return nil
}
