package storage

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_validation_indexes",
		Up:      migration002AddValidationIndexes,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// ================================================================
// MIGRATION FUNCTIONS
// ================================================================

// migration001InitialSchema creates the mapping, voucher and run tables.
// Amounts are stored as TEXT so decimal values round-trip exactly.
func migration001InitialSchema(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS category_mappings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_cost_center_id TEXT UNIQUE NOT NULL,
			target_category_id TEXT NOT NULL,
			source_name TEXT DEFAULT '',
			target_name TEXT DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS voucher_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_voucher_id TEXT UNIQUE NOT NULL,
			voucher_number TEXT DEFAULT '',
			voucher_date TIMESTAMP,
			status_code TEXT DEFAULT '',
			amount TEXT DEFAULT '0',
			credit_debit TEXT DEFAULT 'D',
			supplier_name TEXT DEFAULT '',
			cost_center_id TEXT DEFAULT '',
			cost_center_name TEXT DEFAULT '',
			accounting_type_code TEXT DEFAULT '',
			target_transaction_id TEXT DEFAULT '',
			validation_state TEXT DEFAULT 'unvalidated',
			validation_reason TEXT DEFAULT '',
			last_validated_at TIMESTAMP,
			sync_state TEXT DEFAULT 'pending',
			first_seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS sync_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			stage TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			status TEXT NOT NULL,
			stats_json TEXT DEFAULT '{}'
		)`,

		`CREATE INDEX IF NOT EXISTS idx_voucher_records_sync_state
		 ON voucher_records(sync_state)`,

		`CREATE INDEX IF NOT EXISTS idx_voucher_records_voucher_date
		 ON voucher_records(voucher_date)`,

		`CREATE INDEX IF NOT EXISTS idx_sync_runs_started
		 ON sync_runs(started_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// migration002AddValidationIndexes speeds up the invalid-voucher listing
// and the revalidation scan at the start of every voucher run.
func migration002AddValidationIndexes(db *sql.Tx) error {
	queries := []string{
		`CREATE INDEX IF NOT EXISTS idx_voucher_records_validation_state
		 ON voucher_records(validation_state)`,

		`CREATE INDEX IF NOT EXISTS idx_sync_runs_stage
		 ON sync_runs(stage)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}
