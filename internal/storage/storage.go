package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Storage provides SQLite-backed access to sync state
type Storage struct {
	db *sql.DB
}

// NewStorage opens the database at dbPath and runs pending migrations
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// ================================================================
// CATEGORY MAPPINGS
// ================================================================

// GetCategoryMapping returns the mapping for a source cost center,
// or ErrNotFound if the cost center has never been linked.
func (s *Storage) GetCategoryMapping(sourceCostCenterID string) (*CategoryMapping, error) {
	query := `
	SELECT source_cost_center_id, target_category_id, source_name, target_name, created_at
	FROM category_mappings WHERE source_cost_center_id = ?
	`

	m := &CategoryMapping{}
	err := s.db.QueryRow(query, sourceCostCenterID).Scan(
		&m.SourceCostCenterID,
		&m.TargetCategoryID,
		&m.SourceName,
		&m.TargetName,
		&m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return m, nil
}

// PutCategoryMapping inserts a new mapping. A second mapping for the same
// cost center returns ErrDuplicateKey; mappings are never overwritten.
func (s *Storage) PutCategoryMapping(m *CategoryMapping) error {
	query := `
	INSERT INTO category_mappings
	(source_cost_center_id, target_category_id, source_name, target_name)
	VALUES (?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		m.SourceCostCenterID,
		m.TargetCategoryID,
		m.SourceName,
		m.TargetName,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("cost center %s: %w", m.SourceCostCenterID, ErrDuplicateKey)
		}
		return err
	}

	return nil
}

// ListCategoryMappings returns all mappings ordered by source cost center
func (s *Storage) ListCategoryMappings() ([]*CategoryMapping, error) {
	query := `
	SELECT source_cost_center_id, target_category_id, source_name, target_name, created_at
	FROM category_mappings ORDER BY source_cost_center_id
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var mappings []*CategoryMapping
	for rows.Next() {
		m := &CategoryMapping{}
		if err := rows.Scan(
			&m.SourceCostCenterID,
			&m.TargetCategoryID,
			&m.SourceName,
			&m.TargetName,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}

	return mappings, rows.Err()
}

// ================================================================
// VOUCHER RECORDS
// ================================================================

const voucherColumns = `
	source_voucher_id, voucher_number, voucher_date, status_code, amount,
	credit_debit, supplier_name, cost_center_id, cost_center_name,
	accounting_type_code, target_transaction_id, validation_state,
	validation_reason, last_validated_at, sync_state, first_seen_at, updated_at
`

func scanVoucher(row interface{ Scan(...any) error }) (*VoucherRecord, error) {
	v := &VoucherRecord{}
	var voucherDate sql.NullTime
	var lastValidatedAt sql.NullTime
	var amount string

	err := row.Scan(
		&v.SourceVoucherID,
		&v.VoucherNumber,
		&voucherDate,
		&v.StatusCode,
		&amount,
		&v.CreditDebit,
		&v.SupplierName,
		&v.CostCenterID,
		&v.CostCenterName,
		&v.AccountingTypeCode,
		&v.TargetTransactionID,
		&v.ValidationState,
		&v.ValidationReason,
		&lastValidatedAt,
		&v.SyncState,
		&v.FirstSeenAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if voucherDate.Valid {
		v.VoucherDate = voucherDate.Time
	}
	if lastValidatedAt.Valid {
		t := lastValidatedAt.Time
		v.LastValidatedAt = &t
	}

	v.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("voucher %s has invalid amount %q: %w", v.SourceVoucherID, amount, err)
	}

	return v, nil
}

// GetVoucher returns a cached voucher by source ID, or ErrNotFound
func (s *Storage) GetVoucher(sourceVoucherID string) (*VoucherRecord, error) {
	query := `SELECT ` + voucherColumns + ` FROM voucher_records WHERE source_voucher_id = ?`

	v, err := scanVoucher(s.db.QueryRow(query, sourceVoucherID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return v, nil
}

// UpsertVoucher inserts a voucher or refreshes its source-derived fields.
// Sync linkage (sync_state, target_transaction_id) and validation columns
// are owned by the Mark* operations and are never touched here, so a
// re-fetched voucher keeps its Synced state and transaction link.
func (s *Storage) UpsertVoucher(v *VoucherRecord) error {
	query := `
	INSERT INTO voucher_records
	(source_voucher_id, voucher_number, voucher_date, status_code, amount,
	 credit_debit, supplier_name, cost_center_id, cost_center_name, accounting_type_code)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(source_voucher_id) DO UPDATE SET
		voucher_number = excluded.voucher_number,
		voucher_date = excluded.voucher_date,
		status_code = excluded.status_code,
		amount = excluded.amount,
		credit_debit = excluded.credit_debit,
		supplier_name = excluded.supplier_name,
		cost_center_id = excluded.cost_center_id,
		cost_center_name = excluded.cost_center_name,
		accounting_type_code = excluded.accounting_type_code,
		updated_at = CURRENT_TIMESTAMP
	`

	_, err := s.db.Exec(query,
		v.SourceVoucherID,
		v.VoucherNumber,
		v.VoucherDate,
		v.StatusCode,
		v.Amount.String(),
		v.CreditDebit,
		v.SupplierName,
		v.CostCenterID,
		v.CostCenterName,
		v.AccountingTypeCode,
	)
	return err
}

// MarkValidated records a validation verdict without touching sync state
func (s *Storage) MarkValidated(sourceVoucherID string, state ValidationState, reason string) error {
	query := `
	UPDATE voucher_records
	SET validation_state = ?, validation_reason = ?, last_validated_at = ?, updated_at = CURRENT_TIMESTAMP
	WHERE source_voucher_id = ?
	`

	res, err := s.db.Exec(query, state, reason, time.Now().UTC(), sourceVoucherID)
	if err != nil {
		return err
	}
	return requireRow(res, sourceVoucherID)
}

// MarkSynced links a voucher to its target transaction and moves it to
// Synced in a single statement so the two can never disagree.
func (s *Storage) MarkSynced(sourceVoucherID, targetTransactionID string) error {
	query := `
	UPDATE voucher_records
	SET sync_state = ?, target_transaction_id = ?, updated_at = CURRENT_TIMESTAMP
	WHERE source_voucher_id = ?
	`

	res, err := s.db.Exec(query, SyncSynced, targetTransactionID, sourceVoucherID)
	if err != nil {
		return err
	}
	return requireRow(res, sourceVoucherID)
}

// MarkFailed flags a voucher so the next run retries it
func (s *Storage) MarkFailed(sourceVoucherID string) error {
	query := `
	UPDATE voucher_records
	SET sync_state = ?, updated_at = CURRENT_TIMESTAMP
	WHERE source_voucher_id = ?
	`

	res, err := s.db.Exec(query, SyncFailed, sourceVoucherID)
	if err != nil {
		return err
	}
	return requireRow(res, sourceVoucherID)
}

// MarkReconciled clears the target link for an orphaned voucher.
// Only Synced vouchers can be reconciled; anything else is ErrNotFound.
func (s *Storage) MarkReconciled(sourceVoucherID string) error {
	query := `
	UPDATE voucher_records
	SET sync_state = ?, target_transaction_id = '', updated_at = CURRENT_TIMESTAMP
	WHERE source_voucher_id = ? AND sync_state = ?
	`

	res, err := s.db.Exec(query, SyncReconciled, sourceVoucherID, SyncSynced)
	if err != nil {
		return err
	}
	return requireRow(res, sourceVoucherID)
}

func requireRow(res sql.Result, sourceVoucherID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("voucher %s: %w", sourceVoucherID, ErrNotFound)
	}
	return nil
}

// ListInvalidVouchers returns vouchers whose last validation failed,
// newest voucher date first
func (s *Storage) ListInvalidVouchers() ([]*VoucherRecord, error) {
	query := `SELECT ` + voucherColumns + `
	FROM voucher_records
	WHERE validation_state = ?
	ORDER BY voucher_date DESC, source_voucher_id
	`

	return s.queryVouchers(query, ValidationInvalid)
}

// ListSyncedWithoutSource returns Synced vouchers whose source ID is absent
// from currentSourceIDs. The diff runs in Go so the caller's ID set is not
// bounded by SQL parameter limits.
func (s *Storage) ListSyncedWithoutSource(currentSourceIDs []string) ([]*VoucherRecord, error) {
	query := `SELECT ` + voucherColumns + `
	FROM voucher_records
	WHERE sync_state = ?
	ORDER BY voucher_date, source_voucher_id
	`

	synced, err := s.queryVouchers(query, SyncSynced)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(currentSourceIDs))
	for _, id := range currentSourceIDs {
		present[id] = true
	}

	var orphaned []*VoucherRecord
	for _, v := range synced {
		if !present[v.SourceVoucherID] {
			orphaned = append(orphaned, v)
		}
	}

	return orphaned, nil
}

func (s *Storage) queryVouchers(query string, args ...any) ([]*VoucherRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var vouchers []*VoucherRecord
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}

	return vouchers, rows.Err()
}

// ================================================================
// SYNC RUNS
// ================================================================

// RecordSyncRun appends one audit row for a completed stage run.
// Rows are inserted once and never updated, so a crash mid-stage
// leaves no partial entry.
func (s *Storage) RecordSyncRun(run *SyncRun) error {
	query := `
	INSERT INTO sync_runs (stage, started_at, finished_at, status, stats_json)
	VALUES (?, ?, ?, ?, ?)
	`

	res, err := s.db.Exec(query,
		run.Stage,
		run.StartedAt,
		run.FinishedAt,
		run.Status,
		run.StatsJSON,
	)
	if err != nil {
		return err
	}

	run.ID, err = res.LastInsertId()
	return err
}

// GetSyncRun returns a single run by ID, or ErrNotFound
func (s *Storage) GetSyncRun(id int64) (*SyncRun, error) {
	query := `
	SELECT id, stage, started_at, finished_at, status, stats_json
	FROM sync_runs WHERE id = ?
	`

	run := &SyncRun{}
	err := s.db.QueryRow(query, id).Scan(
		&run.ID,
		&run.Stage,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Status,
		&run.StatsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return run, nil
}

// ListSyncRuns returns the most recent runs, newest first
func (s *Storage) ListSyncRuns(limit int) ([]*SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
	SELECT id, stage, started_at, finished_at, status, stats_json
	FROM sync_runs ORDER BY started_at DESC, id DESC LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []*SyncRun
	for rows.Next() {
		run := &SyncRun{}
		if err := rows.Scan(
			&run.ID,
			&run.Stage,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Status,
			&run.StatsJSON,
		); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// ================================================================
// STATS & RESET
// ================================================================

// GetStats returns aggregate counts over the state store
func (s *Storage) GetStats() (*Stats, error) {
	stats := &Stats{}

	query := `
	SELECT
		COUNT(*),
		SUM(CASE WHEN sync_state = 'pending' THEN 1 ELSE 0 END),
		SUM(CASE WHEN sync_state = 'synced' THEN 1 ELSE 0 END),
		SUM(CASE WHEN sync_state = 'failed' THEN 1 ELSE 0 END),
		SUM(CASE WHEN sync_state = 'reconciled' THEN 1 ELSE 0 END),
		SUM(CASE WHEN validation_state = 'invalid' THEN 1 ELSE 0 END),
		COALESCE(SUM(CASE WHEN sync_state = 'synced' THEN CAST(amount AS REAL) ELSE 0 END), 0)
	FROM voucher_records
	`

	var pending, synced, failed, reconciled, invalid sql.NullInt64
	err := s.db.QueryRow(query).Scan(
		&stats.TotalVouchers,
		&pending,
		&synced,
		&failed,
		&reconciled,
		&invalid,
		&stats.TotalAmount,
	)
	if err != nil {
		return nil, err
	}

	stats.Pending = int(pending.Int64)
	stats.Synced = int(synced.Int64)
	stats.Failed = int(failed.Int64)
	stats.Reconciled = int(reconciled.Int64)
	stats.Invalid = int(invalid.Int64)

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM category_mappings`).Scan(&stats.CategoryMappings); err != nil {
		return nil, err
	}

	return stats, nil
}

// ResetSyncState clears voucher sync linkage so the next run recreates
// everything. A full reset also drops category mappings and run history.
func (s *Storage) ResetSyncState(full bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM voucher_records`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to clear voucher records: %w", err)
	}

	if full {
		if _, err := tx.Exec(`DELETE FROM category_mappings`); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to clear category mappings: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM sync_runs`); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to clear sync runs: %w", err)
		}
	}

	return tx.Commit()
}
