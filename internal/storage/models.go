package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValidationState classifies the outcome of the last validation pass for a voucher.
type ValidationState string

const (
	ValidationUnvalidated ValidationState = "unvalidated"
	ValidationValid       ValidationState = "valid"
	ValidationInvalid     ValidationState = "invalid"
)

// SyncState tracks a voucher's position in the sync lifecycle.
// Transitions are monotonic except Failed, which retries as Pending on the
// next run, and Reconciled, which is reachable only from Synced.
type SyncState string

const (
	SyncPending    SyncState = "pending"
	SyncSynced     SyncState = "synced"
	SyncFailed     SyncState = "failed"
	SyncReconciled SyncState = "reconciled"
)

// CategoryMapping links a sevDesk cost center to an Actual Budget category.
// Created once per cost center and never updated or deleted by normal sync.
type CategoryMapping struct {
	SourceCostCenterID string    `json:"source_cost_center_id"`
	TargetCategoryID   string    `json:"target_category_id"`
	SourceName         string    `json:"source_name,omitempty"`
	TargetName         string    `json:"target_name,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// VoucherRecord is the cached source voucher plus its sync linkage,
// keyed uniquely by SourceVoucherID.
type VoucherRecord struct {
	SourceVoucherID    string          `json:"source_voucher_id"`
	VoucherNumber      string          `json:"voucher_number"`
	VoucherDate        time.Time       `json:"voucher_date"`
	StatusCode         string          `json:"status_code"`
	Amount             decimal.Decimal `json:"amount"`
	CreditDebit        string          `json:"credit_debit"`
	SupplierName       string          `json:"supplier_name"`
	CostCenterID       string          `json:"cost_center_id,omitempty"`
	CostCenterName     string          `json:"cost_center_name,omitempty"`
	AccountingTypeCode string          `json:"accounting_type_code,omitempty"`

	TargetTransactionID string          `json:"target_transaction_id,omitempty"`
	ValidationState     ValidationState `json:"validation_state"`
	ValidationReason    string          `json:"validation_reason,omitempty"`
	LastValidatedAt     *time.Time      `json:"last_validated_at,omitempty"`
	SyncState           SyncState       `json:"sync_state"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SyncRun is one append-only audit row per completed stage run.
type SyncRun struct {
	ID         int64     `json:"id"`
	Stage      string    `json:"stage"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	StatsJSON  string    `json:"stats_json"`
}

// Sync run status values.
const (
	RunStatusCompleted  = "completed"
	RunStatusWithErrors = "completed_with_errors"
	RunStatusDryRun     = "dry_run"
)

// Stats contains aggregate counts over the state store.
type Stats struct {
	TotalVouchers    int     `json:"total_vouchers"`
	Pending          int     `json:"pending"`
	Synced           int     `json:"synced"`
	Failed           int     `json:"failed"`
	Reconciled       int     `json:"reconciled"`
	Invalid          int     `json:"invalid"`
	CategoryMappings int     `json:"category_mappings"`
	TotalAmount      float64 `json:"total_amount"`
}
