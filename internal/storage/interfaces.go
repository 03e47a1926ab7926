package storage

// Repository defines the storage operations the sync engine depends on.
// Storage implements it against SQLite; MockRepository implements it
// in memory for tests.
type Repository interface {
	// Category mappings
	GetCategoryMapping(sourceCostCenterID string) (*CategoryMapping, error)
	PutCategoryMapping(m *CategoryMapping) error
	ListCategoryMappings() ([]*CategoryMapping, error)

	// Voucher records
	GetVoucher(sourceVoucherID string) (*VoucherRecord, error)
	UpsertVoucher(v *VoucherRecord) error
	MarkValidated(sourceVoucherID string, state ValidationState, reason string) error
	MarkSynced(sourceVoucherID, targetTransactionID string) error
	MarkFailed(sourceVoucherID string) error
	MarkReconciled(sourceVoucherID string) error
	ListInvalidVouchers() ([]*VoucherRecord, error)
	ListSyncedWithoutSource(currentSourceIDs []string) ([]*VoucherRecord, error)

	// Run history
	RecordSyncRun(run *SyncRun) error
	GetSyncRun(id int64) (*SyncRun, error)
	ListSyncRuns(limit int) ([]*SyncRun, error)

	// Maintenance
	GetStats() (*Stats, error)
	ResetSyncState(full bool) error
	Close() error
}

var _ Repository = (*Storage)(nil)
var _ Repository = (*MockRepository)(nil)
