package storage

import (
	"fmt"
	"sync"
	"time"
)

// MockRepository is an in-memory Repository for tests. Error fields force
// the corresponding operation to fail; call counters let tests assert how
// often the engine touched the store.
type MockRepository struct {
	mu sync.Mutex

	Mappings map[string]*CategoryMapping
	Vouchers map[string]*VoucherRecord
	Runs     []*SyncRun

	GetMappingErr   error
	PutMappingErr   error
	UpsertErr       error
	MarkErr         error
	RecordRunErr    error
	ListInvalidErr  error
	ListOrphanedErr error

	PutMappingCalls int
	UpsertCalls     int
	MarkSyncedCalls int
	RecordRunCalls  int
}

// NewMockRepository creates an empty mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{
		Mappings: make(map[string]*CategoryMapping),
		Vouchers: make(map[string]*VoucherRecord),
	}
}

func (m *MockRepository) GetCategoryMapping(sourceCostCenterID string) (*CategoryMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetMappingErr != nil {
		return nil, m.GetMappingErr
	}
	mapping, ok := m.Mappings[sourceCostCenterID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *mapping
	return &cp, nil
}

func (m *MockRepository) PutCategoryMapping(mapping *CategoryMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutMappingCalls++
	if m.PutMappingErr != nil {
		return m.PutMappingErr
	}
	if _, ok := m.Mappings[mapping.SourceCostCenterID]; ok {
		return fmt.Errorf("cost center %s: %w", mapping.SourceCostCenterID, ErrDuplicateKey)
	}
	cp := *mapping
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.Mappings[mapping.SourceCostCenterID] = &cp
	return nil
}

func (m *MockRepository) ListCategoryMappings() ([]*CategoryMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*CategoryMapping
	for _, mapping := range m.Mappings {
		cp := *mapping
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockRepository) GetVoucher(sourceVoucherID string) (*VoucherRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.Vouchers[sourceVoucherID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *MockRepository) UpsertVoucher(v *VoucherRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpsertCalls++
	if m.UpsertErr != nil {
		return m.UpsertErr
	}

	now := time.Now().UTC()
	existing, ok := m.Vouchers[v.SourceVoucherID]
	if !ok {
		cp := *v
		cp.ValidationState = ValidationUnvalidated
		cp.SyncState = SyncPending
		cp.TargetTransactionID = ""
		cp.FirstSeenAt = now
		cp.UpdatedAt = now
		m.Vouchers[v.SourceVoucherID] = &cp
		return nil
	}

	// Refresh source fields, keep sync and validation columns
	existing.VoucherNumber = v.VoucherNumber
	existing.VoucherDate = v.VoucherDate
	existing.StatusCode = v.StatusCode
	existing.Amount = v.Amount
	existing.CreditDebit = v.CreditDebit
	existing.SupplierName = v.SupplierName
	existing.CostCenterID = v.CostCenterID
	existing.CostCenterName = v.CostCenterName
	existing.AccountingTypeCode = v.AccountingTypeCode
	existing.UpdatedAt = now
	return nil
}

func (m *MockRepository) MarkValidated(sourceVoucherID string, state ValidationState, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.MarkErr != nil {
		return m.MarkErr
	}
	v, ok := m.Vouchers[sourceVoucherID]
	if !ok {
		return fmt.Errorf("voucher %s: %w", sourceVoucherID, ErrNotFound)
	}
	now := time.Now().UTC()
	v.ValidationState = state
	v.ValidationReason = reason
	v.LastValidatedAt = &now
	v.UpdatedAt = now
	return nil
}

func (m *MockRepository) MarkSynced(sourceVoucherID, targetTransactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.MarkSyncedCalls++
	if m.MarkErr != nil {
		return m.MarkErr
	}
	v, ok := m.Vouchers[sourceVoucherID]
	if !ok {
		return fmt.Errorf("voucher %s: %w", sourceVoucherID, ErrNotFound)
	}
	v.SyncState = SyncSynced
	v.TargetTransactionID = targetTransactionID
	v.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockRepository) MarkFailed(sourceVoucherID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.MarkErr != nil {
		return m.MarkErr
	}
	v, ok := m.Vouchers[sourceVoucherID]
	if !ok {
		return fmt.Errorf("voucher %s: %w", sourceVoucherID, ErrNotFound)
	}
	v.SyncState = SyncFailed
	v.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockRepository) MarkReconciled(sourceVoucherID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.MarkErr != nil {
		return m.MarkErr
	}
	v, ok := m.Vouchers[sourceVoucherID]
	if !ok || v.SyncState != SyncSynced {
		return fmt.Errorf("voucher %s: %w", sourceVoucherID, ErrNotFound)
	}
	v.SyncState = SyncReconciled
	v.TargetTransactionID = ""
	v.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockRepository) ListInvalidVouchers() ([]*VoucherRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListInvalidErr != nil {
		return nil, m.ListInvalidErr
	}
	var out []*VoucherRecord
	for _, v := range m.Vouchers {
		if v.ValidationState == ValidationInvalid {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockRepository) ListSyncedWithoutSource(currentSourceIDs []string) ([]*VoucherRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListOrphanedErr != nil {
		return nil, m.ListOrphanedErr
	}
	present := make(map[string]bool, len(currentSourceIDs))
	for _, id := range currentSourceIDs {
		present[id] = true
	}
	var out []*VoucherRecord
	for _, v := range m.Vouchers {
		if v.SyncState == SyncSynced && !present[v.SourceVoucherID] {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockRepository) RecordSyncRun(run *SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecordRunCalls++
	if m.RecordRunErr != nil {
		return m.RecordRunErr
	}
	run.ID = int64(len(m.Runs) + 1)
	cp := *run
	m.Runs = append(m.Runs, &cp)
	return nil
}

func (m *MockRepository) GetSyncRun(id int64) (*SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, run := range m.Runs {
		if run.ID == id {
			cp := *run
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockRepository) ListSyncRuns(limit int) ([]*SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.Runs) {
		limit = len(m.Runs)
	}
	out := make([]*SyncRun, 0, limit)
	for i := len(m.Runs) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *m.Runs[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockRepository) GetStats() (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &Stats{
		TotalVouchers:    len(m.Vouchers),
		CategoryMappings: len(m.Mappings),
	}
	for _, v := range m.Vouchers {
		switch v.SyncState {
		case SyncPending:
			stats.Pending++
		case SyncSynced:
			stats.Synced++
			f, _ := v.Amount.Float64()
			stats.TotalAmount += f
		case SyncFailed:
			stats.Failed++
		case SyncReconciled:
			stats.Reconciled++
		}
		if v.ValidationState == ValidationInvalid {
			stats.Invalid++
		}
	}
	return stats, nil
}

func (m *MockRepository) ResetSyncState(full bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Vouchers = make(map[string]*VoucherRecord)
	if full {
		m.Mappings = make(map[string]*CategoryMapping)
		m.Runs = nil
	}
	return nil
}

func (m *MockRepository) Close() error { return nil }
