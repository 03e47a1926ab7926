package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkoester/sevactual/internal/sevdesk"
	"github.com/fkoester/sevactual/internal/storage"
	"github.com/fkoester/sevactual/internal/validator"
)

func paidVoucher(id, costCenterID, amount, creditDebit string) sevdesk.Voucher {
	v := sevdesk.Voucher{
		ID:           id,
		Description:  "RE-" + id,
		VoucherDate:  sevdesk.Date{Time: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)},
		Status:       sevdesk.StatusPaid,
		SumGross:     decimal.RequireFromString(amount),
		CreditDebit:  creditDebit,
		SupplierName: "ACME GmbH",
	}
	if costCenterID != "" {
		v.CostCentre = &sevdesk.ObjectRef{ID: costCenterID, Name: "Office"}
	}
	return v
}

func expensePosition() []sevdesk.VoucherPosition {
	return []sevdesk.VoucherPosition{
		{ID: "P-1", AccountingType: &sevdesk.AccountingType{ID: "26", AccountingSystemNumber: "4980"}},
	}
}

func mappedStore(t *testing.T) *storage.MockRepository {
	t.Helper()
	store := storage.NewMockRepository()
	require.NoError(t, store.PutCategoryMapping(&storage.CategoryMapping{
		SourceCostCenterID: "CC-1",
		TargetCategoryID:   "cat-1",
	}))
	return store
}

func TestSyncVouchers_CreatesTransaction(t *testing.T) {
	source := &fakeSource{
		vouchers:  []sevdesk.Voucher{paidVoucher("V-100", "CC-1", "119.00", "C")},
		positions: map[string][]sevdesk.VoucherPosition{"V-100": expensePosition()},
	}
	target := &fakeTarget{}
	store := mappedStore(t)

	engine := NewEngine(source, target, store, nil, Options{AccountName: "sevDesk"})
	stats, err := engine.SyncVouchers(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Synced)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.Validated)
	assert.Zero(t, stats.Invalid)

	require.Len(t, target.createdTxs, 1)
	tx := target.createdTxs[0]
	assert.Equal(t, "acc-1", tx.AccountID)
	assert.Equal(t, "2025-03-15", tx.Date)
	assert.Equal(t, int64(-11900), tx.Amount) // credit voucher, outflow
	assert.Equal(t, "ACME GmbH", tx.PayeeName)
	assert.Equal(t, "cat-1", tx.CategoryID)
	assert.Equal(t, "sevdesk_voucher_V-100", tx.ImportedID)

	record, err := store.GetVoucher("V-100")
	require.NoError(t, err)
	assert.Equal(t, storage.SyncSynced, record.SyncState)
	assert.Equal(t, "tx-1", record.TargetTransactionID)
	assert.Equal(t, storage.ValidationValid, record.ValidationState)
}

func TestSyncVouchers_DebitAmountStaysPositive(t *testing.T) {
	source := &fakeSource{
		vouchers:  []sevdesk.Voucher{paidVoucher("V-1", "CC-1", "50.00", "D")},
		positions: map[string][]sevdesk.VoucherPosition{"V-1": expensePosition()},
	}
	target := &fakeTarget{}

	engine := NewEngine(source, target, mappedStore(t), nil, Options{})
	_, err := engine.SyncVouchers(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, target.createdTxs, 1)
	assert.Equal(t, int64(5000), target.createdTxs[0].Amount)
}

func TestSyncVouchers_SecondRunSkips(t *testing.T) {
	source := &fakeSource{
		vouchers:  []sevdesk.Voucher{paidVoucher("V-100", "CC-1", "119.00", "C")},
		positions: map[string][]sevdesk.VoucherPosition{"V-100": expensePosition()},
	}
	target := &fakeTarget{}
	store := mappedStore(t)

	engine := NewEngine(source, target, store, nil, Options{})

	_, err := engine.SyncVouchers(context.Background(), false)
	require.NoError(t, err)

	stats, err := engine.SyncVouchers(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Created)
	assert.Len(t, target.createdTxs, 1, "no duplicate transaction")
}

func TestSyncVouchers_MissingCostCenterIsInvalid(t *testing.T) {
	source := &fakeSource{
		vouchers:  []sevdesk.Voucher{paidVoucher("V-1", "", "10.00", "C")},
		positions: map[string][]sevdesk.VoucherPosition{"V-1": expensePosition()},
	}
	target := &fakeTarget{}
	store := mappedStore(t)

	engine := NewEngine(source, target, store, nil, Options{})
	stats, err := engine.SyncVouchers(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Invalid)
	assert.Zero(t, stats.Synced)
	assert.Empty(t, target.createdTxs)

	record, err := store.GetVoucher("V-1")
	require.NoError(t, err)
	assert.Equal(t, storage.ValidationInvalid, record.ValidationState)
	assert.Equal(t, validator.ReasonMissingCostCenter, record.ValidationReason)
	assert.Equal(t, storage.SyncPending, record.SyncState)
}

func TestSyncVouchers_TransferExcluded(t *testing.T) {
	// Geldtransit type 40; the SKR account number is unrelated to the ID
	source := &fakeSource{
		vouchers: []sevdesk.Voucher{paidVoucher("V-1", "", "500.00", "C")},
		positions: map[string][]sevdesk.VoucherPosition{
			"V-1": {{ID: "P-1", AccountingType: &sevdesk.AccountingType{ID: "40", AccountingSystemNumber: "1360"}}},
		},
	}
	target := &fakeTarget{}
	store := mappedStore(t)

	engine := NewEngine(source, target, store, nil, Options{})
	stats, err := engine.SyncVouchers(context.Background(), false)
	require.NoError(t, err)

	// Never invalid, never synced, no transaction
	assert.Zero(t, stats.Invalid)
	assert.Zero(t, stats.Synced)
	assert.Empty(t, target.createdTxs)

	// Still recorded for the audit trail, including why it was skipped
	record, err := store.GetVoucher("V-1")
	require.NoError(t, err)
	assert.Equal(t, storage.ValidationUnvalidated, record.ValidationState)
	assert.Equal(t, storage.SyncPending, record.SyncState)
	assert.Equal(t, "40", record.AccountingTypeCode)
}

func TestSyncVouchers_TransferMatchesTypeIDNotAccountNumber(t *testing.T) {
	// A regular booking whose SKR account number happens to read "40"
	// must not be mistaken for a transfer
	source := &fakeSource{
		vouchers: []sevdesk.Voucher{paidVoucher("V-1", "CC-1", "25.00", "C")},
		positions: map[string][]sevdesk.VoucherPosition{
			"V-1": {{ID: "P-1", AccountingType: &sevdesk.AccountingType{ID: "26", AccountingSystemNumber: "40"}}},
		},
	}
	target := &fakeTarget{}
	store := mappedStore(t)

	engine := NewEngine(source, target, store, nil, Options{})
	stats, err := engine.SyncVouchers(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Synced)
	require.Len(t, target.createdTxs, 1)

	record, err := store.GetVoucher("V-1")
	require.NoError(t, err)
	assert.Equal(t, "26", record.AccountingTypeCode)
}

func TestSyncVouchers_SelfHealingValidation(t *testing.T) {
	source := &fakeSource{
		vouchers:  []sevdesk.Voucher{paidVoucher("V-1", "CC-9", "10.00", "C")},
		positions: map[string][]sevdesk.VoucherPosition{"V-1": expensePosition()},
	}
	target := &fakeTarget{}
	store := storage.NewMockRepository()

	engine := NewEngine(source, target, store, nil, Options{})

	// First run: CC-9 has no mapping
	stats, err := engine.SyncVouchers(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Invalid)

	// Operator adds the mapping; next run heals the voucher
	require.NoError(t, store.PutCategoryMapping(&storage.CategoryMapping{
		SourceCostCenterID: "CC-9",
		TargetCategoryID:   "cat-9",
	}))

	stats, err = engine.SyncVouchers(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Synced)
	assert.Zero(t, stats.Invalid)

	record, err := store.GetVoucher("V-1")
	require.NoError(t, err)
	assert.Equal(t, storage.ValidationValid, record.ValidationState)
	assert.Equal(t, storage.SyncSynced, record.SyncState)
}

func TestSyncVouchers_ItemFailureContained(t *testing.T) {
	source := &fakeSource{
		vouchers: []sevdesk.Voucher{
			paidVoucher("V-1", "CC-1", "10.00", "C"),
			paidVoucher("V-2", "CC-1", "20.00", "C"),
		},
		positions: map[string][]sevdesk.VoucherPosition{
			"V-1": expensePosition(),
			"V-2": expensePosition(),
		},
	}
	target := &fakeTarget{
		createTxErr: map[string]error{"sevdesk_voucher_V-1": errors.New("rate limited")},
	}
	store := mappedStore(t)

	engine := NewEngine(source, target, store, nil, Options{})
	stats, err := engine.SyncVouchers(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Synced)

	record, err := store.GetVoucher("V-1")
	require.NoError(t, err)
	assert.Equal(t, storage.SyncFailed, record.SyncState)

	// The failed voucher retries on the next run
	target.createTxErr = nil
	stats, err = engine.SyncVouchers(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.Skipped)
}

func TestSyncVouchers_PositionFetchFailureContained(t *testing.T) {
	source := &fakeSource{
		vouchers: []sevdesk.Voucher{
			paidVoucher("V-1", "CC-1", "10.00", "C"),
			paidVoucher("V-2", "CC-1", "20.00", "C"),
		},
		positions:    map[string][]sevdesk.VoucherPosition{"V-2": expensePosition()},
		positionsErr: map[string]error{"V-1": errors.New("timeout")},
	}
	target := &fakeTarget{}

	engine := NewEngine(source, target, mappedStore(t), nil, Options{})
	stats, err := engine.SyncVouchers(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Synced)
}

func TestSyncVouchers_DryRun(t *testing.T) {
	source := &fakeSource{
		vouchers:  []sevdesk.Voucher{paidVoucher("V-1", "CC-1", "10.00", "C")},
		positions: map[string][]sevdesk.VoucherPosition{"V-1": expensePosition()},
	}
	target := &fakeTarget{}
	store := mappedStore(t)

	engine := NewEngine(source, target, store, nil, Options{})
	stats, err := engine.SyncVouchers(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Validated)
	assert.Zero(t, stats.Created)
	assert.Empty(t, target.createdTxs)

	runs, err := store.ListSyncRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, storage.RunStatusDryRun, runs[0].Status)
}

func TestSyncVouchers_ListErrorAbortsStage(t *testing.T) {
	source := &fakeSource{listVouchersErr: errors.New("api down")}
	store := storage.NewMockRepository()

	engine := NewEngine(source, &fakeTarget{}, store, nil, Options{})
	_, err := engine.SyncVouchers(context.Background(), false)
	require.Error(t, err)
	assert.Zero(t, store.RecordRunCalls)
}

func TestSyncVouchers_AccountErrorAbortsStage(t *testing.T) {
	source := &fakeSource{
		vouchers: []sevdesk.Voucher{paidVoucher("V-1", "CC-1", "10.00", "C")},
	}
	target := &fakeTarget{accountErr: errors.New("unauthorized")}

	engine := NewEngine(source, target, storage.NewMockRepository(), nil, Options{})
	_, err := engine.SyncVouchers(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target account")
}

func TestSyncVouchers_PayeeFallsBackToVoucherID(t *testing.T) {
	v := paidVoucher("V-7", "CC-1", "10.00", "C")
	v.SupplierName = ""
	source := &fakeSource{
		vouchers:  []sevdesk.Voucher{v},
		positions: map[string][]sevdesk.VoucherPosition{"V-7": expensePosition()},
	}
	target := &fakeTarget{}

	engine := NewEngine(source, target, mappedStore(t), nil, Options{})
	_, err := engine.SyncVouchers(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, target.createdTxs, 1)
	assert.Equal(t, "Voucher #V-7", target.createdTxs[0].PayeeName)
}
