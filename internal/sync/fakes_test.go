package sync

import (
	"context"
	"fmt"

	"github.com/fkoester/sevactual/internal/actual"
	"github.com/fkoester/sevactual/internal/sevdesk"
)

type fakeSource struct {
	costCenters []sevdesk.CostCenter
	vouchers    []sevdesk.Voucher
	positions   map[string][]sevdesk.VoucherPosition

	listCostCentersErr error
	listVouchersErr    error
	positionsErr       map[string]error
}

func (f *fakeSource) ListCostCenters(ctx context.Context) ([]sevdesk.CostCenter, error) {
	if f.listCostCentersErr != nil {
		return nil, f.listCostCentersErr
	}
	return f.costCenters, nil
}

func (f *fakeSource) ListVouchers(ctx context.Context, filter sevdesk.VoucherFilter) ([]sevdesk.Voucher, error) {
	if f.listVouchersErr != nil {
		return nil, f.listVouchersErr
	}
	if filter.Limit > 0 && len(f.vouchers) > filter.Limit {
		return f.vouchers[:filter.Limit], nil
	}
	return f.vouchers, nil
}

func (f *fakeSource) ListVoucherPositions(ctx context.Context, voucherID string) ([]sevdesk.VoucherPosition, error) {
	if err := f.positionsErr[voucherID]; err != nil {
		return nil, err
	}
	return f.positions[voucherID], nil
}

type fakeTarget struct {
	categories []actual.Category
	account    actual.Account

	createCategoryErr error
	accountErr        error
	createTxErr       map[string]error // keyed by imported_id
	deleteErr         map[string]error

	createdCategories []string
	createdTxs        []*actual.Transaction
	deletedTxs        []string
	nextTxID          int
}

func (f *fakeTarget) ListCategories(ctx context.Context) ([]actual.Category, error) {
	return f.categories, nil
}

func (f *fakeTarget) CreateCategory(ctx context.Context, name string) (*actual.Category, error) {
	if f.createCategoryErr != nil {
		return nil, f.createCategoryErr
	}
	f.createdCategories = append(f.createdCategories, name)
	cat := actual.Category{ID: "cat-" + name, Name: name}
	f.categories = append(f.categories, cat)
	return &cat, nil
}

func (f *fakeTarget) GetOrCreateAccount(ctx context.Context, name string) (*actual.Account, error) {
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	if f.account.ID == "" {
		f.account = actual.Account{ID: "acc-1", Name: name}
	}
	return &f.account, nil
}

func (f *fakeTarget) CreateTransaction(ctx context.Context, tx *actual.Transaction) (string, error) {
	if err := f.createTxErr[tx.ImportedID]; err != nil {
		return "", err
	}
	f.nextTxID++
	f.createdTxs = append(f.createdTxs, tx)
	return fmt.Sprintf("tx-%d", f.nextTxID), nil
}

func (f *fakeTarget) DeleteTransaction(ctx context.Context, id string) error {
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	f.deletedTxs = append(f.deletedTxs, id)
	return nil
}
