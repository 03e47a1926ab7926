package sync

import (
	"context"
	"fmt"
)

// RunOptions select which stages a combined run executes.
type RunOptions struct {
	Reconcile bool
	DryRun    bool
}

// Run executes categories then vouchers, and optionally reconciliation.
// A stage-level failure aborts the remaining stages; the partial Result
// is returned alongside the error so callers can still report what ran.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	result := &Result{}

	categoryStats, err := e.SyncCategories(ctx)
	result.Categories = categoryStats
	if err != nil {
		return result, fmt.Errorf("category sync: %w", err)
	}

	voucherStats, err := e.SyncVouchers(ctx, opts.DryRun)
	result.Vouchers = voucherStats
	if err != nil {
		return result, fmt.Errorf("voucher sync: %w", err)
	}

	if opts.Reconcile {
		reconcileStats, err := e.Reconcile(ctx, opts.DryRun)
		result.Reconcile = reconcileStats
		if err != nil {
			return result, fmt.Errorf("reconciliation: %w", err)
		}
	}

	return result, nil
}
