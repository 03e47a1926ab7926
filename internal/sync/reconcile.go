package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fkoester/sevactual/internal/sevdesk"
)

// ErrEmptySourceWindow aborts reconciliation when the source returns no
// vouchers at all. An empty window would orphan every synced voucher in
// one pass, which is far more likely an upstream outage than a real mass
// deletion.
var ErrEmptySourceWindow = errors.New("source returned no vouchers for the lookback window")

// Reconcile removes target transactions whose source voucher no longer
// exists: it fetches the current source IDs in the lookback window, diffs
// them against locally Synced vouchers and deletes the orphans. With
// dryRun the orphans are only reported. Per-item delete failures are
// counted and retried on the next run.
func (e *Engine) Reconcile(ctx context.Context, dryRun bool) (*ReconcileStats, error) {
	startedAt := time.Now().UTC()
	stats := &ReconcileStats{}

	dateFrom := time.Now().UTC().AddDate(0, 0, -e.opts.LookbackDays)
	vouchers, err := e.source.ListVouchers(ctx, sevdesk.VoucherFilter{
		Status:   e.opts.PaidStatusCode,
		DateFrom: dateFrom,
	})
	if err != nil {
		return stats, fmt.Errorf("listing vouchers: %w", err)
	}
	if len(vouchers) == 0 {
		return stats, ErrEmptySourceWindow
	}

	currentIDs := make([]string, 0, len(vouchers))
	for _, v := range vouchers {
		currentIDs = append(currentIDs, v.ID)
	}
	stats.Checked = len(currentIDs)

	orphaned, err := e.store.ListSyncedWithoutSource(currentIDs)
	if err != nil {
		return stats, fmt.Errorf("listing orphaned vouchers: %w", err)
	}
	stats.Orphaned = len(orphaned)

	e.logger.Info("reconciliation started",
		"source_vouchers", len(currentIDs), "orphaned", len(orphaned), "dry_run", dryRun)

	for _, record := range orphaned {
		log := e.logger.With(
			"voucher_id", record.SourceVoucherID,
			"transaction_id", record.TargetTransactionID)

		if dryRun {
			log.Info("dry run, would delete orphaned transaction")
			continue
		}

		if record.TargetTransactionID != "" {
			if err := e.target.DeleteTransaction(ctx, record.TargetTransactionID); err != nil {
				log.Error("failed to delete orphaned transaction", "error", err)
				stats.Failed++
				continue
			}
		}

		if err := e.store.MarkReconciled(record.SourceVoucherID); err != nil {
			log.Error("failed to mark voucher reconciled", "error", err)
			stats.Failed++
			continue
		}

		log.Info("orphaned transaction removed")
		stats.Deleted++
	}

	e.recordRun(StageReconcile, startedAt, runStatus(stats.Failed, dryRun), stats)

	e.logger.Info("reconciliation finished",
		"checked", stats.Checked, "orphaned", stats.Orphaned,
		"deleted", stats.Deleted, "failed", stats.Failed)

	return stats, nil
}
