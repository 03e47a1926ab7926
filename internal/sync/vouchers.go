package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkoester/sevactual/internal/actual"
	"github.com/fkoester/sevactual/internal/sevdesk"
	"github.com/fkoester/sevactual/internal/storage"
	"github.com/fkoester/sevactual/internal/validator"
)

var centsFactor = decimal.NewFromInt(100)

// SyncVouchers moves paid vouchers from the lookback window into the
// target account. Every voucher not yet Synced is re-validated on every
// run, so fixing a mapping heals previously invalid vouchers without
// operator intervention. Item failures never abort the run; list and
// account failures do.
func (e *Engine) SyncVouchers(ctx context.Context, dryRun bool) (*VoucherStats, error) {
	startedAt := time.Now().UTC()
	stats := &VoucherStats{}

	dateFrom := time.Now().UTC().AddDate(0, 0, -e.opts.LookbackDays)
	vouchers, err := e.source.ListVouchers(ctx, sevdesk.VoucherFilter{
		Status:   e.opts.PaidStatusCode,
		DateFrom: dateFrom,
		Limit:    e.opts.MaxVouchers,
	})
	if err != nil {
		return stats, fmt.Errorf("listing vouchers: %w", err)
	}

	mappings, err := e.store.ListCategoryMappings()
	if err != nil {
		return stats, fmt.Errorf("listing category mappings: %w", err)
	}
	categoryByCostCenter := make(map[string]string, len(mappings))
	mappedIDs := make([]string, 0, len(mappings))
	for _, m := range mappings {
		categoryByCostCenter[m.SourceCostCenterID] = m.TargetCategoryID
		mappedIDs = append(mappedIDs, m.SourceCostCenterID)
	}

	check := validator.New(e.opts.TransferTypeCodes, mappedIDs)

	var accountID string
	if !dryRun {
		account, err := e.target.GetOrCreateAccount(ctx, e.opts.AccountName)
		if err != nil {
			return stats, fmt.Errorf("resolving target account %q: %w", e.opts.AccountName, err)
		}
		accountID = account.ID
	}

	e.logger.Info("voucher sync started",
		"vouchers", len(vouchers), "since", dateFrom.Format("2006-01-02"), "dry_run", dryRun)

	for i := range vouchers {
		e.syncOneVoucher(ctx, &vouchers[i], check, categoryByCostCenter, accountID, dryRun, stats)
	}

	e.recordRun(StageVouchers, startedAt, runStatus(stats.Failed, dryRun), stats)

	e.logger.Info("voucher sync finished",
		"synced", stats.Synced, "created", stats.Created, "skipped", stats.Skipped,
		"failed", stats.Failed, "validated", stats.Validated, "invalid", stats.Invalid)

	return stats, nil
}

func (e *Engine) syncOneVoucher(
	ctx context.Context,
	v *sevdesk.Voucher,
	check *validator.Validator,
	categoryByCostCenter map[string]string,
	accountID string,
	dryRun bool,
	stats *VoucherStats,
) {
	log := e.logger.With("voucher_id", v.ID, "voucher_number", v.Description)

	positions, err := e.source.ListVoucherPositions(ctx, v.ID)
	if err != nil {
		log.Error("failed to list voucher positions", "error", err)
		stats.Failed++
		return
	}

	// Transfer detection matches on the accounting type ID, not the SKR
	// account number; IDs 40/81 are the Geldtransit types
	typeCodes := make([]string, 0, len(positions))
	for _, pos := range positions {
		if pos.AccountingType != nil {
			typeCodes = append(typeCodes, pos.AccountingType.ID)
		}
	}

	record := voucherRecord(v)
	if len(typeCodes) > 0 {
		record.AccountingTypeCode = typeCodes[0]
	}
	if err := e.store.UpsertVoucher(record); err != nil {
		log.Error("failed to cache voucher", "error", err)
		stats.Failed++
		return
	}

	current, err := e.store.GetVoucher(v.ID)
	if err != nil {
		log.Error("failed to read cached voucher", "error", err)
		stats.Failed++
		return
	}
	if current.SyncState == storage.SyncSynced {
		stats.Skipped++
		return
	}

	verdict := check.Validate(validator.Input{
		VoucherID:           v.ID,
		VoucherNumber:       v.Description,
		CostCenterID:        record.CostCenterID,
		AccountingTypeCodes: typeCodes,
	})

	if verdict.Transfer {
		// Money in transit between own accounts; recorded but never
		// budgeted, and excluded from the run counters
		log.Debug("skipping transfer voucher", "type_codes", typeCodes)
		return
	}

	if !verdict.Valid {
		if err := e.store.MarkValidated(v.ID, storage.ValidationInvalid, verdict.Reason); err != nil {
			log.Error("failed to record validation verdict", "error", err)
			stats.Failed++
			return
		}
		log.Warn("voucher failed validation", "reason", verdict.Reason)
		stats.Invalid++
		return
	}

	if err := e.store.MarkValidated(v.ID, storage.ValidationValid, ""); err != nil {
		log.Error("failed to record validation verdict", "error", err)
		stats.Failed++
		return
	}
	stats.Validated++

	if dryRun {
		log.Info("dry run, would create transaction", "amount", record.Amount.String())
		return
	}

	tx := &actual.Transaction{
		AccountID:  accountID,
		Date:       record.VoucherDate.Format("2006-01-02"),
		Amount:     transactionCents(record.Amount, record.CreditDebit),
		PayeeName:  payeeName(record),
		CategoryID: categoryByCostCenter[record.CostCenterID],
		Notes:      record.VoucherNumber,
		ImportedID: ImportedIDPrefix + v.ID,
	}

	txID, err := e.target.CreateTransaction(ctx, tx)
	if err != nil {
		log.Error("failed to create transaction", "error", err)
		if markErr := e.store.MarkFailed(v.ID); markErr != nil {
			log.Error("failed to mark voucher failed", "error", markErr)
		}
		stats.Failed++
		return
	}

	if err := e.store.MarkSynced(v.ID, txID); err != nil {
		// The transaction exists but the link was not stored; the next
		// run will retry and the target dedupes on imported_id
		log.Error("failed to mark voucher synced", "transaction_id", txID, "error", err)
		stats.Failed++
		return
	}

	log.Info("voucher synced", "transaction_id", txID, "amount_cents", tx.Amount)
	stats.Created++
	stats.Synced++
}

// voucherRecord converts an API voucher into its cached form.
func voucherRecord(v *sevdesk.Voucher) *storage.VoucherRecord {
	record := &storage.VoucherRecord{
		SourceVoucherID: v.ID,
		VoucherNumber:   v.Description,
		VoucherDate:     v.VoucherDate.Time,
		StatusCode:      v.Status,
		Amount:          v.SumGross,
		CreditDebit:     v.CreditDebit,
		SupplierName:    v.SupplierName,
	}
	if v.CostCentre != nil {
		record.CostCenterID = v.CostCentre.ID
		record.CostCenterName = v.CostCentre.Name
	}
	return record
}

// transactionCents converts a gross amount to integer cents. Credit
// vouchers are outflows and become negative.
func transactionCents(amount decimal.Decimal, creditDebit string) int64 {
	cents := amount.Mul(centsFactor).Round(0).IntPart()
	if creditDebit == "C" {
		cents = -cents
	}
	return cents
}

func payeeName(record *storage.VoucherRecord) string {
	if record.SupplierName != "" {
		return record.SupplierName
	}
	return "Voucher #" + record.SourceVoucherID
}
