package dto

import (
	"time"

	"github.com/fkoester/sevactual/internal/storage"
)

// RunResponse is one row of run history.
type RunResponse struct {
	ID         int64     `json:"id"`
	Stage      string    `json:"stage"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	Stats      string    `json:"stats"`
}

// FromSyncRun converts a storage run into its API form.
func FromSyncRun(run *storage.SyncRun) RunResponse {
	return RunResponse{
		ID:         run.ID,
		Stage:      run.Stage,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Status:     run.Status,
		Stats:      run.StatsJSON,
	}
}

// InvalidVoucherResponse is one voucher in the invalid listing.
type InvalidVoucherResponse struct {
	SourceVoucherID string     `json:"source_voucher_id"`
	VoucherNumber   string     `json:"voucher_number"`
	VoucherDate     string     `json:"voucher_date,omitempty"`
	SupplierName    string     `json:"supplier_name,omitempty"`
	Amount          string     `json:"amount"`
	Reason          string     `json:"reason"`
	LastValidatedAt *time.Time `json:"last_validated_at,omitempty"`
}

// FromVoucher converts a voucher record into its invalid-listing form.
func FromVoucher(v *storage.VoucherRecord) InvalidVoucherResponse {
	resp := InvalidVoucherResponse{
		SourceVoucherID: v.SourceVoucherID,
		VoucherNumber:   v.VoucherNumber,
		SupplierName:    v.SupplierName,
		Amount:          v.Amount.StringFixed(2),
		Reason:          v.ValidationReason,
		LastValidatedAt: v.LastValidatedAt,
	}
	if !v.VoucherDate.IsZero() {
		resp.VoucherDate = v.VoucherDate.Format("2006-01-02")
	}
	return resp
}
