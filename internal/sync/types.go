// Package sync implements the three sync stages: category linking,
// voucher transfer and reconciliation. Stages compose only through the
// state store; a stage never calls another stage.
package sync

import (
	"context"
	"log/slog"

	"github.com/fkoester/sevactual/internal/actual"
	"github.com/fkoester/sevactual/internal/sevdesk"
	"github.com/fkoester/sevactual/internal/storage"
)

// SourceClient is the accounting-side surface the stages consume.
// *sevdesk.Client implements it.
type SourceClient interface {
	ListCostCenters(ctx context.Context) ([]sevdesk.CostCenter, error)
	ListVouchers(ctx context.Context, filter sevdesk.VoucherFilter) ([]sevdesk.Voucher, error)
	ListVoucherPositions(ctx context.Context, voucherID string) ([]sevdesk.VoucherPosition, error)
}

// TargetClient is the budgeting-side surface the stages consume.
// *actual.Client implements it.
type TargetClient interface {
	ListCategories(ctx context.Context) ([]actual.Category, error)
	CreateCategory(ctx context.Context, name string) (*actual.Category, error)
	GetOrCreateAccount(ctx context.Context, name string) (*actual.Account, error)
	CreateTransaction(ctx context.Context, tx *actual.Transaction) (string, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// Options tune the engine. Zero values fall back to the documented
// defaults in NewEngine.
type Options struct {
	LookbackDays      int
	MaxVouchers       int
	PaidStatusCode    string
	TransferTypeCodes []string
	AccountName       string
}

// Engine runs the sync stages against one source, one target and one
// state store.
type Engine struct {
	source SourceClient
	target TargetClient
	store  storage.Repository
	logger *slog.Logger
	opts   Options
}

// NewEngine wires an engine. Defaults: 30 day lookback, paid status 1000,
// account name "sevDesk".
func NewEngine(source SourceClient, target TargetClient, store storage.Repository, logger *slog.Logger, opts Options) *Engine {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 30
	}
	if opts.PaidStatusCode == "" {
		opts.PaidStatusCode = sevdesk.StatusPaid
	}
	if opts.AccountName == "" {
		opts.AccountName = "sevDesk"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		source: source,
		target: target,
		store:  store,
		logger: logger,
		opts:   opts,
	}
}

// CategoryStats summarizes one category sync run.
type CategoryStats struct {
	Linked  int `json:"linked"`
	Created int `json:"created"`
	Failed  int `json:"failed"`
}

// VoucherStats summarizes one voucher sync run.
type VoucherStats struct {
	Synced    int `json:"synced"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Validated int `json:"validated"`
	Invalid   int `json:"invalid"`
}

// ReconcileStats summarizes one reconciliation run.
type ReconcileStats struct {
	Checked  int `json:"checked"`
	Orphaned int `json:"orphaned"`
	Deleted  int `json:"deleted"`
	Failed   int `json:"failed"`
}

// Result bundles the stats of a combined run. Stages that did not run
// are nil.
type Result struct {
	Categories *CategoryStats  `json:"categories,omitempty"`
	Vouchers   *VoucherStats   `json:"vouchers,omitempty"`
	Reconcile  *ReconcileStats `json:"reconcile,omitempty"`
}

// ImportedIDPrefix marks transactions created by this engine so the
// target can deduplicate re-imports.
const ImportedIDPrefix = "sevdesk_voucher_"
