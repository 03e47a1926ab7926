// Package scheduler runs the full sync on a cron schedule and publishes
// the invalid-voucher report after every run.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fkoester/sevactual/internal/notify"
	"github.com/fkoester/sevactual/internal/report"
	"github.com/fkoester/sevactual/internal/storage"
	syncengine "github.com/fkoester/sevactual/internal/sync"
)

// Runner is the sync surface the scheduler drives; *sync.Engine
// implements it.
type Runner interface {
	Run(ctx context.Context, opts syncengine.RunOptions) (*syncengine.Result, error)
}

// Scheduler triggers periodic sync runs.
type Scheduler struct {
	cron       *cron.Cron
	runner     Runner
	store      storage.Repository
	mailer     *notify.Mailer
	reportPath string
	runTimeout time.Duration
	logger     *slog.Logger
}

// New creates a scheduler. mailer may be nil when notifications are not
// configured.
func New(runner Runner, store storage.Repository, mailer *notify.Mailer, reportPath string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:       cron.New(),
		runner:     runner,
		store:      store,
		mailer:     mailer,
		reportPath: reportPath,
		runTimeout: 30 * time.Minute,
		logger:     logger,
	}
}

// Start registers the cron entry and starts the scheduler. The spec uses
// standard five-field cron syntax.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "cron", spec)
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// RunOnce executes one full sync with reconciliation, then refreshes the
// report and sends notifications. All failures are logged; the scheduler
// itself keeps running.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	s.logger.Info("scheduled sync starting")

	result, err := s.runner.Run(ctx, syncengine.RunOptions{Reconcile: true})
	if err != nil {
		s.logger.Error("scheduled sync failed", "error", err)
	}
	if result != nil && result.Vouchers != nil {
		s.logger.Info("scheduled sync finished",
			"synced", result.Vouchers.Synced,
			"invalid", result.Vouchers.Invalid,
			"failed", result.Vouchers.Failed)
	}

	s.publishInvalid()
}

func (s *Scheduler) publishInvalid() {
	invalid, err := s.store.ListInvalidVouchers()
	if err != nil {
		s.logger.Error("failed to list invalid vouchers", "error", err)
		return
	}

	if s.reportPath != "" {
		if err := report.Write(s.reportPath, invalid); err != nil {
			s.logger.Error("failed to write invalid voucher report", "error", err)
		}
	}

	if s.mailer != nil {
		if err := s.mailer.SendInvalidVouchers(invalid); err != nil {
			s.logger.Error("failed to send notification", "error", err)
		}
	}
}
