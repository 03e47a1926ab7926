// Command sevactual syncs paid sevDesk vouchers into an Actual Budget
// server and keeps the two sides consistent over time.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fkoester/sevactual/internal/actual"
	"github.com/fkoester/sevactual/internal/api"
	"github.com/fkoester/sevactual/internal/api/handlers"
	"github.com/fkoester/sevactual/internal/config"
	"github.com/fkoester/sevactual/internal/notify"
	"github.com/fkoester/sevactual/internal/observability"
	"github.com/fkoester/sevactual/internal/report"
	"github.com/fkoester/sevactual/internal/scheduler"
	"github.com/fkoester/sevactual/internal/sevdesk"
	"github.com/fkoester/sevactual/internal/storage"
	syncengine "github.com/fkoester/sevactual/internal/sync"
)

type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
}

func (a *app) setup() error {
	cfg, err := config.LoadOrEnv(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}

	a.cfg = cfg
	a.logger = observability.NewLogger(cfg.Logging)
	return nil
}

func (a *app) openStore() (*storage.Storage, error) {
	store, err := storage.NewStorage(a.cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", a.cfg.Storage.DatabasePath, err)
	}
	return store, nil
}

func (a *app) buildEngine(store storage.Repository, maxVouchers int) (*syncengine.Engine, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	source := sevdesk.NewClient(a.cfg.SevDesk.BaseURL, a.cfg.SevDesk.APIKey)
	target := actual.NewClient(a.cfg.Actual.URL, a.cfg.Actual.Password, a.cfg.Actual.BudgetID)

	opts := syncengine.Options{
		LookbackDays:      a.cfg.Sync.LookbackDays,
		MaxVouchers:       a.cfg.Sync.MaxVouchers,
		PaidStatusCode:    a.cfg.Sync.PaidStatusCode,
		TransferTypeCodes: a.cfg.Sync.TransferTypeCodes,
		AccountName:       a.cfg.Actual.AccountName,
	}
	if maxVouchers > 0 {
		opts.MaxVouchers = maxVouchers
	}

	return syncengine.NewEngine(source, target, store, a.logger, opts), nil
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:           "sevactual",
		Short:         "Sync sevDesk vouchers into Actual Budget",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to config file (default config.yaml, then environment)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newSyncCategoriesCmd(a),
		newSyncVouchersCmd(a),
		newSyncAllCmd(a),
		newReconcileCmd(a),
		newHistoryCmd(a),
		newInvalidCmd(a),
		newResetCmd(a),
		newServeCmd(a),
		newScheduleCmd(a),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newSyncCategoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-categories",
		Short: "Link sevDesk cost centers to Actual categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			engine, err := a.buildEngine(store, 0)
			if err != nil {
				return err
			}

			stats, err := engine.SyncCategories(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("categories: linked=%d created=%d failed=%d\n",
				stats.Linked, stats.Created, stats.Failed)
			return nil
		},
	}
}

func newSyncVouchersCmd(a *app) *cobra.Command {
	var limit int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync-vouchers",
		Short: "Sync paid vouchers into the Actual account",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			engine, err := a.buildEngine(store, limit)
			if err != nil {
				return err
			}

			stats, err := engine.SyncVouchers(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			printVoucherStats(stats)
			return writeInvalidReport(a, store)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "cap the number of vouchers fetched")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and report without creating transactions")
	return cmd
}

func newSyncAllCmd(a *app) *cobra.Command {
	var reconcile bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync-all",
		Short: "Run category sync then voucher sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			engine, err := a.buildEngine(store, 0)
			if err != nil {
				return err
			}

			result, err := engine.Run(cmd.Context(), syncengine.RunOptions{
				Reconcile: reconcile,
				DryRun:    dryRun,
			})
			if result != nil {
				if result.Categories != nil {
					fmt.Printf("categories: linked=%d created=%d failed=%d\n",
						result.Categories.Linked, result.Categories.Created, result.Categories.Failed)
				}
				if result.Vouchers != nil {
					printVoucherStats(result.Vouchers)
				}
				if result.Reconcile != nil {
					printReconcileStats(result.Reconcile)
				}
			}
			if err != nil {
				return err
			}
			return writeInvalidReport(a, store)
		},
	}
	cmd.Flags().BoolVar(&reconcile, "reconcile", false, "also remove transactions for deleted vouchers")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and report without changing the target")
	return cmd
}

func newReconcileCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Remove target transactions whose source voucher is gone",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			engine, err := a.buildEngine(store, 0)
			if err != nil {
				return err
			}

			stats, err := engine.Reconcile(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			printReconcileStats(stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report orphans without deleting")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.ListSyncRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no sync runs recorded")
				return nil
			}
			for _, run := range runs {
				fmt.Printf("%-5d %-11s %-21s %-22s %s\n",
					run.ID, run.Stage,
					run.StartedAt.Format("2006-01-02 15:04:05"),
					run.Status, run.StatsJSON)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

func newInvalidCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "invalid",
		Short: "List vouchers that failed validation and refresh the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			vouchers, err := store.ListInvalidVouchers()
			if err != nil {
				return err
			}
			if len(vouchers) == 0 {
				fmt.Println("no invalid vouchers")
			}
			for _, v := range vouchers {
				number := v.VoucherNumber
				if number == "" {
					number = v.SourceVoucherID
				}
				fmt.Printf("%-20s %-12s %-30s %10s  %s\n",
					number, v.VoucherDate.Format("2006-01-02"),
					v.SupplierName, v.Amount.StringFixed(2), v.ValidationReason)
			}
			return writeInvalidReport(a, store)
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	var confirm bool
	var full bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear local sync state so the next run starts fresh",
		Long: "Clears the voucher cache and sync linkage. With --full, category\n" +
			"mappings and run history are removed as well. Transactions already\n" +
			"created on the Actual side are not touched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("refusing to reset without --confirm")
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.ResetSyncState(full); err != nil {
				return err
			}
			fmt.Println("sync state cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "actually perform the reset")
	cmd.Flags().BoolVar(&full, "full", false, "also remove category mappings and run history")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			// Sync triggers are only offered when credentials are complete;
			// the read-only endpoints work either way
			var runner *syncengine.Engine
			if engine, err := a.buildEngine(store, 0); err == nil {
				runner = engine
			} else {
				a.logger.Warn("sync endpoints disabled", "reason", err)
			}

			apiCfg := api.DefaultConfig()
			apiCfg.Port = a.cfg.Server.Port
			server := api.NewServer(apiCfg, store, runnerOrNil(runner), a.logger)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-sigCh:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(ctx)
			}
		},
	}
}

func newScheduleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the full sync on the configured cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			engine, err := a.buildEngine(store, 0)
			if err != nil {
				return err
			}

			mailer := notify.NewMailer(a.cfg.SMTP, a.logger)
			sched := scheduler.New(engine, store, mailer, a.cfg.Sync.ReportPath, a.logger)
			if err := sched.Start(a.cfg.Schedule.Cron); err != nil {
				return fmt.Errorf("invalid cron spec %q: %w", a.cfg.Schedule.Cron, err)
			}
			defer sched.Stop()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			return nil
		},
	}
}

func printVoucherStats(stats *syncengine.VoucherStats) {
	fmt.Printf("vouchers: synced=%d created=%d skipped=%d failed=%d validated=%d invalid=%d\n",
		stats.Synced, stats.Created, stats.Skipped, stats.Failed, stats.Validated, stats.Invalid)
}

func printReconcileStats(stats *syncengine.ReconcileStats) {
	fmt.Printf("reconcile: checked=%d orphaned=%d deleted=%d failed=%d\n",
		stats.Checked, stats.Orphaned, stats.Deleted, stats.Failed)
}

func writeInvalidReport(a *app, store storage.Repository) error {
	if a.cfg.Sync.ReportPath == "" {
		return nil
	}
	invalid, err := store.ListInvalidVouchers()
	if err != nil {
		return err
	}
	if err := report.Write(a.cfg.Sync.ReportPath, invalid); err != nil {
		return err
	}
	if len(invalid) > 0 {
		fmt.Printf("invalid voucher report written to %s\n", a.cfg.Sync.ReportPath)
	}
	return nil
}

// runnerOrNil avoids handing the server a typed nil interface.
func runnerOrNil(engine *syncengine.Engine) handlers.Runner {
	if engine == nil {
		return nil
	}
	return engine
}
