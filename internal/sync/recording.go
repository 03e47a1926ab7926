package sync

import (
	"encoding/json"
	"time"

	"github.com/fkoester/sevactual/internal/storage"
)

// Stage names as recorded in run history.
const (
	StageCategories = "categories"
	StageVouchers   = "vouchers"
	StageReconcile  = "reconcile"
)

// recordRun appends the audit row for a completed stage. Recording
// failures are logged but never fail the stage; the sync itself already
// happened.
func (e *Engine) recordRun(stage string, startedAt time.Time, status string, stats any) {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		statsJSON = []byte("{}")
	}

	run := &storage.SyncRun{
		Stage:      stage,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Status:     status,
		StatsJSON:  string(statsJSON),
	}

	if err := e.store.RecordSyncRun(run); err != nil {
		e.logger.Error("failed to record sync run", "stage", stage, "error", err)
	}
}

func runStatus(failed int, dryRun bool) string {
	if dryRun {
		return storage.RunStatusDryRun
	}
	if failed > 0 {
		return storage.RunStatusWithErrors
	}
	return storage.RunStatusCompleted
}
