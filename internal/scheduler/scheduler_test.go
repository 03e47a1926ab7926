package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkoester/sevactual/internal/storage"
	syncengine "github.com/fkoester/sevactual/internal/sync"
)

type stubRunner struct {
	calls  int
	err    error
	result *syncengine.Result
}

func (r *stubRunner) Run(ctx context.Context, opts syncengine.RunOptions) (*syncengine.Result, error) {
	r.calls++
	if !opts.Reconcile {
		return nil, errors.New("scheduled runs must reconcile")
	}
	return r.result, r.err
}

func TestRunOnce_WritesReport(t *testing.T) {
	store := storage.NewMockRepository()
	require.NoError(t, store.UpsertVoucher(&storage.VoucherRecord{
		SourceVoucherID: "V-1",
		Amount:          decimal.RequireFromString("10"),
	}))
	require.NoError(t, store.MarkValidated("V-1", storage.ValidationInvalid, "missing cost center"))

	runner := &stubRunner{result: &syncengine.Result{Vouchers: &syncengine.VoucherStats{Invalid: 1}}}
	reportPath := filepath.Join(t.TempDir(), "invalid.md")

	s := New(runner, store, nil, reportPath, nil)
	s.RunOnce()

	assert.Equal(t, 1, runner.calls)
	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "missing cost center")
}

func TestRunOnce_RunFailureStillPublishes(t *testing.T) {
	store := storage.NewMockRepository()
	runner := &stubRunner{err: errors.New("api down")}
	reportPath := filepath.Join(t.TempDir(), "invalid.md")

	s := New(runner, store, nil, reportPath, nil)
	s.RunOnce()

	// Report is refreshed even when the run failed
	_, err := os.Stat(reportPath)
	assert.NoError(t, err)
}

func TestStart_RejectsBadCronSpec(t *testing.T) {
	s := New(&stubRunner{}, storage.NewMockRepository(), nil, "", nil)
	err := s.Start("not a cron spec")
	require.Error(t, err)
}

func TestStart_AcceptsStandardSpec(t *testing.T) {
	s := New(&stubRunner{}, storage.NewMockRepository(), nil, "", nil)
	require.NoError(t, s.Start("0 6 * * *"))
	s.Stop()
}
