package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkoester/sevactual/internal/actual"
	"github.com/fkoester/sevactual/internal/sevdesk"
	"github.com/fkoester/sevactual/internal/storage"
)

func TestSyncCategories_LinksByNameCaseInsensitive(t *testing.T) {
	source := &fakeSource{
		costCenters: []sevdesk.CostCenter{{ID: "CC-1", Name: "OFFICE"}},
	}
	target := &fakeTarget{
		categories: []actual.Category{{ID: "cat-1", Name: "Office"}},
	}
	store := storage.NewMockRepository()

	engine := NewEngine(source, target, store, nil, Options{})
	stats, err := engine.SyncCategories(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Linked)
	assert.Zero(t, stats.Created)
	assert.Empty(t, target.createdCategories)

	mapping, err := store.GetCategoryMapping("CC-1")
	require.NoError(t, err)
	assert.Equal(t, "cat-1", mapping.TargetCategoryID)
}

func TestSyncCategories_CreatesMissingCategory(t *testing.T) {
	source := &fakeSource{
		costCenters: []sevdesk.CostCenter{{ID: "CC-1", Name: "Travel"}},
	}
	target := &fakeTarget{}
	store := storage.NewMockRepository()

	engine := NewEngine(source, target, store, nil, Options{})
	stats, err := engine.SyncCategories(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, []string{"Travel"}, target.createdCategories)

	mapping, err := store.GetCategoryMapping("CC-1")
	require.NoError(t, err)
	assert.Equal(t, "cat-Travel", mapping.TargetCategoryID)
}

func TestSyncCategories_ExistingMappingUntouched(t *testing.T) {
	source := &fakeSource{
		costCenters: []sevdesk.CostCenter{{ID: "CC-1", Name: "Office"}},
	}
	target := &fakeTarget{
		categories: []actual.Category{{ID: "cat-other", Name: "Office"}},
	}
	store := storage.NewMockRepository()
	require.NoError(t, store.PutCategoryMapping(&storage.CategoryMapping{
		SourceCostCenterID: "CC-1",
		TargetCategoryID:   "cat-original",
	}))

	engine := NewEngine(source, target, store, nil, Options{})
	stats, err := engine.SyncCategories(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Linked)
	mapping, err := store.GetCategoryMapping("CC-1")
	require.NoError(t, err)
	assert.Equal(t, "cat-original", mapping.TargetCategoryID)
}

func TestSyncCategories_TargetErrorContained(t *testing.T) {
	source := &fakeSource{
		costCenters: []sevdesk.CostCenter{
			{ID: "CC-1", Name: "Broken"},
			{ID: "CC-2", Name: "Office"},
		},
	}
	target := &fakeTarget{
		categories:        []actual.Category{{ID: "cat-1", Name: "Office"}},
		createCategoryErr: errors.New("server down"),
	}
	store := storage.NewMockRepository()

	engine := NewEngine(source, target, store, nil, Options{})
	stats, err := engine.SyncCategories(context.Background())
	require.NoError(t, err)

	// CC-1 failed to create, CC-2 still linked
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Linked)

	_, err = store.GetCategoryMapping("CC-2")
	assert.NoError(t, err)
}

func TestSyncCategories_SourceErrorAbortsStage(t *testing.T) {
	source := &fakeSource{listCostCentersErr: errors.New("timeout")}
	store := storage.NewMockRepository()

	engine := NewEngine(source, &fakeTarget{}, store, nil, Options{})
	_, err := engine.SyncCategories(context.Background())
	require.Error(t, err)

	// No run recorded for an aborted stage
	assert.Zero(t, store.RecordRunCalls)
}

func TestSyncCategories_RecordsRun(t *testing.T) {
	source := &fakeSource{
		costCenters: []sevdesk.CostCenter{{ID: "CC-1", Name: "Office"}},
	}
	store := storage.NewMockRepository()

	engine := NewEngine(source, &fakeTarget{}, store, nil, Options{})
	_, err := engine.SyncCategories(context.Background())
	require.NoError(t, err)

	runs, err := store.ListSyncRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StageCategories, runs[0].Stage)
	assert.Equal(t, storage.RunStatusCompleted, runs[0].Status)
	assert.Contains(t, runs[0].StatsJSON, `"created":1`)
}
