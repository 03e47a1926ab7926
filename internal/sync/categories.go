package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fkoester/sevactual/internal/storage"
)

// SyncCategories links every source cost center to a target category.
// Cost centers with an existing mapping are left alone; unmapped ones are
// matched by name (case-insensitive) or get a freshly created category.
// Target errors for a single cost center are counted and skipped so one
// bad entry cannot block the rest.
func (e *Engine) SyncCategories(ctx context.Context) (*CategoryStats, error) {
	startedAt := time.Now().UTC()
	stats := &CategoryStats{}

	costCenters, err := e.source.ListCostCenters(ctx)
	if err != nil {
		return stats, fmt.Errorf("listing cost centers: %w", err)
	}

	categories, err := e.target.ListCategories(ctx)
	if err != nil {
		return stats, fmt.Errorf("listing target categories: %w", err)
	}

	byName := make(map[string]string, len(categories))
	for _, cat := range categories {
		byName[strings.ToLower(cat.Name)] = cat.ID
	}

	e.logger.Info("category sync started",
		"cost_centers", len(costCenters),
		"target_categories", len(categories))

	for _, cc := range costCenters {
		if _, err := e.store.GetCategoryMapping(cc.ID); err == nil {
			stats.Linked++
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return stats, fmt.Errorf("reading mapping for cost center %s: %w", cc.ID, err)
		}

		targetID, ok := byName[strings.ToLower(cc.Name)]
		targetName := cc.Name
		created := false

		if !ok {
			cat, err := e.target.CreateCategory(ctx, cc.Name)
			if err != nil {
				e.logger.Error("failed to create category",
					"cost_center_id", cc.ID, "name", cc.Name, "error", err)
				stats.Failed++
				continue
			}
			targetID = cat.ID
			targetName = cat.Name
			created = true
		}

		mapping := &storage.CategoryMapping{
			SourceCostCenterID: cc.ID,
			TargetCategoryID:   targetID,
			SourceName:         cc.Name,
			TargetName:         targetName,
		}
		if err := e.store.PutCategoryMapping(mapping); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				// Raced with another writer; the existing mapping wins
				stats.Linked++
				continue
			}
			e.logger.Error("failed to store mapping",
				"cost_center_id", cc.ID, "error", err)
			stats.Failed++
			continue
		}

		if created {
			e.logger.Info("created category",
				"cost_center_id", cc.ID, "category_id", targetID, "name", cc.Name)
			stats.Created++
		} else {
			e.logger.Info("linked category by name",
				"cost_center_id", cc.ID, "category_id", targetID, "name", cc.Name)
			stats.Linked++
		}
	}

	e.recordRun(StageCategories, startedAt, runStatus(stats.Failed, false), stats)

	e.logger.Info("category sync finished",
		"linked", stats.Linked, "created", stats.Created, "failed", stats.Failed)

	return stats, nil
}
