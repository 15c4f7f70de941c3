package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"xyzcast/app/cache"
	"xyzcast/app/pipeline"
)

// RefreshRunner is the slice of the pipeline a refresh task needs.
type RefreshRunner interface {
	Refresh(ctx context.Context, trigger string) (*cache.Snapshot, bool, error)
}

type RefreshDataTask struct {
	Task
	pipeline RefreshRunner
}

func NewRefreshDataTask(trigger string, p RefreshRunner) *RefreshDataTask {
	return &RefreshDataTask{
		Task:     NewTask(TaskTypeRefreshData, trigger),
		pipeline: p,
	}
}

func (t *RefreshDataTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	snapshot, fromCache, err := t.pipeline.Refresh(ctx, t.Trigger)
	if err != nil {
		if errors.Is(err, pipeline.ErrRefreshInProgress) {
			slog.Debug("Refresh already running, skipping task", "id", t.ID)
			return nil
		}
		return fmt.Errorf("refresh failed: %w", err)
	}

	slog.Info("Task completed",
		"type", "RefreshData",
		"trigger", t.Trigger,
		"duration", t.GetDuration(),
		"episodes", len(snapshot.Data.Episodes),
		"from_cache", fromCache)

	return nil
}
