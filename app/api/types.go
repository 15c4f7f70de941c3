package api

import (
	"context"

	"xyzcast/app/cache"
	"xyzcast/app/database"
	"xyzcast/app/pipeline"
	"xyzcast/app/tasks"
)

type PipelineInterface interface {
	Refresh(ctx context.Context, trigger string) (*cache.Snapshot, bool, error)
	ForceRefresh(ctx context.Context) (*cache.Snapshot, error)
	CachedEpisodes() (*cache.Snapshot, error)
	RegenerateFeeds() (*cache.Snapshot, error)
	DiscoverEndpoint(ctx context.Context) (string, error)
	ClearCache() error
	Feed() (string, error)
	SimpleFeed() (string, error)
}

var _ PipelineInterface = (*pipeline.Pipeline)(nil)

type Handler struct {
	pipeline  PipelineInterface
	runRepo   database.RunRepository
	scheduler tasks.TaskSchedulerInterface
}
