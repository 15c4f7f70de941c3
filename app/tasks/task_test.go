package tasks

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"

	"xyzcast/app/cache"
	"xyzcast/app/cfg"
	"xyzcast/app/feed"
	"xyzcast/app/pipeline"
	"xyzcast/app/scraper"
)

func setupTestConfig() {
	oldArgs := os.Args
	os.Args = []string{"test"}
	defer func() { os.Args = oldArgs }()

	cfg.Load()
}

func TestTaskRetryBookkeeping(t *testing.T) {
	task := NewTask(TaskTypeRefreshData, "scheduled")

	if task.GetRetryCount() != 0 {
		t.Errorf("Expected fresh task with 0 retries, got %d", task.GetRetryCount())
	}
	if !task.CanRetry() {
		t.Error("Fresh task should be retryable")
	}

	for i := 0; i < DefaultMaxRetries; i++ {
		task.IncrementRetryCount()
	}

	if task.CanRetry() {
		t.Error("Task at max retries should not be retryable")
	}
}

func TestTaskIDsAreUnique(t *testing.T) {
	a := NewTask(TaskTypeRefreshData, "scheduled")
	b := NewTask(TaskTypeRefreshData, "scheduled")

	if a.GetID() == b.GetID() {
		t.Errorf("Expected distinct task IDs, both were '%s'", a.GetID())
	}
}

type stubRunner struct {
	snapshot *cache.Snapshot
	err      error
	calls    int
}

func (s *stubRunner) Refresh(ctx context.Context, trigger string) (*cache.Snapshot, bool, error) {
	s.calls++
	if s.err != nil {
		return nil, false, s.err
	}
	return s.snapshot, false, nil
}

func TestRefreshDataTaskExecute(t *testing.T) {
	setupTestConfig()

	snapshot := cache.NewSnapshot("", []scraper.EnrichedEpisode{
		{Episode: scraper.Episode{Title: "第1期"}, HasAudio: false},
	})
	runner := &stubRunner{snapshot: snapshot}

	task := NewRefreshDataTask("manual", runner)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if runner.calls != 1 {
		t.Errorf("Expected one refresh call, got %d", runner.calls)
	}
}

func TestRefreshDataTaskSkipsWhenRefreshInProgress(t *testing.T) {
	setupTestConfig()

	runner := &stubRunner{err: pipeline.ErrRefreshInProgress}
	task := NewRefreshDataTask("scheduled", runner)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Errorf("Concurrent refresh should not be treated as a failure, got: %v", err)
	}
}

func TestRefreshDataTaskPropagatesFailure(t *testing.T) {
	setupTestConfig()

	runner := &stubRunner{err: errors.New("browser crashed")}
	task := NewRefreshDataTask("scheduled", runner)
	task.Start()

	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected refresh failure to propagate")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	setupTestConfig()

	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	// Seed a snapshot so no startup refresh is queued.
	snapshot := cache.NewSnapshot("", nil)
	if err := store.SaveSnapshot(snapshot); err != nil {
		t.Fatalf("Failed to seed snapshot: %v", err)
	}

	p := pipeline.NewPipeline(nil, nil, store,
		feed.NewGenerator(feed.DefaultChannel()), feed.NewValidator(), nil, http.DefaultClient)

	scheduler := NewScheduler(p, store)
	scheduler.Start()
	scheduler.Stop()
}
