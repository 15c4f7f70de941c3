package database

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func sampleRun(status string, startedAt time.Time) RefreshRun {
	return RefreshRun{
		StartedAt:     startedAt,
		FinishedAt:    startedAt.Add(30 * time.Second),
		Status:        status,
		TriggerSource: "scheduled",
		APIEndpoint:   "https://xyzrank.justinbot.com/assets/hot-episodes.9f86d081.json",
		EpisodeCount:  50,
		AudioCount:    42,
	}
}

func TestInsertAndGetRecentRuns(t *testing.T) {
	repo := NewRunRepository(newTestDB(t))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := repo.InsertRun(sampleRun(RunStatusSuccess, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Expected no error inserting run, got: %v", err)
		}
	}

	runs, err := repo.GetRecentRuns(2)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Error("Expected newest run first")
	}
	if runs[0].EpisodeCount != 50 || runs[0].AudioCount != 42 {
		t.Errorf("Expected counts preserved, got %d/%d", runs[0].EpisodeCount, runs[0].AudioCount)
	}
}

func TestGetRunCount(t *testing.T) {
	repo := NewRunRepository(newTestDB(t))

	count, err := repo.GetRunCount()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 runs in fresh database, got %d", count)
	}

	repo.InsertRun(sampleRun(RunStatusFailed, time.Now()))

	count, err = repo.GetRunCount()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 run, got %d", count)
	}
}

func TestGetLastSuccessfulRun(t *testing.T) {
	repo := NewRunRepository(newTestDB(t))

	run, err := repo.GetLastSuccessfulRun()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if run != nil {
		t.Error("Expected nil when no successful run exists")
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.InsertRun(sampleRun(RunStatusSuccess, base))
	repo.InsertRun(sampleRun(RunStatusFailed, base.Add(time.Hour)))

	run, err = repo.GetLastSuccessfulRun()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if run == nil {
		t.Fatal("Expected a successful run")
	}
	if run.Status != RunStatusSuccess {
		t.Errorf("Expected status success, got '%s'", run.Status)
	}
}
