package database

import (
	"database/sql"
	"fmt"
)

var _ RunRepository = (*RunRepositoryImpl)(nil)

type RunRepositoryImpl struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepositoryImpl {
	return &RunRepositoryImpl{db: db}
}

func (r *RunRepositoryImpl) InsertRun(run RefreshRun) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO refresh_runs
			(started_at, finished_at, status, trigger_source, api_endpoint, episode_count, audio_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Status, run.TriggerSource,
		run.APIEndpoint, run.EpisodeCount, run.AudioCount, run.Error)
	if err != nil {
		return 0, fmt.Errorf("failed to insert refresh run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get refresh run id: %w", err)
	}

	return id, nil
}

// GetRecentRuns returns the newest runs first.
func (r *RunRepositoryImpl) GetRecentRuns(limit int) ([]RefreshRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT id, started_at, finished_at, status, trigger_source, api_endpoint, episode_count, audio_count, error
		FROM refresh_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh runs: %w", err)
	}
	defer rows.Close()

	var runs []RefreshRun
	for rows.Next() {
		var run RefreshRun
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Status, &run.TriggerSource,
			&run.APIEndpoint, &run.EpisodeCount, &run.AudioCount, &run.Error); err != nil {
			return nil, fmt.Errorf("failed to scan refresh run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func (r *RunRepositoryImpl) GetRunCount() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM refresh_runs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count refresh runs: %w", err)
	}
	return count, nil
}

func (r *RunRepositoryImpl) GetLastSuccessfulRun() (*RefreshRun, error) {
	var run RefreshRun
	err := r.db.QueryRow(`
		SELECT id, started_at, finished_at, status, trigger_source, api_endpoint, episode_count, audio_count, error
		FROM refresh_runs
		WHERE status = ?
		ORDER BY started_at DESC
		LIMIT 1
	`, RunStatusSuccess).Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Status, &run.TriggerSource,
		&run.APIEndpoint, &run.EpisodeCount, &run.AudioCount, &run.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last successful run: %w", err)
	}

	return &run, nil
}
