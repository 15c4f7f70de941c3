package database

type RunRepository interface {
	InsertRun(run RefreshRun) (int64, error)
	GetRecentRuns(limit int) ([]RefreshRun, error)
	GetRunCount() (int, error)
	GetLastSuccessfulRun() (*RefreshRun, error)
}
