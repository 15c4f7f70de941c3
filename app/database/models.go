package database

import (
	"time"
)

const (
	RunStatusSuccess  = "success"
	RunStatusFallback = "fallback"
	RunStatusFailed   = "failed"
)

// RefreshRun records one attempt to rebuild the episode snapshot.
type RefreshRun struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    time.Time
	Status        string // success, fallback, failed
	TriggerSource string // scheduled, manual, forced
	APIEndpoint   string
	EpisodeCount  int
	AudioCount    int
	Error         string
}
