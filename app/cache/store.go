package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"xyzcast/app/scraper"
)

const (
	snapshotFile   = "podcasts.json"
	feedFile       = "feed.xml"
	simpleFeedFile = "podcasts.rss"
)

// ErrNoSnapshot is returned when no snapshot has been persisted yet.
var ErrNoSnapshot = errors.New("no cached snapshot")

// Snapshot is the durable record of the last fully successful refresh run.
// It preserves the upstream data envelope, enriched episodes and
// unmodeled sibling fields alike, so the cached payload stays compatible
// with what the list endpoint returns.
type Snapshot struct {
	APIEndpoint string       `json:"apiEndpoint,omitempty"`
	FetchedAt   time.Time    `json:"fetchedAt"`
	Data        SnapshotData `json:"data"`
}

// SnapshotData holds the enriched episodes plus any other fields the
// upstream data object carried, kept verbatim.
type SnapshotData struct {
	Episodes []scraper.EnrichedEpisode
	Extra    map[string]json.RawMessage
}

func (d SnapshotData) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(d.Extra)+1)
	for k, v := range d.Extra {
		fields[k] = v
	}

	episodes, err := json.Marshal(d.Episodes)
	if err != nil {
		return nil, err
	}
	fields["episodes"] = episodes

	return json.Marshal(fields)
}

func (d *SnapshotData) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields["episodes"]; ok {
		if err := json.Unmarshal(raw, &d.Episodes); err != nil {
			return err
		}
		delete(fields, "episodes")
	}

	if len(fields) > 0 {
		d.Extra = fields
	}
	return nil
}

func NewSnapshot(endpoint string, episodes []scraper.EnrichedEpisode) *Snapshot {
	s := &Snapshot{
		APIEndpoint: endpoint,
		FetchedAt:   time.Now().UTC(),
	}
	s.Data.Episodes = episodes
	return s
}

// Store keeps the episode snapshot and the generated feed documents as
// files under a single cache directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) SaveSnapshot(snapshot *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := os.WriteFile(s.snapshotPath(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot reads the last persisted snapshot. Returns ErrNoSnapshot
// when none exists; a malformed file is an error, not an empty result.
func (s *Store) LoadSnapshot() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.snapshotPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return &snapshot, nil
}

func (s *Store) ClearSnapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeIfExists(s.snapshotPath())
}

func (s *Store) SaveFeed(xml string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.feedPath(), []byte(xml), 0o644); err != nil {
		return fmt.Errorf("failed to write feed document: %w", err)
	}
	return nil
}

func (s *Store) LoadFeed() (string, error) {
	return s.loadDocument(s.feedPath())
}

func (s *Store) SaveSimpleFeed(xml string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.simpleFeedPath(), []byte(xml), 0o644); err != nil {
		return fmt.Errorf("failed to write simple feed document: %w", err)
	}
	return nil
}

func (s *Store) LoadSimpleFeed() (string, error) {
	return s.loadDocument(s.simpleFeedPath())
}

// Clear removes the snapshot and both feed documents.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, path := range []string{s.snapshotPath(), s.feedPath(), s.simpleFeedPath()} {
		if err := removeIfExists(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) loadDocument(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoSnapshot
		}
		return "", fmt.Errorf("failed to read feed document: %w", err)
	}
	return string(data), nil
}

func (s *Store) snapshotPath() string {
	return filepath.Join(s.dir, snapshotFile)
}

func (s *Store) feedPath() string {
	return filepath.Join(s.dir, feedFile)
}

func (s *Store) simpleFeedPath() string {
	return filepath.Join(s.dir, simpleFeedFile)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
	}
	return nil
}
