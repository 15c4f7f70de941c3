package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"xyzcast/app/cache"
	"xyzcast/app/cfg"
	"xyzcast/app/database"
	"xyzcast/app/feed"
	"xyzcast/app/scraper"
)

const fetchTimeout = 10 * time.Second

var (
	// ErrEndpointNotFound means the fingerprinted episode list URL could
	// not be observed on the upstream site.
	ErrEndpointNotFound = errors.New("episode list endpoint not found")
	// ErrMalformedResponse means the list endpoint answered but the
	// payload did not carry the expected episodes envelope.
	ErrMalformedResponse = errors.New("malformed episode list response")
	// ErrCacheUnavailable means an operation needed a cached snapshot
	// and none exists.
	ErrCacheUnavailable = errors.New("no cached snapshot available")
	// ErrRefreshInProgress means another refresh run holds the lock.
	ErrRefreshInProgress = errors.New("refresh already in progress")
)

type EndpointDiscoverer interface {
	DiscoverEndpoint(ctx context.Context) (string, error)
}

type AudioResolver interface {
	ResolveAudioURL(ctx context.Context, pageURL string) string
}

// Pipeline orchestrates a full refresh: endpoint discovery, episode
// list fetch, per-episode audio resolution, snapshot persistence and
// feed regeneration. At most one refresh runs at a time.
type Pipeline struct {
	discoverer   EndpointDiscoverer
	resolver     AudioResolver
	store        *cache.Store
	generator    *feed.Generator
	validator    *feed.Validator
	runRepo      database.RunRepository
	httpClient   *http.Client
	userAgent    string
	siteURL      string
	episodeDelay time.Duration

	refreshMu sync.Mutex
}

func NewPipeline(discoverer EndpointDiscoverer, resolver AudioResolver, store *cache.Store,
	generator *feed.Generator, validator *feed.Validator, runRepo database.RunRepository,
	httpClient *http.Client) *Pipeline {
	cfg := cfg.Get()

	return &Pipeline{
		discoverer:   discoverer,
		resolver:     resolver,
		store:        store,
		generator:    generator,
		validator:    validator,
		runRepo:      runRepo,
		httpClient:   httpClient,
		userAgent:    cfg.UserAgent,
		siteURL:      cfg.SiteURL,
		episodeDelay: time.Duration(cfg.EpisodeDelay) * time.Millisecond,
	}
}

// Refresh rebuilds the snapshot from the upstream site. When discovery
// or the list fetch fails and a cached snapshot exists, the cached copy
// is returned instead of an error. The second return value reports
// whether the result came from the cache.
func (p *Pipeline) Refresh(ctx context.Context, trigger string) (*cache.Snapshot, bool, error) {
	return p.run(ctx, trigger, true)
}

// ForceRefresh drops the cached snapshot first and never falls back to
// it, so a failure surfaces instead of serving stale data.
func (p *Pipeline) ForceRefresh(ctx context.Context) (*cache.Snapshot, error) {
	if err := p.store.ClearSnapshot(); err != nil {
		return nil, fmt.Errorf("failed to clear snapshot: %w", err)
	}

	snapshot, _, err := p.run(ctx, "forced", false)
	return snapshot, err
}

func (p *Pipeline) run(ctx context.Context, trigger string, allowFallback bool) (*cache.Snapshot, bool, error) {
	if !p.refreshMu.TryLock() {
		return nil, false, ErrRefreshInProgress
	}
	defer p.refreshMu.Unlock()

	startedAt := time.Now()
	slog.Info("Refresh started", "trigger", trigger)

	endpoint, err := p.discoverer.DiscoverEndpoint(ctx)
	if err != nil || endpoint == "" {
		if err == nil {
			err = ErrEndpointNotFound
		} else {
			err = fmt.Errorf("%w: %w", ErrEndpointNotFound, err)
		}
		return p.fallback(trigger, startedAt, allowFallback, err)
	}

	response, err := p.fetchEpisodeList(ctx, endpoint)
	if err != nil {
		return p.fallback(trigger, startedAt, allowFallback, err)
	}

	enriched := p.enrichEpisodes(ctx, response.Data.Episodes)
	if err := ctx.Err(); err != nil {
		return p.fallback(trigger, startedAt, allowFallback, err)
	}

	snapshot := cache.NewSnapshot(endpoint, enriched)
	snapshot.Data.Extra = response.Data.Extra
	if err := p.store.SaveSnapshot(snapshot); err != nil {
		return nil, false, err
	}

	p.regenerateFeeds(snapshot)

	audioCount := 0
	for _, ep := range enriched {
		if ep.HasAudio {
			audioCount++
		}
	}

	p.recordRun(database.RefreshRun{
		StartedAt:     startedAt,
		FinishedAt:    time.Now(),
		Status:        database.RunStatusSuccess,
		TriggerSource: trigger,
		APIEndpoint:   endpoint,
		EpisodeCount:  len(enriched),
		AudioCount:    audioCount,
	})

	slog.Info("Refresh completed", "trigger", trigger, "episodes", len(enriched), "with_audio", audioCount,
		"duration", time.Since(startedAt).String())

	return snapshot, false, nil
}

// fallback serves the cached snapshot when the upstream site is
// unreachable, so a transient outage never empties the feeds.
func (p *Pipeline) fallback(trigger string, startedAt time.Time, allowFallback bool, cause error) (*cache.Snapshot, bool, error) {
	if allowFallback {
		if snapshot, cacheErr := p.store.LoadSnapshot(); cacheErr == nil {
			slog.Warn("Refresh failed, serving cached snapshot", "trigger", trigger, "error", cause)
			p.recordRun(database.RefreshRun{
				StartedAt:     startedAt,
				FinishedAt:    time.Now(),
				Status:        database.RunStatusFallback,
				TriggerSource: trigger,
				EpisodeCount:  len(snapshot.Data.Episodes),
				Error:         cause.Error(),
			})
			return snapshot, true, nil
		}
	}

	p.recordRun(database.RefreshRun{
		StartedAt:     startedAt,
		FinishedAt:    time.Now(),
		Status:        database.RunStatusFailed,
		TriggerSource: trigger,
		Error:         cause.Error(),
	})

	return nil, false, cause
}

func (p *Pipeline) fetchEpisodeList(ctx context.Context, endpoint string) (*scraper.HotEpisodesResponse, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", p.siteURL+"/")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch episode list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("episode list returned HTTP %d", resp.StatusCode)
	}

	var response scraper.HotEpisodesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if response.Data.Episodes == nil {
		return nil, fmt.Errorf("%w: missing episodes list", ErrMalformedResponse)
	}

	return &response, nil
}

// enrichEpisodes resolves an audio URL for every episode that has a
// page link, pausing between fetches so the episode pages are not
// hammered. Resolution failures leave the episode in the list without
// audio.
func (p *Pipeline) enrichEpisodes(ctx context.Context, episodes []scraper.Episode) []scraper.EnrichedEpisode {
	enriched := make([]scraper.EnrichedEpisode, 0, len(episodes))

	for i, ep := range episodes {
		audioURL := ""
		if ep.Link != "" && ctx.Err() == nil {
			audioURL = p.resolver.ResolveAudioURL(ctx, ep.Link)
		}

		enriched = append(enriched, scraper.EnrichedEpisode{
			Episode:           ep,
			ExtractedAudioURL: audioURL,
			HasAudio:          audioURL != "",
		})

		if p.episodeDelay > 0 && i < len(episodes)-1 {
			select {
			case <-time.After(p.episodeDelay):
			case <-ctx.Done():
				return enriched
			}
		}
	}

	return enriched
}

func (p *Pipeline) regenerateFeeds(snapshot *cache.Snapshot) {
	feedXML := p.generator.Run(snapshot.Data.Episodes)
	if err := p.validator.Run(feedXML); err != nil {
		slog.Warn("Generated feed failed validation", "error", err)
	}
	if err := p.store.SaveFeed(feedXML); err != nil {
		slog.Error("Failed to persist feed document", "error", err)
	}

	simpleXML := p.generator.RunSimple(snapshot.Data.Episodes)
	if err := p.validator.Run(simpleXML); err != nil {
		slog.Warn("Generated simple feed failed validation", "error", err)
	}
	if err := p.store.SaveSimpleFeed(simpleXML); err != nil {
		slog.Error("Failed to persist simple feed document", "error", err)
	}
}

func (p *Pipeline) recordRun(run database.RefreshRun) {
	if p.runRepo == nil {
		return
	}
	if _, err := p.runRepo.InsertRun(run); err != nil {
		slog.Warn("Failed to record refresh run", "error", err)
	}
}

// CachedEpisodes returns the last persisted snapshot without touching
// the upstream site.
func (p *Pipeline) CachedEpisodes() (*cache.Snapshot, error) {
	snapshot, err := p.store.LoadSnapshot()
	if err != nil {
		if errors.Is(err, cache.ErrNoSnapshot) {
			return nil, ErrCacheUnavailable
		}
		return nil, err
	}
	return snapshot, nil
}

// RegenerateFeeds rebuilds both feed documents from the cached
// snapshot without refreshing upstream data.
func (p *Pipeline) RegenerateFeeds() (*cache.Snapshot, error) {
	snapshot, err := p.CachedEpisodes()
	if err != nil {
		return nil, err
	}

	p.regenerateFeeds(snapshot)
	return snapshot, nil
}

// DiscoverEndpoint exposes a one-off discovery run, bypassing the
// refresh lock.
func (p *Pipeline) DiscoverEndpoint(ctx context.Context) (string, error) {
	endpoint, err := p.discoverer.DiscoverEndpoint(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEndpointNotFound, err)
	}
	if endpoint == "" {
		return "", ErrEndpointNotFound
	}
	return endpoint, nil
}

// ClearCache drops the snapshot and both feed documents.
func (p *Pipeline) ClearCache() error {
	return p.store.Clear()
}

// Feed returns the persisted primary feed document, regenerating it
// from the snapshot when the file is missing.
func (p *Pipeline) Feed() (string, error) {
	xml, err := p.store.LoadFeed()
	if err == nil {
		return xml, nil
	}
	if !errors.Is(err, cache.ErrNoSnapshot) {
		return "", err
	}

	snapshot, err := p.CachedEpisodes()
	if err != nil {
		return "", err
	}
	p.regenerateFeeds(snapshot)
	return p.store.LoadFeed()
}

// SimpleFeed returns the persisted plain feed document, regenerating
// it from the snapshot when the file is missing.
func (p *Pipeline) SimpleFeed() (string, error) {
	xml, err := p.store.LoadSimpleFeed()
	if err == nil {
		return xml, nil
	}
	if !errors.Is(err, cache.ErrNoSnapshot) {
		return "", err
	}

	snapshot, err := p.CachedEpisodes()
	if err != nil {
		return "", err
	}
	p.regenerateFeeds(snapshot)
	return p.store.LoadSimpleFeed()
}
