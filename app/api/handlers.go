package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"xyzcast/app/cache"
	"xyzcast/app/database"
	"xyzcast/app/pipeline"
	"xyzcast/app/scraper"
	"xyzcast/app/tasks"
)

func NewHandler(p PipelineInterface, runRepo database.RunRepository,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		pipeline:  p,
		runRepo:   runRepo,
		scheduler: scheduler,
	}
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success":   false,
		"error":     message,
		"timestamp": timestamp(),
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrRefreshInProgress):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrEndpointNotFound), errors.Is(err, pipeline.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// documentStatus maps errors for the plain feed-document routes, where a
// missing document is a 404 rather than a JSON error envelope.
func documentStatus(err error) int {
	if errors.Is(err, pipeline.ErrCacheUnavailable) {
		return http.StatusNotFound
	}
	return statusForError(err)
}

func audioCount(snapshot *cache.Snapshot) int {
	count := 0
	for _, ep := range snapshot.Data.Episodes {
		if ep.HasAudio {
			count++
		}
	}
	return count
}

func (h *Handler) GetFeed(c *gin.Context) {
	xml, err := h.pipeline.Feed()
	if err != nil {
		slog.Error("Failed to serve feed document", "error", err)
		c.Status(documentStatus(err))
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, xml)
}

func (h *Handler) GetSimpleFeed(c *gin.Context) {
	xml, err := h.pipeline.SimpleFeed()
	if err != nil {
		slog.Error("Failed to serve simple feed document", "error", err)
		c.Status(documentStatus(err))
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, xml)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"status":    "ok",
		"timestamp": timestamp(),
	}

	if h.runRepo != nil {
		if count, err := h.runRepo.GetRunCount(); err == nil {
			health["refresh_runs"] = count
		}
		if run, err := h.runRepo.GetLastSuccessfulRun(); err == nil && run != nil {
			health["last_success_at"] = run.FinishedAt.Format(time.RFC3339)
		}
	}

	c.JSON(http.StatusOK, health)
}

// GetEndpoint runs a live discovery pass and reports the fingerprinted
// episode list URL currently served by the upstream site.
func (h *Handler) GetEndpoint(c *gin.Context) {
	endpoint, err := h.pipeline.DiscoverEndpoint(c.Request.Context())
	if err != nil {
		slog.Error("Endpoint discovery failed", "error", err)
		fail(c, statusForError(err), err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"apiEndpoint": endpoint,
		"timestamp":   timestamp(),
	})
}

// GetPodcasts returns the cached enriched list without triggering a
// pipeline run. An empty cache is an empty list, not an error.
func (h *Handler) GetPodcasts(c *gin.Context) {
	snapshot, err := h.pipeline.CachedEpisodes()
	if err != nil {
		if errors.Is(err, pipeline.ErrCacheUnavailable) {
			c.JSON(http.StatusOK, gin.H{
				"success":   true,
				"count":     0,
				"data":      gin.H{"episodes": []scraper.EnrichedEpisode{}},
				"timestamp": timestamp(),
			})
			return
		}
		fail(c, statusForError(err), err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"apiEndpoint": snapshot.APIEndpoint,
		"fetchedAt":   snapshot.FetchedAt.Format(time.RFC3339),
		"count":       len(snapshot.Data.Episodes),
		"data":        snapshot.Data,
		"timestamp":   timestamp(),
	})
}

// UpdateData refreshes the snapshot. With ?background=true the refresh
// is queued on the task scheduler and the request returns immediately.
func (h *Handler) UpdateData(c *gin.Context) {
	if c.Query("background") == "true" && h.scheduler != nil {
		task := tasks.NewRefreshDataTask("manual", h.pipeline)
		if err := h.scheduler.EnqueueTask(task); err != nil {
			fail(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"success":   true,
			"queued":    true,
			"timestamp": timestamp(),
		})
		return
	}

	snapshot, fromCache, err := h.pipeline.Refresh(c.Request.Context(), "manual")
	if err != nil {
		slog.Error("Manual refresh failed", "error", err)
		fail(c, statusForError(err), err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"fromCache":  fromCache,
		"count":      len(snapshot.Data.Episodes),
		"audioCount": audioCount(snapshot),
		"timestamp":  timestamp(),
	})
}

func (h *Handler) ForceUpdate(c *gin.Context) {
	snapshot, err := h.pipeline.ForceRefresh(c.Request.Context())
	if err != nil {
		slog.Error("Forced refresh failed", "error", err)
		fail(c, statusForError(err), err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"count":      len(snapshot.Data.Episodes),
		"audioCount": audioCount(snapshot),
		"timestamp":  timestamp(),
	})
}

func (h *Handler) GenerateXML(c *gin.Context) {
	snapshot, err := h.pipeline.RegenerateFeeds()
	if err != nil {
		fail(c, statusForError(err), err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"count":     len(snapshot.Data.Episodes),
		"timestamp": timestamp(),
	})
}

func (h *Handler) ClearCache(c *gin.Context) {
	if err := h.pipeline.ClearCache(); err != nil {
		slog.Error("Failed to clear cache", "error", err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "cache cleared",
		"timestamp": timestamp(),
	})
}

func (h *Handler) GetRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	if h.runRepo == nil {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"runs":      []gin.H{},
			"timestamp": timestamp(),
		})
		return
	}

	runs, err := h.runRepo.GetRecentRuns(limit)
	if err != nil {
		slog.Error("Failed to load refresh runs", "error", err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]gin.H, 0, len(runs))
	for _, run := range runs {
		results = append(results, gin.H{
			"id":           run.ID,
			"startedAt":    run.StartedAt.Format(time.RFC3339),
			"finishedAt":   run.FinishedAt.Format(time.RFC3339),
			"status":       run.Status,
			"trigger":      run.TriggerSource,
			"apiEndpoint":  run.APIEndpoint,
			"episodeCount": run.EpisodeCount,
			"audioCount":   run.AudioCount,
			"error":        run.Error,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"runs":      results,
		"timestamp": timestamp(),
	})
}
