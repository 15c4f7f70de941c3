package api

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"xyzcast/app/cfg"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler) {
	// Generated feed documents
	r.GET("/feed.xml", handler.GetFeed)
	r.GET("/rss", handler.GetSimpleFeed)

	// Health endpoint
	r.GET("/health", handler.GetHealth)

	// Management API
	api := r.Group("/api")
	{
		api.GET("/endpoint", handler.GetEndpoint)
		api.GET("/podcasts", handler.GetPodcasts)
		api.GET("/runs", handler.GetRuns)
		api.POST("/update-data", handler.UpdateData)
		api.POST("/force-update", handler.ForceUpdate)
		api.POST("/generate-xml", handler.GenerateXML)
		api.POST("/clear-cache", handler.ClearCache)
	}

	// Static admin panel, when present
	if dir := cfg.Get().PublicDir; dir != "" {
		if _, err := os.Stat(dir); err == nil {
			r.Static("/public", dir)
		}
	}

	// Root endpoint with basic information
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service":     "XYZCast",
			"version":     cfg.Get().Version,
			"description": "Podcast RSS republisher for the xyzrank hot episodes ranking",
			"endpoints": map[string]string{
				"feed":         "/feed.xml",
				"rss":          "/rss",
				"health":       "/health",
				"endpoint":     "/api/endpoint",
				"podcasts":     "/api/podcasts",
				"runs":         "/api/runs",
				"update_data":  "/api/update-data (POST)",
				"force_update": "/api/force-update (POST)",
				"generate_xml": "/api/generate-xml (POST)",
				"clear_cache":  "/api/clear-cache (POST)",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}
