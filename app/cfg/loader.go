package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

type rawCfg struct {
	// HTTP server
	Port    string `long:"port" env:"PORT" default:"5777" description:"HTTP server port"`
	BaseUrl string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://cast.example.com)"`

	// Paths
	CacheDir  string `long:"cache-dir" env:"CACHE_DIR" default:"./cache" description:"Directory for cached snapshots and feed documents"`
	PublicDir string `long:"public-dir" env:"PUBLIC_DIR" default:"./public" description:"Directory with static admin panel files"`
	DBPath    string `long:"db-path" env:"DB_PATH" default:"./cache/xyzcast.db" description:"SQLite database path for refresh run history"`

	// Upstream site
	SiteURL         string `long:"site-url" env:"SITE_URL" default:"https://xyzrank.com" description:"Root URL of the ranked-podcast site"`
	EndpointPattern string `long:"endpoint-pattern" env:"ENDPOINT_PATTERN" default:"https://xyzrank\\.justinbot\\.com/assets/hot-episodes\\.[a-f0-9]+\\.json" description:"Regexp matching the fingerprinted episode list URL"`

	// Feed
	ChannelFile string `long:"channel-file" env:"CHANNEL_FILE" description:"Optional YAML file overriding feed channel metadata"`

	// Scheduling and rate limiting
	RefreshInterval int `long:"refresh-interval" env:"REFRESH_INTERVAL" default:"86400" description:"Seconds between scheduled refresh runs"`
	EpisodeDelay    int `long:"episode-delay" env:"EPISODE_DELAY" default:"1000" description:"Milliseconds to wait between per-episode page fetches"`
	WorkerCount     int `long:"worker-count" env:"WORKER_COUNT" default:"1" description:"Number of background task workers"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" description:"User agent string for HTTP requests (defaults to a browser-like string)"`
	Timezone  string `long:"timezone" env:"TZ" default:"Asia/Shanghai" description:"Timezone for timestamps (e.g., UTC, Asia/Shanghai)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Port:            raw.Port,
		BaseUrl:         raw.BaseUrl,
		CacheDir:        raw.CacheDir,
		PublicDir:       raw.PublicDir,
		DBPath:          raw.DBPath,
		SiteURL:         raw.SiteURL,
		EndpointPattern: raw.EndpointPattern,
		ChannelFile:     raw.ChannelFile,
		RefreshInterval: raw.RefreshInterval,
		EpisodeDelay:    raw.EpisodeDelay,
		WorkerCount:     raw.WorkerCount,
		UserAgent:       cmp.Or(raw.UserAgent, defaultUserAgent),
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
