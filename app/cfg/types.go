package cfg

type Cfg struct {
	// HTTP server
	Port    string
	BaseUrl string

	// Paths
	CacheDir  string
	PublicDir string
	DBPath    string

	// Upstream site
	SiteURL         string
	EndpointPattern string

	// Feed
	ChannelFile string

	// Scheduling and rate limiting
	RefreshInterval int // seconds
	EpisodeDelay    int // milliseconds between per-episode page fetches
	WorkerCount     int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
