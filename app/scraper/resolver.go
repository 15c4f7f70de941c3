package scraper

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const resolveTimeout = 15 * time.Second

// Resolver extracts a playable audio URL from an episode's own page.
// Absence of audio is a valid outcome, never an error: any network, parse
// or lookup failure degrades to an empty result.
type Resolver struct {
	httpClient *http.Client
	userAgent  string
}

func NewResolver(httpClient *http.Client, userAgent string) *Resolver {
	return &Resolver{
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

// selectors in strict priority order; the first non-empty hit wins.
var audioSelectors = []struct {
	selector string
	attr     string
}{
	{`meta[property="og:audio"]`, "content"},
	{`meta[name="og:audio"]`, "content"},
	{`meta[property="audio"]`, "content"},
	{`meta[name="audio"]`, "content"},
	{`audio`, "src"},
	{`source`, "src"},
}

// ResolveAudioURL fetches pageURL and applies the extraction heuristics,
// returning an absolute audio URL or empty string.
func (r *Resolver) ResolveAudioURL(ctx context.Context, pageURL string) string {
	timeoutCtx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", pageURL, nil)
	if err != nil {
		slog.Warn("Audio resolution skipped, bad page URL", "url", pageURL, "error", err)
		return ""
	}

	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		slog.Warn("Audio resolution fetch failed", "url", pageURL, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("Audio resolution got non-OK status", "url", pageURL, "status", resp.StatusCode)
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		slog.Warn("Audio resolution parse failed", "url", pageURL, "error", err)
		return ""
	}

	var audioURL string
	for _, s := range audioSelectors {
		if v, ok := doc.Find(s.selector).First().Attr(s.attr); ok {
			audioURL = strings.TrimSpace(v)
			if audioURL != "" {
				break
			}
		}
	}

	return resolveRelative(pageURL, audioURL)
}

// resolveRelative turns a scheme-less audio URL into an absolute one
// against the page URL's origin, preserving a leading slash if present and
// prefixing one otherwise.
func resolveRelative(pageURL, audioURL string) string {
	if audioURL == "" || strings.HasPrefix(audioURL, "http") {
		return audioURL
	}

	page, err := url.Parse(pageURL)
	if err != nil || page.Scheme == "" || page.Host == "" {
		return audioURL
	}

	origin := page.Scheme + "://" + page.Host
	if strings.HasPrefix(audioURL, "/") {
		return origin + audioURL
	}
	return origin + "/" + audioURL
}
