package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	navigationTimeout = 30 * time.Second
	// Late asynchronous requests can still surface the asset URL after the
	// load event fires.
	settleWindow = 5 * time.Second
)

// Renderer discovers the fingerprinted episode list URL by loading the
// single-page app in a headless browser and watching its network traffic.
// The URL embeds a content hash that changes across deployments, so it has
// to be rediscovered on every run.
type Renderer struct {
	siteURL string
	pattern *regexp.Regexp
}

func NewRenderer(siteURL, endpointPattern string) (*Renderer, error) {
	pattern, err := regexp.Compile(endpointPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint pattern: %w", err)
	}

	return &Renderer{
		siteURL: siteURL,
		pattern: pattern,
	}, nil
}

// DiscoverEndpoint renders the site root route and returns the first URL
// matching the fingerprint pattern, observed either as a network response
// or as plain text in the rendered markup. The browser is torn down on
// every exit path.
func (r *Renderer) DiscoverEndpoint(ctx context.Context) (string, error) {
	slog.Debug("Launching headless browser", "site", r.siteURL)

	launchURL, err := launcher.New().
		NoSandbox(true).
		Headless(true).
		Set("disable-gpu", "").
		Set("disable-dev-shm-usage", "").
		Launch()
	if err != nil {
		return "", fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			slog.Warn("Browser close failed", "error", err)
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	page = page.Timeout(navigationTimeout)
	defer page.Close()

	matches := make(chan string, 16)
	go page.EachEvent(func(e *proto.NetworkResponseReceived) {
		if e.Response == nil {
			return
		}
		if r.pattern.MatchString(e.Response.URL) {
			slog.Debug("Observed matching response", "url", e.Response.URL)
			select {
			case matches <- e.Response.URL:
			default:
			}
		}
	})()

	if err := page.Navigate(r.siteURL + "/#/"); err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", r.siteURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		// A slow load is not fatal; the idle wait and settle window below
		// may still catch the response, and the markup fallback remains.
		slog.Debug("Page load wait ended early", "error", err)
	}

	// The app requests the fingerprinted asset after the load event, so
	// wait for network traffic to go idle (bounded by the page timeout)
	// before starting the settle window.
	waitIdle := page.WaitRequestIdle(time.Second, nil, nil, nil)

	if endpoint := r.awaitMatch(ctx, matches, waitIdle); endpoint != "" {
		return endpoint, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("endpoint not observed and page markup unavailable: %w", err)
	}
	if endpoint := r.extractFromHTML(html); endpoint != "" {
		slog.Debug("Endpoint found in rendered markup", "url", endpoint)
		return endpoint, nil
	}

	return "", fmt.Errorf("no URL matching endpoint pattern observed")
}

// awaitMatch blocks through the network-idle wait and a short settle
// window, returning the first matched URL or empty when none arrived.
// A match observed while the idle wait is still blocking is picked up
// as soon as it returns.
func (r *Renderer) awaitMatch(ctx context.Context, matches <-chan string, waitIdle func()) string {
	waitIdle()

	settle := time.NewTimer(settleWindow)
	defer settle.Stop()
	select {
	case endpoint := <-matches:
		return endpoint
	case <-settle.C:
	case <-ctx.Done():
	}

	// A response may have raced the settle timer.
	select {
	case endpoint := <-matches:
		return endpoint
	default:
	}
	return ""
}

// extractFromHTML scans rendered markup, inline script bodies included,
// for the fingerprint pattern as plain text.
func (r *Renderer) extractFromHTML(html string) string {
	return r.pattern.FindString(html)
}
