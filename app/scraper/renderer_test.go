package scraper

import (
	"context"
	"testing"
	"time"
)

const testPattern = `https://xyzrank\.justinbot\.com/assets/hot-episodes\.[a-f0-9]+\.json`

func TestNewRendererInvalidPattern(t *testing.T) {
	_, err := NewRenderer("https://xyzrank.com", `https://example\.com/assets/(`)
	if err == nil {
		t.Error("Expected error for invalid endpoint pattern")
	}
}

func TestAwaitMatchCatchesResponseDuringIdleWait(t *testing.T) {
	renderer, err := NewRenderer("https://xyzrank.com", testPattern)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := "https://xyzrank.justinbot.com/assets/hot-episodes.9f86d081.json"
	matches := make(chan string, 1)

	// The response lands while network traffic is still settling, well
	// after the load event.
	waitIdle := func() {
		time.Sleep(20 * time.Millisecond)
		matches <- expected
	}

	got := renderer.awaitMatch(context.Background(), matches, waitIdle)
	if got != expected {
		t.Errorf("Expected match observed during idle wait, got '%s'", got)
	}
}

func TestAwaitMatchCancelledContext(t *testing.T) {
	renderer, err := NewRenderer("https://xyzrank.com", testPattern)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	matches := make(chan string, 1)
	got := renderer.awaitMatch(ctx, matches, func() {})
	if got != "" {
		t.Errorf("Expected empty result on cancelled context, got '%s'", got)
	}
}

func TestExtractFromHTML(t *testing.T) {
	renderer, err := NewRenderer("https://xyzrank.com", testPattern)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	html := `<html><head><script>
		const endpoint = "https://xyzrank.justinbot.com/assets/hot-episodes.9f86d081.json";
		fetch(endpoint).then(render);
	</script></head><body><div id="app"></div></body></html>`

	got := renderer.extractFromHTML(html)
	expected := "https://xyzrank.justinbot.com/assets/hot-episodes.9f86d081.json"
	if got != expected {
		t.Errorf("Expected '%s', got '%s'", expected, got)
	}
}

func TestExtractFromHTMLFirstMatchWins(t *testing.T) {
	renderer, err := NewRenderer("https://xyzrank.com", testPattern)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	html := `<script src="https://xyzrank.justinbot.com/assets/hot-episodes.aaaa1111.json"></script>
		<script src="https://xyzrank.justinbot.com/assets/hot-episodes.bbbb2222.json"></script>`

	got := renderer.extractFromHTML(html)
	if got != "https://xyzrank.justinbot.com/assets/hot-episodes.aaaa1111.json" {
		t.Errorf("Expected first occurrence in document order, got '%s'", got)
	}
}

func TestExtractFromHTMLNoMatch(t *testing.T) {
	renderer, err := NewRenderer("https://xyzrank.com", testPattern)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	html := `<html><body><script>fetch("/assets/other-data.json")</script></body></html>`
	if got := renderer.extractFromHTML(html); got != "" {
		t.Errorf("Expected empty string when no match present, got '%s'", got)
	}
}

func TestExtractFromHTMLRejectsUppercaseHash(t *testing.T) {
	renderer, err := NewRenderer("https://xyzrank.com", testPattern)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	html := `<script src="https://xyzrank.justinbot.com/assets/hot-episodes.ABCDEF.json"></script>`
	if got := renderer.extractFromHTML(html); got != "" {
		t.Errorf("Fingerprint hash is lowercase hex, got match '%s'", got)
	}
}
