package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestResolver() *Resolver {
	return NewResolver(&http.Client{Timeout: 5 * time.Second}, "test-agent")
}

func servePage(t *testing.T, html string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	}))
}

func TestResolveAudioURLFromOgAudioProperty(t *testing.T) {
	server := servePage(t, `<html><head>
		<meta property="og:audio" content="https://cdn.example.com/ep1.m4a">
		<meta name="og:audio" content="https://cdn.example.com/wrong.mp3">
	</head><body></body></html>`)
	defer server.Close()

	got := newTestResolver().ResolveAudioURL(context.Background(), server.URL+"/ep/1")
	if got != "https://cdn.example.com/ep1.m4a" {
		t.Errorf("Expected og:audio property to win, got '%s'", got)
	}
}

func TestResolveAudioURLHeuristicOrder(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "og:audio name attribute",
			html:     `<head><meta name="og:audio" content="https://cdn.example.com/a.mp3"></head>`,
			expected: "https://cdn.example.com/a.mp3",
		},
		{
			name:     "audio meta property",
			html:     `<head><meta property="audio" content="https://cdn.example.com/b.mp3"></head>`,
			expected: "https://cdn.example.com/b.mp3",
		},
		{
			name:     "audio meta name",
			html:     `<head><meta name="audio" content="https://cdn.example.com/c.mp3"></head>`,
			expected: "https://cdn.example.com/c.mp3",
		},
		{
			name:     "audio element src",
			html:     `<body><audio src="https://cdn.example.com/d.mp3"></audio></body>`,
			expected: "https://cdn.example.com/d.mp3",
		},
		{
			name:     "source element src",
			html:     `<body><video><source src="https://cdn.example.com/e.mp3"></video></body>`,
			expected: "https://cdn.example.com/e.mp3",
		},
		{
			name:     "audio element beats source element",
			html:     `<body><audio src="https://cdn.example.com/f.mp3"></audio><source src="https://cdn.example.com/g.mp3"></body>`,
			expected: "https://cdn.example.com/f.mp3",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := servePage(t, "<html>"+test.html+"</html>")
			defer server.Close()

			got := newTestResolver().ResolveAudioURL(context.Background(), server.URL)
			if got != test.expected {
				t.Errorf("Expected '%s', got '%s'", test.expected, got)
			}
		})
	}
}

func TestResolveAudioURLNoTags(t *testing.T) {
	server := servePage(t, `<html><head><title>No audio here</title></head><body><p>text</p></body></html>`)
	defer server.Close()

	got := newTestResolver().ResolveAudioURL(context.Background(), server.URL)
	if got != "" {
		t.Errorf("Expected empty string for page without audio tags, got '%s'", got)
	}
}

func TestResolveAudioURLNetworkError(t *testing.T) {
	server := servePage(t, "")
	server.Close() // connection refused from here on

	got := newTestResolver().ResolveAudioURL(context.Background(), server.URL)
	if got != "" {
		t.Errorf("Expected empty string on network error, got '%s'", got)
	}
}

func TestResolveAudioURLNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	got := newTestResolver().ResolveAudioURL(context.Background(), server.URL)
	if got != "" {
		t.Errorf("Expected empty string on 404, got '%s'", got)
	}
}

func TestResolveRelative(t *testing.T) {
	tests := []struct {
		pageURL  string
		audioURL string
		expected string
	}{
		{"https://show.example/ep/1", "/audio/ep1.mp3", "https://show.example/audio/ep1.mp3"},
		{"https://show.example/ep/1", "audio/ep1.mp3", "https://show.example/audio/ep1.mp3"},
		{"https://show.example/ep/1", "https://cdn.example.com/ep1.mp3", "https://cdn.example.com/ep1.mp3"},
		{"https://show.example/ep/1", "http://cdn.example.com/ep1.mp3", "http://cdn.example.com/ep1.mp3"},
		{"https://show.example/ep/1", "", ""},
	}

	for _, test := range tests {
		got := resolveRelative(test.pageURL, test.audioURL)
		if got != test.expected {
			t.Errorf("resolveRelative(%q, %q) = %q, expected %q",
				test.pageURL, test.audioURL, got, test.expected)
		}
	}
}
