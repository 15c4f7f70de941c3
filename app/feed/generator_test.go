package feed

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"xyzcast/app/cfg"
	"xyzcast/app/scraper"
)

func setupTestConfig() {
	// Clear os.Args to prevent config parsing from failing
	oldArgs := os.Args
	os.Args = []string{"test"}
	defer func() { os.Args = oldArgs }()

	cfg.Load()
}

func textDuration(text string) scraper.Duration {
	return scraper.Duration{Text: text, IsText: true}
}

func sampleEpisodes() []scraper.EnrichedEpisode {
	return []scraper.EnrichedEpisode{
		{
			Episode: scraper.Episode{
				Title:        "第1期：开场",
				PodcastName:  "测试播客",
				Link:         "https://show.example/ep/1",
				LogoURL:      "https://show.example/logo.png",
				PostTime:     "2023-07-03 10:00:00",
				Duration:     textDuration("01:30:45"),
				PlayCount:    json.Number("12345"),
				CommentCount: json.Number("67"),
				Subscription: json.Number("890"),
			},
			ExtractedAudioURL: "https://cdn.example.com/ep1.m4a",
			HasAudio:          true,
		},
		{
			Episode: scraper.Episode{
				Title:       "Episode two",
				PodcastName: "Test Cast",
				Duration:    scraper.Duration{Seconds: 90},
			},
			ExtractedAudioURL: "https://cdn.example.com/ep2.mp3",
			HasAudio:          true,
		},
		{
			Episode: scraper.Episode{
				Title:       "No audio here",
				PodcastName: "Silent Cast",
			},
			HasAudio: false,
		},
	}
}

func TestRunSkipsEpisodesWithoutAudio(t *testing.T) {
	setupTestConfig()
	generator := NewGenerator(DefaultChannel())

	xml := generator.Run(sampleEpisodes())

	if count := strings.Count(xml, "<item>"); count != 2 {
		t.Errorf("Expected 2 items (audio only), got %d", count)
	}
	if strings.Contains(xml, "No audio here") {
		t.Error("Episode without audio should not appear in the primary feed")
	}
}

func TestRunDurationNormalization(t *testing.T) {
	setupTestConfig()
	generator := NewGenerator(DefaultChannel())

	xml := generator.Run(sampleEpisodes())

	if !strings.Contains(xml, "<itunes:duration>5445</itunes:duration>") {
		t.Error("Expected text duration '01:30:45' normalized to 5445 seconds")
	}
	if !strings.Contains(xml, "<itunes:duration>90</itunes:duration>") {
		t.Error("Expected numeric duration 90 passed through as seconds")
	}
}

func TestRunWrapsTextInCDATA(t *testing.T) {
	setupTestConfig()
	generator := NewGenerator(DefaultChannel())

	episodes := sampleEpisodes()
	episodes[0].Title = "R&D 特辑 <第1期>"

	xml := generator.Run(episodes)

	if !strings.Contains(xml, "<title><![CDATA[R&D 特辑 <第1期>]]></title>") {
		t.Error("Expected item title wrapped in CDATA with raw characters preserved")
	}
}

func TestRunSplitsCDATATerminatorInTitle(t *testing.T) {
	setupTestConfig()
	generator := NewGenerator(DefaultChannel())

	episodes := sampleEpisodes()
	episodes[0].Title = "broken ]]> title"

	xml := generator.Run(episodes)

	if !strings.Contains(xml, "<title><![CDATA[broken ]]]]><![CDATA[> title]]></title>") {
		t.Errorf("Expected ]]> split across CDATA sections, got:\n%s", xml)
	}
	if err := NewValidator().Run(xml); err != nil {
		t.Errorf("Feed with ]]> in title should stay well formed: %v", err)
	}
}

func TestRunSynthesizedDescription(t *testing.T) {
	setupTestConfig()
	generator := NewGenerator(DefaultChannel())

	xml := generator.Run(sampleEpisodes())

	if !strings.Contains(xml, "播放量: 12345 | 评论数: 67 | 订阅数: 890") {
		t.Error("Expected description synthesized from ranking counters")
	}
	if !strings.Contains(xml, "播放量: 0 | 评论数: 0 | 订阅数: 0") {
		t.Error("Expected missing counters rendered as 0")
	}
}

func TestRunEnclosureAndGuid(t *testing.T) {
	setupTestConfig()
	generator := NewGenerator(DefaultChannel())

	xml := generator.Run(sampleEpisodes())

	if !strings.Contains(xml, `<enclosure url="https://cdn.example.com/ep1.m4a" length="0" type="audio/x-m4a" />`) {
		t.Error("Expected m4a enclosure with zero length and x-m4a type")
	}
	if !strings.Contains(xml, `<guid isPermaLink="false">https://cdn.example.com/ep1.m4a</guid>`) {
		t.Error("Expected guid set to the resolved audio URL")
	}
}

func TestRunSimpleIncludesAllEpisodes(t *testing.T) {
	setupTestConfig()
	generator := NewGenerator(DefaultChannel())

	xml := generator.RunSimple(sampleEpisodes())

	if count := strings.Count(xml, "<item>"); count != 3 {
		t.Errorf("Expected all 3 episodes in the simple feed, got %d", count)
	}
	if !strings.Contains(xml, `<guid isPermaLink="false">episode-3</guid>`) {
		t.Error("Expected synthetic guid for the episode without audio")
	}
	if !strings.Contains(xml, "<ttl>60</ttl>") {
		t.Error("Expected ttl element in the simple feed")
	}
}

func TestRunSimpleEscapesText(t *testing.T) {
	setupTestConfig()
	generator := NewGenerator(DefaultChannel())

	episodes := sampleEpisodes()
	episodes[1].Title = `Q&A <live> 'quotes' "here"`

	xml := generator.RunSimple(episodes)

	if !strings.Contains(xml, "Q&amp;A &lt;live&gt; &apos;quotes&apos; &quot;here&quot;") {
		t.Errorf("Expected escaped title in simple feed, got:\n%s", xml)
	}
}

func TestGeneratedFeedsParse(t *testing.T) {
	setupTestConfig()
	generator := NewGenerator(DefaultChannel())
	validator := NewValidator()

	if err := validator.Run(generator.Run(sampleEpisodes())); err != nil {
		t.Errorf("Primary feed failed validation: %v", err)
	}
	if err := validator.Run(generator.RunSimple(sampleEpisodes())); err != nil {
		t.Errorf("Simple feed failed validation: %v", err)
	}
}

func TestEscapeXML(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a & b", "a &amp; b"},
		{"<tag>", "&lt;tag&gt;"},
		{"it's", "it&apos;s"},
		{`say "hi"`, "say &quot;hi&quot;"},
		{"line\nbreak", "line break"},
		{"line\r\nbreak", "line  break"},
		{"已经安全的文本", "已经安全的文本"},
	}

	for _, tt := range tests {
		if got := escapeXML(tt.input); got != tt.expected {
			t.Errorf("escapeXML(%q): expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

func TestDurationSeconds(t *testing.T) {
	tests := []struct {
		duration scraper.Duration
		expected int
	}{
		{scraper.Duration{Seconds: 90}, 90},
		{scraper.Duration{Seconds: 5445.7}, 5445},
		{textDuration("01:30:45"), 5445},
		{textDuration("45:00"), 2700},
		{textDuration("90"), 90},
		{textDuration("1:x:30"), 3630},
		{textDuration("bad:input"), 0},
		{textDuration(""), 0},
	}

	for _, tt := range tests {
		if got := durationSeconds(tt.duration); got != tt.expected {
			t.Errorf("durationSeconds(%+v): expected %d, got %d", tt.duration, tt.expected, got)
		}
	}
}

func TestInferAudioType(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://cdn.example.com/ep.m4a", "audio/x-m4a"},
		{"https://cdn.example.com/ep.mp3", "audio/mpeg"},
		{"https://cdn.example.com/ep.aac", "audio/aac"},
		{"https://cdn.example.com/ep.m4a?token=.mp3", "audio/x-m4a"},
		{"https://cdn.example.com/stream", "audio/mpeg"},
		{"", "audio/mpeg"},
	}

	for _, tt := range tests {
		if got := inferAudioType(tt.url); got != tt.expected {
			t.Errorf("inferAudioType(%q): expected %q, got %q", tt.url, tt.expected, got)
		}
	}
}
