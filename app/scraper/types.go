package scraper

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Episode is one entry of the upstream ranked episode list. The upstream
// JSON is loosely typed: counters arrive as numbers of varying width and
// duration is either seconds or a clock string, so the flexible fields keep
// their upstream representation.
type Episode struct {
	Title        string      `json:"title"`
	PodcastName  string      `json:"podcastName"`
	Description  string      `json:"description"`
	Link         string      `json:"link,omitempty"`
	LogoURL      string      `json:"logoURL,omitempty"`
	PublishDate  string      `json:"publishDate,omitempty"`
	PostTime     string      `json:"postTime,omitempty"`
	Duration     Duration    `json:"duration,omitempty"`
	PlayCount    json.Number `json:"playCount,omitempty"`
	CommentCount json.Number `json:"commentCount,omitempty"`
	Subscription json.Number `json:"subscription,omitempty"`
}

// EnrichedEpisode is an Episode plus the audio URL scraped from its page.
type EnrichedEpisode struct {
	Episode
	ExtractedAudioURL string `json:"extractedAudioUrl"`
	HasAudio          bool   `json:"hasAudio"`
}

// HotEpisodesResponse mirrors the envelope of the fingerprinted list
// endpoint: a top-level object with a data.episodes array.
type HotEpisodesResponse struct {
	Data EpisodeData `json:"data"`
}

// EpisodeData is the data member of the list envelope. Upstream fields
// other than episodes are not modeled here but are carried through
// verbatim in Extra, so a persisted snapshot round-trips the whole
// payload rather than just the episode list.
type EpisodeData struct {
	Episodes []Episode
	Extra    map[string]json.RawMessage
}

func (d *EpisodeData) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("failed to decode data envelope: %w", err)
	}

	if raw, ok := fields["episodes"]; ok {
		if err := json.Unmarshal(raw, &d.Episodes); err != nil {
			return fmt.Errorf("failed to decode episodes: %w", err)
		}
		delete(fields, "episodes")
	}

	if len(fields) > 0 {
		d.Extra = fields
	}
	return nil
}

// Duration carries the upstream duration value without reinterpreting it.
// A JSON number is taken to already be seconds; a JSON string is a
// colon-delimited clock value ("01:30:45") decoded later by the feed
// generator. The two forms are never converted into each other here.
type Duration struct {
	Seconds float64
	Text    string
	IsText  bool
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = Duration{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to decode duration string: %w", err)
		}
		*d = Duration{Text: s, IsText: true}
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("failed to decode duration number: %w", err)
	}
	*d = Duration{Seconds: n}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	if d.IsText {
		return json.Marshal(d.Text)
	}
	return json.Marshal(d.Seconds)
}

// IsZero reports whether no duration value was present upstream.
func (d Duration) IsZero() bool {
	return !d.IsText && d.Seconds == 0
}
