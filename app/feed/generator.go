package feed

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"xyzcast/app/cfg"
	"xyzcast/app/scraper"
)

// xmlEscaper covers the five XML special characters plus newline
// normalization. xml.EscapeText is not used here because the generated
// documents also need apostrophes escaped and line breaks collapsed to
// spaces inside attribute-like fields.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
	"\n", " ",
	"\r", " ",
)

// cdataEscaper splits a literal "]]>" across two CDATA sections so it
// cannot terminate the enclosing one.
var cdataEscaper = strings.NewReplacer("]]>", "]]]]><![CDATA[>")

var episodeTimeFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type Generator struct {
	channel *Channel
}

func NewGenerator(channel *Channel) *Generator {
	return &Generator{channel: channel}
}

// Run builds the primary podcast document. Only episodes with a
// resolved audio URL become items; text fields are wrapped in CDATA so
// Chinese titles and punctuation pass through untouched.
func (g *Generator) Run(episodes []scraper.EnrichedEpisode) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd" xmlns:atom="http://www.w3.org/2005/Atom" version="2.0">`)
	buf.WriteString("\n  <channel>\n")

	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		escapeXML(g.selfLink("/feed.xml"))))
	g.writeCDATA(&buf, "title", g.channel.Title, 4)
	g.writeElement(&buf, "link", g.channel.Link, 4)
	g.writeElement(&buf, "language", g.channel.Language, 4)
	g.writeCDATA(&buf, "copyright", g.channel.Copyright, 4)
	g.writeCDATA(&buf, "itunes:author", g.channel.Author, 4)
	g.writeCDATA(&buf, "itunes:subtitle", g.channel.Description, 4)
	g.writeCDATA(&buf, "itunes:summary", g.channel.Description, 4)
	g.writeCDATA(&buf, "description", g.channel.Description, 4)
	buf.WriteString("    <itunes:owner>\n")
	g.writeCDATA(&buf, "itunes:name", g.channel.Author, 6)
	g.writeElement(&buf, "itunes:email", g.channel.Email, 6)
	buf.WriteString("    </itunes:owner>\n")
	if g.channel.ImageURL != "" {
		buf.WriteString(fmt.Sprintf("    <itunes:image href=\"%s\" />\n", escapeXML(g.channel.ImageURL)))
	}
	g.writeElement(&buf, "itunes:keywords", g.channel.Keywords, 4)
	g.writeElement(&buf, "itunes:explicit", g.channel.Explicit, 4)
	if g.channel.Category != "" {
		buf.WriteString(fmt.Sprintf("    <itunes:category text=\"%s\">\n", escapeXML(g.channel.Category)))
		if g.channel.Subcategory != "" {
			buf.WriteString(fmt.Sprintf("      <itunes:category text=\"%s\" />\n", escapeXML(g.channel.Subcategory)))
		}
		buf.WriteString("    </itunes:category>\n")
	}
	now := time.Now().Format(time.RFC1123Z)
	g.writeElement(&buf, "pubDate", now, 4)
	g.writeElement(&buf, "lastBuildDate", now, 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("XYZCast/%s", cfg.Get().Version), 4)

	for _, ep := range episodes {
		if !ep.HasAudio {
			continue
		}
		g.writeItem(&buf, ep)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String()
}

func (g *Generator) writeItem(buf *bytes.Buffer, ep scraper.EnrichedEpisode) {
	buf.WriteString("    <item>\n")

	g.writeCDATA(buf, "title", ep.Title, 6)
	g.writeCDATA(buf, "itunes:author", ep.PodcastName, 6)
	g.writeCDATA(buf, "itunes:subtitle", ep.Title, 6)

	summary := synthesizeDescription(ep.Episode)
	g.writeCDATA(buf, "itunes:summary", summary, 6)
	g.writeCDATA(buf, "description", fmt.Sprintf("<p>%s</p>", summary), 6)

	if ep.LogoURL != "" {
		buf.WriteString(fmt.Sprintf("      <itunes:image href=\"%s\" />\n", escapeXML(ep.LogoURL)))
	}

	// RSS 2.0 requires url, length and type on the enclosure; the
	// upstream ranking never reports file sizes, so length stays 0.
	buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"%s\" />\n",
		escapeXML(ep.ExtractedAudioURL), inferAudioType(ep.ExtractedAudioURL)))

	buf.WriteString("      <guid isPermaLink=\"false\">")
	buf.WriteString(escapeXML(ep.ExtractedAudioURL))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "link", cmp.Or(ep.Link, ep.ExtractedAudioURL), 6)
	g.writeElement(buf, "pubDate", g.episodeTime(ep.Episode).Format(time.RFC1123Z), 6)
	g.writeElement(buf, "itunes:duration", strconv.Itoa(durationSeconds(ep.Duration)), 6)

	buf.WriteString("    </item>\n")
}

// RunSimple builds the plain-text variant. Every episode becomes an
// item whether or not audio was resolved; episodes without audio fall
// back to a synthetic episode-N identifier.
func (g *Generator) RunSimple(episodes []scraper.EnrichedEpisode) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd" xmlns:atom="http://www.w3.org/2005/Atom" version="2.0">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", g.channel.Title, 4)
	g.writeElement(&buf, "link", g.channel.Link, 4)
	g.writeElement(&buf, "description", g.channel.Description, 4)
	g.writeElement(&buf, "language", g.channel.Language, 4)
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		escapeXML(g.selfLink("/rss"))))
	now := time.Now().Format(time.RFC1123Z)
	g.writeElement(&buf, "pubDate", now, 4)
	g.writeElement(&buf, "lastBuildDate", now, 4)
	g.writeElement(&buf, "ttl", strconv.Itoa(g.channel.TTL), 4)
	g.writeElement(&buf, "itunes:author", g.channel.Author, 4)
	g.writeElement(&buf, "itunes:summary", g.channel.Description, 4)
	if g.channel.ImageURL != "" {
		buf.WriteString(fmt.Sprintf("    <itunes:image href=\"%s\" />\n", escapeXML(g.channel.ImageURL)))
	}

	for i, ep := range episodes {
		g.writeSimpleItem(&buf, i, ep)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String()
}

func (g *Generator) writeSimpleItem(buf *bytes.Buffer, index int, ep scraper.EnrichedEpisode) {
	buf.WriteString("    <item>\n")

	g.writeElement(buf, "title", ep.Title, 6)
	g.writeElement(buf, "description", cmp.Or(ep.Description, ep.Title), 6)
	g.writeElement(buf, "itunes:author", ep.PodcastName, 6)

	link := cmp.Or(ep.Link, fmt.Sprintf("%s/episode/%d", g.channel.Link, index+1))
	g.writeElement(buf, "link", link, 6)

	if ep.HasAudio {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"%s\" />\n",
			escapeXML(ep.ExtractedAudioURL), inferAudioType(ep.ExtractedAudioURL)))
		buf.WriteString("      <guid isPermaLink=\"false\">")
		buf.WriteString(escapeXML(ep.ExtractedAudioURL))
		buf.WriteString("</guid>\n")
	} else {
		buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"false\">episode-%d</guid>\n", index+1))
	}

	if ep.LogoURL != "" {
		buf.WriteString(fmt.Sprintf("      <itunes:image href=\"%s\" />\n", escapeXML(ep.LogoURL)))
	}
	g.writeElement(buf, "pubDate", g.episodeTime(ep.Episode).Format(time.RFC1123Z), 6)
	if !ep.Duration.IsZero() {
		g.writeElement(buf, "itunes:duration", strconv.Itoa(durationSeconds(ep.Duration)), 6)
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	buf.WriteString(escapeXML(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) writeCDATA(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString("><![CDATA[")
	buf.WriteString(cdataEscaper.Replace(content))
	buf.WriteString("]]></")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) selfLink(path string) string {
	if cfg.Get().BaseUrl != "" {
		return cfg.Get().BaseUrl + path
	}
	return fmt.Sprintf("http://localhost:%s%s", cfg.Get().Port, path)
}

// episodeTime prefers the ranking's post time over the publish date and
// falls back to now so every item carries a valid pubDate.
func (g *Generator) episodeTime(ep scraper.Episode) time.Time {
	for _, raw := range []string{ep.PostTime, ep.PublishDate} {
		if raw == "" {
			continue
		}
		for _, layout := range episodeTimeFormats {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
	}
	return time.Now()
}

// synthesizeDescription builds the item summary from the ranking
// counters, since the upstream list carries engagement numbers rather
// than show notes.
func synthesizeDescription(ep scraper.Episode) string {
	return fmt.Sprintf("播放量: %s | 评论数: %s | 订阅数: %s",
		countOrZero(ep.PlayCount), countOrZero(ep.CommentCount), countOrZero(ep.Subscription))
}

func countOrZero(n json.Number) string {
	if n.String() == "" {
		return "0"
	}
	return n.String()
}

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// durationSeconds normalizes the dual-typed upstream duration. Numeric
// values are already seconds; colon-separated text is read right to
// left with each position worth a factor of 60 more than the previous.
func durationSeconds(d scraper.Duration) int {
	if !d.IsText {
		return int(d.Seconds)
	}

	parts := strings.Split(d.Text, ":")
	total := 0
	multiplier := 1
	for i := len(parts) - 1; i >= 0; i-- {
		// An unparseable component counts as 0 but keeps its position,
		// so the components before it retain their weight.
		if n, err := strconv.Atoi(strings.TrimSpace(parts[i])); err == nil {
			total += n * multiplier
		}
		multiplier *= 60
	}
	return total
}

func inferAudioType(audioURL string) string {
	switch {
	case strings.Contains(audioURL, ".m4a"):
		return "audio/x-m4a"
	case strings.Contains(audioURL, ".mp3"):
		return "audio/mpeg"
	case strings.Contains(audioURL, ".aac"):
		return "audio/aac"
	default:
		return "audio/mpeg"
	}
}
