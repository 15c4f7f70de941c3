package feed

import (
	"cmp"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Channel holds the feed-level metadata emitted into the generated
// documents. Defaults describe the xyzrank ranking; any field can be
// overridden from a YAML file.
type Channel struct {
	Title       string `yaml:"title"`
	Link        string `yaml:"link"`
	Description string `yaml:"description"`
	Language    string `yaml:"language"`
	Author      string `yaml:"author"`
	Email       string `yaml:"email"`
	Copyright   string `yaml:"copyright"`
	Keywords    string `yaml:"keywords"`
	ImageURL    string `yaml:"image_url"`
	Category    string `yaml:"category"`
	Subcategory string `yaml:"subcategory"`
	Explicit    string `yaml:"explicit"`
	TTL         int    `yaml:"ttl"`
}

func DefaultChannel() *Channel {
	return &Channel{
		Title:       "XYZRank 热门播客排行榜",
		Link:        "https://xyzrank.com",
		Description: "来自 xyzrank.com 的热门播客排行榜",
		Language:    "zh-CN",
		Author:      "XYZRank",
		Email:       "info@xyzrank.com",
		Copyright:   "Copyright @XYZRank",
		Keywords:    "播客,排行榜,热门",
		ImageURL:    "https://xyzrank.com/favicon.ico",
		Category:    "Technology",
		Subcategory: "Software How-To",
		Explicit:    "no",
		TTL:         60,
	}
}

// LoadChannel merges overrides from a YAML file over the defaults. An
// empty path returns the defaults unchanged.
func LoadChannel(path string) (*Channel, error) {
	channel := DefaultChannel()
	if path == "" {
		return channel, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel file: %w", err)
	}

	var override Channel
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse channel file: %w", err)
	}

	channel.Title = cmp.Or(override.Title, channel.Title)
	channel.Link = cmp.Or(override.Link, channel.Link)
	channel.Description = cmp.Or(override.Description, channel.Description)
	channel.Language = cmp.Or(override.Language, channel.Language)
	channel.Author = cmp.Or(override.Author, channel.Author)
	channel.Email = cmp.Or(override.Email, channel.Email)
	channel.Copyright = cmp.Or(override.Copyright, channel.Copyright)
	channel.Keywords = cmp.Or(override.Keywords, channel.Keywords)
	channel.ImageURL = cmp.Or(override.ImageURL, channel.ImageURL)
	channel.Category = cmp.Or(override.Category, channel.Category)
	channel.Subcategory = cmp.Or(override.Subcategory, channel.Subcategory)
	channel.Explicit = cmp.Or(override.Explicit, channel.Explicit)
	channel.TTL = cmp.Or(override.TTL, channel.TTL)

	return channel, nil
}
