package feed

import (
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

type Validator struct {
	gofeedParser *gofeed.Parser
}

func NewValidator() *Validator {
	return &Validator{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses a generated document back and checks that it survived as
// a well-formed RSS feed. Used after generation as a sanity check; a
// failure here means the generator produced broken markup.
func (v *Validator) Run(xml string) error {
	parsed, err := v.gofeedParser.Parse(strings.NewReader(xml))
	if err != nil {
		return fmt.Errorf("generated feed is not parseable: %w", err)
	}

	if parsed.Title == "" {
		return fmt.Errorf("generated feed is missing a channel title")
	}

	return nil
}
