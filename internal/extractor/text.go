package extractor

import (
	"context"
	"docdigest/internal/domain"
	"regexp"
	"strings"
)

var blankLineRe = regexp.MustCompile(`\r?\n[\t ]*\r?\n`)

type textConverter struct{}

func newTextConverter() *textConverter {
	return &textConverter{}
}

func (c *textConverter) Name() string {
	return "text"
}

func (c *textConverter) AcceptedMimeTypes() []string {
	return []string{"text/plain"}
}

// Convert returns one segment per blank-line separated paragraph. Invalid
// UTF-8 sequences are dropped.
func (c *textConverter) Convert(_ context.Context, body []byte) ([]domain.Segment, error) {
	paragraphs := blankLineRe.Split(strings.ToValidUTF8(string(body), ""), -1)

	segments := make([]domain.Segment, 0, len(paragraphs))
	for i, p := range paragraphs {
		segments = append(segments, domain.Segment{Position: i + 1, Text: p})
	}

	return segments, nil
}
