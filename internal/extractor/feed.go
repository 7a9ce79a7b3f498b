package extractor

import (
	"bytes"
	"context"
	"docdigest/internal/domain"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// feedConverter reads RSS and Atom documents: the feed title, then the title
// and text of every item in feed order.
type feedConverter struct{}

func newFeedConverter() *feedConverter {
	return &feedConverter{}
}

func (c *feedConverter) Name() string {
	return "feed"
}

func (c *feedConverter) AcceptedMimeTypes() []string {
	return []string{"application/rss+xml", "application/atom+xml"}
}

func (c *feedConverter) Convert(_ context.Context, body []byte) ([]domain.Segment, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewError(domain.KindCorrupt, fmt.Errorf("parse feed: %w", err))
	}

	var segments []domain.Segment
	add := func(text string) {
		segments = append(segments, domain.Segment{Position: len(segments) + 1, Text: text})
	}

	add(parsed.Title)
	add(feedItemText(parsed.Description))

	for _, item := range parsed.Items {
		add(item.Title)

		content := item.Content
		if strings.TrimSpace(content) == "" {
			content = item.Description
		}
		add(feedItemText(content))
	}

	return segments, nil
}

// feedItemText strips the markup that feeds commonly embed in descriptions.
func feedItemText(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}

	return doc.Text()
}
