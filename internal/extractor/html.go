package extractor

import (
	"bytes"
	"context"
	"docdigest/internal/domain"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	htmlNoiseSelector = "head, script, style, noscript, template, svg, iframe, nav, footer"
	htmlBlockSelector = "h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td, th, dt, dd, figcaption, caption"
)

type htmlConverter struct{}

func newHTMLConverter() *htmlConverter {
	return &htmlConverter{}
}

func (c *htmlConverter) Name() string {
	return "html"
}

func (c *htmlConverter) AcceptedMimeTypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Convert returns one segment per leaf block element, falling back to the
// paragraphs of the body text when the page has no block markup.
func (c *htmlConverter) Convert(_ context.Context, body []byte) ([]domain.Segment, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewError(domain.KindCorrupt, fmt.Errorf("create document from reader: %w", err))
	}

	doc.Find(htmlNoiseSelector).Remove()

	var segments []domain.Segment
	doc.Find(htmlBlockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.Find(htmlBlockSelector).Length() > 0 {
			return
		}

		segments = append(segments, domain.Segment{
			Position: len(segments) + 1,
			Text:     s.Text(),
		})
	})

	if len(segments) > 0 {
		return segments, nil
	}

	for i, paragraph := range strings.Split(doc.Find("body").Text(), "\n") {
		segments = append(segments, domain.Segment{Position: i + 1, Text: paragraph})
	}

	return segments, nil
}
