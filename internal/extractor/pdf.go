package extractor

import (
	"bytes"
	"context"
	"docdigest/internal/domain"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

type pdfConverter struct {
	log *slog.Logger
}

func newPDFConverter(log *slog.Logger) *pdfConverter {
	return &pdfConverter{log: log}
}

func (c *pdfConverter) Name() string {
	return "pdf"
}

func (c *pdfConverter) AcceptedMimeTypes() []string {
	return []string{"application/pdf"}
}

// Convert returns one segment per readable page, positioned by page number.
// Unreadable pages are skipped; a document with no readable page is Corrupt.
func (c *pdfConverter) Convert(ctx context.Context, body []byte) (segments []domain.Segment, err error) {
	defer func() {
		if r := recover(); r != nil {
			segments = nil
			err = domain.Errorf(domain.KindCorrupt, "parser panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, classifyPDFError(err)
	}

	pageCount := reader.NumPage()
	if pageCount <= 0 {
		return nil, domain.Errorf(domain.KindEmpty, "document has no pages")
	}

	failed := 0
	for i := 1; i <= pageCount; i++ {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			failed++
			c.log.WarnContext(ctx, "Skipping missing PDF page",
				"page", i,
				"pageCount", pageCount)

			continue
		}

		text, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			failed++
			c.log.WarnContext(ctx, "Skipping unreadable PDF page",
				"error", pageErr,
				"page", i,
				"pageCount", pageCount)

			continue
		}

		segments = append(segments, domain.Segment{Position: i, Text: text})
	}

	if failed == pageCount {
		return nil, domain.Errorf(domain.KindCorrupt, "no readable pages (pageCount = %d)", pageCount)
	}

	return segments, nil
}

func classifyPDFError(err error) error {
	if errors.Is(err, pdf.ErrInvalidPassword) || strings.Contains(strings.ToLower(err.Error()), "encrypt") {
		return domain.NewError(domain.KindEncrypted, fmt.Errorf("open PDF: %w", err))
	}

	return domain.NewError(domain.KindCorrupt, fmt.Errorf("open PDF: %w", err))
}
