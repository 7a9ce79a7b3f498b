package extractor

import (
	"context"
	"docdigest/internal/domain"
	"fmt"
	"log/slog"
	"mime"
	"slices"

	"github.com/gabriel-vasile/mimetype"
)

// Converter turns one payload format into raw text segments.
type Converter interface {
	Name() string
	AcceptedMimeTypes() []string
	Convert(ctx context.Context, body []byte) ([]domain.Segment, error)
}

// Extractor picks a Converter by sniffing the payload and normalises its output.
type Extractor struct {
	converters []Converter
	log        *slog.Logger
}

// New creates an Extractor with the PDF, HTML, feed and plain text converters
// registered.
func New(log *slog.Logger) *Extractor {
	e := &Extractor{log: log}

	e.RegisterConverter(newPDFConverter(log))
	e.RegisterConverter(newHTMLConverter())
	e.RegisterConverter(newFeedConverter())
	e.RegisterConverter(newTextConverter())

	return e
}

// RegisterConverter adds a converter. Earlier converters win on overlap.
func (e *Extractor) RegisterConverter(c Converter) {
	e.converters = append(e.converters, c)
}

// Extract returns the non-empty, normalised segments of doc in source order.
// Returned errors carry a domain.ErrorKind.
func (e *Extractor) Extract(
	ctx context.Context,
	doc *domain.RawDocument,
) (domain.ExtractedText, error) {
	text := domain.ExtractedText{Ref: doc.Ref}

	if len(doc.Body) == 0 {
		return text, domain.Errorf(domain.KindEmpty, "payload is empty")
	}

	mtype := mimetype.Detect(doc.Body)

	c := e.converterFor(mtype, doc.ContentType)
	if c == nil {
		return text, domain.Errorf(domain.KindCorrupt,
			"unsupported format (mimeType = %s, contentType = %s)", mtype.String(), doc.ContentType)
	}

	raw, err := c.Convert(ctx, doc.Body)
	if err != nil {
		return text, fmt.Errorf("convert %s: %w", c.Name(), err)
	}

	for _, seg := range raw {
		normalized := normalize(seg.Text)
		if normalized == "" {
			continue
		}

		text.Segments = append(text.Segments, domain.Segment{Position: seg.Position, Text: normalized})
	}

	if len(text.Segments) == 0 {
		return text, domain.Errorf(domain.KindEmpty, "no text found (converter = %s)", c.Name())
	}

	e.log.DebugContext(ctx, "Document is extracted",
		"ref", doc.Ref,
		"converter", c.Name(),
		"mimeType", mtype.String(),
		"segments", len(text.Segments))

	return text, nil
}

func (e *Extractor) converterFor(mtype *mimetype.MIME, contentType string) Converter {
	for m := mtype; m != nil; m = m.Parent() {
		for _, c := range e.converters {
			if slices.ContainsFunc(c.AcceptedMimeTypes(), m.Is) {
				return c
			}
		}
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil
	}

	for _, c := range e.converters {
		if slices.Contains(c.AcceptedMimeTypes(), mediaType) {
			return c
		}
	}

	return nil
}
