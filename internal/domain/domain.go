package domain

import (
	"strings"
	"time"
)

// DocumentRef is the location of one input document.
type DocumentRef string

// RawDocument is a fetched payload together with its retrieval metadata.
type RawDocument struct {
	Ref         DocumentRef
	Body        []byte
	StatusCode  int
	ContentType string
	Latency     time.Duration
	Attempts    int
}

// Segment is a piece of extracted text with its position in the source
// (the page number for PDFs, the block index otherwise).
type Segment struct {
	Position int
	Text     string
}

// ExtractedText holds the non-empty segments of one document in source order.
type ExtractedText struct {
	Ref      DocumentRef
	Segments []Segment
}

func (t ExtractedText) String() string {
	texts := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		texts = append(texts, s.Text)
	}

	return strings.Join(texts, "\n\n")
}

// Chunk is a bounded piece of a document's text. Position is zero-based and
// dense within a document.
type Chunk struct {
	Ref      DocumentRef
	Position int
	Text     string
}
