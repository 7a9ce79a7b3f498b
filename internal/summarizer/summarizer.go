package summarizer

import (
	"context"
)

// Stage tells a Summarizer what kind of text it is condensing.
type Stage string

const (
	// StageChunk summarises one chunk of a document.
	StageChunk Stage = "chunk"
	// StageDocument merges chunk summaries into a document summary.
	StageDocument Stage = "document"
	// StageBatch merges document summaries into a combined summary.
	StageBatch Stage = "batch"
)

// Input describes the payload for a summary request.
type Input struct {
	// Text contains the original plain text to summarise.
	Text string
	// SourceURL is optional metadata that helps the model reference the origin.
	SourceURL string
	Stage     Stage
}

// Summarizer produces a single summary for a given input text.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}
