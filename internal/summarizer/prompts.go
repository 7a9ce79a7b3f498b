package summarizer

import "strings"

const (
	chunkPrompt = `Summarize the excerpt of a longer document.

Rules:
- 3 to 6 sentences.
- Keep key facts, figures, names, dates and conclusions.
- Do not mention that this is an excerpt.
- Neutral tone, plain prose, no lists.
- Write in the same language as the input.`

	documentPrompt = `You are given partial summaries of consecutive parts of one document, in order.
Merge them into a single summary of the whole document.

Rules:
- One or two paragraphs.
- Remove repetition and keep the most important facts and conclusions.
- Neutral tone, plain prose, no lists.
- Write in the same language as the input.`

	batchPrompt = `You are given summaries of several documents separated by blank lines.
Write one combined overview.

Rules:
- One or two paragraphs.
- Cover common themes first, then notable differences.
- Neutral tone, plain prose, no lists.
- Write in the same language as the majority of the input.`
)

func instructions(stage Stage) string {
	switch stage {
	case StageDocument:
		return documentPrompt
	case StageBatch:
		return batchPrompt
	default:
		return chunkPrompt
	}
}

func userPrompt(input Input) string {
	b := strings.Builder{}
	if sourceURL := strings.TrimSpace(input.SourceURL); sourceURL != "" {
		b.WriteString("Source:\n")
		b.WriteString(sourceURL)
		b.WriteString("\n")
	}
	b.WriteString("Content:\n")
	b.WriteString(strings.TrimSpace(input.Text))

	return b.String()
}
