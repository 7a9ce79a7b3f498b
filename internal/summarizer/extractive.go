package summarizer

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	extractiveChunkMaxChars    = 600
	extractiveDocumentMaxChars = 1200
	extractiveBatchMaxChars    = 2000
)

var paragraphBreakRe = regexp.MustCompile(`\n\s*\n`)

// ExtractiveSummarizer builds summaries from the lead sentences of the input
// without calling a model. It is used when no model backend is configured.
type ExtractiveSummarizer struct{}

func NewExtractiveSummarizer() *ExtractiveSummarizer {
	return &ExtractiveSummarizer{}
}

// Summarize takes the first sentence of every paragraph, then the following
// ones, until the stage's character budget is reached.
func (s *ExtractiveSummarizer) Summarize(
	_ context.Context,
	input Input,
) (string, error) {
	var paragraphs [][]string
	for _, p := range paragraphBreakRe.Split(input.Text, -1) {
		normalized := strings.Join(strings.Fields(p), " ")
		if normalized == "" {
			continue
		}
		paragraphs = append(paragraphs, sentences(normalized))
	}

	if len(paragraphs) == 0 {
		return "", errors.New("input is empty")
	}

	budget := extractiveBudget(input.Stage)

	var picked []string
	used := 0
	for round := 0; ; round++ {
		progressed := false

		for _, p := range paragraphs {
			if round >= len(p) {
				continue
			}
			progressed = true

			n := utf8.RuneCountInString(p[round])
			if len(picked) > 0 && used+1+n > budget {
				return truncate(strings.Join(picked, " "), budget), nil
			}
			if len(picked) > 0 {
				used++
			}

			picked = append(picked, p[round])
			used += n
		}

		if !progressed {
			break
		}
	}

	return truncate(strings.Join(picked, " "), budget), nil
}

func extractiveBudget(stage Stage) int {
	switch stage {
	case StageDocument:
		return extractiveDocumentMaxChars
	case StageBatch:
		return extractiveBatchMaxChars
	default:
		return extractiveChunkMaxChars
	}
}

func sentences(text string) []string {
	var out []string

	runes := []rune(text)
	start := 0
	for i, r := range runes {
		switch r {
		case '.', '!', '?':
			if i+1 < len(runes) && runes[i+1] != ' ' {
				continue
			}
			fallthrough
		case '。', '！', '？':
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}

	return out
}

func truncate(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}

	trimmed := strings.TrimSpace(string(runes[:maxChars]))
	if trimmed == "" {
		return text
	}

	return trimmed + "..."
}
