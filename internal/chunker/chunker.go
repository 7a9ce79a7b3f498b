package chunker

import (
	"docdigest/internal/domain"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Separator joins packed segments inside a chunk and counts toward the limit.
const Separator = "\n\n"

var separatorLen = utf8.RuneCountInString(Separator)

// Chunk splits text into chunks of at most limit runes. Segments are packed
// greedily in order; a segment longer than limit is split at the last sentence
// boundary that fits, else at the last whitespace, else at limit runes.
func Chunk(text domain.ExtractedText, limit int) ([]domain.Chunk, error) {
	if limit <= 0 {
		return nil, domain.Errorf(domain.KindInvalidLimit, "limit must be positive (limit = %d)", limit)
	}

	var pieces []string
	for _, seg := range text.Segments {
		s := strings.TrimSpace(seg.Text)
		if s == "" {
			continue
		}

		pieces = append(pieces, split(s, limit)...)
	}

	var chunks []domain.Chunk
	var b strings.Builder
	size := 0

	flush := func() {
		if size == 0 {
			return
		}

		chunks = append(chunks, domain.Chunk{
			Ref:      text.Ref,
			Position: len(chunks),
			Text:     b.String(),
		})
		b.Reset()
		size = 0
	}

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)

		if size > 0 && size+separatorLen+n > limit {
			flush()
		}

		if size > 0 {
			b.WriteString(Separator)
			size += separatorLen
		}

		b.WriteString(p)
		size += n
	}
	flush()

	return chunks, nil
}

func split(s string, limit int) []string {
	var out []string

	runes := []rune(s)
	start := 0
	for len(runes)-start > limit {
		window := runes[start:]

		cut := sentenceCut(window, limit)
		if cut == 0 {
			cut = whitespaceCut(window, limit)
		}
		if cut == 0 {
			cut = limit
		}

		if piece := strings.TrimSpace(string(window[:cut])); piece != "" {
			out = append(out, piece)
		}

		start += cut
		for start < len(runes) && unicode.IsSpace(runes[start]) {
			start++
		}
	}

	if piece := strings.TrimSpace(string(runes[start:])); piece != "" {
		out = append(out, piece)
	}

	return out
}

// sentenceCut returns the end of the last sentence within runes[:limit], or 0.
func sentenceCut(runes []rune, limit int) int {
	for i := limit - 1; i > 0; i-- {
		switch runes[i] {
		case '。', '！', '？':
			return i + 1
		case '.', '!', '?':
			if i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				return i + 1
			}
		}
	}

	return 0
}

// whitespaceCut returns the index of the last whitespace within runes[:limit],
// or 0.
func whitespaceCut(runes []rune, limit int) int {
	for i := limit - 1; i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}

	return 0
}
