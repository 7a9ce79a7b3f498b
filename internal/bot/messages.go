package bot

import (
	"docdigest/internal/domain"
	"docdigest/internal/markdown"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	telegramMessageMaxLength = 4096
	// Limits apply to escaped text.
	telegramBlockMaxRunes = 1800
	telegramTitleMaxRunes = 450

	escapedEllipsis = `\.\.\.`
)

// formatResultAsMessages renders result as MarkdownV2 messages that each fit
// Telegram's length limit. Documents keep their input order.
func formatResultAsMessages(result *domain.AggregateResult) []string {
	var messages []string
	var currentMessage strings.Builder

	header := fmt.Sprintf("📄 *Batch %s*\n", markdown.EscapeV2(result.BatchID))
	continueHeader := fmt.Sprintf("📄 *Batch %s \\(continue\\)*\n\n", markdown.EscapeV2(result.BatchID))

	currentMessage.WriteString(header)
	currentMessage.WriteString(markdown.EscapeV2(fmt.Sprintf("%d attempted, %d succeeded, %d failed.",
		result.Counts.Attempted, result.Counts.Succeeded, result.Counts.Failed)))
	currentMessage.WriteString("\n\n")

	blocks := make([]string, 0, len(result.Outcomes)+1)
	if result.CombinedSummary != "" {
		blocks = append(blocks, "🧾 *Combined summary*\n"+escapeBlock(result.CombinedSummary)+"\n\n")
	}

	for i, o := range result.Outcomes {
		title := fmt.Sprintf("*%d\\. %s*\n", i+1, escapeTruncated(string(o.Ref), telegramTitleMaxRunes))

		if o.OK() {
			blocks = append(blocks, title+escapeBlock(o.Success.Summary)+"\n\n")
			continue
		}

		blocks = append(blocks, title+"✖️ "+markdown.EscapeV2(string(o.Failure.Reason))+": "+
			escapeBlock(o.Failure.Detail)+"\n\n")
	}

	size := utf8.RuneCountInString(currentMessage.String())
	for _, block := range blocks {
		n := utf8.RuneCountInString(block)
		if size+n > telegramMessageMaxLength {
			messages = append(messages, strings.TrimSpace(currentMessage.String()))
			currentMessage.Reset()
			currentMessage.WriteString(continueHeader)
			size = utf8.RuneCountInString(continueHeader)
		}

		currentMessage.WriteString(block)
		size += n
	}

	return append(messages, strings.TrimSpace(currentMessage.String()))
}

func formatRunError(err error) string {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		return "❌ Failed: " + markdown.EscapeV2(err.Error())
	}

	return "❌ Failed\\."
}

func escapeBlock(s string) string {
	return escapeTruncated(strings.TrimSpace(s), telegramBlockMaxRunes)
}

// escapeTruncated escapes s and cuts it so the escaped text has at most
// maxRunes runes. A cut never separates a character from its escape.
func escapeTruncated(s string, maxRunes int) string {
	escaped := markdown.EscapeV2(s)
	if utf8.RuneCountInString(escaped) <= maxRunes {
		return escaped
	}

	budget := maxRunes - utf8.RuneCountInString(escapedEllipsis)

	var b strings.Builder
	size := 0
	for _, r := range s {
		piece := markdown.EscapeV2(string(r))
		n := utf8.RuneCountInString(piece)
		if size+n > budget {
			break
		}

		b.WriteString(piece)
		size += n
	}

	return b.String() + escapedEllipsis
}
