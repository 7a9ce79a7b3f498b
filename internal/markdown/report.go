package markdown

import (
	"docdigest/internal/domain"
	"fmt"
	"strings"
	"time"
)

// Report renders result as a Markdown document: counts, the combined summary
// and one section per document in input order. Summaries are emitted as is;
// refs and failure details are escaped.
func Report(result *domain.AggregateResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Batch %s\n\n", Escape(result.BatchID))
	fmt.Fprintf(&b, "%d attempted, %d succeeded, %d failed",
		result.Counts.Attempted, result.Counts.Succeeded, result.Counts.Failed)
	if !result.StartedAt.IsZero() && !result.CompletedAt.IsZero() {
		fmt.Fprintf(&b, " in %s", result.CompletedAt.Sub(result.StartedAt).Round(time.Millisecond))
	}
	b.WriteString(".\n\n")

	b.WriteString("## Combined summary\n\n")
	switch {
	case result.CombinedSummary != "":
		b.WriteString(strings.TrimSpace(result.CombinedSummary))
	case result.BatchFailed():
		b.WriteString("_No document was summarized._")
	default:
		b.WriteString("_The combined summary is unavailable._")
	}
	b.WriteString("\n\n## Documents\n")

	for i, o := range result.Outcomes {
		fmt.Fprintf(&b, "\n### %d. %s\n\n", i+1, Escape(string(o.Ref)))

		if o.OK() {
			b.WriteString(strings.TrimSpace(o.Success.Summary))
		} else {
			fmt.Fprintf(&b, "**%s**: %s", o.Failure.Reason, Escape(o.Failure.Detail))
		}
		b.WriteString("\n")
	}

	return b.String()
}
