package domain_test

import (
	"docdigest/internal/domain"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestKindOfUnwrapsWrappedErrors(t *testing.T) {
	base := domain.Errorf(domain.KindNotFound, "status %d", 404)
	wrapped := fmt.Errorf("fetch document: %w", base)

	kind, ok := domain.KindOf(wrapped)
	if !ok {
		t.Fatalf("expected kind to be found")
	}
	if kind != domain.KindNotFound {
		t.Fatalf("unexpected kind: %s", kind)
	}

	if kind.Category() != domain.CategoryFetch {
		t.Fatalf("unexpected category: %s", kind.Category())
	}

	if _, ok = domain.KindOf(errors.New("plain")); ok {
		t.Fatalf("expected plain error to carry no kind")
	}
}

func TestIsValidation(t *testing.T) {
	if !domain.IsValidation(domain.NewError(domain.KindNoDocuments, nil)) {
		t.Fatalf("expected NoDocuments to be a validation error")
	}

	if domain.IsValidation(domain.NewError(domain.KindCorrupt, nil)) {
		t.Fatalf("expected Corrupt not to be a validation error")
	}
}

func TestErrorMessageWithoutCause(t *testing.T) {
	err := domain.NewError(domain.KindEmpty, nil)
	if err.Error() != "Empty" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestExtractedTextString(t *testing.T) {
	text := domain.ExtractedText{
		Segments: []domain.Segment{{Position: 1, Text: "one"}, {Position: 2, Text: "two"}},
	}

	if got := text.String(); got != "one\n\ntwo" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestAggregateResultJSONKeepsInputOrder(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	result := domain.AggregateResult{
		BatchID: "batch",
		Outcomes: []domain.DocumentOutcome{
			domain.Succeeded("https://z.example/doc.pdf", "zed"),
			domain.Failed("https://a.example/doc.pdf", domain.KindNotFound, "status 404"),
			domain.Succeeded("https://m.example/doc.pdf", "em"),
		},
		CombinedSummary: "combined",
		StartedAt:       now,
		CompletedAt:     now.Add(time.Second),
	}
	result.CountOutcomes()

	b, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	encoded := string(b)
	z := strings.Index(encoded, "z.example")
	a := strings.Index(encoded, "a.example")
	m := strings.Index(encoded, "m.example")
	if z < 0 || a < 0 || m < 0 || z > a || a > m {
		t.Fatalf("expected documents in input order, got %s", encoded)
	}

	if !strings.Contains(encoded, `"error":"NotFound"`) {
		t.Fatalf("expected failure reason in output, got %s", encoded)
	}

	var decoded domain.AggregateResult
	if err = json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(decoded.Outcomes) != 3 {
		t.Fatalf("unexpected outcome count: %d", len(decoded.Outcomes))
	}
	if decoded.Outcomes[1].Failure == nil || decoded.Outcomes[1].Failure.Reason != domain.KindNotFound {
		t.Fatalf("unexpected second outcome: %+v", decoded.Outcomes[1])
	}
	if decoded.Counts != (domain.Counts{Attempted: 3, Succeeded: 2, Failed: 1}) {
		t.Fatalf("unexpected counts: %+v", decoded.Counts)
	}
	if !decoded.CompletedAt.Equal(result.CompletedAt) {
		t.Fatalf("unexpected completion time: %s", decoded.CompletedAt)
	}
}

func TestAggregateResultJSONOmitsMissingCombinedSummary(t *testing.T) {
	result := domain.AggregateResult{
		Outcomes: []domain.DocumentOutcome{
			domain.Failed("https://a.example/doc.pdf", domain.KindTimeout, ""),
		},
	}
	result.CountOutcomes()

	b, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if strings.Contains(string(b), "combined_summary") {
		t.Fatalf("expected combined summary to be omitted, got %s", b)
	}

	if !result.BatchFailed() {
		t.Fatalf("expected batch with no successes to be failed")
	}
}
