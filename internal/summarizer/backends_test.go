package summarizer

import (
	"context"
	"docdigest/internal/retry"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"
)

func TestExtractiveSummarizerTakesLeadSentences(t *testing.T) {
	t.Parallel()

	s := NewExtractiveSummarizer()

	summary, err := s.Summarize(context.Background(), Input{
		Text:  "Alpha one. Alpha two.\n\nBeta one! Beta two?\n\n   ",
		Stage: StageChunk,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Alpha one. Beta one! Alpha two. Beta two?"
	if summary != want {
		t.Fatalf("unexpected summary: %q", summary)
	}
}

func TestExtractiveSummarizerRespectsBudget(t *testing.T) {
	t.Parallel()

	s := NewExtractiveSummarizer()

	summary, err := s.Summarize(context.Background(), Input{
		Text:  strings.Repeat("word ", 1000),
		Stage: StageChunk,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := utf8.RuneCountInString(summary); n > extractiveChunkMaxChars+3 {
		t.Fatalf("summary exceeds budget: %d runes", n)
	}
	if !strings.HasSuffix(summary, "...") {
		t.Fatalf("expected truncated summary, got %q", summary)
	}
}

func TestExtractiveSummarizerRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	if _, err := NewExtractiveSummarizer().Summarize(context.Background(), Input{Text: " \n\n "}); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestSentencesSplitsCJK(t *testing.T) {
	t.Parallel()

	got := sentences("今天天气很好。我们去公园吧。Version 1.2 is out. Done")
	want := []string{"今天天气很好。", "我们去公园吧。", "Version 1.2 is out.", "Done"}

	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected sentences: %q", got)
	}
}

func TestOpenAISummarizerGrowsOutputTokensOnIncompleteResponse(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var maxTokens []float64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		mu.Lock()
		tokens, _ := body["max_output_tokens"].(float64)
		maxTokens = append(maxTokens, tokens)
		call := len(maxTokens)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if call == 1 {
			_, _ = w.Write([]byte(`{"id":"resp_1","object":"response","status":"incomplete",` +
				`"incomplete_details":{"reason":"max_output_tokens"},"output":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"resp_2","object":"response","status":"completed","output":[` +
			`{"type":"message","id":"msg_1","status":"completed","role":"assistant",` +
			`"content":[{"type":"output_text","text":" Short summary. ","annotations":[]}]}]}`))
	}))
	defer srv.Close()

	s, err := NewOpenAISummarizer(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary, err := s.Summarize(context.Background(), Input{Text: "Some text.", Stage: StageChunk})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != "Short summary." {
		t.Fatalf("unexpected summary: %q", summary)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(maxTokens) != 2 || maxTokens[1] != 2*maxTokens[0] {
		t.Fatalf("expected doubled max output tokens, got %v", maxTokens)
	}
}

func TestOpenAISummarizerMarksServerErrorsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    int
		transient bool
	}{
		{status: http.StatusServiceUnavailable, transient: true},
		{status: http.StatusTooManyRequests, transient: true},
		{status: http.StatusBadRequest, transient: false},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"error":{"message":"failure","type":"server_error"}}`))
		}))

		s, err := NewOpenAISummarizer(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/"})
		if err != nil {
			srv.Close()
			t.Fatalf("unexpected error: %v", err)
		}

		_, err = s.Summarize(context.Background(), Input{Text: "Some text."})
		srv.Close()

		if err == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}
		if got := retry.IsTransient(err); got != tt.transient {
			t.Fatalf("status %d: transient = %v, want %v", tt.status, got, tt.transient)
		}
	}
}

func TestNewOpenAISummarizerRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewOpenAISummarizer(OpenAIConfig{APIKey: "  "}); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestGeminiSummarizer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "overloaded-model") {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Gemini summary."}]},` +
			`"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	ctx := context.Background()

	s, err := NewGeminiSummarizer(ctx, GeminiConfig{APIKey: "test", Model: "test-model", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary, err := s.Summarize(ctx, Input{Text: "Some text.", Stage: StageDocument})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != "Gemini summary." {
		t.Fatalf("unexpected summary: %q", summary)
	}

	overloaded, err := NewGeminiSummarizer(ctx, GeminiConfig{APIKey: "test", Model: "overloaded-model", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = overloaded.Summarize(ctx, Input{Text: "Some text."})
	if !retry.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestNewGeminiSummarizerValidatesConfig(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, err := NewGeminiSummarizer(ctx, GeminiConfig{Model: "m"}); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if _, err := NewGeminiSummarizer(ctx, GeminiConfig{APIKey: "k"}); err == nil {
		t.Fatalf("expected error for missing model")
	}
}

func TestGroupParts(t *testing.T) {
	t.Parallel()

	groups := groupParts([]string{"aaaa", "bbbb", "cccccccccc", "d"}, 10)
	if len(groups) != 3 {
		t.Fatalf("unexpected groups: %q", groups)
	}
	if strings.Join(groups[0], ",") != "aaaa,bbbb" || strings.Join(groups[2], ",") != "d" {
		t.Fatalf("unexpected groups: %q", groups)
	}

	if got := groupParts([]string{"a", "b"}, 0); len(got) != 1 {
		t.Fatalf("expected a single group without limit, got %q", got)
	}
}

func TestCacheKeyDependsOnStage(t *testing.T) {
	t.Parallel()

	a := cacheKey(Input{Text: "x", Stage: StageChunk})
	b := cacheKey(Input{Text: " x ", Stage: StageChunk})
	c := cacheKey(Input{Text: "x", Stage: StageDocument})

	if a != b {
		t.Fatalf("expected whitespace-insensitive keys")
	}
	if a == c {
		t.Fatalf("expected stage to be part of the key")
	}
}
