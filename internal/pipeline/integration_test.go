package pipeline_test

import (
	"context"
	"docdigest/internal/cache"
	"docdigest/internal/domain"
	"docdigest/internal/extractor"
	"docdigest/internal/fetcher"
	"docdigest/internal/pipeline"
	"docdigest/internal/retry"
	"docdigest/internal/summarizer"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRunEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/report.txt", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Quarterly revenue grew. Costs fell.\n\nHeadcount was flat."))
	})
	mux.HandleFunc("/page.html", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><nav>Menu</nav>` +
			`<h1>Launch notes</h1><p>The new release ships today.</p></body></html>`))
	})
	mux.HandleFunc("/empty.txt", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("   \n\n  "))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	log := slog.Default()
	f := fetcher.New(srv.Client(), fetcher.Options{
		Timeout: time.Second,
		Retry:   retry.Policy{MaxRetries: 2, BackoffInitial: time.Millisecond},
	}, log)
	c := cache.New(nil, log)
	p := pipeline.New(
		f,
		extractor.New(log),
		summarizer.NewClient(nil, summarizer.Options{}, log),
		c,
		pipeline.Options{Workers: 2, ChunkLimit: 40},
		log,
	)

	input := []domain.DocumentRef{
		domain.DocumentRef(srv.URL + "/report.txt"),
		domain.DocumentRef(srv.URL + "/missing.pdf"),
		domain.DocumentRef(srv.URL + "/page.html"),
		domain.DocumentRef(srv.URL + "/empty.txt"),
		"ftp://example.com/doc.pdf",
	}

	result, err := p.Run(context.Background(), input, 5*time.Second)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	want := domain.Counts{Attempted: 5, Succeeded: 2, Failed: 3}
	if result.Counts != want {
		t.Fatalf("unexpected counts: %+v (outcomes %+v)", result.Counts, result.Outcomes)
	}

	reasons := []domain.ErrorKind{"", domain.KindNotFound, "", domain.KindEmpty, domain.KindInvalidRef}
	for i, reason := range reasons {
		o := result.Outcomes[i]
		if o.Ref != input[i] {
			t.Fatalf("outcome %d has ref %q, want %q", i, o.Ref, input[i])
		}
		if reason == "" {
			if !o.OK() || o.Success.Summary == "" {
				t.Fatalf("expected success for %s, got %+v", o.Ref, o)
			}
			continue
		}
		if o.OK() || o.Failure.Reason != reason {
			t.Fatalf("outcome for %s = %+v, want %s", o.Ref, o, reason)
		}
	}

	report := result.Outcomes[0].Success.Summary
	if !strings.Contains(report, "Quarterly revenue grew.") {
		t.Fatalf("unexpected report summary: %q", report)
	}
	if strings.Contains(result.Outcomes[2].Success.Summary, "Menu") {
		t.Fatalf("navigation leaked into summary: %q", result.Outcomes[2].Success.Summary)
	}
	if result.CombinedSummary == "" {
		t.Fatal("expected a combined summary")
	}

	latest, ok := c.Latest()
	if !ok || latest.BatchID != result.BatchID {
		t.Fatalf("expected the cache to hold batch %s", result.BatchID)
	}
}
