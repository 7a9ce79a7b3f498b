package bot

import (
	"context"
	"docdigest/internal/domain"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []*tgbot.SendMessageParams
	actions  int
}

func (s *fakeSender) SendMessage(_ context.Context, params *tgbot.SendMessageParams) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, params)

	return &models.Message{ID: len(s.messages)}, nil
}

func (s *fakeSender) SendChatAction(context.Context, *tgbot.SendChatActionParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.actions++

	return true, nil
}

func (s *fakeSender) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Text
	}

	return out
}

type stubRunner struct {
	refs []domain.DocumentRef
	err  error
}

func (r *stubRunner) Run(
	_ context.Context,
	refs []domain.DocumentRef,
	_ time.Duration,
) (*domain.AggregateResult, error) {
	r.refs = refs
	if r.err != nil {
		return nil, r.err
	}

	result := &domain.AggregateResult{BatchID: "batch-1"}
	for _, ref := range refs {
		result.Outcomes = append(result.Outcomes, domain.Succeeded(ref, "Summary of "+string(ref)+"."))
	}
	result.CombinedSummary = "All good."
	result.CountOutcomes()

	return result, nil
}

type stubLatest struct {
	result *domain.AggregateResult
}

func (l stubLatest) Latest() (*domain.AggregateResult, bool) {
	return l.result, l.result != nil
}

func message(chatID int64, text string) *models.Update {
	return &models.Update{
		Message: &models.Message{
			ID:   1,
			Chat: models.Chat{ID: chatID, Type: "private"},
			Text: text,
		},
	}
}

func TestHandleLinksRunsBatch(t *testing.T) {
	runner := &stubRunner{}
	sender := &fakeSender{}
	b := New(runner, stubLatest{}, slog.Default())

	b.handleUpdate(context.Background(), sender,
		message(42, "please read https://example.com/a.pdf and https://example.com/b.pdf"))

	if len(runner.refs) != 2 || runner.refs[1] != "https://example.com/b.pdf" {
		t.Fatalf("unexpected refs: %q", runner.refs)
	}

	texts := sender.texts()
	if len(texts) != 1 {
		t.Fatalf("expected 1 message, got %d: %q", len(texts), texts)
	}
	for _, want := range []string{
		"*Batch batch\\-1*",
		"2 attempted, 2 succeeded, 0 failed\\.",
		"All good\\.",
		"*2\\. https://example\\.com/b\\.pdf*",
	} {
		if !strings.Contains(texts[0], want) {
			t.Fatalf("message does not contain %q:\n%s", want, texts[0])
		}
	}

	if sender.messages[0].ChatID != int64(42) || sender.messages[0].ParseMode != models.ParseModeMarkdown {
		t.Fatalf("unexpected params: %+v", sender.messages[0])
	}
}

func TestHandleTextWithoutLinks(t *testing.T) {
	runner := &stubRunner{}
	sender := &fakeSender{}
	b := New(runner, stubLatest{}, slog.Default())

	b.handleUpdate(context.Background(), sender, message(1, "hello there"))

	if runner.refs != nil {
		t.Fatalf("runner must not be called, got %q", runner.refs)
	}
	if texts := sender.texts(); len(texts) != 1 || !strings.Contains(texts[0], "not found") {
		t.Fatalf("unexpected messages: %q", texts)
	}
}

func TestHandleRunError(t *testing.T) {
	runner := &stubRunner{err: domain.Errorf(domain.KindTooManyDocuments, "too many documents")}
	sender := &fakeSender{}
	b := New(runner, stubLatest{}, slog.Default())

	b.handleUpdate(context.Background(), sender, message(1, "https://example.com/a.pdf"))

	texts := sender.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "TooManyDocuments") {
		t.Fatalf("unexpected messages: %q", texts)
	}
}

func TestHandleCommands(t *testing.T) {
	sender := &fakeSender{}
	b := New(&stubRunner{}, stubLatest{}, slog.Default())

	b.handleUpdate(context.Background(), sender, message(1, "/start"))
	b.handleUpdate(context.Background(), sender, message(1, "/summary"))

	latest := &domain.AggregateResult{
		BatchID:  "batch-9",
		Outcomes: []domain.DocumentOutcome{domain.Failed("https://a", domain.KindNotFound, "status 404")},
	}
	latest.CountOutcomes()
	New(&stubRunner{}, stubLatest{result: latest}, slog.Default()).
		handleUpdate(context.Background(), sender, message(1, "/summary"))

	texts := sender.texts()
	if len(texts) != 3 {
		t.Fatalf("expected 3 messages, got %q", texts)
	}
	if !strings.Contains(texts[0], "/summary") {
		t.Fatalf("unexpected help: %s", texts[0])
	}
	if !strings.Contains(texts[1], "No summary available") {
		t.Fatalf("unexpected empty summary reply: %s", texts[1])
	}
	if !strings.Contains(texts[2], "NotFound: status 404") {
		t.Fatalf("unexpected summary reply: %s", texts[2])
	}
}

func TestHandleUpdateIgnoresNonMessages(t *testing.T) {
	sender := &fakeSender{}
	b := New(&stubRunner{}, stubLatest{}, slog.Default())

	b.handleUpdate(context.Background(), sender, &models.Update{})

	if len(sender.texts()) != 0 {
		t.Fatal("expected no messages")
	}
}

func TestFormatResultAsMessagesSplitsLongBatches(t *testing.T) {
	result := &domain.AggregateResult{BatchID: "b"}
	for range 10 {
		result.Outcomes = append(result.Outcomes,
			domain.Succeeded("https://example.com/doc", strings.Repeat("word ", 300)))
	}
	result.CountOutcomes()

	messages := formatResultAsMessages(result)
	if len(messages) < 2 {
		t.Fatalf("expected several messages, got %d", len(messages))
	}

	for i, m := range messages {
		if n := utf8.RuneCountInString(m); n > telegramMessageMaxLength {
			t.Fatalf("message %d is too long: %d", i, n)
		}
		if i > 0 && !strings.HasPrefix(m, "📄 *Batch b \\(continue\\)*") {
			t.Fatalf("message %d lacks the continuation header: %q", i, m[:40])
		}
	}

	if !strings.Contains(messages[len(messages)-1], "*10\\. ") {
		t.Fatal("last document is missing")
	}
}

func TestFormatResultAsMessagesCapsEscapedBlocks(t *testing.T) {
	ref := domain.DocumentRef("https://example.com/" + strings.Repeat("a.b_", 1000))
	result := &domain.AggregateResult{BatchID: "b"}
	result.Outcomes = append(result.Outcomes,
		domain.Succeeded(ref, strings.Repeat("1.", 3000)),
		domain.Failed(ref, domain.KindCorrupt, strings.Repeat("(x)", 3000)),
	)
	result.CountOutcomes()

	messages := formatResultAsMessages(result)
	for i, m := range messages {
		if n := utf8.RuneCountInString(m); n > telegramMessageMaxLength {
			t.Fatalf("message %d is too long: %d", i, n)
		}
	}

	summary := escapeBlock(strings.Repeat("1.", 3000))
	if n := utf8.RuneCountInString(summary); n > telegramBlockMaxRunes {
		t.Fatalf("escaped block has %d runes", n)
	}
	if !strings.HasSuffix(summary, "1\\.\\.\\.") && !strings.HasSuffix(summary, "\\.\\.\\.\\.") {
		t.Fatalf("unexpected block ending: %q", summary[len(summary)-12:])
	}
	if strings.HasSuffix(strings.TrimSuffix(summary, escapedEllipsis), "\\") {
		t.Fatal("cut separated a character from its escape")
	}
}

func TestFormatRunError(t *testing.T) {
	if got := formatRunError(errors.New("boom")); got != "❌ Failed\\." {
		t.Fatalf("unexpected text: %q", got)
	}
	if got := formatRunError(domain.Errorf(domain.KindNoDocuments, "no documents")); !strings.Contains(got, "NoDocuments") {
		t.Fatalf("unexpected text: %q", got)
	}
}
