package pipeline

import (
	"context"
	"docdigest/internal/chunker"
	"docdigest/internal/domain"
	"docdigest/internal/redact"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultWorkers       = 8
	defaultDeadline      = 5 * time.Minute
	defaultReduceTimeout = 60 * time.Second
	deadlineDetail       = "batch deadline exceeded before the document completed"
)

type Fetcher interface {
	Fetch(ctx context.Context, ref domain.DocumentRef) (*domain.RawDocument, error)
}

type Extractor interface {
	Extract(ctx context.Context, doc *domain.RawDocument) (domain.ExtractedText, error)
}

type Summarizer interface {
	SummarizeDocument(ctx context.Context, ref domain.DocumentRef, chunks []domain.Chunk) (string, error)
	Combine(ctx context.Context, summaries []string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, result *domain.AggregateResult)
}

type Options struct {
	// Workers bounds the documents processed at once within a batch.
	Workers int
	// Deadline is used when Run is called without one.
	Deadline   time.Duration
	ChunkLimit int
	// ReduceTimeout bounds the combined summary call. It starts after the
	// batch deadline and derives from the caller's context.
	ReduceTimeout time.Duration
	// MaxDocuments rejects larger batches. Set to <=0 to disable.
	MaxDocuments int
	// MaxConcurrentBatches rejects batches beyond this many in flight. Set to
	// <=0 to disable.
	MaxConcurrentBatches int
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.Deadline <= 0 {
		o.Deadline = defaultDeadline
	}
	if o.ReduceTimeout <= 0 {
		o.ReduceTimeout = defaultReduceTimeout
	}
	return o
}

// Pipeline fetches, extracts, chunks and summarises a batch of documents and
// aggregates the per-document outcomes.
type Pipeline struct {
	fetcher    Fetcher
	extractor  Extractor
	summarizer Summarizer
	publisher  Publisher
	opts       Options
	batches    chan struct{}
	log        *slog.Logger
}

// New builds a Pipeline. publisher may be nil.
func New(
	f Fetcher,
	e Extractor,
	s Summarizer,
	publisher Publisher,
	opts Options,
	log *slog.Logger,
) *Pipeline {
	opts = opts.withDefaults()

	var batches chan struct{}
	if opts.MaxConcurrentBatches > 0 {
		batches = make(chan struct{}, opts.MaxConcurrentBatches)
	}

	return &Pipeline{
		fetcher:    f,
		extractor:  e,
		summarizer: s,
		publisher:  publisher,
		opts:       opts,
		batches:    batches,
		log:        log,
	}
}

type completion struct {
	idx     int
	outcome domain.DocumentOutcome
}

// Run processes refs under one wall-clock deadline (Options.Deadline when
// deadline is not positive). Per-document failures are recorded as outcomes;
// only validation and capacity failures are returned as errors. Documents not
// finished by the deadline are recorded as Timeout.
func (p *Pipeline) Run(
	ctx context.Context,
	refs []domain.DocumentRef,
	deadline time.Duration,
) (*domain.AggregateResult, error) {
	refs = NormalizeRefs(refs)
	if len(refs) == 0 {
		return nil, domain.Errorf(domain.KindNoDocuments, "no documents provided")
	}
	if p.opts.MaxDocuments > 0 && len(refs) > p.opts.MaxDocuments {
		return nil, domain.Errorf(domain.KindTooManyDocuments,
			"too many documents (count = %d, limit = %d)", len(refs), p.opts.MaxDocuments)
	}
	if p.opts.ChunkLimit <= 0 {
		return nil, domain.Errorf(domain.KindInvalidLimit, "chunk limit must be positive (limit = %d)", p.opts.ChunkLimit)
	}
	if deadline <= 0 {
		deadline = p.opts.Deadline
	}

	release, err := p.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	result := &domain.AggregateResult{
		BatchID:   uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	p.log.InfoContext(ctx, "Batch is started",
		"batchID", result.BatchID,
		"documents", len(refs),
		"deadline", deadline)

	result.Outcomes = p.collect(ctx, result.BatchID, refs, deadline)
	result.CountOutcomes()
	result.CombinedSummary = p.combine(ctx, result)
	result.CompletedAt = time.Now().UTC()

	p.log.InfoContext(ctx, "Batch is done",
		"batchID", result.BatchID,
		"attempted", result.Counts.Attempted,
		"succeeded", result.Counts.Succeeded,
		"failed", result.Counts.Failed,
		"combined", result.CombinedSummary != "",
		"durationSeconds", result.CompletedAt.Sub(result.StartedAt).Seconds())

	if p.publisher != nil {
		p.publisher.Publish(context.WithoutCancel(ctx), result)
	}

	return result, nil
}

// NormalizeRefs trims refs and drops blanks and repeats, keeping first
// occurrences in order.
func NormalizeRefs(refs []domain.DocumentRef) []domain.DocumentRef {
	out := make([]domain.DocumentRef, 0, len(refs))
	seen := make(map[domain.DocumentRef]struct{}, len(refs))

	for _, ref := range refs {
		ref = domain.DocumentRef(strings.TrimSpace(string(ref)))
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}

		seen[ref] = struct{}{}
		out = append(out, ref)
	}

	return out
}

func (p *Pipeline) acquire() (func(), error) {
	if p.batches == nil {
		return func() {}, nil
	}

	select {
	case p.batches <- struct{}{}:
		return func() { <-p.batches }, nil
	default:
		return nil, domain.Errorf(domain.KindCapacityExhausted,
			"too many batches in flight (limit = %d)", cap(p.batches))
	}
}

// collect runs refs on the worker pool and returns outcomes in input order.
// It stops waiting when the deadline elapses.
func (p *Pipeline) collect(
	ctx context.Context,
	batchID string,
	refs []domain.DocumentRef,
	deadline time.Duration,
) []domain.DocumentOutcome {
	batchCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	outcomes := make([]domain.DocumentOutcome, len(refs))
	resolved := make([]bool, len(refs))

	jobs := make(chan int)
	done := make(chan completion, len(refs))

	for range min(p.opts.Workers, len(refs)) {
		go func() {
			for idx := range jobs {
				done <- completion{idx: idx, outcome: p.process(batchCtx, refs[idx])}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range refs {
			select {
			case jobs <- i:
			case <-batchCtx.Done():
				return
			}
		}
	}()

	record := func(c completion) {
		outcomes[c.idx] = c.outcome
		resolved[c.idx] = true
	}

	received := 0
wait:
	for received < len(refs) {
		select {
		case c := <-done:
			record(c)
			received++
		case <-batchCtx.Done():
			break wait
		}
	}

	for drained := false; !drained && received < len(refs); {
		select {
		case c := <-done:
			record(c)
			received++
		default:
			drained = true
		}
	}

	for i, ok := range resolved {
		if ok {
			continue
		}

		outcomes[i] = domain.Failed(refs[i], domain.KindTimeout, deadlineDetail)
	}

	if received < len(refs) {
		p.log.WarnContext(ctx, "Batch deadline is exceeded",
			"batchID", batchID,
			"unfinished", len(refs)-received,
			"deadline", deadline)
	}

	return outcomes
}

type stage string

const (
	stageFetch     stage = "fetch"
	stageExtract   stage = "extract"
	stageChunk     stage = "chunk"
	stageSummarize stage = "summarize"
)

// defaultKind is used for stage errors that carry no kind of their own.
func (s stage) defaultKind() domain.ErrorKind {
	switch s {
	case stageFetch:
		return domain.KindTransportError
	case stageExtract:
		return domain.KindCorrupt
	case stageChunk:
		return domain.KindInvalidLimit
	default:
		return domain.KindPartialChunkFailure
	}
}

func (p *Pipeline) process(ctx context.Context, ref domain.DocumentRef) (outcome domain.DocumentOutcome) {
	start := time.Now()
	current := stageFetch

	defer func() {
		if r := recover(); r != nil {
			outcome = p.failure(ctx, ref, current, fmt.Errorf("panic: %v", r))
		}
	}()

	raw, err := p.fetcher.Fetch(ctx, ref)
	if err != nil {
		return p.failure(ctx, ref, current, err)
	}

	current = stageExtract
	if err = ctx.Err(); err != nil {
		return p.failure(ctx, ref, current, err)
	}

	text, err := p.extractor.Extract(ctx, raw)
	if err != nil {
		return p.failure(ctx, ref, current, err)
	}
	text.Ref = ref

	current = stageChunk
	chunks, err := chunker.Chunk(text, p.opts.ChunkLimit)
	if err != nil {
		return p.failure(ctx, ref, current, err)
	}

	current = stageSummarize
	if err = ctx.Err(); err != nil {
		return p.failure(ctx, ref, current, err)
	}

	summary, err := p.summarizer.SummarizeDocument(ctx, ref, chunks)
	if err != nil {
		return p.failure(ctx, ref, current, err)
	}

	p.log.InfoContext(ctx, "Document is summarized",
		"ref", ref,
		"bytes", len(raw.Body),
		"fetchAttempts", raw.Attempts,
		"segments", len(text.Segments),
		"chunks", len(chunks),
		"durationSeconds", time.Since(start).Seconds())

	return domain.Succeeded(ref, summary)
}

func (p *Pipeline) failure(
	ctx context.Context,
	ref domain.DocumentRef,
	s stage,
	err error,
) domain.DocumentOutcome {
	kind, ok := domain.KindOf(err)
	switch {
	case ok:
	case ctx.Err() != nil:
		kind = domain.KindTimeout
	default:
		kind = s.defaultKind()
	}

	detail := redact.Detail(err.Error())

	p.log.WarnContext(ctx, "Failed to process document",
		"error", detail,
		"ref", ref,
		"stage", s,
		"reason", kind)

	return domain.Failed(ref, kind, detail)
}

// combine returns the combined summary of the successful outcomes, or "" when
// there are none or the reduction fails.
func (p *Pipeline) combine(ctx context.Context, result *domain.AggregateResult) string {
	var refs []domain.DocumentRef
	var summaries []string

	for _, o := range result.Outcomes {
		if !o.OK() {
			continue
		}
		refs = append(refs, o.Ref)
		summaries = append(summaries, o.Success.Summary)
	}

	switch len(summaries) {
	case 0:
		return ""
	case 1:
		return summaries[0]
	}

	labeled := make([]string, len(summaries))
	for i, s := range summaries {
		labeled[i] = fmt.Sprintf("Document %d (%s):\n%s", i+1, refs[i], s)
	}

	reduceCtx, cancel := context.WithTimeout(ctx, p.opts.ReduceTimeout)
	defer cancel()

	combined, err := p.summarizer.Combine(reduceCtx, labeled)
	if err != nil {
		p.log.ErrorContext(ctx, "Failed to combine summaries",
			"error", redact.Secrets(err.Error()),
			"batchID", result.BatchID,
			"summaries", len(summaries))

		return ""
	}

	return combined
}
