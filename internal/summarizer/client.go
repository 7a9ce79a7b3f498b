package summarizer

import (
	"context"
	"crypto/sha256"
	"docdigest/internal/domain"
	"docdigest/internal/ratelimiter"
	"docdigest/internal/retry"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"
)

const (
	defaultChunkConcurrency = 4
	defaultCallTimeout      = 60 * time.Second
	maxReduceDepth          = 4
	partSeparator           = "\n\n"
	rateLimiterKey          = "summarizer"
)

type Options struct {
	// ChunkConcurrency bounds in-flight calls per document.
	ChunkConcurrency int
	CallTimeout      time.Duration
	Retry            retry.Policy
	// RateLimitRPS is a global limit across all calls. Set to <=0 to disable.
	RateLimitRPS float64
	// CacheSize is the number of memoised outputs. Set to <=0 to disable.
	CacheSize int
	CacheTTL  time.Duration
	// ReduceInputLimit is the rune budget of one reduction call. Larger inputs
	// are reduced in groups first. Set to <=0 to always reduce in one call.
	ReduceInputLimit int
}

func (o Options) withDefaults() Options {
	if o.ChunkConcurrency <= 0 {
		o.ChunkConcurrency = defaultChunkConcurrency
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = defaultCallTimeout
	}
	return o
}

// Client runs map-reduce summarisation on top of a Summarizer, with per-call
// timeouts, retries and memoisation.
type Client struct {
	summarizer Summarizer
	opts       Options
	limiter    *ratelimiter.RateLimiter
	cache      *expirable.LRU[string, string]
	log        *slog.Logger
}

// NewClient wraps s. A nil s falls back to the extractive summarizer.
func NewClient(s Summarizer, opts Options, log *slog.Logger) *Client {
	if s == nil {
		s = NewExtractiveSummarizer()
	}
	opts = opts.withDefaults()

	var cache *expirable.LRU[string, string]
	if opts.CacheSize > 0 {
		cache = expirable.NewLRU[string, string](opts.CacheSize, nil, opts.CacheTTL)
	}

	return &Client{
		summarizer: s,
		opts:       opts,
		limiter:    ratelimiter.New(opts.RateLimitRPS, 1, log),
		cache:      cache,
		log:        log,
	}
}

// SummarizeDocument summarises every chunk and reduces the results into one
// document summary. A single chunk's summary is returned as is. Any failing
// chunk fails the document with PartialChunkFailure; a failing reduction with
// ReductionFailure. A done ctx is returned as its own error.
func (c *Client) SummarizeDocument(
	ctx context.Context,
	ref domain.DocumentRef,
	chunks []domain.Chunk,
) (string, error) {
	if len(chunks) == 0 {
		return "", domain.Errorf(domain.KindEmpty, "no chunks to summarize")
	}

	partials := make([]string, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.ChunkConcurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			summary, err := c.call(gctx, Input{
				Text:      chunk.Text,
				SourceURL: string(ref),
				Stage:     StageChunk,
			})
			if err != nil {
				return fmt.Errorf("summarize chunk (position = %d): %w", chunk.Position, err)
			}

			partials[i] = summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", domain.NewError(domain.KindPartialChunkFailure, err)
	}

	if len(partials) == 1 {
		return partials[0], nil
	}

	summary, err := c.reduce(ctx, string(ref), partials, StageDocument)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", domain.NewError(domain.KindReductionFailure, err)
	}

	c.log.DebugContext(ctx, "Document is summarized",
		"ref", ref,
		"chunks", len(chunks),
		"summaryLen", len(summary))

	return summary, nil
}

// Combine reduces document summaries, in the given order, into one overview.
// A single summary is returned as is.
func (c *Client) Combine(ctx context.Context, summaries []string) (string, error) {
	switch len(summaries) {
	case 0:
		return "", domain.Errorf(domain.KindReductionFailure, "no summaries to combine")
	case 1:
		return summaries[0], nil
	}

	combined, err := c.reduce(ctx, "", summaries, StageBatch)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", domain.NewError(domain.KindReductionFailure, err)
	}

	return combined, nil
}

// reduce merges parts into one summary. When the joined parts exceed the
// reduce input limit, consecutive groups are reduced first, level by level.
func (c *Client) reduce(
	ctx context.Context,
	sourceURL string,
	parts []string,
	stage Stage,
) (string, error) {
	for depth := 0; ; depth++ {
		groups := groupParts(parts, c.opts.ReduceInputLimit)
		if len(groups) == 1 || depth >= maxReduceDepth {
			return c.call(ctx, Input{
				Text:      strings.Join(parts, partSeparator),
				SourceURL: sourceURL,
				Stage:     stage,
			})
		}

		next := make([]string, len(groups))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.opts.ChunkConcurrency)

		for i, group := range groups {
			g.Go(func() error {
				summary, err := c.call(gctx, Input{
					Text:      strings.Join(group, partSeparator),
					SourceURL: sourceURL,
					Stage:     stage,
				})
				if err != nil {
					return fmt.Errorf("reduce group (depth = %d, group = %d): %w", depth, i, err)
				}

				next[i] = summary
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return "", err
		}

		c.log.DebugContext(ctx, "Reduction level is done",
			"stage", stage,
			"depth", depth,
			"parts", len(parts),
			"groups", len(groups))

		parts = next
	}
}

func (c *Client) call(ctx context.Context, input Input) (string, error) {
	key := cacheKey(input)
	if c.cache != nil {
		if summary, ok := c.cache.Get(key); ok {
			return summary, nil
		}
	}

	var summary string
	attempts, err := retry.Do(ctx, c.opts.Retry, func(ctx context.Context, attempt int) error {
		if waitErr := c.limiter.Wait(ctx, rateLimiterKey); waitErr != nil {
			return waitErr
		}

		callCtx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()

		out, callErr := c.summarizer.Summarize(callCtx, input)
		if callErr != nil {
			c.log.DebugContext(ctx, "Summarize attempt failed",
				"error", callErr,
				"stage", input.Stage,
				"sourceURL", input.SourceURL,
				"attempt", attempt,
				"transient", retry.IsTransient(callErr))

			return callErr
		}

		out = strings.TrimSpace(out)
		if out == "" {
			return errors.New("summary is empty")
		}

		summary = out
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("summarize (stage = %s, attempts = %d): %w", input.Stage, attempts, err)
	}

	if c.cache != nil {
		c.cache.Add(key, summary)
	}

	return summary, nil
}

func cacheKey(input Input) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(input.Text)))

	return string(input.Stage) + "|" + strings.TrimSpace(input.SourceURL) + "|" + hex.EncodeToString(hash[:])
}

// groupParts packs consecutive parts into groups of at most limit runes.
// A part larger than limit forms its own group.
func groupParts(parts []string, limit int) [][]string {
	if limit <= 0 {
		return [][]string{parts}
	}

	sepLen := utf8.RuneCountInString(partSeparator)

	var groups [][]string
	var current []string
	size := 0

	for _, p := range parts {
		n := utf8.RuneCountInString(p)
		if len(current) > 0 && size+sepLen+n > limit {
			groups = append(groups, current)
			current = nil
			size = 0
		}

		if len(current) > 0 {
			size += sepLen
		}
		current = append(current, p)
		size += n
	}

	if len(current) > 0 {
		groups = append(groups, current)
	}

	return groups
}
