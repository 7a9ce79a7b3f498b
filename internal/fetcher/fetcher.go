package fetcher

import (
	"context"
	"docdigest/internal/domain"
	"docdigest/internal/ratelimiter"
	"docdigest/internal/retry"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"
	acceptHeader = "application/pdf,text/html;q=0.9,text/plain;q=0.8,*/*;q=0.5"

	defaultTimeout  = 30 * time.Second
	defaultMaxBytes = 50 << 20
)

type Options struct {
	// Timeout bounds a single attempt, body included.
	Timeout  time.Duration
	Retry    retry.Policy
	MaxBytes int64
	// PerHostRPS limits outbound requests per host. Set to <=0 to disable.
	PerHostRPS float64
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = defaultMaxBytes
	}
	return o
}

// Fetcher retrieves document payloads over HTTP(S).
type Fetcher struct {
	client  *http.Client
	opts    Options
	limiter *ratelimiter.RateLimiter
	log     *slog.Logger
}

// New builds a Fetcher. A nil client means http.DefaultClient's transport.
func New(client *http.Client, opts Options, log *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	opts = opts.withDefaults()

	return &Fetcher{
		client:  client,
		opts:    opts,
		limiter: ratelimiter.New(opts.PerHostRPS, 1, log),
		log:     log,
	}
}

// Fetch downloads ref, retrying transient failures. Returned errors carry a
// domain.ErrorKind.
func (f *Fetcher) Fetch(
	ctx context.Context,
	ref domain.DocumentRef,
) (*domain.RawDocument, error) {
	u, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	var doc *domain.RawDocument
	attempts, err := retry.Do(ctx, f.opts.Retry, func(ctx context.Context, attempt int) error {
		if waitErr := f.limiter.Wait(ctx, u.Host); waitErr != nil {
			return waitErr
		}

		d, fetchErr := f.fetchOnce(ctx, u)
		if fetchErr != nil {
			f.log.DebugContext(ctx, "Document fetch attempt failed",
				"error", fetchErr,
				"ref", ref,
				"attempt", attempt,
				"transient", retry.IsTransient(fetchErr))

			return fetchErr
		}

		doc = d
		return nil
	})
	if err != nil {
		return nil, classify(err, attempts)
	}

	doc.Ref = ref
	doc.Attempts = attempts
	doc.Latency = time.Since(start)

	return doc, nil
}

// ParseRef validates that ref is an absolute http(s) URL.
func ParseRef(ref domain.DocumentRef) (*url.URL, error) {
	raw := strings.TrimSpace(string(ref))
	if raw == "" {
		return nil, domain.Errorf(domain.KindInvalidRef, "ref is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidRef, fmt.Errorf("parse URL: %w", err))
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, domain.Errorf(domain.KindInvalidRef, "unsupported scheme (scheme = %q)", u.Scheme)
	}
	if u.Host == "" {
		return nil, domain.Errorf(domain.KindInvalidRef, "host is missing")
	}

	return u, nil
}

func (f *Fetcher) fetchOnce(
	ctx context.Context,
	u *url.URL,
) (*domain.RawDocument, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidRef, fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req) //nolint:gosec // URL is validated by ParseRef
	if err != nil {
		return nil, transportError("do request", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.log.ErrorContext(ctx, "Failed to close response body",
				"error", closeErr,
				"url", u.String(),
				"operation", "fetchOnce")
		}
	}()

	if err = checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	if resp.ContentLength > f.opts.MaxBytes {
		return nil, domain.Errorf(domain.KindTooLarge,
			"content length exceeds limit (contentLength = %d, limit = %d)",
			resp.ContentLength, f.opts.MaxBytes)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return nil, transportError("read body", err)
	}
	if int64(len(body)) > f.opts.MaxBytes {
		return nil, domain.Errorf(domain.KindTooLarge,
			"body exceeds limit (limit = %d)", f.opts.MaxBytes)
	}

	return &domain.RawDocument{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return domain.Errorf(domain.KindNotFound, "unexpected status: %d", code)
	case code == http.StatusTooManyRequests || code >= 500:
		return retry.Transient(domain.Errorf(domain.KindTransportError, "unexpected status: %d", code))
	default:
		return domain.Errorf(domain.KindTransportError, "unexpected status: %d", code)
	}
}

func transportError(op string, err error) error {
	wrapped := fmt.Errorf("%s: %w", op, err)

	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return retry.Transient(domain.NewError(domain.KindTimeout, wrapped))
	}

	return retry.Transient(domain.NewError(domain.KindTransportError, wrapped))
}

func classify(err error, attempts int) error {
	if _, ok := domain.KindOf(err); ok {
		return fmt.Errorf("fetch (attempts = %d): %w", attempts, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewError(domain.KindTimeout, fmt.Errorf("fetch (attempts = %d): %w", attempts, err))
	}

	return domain.NewError(domain.KindTransportError, fmt.Errorf("fetch (attempts = %d): %w", attempts, err))
}
