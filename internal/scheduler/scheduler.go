package scheduler

import (
	"context"
	"docdigest/internal/domain"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
)

// Runner runs one batch.
type Runner interface {
	Run(ctx context.Context, refs []domain.DocumentRef, deadline time.Duration) (*domain.AggregateResult, error)
}

// Scheduler resubmits a fixed list of documents on a cron schedule. Results
// reach the latest-result cache through the runner.
type Scheduler struct {
	ctx      context.Context
	cron     *cron.Cron
	spec     string
	refs     []domain.DocumentRef
	deadline time.Duration
	runner   Runner
	log      *slog.Logger
}

func New(
	ctx context.Context,
	spec string,
	refs []domain.DocumentRef,
	deadline time.Duration,
	runner Runner,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:      ctx,
		cron:     c,
		spec:     spec,
		refs:     refs,
		deadline: deadline,
		runner:   runner,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if len(s.refs) == 0 {
		return errors.New("no documents to schedule")
	}

	if _, err := s.cron.AddFunc(s.spec, s.runBatch); err != nil {
		return fmt.Errorf("add cron func (spec = %q): %w", s.spec, err)
	}

	s.cron.Start()

	return nil
}

// Stop stops the schedule and waits for a running batch to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runBatch() {
	ctx := s.ctx

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	result, err := s.runner.Run(ctx, s.refs, s.deadline)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to run scheduled batch",
			"error", err,
			"documents", len(s.refs))
		return
	}

	s.log.InfoContext(ctx, "Scheduled batch is done",
		"batchID", result.BatchID,
		"succeeded", result.Counts.Succeeded,
		"failed", result.Counts.Failed)
}
