package main

import (
	"context"
	"docdigest/internal/bot"
	"docdigest/internal/domain"
	"docdigest/internal/pipeline"
	"docdigest/internal/scheduler"
	"docdigest/internal/server"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const readHeaderTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serves POST /summarize, GET /summary and GET /health. When SCHEDULE_SPEC is
set, the documents in SCHEDULE_URLS are also summarized on that cron schedule.
When TELEGRAM_TOKEN is set, a Telegram bot accepts links as batches too.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger(os.Stdout, cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	start := time.Now()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	db, err := initDatabase(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return err
	}
	if db != nil {
		defer func() {
			if err = db.Close(); err != nil {
				log.ErrorContext(ctx, "Failed to close db",
					"error", err,
					"dbPath", cfg.DBPath)
			}
		}()
		log.InfoContext(ctx, "DB is initialized",
			"dbPath", cfg.DBPath)
	}

	latest := initCache(ctx, db, log)
	p := buildPipeline(ctx, cfg, latest, log)

	if cfg.Schedule.Spec != "" {
		sched := scheduler.New(ctx, cfg.Schedule.Spec, scheduledRefs(cfg.Schedule.URLs), 0, p, log)

		if err = sched.Start(); err != nil {
			log.ErrorContext(ctx, "Failed to start scheduler",
				"error", err,
				"spec", cfg.Schedule.Spec)

			return err
		}
		defer sched.Stop()
		log.InfoContext(ctx, "Scheduler is started",
			"spec", cfg.Schedule.Spec,
			"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String(),
			"documents", len(cfg.Schedule.URLs))
	}

	if cfg.TelegramToken != "" {
		go func() {
			if err := bot.Start(ctx, cfg.TelegramToken, bot.New(p, latest, log)); err != nil {
				log.ErrorContext(ctx, "Failed to start bot",
					"error", err)
			}
		}()
		log.InfoContext(ctx, "Bot is started")
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.New(p, latest, log).Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()
	log.InfoContext(ctx, "HTTP server is started",
		"addr", cfg.HTTPAddr)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
	case err = <-serveErr:
		log.ErrorContext(ctx, "HTTP server is stopped",
			"error", err,
			"addr", cfg.HTTPAddr)

		return fmt.Errorf("serve http: %w", err)
	}

	// In-flight batches are allowed to reach their deadline.
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.WithoutCancel(ctx), cfg.Pipeline.Deadline+cfg.Pipeline.ReduceTimeout)
	defer shutdownCancel()

	if err = httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.ErrorContext(ctx, "Failed to shut down HTTP server",
			"error", err)
	}
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	return nil
}

func scheduledRefs(urls []string) []domain.DocumentRef {
	out := make([]domain.DocumentRef, 0, len(urls))
	for _, u := range urls {
		out = append(out, domain.DocumentRef(u))
	}

	return pipeline.NormalizeRefs(out)
}
