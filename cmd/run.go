package main

import (
	"docdigest/internal/domain"
	"docdigest/internal/markdown"
	"docdigest/internal/refs"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

const (
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

type runOptions struct {
	file     string
	deadline time.Duration
	format   string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [url...]",
		Short: "Summarize one batch and print the result",
		Long: `Summarizes the documents given as arguments and in --file, then prints the
aggregate result. --file accepts a YAML batch file ("documents" and "deadline"
keys) or any text containing URLs; "-" reads stdin. The command exits non-zero
when every document failed.`,
		Example: `  docdigest run https://example.com/a.pdf https://example.com/b.pdf
  docdigest run --file batch.yaml --format markdown`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "batch file, or - for stdin")
	cmd.Flags().DurationVarP(&opts.deadline, "deadline", "d", 0, "batch deadline (default PIPELINE_DEADLINE)")
	cmd.Flags().StringVar(&opts.format, "format", formatJSON, "output format: json or markdown")

	return cmd
}

func runBatch(cmd *cobra.Command, args []string, opts runOptions) error {
	if opts.format != formatJSON && opts.format != formatMarkdown {
		return fmt.Errorf("unknown format %q", opts.format)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// stdout carries the result.
	log := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	ctx := cmd.Context()

	documents := make([]domain.DocumentRef, 0, len(args))
	for _, a := range args {
		documents = append(documents, domain.DocumentRef(a))
	}

	deadline := opts.deadline
	if opts.file != "" {
		batch, loadErr := loadBatch(cmd.InOrStdin(), opts.file)
		if loadErr != nil {
			return loadErr
		}

		documents = append(documents, batch.Documents...)
		if deadline == 0 {
			deadline = batch.Deadline
		}
	}

	db, err := initDatabase(ctx, cfg.DBPath, log)
	if err != nil {
		return fmt.Errorf("initialize db: %w", err)
	}
	if db != nil {
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.ErrorContext(ctx, "Failed to close db",
					"error", closeErr,
					"dbPath", cfg.DBPath)
			}
		}()
	}

	p := buildPipeline(ctx, cfg, initCache(ctx, db, log), log)

	result, err := p.Run(ctx, documents, deadline)
	if err != nil {
		return err
	}

	if err = printResult(cmd.OutOrStdout(), result, opts.format); err != nil {
		return err
	}

	if result.BatchFailed() {
		return errBatchFailed
	}

	return nil
}

func loadBatch(stdin io.Reader, file string) (refs.Batch, error) {
	if file != "-" {
		return refs.LoadFile(file)
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return refs.Batch{}, fmt.Errorf("read stdin: %w", err)
	}

	return refs.Parse(b)
}

func printResult(w io.Writer, result *domain.AggregateResult, format string) error {
	if format == formatMarkdown {
		_, err := io.WriteString(w, markdown.Report(result))
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	return nil
}
