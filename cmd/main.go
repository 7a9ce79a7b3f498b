package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

// errBatchFailed makes the process exit non-zero when no document succeeded.
var errBatchFailed = errors.New("every document failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docdigest",
		Short: "Fetch, extract and summarize batches of documents",
		Long: `docdigest downloads PDF, HTML and plain-text documents, splits their text
into chunks, summarizes every document and combines the summaries of a batch.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd(), newRunCmd())

	return root
}
