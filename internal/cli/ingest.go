package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 8

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Workers int
}

// IngestResult summarizes a replay.
type IngestResult struct {
	Total      int   `json:"total"`
	OK         int64 `json:"ok"`
	Duplicates int64 `json:"duplicates"`
	Failed     int64 `json:"failed"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Post raw events from a file to the server",
		Long: `Post every raw event in FILE to POST /events.

FILE holds either a JSON array or one JSON object per line. Use "-" to read
standard input. Events are posted concurrently; duplicates are reported, not
treated as failures.

Examples:
  stridectl ingest events.ndjson
  stridectl generate --users 5 | stridectl ingest - --workers 16`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", defaultWorkers, "number of concurrent requests")

	return cmd
}

func runIngest(ctx context.Context, opts *IngestOptions, cmd *cobra.Command, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Workers < 1 {
		return NewExitError(ExitCommandError, "workers must be at least 1")
	}

	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open input", err)
		}
		defer f.Close()
		in = f
	}

	events, err := ReadEvents(in)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	client := NewClient(opts.URL, opts.Timeout)
	res := IngestResult{Total: len(events)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, ev := range events {
		g.Go(func() error {
			out, err := client.PostEvent(gctx, ev)
			switch {
			case err != nil:
				atomic.AddInt64(&res.Failed, 1)
				if opts.Verbose {
					fmt.Fprintf(cmd.ErrOrStderr(), "event %d: %v\n", i, err)
				}
			case out.Duplicate:
				atomic.AddInt64(&res.Duplicates, 1)
			default:
				atomic.AddInt64(&res.OK, 1)
			}
			// Per-event failures are counted, never abort the replay.
			return nil
		})
	}
	_ = g.Wait()

	if opts.Format == "json" {
		if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "posted %d events: %d ok, %d duplicate, %d failed\n",
			res.Total, res.OK, res.Duplicates, res.Failed)
	}

	if res.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d events failed", res.Failed, res.Total))
	}
	return nil
}
