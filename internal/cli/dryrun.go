package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	service "github.com/okian/stride/internal/app"
	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/pkg/logger"
)

// DryRunResult holds what the in-process pipeline produced.
type DryRunResult struct {
	Results []model.IngestResult `json:"results"`
	Session model.Session        `json:"session"`
}

// NewDryRunCommand creates the dryrun command.
func NewDryRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dryrun",
		Short: "Run three demo events through an in-memory pipeline",
		Long: `Ingest a start, a metric carrying 50 calories and an end event for user
"u1" through an in-memory pipeline, then print each ingest result and the
resulting session. No server is contacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			res, err := DryRun(ctx, time.Now())
			if err != nil {
				return WrapExitError(ExitFailure, "dry run failed", err)
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Fitness session service dry-run")
			for _, r := range res.Results {
				fmt.Fprintf(w, "%s session=%s event=%s duplicate=%t\n", r.Status, r.SessionID, r.EventID, r.Duplicate)
			}
			s := res.Session
			fmt.Fprintf(w, "session %s: durationSec=%d calories=%g events=%d version=%d\n",
				s.SessionID, s.DurationSec, s.Calories, s.EventCount, s.Version)
			fmt.Fprintln(w, "Dry-run complete")
			return nil
		},
	}
}

// DryRun ingests the demo events ending at now.
func DryRun(ctx context.Context, now time.Time) (DryRunResult, error) {
	svc := service.New(service.WithLogger(logger.Discard()), service.WithClock(func() time.Time { return now }))
	if err := svc.Start(ctx); err != nil {
		return DryRunResult{}, err
	}
	defer svc.Stop()

	start := now.Add(-30 * time.Minute).UTC()
	events := []model.RawEvent{
		rawEvent("u1", "session1", model.EventStart, start, model.Payload{}),
		rawEvent("u1", "session1", model.EventMetric, start.Add(15*time.Minute), model.Payload{"calories": 50.0}),
		rawEvent("u1", "session1", model.EventEnd, start.Add(30*time.Minute), model.Payload{}),
	}

	var out DryRunResult
	for _, ev := range events {
		r, err := svc.Ingest(ctx, ev)
		if err != nil {
			return DryRunResult{}, err
		}
		out.Results = append(out.Results, r)
	}

	sess, err := svc.Session(ctx, out.Results[0].SessionID)
	if err != nil {
		return DryRunResult{}, err
	}
	out.Session = sess
	return out, nil
}
