package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/stride/internal/domain/model"
)

// NewScoreCommand creates the score command.
func NewScoreCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score USER",
		Short: "Print a user's 28-day consistency score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			res, err := NewClient(rootOpts.URL, rootOpts.Timeout).ConsistencyScore(ctx, args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "failed to fetch score", err)
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printScore(cmd.OutOrStdout(), args[0], res)
			return nil
		},
	}
	return cmd
}

func printScore(w io.Writer, userID string, res model.ConsistencyScoreResult) {
	fmt.Fprintf(w, "%s: %d/100\n", userID, res.Score)
	for _, b := range res.Bullets {
		fmt.Fprintf(w, "  - %s\n", b)
	}
	fmt.Fprintln(w)
	for _, p := range res.Chart {
		fmt.Fprintf(w, "%s %s\n", p.Date, strings.Repeat("#", p.Sessions))
	}
}
