package cli

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/internal/domain/scoring"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Users             int
	Days              int
	TrainRatio        float64
	DupRatio          float64
	MetricsPerSession int
	Seed              uint64
	Output            string
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic start/metric/end events as NDJSON",
		Long: `Write synthetic workout sessions for a set of users over the trailing
days. A duplicate ratio re-emits some events verbatim so that replaying the
output exercises idempotency.

Examples:
  stridectl generate --users 10 --dup-ratio 0.1 > events.ndjson
  stridectl generate --seed 7 -o events.ndjson`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return WrapExitError(ExitCommandError, "invalid flags", err)
			}
			events := Generate(opts, time.Now().UTC())

			w := cmd.OutOrStdout()
			if opts.Output != "" && opts.Output != "-" {
				f, err := os.Create(opts.Output)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to create output", err)
				}
				defer f.Close()
				w = f
			}
			if err := WriteEvents(w, events); err != nil {
				return WrapExitError(ExitCommandError, "failed to write events", err)
			}
			if opts.Verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "generated %d events for %d users\n", len(events), opts.Users)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Users, "users", 3, "number of users")
	cmd.Flags().IntVar(&opts.Days, "days", scoring.WindowDays, "number of trailing days")
	cmd.Flags().Float64Var(&opts.TrainRatio, "train-ratio", 0.6, "probability a user trains on a given day")
	cmd.Flags().Float64Var(&opts.DupRatio, "dup-ratio", 0, "probability an event is emitted twice")
	cmd.Flags().IntVar(&opts.MetricsPerSession, "metrics", 3, "metric events per session")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "random seed; 0 picks one")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func (o *GenerateOptions) validate() error {
	switch {
	case o.Users < 1:
		return errors.New("users must be at least 1")
	case o.Days < 1:
		return errors.New("days must be at least 1")
	case o.MetricsPerSession < 0:
		return errors.New("metrics must not be negative")
	case o.TrainRatio < 0 || o.TrainRatio > 1:
		return errors.New("train-ratio must be within [0,1]")
	case o.DupRatio < 0 || o.DupRatio > 1:
		return errors.New("dup-ratio must be within [0,1]")
	}
	return nil
}

// Generate builds the synthetic event stream. The same seed and now yield
// the same user ids, sessions and payloads.
func Generate(o *GenerateOptions, now time.Time) []model.RawEvent {
	seed := o.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	ids := uuidSource(rng)

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var out []model.RawEvent
	emit := func(ev model.RawEvent) {
		out = append(out, ev)
		if o.DupRatio > 0 && rng.Float64() < o.DupRatio {
			out = append(out, ev)
		}
	}

	for u := 0; u < o.Users; u++ {
		userID := "user-" + ids().String()[:8]
		for d := o.Days - 1; d >= 0; d-- {
			if rng.Float64() >= o.TrainRatio {
				continue
			}
			start := today.AddDate(0, 0, -d).Add(time.Duration(6+rng.IntN(14)) * time.Hour)
			length := time.Duration(20+rng.IntN(60)) * time.Minute
			end := start.Add(length)
			if end.After(now) {
				continue
			}
			client := ids().String()

			emit(rawEvent(userID, client, model.EventStart, start, model.Payload{}))
			for m := 1; m <= o.MetricsPerSession; m++ {
				at := start.Add(length * time.Duration(m) / time.Duration(o.MetricsPerSession+1))
				emit(rawEvent(userID, client, model.EventMetric, at, model.Payload{
					"calories": float64(20 + rng.IntN(80)),
					"hr":       float64(100 + rng.IntN(70)),
				}))
			}
			emit(rawEvent(userID, client, model.EventEnd, end, model.Payload{}))
		}
	}
	return out
}

func rawEvent(user, client string, typ model.EventType, at time.Time, p model.Payload) model.RawEvent {
	return model.RawEvent{
		UserID:          user,
		ClientSessionID: client,
		Type:            typ,
		Timestamp:       at.Format(time.RFC3339),
		Payload:         p,
	}
}

// uuidSource draws v4 UUIDs from rng so that output is reproducible.
func uuidSource(rng *rand.Rand) func() uuid.UUID {
	return func() uuid.UUID {
		var b [16]byte
		for i := 0; i < len(b); i += 8 {
			v := rng.Uint64()
			for j := 0; j < 8; j++ {
				b[i+j] = byte(v >> (8 * j))
			}
		}
		id, _ := uuid.FromBytes(b[:])
		// Stamp version 4 and the RFC 4122 variant.
		id[6] = (id[6] & 0x0f) | 0x40
		id[8] = (id[8] & 0x3f) | 0x80
		return id
	}
}
