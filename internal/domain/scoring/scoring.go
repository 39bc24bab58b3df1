// Package scoring computes the 28-day consistency score from session
// summaries. Everything here is pure.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/stride/internal/domain/model"
)

// WindowDays is the number of calendar days scored, today included.
const WindowDays = 28

const (
	maxScore   = 100
	dateLayout = "2006-01-02"

	// maxZoneOffset is the largest UTC offset in use (UTC+14:00).
	maxZoneOffset = 14 * time.Hour
)

// QueryCutoff is the earliest end time the session query needs for a score
// computed at now: the first local midnight of the oldest window day in any
// offset. Score drops whatever the wider query lets through.
func QueryCutoff(now time.Time) time.Time {
	y, m, d := now.Date()
	oldest := time.Date(y, m, d-(WindowDays-1), 0, 0, 0, 0, time.UTC)
	return oldest.Add(-maxZoneOffset)
}

// Days returns the window's calendar dates, oldest first, ending at the date
// of now in now's own location.
func Days(now time.Time) []string {
	y, m, d := now.Date()
	out := make([]string, WindowDays)
	for i := range out {
		out[i] = time.Date(y, m, d-(WindowDays-1)+i, 0, 0, 0, 0, time.UTC).Format(dateLayout)
	}
	return out
}

// Score buckets each session by the calendar date of its end time, read in
// the end time's own offset. Sessions without an end time or outside the
// window are ignored.
func Score(sessions []model.Session, now time.Time) model.ConsistencyScoreResult {
	days := Days(now)
	index := make(map[string]int, len(days))
	for i, day := range days {
		index[day] = i
	}

	counts := make([]int, len(days))
	bucketed := 0
	for _, s := range sessions {
		if s.EndTime == nil || s.EndTime.IsZero() {
			continue
		}
		i, ok := index[s.EndTime.Format(dateLayout)]
		if !ok {
			continue
		}
		counts[i]++
		bucketed++
	}

	trained, gap, run := 0, 0, 0
	for _, c := range counts {
		if c > 0 {
			trained++
			run = 0
			continue
		}
		run++
		if run > gap {
			gap = run
		}
	}

	score := int(math.Round(float64(trained) / WindowDays * 100))
	if score > maxScore {
		score = maxScore
	}

	chart := make([]model.ChartPoint, len(days))
	for i, day := range days {
		chart[i] = model.ChartPoint{Date: day, Sessions: counts[i]}
	}

	return model.ConsistencyScoreResult{
		Score: score,
		Bullets: []string{
			fmt.Sprintf("You trained %d/%d days", trained, WindowDays),
			fmt.Sprintf("Longest gap: %d %s", gap, plural(gap, "day", "days")),
			"Average sessions per training day: " + average(bucketed, trained),
		},
		Chart: chart,
	}
}

func average(sessions, days int) string {
	if days == 0 {
		return "0"
	}
	return fmt.Sprintf("%.1f", float64(sessions)/float64(days))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
