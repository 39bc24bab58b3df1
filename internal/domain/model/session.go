package model

import "time"

// Session is the materialized summary of one logical workout. Every field is
// derived from the session's event log.
type Session struct {
	SessionID   string     `json:"sessionId"`
	UserID      string     `json:"userId"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
	DurationSec int64      `json:"durationSec"`
	Calories    float64    `json:"calories"`
	EventCount  int        `json:"eventCount"`
	LastEventAt *time.Time `json:"lastEventAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Version     int64      `json:"version"`
}

// ChartPoint is one calendar day of the consistency chart.
type ChartPoint struct {
	Date     string `json:"date"`
	Sessions int    `json:"sessions"`
}

// ConsistencyScoreResult is the transient scoring output.
type ConsistencyScoreResult struct {
	Score   int          `json:"score"`
	Bullets []string     `json:"bullets"`
	Chart   []ChartPoint `json:"chart"`
}

// IngestResult is returned to callers of the ingestion entry point.
type IngestResult struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionId"`
	EventID   string `json:"eventId"`
	Duplicate bool   `json:"duplicate,omitempty"`
}
