// Package analytics keeps the rolling session history and derives the
// personal performance patterns, insights and reports from it.
package analytics

import (
	"errors"
	"math"
	"time"

	"focusforest/internal/event"
)

// ErrInvalidInput is wrapped by every validation failure in this package.
var ErrInvalidInput = errors.New("invalid input")

const (
	// PerformanceAlpha weights the newest score in the hourly and daily EMAs.
	PerformanceAlpha = 0.2
	// OptimalLengthAlpha weights the newest duration in the session length EMA.
	OptimalLengthAlpha = 0.1
	// OptimalLengthMinScore is the score a session must beat to teach the
	// session length EMA.
	OptimalLengthMinScore = 80

	minAnalysisRecords = 3
	minHourSamples     = 2
	minMoodSamples     = 5
	minMoodGroup       = 2
	moodMatchWindow    = 30 * time.Minute
)

// SessionRecord is one entry of the analytics history. Every session that
// ends, completed or abandoned, produces one.
type SessionRecord struct {
	ID              string            `json:"id"`
	Type            event.SessionType `json:"type"`
	StartTime       time.Time         `json:"startTime"`
	EndTime         time.Time         `json:"endTime"`
	DurationSeconds float64           `json:"duration"`
	PlannedSeconds  int               `json:"plannedDuration"`
	Completed       bool              `json:"completed"`
	Hour            int               `json:"hour"`
	DayOfWeek       int               `json:"dayOfWeek"`
	FocusScore      int               `json:"focusScore"`
	Interruptions   int               `json:"interruptions"`
	ProjectID       string            `json:"projectId,omitempty"`
	TreeHealthAtEnd int               `json:"treeHealth"`
}

// IsCompletedWork reports whether the record counts toward the learned patterns.
func (r SessionRecord) IsCompletedWork() bool {
	return r.Completed && r.Type == event.SessionWork
}

// RecordInput carries what the session state machine knows when a session ends.
type RecordInput struct {
	ID             string
	Type           event.SessionType
	Start          time.Time
	End            time.Time
	Planned        time.Duration
	Completed      bool
	ProjectID      string
	TreeHealth     int
	DamagePerEvent int
}

// NewRecord derives the hour, weekday, focus score and interruption count
// for a finished session. Hour and weekday come from the start time's location.
func NewRecord(in RecordInput) SessionRecord {
	duration := in.End.Sub(in.Start)
	health := ClampHealth(in.TreeHealth)
	return SessionRecord{
		ID:              in.ID,
		Type:            in.Type,
		StartTime:       in.Start,
		EndTime:         in.End,
		DurationSeconds: duration.Seconds(),
		PlannedSeconds:  int(in.Planned.Seconds()),
		Completed:       in.Completed,
		Hour:            in.Start.Hour(),
		DayOfWeek:       int(in.Start.Weekday()),
		FocusScore:      FocusScore(duration, in.Planned, health),
		Interruptions:   Interruptions(health, in.DamagePerEvent),
		ProjectID:       in.ProjectID,
		TreeHealthAtEnd: health,
	}
}

// ClampHealth bounds tree health to [0,100].
func ClampHealth(health int) int {
	return max(0, min(health, 100))
}

// FocusScore blends how much of the planned time was worked (70%) with how
// healthy the tree stayed (30%), on a 0..100 scale.
func FocusScore(duration, planned time.Duration, treeHealth int) int {
	ratio := 0.0
	if planned > 0 {
		ratio = math.Max(0, math.Min(duration.Seconds()/planned.Seconds(), 1))
	}
	health := float64(ClampHealth(treeHealth)) / 100
	return int(math.Round((ratio*0.7 + health*0.3) * 100))
}

// Interruptions counts the distraction hits implied by the remaining health.
func Interruptions(treeHealth, damagePerEvent int) int {
	if damagePerEvent <= 0 {
		return 0
	}
	return max(0, (100-ClampHealth(treeHealth))/damagePerEvent)
}

// ema returns the exponential moving average with weight alpha on sample.
func ema(current, sample, alpha float64) float64 {
	return current*(1-alpha) + sample*alpha
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
