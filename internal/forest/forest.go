// Package forest holds the session aggregate (the running timer and its tree)
// and the ledger of trees grown by completed work sessions.
package forest

import (
	"fmt"
	"math"
	"time"

	"focusforest/internal/event"
)

// DateLayout is the layout of LastActiveDate. Dates are local calendar days.
const DateLayout = "2006-01-02"

// MaxStage is the last growth stage a tree can reach.
const MaxStage = 5

// StageNames maps a tree stage to its display name.
var StageNames = [MaxStage + 1]string{"seed", "sprout", "sapling", "young_tree", "mature_tree", "ancient_tree"}

const FullHealth = 100

type Tree struct {
	ID        string    `json:"id"`
	Stage     int       `json:"stage"`
	StartTime time.Time `json:"startTime"`
	Health    int       `json:"health"`
	ProjectID string    `json:"projectId,omitempty"`
}

// NewTree returns a seed with full health.
func NewTree(id string, now time.Time, projectID string) *Tree {
	return &Tree{ID: id, Stage: 0, StartTime: now, Health: FullHealth, ProjectID: projectID}
}

// Damage subtracts amount from the tree's health and reports whether the
// tree died. Health is not clamped here; it can drop below zero.
func (t *Tree) Damage(amount int) bool {
	t.Health -= amount
	return t.Health <= 0
}

// GrowthStage returns the stage reached after elapsed time at one stage per interval.
func GrowthStage(elapsed, interval time.Duration) int {
	if interval <= 0 || elapsed <= 0 {
		return 0
	}
	stage := int(math.Floor(elapsed.Seconds() / interval.Seconds()))
	if stage > MaxStage {
		return MaxStage
	}
	return stage
}

type CompletedTree struct {
	Tree
	CompletedAt     time.Time `json:"completedAt"`
	DurationSeconds float64   `json:"durationSeconds"`
}

// StageName returns the display name of the tree's final stage.
func (c CompletedTree) StageName() string {
	if c.Stage < 0 || c.Stage > MaxStage {
		return StageNames[0]
	}
	return StageNames[c.Stage]
}

// Session is the singleton timer state.
type Session struct {
	IsActive           bool              `json:"isActive"`
	Type               event.SessionType `json:"type"`
	StartTime          *time.Time        `json:"startTime"`
	DurationSeconds    int               `json:"durationSeconds"`
	CompletedPomodoros int               `json:"completedPomodoros"`
	CurrentTree        *Tree             `json:"currentTree"`
	CurrentProjectID   string            `json:"currentProjectId,omitempty"`
	// RunID identifies the wake-up scheduled for the active run.
	RunID string `json:"runId,omitempty"`
}

// DefaultSession is an idle work session of the given planned length.
func DefaultSession(workDuration time.Duration) Session {
	return Session{
		Type:            event.SessionWork,
		DurationSeconds: int(workDuration.Seconds()),
	}
}

// Elapsed is the time since the session started, zero when idle.
func (s *Session) Elapsed(now time.Time) time.Duration {
	if !s.IsActive || s.StartTime == nil {
		return 0
	}
	return now.Sub(*s.StartTime)
}

// Remaining is the planned time left, never negative.
func (s *Session) Remaining(now time.Time) time.Duration {
	planned := time.Duration(s.DurationSeconds) * time.Second
	if !s.IsActive {
		return planned
	}
	left := planned - s.Elapsed(now)
	if left < 0 {
		return 0
	}
	return left.Truncate(time.Second)
}

// BadgeText is the short status shown next to the timer: whole minutes
// remaining while active, a tree once the last minute is running, a seed
// when idle.
func (s *Session) BadgeText(now time.Time) string {
	if !s.IsActive {
		return "🌱"
	}
	minutes := int(s.Remaining(now) / time.Minute)
	if minutes > 0 {
		return fmt.Sprintf("%d", minutes)
	}
	return "🌳"
}

// Forest is the ledger of completed trees and focus time aggregates.
type Forest struct {
	Trees                 []CompletedTree `json:"trees"`
	TotalFocusTimeSeconds float64         `json:"totalFocusTime"`
	TodayFocusTimeSeconds float64         `json:"todayFocusTime"`
	StreakDays            int             `json:"streakDays"`
	LastActiveDate        string          `json:"lastActiveDate,omitempty"`
}

func DefaultForest() Forest {
	return Forest{Trees: []CompletedTree{}}
}

// AddTree credits a completed work session: the finished tree joins the
// ledger and its duration counts toward both focus totals.
func (f *Forest) AddTree(tree Tree, completedAt time.Time, duration time.Duration) CompletedTree {
	seconds := duration.Seconds()
	f.TotalFocusTimeSeconds += seconds
	f.TodayFocusTimeSeconds += seconds
	done := CompletedTree{Tree: tree, CompletedAt: completedAt, DurationSeconds: seconds}
	f.Trees = append(f.Trees, done)
	return done
}

// Rollover starts a new day when now falls on a different local date than
// LastActiveDate. The streak grows by one after exactly one calendar day,
// restarts at 1 after any other gap, and is left alone on the first day.
// It reports whether a rollover happened.
func (f *Forest) Rollover(now time.Time) bool {
	today := now.Format(DateLayout)
	if f.LastActiveDate == today {
		return false
	}
	if f.LastActiveDate != "" {
		if daysBetween(f.LastActiveDate, now) == 1 {
			f.StreakDays++
		} else {
			f.StreakDays = 1
		}
	}
	f.TodayFocusTimeSeconds = 0
	f.LastActiveDate = today
	return true
}

// Efficiency is the share of planted trees that survived, as shown in the
// popup: trees / (trees + 1), or 100 for an empty forest.
func (f *Forest) Efficiency() int {
	n := len(f.Trees)
	if n == 0 {
		return 100
	}
	return int(math.Round(float64(n) / float64(n+1) * 100))
}

// daysBetween counts calendar days from the stored date to now's date, in
// now's location. Unparseable dates count as a gap.
func daysBetween(last string, now time.Time) int {
	lastDay, err := time.ParseInLocation(DateLayout, last, now.Location())
	if err != nil {
		return -1
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	// Round absorbs the 23h/25h days around DST changes.
	return int(math.Round(today.Sub(lastDay).Hours() / 24))
}
