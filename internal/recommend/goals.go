package recommend

import (
	"fmt"
	"math"
	"slices"
	"time"

	"focusforest/internal/analytics"
)

var streakMilestones = []int{3, 7, 14, 30, 60, 100}

const (
	minDailySessionGoal = 4
	maxDailySessionGoal = 12
	minScoreGoal        = 70
)

type Goal struct {
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Target      int     `json:"target"`
	Current     int     `json:"current"`
	Progress    float64 `json:"progress"` // percent, capped at 100
}

// GoalInput is the slice of engine state the goal generator reads.
type GoalInput struct {
	Records    []analytics.SessionRecord
	FocusScore int
	StreakDays int
	BestHours  []int
	Now        time.Time
}

// PersonalizedGoals returns the goals in display order: daily sessions,
// focus score, streak, then interruptions and best hour when they apply.
func PersonalizedGoals(in GoalInput) []Goal {
	var work []analytics.SessionRecord
	for _, r := range in.Records {
		if r.IsCompletedWork() {
			work = append(work, r)
		}
	}
	today := in.Now.Format("2006-01-02")
	var todayWork []analytics.SessionRecord
	for _, r := range work {
		if r.StartTime.In(in.Now.Location()).Format("2006-01-02") == today {
			todayWork = append(todayWork, r)
		}
	}

	sessionTarget := dailySessionTarget(work, in.Now.Location())
	goals := []Goal{
		newGoal("daily_sessions", "Daily sessions",
			fmt.Sprintf("Complete %d focus sessions today.", sessionTarget),
			sessionTarget, len(todayWork)),
	}

	scoreTarget := min(100, max(minScoreGoal, in.FocusScore+5))
	goals = append(goals, newGoal("focus_score", "Focus score",
		fmt.Sprintf("Raise your average focus score to %d.", scoreTarget),
		scoreTarget, in.FocusScore))

	milestone := nextMilestone(in.StreakDays)
	goals = append(goals, newGoal("streak", "Keep the streak",
		fmt.Sprintf("Reach a %d day streak.", milestone),
		milestone, in.StreakDays))

	recent := work[max(0, len(work)-recentSampleSize):]
	if len(recent) > 0 {
		total := 0
		for _, r := range recent {
			total += r.Interruptions
		}
		if mean := float64(total) / float64(len(recent)); mean > 1 {
			g := newGoal("interruptions", "Fewer interruptions",
				fmt.Sprintf("Keep distractions to at most one per session (recently %.1f).", mean),
				1, int(math.Round(mean)))
			g.Progress = math.Round(min(100, 100/mean))
			goals = append(goals, g)
		}
	}

	if len(in.BestHours) > 0 {
		done := 0
		for _, r := range todayWork {
			if slices.Contains(in.BestHours, r.Hour) {
				done = 1
				break
			}
		}
		goals = append(goals, newGoal("best_hour", "Use your peak hour",
			fmt.Sprintf("Complete a session at %02d:00, your strongest hour.", in.BestHours[0]),
			1, done))
	}
	return goals
}

func newGoal(kind, title, description string, target, current int) Goal {
	progress := 100.0
	if target > 0 {
		progress = math.Round(min(100, float64(current)/float64(target)*100))
	}
	return Goal{Type: kind, Title: title, Description: description, Target: target, Current: current, Progress: progress}
}

// dailySessionTarget is one more than the average completed sessions on
// active days, kept within [4,12].
func dailySessionTarget(work []analytics.SessionRecord, loc *time.Location) int {
	if len(work) == 0 {
		return minDailySessionGoal
	}
	days := map[string]bool{}
	for _, r := range work {
		days[r.StartTime.In(loc).Format("2006-01-02")] = true
	}
	avg := float64(len(work)) / float64(len(days))
	return max(minDailySessionGoal, min(maxDailySessionGoal, int(math.Round(avg))+1))
}

func nextMilestone(streak int) int {
	for _, m := range streakMilestones {
		if streak < m {
			return m
		}
	}
	return (streak/100 + 1) * 100
}
