package recommend

import (
	"math/rand"
	"testing"
	"time"

	"focusforest/internal/analytics"
	"focusforest/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func work(start time.Time, score, interruptions int) analytics.SessionRecord {
	return analytics.SessionRecord{
		ID:              start.Format(time.RFC3339),
		Type:            event.SessionWork,
		StartTime:       start,
		EndTime:         start.Add(25 * time.Minute),
		DurationSeconds: 1500,
		PlannedSeconds:  1500,
		Completed:       true,
		Hour:            start.Hour(),
		DayOfWeek:       int(start.Weekday()),
		FocusScore:      score,
		Interruptions:   interruptions,
	}
}

func types(list []Suggestion) []string {
	out := []string{}
	for _, s := range list {
		out = append(out, s.Type)
	}
	return out
}

func TestBreakSuggestionsMorningLowIntensity(t *testing.T) {
	now := time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC)
	got := BreakSuggestions(nil, now, rand.New(rand.NewSource(1)))

	assert.Equal(t, IntensityLow, got.WorkIntensity)
	assert.Equal(t, now, got.CurrentTime)
	require.NotNil(t, got.MainSuggestion)
	assert.Equal(t, "hydrate", got.MainSuggestion.Type)
	assert.Equal(t, []string{"sunlight", "plan_next", "stretch"}, types(got.Alternatives), "equal priorities keep merge order")
	assert.Contains(t, tips, got.PersonalizedTip)
}

func TestBreakSuggestionsDedupLastWins(t *testing.T) {
	now := time.Date(2026, 3, 18, 20, 0, 0, 0, time.UTC)
	var records []analytics.SessionRecord
	for _, ago := range []int{100, 70, 40, 10} {
		records = append(records, work(now.Add(-time.Duration(ago)*time.Minute), 80, 0))
	}

	got := BreakSuggestions(records, now, rand.New(rand.NewSource(1)))

	assert.Equal(t, IntensityHigh, got.WorkIntensity)
	require.NotNil(t, got.MainSuggestion)
	assert.Equal(t, "long_rest", got.MainSuggestion.Type)
	require.Equal(t, []string{"eye_rest", "stretch"}, types(got.Alternatives))
	assert.Equal(t, 4, got.Alternatives[0].Priority, "intensity rule replaced the evening one")
	assert.Contains(t, got.Alternatives[0].Message, "Long stretches")
}

func TestBreakSuggestionsPersonalized(t *testing.T) {
	now := time.Date(2026, 3, 18, 14, 0, 0, 0, time.UTC)
	var records []analytics.SessionRecord
	start := now.AddDate(0, 0, -6)
	for i := 0; i < 10; i++ {
		records = append(records, work(start.Add(time.Duration(i)*3*time.Hour), 90, 0))
	}
	for i := 0; i < 5; i++ {
		records = append(records, work(now.AddDate(0, 0, -1).Add(time.Duration(i)*time.Hour), 60, 3))
	}

	got := BreakSuggestions(records, now, rand.New(rand.NewSource(1)))

	assert.Equal(t, IntensityLow, got.WorkIntensity)
	require.NotNil(t, got.MainSuggestion)
	assert.Equal(t, "meditation", got.MainSuggestion.Type)
	assert.Equal(t, []string{"digital_detox", "walk", "snack"}, types(got.Alternatives))
}

func TestBreakSuggestionsTipIsSeeded(t *testing.T) {
	now := time.Date(2026, 3, 18, 23, 0, 0, 0, time.UTC)
	a := BreakSuggestions(nil, now, rand.New(rand.NewSource(7)))
	b := BreakSuggestions(nil, now, rand.New(rand.NewSource(7)))
	assert.Equal(t, a.PersonalizedTip, b.PersonalizedTip)
	assert.Equal(t, "wind_down", a.MainSuggestion.Type)
}

func TestWorkIntensity(t *testing.T) {
	now := time.Date(2026, 3, 18, 14, 0, 0, 0, time.UTC)
	var records []analytics.SessionRecord
	want := []string{IntensityLow, IntensityNormal, IntensityNormal, IntensityHigh}
	for i, w := range want {
		records = append(records, work(now.Add(-time.Duration(i)*30*time.Minute), 80, 0))
		assert.Equal(t, w, WorkIntensity(records, now), "%d sessions", i+1)
	}

	brk := work(now.Add(-5*time.Minute), 0, 0)
	brk.Type = event.SessionShortBreak
	old := work(now.Add(-3*time.Hour), 80, 0)
	assert.Equal(t, IntensityLow, WorkIntensity([]analytics.SessionRecord{brk, old}, now))
	assert.Equal(t, IntensityLow, WorkIntensity([]analytics.SessionRecord{work(now.Add(-2*time.Hour), 80, 0)}, now))
}

func TestPersonalizedGoals(t *testing.T) {
	now := time.Date(2026, 3, 18, 10, 0, 0, 0, time.UTC)
	var records []analytics.SessionRecord
	for d := 2; d >= 1; d-- {
		for _, h := range []int{9, 10, 11} {
			day := now.AddDate(0, 0, -d)
			records = append(records, work(time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, time.UTC), 80, 0))
		}
	}
	records = append(records,
		work(time.Date(2026, 3, 18, 8, 0, 0, 0, time.UTC), 70, 3),
		work(time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC), 70, 3),
	)

	goals := PersonalizedGoals(GoalInput{
		Records:    records,
		FocusScore: 72,
		StreakDays: 5,
		BestHours:  []int{9, 14},
		Now:        now,
	})

	var kinds []string
	for _, g := range goals {
		kinds = append(kinds, g.Type)
	}
	require.Equal(t, []string{"daily_sessions", "focus_score", "streak", "interruptions", "best_hour"}, kinds)

	assert.Equal(t, 4, goals[0].Target)
	assert.Equal(t, 2, goals[0].Current)
	assert.Equal(t, 50.0, goals[0].Progress)

	assert.Equal(t, 77, goals[1].Target)
	assert.Equal(t, 94.0, goals[1].Progress)

	assert.Equal(t, 7, goals[2].Target)
	assert.Equal(t, 71.0, goals[2].Progress)

	assert.Equal(t, 1, goals[3].Target)
	assert.Equal(t, 83.0, goals[3].Progress)

	assert.Equal(t, 1, goals[4].Current)
	assert.Equal(t, 100.0, goals[4].Progress)
}

func TestPersonalizedGoalsWithoutHistory(t *testing.T) {
	goals := PersonalizedGoals(GoalInput{Now: time.Date(2026, 3, 18, 10, 0, 0, 0, time.UTC)})
	require.Len(t, goals, 3)
	assert.Equal(t, 4, goals[0].Target)
	assert.Equal(t, 0.0, goals[0].Progress)
	assert.Equal(t, 70, goals[1].Target)
	assert.Equal(t, 3, goals[2].Target)
}

func TestNextMilestone(t *testing.T) {
	assert.Equal(t, 3, nextMilestone(0))
	assert.Equal(t, 14, nextMilestone(7))
	assert.Equal(t, 100, nextMilestone(99))
	assert.Equal(t, 200, nextMilestone(100))
	assert.Equal(t, 300, nextMilestone(250))
}

func TestForestTheme(t *testing.T) {
	now := time.Date(2026, 10, 19, 22, 0, 0, 0, time.UTC)
	theme := ForestTheme(now, 12, rand.New(rand.NewSource(3)))

	assert.Equal(t, "autumn", theme.Season)
	assert.Equal(t, "night", theme.TimeOfDay)
	assert.Equal(t, "woodland", theme.ForestSize)
	assert.Equal(t, nightBackground, theme.Palette.Background)
	assert.Contains(t, seasonWeather["autumn"], theme.Weather)

	day := ForestTheme(time.Date(2026, 1, 5, 13, 0, 0, 0, time.UTC), 0, nil)
	assert.Equal(t, "winter", day.Season)
	assert.Equal(t, "afternoon", day.TimeOfDay)
	assert.Equal(t, "snowy", day.Weather)
	assert.Equal(t, "empty", day.ForestSize)
	assert.Equal(t, seasonPalette["winter"], day.Palette)
}

func TestSeason(t *testing.T) {
	assert.Equal(t, "spring", Season(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "summer", Season(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "winter", Season(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)))
}
