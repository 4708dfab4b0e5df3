package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"focusforest/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultWork = 25 * time.Minute

var base = time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC) // a Monday

func workRecord(id string, start time.Time, score int) SessionRecord {
	return SessionRecord{
		ID:              id,
		Type:            event.SessionWork,
		StartTime:       start,
		EndTime:         start.Add(defaultWork),
		DurationSeconds: defaultWork.Seconds(),
		PlannedSeconds:  int(defaultWork.Seconds()),
		Completed:       true,
		Hour:            start.Hour(),
		DayOfWeek:       int(start.Weekday()),
		FocusScore:      score,
		TreeHealthAtEnd: 100,
	}
}

func TestFocusScore(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		planned  time.Duration
		health   int
		want     int
	}{
		{"full session full health", 1500 * time.Second, 1500 * time.Second, 100, 100},
		{"full session two hits", 1500 * time.Second, 1500 * time.Second, 60, 88},
		{"half session", 750 * time.Second, 1500 * time.Second, 100, 65},
		{"overrun is capped", 3000 * time.Second, 1500 * time.Second, 100, 100},
		{"dead tree", 600 * time.Second, 1500 * time.Second, 0, 28},
		{"negative health is clamped", 600 * time.Second, 1500 * time.Second, -20, 28},
		{"no plan", time.Minute, 0, 100, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FocusScore(tt.duration, tt.planned, tt.health))
		})
	}
}

func TestInterruptions(t *testing.T) {
	assert.Equal(t, 0, Interruptions(100, 20))
	assert.Equal(t, 2, Interruptions(60, 20))
	assert.Equal(t, 5, Interruptions(0, 20))
	assert.Equal(t, 5, Interruptions(-40, 20), "clamped before dividing")
	assert.Equal(t, 1, Interruptions(70, 20))
	assert.Equal(t, 0, Interruptions(40, 0))
}

func TestNewRecord(t *testing.T) {
	start := time.Date(2026, 3, 18, 9, 30, 0, 0, time.UTC) // Wednesday
	rec := NewRecord(RecordInput{
		ID:             "r1",
		Type:           event.SessionWork,
		Start:          start,
		End:            start.Add(1500 * time.Second),
		Planned:        1500 * time.Second,
		Completed:      true,
		ProjectID:      "p1",
		TreeHealth:     60,
		DamagePerEvent: 20,
	})
	assert.Equal(t, 9, rec.Hour)
	assert.Equal(t, 3, rec.DayOfWeek)
	assert.Equal(t, 1500.0, rec.DurationSeconds)
	assert.Equal(t, 1500, rec.PlannedSeconds)
	assert.Equal(t, 2, rec.Interruptions)
	assert.Equal(t, 88, rec.FocusScore)
	assert.Equal(t, 60, rec.TreeHealthAtEnd)
	assert.True(t, rec.IsCompletedWork())
}

func TestAppendPrunesOldRecords(t *testing.T) {
	s := NewState(defaultWork)
	retention := 30 * 24 * time.Hour

	s.Sessions = append(s.Sessions, workRecord("old", base.AddDate(0, 0, -31), 90))
	s.Append(workRecord("new", base, 80), base, retention)

	require.Len(t, s.Sessions, 1)
	assert.Equal(t, "new", s.Sessions[0].ID)

	s.Append(workRecord("edge", base.AddDate(0, 0, -29), 70), base, retention)
	assert.Len(t, s.Sessions, 2, "records inside the window are kept")
}

func TestUpdatePersonalPatternsEMA(t *testing.T) {
	s := NewState(defaultWork)
	s.Patterns.HourlyPerformance[9] = 50
	s.Patterns.DailyPerformance[1] = 50

	rec := workRecord("r1", time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC), 100)
	s.Append(rec, rec.EndTime, 30*24*time.Hour)
	s.UpdatePersonalPatterns(rec)

	assert.InDelta(t, 60.0, s.Patterns.HourlyPerformance[9], 1e-9)
	assert.InDelta(t, 60.0, s.Patterns.DailyPerformance[1], 1e-9)
	assert.Equal(t, 100, s.Patterns.FocusScore)
}

func TestUpdatePersonalPatternsOptimalLength(t *testing.T) {
	s := NewState(defaultWork)

	low := workRecord("low", base, 80)
	low.DurationSeconds = 3000
	s.Append(low, base, 30*24*time.Hour)
	s.UpdatePersonalPatterns(low)
	assert.Equal(t, 1500.0, s.Patterns.OptimalSessionLengthSeconds, "score of exactly 80 does not teach")

	high := workRecord("high", base.Add(time.Hour), 95)
	high.DurationSeconds = 3000
	s.Append(high, base.Add(time.Hour), 30*24*time.Hour)
	s.UpdatePersonalPatterns(high)
	assert.InDelta(t, 1650.0, s.Patterns.OptimalSessionLengthSeconds, 1e-9)
	assert.Equal(t, 88, s.Patterns.FocusScore, "mean of 80 and 95, rounded")
}

func TestAggregateIgnoresAbandonedAndBreaks(t *testing.T) {
	s := NewState(defaultWork)
	done := workRecord("done", base, 90)
	abandoned := workRecord("abandoned", base.Add(time.Hour), 10)
	abandoned.Completed = false
	brk := workRecord("break", base.Add(2*time.Hour), 20)
	brk.Type = event.SessionShortBreak
	for _, r := range []SessionRecord{done, abandoned, brk} {
		s.Append(r, base.Add(3*time.Hour), 30*24*time.Hour)
	}
	s.UpdatePersonalPatterns(done)
	assert.Equal(t, 90, s.Patterns.FocusScore)
}

func TestPerformDailyAnalysisNeedsThreeRecords(t *testing.T) {
	s := NewState(defaultWork)
	s.Insights.BestHours = []int{7}
	s.Sessions = []SessionRecord{
		workRecord("a", base, 90),
		workRecord("b", base.Add(time.Hour), 90),
	}

	ran := s.PerformDailyAnalysis(base.Add(2*time.Hour), defaultWork)

	assert.False(t, ran)
	assert.Equal(t, []int{7}, s.Insights.BestHours, "insights untouched")
	assert.Empty(t, s.Patterns.LastAnalysisDate)
}

func TestBestAndWorstHours(t *testing.T) {
	day := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	at := func(d, h int) time.Time { return day.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour) }
	records := []SessionRecord{
		workRecord("9a", at(0, 9), 90), workRecord("9b", at(1, 9), 90),
		workRecord("14a", at(0, 14), 40), workRecord("14b", at(1, 14), 40),
		workRecord("20a", at(0, 20), 95), workRecord("20b", at(1, 20), 95),
		workRecord("22a", at(0, 22), 10), // single sample, excluded
	}

	ranked := RankHours(records, 2)
	require.Len(t, ranked, 3)
	best, worst := BestAndWorstHours(ranked)
	assert.Equal(t, []int{20, 9, 14}, best)
	assert.Equal(t, []int{14, 9, 20}, worst)

	s := NewState(defaultWork)
	s.Sessions = records
	s.Patterns.FocusScore = 75
	now := at(2, 10)
	require.True(t, s.PerformDailyAnalysis(now, defaultWork))
	assert.Equal(t, []int{20, 9, 14}, s.Insights.BestHours)
	assert.Equal(t, []int{14, 9, 20}, s.Insights.WorstHours)
	assert.Equal(t, "2026-03-18", s.Patterns.LastAnalysisDate)
	require.NotNil(t, s.Insights.NextOptimalStart)
	assert.Equal(t, at(2, 14), *s.Insights.NextOptimalStart, "earliest best hour still ahead today")
	require.Len(t, s.Insights.Recommendations, 1)
	assert.Equal(t, "optimal_time", s.Insights.Recommendations[0].Type)
}

func TestRecommendationsRules(t *testing.T) {
	s := NewState(defaultWork)
	for i := 0; i < 3; i++ {
		s.Sessions = append(s.Sessions, workRecord(fmt.Sprint(i), base.AddDate(0, 0, -i).Add(time.Duration(i)*time.Hour), 50))
	}
	s.Patterns.FocusScore = 50
	s.Patterns.OptimalSessionLengthSeconds = 35 * 60

	require.True(t, s.PerformDailyAnalysis(base, defaultWork))

	var types []string
	for _, r := range s.Insights.Recommendations {
		types = append(types, r.Type)
	}
	assert.Equal(t, []string{"session_length", "focus_improvement"}, types, "no best hours with one sample per hour")
	assert.Empty(t, s.Insights.BestHours)
	assert.Nil(t, s.Insights.NextOptimalStart)
}

func TestNextOptimalStart(t *testing.T) {
	now := time.Date(2026, 3, 16, 21, 15, 0, 0, time.UTC)
	next := NextOptimalStart(now, []int{20, 9, 14})
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 3, 17, 20, 0, 0, 0, time.UTC), *next, "tomorrow at the top best hour")

	assert.Nil(t, NextOptimalStart(now, nil))

	morning := time.Date(2026, 3, 16, 8, 59, 0, 0, time.UTC)
	next = NextOptimalStart(morning, []int{20, 9, 14})
	assert.Equal(t, time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC), *next)
}

func TestDetailedReport(t *testing.T) {
	s := NewState(defaultWork)
	p, err := s.CreateProject(ProjectRequest{Name: "Thesis"}, "p1", base)
	require.NoError(t, err)

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	add := func(d, h, score int, project string, completed bool) {
		r := workRecord(fmt.Sprintf("%d-%d", d, h), day.AddDate(0, 0, d).Add(time.Duration(h)*time.Hour), score)
		r.ProjectID = project
		r.Completed = completed
		s.Sessions = append(s.Sessions, r)
	}
	add(0, 9, 50, "", true)
	add(1, 9, 50, p.ID, true)
	add(4, 15, 90, p.ID, true)
	add(5, 15, 90, p.ID, false)
	s.Sessions = append(s.Sessions, SessionRecord{ID: "brk", Type: event.SessionShortBreak, StartTime: day.AddDate(0, 0, 5), Completed: true})
	add(-20, 9, 10, "", true) // outside the week

	now := day.AddDate(0, 0, 6)
	report := s.DetailedReport(TimeframeWeek, now)

	assert.Equal(t, 4, report.Summary.TotalSessions)
	assert.Equal(t, 3, report.Summary.CompletedSessions)
	assert.Equal(t, 1, report.Summary.BreakSessions)
	assert.Equal(t, 75.0, report.Summary.CompletionRate)
	assert.Equal(t, 75.0, report.Summary.TotalFocusMinutes)
	assert.Equal(t, 70.0, report.Summary.AverageScore)

	require.Len(t, report.Hourly, 2)
	assert.Equal(t, 15, report.Hourly[0].Hour)
	assert.Equal(t, 90.0, report.Hourly[0].AverageScore)

	require.Len(t, report.Projects, 2)
	assert.Equal(t, "Thesis", report.Projects[0].Name)
	assert.Equal(t, 50.0, report.Projects[0].FocusMinutes)
	assert.Equal(t, "No project", report.Projects[1].Name)

	assert.Equal(t, TrendImproving, report.Trend.Direction)
	assert.Equal(t, 50.0, report.Trend.FirstHalfAverage)
	assert.Equal(t, 90.0, report.Trend.SecondHalfAverage)
	assert.Equal(t, 0.8, report.Trend.Strength)

	var kinds []string
	for _, in := range report.Insights {
		kinds = append(kinds, in.Type)
	}
	assert.Equal(t, []string{"peak_hours", "trend"}, kinds)
}

func TestDetailedReportEmpty(t *testing.T) {
	s := NewState(defaultWork)
	report := s.DetailedReport(TimeframeDay, base)
	assert.Equal(t, 0, report.Summary.TotalSessions)
	assert.Equal(t, TrendStable, report.Trend.Direction)
	assert.Empty(t, report.Insights)
	assert.NotNil(t, report.Hourly)
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("month")
	require.NoError(t, err)
	assert.Equal(t, TimeframeMonth, tf)
	assert.Equal(t, 7*24*time.Hour, tf.SlotSize())

	tf, err = ParseTimeframe("")
	require.NoError(t, err)
	assert.Equal(t, TimeframeWeek, tf)

	_, err = ParseTimeframe("year")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestMoodCorrelation(t *testing.T) {
	s := NewState(defaultWork)
	retention := 7 * 24 * time.Hour
	for i := 0; i < 6; i++ {
		start := base.Add(time.Duration(i) * 2 * time.Hour)
		score := 90
		label := "great"
		if i >= 3 {
			score, label = 50, "tired"
		}
		s.Sessions = append(s.Sessions, workRecord(fmt.Sprint(i), start, score))
		m, err := NewMoodEntry(label, 5-i/3*3, start.Add(-10*time.Minute))
		require.NoError(t, err)
		s.AddMood(m, start, retention)
	}

	stats := s.MoodCorrelation()
	require.NotNil(t, stats)
	require.Len(t, stats, 2)
	assert.Equal(t, MoodStats{Sessions: 3, AverageScore: 90, AverageEnergy: 5}, stats[MoodGreat])
	assert.Equal(t, MoodStats{Sessions: 3, AverageScore: 50, AverageEnergy: 2}, stats[MoodTired])
}

func TestMoodCorrelationInsufficientData(t *testing.T) {
	s := NewState(defaultWork)
	for i := 0; i < 4; i++ {
		s.Sessions = append(s.Sessions, workRecord(fmt.Sprint(i), base.Add(time.Duration(i)*time.Hour), 80))
	}
	assert.Nil(t, s.MoodCorrelation())
}

func TestMoodCorrelationNeedsTwoMatches(t *testing.T) {
	s := NewState(defaultWork)
	for i := 0; i < 5; i++ {
		start := base.Add(time.Duration(i) * 2 * time.Hour)
		s.Sessions = append(s.Sessions, workRecord(fmt.Sprint(i), start, 80))
		label := "okay"
		if i == 0 {
			label = "stressed"
		}
		// more than 30 minutes away for the last session
		at := start.Add(5 * time.Minute)
		if i == 4 {
			at = start.Add(45 * time.Minute)
		}
		m, err := NewMoodEntry(label, 3, at)
		require.NoError(t, err)
		s.Moods = append(s.Moods, m)
	}
	stats := s.MoodCorrelation()
	require.NotNil(t, stats)
	assert.NotContains(t, stats, MoodStressed, "a single match is not enough")
	assert.Equal(t, 3, stats[MoodOkay].Sessions)
}

func TestNewMoodEntryValidation(t *testing.T) {
	_, err := NewMoodEntry("ecstatic", 3, base)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = NewMoodEntry("good", 0, base)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = NewMoodEntry("good", 6, base)
	assert.ErrorIs(t, err, ErrInvalidInput)

	m, err := NewMoodEntry(" Good ", 4, base)
	require.NoError(t, err)
	assert.Equal(t, MoodGood, m.Mood)
	assert.Equal(t, 12, m.Hour)
}

func TestAddMoodPrunes(t *testing.T) {
	s := NewState(defaultWork)
	old, _ := NewMoodEntry("good", 3, base.AddDate(0, 0, -8))
	s.Moods = append(s.Moods, old)
	fresh, _ := NewMoodEntry("okay", 3, base)
	s.AddMood(fresh, base, 7*24*time.Hour)
	require.Len(t, s.Moods, 1)
	assert.Equal(t, MoodOkay, s.Moods[0].Mood)
}

func TestCreateProject(t *testing.T) {
	s := NewState(defaultWork)
	p, err := s.CreateProject(ProjectRequest{Name: "  Reading ", Description: "books"}, "id-1", base)
	require.NoError(t, err)
	assert.Equal(t, "Reading", p.Name)
	assert.Equal(t, DefaultProjectColor, p.Color)

	_, err = s.CreateProject(ProjectRequest{Name: " "}, "id-2", base)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.CreateProject(ProjectRequest{Name: "x", Color: "green"}, "id-3", base)
	assert.ErrorIs(t, err, ErrInvalidInput)

	s.CreditProject("id-1", 25*time.Minute)
	got, ok := s.Project("id-1")
	require.True(t, ok)
	assert.Equal(t, 1, got.CompletedSessions)
	assert.Equal(t, 1500.0, got.TotalTimeSeconds)
}

func TestNormalizeRepairsPartialSnapshot(t *testing.T) {
	var s State
	require.NoError(t, json.Unmarshal([]byte(`{"patterns":{"hourlyPerformance":[1,2,3],"focusScore":70}}`), &s))
	s.Normalize(defaultWork)

	assert.Len(t, s.Patterns.HourlyPerformance, 24)
	assert.Len(t, s.Patterns.DailyPerformance, 7)
	assert.Equal(t, 1500.0, s.Patterns.OptimalSessionLengthSeconds)
	assert.Equal(t, 70, s.Patterns.FocusScore)
	assert.NotNil(t, s.Sessions)
	assert.NotNil(t, s.Insights.BestHours)
}

func TestPersonalInsights(t *testing.T) {
	s := NewState(defaultWork)
	out := s.PersonalInsights(base, 0)
	assert.Contains(t, out.Summary, "Complete a focus session")

	s.Sessions = append(s.Sessions, workRecord("a", base.Add(-time.Hour), 85))
	s.Patterns.FocusScore = 85
	s.Insights.BestHours = []int{23}
	out = s.PersonalInsights(base, 5400)
	assert.Equal(t, 85, out.Score)
	assert.Equal(t, 1.5, out.TotalHours)
	assert.Equal(t, "23:00-00:00", out.BestTime)
	assert.Equal(t, TrendStable, out.Trend)
	assert.Contains(t, out.Summary, "Excellent")
}
