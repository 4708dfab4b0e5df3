package analytics

import (
	"math"
	"slices"
	"time"
)

// Patterns are the online-learned performance figures.
type Patterns struct {
	HourlyPerformance           []float64 `json:"hourlyPerformance"`
	DailyPerformance            []float64 `json:"dailyPerformance"`
	OptimalSessionLengthSeconds float64   `json:"optimalSessionLength"`
	FocusScore                  int       `json:"focusScore"`
	LastAnalysisDate            string    `json:"lastAnalysisDate,omitempty"`
}

type Recommendation struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Action   string `json:"action"`
	Priority string `json:"priority"`
}

// Insights are recomputed by the daily analysis.
type Insights struct {
	BestHours        []int            `json:"bestHours"`
	WorstHours       []int            `json:"worstHours"`
	Recommendations  []Recommendation `json:"recommendations"`
	NextOptimalStart *time.Time       `json:"nextOptimalStart"`
}

// State is the analytics snapshot persisted as one blob.
type State struct {
	Sessions []SessionRecord `json:"sessions"`
	Patterns Patterns        `json:"patterns"`
	Insights Insights        `json:"insights"`
	Projects []Project       `json:"projects"`
	Moods    []MoodEntry     `json:"moods"`
}

// NewState returns empty analytics with the session length EMA seeded at
// the default work duration.
func NewState(defaultWork time.Duration) State {
	s := State{}
	s.Normalize(defaultWork)
	return s
}

// Normalize repairs a snapshot decoded from an older or partial blob:
// fixed-size arrays are re-initialized when absent or mis-sized, nil slices
// become empty, and a missing session length seed is restored.
func (s *State) Normalize(defaultWork time.Duration) {
	if len(s.Patterns.HourlyPerformance) != 24 {
		s.Patterns.HourlyPerformance = make([]float64, 24)
	}
	if len(s.Patterns.DailyPerformance) != 7 {
		s.Patterns.DailyPerformance = make([]float64, 7)
	}
	if s.Patterns.OptimalSessionLengthSeconds <= 0 {
		s.Patterns.OptimalSessionLengthSeconds = defaultWork.Seconds()
	}
	if s.Sessions == nil {
		s.Sessions = []SessionRecord{}
	}
	if s.Projects == nil {
		s.Projects = []Project{}
	}
	if s.Moods == nil {
		s.Moods = []MoodEntry{}
	}
	if s.Insights.BestHours == nil {
		s.Insights.BestHours = []int{}
	}
	if s.Insights.WorstHours == nil {
		s.Insights.WorstHours = []int{}
	}
	if s.Insights.Recommendations == nil {
		s.Insights.Recommendations = []Recommendation{}
	}
}

// Append adds rec to the history and drops every record that started
// before now-retention.
func (s *State) Append(rec SessionRecord, now time.Time, retention time.Duration) {
	s.Sessions = append(s.Sessions, rec)
	cutoff := now.Add(-retention)
	kept := s.Sessions[:0]
	for _, r := range s.Sessions {
		if r.StartTime.Before(cutoff) {
			continue
		}
		kept = append(kept, r)
	}
	s.Sessions = kept
}

// CompletedWork returns the retained completed work records in history order.
func (s *State) CompletedWork() []SessionRecord {
	var out []SessionRecord
	for _, r := range s.Sessions {
		if r.IsCompletedWork() {
			out = append(out, r)
		}
	}
	return out
}

// UpdatePersonalPatterns folds a completed work record into the learned
// patterns. The record must already be in the history so the aggregate
// focus score includes it.
func (s *State) UpdatePersonalPatterns(rec SessionRecord) {
	p := &s.Patterns
	if rec.Hour >= 0 && rec.Hour < len(p.HourlyPerformance) {
		p.HourlyPerformance[rec.Hour] = ema(p.HourlyPerformance[rec.Hour], float64(rec.FocusScore), PerformanceAlpha)
	}
	if rec.DayOfWeek >= 0 && rec.DayOfWeek < len(p.DailyPerformance) {
		p.DailyPerformance[rec.DayOfWeek] = ema(p.DailyPerformance[rec.DayOfWeek], float64(rec.FocusScore), PerformanceAlpha)
	}
	if rec.FocusScore > OptimalLengthMinScore {
		p.OptimalSessionLengthSeconds = ema(p.OptimalSessionLengthSeconds, rec.DurationSeconds, OptimalLengthAlpha)
	}
	p.FocusScore = s.aggregateFocusScore()
}

func (s *State) aggregateFocusScore() int {
	work := s.CompletedWork()
	if len(work) == 0 {
		return 0
	}
	total := 0
	for _, r := range work {
		total += r.FocusScore
	}
	return int(math.Round(float64(total) / float64(len(work))))
}

// Clone returns a deep copy safe to hand out of the engine's lock.
func (s State) Clone() State {
	c := s
	c.Sessions = slices.Clone(s.Sessions)
	c.Projects = slices.Clone(s.Projects)
	c.Moods = slices.Clone(s.Moods)
	c.Patterns.HourlyPerformance = slices.Clone(s.Patterns.HourlyPerformance)
	c.Patterns.DailyPerformance = slices.Clone(s.Patterns.DailyPerformance)
	c.Insights.BestHours = slices.Clone(s.Insights.BestHours)
	c.Insights.WorstHours = slices.Clone(s.Insights.WorstHours)
	c.Insights.Recommendations = slices.Clone(s.Insights.Recommendations)
	if s.Insights.NextOptimalStart != nil {
		next := *s.Insights.NextOptimalStart
		c.Insights.NextOptimalStart = &next
	}
	return c
}
