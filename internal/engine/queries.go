package engine

import (
	"context"
	"fmt"
	"log"
	"slices"
	"time"

	"focusforest/internal/analytics"
	"focusforest/internal/event"
	"focusforest/internal/forest"
	"focusforest/internal/recommend"

	"github.com/google/uuid"
)

// StateView is the full snapshot handed to clients, plus a few derived
// figures for display.
type StateView struct {
	Session          forest.Session  `json:"session"`
	Forest           forest.Forest   `json:"forest"`
	Analytics        analytics.State `json:"analytics"`
	RemainingSeconds int             `json:"remainingSeconds"`
	Badge            string          `json:"badge"`
	Efficiency       int             `json:"efficiency"`
	GrowthStage      string          `json:"growthStage,omitempty"`
	Blocking         bool            `json:"blocking"`
	BlockedHosts     []string        `json:"blockedHosts,omitempty"`
}

func (e *Engine) State(ctx context.Context) (StateView, error) {
	now, err := e.begin(ctx)
	defer e.mu.Unlock()

	session := e.session
	if session.StartTime != nil {
		start := *session.StartTime
		session.StartTime = &start
	}
	view := StateView{
		Session:          session,
		Forest:           e.forest,
		Analytics:        e.analytics.Clone(),
		RemainingSeconds: int(e.session.Remaining(now).Seconds()),
		Badge:            e.session.BadgeText(now),
		Efficiency:       e.forest.Efficiency(),
		Blocking:         e.blocking,
	}
	if e.blocking {
		hosts, berr := e.blocker.Blocked()
		if berr != nil {
			log.Printf("Warning: could not read blocked hosts: %v", berr)
		}
		view.BlockedHosts = hosts
	}
	view.Forest.Trees = slices.Clone(e.forest.Trees)
	if tree := session.CurrentTree; tree != nil {
		live := *tree
		live.Stage = forest.GrowthStage(e.session.Elapsed(now), e.settings.StageInterval)
		view.Session.CurrentTree = &live
		view.GrowthStage = forest.StageNames[live.Stage]
	}
	return view, err
}

// OptimalStartTime is the next upcoming best hour, or nil until the daily
// analysis has found one.
func (e *Engine) OptimalStartTime(ctx context.Context) (*time.Time, error) {
	now, err := e.begin(ctx)
	defer e.mu.Unlock()
	return analytics.NextOptimalStart(now, e.analytics.Insights.BestHours), err
}

func (e *Engine) PersonalInsights(ctx context.Context) (analytics.PersonalInsights, error) {
	now, err := e.begin(ctx)
	defer e.mu.Unlock()
	return e.analytics.PersonalInsights(now, e.forest.TotalFocusTimeSeconds), err
}

// RefreshInsights runs the daily analysis on demand. It reports false when
// there is not enough history yet.
func (e *Engine) RefreshInsights(ctx context.Context) (bool, error) {
	now, err := e.begin(ctx)
	defer e.mu.Unlock()
	if err != nil {
		return false, err
	}
	if !e.analytics.PerformDailyAnalysis(now, e.settings.WorkDuration) {
		return false, nil
	}
	return true, e.persist(ctx)
}

func (e *Engine) SetMood(ctx context.Context, mood string, energy int) (analytics.MoodEntry, error) {
	now, err := e.begin(ctx)
	defer e.mu.Unlock()
	if err != nil {
		return analytics.MoodEntry{}, err
	}
	entry, err := analytics.NewMoodEntry(mood, energy, now)
	if err != nil {
		return analytics.MoodEntry{}, err
	}
	e.analytics.AddMood(entry, now, e.settings.MoodRetention)
	e.record(ctx, event.Event{
		Timestamp: now,
		Type:      event.EventTypeMood,
		Value:     float64(entry.Energy),
		Tag:       string(entry.Mood),
	})
	return entry, e.persist(ctx)
}

func (e *Engine) CreateProject(ctx context.Context, req analytics.ProjectRequest) (analytics.Project, error) {
	now, err := e.begin(ctx)
	defer e.mu.Unlock()
	if err != nil {
		return analytics.Project{}, err
	}
	p, err := e.analytics.CreateProject(req, uuid.NewString(), now)
	if err != nil {
		return analytics.Project{}, err
	}
	return p, e.persist(ctx)
}

func (e *Engine) ForestTheme(ctx context.Context) (recommend.Theme, error) {
	now, err := e.begin(ctx)
	defer e.mu.Unlock()
	return recommend.ForestTheme(now, len(e.forest.Trees), e.rng), err
}

// MoodAnalysis returns nil when there is not enough mood or session data.
func (e *Engine) MoodAnalysis(ctx context.Context) (map[analytics.Mood]analytics.MoodStats, error) {
	_, err := e.begin(ctx)
	defer e.mu.Unlock()
	return e.analytics.MoodCorrelation(), err
}

func (e *Engine) DetailedReport(ctx context.Context, timeframe string) (analytics.Report, error) {
	tf, err := analytics.ParseTimeframe(timeframe)
	if err != nil {
		return analytics.Report{}, err
	}
	now, err := e.begin(ctx)
	defer e.mu.Unlock()
	return e.analytics.DetailedReport(tf, now), err
}

func (e *Engine) PersonalizedGoals(ctx context.Context) ([]recommend.Goal, error) {
	now, err := e.begin(ctx)
	defer e.mu.Unlock()
	return recommend.PersonalizedGoals(recommend.GoalInput{
		Records:    e.analytics.Sessions,
		FocusScore: e.analytics.Patterns.FocusScore,
		StreakDays: e.forest.StreakDays,
		BestHours:  e.analytics.Insights.BestHours,
		Now:        now,
	}), err
}

func (e *Engine) BreakSuggestion(ctx context.Context) (recommend.BreakSuggestion, error) {
	now, err := e.begin(ctx)
	defer e.mu.Unlock()
	return recommend.BreakSuggestions(e.analytics.Sessions, now, e.rng), err
}

// Project looks up a project by id or exact name.
func (e *Engine) Project(id string) (analytics.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.analytics.Project(id); ok {
		return p, nil
	}
	for _, p := range e.analytics.Projects {
		if p.Name == id {
			return p, nil
		}
	}
	return analytics.Project{}, fmt.Errorf("%w: unknown project %q", ErrInvalidInput, id)
}

// Running reports the type of the active session, if any, without
// touching the day rollover.
func (e *Engine) Running() (event.SessionType, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Type, e.session.IsActive
}
