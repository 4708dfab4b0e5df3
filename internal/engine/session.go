package engine

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"focusforest/internal/analytics"
	"focusforest/internal/event"
	"focusforest/internal/forest"
)

// DistractionResult describes what a reported visit did to the current tree.
type DistractionResult struct {
	Matched bool   `json:"matched"`
	Site    string `json:"site,omitempty"`
	Health  int    `json:"health"`
	Died    bool   `json:"died"`
}

// Start begins the current session type. Work sessions plant a tree and
// turn on site blocking. projectID may be empty.
func (e *Engine) Start(ctx context.Context, projectID string) error {
	now, err := e.begin(ctx)
	defer e.mu.Unlock()
	if err != nil {
		return err
	}

	s := &e.session
	if s.IsActive {
		return ErrSessionActive
	}
	projectID = strings.TrimSpace(projectID)
	if projectID != "" {
		if _, ok := e.analytics.Project(projectID); !ok {
			return fmt.Errorf("%w: unknown project %q", ErrInvalidInput, projectID)
		}
	}

	start := now
	s.IsActive = true
	s.StartTime = &start
	s.RunID = e.newID(now)
	s.CurrentProjectID = projectID
	if s.Type == event.SessionWork {
		s.CurrentTree = forest.NewTree(e.newID(now), now, projectID)
	}
	planned := time.Duration(s.DurationSeconds) * time.Second

	e.scheduler.Schedule(s.RunID, planned)
	if s.Type == event.SessionWork {
		e.enableBlocking(ctx)
	}
	e.record(ctx, event.Event{
		Timestamp: now,
		Type:      event.EventTypeSessionStart,
		Value:     planned.Seconds(),
		Tag:       string(s.Type),
		Notes:     projectID,
	})
	log.Printf("%s session started (%s)", s.Type.Label(), planned)

	err = e.persist(ctx)
	if s.Type == event.SessionWork {
		e.notify("Focus Forest", "Focus session started. A new seed is planted! 🌱")
	} else {
		e.notify("Focus Forest", fmt.Sprintf("%s started. Step away for a bit! 🌱", s.Type.Label()))
	}
	return err
}

// End stops the active session. completed=false abandons it: nothing is
// credited and the session type stays the same. It reports whether a
// session was running; ending an idle engine is a no-op.
func (e *Engine) End(ctx context.Context, completed bool) (bool, error) {
	now, err := e.begin(ctx)
	defer e.mu.Unlock()
	if err != nil {
		return false, err
	}
	return e.endLocked(ctx, now, completed)
}

// Expire is the wake-up handler. Wake-ups for a run that already ended are
// ignored.
func (e *Engine) Expire(ctx context.Context, runID string) (bool, error) {
	now, err := e.begin(ctx)
	defer e.mu.Unlock()
	if err != nil {
		return false, err
	}
	if !e.session.IsActive || e.session.RunID != runID {
		log.Printf("Ignoring stale wake-up %s", runID)
		return false, nil
	}
	return e.endLocked(ctx, now, true)
}

func (e *Engine) endLocked(ctx context.Context, now time.Time, completed bool) (bool, error) {
	s := &e.session
	if !s.IsActive || s.StartTime == nil {
		return false, nil
	}

	start := *s.StartTime
	planned := time.Duration(s.DurationSeconds) * time.Second
	duration := min(max(now.Sub(start), 0), planned)
	health := forest.FullHealth
	if s.CurrentTree != nil {
		health = s.CurrentTree.Health
	}
	ended := s.Type

	rec := analytics.NewRecord(analytics.RecordInput{
		ID:             e.newID(now),
		Type:           s.Type,
		Start:          start,
		End:            start.Add(duration),
		Planned:        planned,
		Completed:      completed,
		ProjectID:      s.CurrentProjectID,
		TreeHealth:     health,
		DamagePerEvent: e.settings.DistractionDamage,
	})
	e.analytics.Append(rec, now, e.settings.HistoryRetention)

	switch {
	case completed && s.Type == event.SessionWork:
		s.CompletedPomodoros++
		tree := s.CurrentTree
		if tree == nil {
			tree = forest.NewTree(e.newID(now), start, s.CurrentProjectID)
		}
		finished := *tree
		finished.Stage = forest.GrowthStage(duration, e.settings.StageInterval)
		grown := e.forest.AddTree(finished, now, duration)
		e.analytics.CreditProject(s.CurrentProjectID, duration)
		e.analytics.UpdatePersonalPatterns(rec)
		log.Printf("Tree %s grew to %s in %s", grown.ID, grown.StageName(), duration.Truncate(time.Second))

		interval := max(1, e.settings.LongBreakInterval)
		if s.CompletedPomodoros%interval == 0 {
			s.Type = event.SessionLongBreak
		} else {
			s.Type = event.SessionShortBreak
		}
		s.DurationSeconds = int(e.plannedFor(s.Type).Seconds())
	case completed:
		s.Type = event.SessionWork
		s.DurationSeconds = e.nextWorkSeconds()
	}

	runID := s.RunID
	s.IsActive = false
	s.StartTime = nil
	s.CurrentTree = nil
	s.CurrentProjectID = ""
	s.RunID = ""

	e.scheduler.Cancel(runID)
	e.disableBlocking(ctx)

	outcome := "abandoned"
	if completed {
		outcome = "completed"
	}
	e.record(ctx, event.Event{
		Timestamp: now,
		Type:      event.EventTypeSessionEnd,
		Value:     duration.Seconds(),
		Tag:       string(ended),
		Notes:     fmt.Sprintf("%s, score %d", outcome, rec.FocusScore),
	})
	log.Printf("%s session %s after %s (score %d)", ended.Label(), outcome, duration.Truncate(time.Second), rec.FocusScore)

	err := e.persist(ctx)
	if completed {
		if s.Type == event.SessionWork {
			e.notify("Session complete!", "Start the next focus session! 🌱")
		} else {
			e.notify("Session complete!", "Time for a break! 🌳")
		}
	}
	return true, err
}

// Distraction reports a visit to target, a URL, host name or window title.
// During a work session a visit that matches the blocklist damages the tree
// and kills it once health reaches zero.
func (e *Engine) Distraction(ctx context.Context, target string) (DistractionResult, error) {
	now, err := e.begin(ctx)
	defer e.mu.Unlock()
	if err != nil {
		return DistractionResult{}, err
	}

	s := &e.session
	if !s.IsActive || s.Type != event.SessionWork || s.CurrentTree == nil {
		return DistractionResult{}, nil
	}
	site, ok := matchSite(e.settings.DistractionSites, target)
	if !ok {
		return DistractionResult{}, nil
	}

	died := s.CurrentTree.Damage(e.settings.DistractionDamage)
	res := DistractionResult{Matched: true, Site: site, Health: s.CurrentTree.Health, Died: died}
	e.record(ctx, event.Event{
		Timestamp: now,
		Type:      event.EventTypeDistraction,
		Value:     float64(res.Health),
		Tag:       site,
		Notes:     target,
	})
	log.Printf("Distraction on %s, tree health %d", site, res.Health)

	if died {
		_, err = e.endLocked(ctx, now, false)
		e.notify("Your tree withered... 💀", "You visited a distracting site. Start a new session.")
		return res, err
	}
	err = e.persist(ctx)
	e.notify("Your tree took damage!", fmt.Sprintf("Tree health: %d%%", res.Health))
	return res, err
}

// MatchDistraction reports which blocklist entry, if any, target matches.
func (e *Engine) MatchDistraction(target string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return matchSite(e.settings.DistractionSites, target)
}

// matchSite checks target against the blocklist. URLs and bare host names
// match when their host contains a site. Anything else is treated as a
// window title and matches on the site or its first label ("youtube" for
// youtube.com).
func matchSite(sites []string, target string) (string, bool) {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return "", false
	}
	host := hostOf(target)
	for _, raw := range sites {
		site := strings.ToLower(strings.TrimSpace(raw))
		if site == "" {
			continue
		}
		if host != "" {
			if strings.Contains(host, site) {
				return site, true
			}
			continue
		}
		if strings.Contains(target, site) {
			return site, true
		}
		if label, _, _ := strings.Cut(site, "."); len(label) >= 4 && strings.Contains(target, label) {
			return site, true
		}
	}
	return "", false
}

func hostOf(target string) string {
	if strings.ContainsAny(target, " \t") {
		return ""
	}
	raw := target
	if !strings.Contains(raw, "://") {
		if !strings.Contains(raw, ".") {
			return ""
		}
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
