// Package engine owns the timer, forest and analytics state and serializes
// every operation on it behind one mutex.
package engine

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"slices"
	"sync"
	"time"

	"focusforest/internal/analytics"
	"focusforest/internal/config"
	"focusforest/internal/event"
	"focusforest/internal/forest"
	"focusforest/internal/storage"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrSessionActive is returned by Start while a session is running.
	ErrSessionActive = errors.New("a session is already active")
	// ErrInvalidInput is the validation sentinel shared with the analytics package.
	ErrInvalidInput = analytics.ErrInvalidInput
)

// SnapshotStore persists the whole-object state blobs.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, key string) ([]byte, bool, error)
	SaveSnapshot(ctx context.Context, key string, data []byte) error
}

// Scheduler delivers a single delayed wake-up per id. Cancel must tolerate
// ids that already fired or were never scheduled.
type Scheduler interface {
	Schedule(id string, after time.Duration)
	Cancel(id string)
}

// BlockingRuleManager redirects the listed domains while enabled.
type BlockingRuleManager interface {
	Enable(ctx context.Context, domains []string) error
	Disable(ctx context.Context) error
	Blocked() ([]string, error)
}

type Notifier interface {
	Notify(n event.Notification)
}

// Journal records audit events. Failures are logged, never returned.
type Journal interface {
	SaveEvent(ctx context.Context, e event.Event) (int64, error)
}

// Settings are the tunables the engine reads on every operation.
type Settings struct {
	WorkDuration       time.Duration
	ShortBreakDuration time.Duration
	LongBreakDuration  time.Duration
	LongBreakInterval  int
	StageInterval      time.Duration
	DistractionDamage  int
	BlockingEnabled    bool
	DistractionSites   []string
	Notifications      bool
	Sound              bool
	HistoryRetention   time.Duration
	MoodRetention      time.Duration
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		WorkDuration:       25 * time.Minute,
		ShortBreakDuration: 5 * time.Minute,
		LongBreakDuration:  15 * time.Minute,
		LongBreakInterval:  4,
		StageInterval:      5 * time.Minute,
		DistractionDamage:  20,
		BlockingEnabled:    true,
		DistractionSites:   slices.Clone(config.DefaultDistractionSites),
		Notifications:      true,
		Sound:              true,
		HistoryRetention:   30 * 24 * time.Hour,
		MoodRetention:      7 * 24 * time.Hour,
	}
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		WorkDuration:       cfg.Pomodoro.FocusDuration(),
		ShortBreakDuration: cfg.Pomodoro.ShortBreakDuration(),
		LongBreakDuration:  cfg.Pomodoro.LongBreakDuration(),
		LongBreakInterval:  cfg.Pomodoro.LongBreakInterval,
		StageInterval:      cfg.Forest.StageInterval(),
		DistractionDamage:  cfg.Forest.DistractionDamage,
		BlockingEnabled:    cfg.Blocking.Enabled,
		DistractionSites:   slices.Clone(cfg.Blocking.DistractionSites),
		Notifications:      cfg.Notifications.Enabled,
		Sound:              cfg.Notifications.Sound,
		HistoryRetention:   cfg.Analytics.HistoryRetention(),
		MoodRetention:      cfg.Analytics.MoodRetention(),
	}
}

type Deps struct {
	Store     SnapshotStore
	Scheduler Scheduler
	Blocker   BlockingRuleManager
	Notifier  Notifier
	Journal   Journal
	Clock     func() time.Time
	Rand      *rand.Rand
}

type Engine struct {
	mu       sync.Mutex
	settings Settings

	store     SnapshotStore
	scheduler Scheduler
	blocker   BlockingRuleManager
	notifier  Notifier
	journal   Journal
	clock     func() time.Time
	rng       *rand.Rand
	entropy   io.Reader

	session   forest.Session
	forest    forest.Forest
	analytics analytics.State
	blocking  bool
}

// New builds an engine with default state. Call Load to restore the
// persisted snapshots before serving requests.
func New(settings Settings, deps Deps) *Engine {
	e := &Engine{
		settings:  settings,
		store:     deps.Store,
		scheduler: deps.Scheduler,
		blocker:   deps.Blocker,
		notifier:  deps.Notifier,
		journal:   deps.Journal,
		clock:     deps.Clock,
		rng:       deps.Rand,
		entropy:   ulid.Monotonic(crand.Reader, 0),
	}
	if e.store == nil {
		e.store = nopStore{}
	}
	if e.scheduler == nil {
		e.scheduler = nopScheduler{}
	}
	if e.blocker == nil {
		e.blocker = nopBlocker{}
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e.session = forest.DefaultSession(settings.WorkDuration)
	e.forest = forest.DefaultForest()
	e.analytics = analytics.NewState(settings.WorkDuration)
	return e
}

// Load restores the three snapshots over the defaults, resumes a session
// that was running when the daemon stopped, and applies the date rollover.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	session := forest.DefaultSession(e.settings.WorkDuration)
	ledger := forest.DefaultForest()
	state := analytics.NewState(e.settings.WorkDuration)
	targets := []struct {
		key    string
		target any
		reset  func()
	}{
		{storage.KeySession, &session, func() { session = forest.DefaultSession(e.settings.WorkDuration) }},
		{storage.KeyForest, &ledger, func() { ledger = forest.DefaultForest() }},
		{storage.KeyAnalytics, &state, func() { state = analytics.NewState(e.settings.WorkDuration) }},
	}
	for _, t := range targets {
		data, found, err := e.store.LoadSnapshot(ctx, t.key)
		if err != nil {
			return fmt.Errorf("loading %s snapshot: %w", t.key, err)
		}
		if !found {
			continue
		}
		if err := json.Unmarshal(data, t.target); err != nil {
			log.Printf("Warning: discarding unreadable %s snapshot: %v", t.key, err)
			t.reset()
		}
	}

	now := e.clock()
	e.session = session
	e.forest = ledger
	e.analytics = state
	e.normalize(now)

	if err := e.rollover(ctx, now); err != nil {
		return err
	}
	if !e.session.IsActive {
		return nil
	}
	remaining := e.session.Remaining(now)
	if remaining <= 0 {
		// Ran out while the daemon was down: credit the planned length only.
		log.Printf("%s session finished while stopped, completing it", e.session.Type.Label())
		_, err := e.endLocked(ctx, now, true)
		return err
	}
	log.Printf("Resuming %s session, %s left", e.session.Type.Label(), remaining)
	e.scheduler.Schedule(e.session.RunID, remaining)
	if e.session.Type == event.SessionWork {
		e.enableBlocking(ctx)
	}
	return nil
}

// normalize repairs state that violates the session invariants, which can
// only come from an old or hand-edited snapshot.
func (e *Engine) normalize(now time.Time) {
	if e.forest.Trees == nil {
		e.forest.Trees = []forest.CompletedTree{}
	}
	e.analytics.Normalize(e.settings.WorkDuration)

	s := &e.session
	switch s.Type {
	case event.SessionWork, event.SessionShortBreak, event.SessionLongBreak:
	default:
		s.Type = event.SessionWork
	}
	if s.DurationSeconds <= 0 {
		s.DurationSeconds = int(e.plannedFor(s.Type).Seconds())
	}
	if s.IsActive && s.StartTime == nil {
		s.IsActive = false
	}
	if !s.IsActive {
		s.StartTime = nil
		s.CurrentTree = nil
		s.CurrentProjectID = ""
		s.RunID = ""
		return
	}
	if s.RunID == "" {
		s.RunID = e.newID(now)
	}
	if s.Type != event.SessionWork {
		s.CurrentTree = nil
	} else if s.CurrentTree == nil {
		s.CurrentTree = forest.NewTree(e.newID(now), *s.StartTime, s.CurrentProjectID)
	}
}

// rollover starts a new day if the date changed since the last operation.
// A new day reruns the daily analysis and persists the result.
func (e *Engine) rollover(ctx context.Context, now time.Time) error {
	if !e.forest.Rollover(now) {
		return nil
	}
	if e.analytics.PerformDailyAnalysis(now, e.settings.WorkDuration) {
		log.Printf("Daily analysis done: best hours %v", e.analytics.Insights.BestHours)
	}
	return e.persist(ctx)
}

// begin locks the engine and applies the date rollover. The caller must
// unlock e.mu.
func (e *Engine) begin(ctx context.Context) (time.Time, error) {
	e.mu.Lock()
	now := e.clock()
	return now, e.rollover(ctx, now)
}

func (e *Engine) persist(ctx context.Context) error {
	blobs := []struct {
		key   string
		value any
	}{
		{storage.KeySession, e.session},
		{storage.KeyForest, e.forest},
		{storage.KeyAnalytics, e.analytics},
	}
	for _, b := range blobs {
		data, err := json.Marshal(b.value)
		if err != nil {
			return fmt.Errorf("encoding %s snapshot: %w", b.key, err)
		}
		if err := e.store.SaveSnapshot(ctx, b.key, data); err != nil {
			return fmt.Errorf("saving %s snapshot: %w", b.key, err)
		}
	}
	return nil
}

func (e *Engine) newID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), e.entropy).String()
}

func (e *Engine) plannedFor(t event.SessionType) time.Duration {
	switch t {
	case event.SessionShortBreak:
		return e.settings.ShortBreakDuration
	case event.SessionLongBreak:
		return e.settings.LongBreakDuration
	default:
		return e.settings.WorkDuration
	}
}

// nextWorkSeconds is the learned session length when known, else the
// configured default.
func (e *Engine) nextWorkSeconds() int {
	if learned := e.analytics.Patterns.OptimalSessionLengthSeconds; learned > 0 {
		return int(learned + 0.5)
	}
	return int(e.settings.WorkDuration.Seconds())
}

func (e *Engine) notify(title, message string) {
	if !e.settings.Notifications {
		return
	}
	e.notifier.Notify(event.Notification{Title: title, Message: message, Sound: e.settings.Sound})
}

func (e *Engine) record(ctx context.Context, ev event.Event) {
	if e.journal == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.clock()
	}
	if _, err := e.journal.SaveEvent(ctx, ev); err != nil {
		log.Printf("Warning: failed to journal %s event: %v", ev.Type, err)
	}
}

func (e *Engine) enableBlocking(ctx context.Context) {
	if !e.settings.BlockingEnabled || len(e.settings.DistractionSites) == 0 {
		e.disableBlocking(ctx)
		return
	}
	if err := e.blocker.Enable(ctx, e.settings.DistractionSites); err != nil {
		log.Printf("Warning: failed to enable site blocking: %v", err)
		return
	}
	e.blocking = true
}

func (e *Engine) disableBlocking(ctx context.Context) {
	if err := e.blocker.Disable(ctx); err != nil {
		log.Printf("Warning: failed to disable site blocking: %v", err)
		return
	}
	e.blocking = false
}

// Settings returns a copy of the current settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.settings
	s.DistractionSites = slices.Clone(s.DistractionSites)
	return s
}

// UpdateSettings swaps in new settings. A running work session picks up
// the new blocklist immediately.
func (e *Engine) UpdateSettings(ctx context.Context, s Settings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s.DistractionSites = slices.Clone(s.DistractionSites)
	e.settings = s
	if e.session.IsActive && e.session.Type == event.SessionWork {
		e.enableBlocking(ctx)
	}
}

type nopStore struct{}

func (nopStore) LoadSnapshot(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (nopStore) SaveSnapshot(context.Context, string, []byte) error         { return nil }

type nopScheduler struct{}

func (nopScheduler) Schedule(string, time.Duration) {}
func (nopScheduler) Cancel(string)                  {}

type nopBlocker struct{}

func (nopBlocker) Enable(context.Context, []string) error { return nil }
func (nopBlocker) Disable(context.Context) error          { return nil }
func (nopBlocker) Blocked() ([]string, error)             { return nil, nil }

type nopNotifier struct{}

func (nopNotifier) Notify(event.Notification) {}
