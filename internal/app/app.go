package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"focusforest/internal/alarm"
	"focusforest/internal/analytics"
	"focusforest/internal/blocker"
	"focusforest/internal/collector"
	"focusforest/internal/collector/x11"
	"focusforest/internal/config"
	"focusforest/internal/engine"
	"focusforest/internal/event"
	"focusforest/internal/ipc"
	"focusforest/internal/storage"

	sqlitestore "focusforest/internal/storage/sqlite"

	"github.com/sourcegraph/conc"
)

type App struct {
	cfg      *config.Config
	storage  storage.Storage
	engine   *engine.Engine
	observer *collector.Poller
	alarms   *alarm.Manager
	blocker  *blocker.HostsBlocker
	// --- Socket Handling ---
	socketPath string
	listener   *net.UnixListener

	// Communication channels
	eventChan  chan event.Event // focus changes from the observer
	updateChan chan interface{} // fired alarms and notifications

	wg     conc.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	lastFocus *event.Event
}

// chanNotifier hands notifications to the main loop. It never blocks: the
// engine calls it while holding its lock.
type chanNotifier chan<- interface{}

func (c chanNotifier) Notify(n event.Notification) {
	select {
	case c <- n:
	default:
		log.Printf("Warning: notification dropped, update queue full: %s", n.Title)
	}
}

func NewApp(cfg *config.Config) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	socketPath := cfg.SocketPath
	if socketPath == "" {
		socketPath = ipc.DefaultSocketPath
	}
	a := &App{
		cfg:        cfg,
		eventChan:  make(chan event.Event, 100),
		updateChan: make(chan interface{}, 50),
		socketPath: socketPath,
		ctx:        ctx,
		cancel:     cancel,
	}

	// Initialize Storage
	store := sqlitestore.NewSQLiteStore(cfg.DatabasePath)
	if err := store.Init(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.storage = store

	// Initialize X11 focus observer
	if cfg.WatchWindows {
		observer, err := x11.NewObserver()
		if err != nil {
			log.Printf("Warning: Failed to initialize X11 observer: %v. Distraction tracking by window title disabled.", err)
		} else {
			a.observer = observer
		}
	}

	a.alarms = alarm.NewManager(a.updateChan)
	a.blocker = blocker.NewHostsBlocker(cfg.Blocking.HostsPath, cfg.Blocking.RedirectAddress)

	a.engine = engine.New(engine.SettingsFromConfig(cfg), engine.Deps{
		Store:     store,
		Scheduler: a.alarms,
		Blocker:   a.blocker,
		Notifier:  chanNotifier(a.updateChan),
		Journal:   store,
		Rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	})
	if err := a.engine.Load(ctx); err != nil {
		store.Close()
		cancel()
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	return a, nil
}

// setupSocket checks for existing socket and creates the listener
func (a *App) setupSocket() error {
	// Check if socket file exists and try connecting
	if _, err := os.Stat(a.socketPath); err == nil {
		conn, err := net.DialTimeout("unix", a.socketPath, 1*time.Second)
		if err == nil {
			// Connection successful - another instance is likely running
			conn.Close()
			return fmt.Errorf("socket %s already active, another instance might be running", a.socketPath)
		}
		log.Printf("Stale socket file found at %s, removing.", a.socketPath)
		if err := os.Remove(a.socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket file %s: %w", a.socketPath, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("error checking socket file %s: %w", a.socketPath, err)
	}

	addr, err := net.ResolveUnixAddr("unix", a.socketPath)
	if err != nil {
		return fmt.Errorf("failed to resolve unix addr %s: %w", a.socketPath, err)
	}
	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on socket %s: %w", a.socketPath, err)
	}

	a.listener = listener
	log.Printf("Listening for commands on %s", a.socketPath)
	return nil
}

// listenForCommands accepts connections and handles them
func (a *App) listenForCommands() {
	defer log.Println("Socket command listener stopped.")

	if a.listener == nil {
		log.Println("Error: Socket listener not initialized.")
		return
	}

	for {
		conn, err := a.listener.AcceptUnix()
		if err != nil {
			select {
			case <-a.ctx.Done():
				log.Println("Listener closing due to context cancellation.")
				return
			default:
				log.Printf("Failed to accept connection: %v", err)
				if errors.Is(err, net.ErrClosed) {
					return
				}
				time.Sleep(100 * time.Millisecond)
			}
			continue
		}
		a.wg.Go(func() { a.handleConnection(conn) })
	}
}

// handleConnection reads command, processes it, and sends response
func (a *App) handleConnection(conn *net.UnixConn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var cmd ipc.Command
	if err := decoder.Decode(&cmd); err != nil {
		if err != io.EOF {
			log.Printf("Failed to decode command: %v", err)
		}
		_ = encoder.Encode(ipc.Response{Success: false, Message: "Failed to decode command: " + err.Error()})
		return
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	log.Printf("Received command: %s", cmd.Name)

	response := a.processCommand(cmd)

	if err := encoder.Encode(response); err != nil {
		log.Printf("Failed to send response: %v", err)
	}
}

// processCommand routes the command to the correct engine operation
func (a *App) processCommand(cmd ipc.Command) ipc.Response {
	ctx := a.ctx

	switch cmd.Name {
	case ipc.CmdPing:
		return ipc.Response{Success: true, Message: "pong"}

	case ipc.CmdGetState:
		view, err := a.engine.State(ctx)
		return respond(view, "", err)

	case ipc.CmdStartSession:
		var args ipc.StartSessionArgs
		if err := ipc.DecodeArgs(cmd.Args, &args); err != nil {
			return invalidArgs(cmd, err)
		}
		projectID := ""
		if args.ProjectID != "" {
			p, err := a.engine.Project(args.ProjectID)
			if err != nil {
				return fail(err)
			}
			projectID = p.ID
		}
		if err := a.engine.Start(ctx, projectID); err != nil {
			return fail(err)
		}
		a.checkCurrentFocus(ctx)
		view, err := a.engine.State(ctx)
		return respond(view, fmt.Sprintf("%s session started", view.Session.Type.Label()), err)

	case ipc.CmdEndSession:
		ended, err := a.engine.End(ctx, false)
		if err != nil {
			return fail(err)
		}
		if !ended {
			return ipc.Response{Success: true, Message: "No active session"}
		}
		return ipc.Response{Success: true, Message: "Session ended"}

	case ipc.CmdReportVisit:
		var args ipc.ReportVisitArgs
		if err := ipc.DecodeArgs(cmd.Args, &args); err != nil {
			return invalidArgs(cmd, err)
		}
		res, err := a.engine.Distraction(ctx, args.URL)
		msg := "Not a distraction"
		switch {
		case res.Died:
			msg = fmt.Sprintf("%s killed the tree", res.Site)
		case res.Matched:
			msg = fmt.Sprintf("%s damaged the tree, health %d%%", res.Site, res.Health)
		}
		return respond(res, msg, err)

	case ipc.CmdGetOptimalStartTime:
		at, err := a.engine.OptimalStartTime(ctx)
		if err == nil && at == nil {
			return ipc.Response{Success: true, Message: "Not enough history yet"}
		}
		return respond(at, "", err)

	case ipc.CmdGetPersonalInsights:
		insights, err := a.engine.PersonalInsights(ctx)
		return respond(insights, "", err)

	case ipc.CmdRefreshInsights:
		ran, err := a.engine.RefreshInsights(ctx)
		if err != nil {
			return fail(err)
		}
		if !ran {
			return ipc.Response{Success: true, Message: "Not enough history yet"}
		}
		insights, err := a.engine.PersonalInsights(ctx)
		return respond(insights, "Insights refreshed", err)

	case ipc.CmdSetMood:
		var args ipc.SetMoodArgs
		if err := ipc.DecodeArgs(cmd.Args, &args); err != nil {
			return invalidArgs(cmd, err)
		}
		entry, err := a.engine.SetMood(ctx, args.Mood, args.Energy)
		return respond(entry, fmt.Sprintf("Mood recorded: %s", args.Mood), err)

	case ipc.CmdCreateProject:
		var args ipc.CreateProjectArgs
		if err := ipc.DecodeArgs(cmd.Args, &args); err != nil {
			return invalidArgs(cmd, err)
		}
		p, err := a.engine.CreateProject(ctx, analytics.ProjectRequest{
			Name:        args.Name,
			Color:       args.Color,
			Description: args.Description,
		})
		return respond(p, fmt.Sprintf("Project '%s' created", args.Name), err)

	case ipc.CmdGetForestTheme:
		theme, err := a.engine.ForestTheme(ctx)
		return respond(theme, "", err)

	case ipc.CmdGetMoodAnalysis:
		stats, err := a.engine.MoodAnalysis(ctx)
		if err == nil && stats == nil {
			return ipc.Response{Success: true, Message: "Not enough mood data yet"}
		}
		return respond(stats, "", err)

	case ipc.CmdGetDetailedReport:
		var args ipc.DetailedReportArgs
		if err := ipc.DecodeArgs(cmd.Args, &args); err != nil {
			return invalidArgs(cmd, err)
		}
		if args.Timeframe == "" {
			args.Timeframe = string(analytics.TimeframeWeek)
		}
		report, err := a.engine.DetailedReport(ctx, args.Timeframe)
		return respond(report, "", err)

	case ipc.CmdGetPersonalizedGoals:
		goals, err := a.engine.PersonalizedGoals(ctx)
		return respond(goals, "", err)

	case ipc.CmdGetBreakSuggestion:
		suggestion, err := a.engine.BreakSuggestion(ctx)
		return respond(suggestion, "", err)

	default:
		return ipc.Response{Success: false, Message: fmt.Sprintf("Unknown command: %s", cmd.Name)}
	}
}

func respond(data interface{}, msg string, err error) ipc.Response {
	if err != nil {
		return fail(err)
	}
	return ipc.Response{Success: true, Message: msg, Data: data}
}

func fail(err error) ipc.Response {
	return ipc.Response{Success: false, Message: err.Error()}
}

func invalidArgs(cmd ipc.Command, err error) ipc.Response {
	return ipc.Response{Success: false, Message: fmt.Sprintf("Invalid args for %s: %v", cmd.Name, err)}
}

func (a *App) Run() error {
	defer a.cleanup()

	log.Println("Starting Focus Forest daemon...")
	log.Printf("Collecting window focus: %s", a.cfg.CollectMode)
	if a.observer == nil {
		log.Println("X11 focus monitoring: DISABLED")
	} else {
		log.Println("X11 focus monitoring: ENABLED")
	}

	if err := a.setupSocket(); err != nil {
		return err
	}

	a.handleSignals()

	if config.Watch(a.reloadConfig) {
		log.Println("Watching config file for changes")
	}

	a.wg.Go(a.alarms.Run)
	a.wg.Go(a.processEvents)
	a.wg.Go(a.mainLoop)
	a.wg.Go(a.runPeriodic)

	if a.observer != nil {
		a.wg.Go(func() {
			log.Println("Launching X11 observer goroutine")
			interval := time.Duration(a.cfg.CollectionIntervalSeconds) * time.Second
			err := a.observer.Start(a.ctx, interval, a.eventChan)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("X11 observer error: %v", err)
			}
			log.Println("X11 observer goroutine finished.")
		})
	}

	a.wg.Go(a.listenForCommands)

	if _, err := a.storage.SaveEvent(a.ctx, event.Event{Timestamp: time.Now(), Type: event.EventTypeAppStart}); err != nil {
		log.Printf("Warning: Failed to save AppStart event: %v", err)
	}

	log.Println("Focus Forest daemon running. Send commands via focusforest-cli or socket.")
	<-a.ctx.Done()

	log.Println("Shutdown signal received, waiting for components...")

	// Close the listener before waiting so accept() returns.
	if a.listener != nil {
		log.Println("Closing command socket listener...")
		if err := a.listener.Close(); err != nil {
			log.Printf("Error closing socket listener: %v", err)
		}
	}
	a.alarms.Stop()
	if a.observer != nil {
		a.observer.Stop()
	}

	waitChan := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(waitChan)
	}()

	select {
	case <-waitChan:
		log.Println("All application goroutines finished.")
	case <-time.After(5 * time.Second):
		log.Println("Warning: Timeout waiting for application goroutines to stop.")
	}

	log.Println("Focus Forest daemon finished.")
	return nil
}

// mainLoop handles fired alarms and notifications
func (a *App) mainLoop() {
	defer log.Println("Main application loop stopped.")

	for {
		select {
		case <-a.ctx.Done():
			return
		case update := <-a.updateChan:
			a.handleUpdate(update)
		}
	}
}

func (a *App) handleUpdate(update interface{}) {
	switch u := update.(type) {
	case event.AlarmFired:
		completed, err := a.engine.Expire(a.ctx, u.ID)
		if err != nil {
			log.Printf("Error completing session: %v", err)
		}
		if completed {
			view, err := a.engine.State(a.ctx)
			if err == nil {
				log.Printf("Next up: %s (%s), %d trees planted", view.Session.Type.Label(),
					formatDuration(time.Duration(view.Session.DurationSeconds)*time.Second), len(view.Forest.Trees))
			}
		}

	case event.Notification:
		bell := ""
		if u.Sound {
			bell = "\a"
		}
		log.Printf("Notification: [%s] %s%s", u.Title, u.Message, bell)

	default:
		log.Printf("Unknown update type in main loop: %T", u)
	}
}

// processEvents journals focus changes and checks them for distractions
func (a *App) processEvents() {
	defer log.Println("Event processor stopped.")

	for {
		select {
		case <-a.ctx.Done():
			log.Println("Event processor shutting down.")
			return
		case e := <-a.eventChan:
			a.handleFocusEvent(e)
		}
	}
}

func (a *App) handleFocusEvent(e event.Event) {
	if e.Type != event.EventTypeFocusChange {
		if _, err := a.storage.SaveEvent(a.ctx, e); err != nil {
			log.Printf("Error saving event (Type: %s, Tag: %s): %v", e.Type, e.Tag, err)
		}
		return
	}

	sessionType, active := a.engine.Running()
	inFocus := active && sessionType == event.SessionWork
	if a.cfg.CollectMode == "always" || inFocus {
		log.Printf("Focus Changed: App='%s', Title='%s'", e.AppName, collector.Truncate(e.WindowTitle, 80))
		if a.lastFocus != nil {
			log.Printf("Time on '%s': %s", a.lastFocus.AppName, formatDuration(e.Timestamp.Sub(a.lastFocus.Timestamp)))
		}
		last := e
		a.lastFocus = &last
		if _, err := a.storage.SaveEvent(a.ctx, e); err != nil {
			log.Printf("Error saving event (Type: %s): %v", e.Type, err)
		}
	}
	if !inFocus {
		return
	}

	res, err := a.engine.Distraction(a.ctx, e.WindowTitle)
	if err != nil {
		log.Printf("Error recording distraction: %v", err)
	}
	if res.Matched {
		log.Printf("Distraction in '%s' matched %s", e.AppName, res.Site)
	}
}

// checkCurrentFocus damages a freshly planted tree when the session starts
// on a distracting window, without waiting for the next focus change.
func (a *App) checkCurrentFocus(ctx context.Context) {
	if a.observer == nil {
		return
	}
	if sessionType, active := a.engine.Running(); !active || sessionType != event.SessionWork {
		return
	}
	focus, err := a.observer.CurrentFocus()
	if err != nil {
		log.Printf("Warning: could not query current focus: %v", err)
		return
	}
	res, err := a.engine.Distraction(ctx, focus.Title)
	if err != nil {
		log.Printf("Error recording distraction: %v", err)
		return
	}
	if res.Matched {
		log.Printf("Session started on '%s', matched %s", focus.AppName, res.Site)
	}
}

// runPeriodic shows the current insights and forest theme on their own
// tickers and trims the journal to the history window once a day. The daily
// analysis itself only runs on date rollover or an explicit refresh.
func (a *App) runPeriodic() {
	defer log.Println("Periodic tasks stopped.")

	insights := time.NewTicker(time.Duration(a.cfg.Analytics.InsightRefreshMinutes) * time.Minute)
	defer insights.Stop()
	theme := time.NewTicker(time.Duration(a.cfg.Analytics.ThemeRefreshMinutes) * time.Minute)
	defer theme.Stop()
	prune := time.NewTicker(24 * time.Hour)
	defer prune.Stop()

	a.pruneJournal()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-prune.C:
			a.pruneJournal()
		case <-insights.C:
			a.showInsights()
		case <-theme.C:
			t, err := a.engine.ForestTheme(a.ctx)
			if err != nil {
				log.Printf("Warning: theme refresh failed: %v", err)
				continue
			}
			log.Printf("Forest theme: %s %s, %s (%s)", t.Season, t.TimeOfDay, t.Weather, t.ForestSize)
		}
	}
}

func (a *App) showInsights() {
	insights, err := a.engine.PersonalInsights(a.ctx)
	if err != nil {
		log.Printf("Warning: failed to read insights: %v", err)
		return
	}
	best := insights.BestTime
	if best == "" {
		best = "unknown"
	}
	log.Printf("Insights: score %d, trend %s, best time %s", insights.Score, insights.Trend, best)
}

func (a *App) pruneJournal() {
	cutoff := time.Now().Add(-a.cfg.Analytics.HistoryRetention())
	n, err := a.storage.PruneEvents(a.ctx, cutoff)
	if err != nil {
		log.Printf("Warning: failed to prune journal: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Pruned %d journal events older than %s", n, cutoff.Format("2006-01-02"))
	}
}

func (a *App) reloadConfig(cfg *config.Config) {
	a.engine.UpdateSettings(a.ctx, engine.SettingsFromConfig(cfg))
	log.Println("Applied new pomodoro, forest and blocking settings")
}

func (a *App) handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v. Initiating shutdown...", sig)
		a.cancel()
	}()
}

// cleanup journals the stop, closes storage and removes the socket file
func (a *App) cleanup() {
	log.Println("Running cleanup...")
	a.cancel()

	saveCtx, saveCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer saveCancel()
	_, err := a.storage.SaveEvent(saveCtx, event.Event{Timestamp: time.Now(), Type: event.EventTypeAppStop})
	if err != nil {
		log.Printf("Warning: Failed to save AppStop event: %v", err)
	}

	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			log.Printf("Error closing storage: %v", err)
		}
	}

	// The listener is closed in Run before waiting on goroutines.
	if a.listener != nil {
		if _, err := os.Stat(a.socketPath); err == nil {
			log.Printf("Removing socket file: %s", a.socketPath)
			if err := os.Remove(a.socketPath); err != nil {
				log.Printf("Warning: Failed to remove socket file %s: %v", a.socketPath, err)
			}
		}
	}

	log.Println("Cleanup finished.")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
