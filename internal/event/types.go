package event

import "time"

type EventType string

const (
	EventTypeFocusChange  EventType = "focus_change"
	EventTypeSessionStart EventType = "session_start"
	EventTypeSessionEnd   EventType = "session_end"
	EventTypeDistraction  EventType = "distraction"
	EventTypeMood         EventType = "mood"
	EventTypeAppStart     EventType = "app_start"
	EventTypeAppStop      EventType = "app_stop"
)

// Event is one row of the audit journal.
type Event struct {
	ID          int64     `db:"id"`
	Timestamp   time.Time `db:"timestamp"`
	Type        EventType `db:"type"`
	AppName     string    `db:"app_name"`     // For focus_change
	WindowTitle string    `db:"window_title"` // For focus_change
	Value       float64   `db:"value"`        // Duration in seconds, tree health, energy...
	Tag         string    `db:"tag"`          // Session type, distraction site, mood label
	Notes       string    `db:"notes"`
}

// SessionType is the kind of Pomodoro interval a session runs.
type SessionType string

const (
	SessionWork       SessionType = "work"
	SessionShortBreak SessionType = "short_break"
	SessionLongBreak  SessionType = "long_break"
)

// Label is the human readable name shown in notifications and the CLI.
func (t SessionType) Label() string {
	switch t {
	case SessionWork:
		return "Focus"
	case SessionShortBreak:
		return "Short break"
	case SessionLongBreak:
		return "Long break"
	default:
		return string(t)
	}
}

// Used for communication channels
type FocusInfo struct {
	AppName string
	Title   string
}

type Notification struct {
	Title   string
	Message string
	Sound   bool
}

// AlarmFired is sent by the alarm manager when a scheduled wake-up expires.
type AlarmFired struct {
	ID string
}
