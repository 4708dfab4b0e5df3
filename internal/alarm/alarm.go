// Package alarm delivers the delayed wake-up that ends a running session.
package alarm

import (
	"context"
	"log"
	"time"

	"focusforest/internal/event"
)

// Manager keeps at most one pending alarm. Scheduling a new id replaces
// the pending one; firing sends event.AlarmFired on the update channel.
type Manager struct {
	pendingID string
	timer     *time.Timer
	endTime   time.Time

	cmdChan    chan interface{}   // schedule/cancel commands from the engine
	updateChan chan<- interface{} // fired alarms back to the app

	ctx    context.Context
	cancel context.CancelFunc
}

// --- Command Types ---
type scheduleCmd struct {
	id    string
	after time.Duration
}
type cancelCmd struct {
	id string
}

func NewManager(updateChan chan<- interface{}) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cmdChan:    make(chan interface{}, 16),
		updateChan: updateChan,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes commands until Stop is called.
func (m *Manager) Run() {
	log.Println("Starting alarm manager")
	defer log.Println("Alarm manager loop stopped.")

	for {
		var timerChan <-chan time.Time
		if m.timer != nil {
			timerChan = m.timer.C
		}

		select {
		case <-m.ctx.Done():
			m.stopActiveTimer()
			return

		case cmd := <-m.cmdChan:
			m.handleCommand(cmd)

		case <-timerChan:
			id := m.pendingID
			m.timer = nil
			m.pendingID = ""
			m.endTime = time.Time{}
			log.Printf("Alarm %s fired", id)
			m.sendUpdate(event.AlarmFired{ID: id})
		}
	}
}

func (m *Manager) Stop() {
	log.Println("Stopping alarm manager")
	m.cancel()
}

// Schedule arms the alarm id to fire after the given delay, replacing any
// pending alarm. A non-positive delay fires right away.
func (m *Manager) Schedule(id string, after time.Duration) {
	select {
	case m.cmdChan <- scheduleCmd{id: id, after: after}:
	case <-m.ctx.Done():
	}
}

// Cancel disarms the alarm id if it is still pending. Unknown or already
// fired ids are ignored.
func (m *Manager) Cancel(id string) {
	select {
	case m.cmdChan <- cancelCmd{id: id}:
	case <-m.ctx.Done():
	}
}

func (m *Manager) handleCommand(cmd interface{}) {
	switch c := cmd.(type) {
	case scheduleCmd:
		m.stopActiveTimer()
		after := max(c.after, 0)
		m.pendingID = c.id
		m.timer = time.NewTimer(after)
		m.endTime = time.Now().Add(after)
		log.Printf("Alarm %s set for %s, ends at %s", c.id, after, m.endTime.Format(time.Kitchen))

	case cancelCmd:
		if c.id == "" || c.id != m.pendingID {
			return
		}
		m.stopActiveTimer()

	default:
		log.Printf("Warning: Unknown command received in alarm manager: %T", c)
	}
}

func (m *Manager) stopActiveTimer() {
	if m.timer == nil {
		return
	}
	if !m.timer.Stop() {
		select {
		case <-m.timer.C:
		default:
		}
	}
	log.Printf("Alarm %s cancelled", m.pendingID)
	m.timer = nil
	m.pendingID = ""
	m.endTime = time.Time{}
}

// sendUpdate blocks until the app takes the update; a fired alarm must not
// be dropped.
func (m *Manager) sendUpdate(update interface{}) {
	select {
	case m.updateChan <- update:
	case <-m.ctx.Done():
	}
}
