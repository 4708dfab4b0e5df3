// Package collector watches which window has focus. Focus changes are the
// page-visit signal the engine checks against the distraction list.
package collector

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"focusforest/internal/event"
)

// FocusSource reports the currently focused window.
type FocusSource func() (event.FocusInfo, error)

// Poller samples a FocusSource and emits a focus_change event whenever the
// focused app or title differs from the previous sample.
type Poller struct {
	name         string
	source       FocusSource
	lastFocus    event.FocusInfo
	stopChan     chan struct{}
	stopOnce     sync.Once
	focusRequest chan chan focusResult
}

type focusResult struct {
	info event.FocusInfo
	err  error
}

func NewPoller(name string, source FocusSource) *Poller {
	return &Poller{
		name:         name,
		source:       source,
		stopChan:     make(chan struct{}),
		focusRequest: make(chan chan focusResult),
	}
}

// Start polls until ctx is done or Stop is called.
func (p *Poller) Start(ctx context.Context, interval time.Duration, output chan<- event.Event) error {
	log.Printf("Starting %s focus collector (interval: %s)", p.name, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// The window manager may not answer right after startup.
	var err error
	for i := 0; i < 3; i++ {
		var initial event.FocusInfo
		if initial, err = p.source(); err == nil {
			p.lastFocus = initial
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err != nil {
		log.Printf("Warning: Failed to get initial window focus: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("%s collector stopping due to context cancellation.", p.name)
			return ctx.Err()
		case <-p.stopChan:
			log.Printf("%s collector stopping.", p.name)
			return nil
		case resp := <-p.focusRequest:
			info, err := p.source()
			resp <- focusResult{info: info, err: err}
		case <-ticker.C:
			current, err := p.source()
			if err != nil {
				continue
			}
			if current == p.lastFocus {
				continue
			}
			log.Printf("Focus Changed: App='%s', Title='%s'", current.AppName, current.Title)
			change := event.Event{
				Timestamp:   time.Now(),
				Type:        event.EventTypeFocusChange,
				AppName:     current.AppName,
				WindowTitle: current.Title,
				Tag:         p.lastFocus.AppName,
				Notes:       fmt.Sprintf("Previous: %s - %s", p.lastFocus.AppName, Truncate(p.lastFocus.Title, 50)),
			}
			select {
			case output <- change:
				p.lastFocus = current
			case <-ctx.Done():
				return ctx.Err()
			case <-p.stopChan:
				return nil
			}
		}
	}
}

// CurrentFocus asks the running poller for a fresh sample.
func (p *Poller) CurrentFocus() (event.FocusInfo, error) {
	resp := make(chan focusResult, 1)
	select {
	case p.focusRequest <- resp:
	case <-time.After(100 * time.Millisecond):
		return event.FocusInfo{}, fmt.Errorf("timeout sending focus request to %s collector", p.name)
	}
	select {
	case r := <-resp:
		return r.info, r.err
	case <-time.After(time.Second):
		return event.FocusInfo{}, fmt.Errorf("timeout waiting for current focus response")
	}
}

func (p *Poller) Stop() error {
	p.stopOnce.Do(func() { close(p.stopChan) })
	return nil
}

// Truncate shortens s to maxLen bytes, preferring to cut at a space.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if idx := strings.LastIndex(s[:maxLen-3], " "); idx > maxLen/2 {
		return s[:idx] + "..."
	}
	return s[:maxLen-3] + "..."
}
