package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"focusforest/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted returns the queued samples in order and repeats the last one.
type scripted struct {
	mu      sync.Mutex
	samples []event.FocusInfo
}

func (s *scripted) next() (event.FocusInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		return event.FocusInfo{}, errors.New("no window")
	}
	info := s.samples[0]
	if len(s.samples) > 1 {
		s.samples = s.samples[1:]
	}
	return info, nil
}

func TestPollerEmitsFocusChanges(t *testing.T) {
	src := &scripted{samples: []event.FocusInfo{
		{AppName: "Code", Title: "main.go"},
		{AppName: "Code", Title: "main.go"},
		{AppName: "firefox", Title: "Funny cats - YouTube"},
	}}
	p := NewPoller("test", src.next)
	out := make(chan event.Event, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Start(ctx, 5*time.Millisecond, out) }()

	select {
	case e := <-out:
		assert.Equal(t, event.EventTypeFocusChange, e.Type)
		assert.Equal(t, "firefox", e.AppName)
		assert.Equal(t, "Funny cats - YouTube", e.WindowTitle)
		assert.Equal(t, "Code", e.Tag)
		assert.Equal(t, "Previous: Code - main.go", e.Notes)
	case <-time.After(time.Second):
		t.Fatal("no focus change emitted")
	}

	select {
	case e := <-out:
		t.Fatalf("unexpected second event %+v", e)
	case <-time.After(30 * time.Millisecond):
	}

	info, err := p.CurrentFocus()
	require.NoError(t, err)
	assert.Equal(t, "firefox", info.AppName)

	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop(), "stop is idempotent")
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPollerStopsOnContext(t *testing.T) {
	p := NewPoller("test", (&scripted{}).next)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx, 5*time.Millisecond, make(chan event.Event)) }()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "a very long...", Truncate("a very long window title", 15))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
}
