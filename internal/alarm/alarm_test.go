package alarm

import (
	"testing"
	"time"

	"focusforest/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startManager(t *testing.T) (*Manager, chan interface{}) {
	t.Helper()
	updates := make(chan interface{}, 4)
	m := NewManager(updates)
	go m.Run()
	t.Cleanup(m.Stop)
	return m, updates
}

func waitFired(t *testing.T, updates <-chan interface{}, within time.Duration) (event.AlarmFired, bool) {
	t.Helper()
	select {
	case u := <-updates:
		fired, ok := u.(event.AlarmFired)
		require.True(t, ok, "unexpected update %T", u)
		return fired, true
	case <-time.After(within):
		return event.AlarmFired{}, false
	}
}

func TestAlarmFires(t *testing.T) {
	m, updates := startManager(t)
	m.Schedule("run-1", 10*time.Millisecond)

	fired, ok := waitFired(t, updates, time.Second)
	require.True(t, ok)
	assert.Equal(t, "run-1", fired.ID)
}

func TestZeroDelayFiresImmediately(t *testing.T) {
	m, updates := startManager(t)
	m.Schedule("late", -time.Minute)

	fired, ok := waitFired(t, updates, time.Second)
	require.True(t, ok)
	assert.Equal(t, "late", fired.ID)
}

func TestCancelStopsPendingAlarm(t *testing.T) {
	m, updates := startManager(t)
	m.Schedule("run-1", 50*time.Millisecond)
	m.Cancel("run-1")

	_, ok := waitFired(t, updates, 150*time.Millisecond)
	assert.False(t, ok)
}

func TestCancelIgnoresOtherIDs(t *testing.T) {
	m, updates := startManager(t)
	m.Schedule("run-2", 20*time.Millisecond)
	m.Cancel("run-1")
	m.Cancel("")

	fired, ok := waitFired(t, updates, time.Second)
	require.True(t, ok)
	assert.Equal(t, "run-2", fired.ID)
}

func TestScheduleReplacesPending(t *testing.T) {
	m, updates := startManager(t)
	m.Schedule("old", 30*time.Millisecond)
	m.Schedule("new", 60*time.Millisecond)

	fired, ok := waitFired(t, updates, time.Second)
	require.True(t, ok)
	assert.Equal(t, "new", fired.ID)

	_, ok = waitFired(t, updates, 100*time.Millisecond)
	assert.False(t, ok, "replaced alarm never fires")
}
