// Package storage defines where the daemon keeps its audit journal and the
// session, forest and analytics snapshots.
package storage

import (
	"context"
	"time"

	"focusforest/internal/event"
)

// Snapshot keys for the three persisted state blobs.
const (
	KeySession   = "session"
	KeyForest    = "forest"
	KeyAnalytics = "analytics"
)

type Storage interface {
	Init(ctx context.Context) error
	SaveEvent(ctx context.Context, e event.Event) (int64, error)
	GetEvents(ctx context.Context, start, end time.Time, eventTypes ...event.EventType) ([]event.Event, error)
	PruneEvents(ctx context.Context, before time.Time) (int64, error)
	// LoadSnapshot returns the stored blob for key; found is false when
	// nothing was saved under that key yet.
	LoadSnapshot(ctx context.Context, key string) (data []byte, found bool, err error)
	SaveSnapshot(ctx context.Context, key string, data []byte) error
	Close() error
}
