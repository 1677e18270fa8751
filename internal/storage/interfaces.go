package storage

import (
	"context"
	"errors"
	"time"

	"emt-madrid/internal/sensor"
)

// DataStore is the interface for reading sensor snapshots.
// It's implemented by TSVStorage, R2Storage and RedisStorage.
type DataStore interface {
	// ReadLatest reads the most recent snapshot.
	ReadLatest(ctx context.Context) ([]sensor.Reading, time.Time, error)

	// ListAvailableTimestamps returns the timestamps of every stored snapshot, newest first.
	ListAvailableTimestamps(ctx context.Context) ([]time.Time, error)
}

// Writer stores one snapshot and returns where it was written.
type Writer interface {
	WriteReadings(ctx context.Context, readings []sensor.Reading) (string, error)
}

// Store reads and writes snapshots.
type Store interface {
	DataStore
	Writer
}

// SnapshotStore extends DataStore with access to any past snapshot.
type SnapshotStore interface {
	DataStore

	// GetSnapshotByTimestamp returns the snapshot closest to timestamp.
	GetSnapshotByTimestamp(ctx context.Context, timestamp time.Time) ([]sensor.Reading, time.Time, error)
}

// ErrNoSnapshots is returned by ReadLatest when nothing has been written yet.
var ErrNoSnapshots = errors.New("no snapshots found")

// Discard is a Store that keeps nothing. Reads always report ErrNoSnapshots.
type Discard struct{}

func (Discard) WriteReadings(context.Context, []sensor.Reading) (string, error) { return "", nil }

func (Discard) ReadLatest(context.Context) ([]sensor.Reading, time.Time, error) {
	return nil, time.Time{}, ErrNoSnapshots
}

func (Discard) ListAvailableTimestamps(context.Context) ([]time.Time, error) { return nil, nil }
