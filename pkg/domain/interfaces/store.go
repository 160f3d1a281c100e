package interfaces

import (
	"context"
	"time"

	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/domain/types"
)

// LogStore is the operation set over a remote ordered list of log entries.
// Indexes follow Redis list semantics: zero based, negative values count
// from the tail, ranges include both ends. No call is atomic with another.
type LogStore interface {
	// Append pushes entries to the tail of the list at key.
	Append(ctx context.Context, key string, entries ...logentry.Entry) error
	// Range reads entries in [start, end]. Records that fail to parse are
	// skipped and logged, never returned as an error.
	Range(ctx context.Context, key string, start, end int64) ([]logentry.Entry, error)
	Len(ctx context.Context, key string) (int64, error)
	// TrimTo keeps only the entries in [start, end].
	TrimTo(ctx context.Context, key string, start, end int64) error
	// Remove deletes the entries with the given IDs and returns how many
	// were removed.
	Remove(ctx context.Context, key string, ids ...types.EntryID) (int, error)
	DeleteAll(ctx context.Context, key string) error
	// SwapFrom replaces the list at liveKey with the list at tempKey. The
	// temp key no longer exists afterwards.
	SwapFrom(ctx context.Context, tempKey, liveKey string) error
}

// Locker is a short-lived mutual exclusion token kept in the same store.
type Locker interface {
	// TryAcquire sets key only if it is absent or expired.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release deletes key unconditionally.
	Release(ctx context.Context, key string) error
}

// Store is a backend that provides both the log and the lock.
type Store interface {
	LogStore
	Locker
	Close() error
}
