package timeout

import (
	"context"
	"time"

	"github.com/kazanshin/website/pkg/domain/interfaces"
	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/domain/types"
)

// Store bounds every call of the wrapped store by a fixed deadline, so a
// stalled backend fails the call instead of the request.
type Store struct {
	inner   interfaces.Store
	timeout time.Duration
}

var _ interfaces.Store = &Store{}

// Wrap returns inner unchanged when d is not positive.
func Wrap(inner interfaces.Store, d time.Duration) interfaces.Store {
	if d <= 0 {
		return inner
	}
	return &Store{inner: inner, timeout: d}
}

func (s *Store) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) Append(ctx context.Context, key string, entries ...logentry.Entry) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.inner.Append(ctx, key, entries...)
}

func (s *Store) Range(ctx context.Context, key string, start, end int64) ([]logentry.Entry, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.inner.Range(ctx, key, start, end)
}

func (s *Store) Len(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.inner.Len(ctx, key)
}

func (s *Store) TrimTo(ctx context.Context, key string, start, end int64) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.inner.TrimTo(ctx, key, start, end)
}

func (s *Store) Remove(ctx context.Context, key string, ids ...types.EntryID) (int, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.inner.Remove(ctx, key, ids...)
}

func (s *Store) DeleteAll(ctx context.Context, key string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.inner.DeleteAll(ctx, key)
}

func (s *Store) SwapFrom(ctx context.Context, tempKey, liveKey string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.inner.SwapFrom(ctx, tempKey, liveKey)
}

func (s *Store) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.inner.TryAcquire(ctx, key, ttl)
}

// Release runs detached from the caller's cancellation, so that a lock is
// still freed when the work it guarded was canceled.
func (s *Store) Release(ctx context.Context, key string) error {
	ctx, cancel := s.ctx(context.WithoutCancel(ctx))
	defer cancel()
	return s.inner.Release(ctx, key)
}

func (s *Store) Close() error {
	return s.inner.Close()
}
