package repository_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/kazanshin/website/pkg/domain/interfaces"
	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/domain/types"
	"github.com/kazanshin/website/pkg/repository/firestore"
	"github.com/kazanshin/website/pkg/repository/memory"
	"github.com/kazanshin/website/pkg/repository/redis"
	"github.com/kazanshin/website/pkg/repository/sqlite"
	"github.com/kazanshin/website/pkg/utils/clock"
	"github.com/kazanshin/website/pkg/utils/test"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func newFirestoreStore(t *testing.T) interfaces.Store {
	vars := test.NewEnvVars(t, "TEST_FIRESTORE_PROJECT_ID", "TEST_FIRESTORE_DATABASE_ID")
	client, err := firestore.New(t.Context(),
		vars.Get("TEST_FIRESTORE_PROJECT_ID"),
		vars.Get("TEST_FIRESTORE_DATABASE_ID"),
		firestore.WithCollectionPrefix("test-"+uuid.NewString()[:8]+"-"),
	)
	gt.NoError(t, err).Required()
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newRedisStore(t *testing.T) interfaces.Store {
	srv := miniredis.RunT(t)
	client, err := redis.New(t.Context(), "redis://"+srv.Addr())
	gt.NoError(t, err).Required()
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newSQLiteStore(t *testing.T) interfaces.Store {
	client, err := sqlite.New(t.Context(), filepath.Join(t.TempDir(), "echo.db"))
	gt.NoError(t, err).Required()
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func runStoreTest(t *testing.T, testFn func(t *testing.T, store interfaces.Store)) {
	t.Helper()

	t.Run("Memory", func(t *testing.T) {
		testFn(t, memory.New())
	})
	t.Run("Redis", func(t *testing.T) {
		testFn(t, newRedisStore(t))
	})
	t.Run("SQLite", func(t *testing.T) {
		testFn(t, newSQLiteStore(t))
	})
	t.Run("Firestore", func(t *testing.T) {
		testFn(t, newFirestoreStore(t))
	})
}

func newKey() string {
	return "echo:test:" + uuid.NewString()
}

func testCtx(t *testing.T) context.Context {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return clock.With(t.Context(), clock.Stepping(base, time.Millisecond))
}

func seedEntries(t *testing.T, ctx context.Context, store interfaces.Store, key string, n int) []logentry.Entry {
	t.Helper()
	entries := make([]logentry.Entry, n)
	for i := range entries {
		role := logentry.RoleUser
		if i%2 == 1 {
			role = logentry.RoleAssistant
		}
		entries[i] = logentry.New(ctx, role, fmt.Sprintf("turn %d", i))
	}
	gt.NoError(t, store.Append(ctx, key, entries...)).Required()
	return entries
}

func contents(entries []logentry.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Content
	}
	return out
}

func TestStoreAppendAndRange(t *testing.T) {
	runStoreTest(t, func(t *testing.T, store interfaces.Store) {
		ctx := testCtx(t)
		key := newKey()

		empty, err := store.Range(ctx, key, 0, -1)
		gt.NoError(t, err)
		gt.A(t, empty).Length(0)

		n, err := store.Len(ctx, key)
		gt.NoError(t, err)
		gt.V(t, n).Equal(int64(0))

		written := seedEntries(t, ctx, store, key, 5)

		all, err := store.Range(ctx, key, 0, -1)
		gt.NoError(t, err)
		gt.A(t, all).Length(5)
		for i := range written {
			gt.V(t, all[i]).Equal(written[i])
		}

		n, err = store.Len(ctx, key)
		gt.NoError(t, err)
		gt.V(t, n).Equal(int64(5))

		t.Run("negative indexes count from the tail", func(t *testing.T) {
			tail, err := store.Range(ctx, key, -2, -1)
			gt.NoError(t, err)
			gt.V(t, contents(tail)).Equal([]string{"turn 3", "turn 4"})
		})

		t.Run("end past the tail is clamped", func(t *testing.T) {
			head, err := store.Range(ctx, key, 0, 99)
			gt.NoError(t, err)
			gt.A(t, head).Length(5)
		})

		t.Run("start past the tail returns nothing", func(t *testing.T) {
			none, err := store.Range(ctx, key, 7, 9)
			gt.NoError(t, err)
			gt.A(t, none).Length(0)
		})

		t.Run("middle slice", func(t *testing.T) {
			mid, err := store.Range(ctx, key, 1, 2)
			gt.NoError(t, err)
			gt.V(t, contents(mid)).Equal([]string{"turn 1", "turn 2"})
		})
	})
}

func TestStoreTrimTo(t *testing.T) {
	runStoreTest(t, func(t *testing.T, store interfaces.Store) {
		ctx := testCtx(t)
		key := newKey()
		seedEntries(t, ctx, store, key, 6)

		gt.NoError(t, store.TrimTo(ctx, key, 2, -1))

		rest, err := store.Range(ctx, key, 0, -1)
		gt.NoError(t, err)
		gt.V(t, contents(rest)).Equal([]string{"turn 2", "turn 3", "turn 4", "turn 5"})

		// Appends after a trim keep their order behind the survivors.
		gt.NoError(t, store.Append(ctx, key, logentry.New(ctx, logentry.RoleUser, "late")))
		rest, err = store.Range(ctx, key, 0, -1)
		gt.NoError(t, err)
		gt.V(t, rest[len(rest)-1].Content).Equal("late")

		gt.NoError(t, store.TrimTo(ctx, key, 10, -1))
		n, err := store.Len(ctx, key)
		gt.NoError(t, err)
		gt.V(t, n).Equal(int64(0))
	})
}

func TestStoreRemove(t *testing.T) {
	runStoreTest(t, func(t *testing.T, store interfaces.Store) {
		ctx := testCtx(t)
		key := newKey()
		written := seedEntries(t, ctx, store, key, 5)

		removed, err := store.Remove(ctx, key, written[1].ID, written[3].ID, types.NewEntryID(time.Now()))
		gt.NoError(t, err)
		gt.V(t, removed).Equal(2)

		rest, err := store.Range(ctx, key, 0, -1)
		gt.NoError(t, err)
		gt.V(t, contents(rest)).Equal([]string{"turn 0", "turn 2", "turn 4"})

		removed, err = store.Remove(ctx, key)
		gt.NoError(t, err)
		gt.V(t, removed).Equal(0)
	})
}

func TestStoreDeleteAll(t *testing.T) {
	runStoreTest(t, func(t *testing.T, store interfaces.Store) {
		ctx := testCtx(t)
		key := newKey()
		other := newKey()
		seedEntries(t, ctx, store, key, 3)
		seedEntries(t, ctx, store, other, 2)

		gt.NoError(t, store.DeleteAll(ctx, key))

		n, err := store.Len(ctx, key)
		gt.NoError(t, err)
		gt.V(t, n).Equal(int64(0))

		n, err = store.Len(ctx, other)
		gt.NoError(t, err)
		gt.V(t, n).Equal(int64(2))

		// Deleting a missing list is not an error.
		gt.NoError(t, store.DeleteAll(ctx, newKey()))
	})
}

func TestStoreSwapFrom(t *testing.T) {
	runStoreTest(t, func(t *testing.T, store interfaces.Store) {
		ctx := testCtx(t)
		live := newKey()
		temp := live + ":tmp"
		seedEntries(t, ctx, store, live, 4)

		rewritten := []logentry.Entry{
			logentry.NewMemory(ctx, "summary of four turns", nil),
			logentry.New(ctx, logentry.RoleUser, "kept"),
		}
		gt.NoError(t, store.Append(ctx, temp, rewritten...))
		gt.NoError(t, store.SwapFrom(ctx, temp, live))

		got, err := store.Range(ctx, live, 0, -1)
		gt.NoError(t, err)
		gt.A(t, got).Length(2)
		gt.V(t, got[0]).Equal(rewritten[0])
		gt.V(t, got[1]).Equal(rewritten[1])

		n, err := store.Len(ctx, temp)
		gt.NoError(t, err)
		gt.V(t, n).Equal(int64(0))

		gt.NoError(t, store.Append(ctx, live, logentry.New(ctx, logentry.RoleAssistant, "after swap")))
		got, err = store.Range(ctx, live, -1, -1)
		gt.NoError(t, err)
		gt.V(t, contents(got)).Equal([]string{"after swap"})

		t.Run("missing source fails", func(t *testing.T) {
			gt.Error(t, store.SwapFrom(ctx, newKey(), live))
			n, err := store.Len(ctx, live)
			gt.NoError(t, err)
			gt.V(t, n).Equal(int64(3))
		})
	})
}

func TestStoreSwapFromIsAllOrNothingForReaders(t *testing.T) {
	runStoreTest(t, func(t *testing.T, store interfaces.Store) {
		ctx := testCtx(t)
		live := newKey()
		temp := live + ":tmp"
		seedEntries(t, ctx, store, live, 20)
		seedEntries(t, ctx, store, temp, 5)

		var maxSeen atomic.Int64
		done := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if n, err := store.Len(ctx, live); err == nil && n > maxSeen.Load() {
					maxSeen.Store(n)
				}
			}
		}()

		gt.NoError(t, store.SwapFrom(ctx, temp, live))
		close(done)
		wg.Wait()

		gt.True(t, maxSeen.Load() <= 20)
		n, err := store.Len(ctx, live)
		gt.NoError(t, err)
		gt.V(t, n).Equal(int64(5))
	})
}

func TestStoreLock(t *testing.T) {
	runStoreTest(t, func(t *testing.T, store interfaces.Store) {
		ctx := testCtx(t)
		key := "echo:lock:" + uuid.NewString()

		ok, err := store.TryAcquire(ctx, key, time.Minute)
		gt.NoError(t, err)
		gt.True(t, ok)

		ok, err = store.TryAcquire(ctx, key, time.Minute)
		gt.NoError(t, err)
		gt.False(t, ok)

		gt.NoError(t, store.Release(ctx, key))

		ok, err = store.TryAcquire(ctx, key, time.Minute)
		gt.NoError(t, err)
		gt.True(t, ok)
		gt.NoError(t, store.Release(ctx, key))

		// Releasing a lock nobody holds is harmless.
		gt.NoError(t, store.Release(ctx, key))
	})
}

func TestMemoryLockExpires(t *testing.T) {
	testLockExpiresByClock(t, memory.New())
}

func TestSQLiteLockExpires(t *testing.T) {
	testLockExpiresByClock(t, newSQLiteStore(t))
}

func testLockExpiresByClock(t *testing.T, store interfaces.Store) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := clock.With(t.Context(), clock.Fixed(base))

	ok, err := store.TryAcquire(ctx, "echo:lock:maintenance", 2*time.Minute)
	gt.NoError(t, err)
	gt.True(t, ok)

	ctx = clock.With(t.Context(), clock.Fixed(base.Add(time.Minute)))
	ok, err = store.TryAcquire(ctx, "echo:lock:maintenance", 2*time.Minute)
	gt.NoError(t, err)
	gt.False(t, ok)

	// A crashed holder never releases; the TTL frees the lock.
	ctx = clock.With(t.Context(), clock.Fixed(base.Add(3*time.Minute)))
	ok, err = store.TryAcquire(ctx, "echo:lock:maintenance", 2*time.Minute)
	gt.NoError(t, err)
	gt.True(t, ok)
}

func TestRedisLockExpires(t *testing.T) {
	srv := miniredis.RunT(t)
	store, err := redis.New(t.Context(), "redis://"+srv.Addr())
	gt.NoError(t, err).Required()
	defer store.Close()

	ok, err := store.TryAcquire(t.Context(), "echo:lock:maintenance", 2*time.Minute)
	gt.NoError(t, err)
	gt.True(t, ok)
	gt.True(t, srv.TTL("echo:lock:maintenance") > 0)

	srv.FastForward(3 * time.Minute)

	ok, err = store.TryAcquire(t.Context(), "echo:lock:maintenance", 2*time.Minute)
	gt.NoError(t, err)
	gt.True(t, ok)
}

func TestRedisSkipsCorruptEntries(t *testing.T) {
	srv := miniredis.RunT(t)
	store, err := redis.New(t.Context(), "redis://"+srv.Addr())
	gt.NoError(t, err).Required()
	defer store.Close()

	ctx := testCtx(t)
	gt.NoError(t, store.Append(ctx, "echo:log", logentry.New(ctx, logentry.RoleUser, "hello")))
	_, err = srv.RPush("echo:log", "{not json", `{"role":"user","ts":"2026-03-01T00:00:00.000Z"}`)
	gt.NoError(t, err)
	gt.NoError(t, store.Append(ctx, "echo:log", logentry.New(ctx, logentry.RoleAssistant, "hi")))

	got, err := store.Range(ctx, "echo:log", 0, -1)
	gt.NoError(t, err)
	gt.V(t, contents(got)).Equal([]string{"hello", "hi"})

	// The raw list still holds every record.
	n, err := store.Len(ctx, "echo:log")
	gt.NoError(t, err)
	gt.V(t, n).Equal(int64(4))
}

func TestMemorySkipsCorruptEntries(t *testing.T) {
	store := memory.New()
	ctx := testCtx(t)

	gt.NoError(t, store.Append(ctx, "echo:log", logentry.New(ctx, logentry.RoleUser, "hello")))
	store.AppendRaw("echo:log", `{"role":"wizard","content":"x","ts":"2026-03-01T00:00:00.000Z"}`)

	got, err := store.Range(ctx, "echo:log", 0, -1)
	gt.NoError(t, err)
	gt.V(t, contents(got)).Equal([]string{"hello"})
}

func TestRedisUnavailable(t *testing.T) {
	srv := miniredis.RunT(t)
	store, err := redis.New(t.Context(), "redis://"+srv.Addr())
	gt.NoError(t, err).Required()
	defer store.Close()

	srv.Close()

	_, err = store.Len(t.Context(), "echo:log")
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, errs.TagStoreUnavailable))
}

func TestMemoryFailure(t *testing.T) {
	store := memory.New()
	store.SetFailure(fmt.Errorf("connection refused"))

	_, err := store.Range(t.Context(), "echo:log", 0, -1)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, errs.TagStoreUnavailable))
	gt.V(t, store.CallCount("Range")).Equal(1)

	store.SetFailure(nil)
	_, err = store.Range(t.Context(), "echo:log", 0, -1)
	gt.NoError(t, err)
}
