package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kazanshin/website/pkg/domain/interfaces"
	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/domain/types"
	"github.com/kazanshin/website/pkg/repository/listindex"
	"github.com/kazanshin/website/pkg/utils/clock"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Memory is an in-process log store. Lists hold the serialized form so the
// codec runs exactly as it does against a remote store.
type Memory struct {
	mu    sync.Mutex
	lists map[string][]string
	locks map[string]time.Time

	// failing, when set, makes every call fail as an unreachable store.
	failing error

	callMu     sync.Mutex
	callCounts map[string]int

	eb *goerr.Builder
}

var _ interfaces.Store = &Memory{}

func New() *Memory {
	return &Memory{
		lists:      make(map[string][]string),
		locks:      make(map[string]time.Time),
		callCounts: make(map[string]int),
		eb:         goerr.NewBuilder(goerr.TV(errs.RepositoryKey, "memory")),
	}
}

func (r *Memory) Close() error { return nil }

func (r *Memory) enter(method string) error {
	r.callMu.Lock()
	r.callCounts[method]++
	r.callMu.Unlock()

	if r.failing != nil {
		return r.eb.Wrap(r.failing, "memory store unavailable",
			goerr.V("method", method), goerr.T(errs.TagStoreUnavailable))
	}
	return nil
}

// CallCount returns how many times method has been invoked.
func (r *Memory) CallCount(method string) int {
	r.callMu.Lock()
	defer r.callMu.Unlock()
	return r.callCounts[method]
}

// SetFailure makes every following call fail with err. Passing nil restores
// normal operation.
func (r *Memory) SetFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing = err
}

// AppendRaw pushes a record without encoding it, for corrupt data scenarios.
func (r *Memory) AppendRaw(key string, raw ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists[key] = append(r.lists[key], raw...)
}

func (r *Memory) Append(ctx context.Context, key string, entries ...logentry.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	raws := make([]string, 0, len(entries))
	for _, e := range entries {
		raw, err := logentry.Marshal(e)
		if err != nil {
			return r.eb.Wrap(err, "failed to encode log entry", goerr.TV(errs.LogKeyKey, key))
		}
		raws = append(raws, raw)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Append"); err != nil {
		return err
	}
	r.lists[key] = append(r.lists[key], raws...)
	return nil
}

func (r *Memory) Range(ctx context.Context, key string, start, end int64) ([]logentry.Entry, error) {
	r.mu.Lock()
	if err := r.enter("Range"); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	list := r.lists[key]
	from, to, ok := listindex.Bounds(start, end, int64(len(list)))
	var raws []string
	if ok {
		raws = append(raws, list[from:to]...)
	}
	r.mu.Unlock()

	return decode(ctx, key, raws), nil
}

func (r *Memory) Len(ctx context.Context, key string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Len"); err != nil {
		return 0, err
	}
	return int64(len(r.lists[key])), nil
}

func (r *Memory) TrimTo(ctx context.Context, key string, start, end int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("TrimTo"); err != nil {
		return err
	}

	list := r.lists[key]
	from, to, ok := listindex.Bounds(start, end, int64(len(list)))
	if !ok {
		delete(r.lists, key)
		return nil
	}
	r.lists[key] = append([]string{}, list[from:to]...)
	return nil
}

func (r *Memory) Remove(ctx context.Context, key string, ids ...types.EntryID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Remove"); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	targets := make(map[types.EntryID]struct{}, len(ids))
	for _, id := range ids {
		targets[id] = struct{}{}
	}

	var kept []string
	removed := 0
	for _, raw := range r.lists[key] {
		if e, err := logentry.Parse(raw); err == nil {
			if _, hit := targets[e.ID]; hit {
				removed++
				continue
			}
		}
		kept = append(kept, raw)
	}

	if len(kept) == 0 {
		delete(r.lists, key)
	} else {
		r.lists[key] = kept
	}
	return removed, nil
}

func (r *Memory) DeleteAll(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("DeleteAll"); err != nil {
		return err
	}
	delete(r.lists, key)
	return nil
}

func (r *Memory) SwapFrom(ctx context.Context, tempKey, liveKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("SwapFrom"); err != nil {
		return err
	}

	list, ok := r.lists[tempKey]
	if !ok {
		return r.eb.New("swap source does not exist",
			goerr.V("temp_key", tempKey), goerr.TV(errs.LogKeyKey, liveKey))
	}
	r.lists[liveKey] = list
	delete(r.lists, tempKey)
	return nil
}

func (r *Memory) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("TryAcquire"); err != nil {
		return false, err
	}

	now := clock.Now(ctx)
	if expiresAt, held := r.locks[key]; held && now.Before(expiresAt) {
		return false, nil
	}
	r.locks[key] = now.Add(ttl)
	return true, nil
}

func (r *Memory) Release(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Release"); err != nil {
		return err
	}
	delete(r.locks, key)
	return nil
}

// IsLocked reports whether key is currently held.
func (r *Memory) IsLocked(ctx context.Context, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	expiresAt, held := r.locks[key]
	return held && clock.Now(ctx).Before(expiresAt)
}

func decode(ctx context.Context, key string, raws []string) []logentry.Entry {
	entries := make([]logentry.Entry, 0, len(raws))
	for _, raw := range raws {
		e, err := logentry.Parse(raw)
		if err != nil {
			logging.From(ctx).Warn("skip corrupt log entry",
				"log_key", key, logging.ErrAttr(err))
			continue
		}
		entries = append(entries, e)
	}
	return entries
}
