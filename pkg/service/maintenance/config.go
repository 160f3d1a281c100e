package maintenance

import (
	"log/slog"
	"time"

	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/m-mizutani/goerr/v2"
)

// Config holds the thresholds of both maintenance stages.
type Config struct {
	LogKey  string
	LockKey string
	LockTTL time.Duration
	// GenerationBudget is the longest one generation call may take,
	// retries included. A pass makes up to two calls, which must fit in
	// RunWindow(LockTTL). Zero skips the check.
	GenerationBudget time.Duration

	// CompressAt is the log length at which compaction starts.
	CompressAt int64
	// CompressBatch is how many of the oldest entries one compaction reads.
	CompressBatch int64
	// EntryClip and TranscriptClip bound one transcript line and the whole
	// transcript, in characters.
	EntryClip      int
	TranscriptClip int

	// ConsolidateAt is the number of memory entries at which they are merged.
	ConsolidateAt int
	// ConsolidateBatch is how many of the oldest memory entries are merged.
	ConsolidateBatch int
	MemoryClip       int

	PulseMarker string
}

func DefaultConfig() Config {
	return Config{
		LogKey:           "echo:log",
		LockKey:          "echo:lock:maintenance",
		LockTTL:          6 * time.Minute,
		CompressAt:       500,
		CompressBatch:    150,
		EntryClip:        2000,
		TranscriptClip:   20000,
		ConsolidateAt:    30,
		ConsolidateBatch: 10,
		MemoryClip:       20000,
		PulseMarker:      "[PULSE] ",
	}
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("log_key", c.LogKey),
		slog.String("lock_key", c.LockKey),
		slog.Duration("lock_ttl", c.LockTTL),
		slog.Duration("generation_budget", c.GenerationBudget),
		slog.Int64("compress_at", c.CompressAt),
		slog.Int64("compress_batch", c.CompressBatch),
		slog.Int("consolidate_at", c.ConsolidateAt),
		slog.Int("consolidate_batch", c.ConsolidateBatch),
	)
}

func (c Config) Validate() error {
	switch {
	case c.LogKey == "" || c.LockKey == "":
		return goerr.New("log key and lock key are required", goerr.T(errs.TagValidation))
	case c.LogKey == c.LockKey:
		return goerr.New("lock key must differ from log key",
			goerr.V("key", c.LogKey), goerr.T(errs.TagValidation))
	case c.LockTTL <= 0:
		return goerr.New("lock TTL must be positive", goerr.V("ttl", c.LockTTL), goerr.T(errs.TagValidation))
	case c.GenerationBudget > 0 && RunWindow(c.LockTTL) < 2*c.GenerationBudget:
		return goerr.New("lock TTL is too short for two generation calls",
			goerr.V("ttl", c.LockTTL),
			goerr.V("generation_budget", c.GenerationBudget),
			goerr.V("min_ttl", MinLockTTL(c.GenerationBudget)),
			goerr.T(errs.TagValidation))
	case c.CompressAt < 1 || c.CompressBatch < 1:
		return goerr.New("compaction threshold and batch must be positive",
			goerr.V("compress_at", c.CompressAt),
			goerr.V("compress_batch", c.CompressBatch),
			goerr.T(errs.TagValidation))
	case c.ConsolidateAt < 1 || c.ConsolidateBatch < 1:
		return goerr.New("consolidation threshold and batch must be positive",
			goerr.V("consolidate_at", c.ConsolidateAt),
			goerr.V("consolidate_batch", c.ConsolidateBatch),
			goerr.T(errs.TagValidation))
	}
	return nil
}

// MinLockTTL is the shortest lock TTL whose run window holds a compaction
// and a consolidation call of the given budget.
func MinLockTTL(budget time.Duration) time.Duration {
	return 2 * budget * 5 / 4
}
