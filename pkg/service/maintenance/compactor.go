package maintenance

import (
	"context"
	"slices"
	"strings"

	"github.com/kazanshin/website/pkg/domain/interfaces"
	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/domain/model/persona"
	"github.com/kazanshin/website/pkg/domain/model/window"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Trim strategies of a compaction.
const (
	TrimPrefix = "prefix"
	TrimByID   = "by_id"
)

// CompactionResult describes one compaction attempt.
type CompactionResult struct {
	LogLen int64
	// Reason is set when nothing was compacted.
	Reason     string
	Summarised int
	Memory     *logentry.Entry
	Trim       string
	Removed    int
}

// Compactor replaces the oldest conversational entries with one memory
// entry. Callers must hold the maintenance lock.
type Compactor struct {
	store    interfaces.LogStore
	gen      interfaces.Generator
	archiver interfaces.Archiver
	cfg      Config
}

type CompactorOption func(*Compactor)

// WithArchiver keeps a copy of every summarised batch.
func WithArchiver(archiver interfaces.Archiver) CompactorOption {
	return func(c *Compactor) {
		c.archiver = archiver
	}
}

func NewCompactor(store interfaces.LogStore, gen interfaces.Generator, cfg Config, opts ...CompactorOption) *Compactor {
	c := &Compactor{store: store, gen: gen, cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Compactor) Run(ctx context.Context) (*CompactionResult, error) {
	logger := logging.From(ctx)
	key := c.cfg.LogKey

	n, err := c.store.Len(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read log length")
	}
	result := &CompactionResult{LogLen: n}
	if n < c.cfg.CompressAt {
		result.Reason = "below threshold"
		return result, nil
	}

	batch, err := c.store.Range(ctx, key, 0, c.cfg.CompressBatch-1)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read compaction batch")
	}

	conv := logentry.Filter(batch, logentry.Entry.IsConversational)
	if len(conv) == 0 {
		result.Reason = "no conversational entries"
		logger.Info("oldest batch has no conversational entries, compaction skipped",
			"batch", len(batch))
		return result, nil
	}

	prompt, err := persona.CompactionPrompt(c.transcript(conv))
	if err != nil {
		return nil, err
	}
	summary, err := c.gen.Generate(ctx, window.Window{
		{Role: window.RoleSystem, Content: persona.MaintenanceSystemPrompt},
		{Role: window.RoleUser, Content: prompt},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to summarise compaction batch", goerr.V("entries", len(conv)))
	}

	ctx, cancel := commitContext(ctx)
	defer cancel()

	ids := logentry.IDs(conv)
	memory := logentry.NewMemory(ctx, summary, ids)
	if err := c.store.Append(ctx, key, memory); err != nil {
		return nil, goerr.Wrap(err, "failed to append memory entry")
	}
	result.Memory = &memory
	result.Summarised = len(conv)

	if c.archiver != nil {
		if err := c.archiver.PutCompaction(ctx, memory.ID, conv); err != nil {
			logger.Warn("failed to archive compaction batch", "memory_id", memory.ID, logging.ErrAttr(err))
		}
	}

	// The prefix can only be cut by position when it is still exactly the
	// batch that was summarised. Anything else is removed by ID so that
	// foundational markers and concurrent rewrites survive.
	prefix, err := c.store.Range(ctx, key, 0, int64(len(batch))-1)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to re-read compaction batch", goerr.V("memory_id", memory.ID))
	}

	if len(conv) == len(batch) && slices.Equal(logentry.IDs(prefix), logentry.IDs(batch)) {
		if err := c.store.TrimTo(ctx, key, int64(len(batch)), -1); err != nil {
			return nil, goerr.Wrap(err, "failed to trim compacted prefix", goerr.V("memory_id", memory.ID))
		}
		result.Trim = TrimPrefix
		result.Removed = len(batch)
	} else {
		removed, err := c.store.Remove(ctx, key, ids...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to remove compacted entries", goerr.V("memory_id", memory.ID))
		}
		result.Trim = TrimByID
		result.Removed = removed
	}

	logger.Info("log compacted",
		"log_len", n,
		"summarised", result.Summarised,
		"removed", result.Removed,
		"trim", result.Trim,
		"memory_id", memory.ID)
	return result, nil
}

// transcript renders entries as "role: content" lines within the clip
// limits.
func (c *Compactor) transcript(entries []logentry.Entry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		role, content, ok := e.Render(c.cfg.PulseMarker)
		if !ok {
			continue
		}
		lines = append(lines, string(role)+": "+logentry.Clip(content, c.cfg.EntryClip))
	}
	return logentry.Clip(strings.Join(lines, "\n"), c.cfg.TranscriptClip)
}
