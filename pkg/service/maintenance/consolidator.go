package maintenance

import (
	"context"
	"strings"

	"github.com/kazanshin/website/pkg/domain/interfaces"
	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/domain/model/persona"
	"github.com/kazanshin/website/pkg/domain/model/window"
	"github.com/kazanshin/website/pkg/domain/types"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/oklog/ulid/v2"
)

// ConsolidationResult describes one consolidation attempt.
type ConsolidationResult struct {
	Memories int
	// Reason is set when nothing was consolidated.
	Reason     string
	Merged     int
	MetaMemory *logentry.Entry
	// Carried counts entries appended to the live log during the rewrite
	// and copied over before the swap.
	Carried int
}

// Consolidator merges the oldest memory entries into one meta-memory entry
// by rewriting the whole log under a temporary key and swapping it in.
// Callers must hold the maintenance lock.
type Consolidator struct {
	store interfaces.LogStore
	gen   interfaces.Generator
	cfg   Config
}

func NewConsolidator(store interfaces.LogStore, gen interfaces.Generator, cfg Config) *Consolidator {
	return &Consolidator{store: store, gen: gen, cfg: cfg}
}

// TempKey returns a fresh rewrite key for logKey.
func TempKey(logKey string) string {
	return logKey + ":tmp:" + ulid.Make().String()
}

func (c *Consolidator) Run(ctx context.Context) (*ConsolidationResult, error) {
	logger := logging.From(ctx)
	key := c.cfg.LogKey

	observed, err := c.store.Len(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read log length")
	}
	var all []logentry.Entry
	if observed > 0 {
		all, err = c.store.Range(ctx, key, 0, observed-1)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read log")
		}
	}

	memories := logentry.Filter(all, logentry.Entry.IsMemory)
	result := &ConsolidationResult{Memories: len(memories)}
	if len(memories) < c.cfg.ConsolidateAt {
		result.Reason = "below threshold"
		return result, nil
	}

	batch := memories[:min(c.cfg.ConsolidateBatch, len(memories))]
	contents := make([]string, len(batch))
	for i, e := range batch {
		contents[i] = e.Content
	}

	prompt, err := persona.ConsolidationPrompt(logentry.Clip(strings.Join(contents, "\n---\n"), c.cfg.MemoryClip))
	if err != nil {
		return nil, err
	}
	summary, err := c.gen.Generate(ctx, window.Window{
		{Role: window.RoleSystem, Content: persona.MaintenanceSystemPrompt},
		{Role: window.RoleUser, Content: prompt},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to merge memory entries", goerr.V("entries", len(batch)))
	}

	ctx, cancel := commitContext(ctx)
	defer cancel()

	merged := make(map[types.EntryID]struct{}, len(batch))
	for _, e := range batch {
		merged[e.ID] = struct{}{}
	}
	remaining := logentry.Filter(all, func(e logentry.Entry) bool {
		_, hit := merged[e.ID]
		return !hit
	})
	meta := logentry.NewMetaMemory(ctx, summary, logentry.IDs(batch))
	remaining = append(remaining, meta)

	if len(all) < int(observed) {
		logger.Warn("unreadable entries are dropped by the rewrite",
			"observed", observed, "readable", len(all))
	}

	tempKey := TempKey(key)
	carried, err := c.rewrite(ctx, tempKey, remaining, observed)
	if err != nil {
		if delErr := c.store.DeleteAll(ctx, tempKey); delErr != nil {
			logger.Warn("failed to delete temp log", "temp_key", tempKey, logging.ErrAttr(delErr))
		}
		return nil, err
	}

	result.Merged = len(batch)
	result.MetaMemory = &meta
	result.Carried = carried

	logger.Info("memory consolidated",
		"merged", result.Merged,
		"carried", carried,
		"log_len", len(remaining)+carried,
		"meta_memory_id", meta.ID)
	return result, nil
}

// rewrite fills tempKey, copies whatever was appended to the live log after
// observed entries were read, then swaps. An append landing between the
// last length check and the swap is still lost.
func (c *Consolidator) rewrite(ctx context.Context, tempKey string, entries []logentry.Entry, observed int64) (int, error) {
	key := c.cfg.LogKey

	if err := c.store.Append(ctx, tempKey, entries...); err != nil {
		return 0, goerr.Wrap(err, "failed to write temp log", goerr.V("temp_key", tempKey))
	}

	carried := 0
	n, err := c.store.Len(ctx, key)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to re-read log length")
	}
	if n > observed {
		tail, err := c.store.Range(ctx, key, observed, -1)
		if err != nil {
			return 0, goerr.Wrap(err, "failed to read appended tail")
		}
		if err := c.store.Append(ctx, tempKey, tail...); err != nil {
			return 0, goerr.Wrap(err, "failed to copy appended tail", goerr.V("temp_key", tempKey))
		}
		carried = len(tail)
	}

	if err := c.store.SwapFrom(ctx, tempKey, key); err != nil {
		return 0, goerr.Wrap(err, "failed to swap rewritten log", goerr.V("temp_key", tempKey))
	}
	return carried, nil
}
