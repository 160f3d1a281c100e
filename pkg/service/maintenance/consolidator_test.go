package maintenance_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/domain/model/window"
	"github.com/kazanshin/website/pkg/repository/memory"
	"github.com/kazanshin/website/pkg/service/maintenance"
	"github.com/m-mizutani/gt"
)

// seedMemories builds a log holding one old meta-memory, n memory entries
// interleaved with conversation, and a trailing user turn.
func seedMemories(t *testing.T, ctx context.Context, store *memory.Memory, key string, n int) (meta logentry.Entry, memories []logentry.Entry) {
	t.Helper()
	meta = logentry.NewMetaMemory(ctx, "an older consolidated note", nil)
	gt.NoError(t, store.Append(ctx, key, meta)).Required()
	for i := range n {
		m := logentry.NewMemory(ctx, fmt.Sprintf("memory %d", i), nil)
		memories = append(memories, m)
		gt.NoError(t, store.Append(ctx, key, m, logentry.New(ctx, logentry.RoleUser, fmt.Sprintf("turn %d", i)))).Required()
	}
	gt.NoError(t, store.Append(ctx, key, logentry.New(ctx, logentry.RoleUser, "latest"))).Required()
	return meta, memories
}

func TestConsolidatorBelowThreshold(t *testing.T) {
	ctx := testCtx(t)
	store := memory.New()
	gen := &fakeGenerator{}
	cfg := testConfig()
	seedMemories(t, ctx, store, cfg.LogKey, 29)

	result, err := maintenance.NewConsolidator(store, gen, cfg).Run(ctx)
	gt.NoError(t, err)
	gt.V(t, result.Reason).Equal("below threshold")
	gt.V(t, result.Memories).Equal(29)
	gt.V(t, gen.calls()).Equal(0)
	gt.V(t, store.CallCount("SwapFrom")).Equal(0)
}

func TestConsolidatorMerge(t *testing.T) {
	ctx := testCtx(t)
	store := memory.New()
	gen := &fakeGenerator{reply: func(ctx context.Context, w window.Window) (string, error) {
		return "merged note", nil
	}}
	cfg := testConfig()
	oldMeta, memories := seedMemories(t, ctx, store, cfg.LogKey, 30)
	before := readAll(t, ctx, store, cfg.LogKey)

	result, err := maintenance.NewConsolidator(store, gen, cfg).Run(ctx)
	gt.NoError(t, err).Required()
	gt.V(t, result.Merged).Equal(10)
	gt.V(t, result.Carried).Equal(0)

	prompt := gen.lastPrompt()
	gt.S(t, prompt).Contains("memory 0\n---\nmemory 1\n---\n")
	gt.S(t, prompt).Contains("memory 9")
	gt.S(t, prompt).NotContains("memory 10")

	after := readAll(t, ctx, store, cfg.LogKey)
	gt.A(t, after).Length(len(before) - 10 + 1)

	ids := map[string]bool{}
	for _, e := range after {
		ids[e.ID.String()] = true
	}
	for _, m := range memories[:10] {
		gt.False(t, ids[m.ID.String()])
	}
	for _, m := range memories[10:] {
		gt.True(t, ids[m.ID.String()])
	}

	// The previous meta-memory survives and exactly one new one is added.
	gt.V(t, after[0].ID).Equal(oldMeta.ID)
	gt.V(t, countKind(after, logentry.KindMetaMemory)).Equal(2)
	last := after[len(after)-1]
	gt.True(t, last.IsMetaMemory())
	gt.V(t, last.Content).Equal("merged note")
	gt.V(t, last.Sources).Equal(logentry.IDs(memories[:10]))
	gt.V(t, countKind(after, logentry.KindMemory)).Equal(20)
}

func TestConsolidatorCarriesConcurrentAppend(t *testing.T) {
	ctx := testCtx(t)
	store := memory.New()
	cfg := testConfig()
	seedMemories(t, ctx, store, cfg.LogKey, 30)
	before := readAll(t, ctx, store, cfg.LogKey)

	late := logentry.New(ctx, logentry.RoleUser, "arrived during consolidation")
	gen := &fakeGenerator{reply: func(ctx context.Context, w window.Window) (string, error) {
		return "merged", store.Append(ctx, cfg.LogKey, late)
	}}

	result, err := maintenance.NewConsolidator(store, gen, cfg).Run(ctx)
	gt.NoError(t, err).Required()
	gt.V(t, result.Carried).Equal(1)

	after := readAll(t, ctx, store, cfg.LogKey)
	gt.A(t, after).Length(len(before) - 10 + 1 + 1)
	gt.V(t, after[len(after)-1].ID).Equal(late.ID)
	gt.True(t, after[len(after)-2].IsMetaMemory())
}

func TestConsolidatorGenerationFailure(t *testing.T) {
	ctx := testCtx(t)
	store := memory.New()
	gen := &fakeGenerator{reply: func(ctx context.Context, w window.Window) (string, error) {
		return "", errors.New("timeout")
	}}
	cfg := testConfig()
	seedMemories(t, ctx, store, cfg.LogKey, 30)
	before := readAll(t, ctx, store, cfg.LogKey)

	_, err := maintenance.NewConsolidator(store, gen, cfg).Run(ctx)
	gt.Error(t, err)
	gt.V(t, readAll(t, ctx, store, cfg.LogKey)).Equal(before)
	gt.V(t, store.CallCount("SwapFrom")).Equal(0)
}

// swapFailStore fails every swap and remembers the temp key it was given.
type swapFailStore struct {
	*memory.Memory
	tempKey string
}

func (s *swapFailStore) SwapFrom(ctx context.Context, tempKey, liveKey string) error {
	s.tempKey = tempKey
	return errors.New("rename failed")
}

func TestConsolidatorSwapFailure(t *testing.T) {
	ctx := testCtx(t)
	store := &swapFailStore{Memory: memory.New()}
	cfg := testConfig()
	seedMemories(t, ctx, store.Memory, cfg.LogKey, 30)
	before := readAll(t, ctx, store.Memory, cfg.LogKey)

	_, err := maintenance.NewConsolidator(store, &fakeGenerator{}, cfg).Run(ctx)
	gt.Error(t, err)
	gt.True(t, strings.HasPrefix(store.tempKey, cfg.LogKey+":tmp:"))

	n, err := store.Len(ctx, store.tempKey)
	gt.NoError(t, err)
	gt.V(t, n).Equal(int64(0))
	gt.V(t, readAll(t, ctx, store.Memory, cfg.LogKey)).Equal(before)
}

func TestTempKey(t *testing.T) {
	a := maintenance.TempKey("echo:log")
	b := maintenance.TempKey("echo:log")
	gt.S(t, a).NotEqual(b)
	gt.True(t, strings.HasPrefix(a, "echo:log:tmp:"))
}
