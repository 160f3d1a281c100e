package maintenance_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/domain/model/window"
	"github.com/kazanshin/website/pkg/repository/memory"
	"github.com/kazanshin/website/pkg/service/maintenance"
	"github.com/kazanshin/website/pkg/utils/clock"
	"github.com/m-mizutani/gt"
)

type fakeGenerator struct {
	mu      sync.Mutex
	windows []window.Window
	reply   func(ctx context.Context, w window.Window) (string, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, w window.Window) (string, error) {
	g.mu.Lock()
	g.windows = append(g.windows, w)
	g.mu.Unlock()
	if g.reply == nil {
		return "summary", nil
	}
	return g.reply(ctx, w)
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.windows)
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	w := g.windows[len(g.windows)-1]
	return w[len(w)-1].Content
}

func testCtx(t *testing.T) context.Context {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return clock.With(t.Context(), clock.Stepping(base, time.Millisecond))
}

func testConfig() maintenance.Config {
	return maintenance.DefaultConfig()
}

// seedTurns appends n alternating user and assistant entries.
func seedTurns(t *testing.T, ctx context.Context, store *memory.Memory, key string, n int) []logentry.Entry {
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

func readAll(t *testing.T, ctx context.Context, store *memory.Memory, key string) []logentry.Entry {
	t.Helper()
	entries, err := store.Range(ctx, key, 0, -1)
	gt.NoError(t, err).Required()
	return entries
}

func countKind(entries []logentry.Entry, kind logentry.Kind) int {
	n := 0
	for _, e := range entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
