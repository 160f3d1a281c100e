package storage_test

import (
	"bufio"
	"context"
	"encoding/json"
	"testing"
	"time"

	adapter "github.com/kazanshin/website/pkg/adapter/storage"
	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/domain/types"
	"github.com/kazanshin/website/pkg/service/storage"
	"github.com/kazanshin/website/pkg/utils/clock"
	"github.com/m-mizutani/gt"
)

func TestPutCompaction(t *testing.T) {
	now := time.Date(2026, 3, 7, 9, 30, 0, 0, time.UTC)
	ctx := clock.With(context.Background(), clock.Stepping(now, time.Millisecond))

	client := adapter.NewMemoryClient()
	svc := storage.New(client, storage.WithPrefix("echo/"))

	entries := []logentry.Entry{
		logentry.New(ctx, logentry.RoleUser, "hello"),
		logentry.New(ctx, logentry.RoleAssistant, "hi there"),
		logentry.New(ctx, logentry.RolePulse, "thinking about the week"),
	}
	memoryID := types.NewEntryID(now)

	gt.NoError(t, svc.PutCompaction(ctx, memoryID, entries))

	path := "echo/compaction/2026/03/07/" + memoryID.String() + ".jsonl"
	gt.A(t, client.Objects()).Equal([]string{path})
	gt.Equal(t, client.Metadata(path), map[string]string{
		"memory_id": memoryID.String(),
		"entries":   "3",
	})

	rc, err := client.GetObject(ctx, path)
	gt.NoError(t, err).Required()
	defer func() {
		_ = rc.Close()
	}()

	var got []logentry.Entry
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		var e logentry.Entry
		gt.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		got = append(got, e)
	}
	gt.NoError(t, scanner.Err())
	gt.V(t, got).Equal(entries)
}
