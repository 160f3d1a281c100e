package storage_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/kazanshin/website/pkg/adapter/storage"
	"github.com/kazanshin/website/pkg/utils/test"
	"github.com/m-mizutani/gt"
)

func TestClient(t *testing.T) {
	vars := test.NewEnvVars(t, "TEST_STORAGE_BUCKET")
	prefix := "test-" + time.Now().Format("20060102150405") + "/"

	ctx := context.Background()
	client, err := storage.New(ctx, vars.Get("TEST_STORAGE_BUCKET"))
	gt.NoError(t, err).Required()
	defer client.Close(ctx)

	objectName := prefix + "compaction.jsonl"
	testData := []byte(`{"role":"user","content":"hi","ts":"2026-03-01T00:00:00.000Z"}` + "\n")

	t.Run("PutObject", func(t *testing.T) {
		w := client.PutObject(ctx, objectName, map[string]string{"memory_id": "test"})
		_, err := w.Write(testData)
		gt.NoError(t, err).Required()
		gt.NoError(t, w.Close())
	})

	t.Run("GetObject", func(t *testing.T) {
		rc, err := client.GetObject(ctx, objectName)
		gt.NoError(t, err).Required()
		defer func() {
			_ = rc.Close()
		}()

		data, err := io.ReadAll(rc)
		gt.NoError(t, err)
		gt.Array(t, data).Equal(testData)
	})

	t.Run("GetObject not found", func(t *testing.T) {
		_, err := client.GetObject(ctx, prefix+"non-existent-object")
		gt.Error(t, err)
		gt.True(t, errors.Is(err, gcs.ErrObjectNotExist))
	})
}
