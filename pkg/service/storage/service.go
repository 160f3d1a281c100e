package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/kazanshin/website/pkg/domain/interfaces"
	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/domain/types"
	"github.com/kazanshin/website/pkg/utils/clock"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Service archives the raw entries that compaction replaces, one JSON Lines
// object per memory entry.
type Service struct {
	prefix        string
	storageClient interfaces.ArchiveClient
}

func New(storageClient interfaces.ArchiveClient, opts ...Option) *Service {
	s := &Service{storageClient: storageClient}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Option func(*Service)

func WithPrefix(prefix string) Option {
	return func(s *Service) {
		s.prefix = prefix
	}
}

// CompactionPath returns the object name for the batch summarised by memoryID.
func CompactionPath(ctx context.Context, prefix string, memoryID types.EntryID) string {
	now := clock.Now(ctx).UTC()
	return fmt.Sprintf("%scompaction/%04d/%02d/%02d/%s.jsonl",
		prefix, now.Year(), int(now.Month()), now.Day(), memoryID)
}

// PutCompaction writes entries, in log order, under memoryID.
func (s *Service) PutCompaction(ctx context.Context, memoryID types.EntryID, entries []logentry.Entry) error {
	path := CompactionPath(ctx, s.prefix, memoryID)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return goerr.Wrap(err, "failed to encode archive entry",
				goerr.V("path", path),
				goerr.V("entry_id", e.ID))
		}
	}

	w := s.storageClient.PutObject(ctx, path, map[string]string{
		"memory_id": memoryID.String(),
		"entries":   strconv.Itoa(len(entries)),
	})
	if _, err := w.Write(buf.Bytes()); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write archive object", goerr.V("path", path))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to close archive object", goerr.V("path", path))
	}

	logging.From(ctx).Info("archived compaction batch",
		"path", path,
		"entries", len(entries),
		"size", humanize.Bytes(uint64(buf.Len())))
	return nil
}
