package interfaces

import (
	"context"
	"io"

	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/domain/model/window"
	"github.com/kazanshin/website/pkg/domain/types"
)

// Generator produces one completion for a message window.
type Generator interface {
	Generate(ctx context.Context, w window.Window) (string, error)
}

// ArchiveClient stores compacted raw entries for later inspection. An
// object becomes visible when its writer is closed; metadata is attached to
// the object as it is.
type ArchiveClient interface {
	PutObject(ctx context.Context, object string, metadata map[string]string) io.WriteCloser
	Close(ctx context.Context)
}

// Archiver keeps the raw entries a memory entry replaced.
type Archiver interface {
	PutCompaction(ctx context.Context, memoryID types.EntryID, entries []logentry.Entry) error
}
