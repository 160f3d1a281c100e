package storage

import (
	"bytes"
	"context"
	"io"
	"maps"
	"sort"
	"sync"

	"github.com/kazanshin/website/pkg/domain/interfaces"
	"github.com/m-mizutani/goerr/v2"
)

// MemoryClient keeps archive objects in process. It backs local runs and
// tests.
type MemoryClient struct {
	mu       sync.RWMutex
	objects  map[string][]byte
	metadata map[string]map[string]string
}

var _ interfaces.ArchiveClient = &MemoryClient{}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		objects:  make(map[string][]byte),
		metadata: make(map[string]map[string]string),
	}
}

func (m *MemoryClient) PutObject(ctx context.Context, object string, metadata map[string]string) io.WriteCloser {
	return &memoryWriter{
		client:   m,
		object:   object,
		metadata: maps.Clone(metadata),
		buffer:   &bytes.Buffer{},
	}
}

func (m *MemoryClient) GetObject(ctx context.Context, object string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.objects[object]
	if !exists {
		return nil, goerr.New("archive object not found", goerr.V("object", object))
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Metadata returns the metadata object was stored with.
func (m *MemoryClient) Metadata(object string) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.metadata[object])
}

// Objects returns the names of every stored object in lexical order.
func (m *MemoryClient) Objects() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.objects))
	for name := range m.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *MemoryClient) Close(ctx context.Context) {}

// memoryWriter publishes its buffer on Close, the way a Cloud Storage
// object only appears once its writer is closed.
type memoryWriter struct {
	client   *MemoryClient
	object   string
	metadata map[string]string
	buffer   *bytes.Buffer
	closed   bool
	mu       sync.Mutex
}

func (w *memoryWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, goerr.New("writer is closed", goerr.V("object", w.object))
	}

	return w.buffer.Write(p)
}

func (w *memoryWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.client.mu.Lock()
	defer w.client.mu.Unlock()

	w.client.objects[w.object] = w.buffer.Bytes()
	w.client.metadata[w.object] = w.metadata
	w.closed = true

	return nil
}
