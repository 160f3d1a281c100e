package storage

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/kazanshin/website/pkg/domain/interfaces"
	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/utils/safe"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
)

// ArchiveContentType is the media type of archive objects, one JSON
// encoded log entry per line.
const ArchiveContentType = "application/x-ndjson"

// Client writes compaction archive objects to one Cloud Storage bucket.
type Client struct {
	client *storage.Client
	bucket string
	eb     *goerr.Builder
}

var _ interfaces.ArchiveClient = &Client{}

func New(ctx context.Context, bucket string, opts ...option.ClientOption) (*Client, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create archive storage client",
			goerr.V("bucket", bucket), goerr.T(errs.TagArchiveUnavailable))
	}

	return &Client{
		client: client,
		bucket: bucket,
		eb:     goerr.NewBuilder(goerr.V("bucket", bucket), goerr.T(errs.TagArchiveUnavailable)),
	}, nil
}

// PutObject opens a writer for object. Upload errors surface from Close.
func (x *Client) PutObject(ctx context.Context, object string, metadata map[string]string) io.WriteCloser {
	w := x.client.Bucket(x.bucket).Object(object).NewWriter(ctx)
	w.ContentType = ArchiveContentType
	w.Metadata = metadata
	return &archiveWriter{w: w, eb: x.eb, object: object}
}

func (x *Client) GetObject(ctx context.Context, object string) (io.ReadCloser, error) {
	rc, err := x.client.Bucket(x.bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, x.eb.Wrap(err, "failed to open archive object", goerr.V("object", object))
	}
	return rc, nil
}

func (x *Client) Close(ctx context.Context) {
	safe.Close(ctx, x.client)
}

// archiveWriter tags write and upload failures with the bucket and object.
type archiveWriter struct {
	w      *storage.Writer
	eb     *goerr.Builder
	object string
}

func (a *archiveWriter) Write(p []byte) (int, error) {
	n, err := a.w.Write(p)
	if err != nil {
		return n, a.eb.Wrap(err, "failed to write archive object", goerr.V("object", a.object))
	}
	return n, nil
}

func (a *archiveWriter) Close() error {
	if err := a.w.Close(); err != nil {
		return a.eb.Wrap(err, "failed to upload archive object", goerr.V("object", a.object))
	}
	return nil
}
