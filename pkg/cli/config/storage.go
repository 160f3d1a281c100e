package config

import (
	"context"
	"log/slog"

	"github.com/kazanshin/website/pkg/adapter/storage"
	"github.com/kazanshin/website/pkg/domain/interfaces"
	storagesvc "github.com/kazanshin/website/pkg/service/storage"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"
)

// Storage configures the archive bucket for compacted entries. Archiving is
// disabled when no bucket is set.
type Storage struct {
	bucket    string
	prefix    string
	projectID string
}

func (x *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage-bucket",
			Usage:       "Bucket archiving compacted entries",
			Category:    "Storage",
			Destination: &x.bucket,
			Sources:     cli.EnvVars("ECHO_STORAGE_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "storage-prefix",
			Usage:       "Object prefix in the archive bucket",
			Category:    "Storage",
			Destination: &x.prefix,
			Sources:     cli.EnvVars("ECHO_STORAGE_PREFIX"),
		},
		&cli.StringFlag{
			Name:        "storage-project-id",
			Usage:       "Quota project of the archive bucket",
			Category:    "Storage",
			Destination: &x.projectID,
			Sources:     cli.EnvVars("ECHO_STORAGE_PROJECT_ID"),
		},
	}
}

func (x *Storage) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("bucket", x.bucket),
		slog.String("prefix", x.prefix),
		slog.String("project_id", x.projectID),
	)
}

// Configure returns the archiver and a function releasing its client. Both
// are nil-safe: with no bucket the archiver is nil and close does nothing.
func (x *Storage) Configure(ctx context.Context) (interfaces.Archiver, func(), error) {
	if !x.IsConfigured() {
		return nil, func() {}, nil
	}

	var opts []option.ClientOption
	if x.projectID != "" {
		opts = append(opts, option.WithQuotaProject(x.projectID))
	}

	client, err := storage.New(ctx, x.bucket, opts...)
	if err != nil {
		return nil, nil, err
	}

	archiver := storagesvc.New(client, storagesvc.WithPrefix(x.prefix))
	return archiver, func() { client.Close(context.WithoutCancel(ctx)) }, nil
}

// Bucket returns the bucket name
func (x *Storage) Bucket() string {
	return x.bucket
}

// IsConfigured returns true if Storage is configured
func (x *Storage) IsConfigured() bool {
	return x.bucket != ""
}
