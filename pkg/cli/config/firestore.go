package config

import (
	"context"
	"log/slog"

	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/repository/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

type Firestore struct {
	projectID        string
	databaseID       string
	collectionPrefix string
}

func (c *Firestore) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore project ID",
			Destination: &c.projectID,
			Category:    "Firestore",
			Sources:     cli.EnvVars("ECHO_FIRESTORE_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore database ID",
			Destination: &c.databaseID,
			Category:    "Firestore",
			Sources:     cli.EnvVars("ECHO_FIRESTORE_DATABASE_ID"),
			Value:       "(default)",
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Usage:       "Prefix of the collections holding lists and locks",
			Destination: &c.collectionPrefix,
			Category:    "Firestore",
			Sources:     cli.EnvVars("ECHO_FIRESTORE_COLLECTION_PREFIX"),
		},
	}
}

func (c Firestore) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("project_id", c.projectID),
		slog.String("database_id", c.databaseID),
		slog.String("collection_prefix", c.collectionPrefix),
	)
}

func (c *Firestore) Configure(ctx context.Context) (*firestore.Firestore, error) {
	if !c.IsConfigured() {
		return nil, goerr.New("firestore project ID is not set", goerr.T(errs.TagValidation))
	}

	var opts []firestore.Option
	if c.collectionPrefix != "" {
		opts = append(opts, firestore.WithCollectionPrefix(c.collectionPrefix))
	}
	return firestore.New(ctx, c.projectID, c.databaseID, opts...)
}

// IsConfigured returns true if Firestore is configured
func (c *Firestore) IsConfigured() bool {
	return c.projectID != ""
}
