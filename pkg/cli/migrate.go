package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mnemo-lab/mnemosyne/pkg/repository/firestore"
	"github.com/mnemo-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var projectID string
	var databaseID string

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate Firestore indexes for the durable memory backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "firestore-project-id",
				Usage:       "Firestore Project ID (required)",
				Required:    true,
				Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_PROJECT_ID"),
				Destination: &projectID,
			},
			&cli.StringFlag{
				Name:        "firestore-database-id",
				Usage:       "Firestore Database ID",
				Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_DATABASE_ID"),
				Destination: &databaseID,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			logger.Info("Migrate configuration",
				"projectID", projectID,
				"databaseID", databaseID)

			indexConfig := getIndexConfig()

			logger.Info("Applying migrations")
			client, err := fireconf.New(ctx, projectID, databaseID, indexConfig)
			if err != nil {
				return goerr.Wrap(err, "failed to apply migrations",
					goerr.V("projectID", projectID),
					goerr.V("databaseID", databaseID))
			}
			if err := client.Migrate(ctx); err != nil {
				return goerr.Wrap(err, "failed to apply migrations",
					goerr.V("projectID", projectID),
					goerr.V("databaseID", databaseID))
			}
			logger.Info("Migrations applied successfully")

			return nil
		},
	}
}

// getIndexConfig returns the Firestore index configuration
func getIndexConfig() *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: firestore.QuestionsCollectionName,
				Indexes: []fireconf.Index{
					// FetchRecent: AgentIDs array-contains + CreatedAt DESC
					{
						Fields: []fireconf.IndexField{
							{Path: "AgentIDs", Array: fireconf.ArrayConfigContains},
							{Path: "CreatedAt", Order: fireconf.OrderDescending},
						},
					},
				},
			},
		},
	}
}
