package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/mnemo-lab/mnemosyne/pkg/repository/firestore"
	"github.com/mnemo-lab/mnemosyne/pkg/repository/memory"
	"github.com/mnemo-lab/mnemosyne/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Repository holds CLI flags for memory store backend configuration
type Repository struct {
	backend    string
	projectID  string
	databaseID string
	capacity   int
	recall     int
}

// Flags returns CLI flags for memory store configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "memory-backend",
			Usage:       "Memory store backend (memory or firestore)",
			Value:       "memory",
			Sources:     cli.EnvVars("MNEMOSYNE_MEMORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.IntFlag{
			Name:        "memory-capacity",
			Usage:       "Per-agent record cap of the in-process backend",
			Value:       memory.DefaultCapacity,
			Sources:     cli.EnvVars("MNEMOSYNE_MEMORY_CAPACITY"),
			Destination: &r.capacity,
		},
		&cli.IntFlag{
			Name:        "memory-recall",
			Usage:       "How many recent records are fed back into prompts (0 = whole history, firestore default 5)",
			Sources:     cli.EnvVars("MNEMOSYNE_MEMORY_RECALL"),
			Destination: &r.recall,
		},
	}
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// Recall returns the prompt recall limit for the configured backend. The
// in-process backend feeds the whole retained history into prompts; the
// firestore backend retrieves only the most recent documents.
func (r *Repository) Recall() int {
	if r.recall > 0 {
		return r.recall
	}
	if r.backend == "firestore" {
		return firestore.DefaultRecall
	}
	return 0
}

// Configure initializes and returns a memory store based on the configured
// backend. The caller is responsible for calling Close() on the returned
// store.
func (r *Repository) Configure(ctx context.Context) (interfaces.MemoryStore, error) {
	switch r.backend {
	case "firestore":
		if r.projectID == "" {
			return nil, goerr.New("firestore-project-id is required when using firestore backend")
		}
		store, err := firestore.New(ctx, r.projectID, r.databaseID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore memory store")
		}
		logging.Default().Info("Using Firestore memory store",
			"project_id", r.projectID,
			"database_id", r.databaseID,
			"recall", r.Recall(),
		)
		return store, nil

	case "memory":
		logging.Default().Info("Using in-process memory store",
			"capacity", r.capacity,
		)
		return memory.New(memory.WithCapacity(r.capacity)), nil

	default:
		return nil, goerr.New("invalid memory backend", goerr.V("backend", r.backend))
	}
}
