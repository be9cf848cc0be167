package interfaces

import (
	"context"

	"github.com/mnemo-lab/mnemosyne/pkg/domain/model"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/types"
)

// MemoryStore persists per-agent question outcomes. Two implementations
// exist with deliberately different retention semantics:
//
//   - the in-process store appends every record (no dedup) and evicts the
//     oldest once a fixed capacity is exceeded;
//   - the Firestore store keeps exactly one outcome per (question, agent)
//     pair, the latest answer overwriting the previous one.
//
// FetchRecent always returns records most recent first.
type MemoryStore interface {
	// Record stores the outcome of one question presentation for the agent.
	Record(ctx context.Context, agentID types.AgentID, rec *model.Record) error

	// FetchRecent returns up to limit records for the agent, most recent
	// first. limit <= 0 means no limit.
	FetchRecent(ctx context.Context, agentID types.AgentID, limit int) ([]*model.Record, error)

	// Close releases backend resources.
	Close() error
}
