package memory

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/model"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/types"
)

// DefaultCapacity is the per-agent record cap of the in-process store.
const DefaultCapacity = 500

// Store is the in-process MemoryStore variant. Each agent's history is a
// bounded FIFO sequence: Record appends (re-answering the same question
// adds a new entry) and evicts the oldest entry once the capacity is
// exceeded.
type Store struct {
	mu       sync.RWMutex
	capacity int
	history  map[types.AgentID][]*model.Record
}

var _ interfaces.MemoryStore = &Store{}

type Option func(*Store)

// WithCapacity overrides the per-agent record cap.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		capacity: DefaultCapacity,
		history:  make(map[types.AgentID][]*model.Record),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func copyRecord(r *model.Record) *model.Record {
	copied := *r
	return &copied
}

func (s *Store) Record(ctx context.Context, agentID types.AgentID, rec *model.Record) error {
	if err := agentID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid agent ID")
	}
	if rec == nil {
		return goerr.New("record is required", goerr.V("agentID", agentID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := append(s.history[agentID], copyRecord(rec))
	if len(seq) > s.capacity {
		seq = seq[len(seq)-s.capacity:]
	}
	s.history[agentID] = seq

	return nil
}

func (s *Store) FetchRecent(ctx context.Context, agentID types.AgentID, limit int) ([]*model.Record, error) {
	if err := agentID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid agent ID")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seq := s.history[agentID]
	n := len(seq)
	if limit > 0 && limit < n {
		n = limit
	}

	// Most recent first: walk the appended sequence backwards.
	result := make([]*model.Record, 0, n)
	for i := len(seq) - 1; i >= len(seq)-n; i-- {
		result = append(result, copyRecord(seq[i]))
	}

	return result, nil
}

func (s *Store) Close() error {
	return nil
}
