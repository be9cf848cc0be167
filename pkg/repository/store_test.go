package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/model"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/types"
	"github.com/mnemo-lab/mnemosyne/pkg/repository/firestore"
	"github.com/mnemo-lab/mnemosyne/pkg/repository/memory"
)

func newTestAgentID(t *testing.T) types.AgentID {
	t.Helper()
	return types.AgentID(fmt.Sprintf("agent-test-%d", time.Now().UnixNano()))
}

func runMemoryStoreTest(t *testing.T, newStore func(t *testing.T) interfaces.MemoryStore) {
	t.Helper()

	t.Run("Record then FetchRecent returns the outcome", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		agentID := newTestAgentID(t)

		question := fmt.Sprintf("What is the capital of France? (%d)", time.Now().UnixNano())
		rec := model.NewRecord(question, "b", "b")

		gt.NoError(t, store.Record(ctx, agentID, rec)).Required()

		records, err := store.FetchRecent(ctx, agentID, 0)
		gt.NoError(t, err).Required()
		gt.Array(t, records).Length(1)
		gt.Value(t, records[0].Question).Equal(question)
		gt.Value(t, records[0].Answer).Equal(model.Label("b"))
		gt.Value(t, records[0].CorrectAnswer).Equal(model.Label("b"))
		gt.Value(t, records[0].Outcome).Equal(model.OutcomeCorrect)
	})

	t.Run("FetchRecent returns most recent first", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		agentID := newTestAgentID(t)

		base := time.Now().UnixNano()
		for i := 0; i < 3; i++ {
			question := fmt.Sprintf("Ordering question %d (%d)", i, base)
			gt.NoError(t, store.Record(ctx, agentID, model.NewRecord(question, "a", "b"))).Required()
			time.Sleep(10 * time.Millisecond)
		}

		records, err := store.FetchRecent(ctx, agentID, 0)
		gt.NoError(t, err).Required()
		gt.Array(t, records).Length(3)
		gt.Value(t, records[0].Question).Equal(fmt.Sprintf("Ordering question 2 (%d)", base))
		gt.Value(t, records[1].Question).Equal(fmt.Sprintf("Ordering question 1 (%d)", base))
		gt.Value(t, records[2].Question).Equal(fmt.Sprintf("Ordering question 0 (%d)", base))
	})

	t.Run("FetchRecent honors the limit", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		agentID := newTestAgentID(t)

		base := time.Now().UnixNano()
		for i := 0; i < 5; i++ {
			question := fmt.Sprintf("Limited question %d (%d)", i, base)
			gt.NoError(t, store.Record(ctx, agentID, model.NewRecord(question, "a", "a"))).Required()
			time.Sleep(10 * time.Millisecond)
		}

		records, err := store.FetchRecent(ctx, agentID, 2)
		gt.NoError(t, err).Required()
		gt.Array(t, records).Length(2)
		gt.Value(t, records[0].Question).Equal(fmt.Sprintf("Limited question 4 (%d)", base))
		gt.Value(t, records[1].Question).Equal(fmt.Sprintf("Limited question 3 (%d)", base))
	})

	t.Run("FetchRecent returns empty history for unknown agent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		records, err := store.FetchRecent(ctx, newTestAgentID(t), 0)
		gt.NoError(t, err).Required()
		gt.Array(t, records).Length(0)
	})

	t.Run("Record keeps invalid answer labels as incorrect outcomes", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		agentID := newTestAgentID(t)

		question := fmt.Sprintf("Unanswerable question (%d)", time.Now().UnixNano())
		rec := model.NewRecord(question, model.InvalidLabel, "c")
		gt.NoError(t, store.Record(ctx, agentID, rec)).Required()

		records, err := store.FetchRecent(ctx, agentID, 0)
		gt.NoError(t, err).Required()
		gt.Array(t, records).Length(1)
		gt.Value(t, records[0].Answer).Equal(model.InvalidLabel)
		gt.Value(t, records[0].Outcome).Equal(model.OutcomeIncorrect)
	})

	t.Run("Record rejects nil record", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		err := store.Record(ctx, newTestAgentID(t), nil)
		gt.Value(t, err).NotNil()
	})

	t.Run("Record rejects invalid agent ID", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		rec := model.NewRecord("Some question", "a", "a")
		err := store.Record(ctx, "", rec)
		gt.Value(t, err).NotNil()

		err = store.Record(ctx, "Agent With Spaces", rec)
		gt.Value(t, err).NotNil()
	})
}

func TestInProcessMemoryStore(t *testing.T) {
	runMemoryStoreTest(t, func(t *testing.T) interfaces.MemoryStore {
		return memory.New()
	})
}

func TestFirestoreMemoryStore(t *testing.T) {
	runMemoryStoreTest(t, newFirestoreStore)
}

func TestInProcessStoreAppendsAndEvicts(t *testing.T) {
	ctx := context.Background()
	agentID := newTestAgentID(t)
	store := memory.New(memory.WithCapacity(3))

	// Re-answering the same question appends a new entry.
	question := "Repeated question"
	gt.NoError(t, store.Record(ctx, agentID, model.NewRecord(question, "a", "b"))).Required()
	gt.NoError(t, store.Record(ctx, agentID, model.NewRecord(question, "b", "b"))).Required()

	records, err := store.FetchRecent(ctx, agentID, 0)
	gt.NoError(t, err).Required()
	gt.Array(t, records).Length(2)
	gt.Value(t, records[0].Outcome).Equal(model.OutcomeCorrect)
	gt.Value(t, records[1].Outcome).Equal(model.OutcomeIncorrect)

	// Exceeding the capacity evicts the oldest entries.
	for i := 0; i < 5; i++ {
		q := fmt.Sprintf("Filler question %d", i)
		gt.NoError(t, store.Record(ctx, agentID, model.NewRecord(q, "a", "a"))).Required()
	}

	records, err = store.FetchRecent(ctx, agentID, 0)
	gt.NoError(t, err).Required()
	gt.Array(t, records).Length(3)
	gt.Value(t, records[0].Question).Equal("Filler question 4")
	gt.Value(t, records[1].Question).Equal("Filler question 3")
	gt.Value(t, records[2].Question).Equal("Filler question 2")
}

func TestInProcessStoreIsolatesAgents(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	first := types.AgentID("agent-first")
	second := types.AgentID("agent-second")

	gt.NoError(t, store.Record(ctx, first, model.NewRecord("Shared question", "a", "a"))).Required()

	records, err := store.FetchRecent(ctx, second, 0)
	gt.NoError(t, err).Required()
	gt.Array(t, records).Length(0)
}

func TestFirestoreStoreUpsertsOutcome(t *testing.T) {
	store := newFirestoreStore(t)
	fs := store.(*firestore.Store)
	ctx := context.Background()
	agentID := newTestAgentID(t)

	question := fmt.Sprintf("Upserted question (%d)", time.Now().UnixNano())

	// First answer is wrong, second answer overwrites it.
	gt.NoError(t, fs.Record(ctx, agentID, model.NewRecord(question, "a", "b"))).Required()
	gt.NoError(t, fs.Record(ctx, agentID, model.NewRecord(question, "b", "b"))).Required()

	records, err := fs.FetchRecent(ctx, agentID, 0)
	gt.NoError(t, err).Required()
	gt.Array(t, records).Length(1)
	gt.Value(t, records[0].Answer).Equal(model.Label("b"))
	gt.Value(t, records[0].Outcome).Equal(model.OutcomeCorrect)

	outcome, err := fs.GetOutcome(ctx, question, agentID)
	gt.NoError(t, err).Required()
	gt.Value(t, outcome.Outcome).Equal(model.OutcomeCorrect)
}

func TestFirestoreStoreKeepsSiblingOutcomes(t *testing.T) {
	store := newFirestoreStore(t)
	fs := store.(*firestore.Store)
	ctx := context.Background()

	base := time.Now().UnixNano()
	first := types.AgentID(fmt.Sprintf("agent-sib-a-%d", base))
	second := types.AgentID(fmt.Sprintf("agent-sib-b-%d", base))
	question := fmt.Sprintf("Sibling question (%d)", base)

	gt.NoError(t, fs.Record(ctx, first, model.NewRecord(question, "a", "a"))).Required()
	gt.NoError(t, fs.Record(ctx, second, model.NewRecord(question, "c", "a"))).Required()

	// The second agent's write must not clobber the first agent's outcome.
	outcome, err := fs.GetOutcome(ctx, question, first)
	gt.NoError(t, err).Required()
	gt.Value(t, outcome.Answer).Equal(model.Label("a"))
	gt.Value(t, outcome.Outcome).Equal(model.OutcomeCorrect)

	outcome, err = fs.GetOutcome(ctx, question, second)
	gt.NoError(t, err).Required()
	gt.Value(t, outcome.Answer).Equal(model.Label("c"))
	gt.Value(t, outcome.Outcome).Equal(model.OutcomeIncorrect)
}

func TestFirestoreStoreGetOutcomeNotFound(t *testing.T) {
	store := newFirestoreStore(t)
	fs := store.(*firestore.Store)
	ctx := context.Background()

	base := time.Now().UnixNano()
	question := fmt.Sprintf("Never asked question (%d)", base)

	_, err := fs.GetOutcome(ctx, question, "agent-absent")
	gt.Value(t, err).NotNil()
	gt.Bool(t, errors.Is(err, firestore.ErrNotFound)).True()

	// A question another agent answered is still not found for this one.
	answered := types.AgentID(fmt.Sprintf("agent-other-%d", base))
	gt.NoError(t, fs.Record(ctx, answered, model.NewRecord(question, "a", "a"))).Required()

	_, err = fs.GetOutcome(ctx, question, "agent-absent")
	gt.Value(t, err).NotNil()
	gt.Bool(t, errors.Is(err, firestore.ErrNotFound)).True()
}

func newFirestoreStore(t *testing.T) interfaces.MemoryStore {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	store, err := firestore.New(ctx, projectID, databaseID, firestore.WithCollectionPrefix("test"))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, store.Close())
	})
	return store
}
