package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/model"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var ErrNotFound = goerr.New("not found")

// schemaVersion of questionDoc. Bump when the document layout changes.
const schemaVersion = 1

// DefaultRecall is how many recent question documents a context query
// retrieves by default.
const DefaultRecall = 5

// questionDoc is one Firestore document per distinct question text. Each
// agent's latest outcome for the question lives in its own sub-field of
// Agents, so concurrent writers touch disjoint field paths. AgentIDs
// mirrors the Agents keys because Firestore cannot query for map-key
// existence directly.
type questionDoc struct {
	Question      string                `firestore:"Question"`
	Agents        map[string]outcomeDoc `firestore:"Agents"`
	AgentIDs      []string              `firestore:"AgentIDs"`
	SchemaVersion int                   `firestore:"SchemaVersion"`
	CreatedAt     time.Time             `firestore:"CreatedAt"`
	UpdatedAt     time.Time             `firestore:"UpdatedAt"`
}

type outcomeDoc struct {
	Answer        string    `firestore:"Answer"`
	CorrectAnswer string    `firestore:"CorrectAnswer"`
	Result        string    `firestore:"Result"`
	AnsweredAt    time.Time `firestore:"AnsweredAt"`
}

func toOutcomeDoc(rec *model.Record) outcomeDoc {
	return outcomeDoc{
		Answer:        string(rec.Answer),
		CorrectAnswer: string(rec.CorrectAnswer),
		Result:        string(rec.Outcome),
		AnsweredAt:    rec.AnsweredAt,
	}
}

func (d *questionDoc) toRecord(agentID types.AgentID) *model.Record {
	o, ok := d.Agents[string(agentID)]
	if !ok {
		return nil
	}
	return &model.Record{
		Question:      d.Question,
		Answer:        model.Label(o.Answer),
		CorrectAnswer: model.Label(o.CorrectAnswer),
		Outcome:       model.Outcome(o.Result),
		AnsweredAt:    o.AnsweredAt,
	}
}

// Store is the durable MemoryStore variant backed by Firestore. Memory is
// scoped per distinct question text, not per chronological event: an agent
// that re-answers a question overwrites its outcome for that question.
type Store struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.MemoryStore = &Store{}

type Option func(*Store)

// WithCollectionPrefix namespaces the questions collection, used to keep
// test documents apart from production ones.
func WithCollectionPrefix(prefix string) Option {
	return func(s *Store) {
		s.collectionPrefix = prefix
	}
}

// New creates the Firestore-backed store and probes the backend so that
// unreachable persistence aborts startup instead of failing on the first
// Record call.
func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Store, error) {
	var client *firestore.Client
	var err error
	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.questionsCollection().Limit(1).Documents(ctx).GetAll(); err != nil {
		_ = client.Close()
		return nil, goerr.Wrap(err, "firestore is not reachable",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	return s, nil
}

// QuestionsCollectionName is the collection holding per-question memory
// documents, subject to the configured prefix.
const QuestionsCollectionName = "questions"

func (s *Store) questionsCollection() *firestore.CollectionRef {
	name := QuestionsCollectionName
	if s.collectionPrefix != "" {
		name = s.collectionPrefix + "_" + name
	}
	return s.client.Collection(name)
}

func questionDocID(questionText string) string {
	sum := sha256.Sum256([]byte(questionText))
	return hex.EncodeToString(sum[:])
}

// Record upserts the agent's outcome for the record's question. A new
// question text creates a fresh document; an existing one receives a
// field-scoped update of only this agent's sub-field, leaving sibling
// agents' outcomes untouched even under concurrent writers.
func (s *Store) Record(ctx context.Context, agentID types.AgentID, rec *model.Record) error {
	if err := agentID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid agent ID")
	}
	if rec == nil {
		return goerr.New("record is required", goerr.V("agentID", agentID))
	}

	ref := s.questionsCollection().Doc(questionDocID(rec.Question))
	outcome := toOutcomeDoc(rec)
	now := time.Now().UTC()

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return tx.Create(ref, &questionDoc{
				Question:      rec.Question,
				Agents:        map[string]outcomeDoc{string(agentID): outcome},
				AgentIDs:      []string{string(agentID)},
				SchemaVersion: schemaVersion,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
		}
		if err != nil {
			return err
		}

		return tx.Update(ref, []firestore.Update{
			{FieldPath: firestore.FieldPath{"Agents", string(agentID)}, Value: outcome},
			{Path: "AgentIDs", Value: firestore.ArrayUnion(string(agentID))},
			{Path: "UpdatedAt", Value: now},
		})
	})
	if err != nil {
		return goerr.Wrap(err, "failed to record outcome",
			goerr.V("agentID", agentID),
			goerr.V("question", rec.Question))
	}

	return nil
}

// FetchRecent returns the agent's outcomes from the most recently created
// question documents the agent has answered. Overwriting an outcome does
// not change CreatedAt, so recall order follows insertion order.
func (s *Store) FetchRecent(ctx context.Context, agentID types.AgentID, limit int) ([]*model.Record, error) {
	if err := agentID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid agent ID")
	}

	query := s.questionsCollection().
		Where("AgentIDs", "array-contains", string(agentID)).
		OrderBy("CreatedAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var records []*model.Record
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate question documents",
				goerr.V("agentID", agentID))
		}

		var d questionDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to decode question document",
				goerr.V("docID", doc.Ref.ID))
		}

		if rec := d.toRecord(agentID); rec != nil {
			records = append(records, rec)
		}
	}

	return records, nil
}

// GetOutcome retrieves the stored outcome of one agent for one question
// text. Returns ErrNotFound when the question document or the agent's
// sub-field does not exist.
func (s *Store) GetOutcome(ctx context.Context, questionText string, agentID types.AgentID) (*model.Record, error) {
	doc, err := s.questionsCollection().Doc(questionDocID(questionText)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "question not recorded",
				goerr.V("question", questionText))
		}
		return nil, goerr.Wrap(err, "failed to get question document",
			goerr.V("question", questionText))
	}

	var d questionDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to decode question document",
			goerr.V("docID", doc.Ref.ID))
	}

	rec := d.toRecord(agentID)
	if rec == nil {
		return nil, goerr.Wrap(ErrNotFound, "agent has no outcome for question",
			goerr.V("question", questionText),
			goerr.V("agentID", agentID))
	}

	return rec, nil
}

func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
