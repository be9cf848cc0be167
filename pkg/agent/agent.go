package agent

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/model"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/types"
	"github.com/mnemo-lab/mnemosyne/pkg/utils/logging"
)

//go:embed prompt/answer.md
var answerPromptTmpl string

var answerPrompt = template.Must(template.New("answer").Parse(answerPromptTmpl))

const (
	defaultInferenceTimeout = 60 * time.Second
	defaultRetries          = 2
	retryInterval           = 2 * time.Second
)

// Agent couples an inference-service handle, a memory-store handle, and a
// stable identity. It answers questions given context, records outcomes
// into its memory, and keeps running accuracy counters.
type Agent struct {
	id      types.AgentID
	llm     gollem.LLMClient
	store   interfaces.MemoryStore
	recall  int
	timeout time.Duration
	retries int

	correct  int
	total    int
	noAnswer int
}

type Option func(*Agent)

// WithRecall sets how many recent memory records are fetched into the
// prompt. recall <= 0 fetches the whole retained history.
func WithRecall(n int) Option {
	return func(a *Agent) {
		a.recall = n
	}
}

// WithInferenceTimeout bounds a single inference call.
func WithInferenceTimeout(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithRetries sets how many times a failed inference call is retried
// before the presentation is surfaced as a no-answer event.
func WithRetries(n int) Option {
	return func(a *Agent) {
		if n >= 0 {
			a.retries = n
		}
	}
}

// New creates an agent with the given identity.
func New(llm gollem.LLMClient, store interfaces.MemoryStore, id types.AgentID, opts ...Option) (*Agent, error) {
	if llm == nil {
		return nil, goerr.New("LLM client is required")
	}
	if store == nil {
		return nil, goerr.New("memory store is required")
	}
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid agent ID")
	}

	a := &Agent{
		id:      id,
		llm:     llm,
		store:   store,
		timeout: defaultInferenceTimeout,
		retries: defaultRetries,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Response is the result of one inference call for one question.
type Response struct {
	Label model.Label
	Raw   string
}

// Answer presents a question to the agent with the given scrambled context
// block. The agent's recent memory is fetched, serialized into the prompt,
// and the model response is parsed into a label. No score or memory is
// mutated here; a failed inference call leaves the agent untouched.
func (a *Agent) Answer(ctx context.Context, q *model.Question, scrambledContext string) (*Response, error) {
	records, err := a.store.FetchRecent(ctx, a.id, a.recall)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch memory", goerr.V("agentID", a.id))
	}

	prompt, err := a.renderPrompt(q, scrambledContext, records)
	if err != nil {
		return nil, err
	}

	raw, err := a.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	label := NewExtractor(q.Labels()).Extract(raw)
	logging.From(ctx).Debug("agent answered",
		"agentID", a.id,
		"label", label,
		"memorySize", len(records),
	)

	return &Response{Label: label, Raw: raw}, nil
}

func (a *Agent) renderPrompt(q *model.Question, scrambledContext string, records []*model.Record) (string, error) {
	entries := make([]string, len(records))
	for i, rec := range records {
		entries[i] = rec.Format()
	}

	var buf bytes.Buffer
	err := answerPrompt.Execute(&buf, map[string]string{
		"MCQ":      q.Render(),
		"Elements": scrambledContext,
		"Memory":   strings.Join(entries, "\n\n"),
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to render answer prompt", goerr.V("agentID", a.id))
	}

	return buf.String(), nil
}

func (a *Agent) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		if attempt > 0 {
			logging.From(ctx).Warn("retrying inference call",
				"agentID", a.id,
				"attempt", attempt,
				"error", lastErr.Error(),
			)
			select {
			case <-ctx.Done():
				return "", goerr.Wrap(ctx.Err(), "inference canceled", goerr.V("agentID", a.id))
			case <-time.After(retryInterval):
			}
		}

		raw, err := a.generateOnce(ctx, prompt)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return "", goerr.Wrap(lastErr, "inference failed after retries",
		goerr.V("agentID", a.id),
		goerr.V("retries", a.retries))
}

func (a *Agent) generateOnce(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	session, err := a.llm.NewSession(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(prompt))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content")
	}
	if resp == nil || len(resp.Texts) == 0 {
		return "", goerr.New("LLM returned empty response")
	}

	return strings.Join(resp.Texts, "\n"), nil
}

// RecordOutcome computes the outcome of an answered question and writes an
// immutable record into the agent's memory.
func (a *Agent) RecordOutcome(ctx context.Context, q *model.Question, answer model.Label) error {
	rec := model.NewRecord(q.Text, answer, q.Answer)
	if err := a.store.Record(ctx, a.id, rec); err != nil {
		return goerr.Wrap(err, "failed to record outcome", goerr.V("agentID", a.id))
	}
	return nil
}

// UpdateScore increments the agent's counters for one scored presentation.
func (a *Agent) UpdateScore(correct bool) {
	a.total++
	if correct {
		a.correct++
	}
}

// MarkNoAnswer accounts for a presentation where inference failed after
// retries: it counts against total without a correct credit and is tracked
// separately from a parsed-but-wrong answer.
func (a *Agent) MarkNoAnswer() {
	a.total++
	a.noAnswer++
}

// Accuracy is correct/total, 0 when nothing has been answered yet.
func (a *Agent) Accuracy() float64 {
	if a.total == 0 {
		return 0
	}
	return float64(a.correct) / float64(a.total)
}

func (a *Agent) ID() types.AgentID { return a.id }

func (a *Agent) CorrectCount() int { return a.correct }

func (a *Agent) TotalCount() int { return a.total }

func (a *Agent) NoAnswerCount() int { return a.noAnswer }
