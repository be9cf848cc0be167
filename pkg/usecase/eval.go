package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/mnemo-lab/mnemosyne/pkg/agent"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/model"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/types"
	"github.com/mnemo-lab/mnemosyne/pkg/service/scramble"
	"github.com/mnemo-lab/mnemosyne/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultPoolSize is the number of agents created when none is configured.
const DefaultPoolSize = 10

// ContinueFunc decides whether another iteration should run, given how
// many have completed. The orchestrator never decides when to stop; the
// caller supplies this (an iteration budget, a stdin prompt, ...).
type ContinueFunc func(ctx context.Context, completed int) (bool, error)

// Iterations returns a ContinueFunc that runs a fixed number of
// iterations.
func Iterations(n int) ContinueFunc {
	return func(ctx context.Context, completed int) (bool, error) {
		return completed < n, nil
	}
}

// EvalUseCase drives a pool of agents through questions across iterations
// and aggregates per-question accuracy trends and per-agent scores.
type EvalUseCase struct {
	pool      []*agent.Agent
	scrambler *scramble.Scrambler
	parallel  int
}

// NewEvalUseCase builds the agent pool with stable identities (agent_0,
// agent_1, ...) so that a durable memory backend resumes prior memory
// across runs.
func NewEvalUseCase(llm gollem.LLMClient, store interfaces.MemoryStore, opts ...Option) (*EvalUseCase, error) {
	if llm == nil {
		return nil, goerr.New("LLM client is required")
	}
	if store == nil {
		return nil, goerr.New("memory store is required")
	}

	cfg := &evalConfig{
		poolSize: DefaultPoolSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var scrambleOpts []scramble.Option
	if cfg.scrambleSeed != nil {
		scrambleOpts = append(scrambleOpts, scramble.WithSeed(*cfg.scrambleSeed))
	}

	agentOpts := []agent.Option{
		agent.WithRecall(cfg.recall),
		agent.WithRetries(cfg.retries),
	}
	if cfg.inferenceTimeout > 0 {
		agentOpts = append(agentOpts, agent.WithInferenceTimeout(cfg.inferenceTimeout))
	}

	pool := make([]*agent.Agent, cfg.poolSize)
	for i := range pool {
		a, err := agent.New(llm, store, types.NewAgentID(i), agentOpts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create agent", goerr.V("index", i))
		}
		pool[i] = a
	}

	return &EvalUseCase{
		pool:      pool,
		scrambler: scramble.New(scrambleOpts...),
		parallel:  cfg.parallel,
	}, nil
}

// PoolSize returns the number of agents in the pool.
func (uc *EvalUseCase) PoolSize() int {
	return len(uc.pool)
}

// Run presents every question to the whole pool once per iteration, and
// keeps iterating while next allows it. The returned report holds every
// question's accuracy trend and the final scoreboard. Errors from
// individual agents (failed inference, failed memory writes) do not abort
// the run; they are accounted and logged.
func (uc *EvalUseCase) Run(ctx context.Context, questions []*model.Question, elements map[string]any, next ContinueFunc) (*Report, error) {
	if len(questions) == 0 {
		return nil, goerr.New("at least one question is required")
	}
	if next == nil {
		return nil, goerr.New("continuation function is required")
	}

	report := &Report{RunID: types.NewRunID()}
	logger := logging.From(ctx).With("runID", report.RunID)
	ctx = logging.With(ctx, logger)

	for {
		cont, err := next(ctx, report.Iterations)
		if err != nil {
			return nil, goerr.Wrap(err, "continuation decision failed")
		}
		if !cont {
			break
		}

		for _, q := range questions {
			qr, err := uc.AskQuestion(ctx, q, elements)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to evaluate question",
					goerr.V("question", q.Text),
					goerr.V("iteration", report.Iterations))
			}

			trend := report.trendFor(q.Text)
			trend.Accuracies = append(trend.Accuracies, qr.Accuracy)
		}

		report.Iterations++
		logger.Info("iteration completed", "iteration", report.Iterations)
	}

	report.Scores = uc.Scores()
	return report, nil
}

// AskQuestion presents one question to every agent in the pool, each with
// an independently scrambled context view, and returns the per-agent
// results plus the fraction of agents that answered correctly.
func (uc *EvalUseCase) AskQuestion(ctx context.Context, q *model.Question, elements map[string]any) (*QuestionResult, error) {
	if err := q.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid question")
	}

	// Scramble sequentially: the scrambler's random source is not safe for
	// concurrent use.
	contexts := make([]string, len(uc.pool))
	for i := range uc.pool {
		view, err := scramble.Format(uc.scrambler.Scramble(elements))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to format scrambled context")
		}
		contexts[i] = view
	}

	results := make([]AgentResult, len(uc.pool))
	if uc.parallel > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(uc.parallel)
		for i, a := range uc.pool {
			g.Go(func() error {
				results[i] = uc.evaluateAgent(gctx, a, q, contexts[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, goerr.Wrap(err, "parallel evaluation failed")
		}
		if err := ctx.Err(); err != nil {
			return nil, goerr.Wrap(err, "evaluation canceled")
		}
	} else {
		for i, a := range uc.pool {
			results[i] = uc.evaluateAgent(ctx, a, q, contexts[i])
		}
	}

	correct := 0
	for _, r := range results {
		if r.Correct {
			correct++
		}
	}

	return &QuestionResult{
		Question: q.Text,
		Results:  results,
		Accuracy: float64(correct) / float64(len(uc.pool)),
	}, nil
}

// evaluateAgent runs the answer/record/score sequence for one agent. A
// failed inference call updates neither memory nor correctness: it becomes
// a no-answer event, distinct from an incorrectly parsed answer. A failed
// memory write is best-effort: the score still applies.
func (uc *EvalUseCase) evaluateAgent(ctx context.Context, a *agent.Agent, q *model.Question, scrambledContext string) AgentResult {
	logger := logging.From(ctx)

	resp, err := a.Answer(ctx, q, scrambledContext)
	if err != nil {
		logger.Error("agent got no answer",
			"agentID", a.ID(),
			"question", q.Text,
			"error", err.Error(),
		)
		a.MarkNoAnswer()
		return AgentResult{
			AgentID:  a.ID(),
			NoAnswer: true,
			Accuracy: a.Accuracy(),
		}
	}

	correct := resp.Label.Matches(q.Answer)

	if err := a.RecordOutcome(ctx, q, resp.Label); err != nil {
		logger.Warn("failed to record outcome, memory write skipped",
			"agentID", a.ID(),
			"question", q.Text,
			"error", err.Error(),
		)
	}
	a.UpdateScore(correct)

	return AgentResult{
		AgentID:  a.ID(),
		Answer:   resp.Label.String(),
		Raw:      resp.Raw,
		Correct:  correct,
		Accuracy: a.Accuracy(),
	}
}

// Scores snapshots the cumulative per-agent standings.
func (uc *EvalUseCase) Scores() []AgentScore {
	scores := make([]AgentScore, len(uc.pool))
	for i, a := range uc.pool {
		scores[i] = AgentScore{
			AgentID:  a.ID(),
			Correct:  a.CorrectCount(),
			Total:    a.TotalCount(),
			NoAnswer: a.NoAnswerCount(),
			Accuracy: a.Accuracy(),
		}
	}
	return scores
}
