package usecase

import (
	"time"

	"github.com/m-mizutani/gollem"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/interfaces"
)

type UseCases struct {
	store interfaces.MemoryStore
	llm   gollem.LLMClient

	Eval *EvalUseCase
}

type Option func(*evalConfig)

type evalConfig struct {
	poolSize         int
	recall           int
	parallel         int
	inferenceTimeout time.Duration
	retries          int
	scrambleSeed     *uint64
}

// WithPoolSize sets the number of agents in the pool.
func WithPoolSize(n int) Option {
	return func(c *evalConfig) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// WithRecall sets how many memory records each agent feeds back into its
// prompt (0 = whole retained history).
func WithRecall(n int) Option {
	return func(c *evalConfig) {
		c.recall = n
	}
}

// WithParallel allows up to n agents to answer a question concurrently.
func WithParallel(n int) Option {
	return func(c *evalConfig) {
		if n > 1 {
			c.parallel = n
		}
	}
}

// WithInferenceTimeout bounds each inference call.
func WithInferenceTimeout(d time.Duration) Option {
	return func(c *evalConfig) {
		if d > 0 {
			c.inferenceTimeout = d
		}
	}
}

// WithRetries sets the retry budget of each inference call.
func WithRetries(n int) Option {
	return func(c *evalConfig) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithScrambleSeed makes context scrambling deterministic, for tests.
func WithScrambleSeed(seed uint64) Option {
	return func(c *evalConfig) {
		c.scrambleSeed = &seed
	}
}

func New(llm gollem.LLMClient, store interfaces.MemoryStore, opts ...Option) (*UseCases, error) {
	eval, err := NewEvalUseCase(llm, store, opts...)
	if err != nil {
		return nil, err
	}

	return &UseCases{
		store: store,
		llm:   llm,
		Eval:  eval,
	}, nil
}
