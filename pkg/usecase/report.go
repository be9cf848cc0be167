package usecase

import (
	"github.com/mnemo-lab/mnemosyne/pkg/domain/types"
)

// AgentResult is one agent's outcome for one question presentation.
type AgentResult struct {
	AgentID  types.AgentID
	Answer   string
	Raw      string
	Correct  bool
	NoAnswer bool
	Accuracy float64
}

// QuestionResult is the pool's outcome for one question in one iteration.
// Accuracy is the fraction of agents that answered correctly.
type QuestionResult struct {
	Question string
	Results  []AgentResult
	Accuracy float64
}

// QuestionTrend is the ordered sequence of per-iteration accuracies for
// one question, used to observe whether repeated exposure improves agent
// performance.
type QuestionTrend struct {
	Question   string
	Accuracies []float64
}

// AgentScore is one agent's cumulative standing across the whole run.
type AgentScore struct {
	AgentID  types.AgentID
	Correct  int
	Total    int
	NoAnswer int
	Accuracy float64
}

// Report aggregates a run: per-question accuracy trends plus the final
// per-agent scoreboard.
type Report struct {
	RunID      types.RunID
	Iterations int
	Trends     []QuestionTrend
	Scores     []AgentScore
}

func (r *Report) trendFor(question string) *QuestionTrend {
	for i := range r.Trends {
		if r.Trends[i].Question == question {
			return &r.Trends[i]
		}
	}
	r.Trends = append(r.Trends, QuestionTrend{Question: question})
	return &r.Trends[len(r.Trends)-1]
}
