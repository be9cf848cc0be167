package agent

import (
	"strings"

	"github.com/mnemo-lab/mnemosyne/pkg/domain/model"
)

// Extractor normalizes a free-text model response into one of a question's
// labels. The policy is anchored: after trimming and lowercasing, the
// response is accepted only if its first character is a valid label.
// Anything else yields model.InvalidLabel, which is scored as incorrect
// rather than treated as an error, so malformed output never halts a run.
type Extractor struct {
	labels map[model.Label]bool
}

// NewExtractor builds an extractor for the given label alphabet.
func NewExtractor(labels []model.Label) *Extractor {
	set := make(map[model.Label]bool, len(labels))
	for _, l := range labels {
		set[model.NormalizeLabel(string(l))] = true
	}
	return &Extractor{labels: set}
}

// Extract parses a raw model response into a label or model.InvalidLabel.
func (e *Extractor) Extract(raw string) model.Label {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return model.InvalidLabel
	}

	head := model.Label(s[:1])
	if e.labels[head] {
		return head
	}
	return model.InvalidLabel
}
