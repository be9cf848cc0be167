package model

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Label is a single-letter answer choice identifier ("a", "b", ...).
// Labels are always stored lowercase.
type Label string

// InvalidLabel is returned when a model response cannot be parsed into a
// choice. It never equals a valid label, so a parse failure is always
// scored as incorrect rather than raising an error.
const InvalidLabel = Label("")

// NormalizeLabel lowercases and trims a raw label string.
func NormalizeLabel(s string) Label {
	return Label(strings.ToLower(strings.TrimSpace(s)))
}

// Valid reports whether the label is a single lowercase letter.
func (l Label) Valid() bool {
	if len(l) != 1 {
		return false
	}
	return l[0] >= 'a' && l[0] <= 'z'
}

// String returns the string representation of Label
func (l Label) String() string {
	return string(l)
}

// Matches compares two labels case-insensitively.
func (l Label) Matches(other Label) bool {
	if l == InvalidLabel || other == InvalidLabel {
		return false
	}
	return strings.EqualFold(string(l), string(other))
}

// Choice is one labeled option of a multiple-choice question.
type Choice struct {
	Label Label
	Text  string
}

// Question is an immutable multiple-choice question. Options keep their
// presentation order; the label set is the question's answer alphabet.
type Question struct {
	Text    string
	Options []Choice
	Answer  Label
}

// Validate checks structural integrity of the question: non-empty text,
// at least two uniquely labeled options, and a correct answer that is one
// of the option labels.
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return goerr.New("question text is required")
	}
	if len(q.Options) < 2 {
		return goerr.New("question needs at least two options", goerr.V("question", q.Text))
	}

	seen := make(map[Label]bool, len(q.Options))
	for _, opt := range q.Options {
		if !opt.Label.Valid() {
			return goerr.New("invalid option label",
				goerr.V("question", q.Text),
				goerr.V("label", opt.Label))
		}
		if seen[opt.Label] {
			return goerr.New("duplicate option label",
				goerr.V("question", q.Text),
				goerr.V("label", opt.Label))
		}
		seen[opt.Label] = true
	}

	if !seen[q.Answer] {
		return goerr.New("correct answer is not among option labels",
			goerr.V("question", q.Text),
			goerr.V("answer", q.Answer))
	}

	return nil
}

// Labels returns the question's label alphabet in presentation order.
func (q *Question) Labels() []Label {
	labels := make([]Label, len(q.Options))
	for i, opt := range q.Options {
		labels[i] = opt.Label
	}
	return labels
}

// Render produces the textual form presented to an agent: the question
// text followed by one "a) ..." line per option.
func (q *Question) Render() string {
	var sb strings.Builder
	sb.WriteString(q.Text)
	for _, opt := range q.Options {
		sb.WriteString(fmt.Sprintf("\n%s) %s", opt.Label, opt.Text))
	}
	return sb.String()
}
