package model

import (
	"fmt"
	"time"
)

// Outcome classifies one answer against the known correct label.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
)

// Record is one remembered question/answer/outcome triple. Records are
// derived data: they are built once through NewRecord and never mutated.
type Record struct {
	Question      string
	Answer        Label
	CorrectAnswer Label
	Outcome       Outcome
	AnsweredAt    time.Time
}

// NewRecord builds a memory record for an answered question. The outcome
// is recomputed here from the answer and the correct label
// (case-insensitive); callers never set it directly.
func NewRecord(question string, answer, correct Label) *Record {
	outcome := OutcomeIncorrect
	if answer.Matches(correct) {
		outcome = OutcomeCorrect
	}

	return &Record{
		Question:      question,
		Answer:        answer,
		CorrectAnswer: correct,
		Outcome:       outcome,
		AnsweredAt:    time.Now().UTC(),
	}
}

// Format renders the record in the form agents see in their prompt memory
// block.
func (r *Record) Format() string {
	answer := string(r.Answer)
	if r.Answer == InvalidLabel {
		answer = "(no valid answer)"
	}
	return fmt.Sprintf("Question: %s\nYour answer: %s\nCorrect answer: %s\nResult: %s",
		r.Question, answer, r.CorrectAnswer, r.Outcome)
}
