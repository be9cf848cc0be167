package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mnemo-lab/mnemosyne/pkg/usecase"
)

var (
	colorCorrect   = color.New(color.FgGreen)
	colorIncorrect = color.New(color.FgRed)
	colorNoAnswer  = color.New(color.FgYellow)
	colorHeading   = color.New(color.Bold)
)

func renderReport(w io.Writer, report *usecase.Report) {
	colorHeading.Fprintf(w, "Run %s — %d iteration(s)\n\n", report.RunID, report.Iterations)

	colorHeading.Fprintln(w, "Accuracy trends:")
	for _, trend := range report.Trends {
		fmt.Fprintf(w, "  %s\n    ", trend.Question)
		for i, acc := range trend.Accuracies {
			if i > 0 {
				fmt.Fprint(w, " -> ")
			}
			fprintAccuracy(w, acc)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
	renderScores(w, report.Scores)
}

func renderScores(w io.Writer, scores []usecase.AgentScore) {
	colorHeading.Fprintln(w, "Final agent accuracies:")
	for _, s := range scores {
		fmt.Fprintf(w, "  %-10s %d/%d correct", s.AgentID, s.Correct, s.Total)
		if s.NoAnswer > 0 {
			colorNoAnswer.Fprintf(w, " (%d no answer)", s.NoAnswer)
		}
		fmt.Fprint(w, "  ")
		fprintAccuracy(w, s.Accuracy)
		fmt.Fprintln(w)
	}
}

func renderQuestionResult(w io.Writer, qr *usecase.QuestionResult) {
	for _, r := range qr.Results {
		fmt.Fprintf(w, "%s:\n", r.AgentID)
		switch {
		case r.NoAnswer:
			colorNoAnswer.Fprintln(w, "MCQ Response: (no answer)")
		case r.Answer == "":
			fmt.Fprintln(w, "MCQ Response: (invalid)")
		default:
			fmt.Fprintf(w, "MCQ Response: %s\n", r.Answer)
		}
		fmt.Fprint(w, "Correct: ")
		if r.Correct {
			colorCorrect.Fprintln(w, "true")
		} else {
			colorIncorrect.Fprintln(w, "false")
		}
		fmt.Fprintf(w, "Accuracy: %.2f\n", r.Accuracy)
		fmt.Fprintln(w, strings.Repeat("-", 50))
	}
	fmt.Fprintf(w, "Agents correct: ")
	fprintAccuracy(w, qr.Accuracy)
	fmt.Fprintln(w)
}

func fprintAccuracy(w io.Writer, acc float64) {
	c := colorIncorrect
	switch {
	case acc >= 0.7:
		c = colorCorrect
	case acc >= 0.4:
		c = colorNoAnswer
	}
	c.Fprintf(w, "%.2f", acc)
}
