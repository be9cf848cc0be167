package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mnemo-lab/mnemosyne/pkg/cli/config"
	"github.com/mnemo-lab/mnemosyne/pkg/domain/model"
	"github.com/mnemo-lab/mnemosyne/pkg/service/bank"
	"github.com/mnemo-lab/mnemosyne/pkg/usecase"
	"github.com/mnemo-lab/mnemosyne/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdAsk() *cli.Command {
	var elementsPath string
	var numAgents int
	var repoCfg config.Repository
	var geminiCfg config.Gemini

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "elements",
			Usage:       "Context corpus JSON file scrambled into every prompt (local path or gs:// URL)",
			Sources:     cli.EnvVars("MNEMOSYNE_ELEMENTS"),
			Destination: &elementsPath,
		},
		&cli.IntFlag{
			Name:        "agents",
			Usage:       "Number of agents in the pool",
			Value:       usecase.DefaultPoolSize,
			Sources:     cli.EnvVars("MNEMOSYNE_AGENTS"),
			Destination: &numAgents,
		},
	}

	// Add shared config flags
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)

	return &cli.Command{
		Name:    "ask",
		Aliases: []string{"a"},
		Usage:   "Interactively pose questions to the agent pool, one at a time",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			elements := map[string]any{}
			if elementsPath != "" {
				loaded, err := bank.LoadElements(ctx, elementsPath)
				if err != nil {
					return goerr.Wrap(err, "failed to load context corpus")
				}
				elements = loaded
			}

			store, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize memory store")
			}
			defer safe.Close(ctx, store)

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize Gemini client")
			}

			uc, err := usecase.New(llmClient, store,
				usecase.WithPoolSize(numAgents),
				usecase.WithRecall(repoCfg.Recall()),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to build evaluation")
			}

			in := bufio.NewReader(os.Stdin)
			out := os.Stdout

			for {
				q, err := readQuestion(in, out)
				if err != nil {
					return goerr.Wrap(err, "failed to read question")
				}

				qr, err := uc.Eval.AskQuestion(ctx, q, elements)
				if err != nil {
					return goerr.Wrap(err, "failed to evaluate question")
				}

				fmt.Fprintf(out, "\nResponses from %d agents:\n\n", uc.Eval.PoolSize())
				renderQuestionResult(out, qr)

				again, err := confirm(in, out, "Do you want to ask another question? (yes/no): ")
				if err != nil {
					return goerr.Wrap(err, "failed to read continuation answer")
				}
				if !again {
					break
				}
			}

			fmt.Fprintln(out)
			renderScores(out, uc.Eval.Scores())
			return nil
		},
	}
}

// readQuestion collects one question from the operator: the question text,
// options one per line until "done", and the correct label. Labels are
// assigned a, b, c, ... in entry order.
func readQuestion(in *bufio.Reader, out io.Writer) (*model.Question, error) {
	fmt.Fprintln(out, "Enter your multiple-choice question:")
	fmt.Fprint(out, "Question: ")
	text, err := readLine(in)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(out, "Enter the options (one per line). Type 'done' when finished:")
	var options []model.Choice
	for {
		line, err := readLine(in)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(line, "done") {
			break
		}
		if line == "" {
			continue
		}
		if len(options) >= 26 {
			return nil, goerr.New("too many options, label alphabet exhausted")
		}
		options = append(options, model.Choice{
			Label: model.Label(string(rune('a' + len(options)))),
			Text:  line,
		})
	}

	fmt.Fprint(out, "Enter the correct answer (a, b, c, ...): ")
	answer, err := readLine(in)
	if err != nil {
		return nil, err
	}

	q := &model.Question{
		Text:    strings.TrimSpace(text),
		Options: options,
		Answer:  model.NormalizeLabel(answer),
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	return q, nil
}

func confirm(in *bufio.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := readLine(in)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(line), "yes"), nil
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", goerr.Wrap(err, "failed to read input line")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
