package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mnemo-lab/mnemosyne/pkg/cli/config"
	"github.com/mnemo-lab/mnemosyne/pkg/service/bank"
	"github.com/mnemo-lab/mnemosyne/pkg/usecase"
	"github.com/mnemo-lab/mnemosyne/pkg/utils/logging"
	"github.com/mnemo-lab/mnemosyne/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdEval() *cli.Command {
	var questionsPath string
	var elementsPath string
	var profilePath string
	var iterations int
	var numAgents int
	var parallel int
	var repoCfg config.Repository
	var geminiCfg config.Gemini

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "questions",
			Usage:       "Quiz bank JSON file (local path or gs:// URL)",
			Required:    true,
			Sources:     cli.EnvVars("MNEMOSYNE_QUESTIONS"),
			Destination: &questionsPath,
		},
		&cli.StringFlag{
			Name:        "elements",
			Usage:       "Context corpus JSON file scrambled into every prompt (local path or gs:// URL)",
			Sources:     cli.EnvVars("MNEMOSYNE_ELEMENTS"),
			Destination: &elementsPath,
		},
		&cli.StringFlag{
			Name:        "profile",
			Usage:       "Optional TOML evaluation profile",
			Sources:     cli.EnvVars("MNEMOSYNE_PROFILE"),
			Destination: &profilePath,
		},
		&cli.IntFlag{
			Name:        "iterations",
			Usage:       "How many times the whole quiz bank is presented",
			Value:       1,
			Sources:     cli.EnvVars("MNEMOSYNE_ITERATIONS"),
			Destination: &iterations,
		},
		&cli.IntFlag{
			Name:        "agents",
			Usage:       "Number of agents in the pool",
			Value:       usecase.DefaultPoolSize,
			Sources:     cli.EnvVars("MNEMOSYNE_AGENTS"),
			Destination: &numAgents,
		},
		&cli.IntFlag{
			Name:        "parallel",
			Usage:       "Maximum agents answering concurrently (1 = sequential)",
			Value:       1,
			Sources:     cli.EnvVars("MNEMOSYNE_PARALLEL"),
			Destination: &parallel,
		},
	}

	// Add shared config flags
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)

	return &cli.Command{
		Name:    "eval",
		Aliases: []string{"e"},
		Usage:   "Run a quiz bank through the agent pool and report accuracy trends",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			opts := []usecase.Option{
				usecase.WithRecall(repoCfg.Recall()),
			}

			// Profile first, explicitly set flags after so they win.
			if profilePath != "" {
				profile, err := config.LoadProfile(profilePath)
				if err != nil {
					return goerr.Wrap(err, "failed to load evaluation profile")
				}
				opts = append(opts, profileOptions(profile)...)
			}
			if c.IsSet("agents") {
				opts = append(opts, usecase.WithPoolSize(numAgents))
			}
			if c.IsSet("parallel") {
				opts = append(opts, usecase.WithParallel(parallel))
			}

			questions, err := bank.LoadQuestions(ctx, questionsPath)
			if err != nil {
				return goerr.Wrap(err, "failed to load quiz bank")
			}

			elements := map[string]any{}
			if elementsPath != "" {
				elements, err = bank.LoadElements(ctx, elementsPath)
				if err != nil {
					return goerr.Wrap(err, "failed to load context corpus")
				}
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

			uc, err := usecase.New(llmClient, store, opts...)
			if err != nil {
				return goerr.Wrap(err, "failed to build evaluation")
			}

			logging.Default().Info("Starting evaluation",
				"questions", len(questions),
				"elements", len(elements),
				"iterations", iterations,
				"agents", uc.Eval.PoolSize(),
				"backend", repoCfg.Backend(),
			)

			report, err := uc.Eval.Run(ctx, questions, elements, usecase.Iterations(iterations))
			if err != nil {
				return goerr.Wrap(err, "evaluation failed")
			}

			renderReport(os.Stdout, report)
			return nil
		},
	}
}

func profileOptions(p *config.Profile) []usecase.Option {
	var opts []usecase.Option
	if p.Pool.Agents > 0 {
		opts = append(opts, usecase.WithPoolSize(p.Pool.Agents))
	}
	if p.Pool.Parallel > 1 {
		opts = append(opts, usecase.WithParallel(p.Pool.Parallel))
	}
	if p.Inference.Retries != nil {
		opts = append(opts, usecase.WithRetries(*p.Inference.Retries))
	}
	if d, err := p.InferenceTimeout(); err == nil && d > 0 {
		opts = append(opts, usecase.WithInferenceTimeout(d))
	}
	return opts
}
