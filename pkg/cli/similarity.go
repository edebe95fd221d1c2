package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/ditto/pkg/embedding"
	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

type similarityPair struct {
	Question1  string  `json:"question1"`
	Question2  string  `json:"question2"`
	Similarity float64 `json:"similarity"`
	Match      bool    `json:"match"`
}

func similarityCommand() *cli.Command {
	var (
		cfg        config
		showVector bool
		outputJSON bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "show-vector",
			Aliases:     []string{"v"},
			Usage:       "Show embedding vectors",
			Destination: &showVector,
		},
		&cli.BoolFlag{
			Name:        "json",
			Aliases:     []string{"j"},
			Usage:       "Output in JSON format",
			Destination: &outputJSON,
		},
	}
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, matchFlags(&cfg)...)

	return &cli.Command{
		Name:      "similarity",
		Usage:     "Show pairwise similarity of questions and whether they would share an answer",
		ArgsUsage: "<question> <question> [question...]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			defer cfg.Close()

			questions := c.Args().Slice()
			if len(questions) < 2 {
				return goerr.Wrap(model.ErrInvalidInput, "at least two questions are required")
			}

			provider, err := cfg.newEmbeddingProvider(ctx)
			if err != nil {
				return err
			}

			vectors, err := provider.Embed(ctx, questions)
			if err != nil {
				return err
			}

			var pairs []similarityPair
			for i := 0; i < len(questions); i++ {
				for j := i + 1; j < len(questions); j++ {
					pair := similarityPair{Question1: questions[i], Question2: questions[j]}
					if model.QuestionKey(questions[i]) == model.QuestionKey(questions[j]) {
						pair.Similarity, pair.Match = 1.0, true
					} else {
						sim, err := embedding.CosineSimilarity(vectors[i], vectors[j])
						if err != nil {
							return err
						}
						pair.Similarity, pair.Match = sim, sim > cfg.threshold
					}
					pairs = append(pairs, pair)
				}
			}

			w := c.Root().Writer
			if outputJSON {
				items := make([]map[string]any, len(questions))
				for i, q := range questions {
					items[i] = map[string]any{"question": q}
					if showVector {
						items[i]["embedding"] = vectors[i]
					}
				}

				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{
					"threshold": cfg.threshold,
					"questions": items,
					"pairs":     pairs,
				}); err != nil {
					return goerr.Wrap(err, "failed to encode results")
				}
				return nil
			}

			if showVector {
				fmt.Fprintln(w, "=== Embeddings ===")
				for i, q := range questions {
					fmt.Fprintf(w, "%s\n  Vector: %v\n", q, vectors[i])
				}
				fmt.Fprintln(w)
			}

			fmt.Fprintf(w, "=== Cosine Similarity (threshold %.3f) ===\n", cfg.threshold)
			for _, p := range pairs {
				mark := " "
				if p.Match {
					mark = "="
				}
				fmt.Fprintf(w, "%s %.4f  %s <-> %s\n", mark, p.Similarity, p.Question1, p.Question2)
			}
			return nil
		},
	}
}
