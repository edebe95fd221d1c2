package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/ditto/pkg/usecase/answer"
	"github.com/m-mizutani/ditto/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg       config
		imagePath string
		timeout   time.Duration
		asJSON    bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "image",
			Aliases:     []string{"i"},
			Usage:       "Image of the question, as a file path or a data URI",
			Destination: &imagePath,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Timeout of resolving one question. 0 disables it",
			Sources:     cli.EnvVars("DITTO_TIMEOUT"),
			Destination: &timeout,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the answer as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, userFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, matchFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a question. Starts an interactive prompt when no question is given",
		ArgsUsage: "[question]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			defer cfg.Close()

			profile, err := loadProfile(cfg.profilePath)
			if err != nil {
				return err
			}

			uc, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}

			a := &asker{
				uc:      uc,
				userID:  model.UserID(cfg.userID),
				profile: profile,
				timeout: timeout,
				asJSON:  asJSON,
				w:       c.Root().Writer,
				errW:    c.Root().ErrWriter,
			}

			question := model.Question{Text: strings.Join(c.Args().Slice(), " ")}
			if imagePath != "" {
				img, err := loadImage(imagePath)
				if err != nil {
					return err
				}
				question.Image = img
			}

			if question.HasText() || question.Image != nil {
				return a.ask(ctx, question)
			}
			return a.interactive(ctx)
		},
	}
}

type asker struct {
	uc      *answer.UseCase
	userID  model.UserID
	profile string
	timeout time.Duration
	asJSON  bool
	w       io.Writer
	errW    io.Writer
}

func (x *asker) ask(ctx context.Context, question model.Question) error {
	if x.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.timeout)
		defer cancel()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(x.errW))
	s.Suffix = " resolving..."
	s.Start()
	resp, err := x.uc.Resolve(ctx, answer.ResolveInput{
		UserID:   x.userID,
		Question: question,
		Profile:  x.profile,
	})
	s.Stop()
	if err != nil {
		return err
	}

	if resp.RecordErr != nil {
		logging.From(ctx).Warn("answer was not saved to history", "error", resp.RecordErr)
	}

	if x.asJSON {
		return printAnswerJSON(x.w, resp)
	}

	fmt.Fprintln(x.w, resp.Text)
	if resp.Source == answer.SourceHistory {
		fmt.Fprintf(x.errW, "(from history, similarity %.3f)\n", resp.Score)
	}
	return nil
}

func (x *asker) interactive(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return goerr.Wrap(err, "failed to start interactive prompt")
	}
	defer rl.Close()

	fmt.Fprintf(x.errW, "Answering as %s. Type 'exit' to quit.\n", x.userID)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read question")
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		if err := x.ask(ctx, model.Question{Text: line}); err != nil {
			// a failed question does not end the session
			fmt.Fprintln(x.errW, describe(err))
		}
	}
}

type answerJSON struct {
	Question  string  `json:"question"`
	Answer    string  `json:"answer"`
	Source    string  `json:"source"`
	Score     float64 `json:"score,omitempty"`
	RecordID  string  `json:"record_id,omitempty"`
	RecordErr string  `json:"record_error,omitempty"`
}

func printAnswerJSON(w io.Writer, resp *answer.Answer) error {
	out := answerJSON{
		Question: resp.Question,
		Answer:   resp.Text,
		Source:   string(resp.Source),
		Score:    resp.Score,
		RecordID: string(resp.RecordID),
	}
	if resp.RecordErr != nil {
		out.RecordErr = resp.RecordErr.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&out); err != nil {
		return goerr.Wrap(err, "failed to encode answer")
	}
	return nil
}

// loadImage accepts a data URI or a path to an image file
func loadImage(src string) (*model.Image, error) {
	if strings.HasPrefix(src, "data:") {
		return model.ParseDataURI(src)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return nil, goerr.Wrap(model.ErrInvalidInput, "failed to read image", goerr.V("path", src), goerr.V("error", err.Error()))
	}

	img := &model.Image{
		MIMEType: http.DetectContentType(data),
		Data:     data,
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}
