package cli

import (
	"context"
	"errors"

	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/ditto/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Version of the ditto command
var Version = "dev"

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	var logLevel, logFormat string

	cmd := &cli.Command{
		Name:    "ditto",
		Usage:   "Answer survey questions consistently from a user profile",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Aliases:     []string{"l"},
				Usage:       "Log level (debug, info, warn, error)",
				Value:       "info",
				Sources:     cli.EnvVars("DITTO_LOG_LEVEL"),
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "Log format (console, json)",
				Value:       logging.FormatConsole,
				Sources:     cli.EnvVars("DITTO_LOG_FORMAT"),
				Destination: &logFormat,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, err := logging.New(logLevel, logFormat, c.Root().ErrWriter)
			if err != nil {
				return ctx, err
			}
			logging.SetDefault(logger)
			return logging.With(ctx, logger), nil
		},
		Commands: []*cli.Command{
			askCommand(),
			historyCommand(),
			deleteCommand(),
			clearCommand(),
			exportCommand(),
			importCommand(),
			serveCommand(),
			similarityCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		logging.Default().Debug("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: describe(err),
		}
	}

	return nil
}

// describe turns an error into a message for the user
func describe(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return "invalid input: " + err.Error()
	case errors.Is(err, model.ErrMatchLookupFailed):
		return "could not search answer history, please retry: " + err.Error()
	case errors.Is(err, model.ErrGenerationFailed):
		return "could not generate an answer, please retry: " + err.Error()
	case errors.Is(err, model.ErrRecordNotFound):
		return "no such history record: " + err.Error()
	default:
		return err.Error()
	}
}
