package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var cfg config

	flags := userFlags(&cfg)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "List answered questions, oldest first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			defer cfg.Close()

			uc, err := cfg.newHistoryUseCase(ctx)
			if err != nil {
				return err
			}

			records, err := uc.History(ctx, model.UserID(cfg.userID))
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Fprintf(c.Root().Writer, "No answered questions for %s\n", cfg.userID)
				return nil
			}

			for i, r := range records {
				fmt.Fprintf(c.Root().Writer, "%d\t%s\t%s\t%s\n",
					i,
					r.CreatedAt.Format("2006-01-02 15:04:05"),
					oneLine(r.Question),
					oneLine(r.Answer),
				)
			}
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	var cfg config

	flags := userFlags(&cfg)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete an answered question by its index in history",
		ArgsUsage: "<index>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			defer cfg.Close()

			if c.Args().Len() != 1 {
				return goerr.Wrap(model.ErrInvalidInput, "exactly one index is required")
			}
			index, err := strconv.Atoi(c.Args().First())
			if err != nil {
				return goerr.Wrap(model.ErrInvalidInput, "index must be a number", goerr.V("index", c.Args().First()))
			}

			uc, err := cfg.newHistoryUseCase(ctx)
			if err != nil {
				return err
			}

			if err := uc.DeleteRecord(ctx, model.UserID(cfg.userID), index); err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "Deleted record %d\n", index)
			return nil
		},
	}
}

func clearCommand() *cli.Command {
	var (
		cfg   config
		force bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "force",
			Aliases:     []string{"f"},
			Usage:       "Confirm deleting the whole history",
			Destination: &force,
		},
	}
	flags = append(flags, userFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "clear",
		Usage: "Delete all answered questions of the user",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			defer cfg.Close()

			if !force {
				return goerr.Wrap(model.ErrInvalidInput, "clearing history requires --force")
			}

			uc, err := cfg.newHistoryUseCase(ctx)
			if err != nil {
				return err
			}

			if err := uc.ClearHistory(ctx, model.UserID(cfg.userID)); err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "Cleared history of %s\n", cfg.userID)
			return nil
		},
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
