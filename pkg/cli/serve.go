package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/ditto/pkg/service/mcp"
	"github.com/m-mizutani/ditto/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg      config
		httpAddr string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "http",
			Usage:       "Serve MCP over streamable HTTP on this address instead of stdio",
			Sources:     cli.EnvVars("DITTO_HTTP_ADDR"),
			Destination: &httpAddr,
		},
	}
	flags = append(flags, userFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, matchFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run an MCP server exposing answer resolution and history tools",
		Flags: flags,
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

			srv := mcp.NewServer(uc, profile, Version, mcp.WithDefaultUser(model.UserID(cfg.userID)))
			logger := logging.From(ctx)

			if httpAddr == "" {
				logger.Info("serving MCP on stdio")
				return srv.ServeStdio(ctx)
			}

			httpServer := &http.Server{
				Addr:              httpAddr,
				Handler:           srv.HTTPHandler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpServer.Shutdown(shutdownCtx)
			}()

			logger.Info("serving MCP on HTTP", "addr", httpAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return goerr.Wrap(err, "http server failed", goerr.V("addr", httpAddr))
			}
			return nil
		},
	}
}
