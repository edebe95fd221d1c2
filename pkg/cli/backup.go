package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/m-mizutani/ditto/pkg/adapter"
	"github.com/m-mizutani/ditto/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// backupConfig selects where history backups are written to and read from.
// With neither bucket nor dir set, path is a local file and "-" means stdio.
type backupConfig struct {
	bucket string
	prefix string
	dir    string
	path   string
}

func backupFlags(b *backupConfig, pathUsage string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket keeping backups as {prefix}{user}.json",
			Sources:     cli.EnvVars("DITTO_BACKUP_BUCKET"),
			Destination: &b.bucket,
		},
		&cli.StringFlag{
			Name:        "prefix",
			Usage:       "Object name prefix in the backup bucket",
			Sources:     cli.EnvVars("DITTO_BACKUP_PREFIX"),
			Destination: &b.prefix,
		},
		&cli.StringFlag{
			Name:        "dir",
			Usage:       "Local directory keeping backups as {user}.json",
			Sources:     cli.EnvVars("DITTO_BACKUP_DIR"),
			Destination: &b.dir,
		},
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       pathUsage,
			Value:       "-",
			Destination: &b.path,
		},
	}
}

// storage returns the backup storage and the object key for userID. With
// no bucket or dir, the key is the local file of path. The storage is closed
// with cfg.
func (b *backupConfig) storage(ctx context.Context, cfg *config, userID model.UserID) (adapter.Storage, string, error) {
	switch {
	case b.bucket != "":
		s, err := adapter.NewCloudStorage(ctx, b.bucket, b.prefix)
		if err != nil {
			return nil, "", err
		}
		cfg.closers = append(cfg.closers, s.Close)
		return s, string(userID) + ".json", nil
	case b.dir != "":
		return adapter.NewFileStorage(b.dir), string(userID) + ".json", nil
	default:
		return adapter.NewFileStorage(filepath.Dir(b.path)), filepath.Base(b.path), nil
	}
}

func (b *backupConfig) stdio() bool {
	return b.bucket == "" && b.dir == "" && b.path == "-"
}

// write stores data as the backup of userID
func (b *backupConfig) write(ctx context.Context, cfg *config, userID model.UserID, data []byte, stdout io.Writer) error {
	if b.stdio() {
		if _, err := stdout.Write(data); err != nil {
			return goerr.Wrap(err, "failed to write backup")
		}
		return nil
	}

	storage, key, err := b.storage(ctx, cfg, userID)
	if err != nil {
		return err
	}
	return storage.Put(ctx, key, bytes.NewReader(data))
}

func (b *backupConfig) reader(ctx context.Context, cfg *config, userID model.UserID, stdin io.Reader) (io.ReadCloser, error) {
	if b.stdio() {
		return io.NopCloser(stdin), nil
	}

	storage, key, err := b.storage(ctx, cfg, userID)
	if err != nil {
		return nil, err
	}
	return storage.Get(ctx, key)
}

func exportCommand() *cli.Command {
	var (
		cfg    config
		backup backupConfig
	)

	flags := backupFlags(&backup, "Output file. \"-\" writes to stdout")
	flags = append(flags, userFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "export",
		Usage: "Export the answer history as JSON",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			defer cfg.Close()

			uc, err := cfg.newHistoryUseCase(ctx)
			if err != nil {
				return err
			}

			// the destination is touched only after the whole history is encoded
			userID := model.UserID(cfg.userID)
			var buf bytes.Buffer
			if err := uc.ExportHistory(ctx, userID, &buf); err != nil {
				return err
			}
			return backup.write(ctx, &cfg, userID, buf.Bytes(), c.Root().Writer)
		},
	}
}

func importCommand() *cli.Command {
	var (
		cfg    config
		backup backupConfig
	)

	flags := backupFlags(&backup, "Input file. \"-\" reads from stdin")
	flags = append(flags, userFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "import",
		Usage: "Import answer history exported by the export command",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			defer cfg.Close()

			uc, err := cfg.newHistoryUseCase(ctx)
			if err != nil {
				return err
			}

			userID := model.UserID(cfg.userID)
			r, err := backup.reader(ctx, &cfg, userID, c.Root().Reader)
			if err != nil {
				return err
			}
			defer r.Close()

			imported, skipped, err := uc.ImportHistory(ctx, userID, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "Imported %d records, skipped %d\n", imported, skipped)
			return nil
		},
	}
}
