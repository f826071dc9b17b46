package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/flashdeck/internal/platform/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), opts, func(ctx context.Context, db *sql.DB, log *slog.Logger) error {
					return postgres.Migrate(ctx, db, log)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), opts, func(ctx context.Context, db *sql.DB, log *slog.Logger) error {
					return postgres.Rollback(ctx, db, log)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), opts, func(ctx context.Context, db *sql.DB, _ *slog.Logger) error {
					states, err := postgres.Status(ctx, db)
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					for _, s := range states {
						state := "pending"
						if s.Applied {
							state = "applied"
						}
						if _, err := fmt.Fprintf(out, "%-8s %5d  %s\n", state, s.Version, s.Path); err != nil {
							return err
						}
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), opts, func(ctx context.Context, db *sql.DB, _ *slog.Logger) error {
					version, err := postgres.Version(ctx, db)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), version)
					return err
				})
			},
		},
	)
	return cmd
}

func withDatabase(ctx context.Context, opts *rootOptions, fn func(ctx context.Context, db *sql.DB, log *slog.Logger) error) error {
	cfg, log, err := opts.load()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url is required for migrations")
	}

	db, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{MaxOpenConns: 1}, log)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return fn(ctx, db, log)
}
