package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var userFlag string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize one user with the remote store",
	}
	cmd.PersistentFlags().StringVar(&userFlag, "user", "", "user ID to synchronize (required)")
	_ = cmd.MarkPersistentFlagRequired("user")

	run := func(push bool) func(cmd *cobra.Command, _ []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			userID, err := uuid.Parse(userFlag)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}

			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if !cfg.Sync.Enabled() {
				return errors.New("sync.remote_url is not configured")
			}

			app, err := newApplication(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer app.cleanup()

			var result any
			if push {
				result, err = app.syncer.Push(cmd.Context(), userID)
			} else {
				result, err = app.syncer.Pull(cmd.Context(), userID)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "push",
			Short: "Send the user's unsynchronized changes",
			Args:  cobra.NoArgs,
			RunE:  run(true),
		},
		&cobra.Command{
			Use:   "pull",
			Short: "Merge the remote copy into the local store",
			Args:  cobra.NoArgs,
			RunE:  run(false),
		},
	)
	return cmd
}
