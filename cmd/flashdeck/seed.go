package main

import (
	"fmt"
	"os"

	"github.com/phrazzld/flashdeck/internal/seed"
	"github.com/spf13/cobra"
)

func newSeedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load generic programs and their cards from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open seed file: %w", err)
			}
			defer func() { _ = f.Close() }()

			doc, err := seed.Parse(f)
			if err != nil {
				return err
			}

			backend, err := openBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			result, err := seed.Apply(cmd.Context(), backend, doc, timeNow(), log)
			if err != nil {
				return fmt.Errorf("failed to seed: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d programs with %d cards\n", result.Programs, result.Cards)
			return err
		},
	}
}
