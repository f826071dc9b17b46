package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/flashdeck/internal/service/auth"
	"github.com/spf13/cobra"
)

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var userFlag string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for a user",
		Long: "Mint an access token signed with auth.jwt_secret. Accounts are managed " +
			"outside flashdeck; this command is meant for development and operations.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID := uuid.New()
			if userFlag != "" {
				parsed, err := uuid.Parse(userFlag)
				if err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
				userID = parsed
			}

			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			tokens, err := auth.NewJWTService(cfg.Auth, nil)
			if err != nil {
				return err
			}

			token, err := tokens.GenerateToken(cmd.Context(), userID)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "user:    %s\nexpires: %s\ntoken:   %s\n",
				userID, timeNow().Add(cfg.Auth.TokenLifetime).Format(time.RFC3339), token)
			return err
		},
	}
	cmd.Flags().StringVar(&userFlag, "user", "", "user ID (a new one is generated when empty)")
	return cmd
}
