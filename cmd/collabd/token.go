package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"collabstream/internal/core/domain"
	"collabstream/internal/core/services"
	"collabstream/pkg/config"
	"collabstream/pkg/validation"
)

// newTokenCmd issues bearer tokens signed with the configured secret, for
// local testing and for trusted gateways that mint tokens on a user's behalf.
func newTokenCmd(load func() (*config.Config, error)) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := validation.ValidateUserID(args[0]); err != nil {
				return err
			}

			auth := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
			token, err := auth.GenerateToken(domain.UserID(args[0]), username)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "display name embedded in the token")
	return cmd
}
