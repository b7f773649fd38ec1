package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/orbitdock/orbitdock/internal/auth"
	"github.com/orbitdock/orbitdock/internal/config"
)

var (
	generateTokenSubject string
	generateTokenTTL     time.Duration
)

var generateTokenCmd = &cobra.Command{
	Use:   "generate-token",
	Short: "Mint an HS256 bearer token against ORBITDOCK_AUTH_TOKEN",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return &configError{err}
		}
		if cfg.AuthToken == "" {
			return &configError{fmt.Errorf("ORBITDOCK_AUTH_TOKEN is unset; auth is disabled, no token to mint")}
		}

		validator := auth.NewValidator(cfg.AuthToken)
		token, err := validator.GenerateToken(generateTokenSubject, generateTokenTTL)
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	generateTokenCmd.Flags().StringVar(&generateTokenSubject, "subject", "operator", "sub claim recording who requested the token")
	generateTokenCmd.Flags().DurationVar(&generateTokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
