package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/reporover/internal/config"
	"github.com/fyrsmithlabs/reporover/pkg/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <owner-id>",
		Short: "Issue a bearer token for the HTTP API",
		Long: `Sign an HS256 token with auth.jwt_secret whose id claim is owner-id.
Useful for calling a server that has a secret configured.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			v := auth.NewVerifier(cfg.Auth.JWTSecret.Value())
			if v == nil {
				return errors.New("auth.jwt_secret is not set")
			}

			claims := jwt.MapClaims{"iat": time.Now().Unix()}
			if ttl > 0 {
				claims["exp"] = time.Now().Add(ttl).Unix()
			}
			token, err := v.Sign(args[0], claims)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime; 0 for no expiry")
	return cmd
}
