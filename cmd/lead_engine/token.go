package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API bearer token",
	Long:  `Mint a bearer token for the API. Requires JWT_SECRET; the token expires after
--ttl, or JWT_EXPIRATION_HOURS when --ttl is not given.`,
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Who the token is issued to")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime, e.g. 30m or 720h (default JWT_EXPIRATION_HOURS)")
	_ = tokenCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadEnv()
	if err != nil {
		return err
	}

	service, err := buildJWT(cfg)
	if err != nil {
		return err
	}
	if service == nil {
		return errors.New("JWT_SECRET is not set; API auth is disabled")
	}

	generate := service.GenerateToken
	if cmd.Flags().Changed("ttl") {
		generate = func(subject string) (string, error) { return service.GenerateTokenTTL(subject, tokenTTL) }
	}
	token, err := generate(tokenSubject)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
