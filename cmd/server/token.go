package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docsearch/internal/api"
	"github.com/dgallion1/docsearch/internal/roles"
)

var (
	tokenRole    string
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token signed with JWT_SECRET",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenRole, "role", "r", roles.User, "Role claim (Admin, Editor, Internal, User)")
	tokenCmd.Flags().StringVarP(&tokenSubject, "subject", "s", "operator", "Subject claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	role, ok := roles.Canonical(tokenRole)
	if !ok {
		return fmt.Errorf("unknown role %q", tokenRole)
	}
	tok, err := api.IssueToken(cfg.JWTSecret, tokenSubject, role, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
