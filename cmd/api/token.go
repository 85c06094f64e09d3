package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/config"
	"taskboard/api/internal/rbac"
)

func newTokenCommand(cfg *config.Config) *cobra.Command {
	var opts struct {
		UserID string
		Name   string
		Role   string
		TTL    time.Duration
	}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token for a user",
		Long: `Issue a signed access token for a user.

Tokens are signed with TASKBOARD_JWT_SECRET. The user must exist in the users table
for the API to accept the token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID := strings.TrimSpace(opts.UserID)
			if userID == "" {
				return errors.New("--user is required")
			}
			ttl := opts.TTL
			if ttl <= 0 {
				ttl = cfg.AccessTTL
			}
			role := string(rbac.Normalize(opts.Role))
			token, err := auth.IssueToken([]byte(cfg.JWTSecret), auth.NewClaims(userID, opts.Name, role, ttl))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "User ID (token subject)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Display name claim")
	cmd.Flags().StringVar(&opts.Role, "role", "", "Role claim")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 0, "Token lifetime (defaults to TASKBOARD_ACCESS_TTL_SECONDS)")
	return cmd
}
