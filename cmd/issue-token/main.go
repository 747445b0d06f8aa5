// issue-token mints an access token for an existing user, signed with
// AUTH_JWT_SECRET. Useful for operators and for wiring local clients.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/domain"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var userID int64
	var profile string
	var ttlMinutes int

	flagSet := pflag.NewFlagSet("issue-token", pflag.ContinueOnError)
	flagSet.Int64Var(&userID, "user-id", 0, "id of the user the token is issued for")
	flagSet.StringVar(&profile, "profile", string(domain.UserProfileUser), "user profile claim (admin or user)")
	flagSet.IntVar(&ttlMinutes, "ttl-minutes", 0, "token lifetime (default AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if userID <= 0 {
		return errors.New("--user-id is required")
	}
	userProfile := domain.UserProfile(profile)
	if userProfile != domain.UserProfileAdmin && userProfile != domain.UserProfileUser {
		return fmt.Errorf("unknown profile %q", profile)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if ttlMinutes == 0 {
		ttlMinutes = cfg.Auth.AccessTokenTTLMinutes
	}

	token, meta, err := auth.NewTokenManager(cfg.Auth.JWTSecret, ttlMinutes).GenerateToken(userID, userProfile)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", meta.ExpiresAt.Format(time.RFC3339))
	return nil
}
