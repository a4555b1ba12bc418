// Command issue-token prints a signed bearer token for a back-office admin.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"armada/internal/auth"
	"armada/internal/config"
	"armada/internal/models"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	var (
		configPath = fs.String("config", envOr("CONFIG_PATH", "configs/config.yaml"), "path to config.yaml")
		id         = fs.Int64("id", 0, "actor id")
		name       = fs.String("name", "", "actor display name")
		role       = fs.String("role", string(models.RoleAdmin), "super_admin, admin, staff_admin or staff_traffic")
		ttl        = fs.Duration("ttl", 0, "token lifetime (default from api.auth.token_ttl)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	parsedRole, ok := models.ParseRole(*role)
	if !ok {
		return fmt.Errorf("unknown role %q", *role)
	}
	if strings.TrimSpace(*name) == "" {
		return fmt.Errorf("-name is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tokens := auth.NewTokenManager(cfg.API.Auth)
	token, err := tokens.Issue(models.ActorContext{ID: *id, Name: strings.TrimSpace(*name), Role: parsedRole}, *ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.API.Auth.TokenTTL
	}
	fmt.Fprintf(os.Stderr, "expires at %s\n", time.Now().Add(lifetime).Format(time.RFC3339))
	fmt.Println(token)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
