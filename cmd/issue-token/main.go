package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/logger"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// issue-token mints a signed access token. There is no login endpoint, so
// operators hand these out to teachers and integrations.
func main() {
	var (
		subject string
		perms   string
		ttl     time.Duration
	)
	flag.StringVar(&subject, "subject", "", "Token subject, e.g. a teacher's email (required)")
	flag.StringVar(&perms, "perms", "all", "Comma-separated permissions, or \"all\"")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime (default JWT_EXPIRY_HOURS)")
	flag.Parse()

	cfg := config.Load()
	log := logger.SetupWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if strings.TrimSpace(subject) == "" {
		flag.Usage()
		os.Exit(2)
	}

	granted, err := parsePermissions(perms)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid permissions")
	}

	token, err := service.NewAuthService(cfg).IssueToken(subject, granted, ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}

	log.Info().Str("subject", subject).Int("permissions", len(granted)).Msg("Token issued")
	fmt.Println(token)
}

func parsePermissions(raw string) ([]model.Permission, error) {
	if strings.TrimSpace(raw) == "all" {
		return model.AllPermissions(), nil
	}
	var out []model.Permission
	for _, code := range strings.Split(raw, ",") {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		p, ok := model.ParsePermission(code)
		if !ok {
			return nil, fmt.Errorf("unknown permission %q", code)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no permissions given")
	}
	return out, nil
}
