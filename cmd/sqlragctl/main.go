package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sqlrag/sqlrag/internal/app"
	"github.com/sqlrag/sqlrag/internal/cli/sqlragctl"
	"github.com/sqlrag/sqlrag/internal/config"
	"github.com/sqlrag/sqlrag/internal/observability"
	"github.com/sqlrag/sqlrag/internal/seed"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load .env file: %v\n", err)
	}
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("SQLRAG_CLI_TIMEOUT")), 2*time.Minute)
	options := sqlragctl.Options{
		BaseURL: envOr("SQLRAG_API_URL", "http://localhost:8080"),
		Timeout: timeout,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Seed:    seedDatabase,
	}

	code := sqlragctl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

// seedDatabase writes the demo dataset into the database the API is
// configured for, then optionally rebuilds the schema index from it.
func seedDatabase(ctx context.Context, opts seed.Options, rebuildIndex bool) (seed.Summary, error) {
	cfg, err := config.LoadFromEnv("sqlragctl")
	if err != nil {
		return seed.Summary{}, err
	}
	logger := observability.NewLogger(cfg, os.Stderr)
	application, err := app.New(ctx, cfg, logger, app.Options{WithoutAgent: true})
	if err != nil {
		return seed.Summary{}, err
	}
	defer func() { _ = application.Close() }()

	summary, err := seed.Apply(ctx, application.DB, application.Dialect, opts, logger)
	if err != nil {
		return seed.Summary{}, err
	}
	if rebuildIndex {
		if _, err := application.Indexer.Rebuild(ctx); err != nil {
			return summary, fmt.Errorf("rebuild schema index: %w", err)
		}
	}
	return summary, nil
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid SQLRAG_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
