package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const defaultAPIURL = "http://127.0.0.1:8000"

type Config struct {
	APIURL      string
	WSURL       string
	DBPath      string
	RedisAddr   string
	MetricsAddr string

	// Submission options
	Branch    string
	MaxFiles  int
	CrossRepo bool
}

// LoadConfig resolves configuration from environment variables first, then
// flags. Returns the remaining positional args: subcommand and its arguments.
func LoadConfig(args []string) (Config, []string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, nil, fmt.Errorf("failed to get cwd: %w", err)
	}

	apiURL := envOrDefault("REPOPULSE_API_URL", defaultAPIURL)
	wsURL := os.Getenv("REPOPULSE_WS_URL") // empty: derived from api url
	dbPath := envOrDefault("REPOPULSE_DB_PATH", filepath.Join(cwd, "repopulse.db"))
	redisAddr := os.Getenv("REPOPULSE_REDIS_ADDR")
	metricsAddr := os.Getenv("REPOPULSE_METRICS_ADDR")

	flagSet := flag.NewFlagSet("repopulse", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagAPI := flagSet.String("api", apiURL, "analysis service base URL")
	flagWS := flagSet.String("ws", wsURL, "websocket base URL (default: derived from -api)")
	flagDB := flagSet.String("db", dbPath, "path to the SQLite history database")
	flagRedis := flagSet.String("redis", redisAddr, "redis address for the shared snapshot cache (empty: disabled)")
	flagMetrics := flagSet.String("metrics", metricsAddr, "prometheus listen address (empty: disabled)")
	flagBranch := flagSet.String("branch", "", "branch to analyze (submit only)")
	flagMaxFiles := flagSet.Int("max-files", 0, "cap on files to analyze (submit only)")
	flagCrossRepo := flagSet.Bool("cross-repo", false, "enable cross-repo intelligence (submit only)")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, nil, err
		}
		return Config{}, nil, err
	}

	config := Config{
		APIURL:      strings.TrimSpace(*flagAPI),
		WSURL:       strings.TrimSpace(*flagWS),
		DBPath:      resolvePath(*flagDB, cwd),
		RedisAddr:   strings.TrimSpace(*flagRedis),
		MetricsAddr: strings.TrimSpace(*flagMetrics),
		Branch:      strings.TrimSpace(*flagBranch),
		MaxFiles:    *flagMaxFiles,
		CrossRepo:   *flagCrossRepo,
	}

	if config.APIURL == "" {
		return Config{}, nil, errors.New("api url cannot be empty")
	}
	if config.WSURL == "" {
		config.WSURL = config.APIURL
	}

	return config, flagSet.Args(), nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
