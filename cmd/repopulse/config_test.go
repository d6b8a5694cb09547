package main

import (
	"path/filepath"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"REPOPULSE_API_URL", "REPOPULSE_WS_URL", "REPOPULSE_DB_PATH", "REPOPULSE_REDIS_ADDR", "REPOPULSE_METRICS_ADDR"} {
		t.Setenv(key, "")
	}

	config, args, err := LoadConfig([]string{"watch", "abc123"})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.APIURL != defaultAPIURL {
		t.Errorf("APIURL = %q; want %q", config.APIURL, defaultAPIURL)
	}
	if config.WSURL != config.APIURL {
		t.Errorf("WSURL = %q; want derived from APIURL", config.WSURL)
	}
	if filepath.Base(config.DBPath) != "repopulse.db" {
		t.Errorf("DBPath = %q; want default repopulse.db", config.DBPath)
	}
	if config.RedisAddr != "" || config.MetricsAddr != "" {
		t.Error("optional services should default to disabled")
	}
	if len(args) != 2 || args[0] != "watch" || args[1] != "abc123" {
		t.Errorf("args = %v; want subcommand preserved", args)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("REPOPULSE_API_URL", "https://analysis.internal:9000")
	t.Setenv("REPOPULSE_WS_URL", "wss://stream.internal:9001")
	t.Setenv("REPOPULSE_REDIS_ADDR", "127.0.0.1:6379")

	config, _, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.APIURL != "https://analysis.internal:9000" {
		t.Errorf("APIURL = %q", config.APIURL)
	}
	if config.WSURL != "wss://stream.internal:9001" {
		t.Errorf("WSURL = %q", config.WSURL)
	}
	if config.RedisAddr != "127.0.0.1:6379" {
		t.Errorf("RedisAddr = %q", config.RedisAddr)
	}
}

func TestLoadConfig_FlagsBeatEnv(t *testing.T) {
	t.Setenv("REPOPULSE_API_URL", "http://from-env:8000")

	config, args, err := LoadConfig([]string{"-api", "http://from-flag:8000", "submit", "https://github.com/acme/widgets"})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.APIURL != "http://from-flag:8000" {
		t.Errorf("APIURL = %q; want the flag to win", config.APIURL)
	}
	if len(args) != 2 || args[0] != "submit" {
		t.Errorf("args = %v", args)
	}
}

func TestLoadConfig_SubmitFlags(t *testing.T) {
	config, _, err := LoadConfig([]string{"-branch", "develop", "-max-files", "500", "-cross-repo", "submit", "x"})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Branch != "develop" || config.MaxFiles != 500 || !config.CrossRepo {
		t.Errorf("submit options not parsed: %+v", config)
	}
}

func TestLoadConfig_RelativeDBPathResolved(t *testing.T) {
	config, _, err := LoadConfig([]string{"-db", "data/history.db", "history"})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !filepath.IsAbs(config.DBPath) {
		t.Errorf("DBPath = %q; want absolute", config.DBPath)
	}
}
