package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questline.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store != BackendFile || cfg.SaveKey() != "autosave" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Reset.Daily != "0 0 * * *" {
		t.Errorf("daily reset = %q", cfg.Reset.Daily)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeConfig(t, `
store: sqlite
sqlite_path: /tmp/game.db
log_level: debug
eval_timeout: 250ms
reset:
  daily: "0 4 * * *"
auto_save: false
`)
	t.Setenv("QUESTLINE_LOG_LEVEL", "error")
	t.Setenv("QUESTLINE_RESET_WEEKLY", "0 4 * * 0")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store != BackendSQLite || cfg.SQLitePath != "/tmp/game.db" {
		t.Errorf("store = %q %q", cfg.Store, cfg.SQLitePath)
	}
	if cfg.EvalTimeout != 250*time.Millisecond {
		t.Errorf("EvalTimeout = %v", cfg.EvalTimeout)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("env should override yaml: LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Reset.Daily != "0 4 * * *" || cfg.Reset.Weekly != "0 4 * * 0" {
		t.Errorf("reset = %+v", cfg.Reset)
	}
	if cfg.Reset.Monthly != "0 0 1 * *" {
		t.Errorf("monthly should keep its default, got %q", cfg.Reset.Monthly)
	}
	if cfg.SaveKey() != "" {
		t.Errorf("SaveKey with auto_save off = %q", cfg.SaveKey())
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad backend", "store: postgres", "unknown store backend"},
		{"bad level", "log_level: loud", "unknown log level"},
		{"bad timezone", "timezone: Mars/Olympus", "timezone"},
		{"bad cron", "reset:\n  daily: \"every day\"", "daily"},
		{"bad yaml", "store: [", "parsing config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLocation(t *testing.T) {
	cfg := Default()
	cfg.Timezone = "UTC"
	loc, err := cfg.Location()
	if err != nil {
		t.Fatal(err)
	}
	if loc != time.UTC {
		t.Errorf("loc = %v, want UTC", loc)
	}
}
