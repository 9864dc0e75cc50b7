package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"damo/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("DAMO_LOG_LEVEL", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "damo", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "state", "damo")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.LockPath() != filepath.Join(wantState, "damo.lock") {
		t.Fatalf("unexpected lock path %q", cfg.LockPath())
	}
	if cfg.DAMON.Interface != "auto" {
		t.Fatalf("unexpected interface %q", cfg.DAMON.Interface)
	}
	if cfg.DAMON.SysfsDir != "/sys/kernel/mm/damon/admin" {
		t.Fatalf("unexpected sysfs dir %q", cfg.DAMON.SysfsDir)
	}
	if cfg.PollInterval() != time.Second {
		t.Fatalf("unexpected poll interval %s", cfg.PollInterval())
	}
	if cfg.OutputPermission() != 0o600 {
		t.Fatalf("unexpected permission %o", cfg.OutputPermission())
	}
	if cfg.Record.Output != "damon.data" || cfg.Record.PerfBinary != "perf" {
		t.Fatalf("unexpected record defaults %+v", cfg.Record)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Fatalf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("DAMO_LOG_LEVEL", "")
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "damo.toml")
	contents := `
[paths]
state_dir = "` + filepath.Join(dir, "state") + `"

[damon]
interface = "SYSFS"
sysfs_dir = "` + filepath.Join(dir, "sysfs") + `"
poll_interval_ms = 250

[record]
output = "trace.txt"
permission = "0644"

[logging]
format = "JSON"
level = "warning"
file = "~/logs/damo.log"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution %q exists=%v", resolved, exists)
	}
	if cfg.DAMON.Interface != "sysfs" {
		t.Fatalf("interface not normalized: %q", cfg.DAMON.Interface)
	}
	if cfg.DAMON.SysfsDir != filepath.Join(dir, "sysfs") {
		t.Fatalf("unexpected sysfs dir %q", cfg.DAMON.SysfsDir)
	}
	if cfg.DAMON.ReclaimDir != "/sys/module/damon_reclaim/parameters" {
		t.Fatalf("reclaim dir default lost: %q", cfg.DAMON.ReclaimDir)
	}
	if cfg.PollInterval() != 250*time.Millisecond {
		t.Fatalf("unexpected poll interval %s", cfg.PollInterval())
	}
	if cfg.OutputPermission() != 0o644 {
		t.Fatalf("unexpected permission %o", cfg.OutputPermission())
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "warn" {
		t.Fatalf("unexpected logging %+v", cfg.Logging)
	}
	if cfg.Logging.File != filepath.Join(dir, "logs", "damo.log") {
		t.Fatalf("log file not expanded: %q", cfg.Logging.File)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "damo.toml")
	if err := os.WriteFile(path, []byte("[damon]\nsysfs = \"/x\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestLoadMissingCustomPathUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists || resolved != path {
		t.Fatalf("unexpected resolution %q exists=%v", resolved, exists)
	}
	if cfg.DAMON.Interface != "auto" {
		t.Fatalf("unexpected interface %q", cfg.DAMON.Interface)
	}
}

func TestLogLevelEnvFallback(t *testing.T) {
	t.Setenv("DAMO_LOG_LEVEL", "DEBUG")
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected env level, got %q", cfg.Logging.Level)
	}

	path := filepath.Join(t.TempDir(), "damo.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"error\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err = config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != "error" {
		t.Fatalf("file level should win over env, got %q", cfg.Logging.Level)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "info"
	cfg.DAMON.Interface = "procfs"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown interface")
	}

	cfg = config.Default()
	cfg.Logging.Level = "info"
	cfg.DAMON.PollIntervalMS = -5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative poll interval")
	}

	cfg = config.Default()
	cfg.Logging.Level = "info"
	cfg.Record.Permission = "999"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-octal permission")
	}

	cfg = config.Default()
	cfg.Logging.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}

	cfg = config.Default()
	cfg.Logging.Level = "info"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestParsePermission(t *testing.T) {
	tests := []struct {
		in      string
		want    os.FileMode
		wantErr bool
	}{
		{in: "600", want: 0o600},
		{in: "0644", want: 0o644},
		{in: " 755 ", want: 0o755},
		{in: "1777", wantErr: true},
		{in: "rw", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := config.ParsePermission(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParsePermission(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParsePermission(%q) = %o, %v", tt.in, got, err)
		}
	}
}
