package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Paths contains damo's own state locations.
type Paths struct {
	StateDir string `toml:"state_dir"`
}

// DAMON contains the kernel interface locations damo talks to.
type DAMON struct {
	// Interface selects the kernel interface: "auto", "sysfs" or "debugfs".
	Interface      string `toml:"interface"`
	SysfsDir       string `toml:"sysfs_dir"`
	DebugfsDir     string `toml:"debugfs_dir"`
	ReclaimDir     string `toml:"reclaim_dir"`
	IomemPath      string `toml:"iomem_path"`
	PollIntervalMS int    `toml:"poll_interval_ms"`
}

// Record contains defaults for "damo record".
type Record struct {
	Output     string `toml:"output"`
	Permission string `toml:"permission"` // octal, e.g. "600"
	PerfBinary string `toml:"perf_binary"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// File receives a copy of the log lines written to stderr.
	File string `toml:"file"`
}

// Config encapsulates all configuration values for damo.
//
// Configuration sections:
//   - Paths: state directory holding the session lock
//   - DAMON: sysfs/debugfs roots, DAMON_RECLAIM parameters, /proc/iomem
//   - Record: output file, permission, perf binary
//   - Logging: log format, level and optional log file
type Config struct {
	Paths   Paths   `toml:"paths"`
	DAMON   DAMON   `toml:"damon"`
	Record  Record  `toml:"record"`
	Logging Logging `toml:"logging"`
}

const defaultConfigPath = "~/.config/damo/config.toml"

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strings.TrimSpace(strict.String()))
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("damo.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state directory.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.StateDir, err)
	}
	return nil
}

// LockPath returns the session lock file shared by record, schemes and start.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "damo.lock")
}

// PollInterval returns how often kdamond state is re-read while waiting.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.DAMON.PollIntervalMS) * time.Millisecond
}

// OutputPermission returns the record output file mode.
func (c *Config) OutputPermission() os.FileMode {
	mode, err := ParsePermission(c.Record.Permission)
	if err != nil {
		return defaultOutputPermission
	}
	return mode
}

// ParsePermission parses an octal file mode such as "600" or "0644".
func ParsePermission(value string) (os.FileMode, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("permission is empty")
	}
	parsed, err := strconv.ParseUint(value, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("permission %q is not octal", value)
	}
	if parsed > 0o777 {
		return 0, fmt.Errorf("permission %q must be between 000 and 777", value)
	}
	return os.FileMode(parsed), nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "damo")
	}
	return "~/.local/state/damo"
}
