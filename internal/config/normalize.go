package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDAMON(); err != nil {
		return err
	}
	c.normalizeRecord()
	return c.normalizeLogging()
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDAMON() error {
	c.DAMON.Interface = strings.ToLower(strings.TrimSpace(c.DAMON.Interface))
	if c.DAMON.Interface == "" {
		c.DAMON.Interface = defaultInterface
	}
	dirs := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"damon.sysfs_dir", &c.DAMON.SysfsDir, defaultSysfsDir},
		{"damon.debugfs_dir", &c.DAMON.DebugfsDir, defaultDebugfsDir},
		{"damon.reclaim_dir", &c.DAMON.ReclaimDir, defaultReclaimDir},
		{"damon.iomem_path", &c.DAMON.IomemPath, defaultIomemPath},
	}
	for _, dir := range dirs {
		if strings.TrimSpace(*dir.value) == "" {
			*dir.value = dir.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*dir.value))
		if err != nil {
			return fmt.Errorf("%s: %w", dir.key, err)
		}
		*dir.value = expanded
	}
	if c.DAMON.PollIntervalMS == 0 {
		c.DAMON.PollIntervalMS = defaultPollIntervalMS
	}
	return nil
}

func (c *Config) normalizeRecord() {
	c.Record.Output = strings.TrimSpace(c.Record.Output)
	if c.Record.Output == "" {
		c.Record.Output = defaultRecordOutput
	}
	c.Record.Permission = strings.TrimSpace(c.Record.Permission)
	if c.Record.Permission == "" {
		c.Record.Permission = defaultRecordPermission
	}
	c.Record.PerfBinary = strings.TrimSpace(c.Record.PerfBinary)
	if c.Record.PerfBinary == "" {
		c.Record.PerfBinary = defaultPerfBinary
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console", "text":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		if value, ok := os.LookupEnv("DAMO_LOG_LEVEL"); ok {
			c.Logging.Level = strings.ToLower(strings.TrimSpace(value))
		}
	}
	switch c.Logging.Level {
	case "":
		c.Logging.Level = defaultLogLevel
	case "warning":
		c.Logging.Level = "warn"
	}

	var err error
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}
