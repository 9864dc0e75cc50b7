package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDAMON(); err != nil {
		return err
	}
	if err := c.validateRecord(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDAMON() error {
	switch c.DAMON.Interface {
	case "auto", "sysfs", "debugfs":
	default:
		return fmt.Errorf("damon.interface must be one of auto, sysfs, debugfs (got %q)", c.DAMON.Interface)
	}
	if c.DAMON.PollIntervalMS <= 0 {
		return errors.New("damon.poll_interval_ms must be positive")
	}
	return nil
}

func (c *Config) validateRecord() error {
	if _, err := ParsePermission(c.Record.Permission); err != nil {
		return fmt.Errorf("record.permission: %w", err)
	}
	if c.Record.PerfBinary == "" {
		return errors.New("record.perf_binary must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}
