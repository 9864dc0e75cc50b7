package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"damo/internal/config"
	"damo/internal/damon"
	"damo/internal/logging"
)

// ensureRoot guards commands that write DAMON files.
var ensureRoot = damon.EnsureRoot

type commandContext struct {
	configFlag   string
	logLevelFlag string

	stdout io.Writer
	stderr io.Writer

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
	sessionID  string
}

func newCommandContext(stdout, stderr io.Writer) *commandContext {
	return &commandContext{
		stdout:    stdout,
		stderr:    stderr,
		sessionID: uuid.NewString(),
	}
}

func (c *commandContext) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.configFlag, "config", "", "configuration file path")
	fs.StringVar(&c.logLevelFlag, "log-level", "", "log level (debug, info, warn, error)")
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		if level := strings.TrimSpace(c.logLevelFlag); level != "" && !logging.ValidLevel(level) {
			c.loggerErr = fmt.Errorf("invalid --log-level %q", level)
			return
		}
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg, c.stderr, c.logLevelFlag)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		ctx := logging.ContextWithSessionID(context.Background(), c.sessionID)
		c.logger = logging.WithContext(ctx, logger)
	})
	return c.logger, c.loggerErr
}

// componentLogger returns the session logger tagged with component.
func (c *commandContext) componentLogger(component string) (*slog.Logger, error) {
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return logging.NewComponentLogger(logger, component), nil
}

// sysfs detects the DAMON interface named by the configuration.
func (c *commandContext) sysfs() (*damon.Sysfs, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return damon.Detect(damon.Locations{
		Interface:  cfg.DAMON.Interface,
		SysfsDir:   cfg.DAMON.SysfsDir,
		DebugfsDir: cfg.DAMON.DebugfsDir,
	})
}

// lockSession takes the exclusive session lock so two damo sessions cannot
// rewrite the same kdamonds.
func (c *commandContext) lockSession() (func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	lockPath := cfg.LockPath()
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another damo session is active (lock %s)", lockPath)
	}
	return func() { _ = lock.Unlock() }, nil
}
