package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"damo/internal/damon"
	"damo/internal/logging"
	"damo/internal/subcmd"
)

type schemesMode int

const (
	// schemesModeForeground applies schemes until DAMON stops or a signal
	// arrives, then restores the previous kdamonds.
	schemesModeForeground schemesMode = iota
	// schemesModeBackground turns DAMON on and returns.
	schemesModeBackground
	// schemesModeTune updates running kdamonds in place.
	schemesModeTune
)

func (m schemesMode) String() string {
	switch m {
	case schemesModeBackground:
		return "start"
	case schemesModeTune:
		return "tune"
	default:
		return "schemes"
	}
}

type schemesCommand struct {
	app  *commandContext
	mode schemesMode

	monitoring monitoringFlags
	schemes    string
}

func newSchemesCommand(app *commandContext, mode schemesMode) *schemesCommand {
	return &schemesCommand{app: app, mode: mode}
}

func (c *schemesCommand) ContributeParser(cmd *cobra.Command) {
	cmd.Use = c.mode.String() + " <target>"
	cmd.Args = cobra.ExactArgs(1)
	fs := cmd.Flags()
	c.monitoring.bind(fs)
	fs.StringVarP(&c.schemes, "schemes", "c", "", "schemes file path or inline TOML schemes document")
	switch c.mode {
	case schemesModeForeground:
		cmd.Long = "Apply DAMON-based operation schemes to <target> until DAMON stops or\n" +
			"Ctrl+C is pressed, then restore the previous kdamonds."
	case schemesModeBackground:
		cmd.Long = "Start monitoring <target>, with optional schemes, and return."
	case schemesModeTune:
		cmd.Long = "Update the monitoring attributes and schemes of the running kdamond."
	}
}

func (c *schemesCommand) Execute(args *subcmd.Args) error {
	target, err := parseTarget(args.Positional[0])
	if err != nil {
		return err
	}
	if target.kind == targetOngoing {
		return fmt.Errorf("%s does not support the %q target", c.mode, targetNameOngoing)
	}
	if c.mode == schemesModeTune && target.kind == targetCommand {
		return errors.New("tune needs a pid or paddr target")
	}
	if err := ensureRoot(); err != nil {
		return err
	}
	cfg, err := c.app.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.app.componentLogger(c.mode.String())
	if err != nil {
		return err
	}

	var schemes []damon.Scheme
	if source := strings.TrimSpace(c.schemes); source != "" {
		if schemes, err = damon.LoadSchemes(source, c.monitoring.intervals()); err != nil {
			return err
		}
	}

	sysfs, err := c.app.sysfs()
	if err != nil {
		return err
	}

	if c.mode == schemesModeTune {
		return c.tune(args, sysfs, target, schemes)
	}

	release, err := c.app.lockSession()
	if err != nil {
		return err
	}
	defer release()

	if err := ensureIdle(sysfs); err != nil {
		return err
	}
	var original []damon.Kdamond
	if c.mode == schemesModeForeground {
		if original, err = sysfs.Kdamonds(); err != nil {
			return fmt.Errorf("read current kdamonds: %w", err)
		}
	}

	var proc *targetProcess
	pid := target.pid
	if target.kind == targetCommand {
		if proc, err = startTarget(target.command, args.Stdout, args.Stderr); err != nil {
			return err
		}
		pid = proc.pid()
	}
	kd, err := c.monitoring.kdamond(target, pid, cfg, schemes)
	if err != nil {
		if proc != nil {
			proc.stop(targetStopGrace)
		}
		return err
	}

	ctx := args.Context()
	poll := cfg.PollInterval()
	names, err := startKdamond(ctx, sysfs, kd, poll)
	if err != nil {
		if proc != nil {
			proc.stop(targetStopGrace)
		}
		if c.mode == schemesModeForeground {
			if restoreErr := sysfs.Apply(original); restoreErr != nil {
				logger.Warn("failed to restore previous kdamonds", logging.Error(restoreErr))
			}
		}
		return err
	}
	logger.Info("DAMON turned on",
		logging.String(logging.FieldTarget, args.Positional[0]),
		logging.Int("schemes", len(schemes)),
	)

	if c.mode == schemesModeBackground {
		fmt.Fprintf(args.Stdout, "DAMON started (kdamond %s)\n", strings.Join(names, ", "))
		return nil
	}

	fmt.Fprintln(args.Stdout, "Press Ctrl+C to stop")
	interrupted, waitErr := waitSession(ctx, sysfs, names, poll, proc)
	if interrupted {
		logger.Info("schemes interrupted")
	}
	if proc != nil {
		proc.stop(targetStopGrace)
	}
	if err := turnOff(ctx, sysfs, names, poll, logger); err != nil {
		logger.Warn("failed to turn DAMON off", logging.Error(err))
	}
	if err := sysfs.Apply(original); err != nil {
		logger.Warn("failed to restore previous kdamonds", logging.Error(err))
	}
	return waitErr
}

func (c *schemesCommand) tune(args *subcmd.Args, sysfs *damon.Sysfs, target monitoringTarget, schemes []damon.Scheme) error {
	cfg, err := c.app.ensureConfig()
	if err != nil {
		return err
	}
	running, err := sysfs.RunningNames()
	if err != nil {
		return err
	}
	if len(running) == 0 {
		return damon.ErrNotRunning
	}
	if !slices.Contains(running, kdamondName(0)) {
		return fmt.Errorf("kdamond %s is not turned on", kdamondName(0))
	}
	kd, err := c.monitoring.kdamond(target, target.pid, cfg, schemes)
	if err != nil {
		return err
	}
	kd.State = damon.StateOn
	if err := sysfs.WriteParams([]damon.Kdamond{kd}); err != nil {
		return fmt.Errorf("could not apply inputs: %w", err)
	}
	if err := sysfs.Commit([]string{kdamondName(0)}); err != nil {
		return fmt.Errorf("could not commit inputs: %w", err)
	}
	logger, err := c.app.componentLogger(c.mode.String())
	if err != nil {
		return err
	}
	logger.Info("DAMON parameters committed", logging.Int("schemes", len(schemes)))
	return nil
}
