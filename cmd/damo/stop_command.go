package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"damo/internal/subcmd"
)

type stopCommand struct {
	app *commandContext
}

func newStopCommand(app *commandContext) *stopCommand {
	return &stopCommand{app: app}
}

func (c *stopCommand) ContributeParser(*cobra.Command) {}

func (c *stopCommand) Execute(args *subcmd.Args) error {
	if err := ensureRoot(); err != nil {
		return err
	}
	cfg, err := c.app.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.app.componentLogger("stop")
	if err != nil {
		return err
	}
	sysfs, err := c.app.sysfs()
	if err != nil {
		return err
	}
	running, err := sysfs.RunningNames()
	if err != nil {
		return err
	}
	if len(running) == 0 {
		fmt.Fprintln(args.Stdout, "DAMON is not turned on")
		return nil
	}
	if err := turnOff(args.Context(), sysfs, running, cfg.PollInterval(), logger); err != nil {
		return fmt.Errorf("turn DAMON off: %w", err)
	}
	fmt.Fprintf(args.Stdout, "DAMON stopped (%d kdamond(s))\n", len(running))
	return nil
}
