package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"damo/internal/damon"
	"damo/internal/subcmd"
)

const (
	statSchemesStats        = "schemes_stats"
	statSchemesTriedRegions = "schemes_tried_regions"
)

type statSchemesCommand struct {
	app *commandContext

	raw   bool
	count int
	delay time.Duration
}

func newStatSchemesCommand(app *commandContext) *statSchemesCommand {
	return &statSchemesCommand{app: app}
}

func (c *statSchemesCommand) ContributeParser(cmd *cobra.Command) {
	cmd.Use = "stat_schemes [schemes_stats|schemes_tried_regions]"
	cmd.Args = cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs)
	cmd.ValidArgs = []string{statSchemesStats, statSchemesTriedRegions}
	fs := cmd.Flags()
	fs.BoolVar(&c.raw, "raw", false, "print numbers without units or separators")
	fs.IntVar(&c.count, "count", 1, "number of times to print")
	fs.DurationVar(&c.delay, "delay", 3*time.Second, "delay between prints")
}

func (c *statSchemesCommand) Execute(args *subcmd.Args) error {
	statType := statSchemesStats
	if len(args.Positional) > 0 {
		statType = args.Positional[0]
	}
	if c.count < 1 {
		return fmt.Errorf("--count must be positive")
	}
	if err := ensureRoot(); err != nil {
		return err
	}
	sysfs, err := c.app.sysfs()
	if err != nil {
		return err
	}

	ctx := args.Context()
	for i := 0; i < c.count; i++ {
		if i > 0 {
			timer := time.NewTimer(c.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := c.printOnce(args.Stdout, sysfs, statType); err != nil {
			return err
		}
	}
	return nil
}

func (c *statSchemesCommand) printOnce(w io.Writer, sysfs *damon.Sysfs, statType string) error {
	running, err := sysfs.RunningNames()
	if err != nil {
		return err
	}
	if len(running) == 0 {
		return damon.ErrNotRunning
	}
	if statType == statSchemesTriedRegions {
		err = sysfs.UpdateSchemesTriedRegions(running)
	} else {
		err = sysfs.UpdateSchemesStats(running)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", statType, err)
	}
	kdamonds, err := sysfs.Kdamonds()
	if err != nil {
		return err
	}
	if statType == statSchemesTriedRegions {
		c.printTriedRegions(w, kdamonds)
	} else {
		c.printStats(w, kdamonds)
	}
	return nil
}

func (c *statSchemesCommand) printStats(w io.Writer, kdamonds []damon.Kdamond) {
	fmt.Fprintln(w, "# <kdamond> <context> <scheme> <field> <value>")
	for _, kd := range kdamonds {
		for _, ctx := range kd.Contexts {
			for _, scheme := range ctx.Schemes {
				var stats damon.SchemeStats
				if scheme.Stats != nil {
					stats = *scheme.Stats
				}
				fields := []struct {
					name  string
					value string
				}{
					{"nr_tried", formatNr(stats.NrTried, c.raw)},
					{"sz_tried", formatSize(stats.SzTried, c.raw)},
					{"nr_applied", formatNr(stats.NrApplied, c.raw)},
					{"sz_applied", formatSize(stats.SzApplied, c.raw)},
					{"qt_exceeds", formatNr(stats.QtExceeds, c.raw)},
				}
				for _, field := range fields {
					fmt.Fprintf(w, "%s %s %s %s %s\n", kd.Name, ctx.Name, scheme.Name, field.name, field.value)
				}
			}
		}
	}
}

func (c *statSchemesCommand) printTriedRegions(w io.Writer, kdamonds []damon.Kdamond) {
	fmt.Fprintln(w, "# <kdamond> <context> <scheme>")
	fmt.Fprintln(w, "# <regions>")
	fmt.Fprintln(w, "# ...")
	for _, kd := range kdamonds {
		for _, ctx := range kd.Contexts {
			for _, scheme := range ctx.Schemes {
				fmt.Fprintf(w, "%s %s %s\n", kd.Name, ctx.Name, scheme.Name)
				for _, region := range scheme.TriedRegions {
					fmt.Fprintf(w, "%s: nr_accesses: %s, age: %s\n",
						formatAddrRange(region.Start, region.End, c.raw),
						formatNr(region.NrAccesses, c.raw),
						formatNr(region.Age, c.raw))
				}
			}
		}
	}
}
