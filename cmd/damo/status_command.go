package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"damo/internal/damon"
	"damo/internal/subcmd"
)

type statusCommand struct {
	app *commandContext

	json bool
	raw  bool
}

func newStatusCommand(app *commandContext) *statusCommand {
	return &statusCommand{app: app}
}

func (c *statusCommand) ContributeParser(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&c.json, "json", false, "print the kdamonds tree as JSON")
	cmd.Flags().BoolVar(&c.raw, "raw", false, "print numbers without units")
}

func (c *statusCommand) Execute(args *subcmd.Args) error {
	sysfs, err := c.app.sysfs()
	if err != nil {
		return err
	}
	kdamonds, err := sysfs.Kdamonds()
	if err != nil {
		return fmt.Errorf("read kdamonds: %w", err)
	}
	if c.json {
		if kdamonds == nil {
			kdamonds = []damon.Kdamond{}
		}
		return writeJSON(args.Stdout, kdamonds)
	}
	if len(kdamonds) == 0 {
		fmt.Fprintln(args.Stdout, "No kdamonds configured")
		return nil
	}

	colorize := shouldColorize(args.Stdout)
	fmt.Fprintln(args.Stdout, renderTable(c.contextsTable(kdamonds, colorize)))
	if schemes := c.schemesTable(kdamonds, colorize); len(schemes.rows) > 0 {
		fmt.Fprintln(args.Stdout, renderTable(schemes))
	}
	return nil
}

func (c *statusCommand) contextsTable(kdamonds []damon.Kdamond, colorize bool) tableSpec {
	spec := tableSpec{
		title:   "kdamonds",
		headers: []string{"Kdamond", "State", "PID", "Context", "Ops", "Intervals", "Regions", "Targets"},
		aligns:  []columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
		rounded: colorize,
	}
	for _, kd := range kdamonds {
		pid := "-"
		if kd.Running() {
			pid = strconv.Itoa(kd.PID)
		}
		if len(kd.Contexts) == 0 {
			spec.rows = append(spec.rows, []string{kd.Name, renderState(kd.State, colorize), pid, "-", "", "", "", ""})
			continue
		}
		for _, ctx := range kd.Contexts {
			spec.rows = append(spec.rows, []string{
				kd.Name,
				renderState(kd.State, colorize),
				pid,
				ctx.Name,
				ctx.Ops,
				c.intervals(ctx.Intervals),
				fmt.Sprintf("[%s, %s]", formatNr(ctx.NrRegions.Min, c.raw), formatNr(ctx.NrRegions.Max, c.raw)),
				c.targets(ctx),
			})
		}
	}
	return spec
}

func (c *statusCommand) intervals(iv damon.Intervals) string {
	return fmt.Sprintf("sample %s, aggr %s, update %s",
		formatDuration(iv.Sample, c.raw), formatDuration(iv.Aggr, c.raw), formatDuration(iv.Update, c.raw))
}

func (c *statusCommand) targets(ctx damon.Context) string {
	parts := make([]string, 0, len(ctx.Targets))
	for _, target := range ctx.Targets {
		var b strings.Builder
		if damon.TargetHasPID(ctx.Ops) {
			fmt.Fprintf(&b, "pid %d", target.PID)
		} else {
			b.WriteString("physical")
		}
		for _, region := range target.Regions {
			b.WriteString(" ")
			b.WriteString(formatAddrRange(region.Start, region.End, c.raw))
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n")
}

func (c *statusCommand) schemesTable(kdamonds []damon.Kdamond, colorize bool) tableSpec {
	spec := tableSpec{
		title:   "schemes",
		headers: []string{"Kdamond", "Context", "Scheme", "Action", "Size", "Accesses", "Age", "Quotas", "Watermarks"},
		aligns:  []columnAlignment{alignRight, alignRight, alignRight},
		rounded: colorize,
	}
	for _, kd := range kdamonds {
		for _, ctx := range kd.Contexts {
			for _, scheme := range ctx.Schemes {
				p := scheme.AccessPattern
				spec.rows = append(spec.rows, []string{
					kd.Name,
					ctx.Name,
					scheme.Name,
					scheme.Action,
					fmt.Sprintf("[%s, %s]", formatSize(p.MinSize, c.raw), formatSize(p.MaxSize, c.raw)),
					fmt.Sprintf("[%s, %s]", formatNr(p.MinNrAccesses, c.raw), formatNr(p.MaxNrAccesses, c.raw)),
					fmt.Sprintf("[%s, %s]", formatNr(p.MinAge, c.raw), formatNr(p.MaxAge, c.raw)),
					c.quotas(scheme.Quotas),
					c.watermarks(scheme.Watermarks),
				})
			}
		}
	}
	return spec
}

func (c *statusCommand) quotas(q damon.Quotas) string {
	if q.TimeMS == 0 && q.Bytes == 0 {
		return "none"
	}
	return fmt.Sprintf("%d ms, %s per %d ms", q.TimeMS, formatSize(q.Bytes, c.raw), q.ResetIntervalMS)
}

func (c *statusCommand) watermarks(w damon.Watermarks) string {
	if w.Metric == "" || w.Metric == damon.MetricNone {
		return "none"
	}
	return fmt.Sprintf("%s high %d mid %d low %d", w.Metric, w.High, w.Mid, w.Low)
}
