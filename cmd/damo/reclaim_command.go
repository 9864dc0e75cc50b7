package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"damo/internal/damon"
	"damo/internal/logging"
	"damo/internal/subcmd"
)

const (
	reclaimActionEnable  = "enable"
	reclaimActionDisable = "disable"
	reclaimActionStatus  = "status"
)

type reclaimCommand struct {
	app *commandContext

	params  []string
	minAge  time.Duration
	quotaMS uint64
	quotaSz string
	json    bool
}

func newReclaimCommand(app *commandContext) *reclaimCommand {
	return &reclaimCommand{app: app}
}

func (c *reclaimCommand) ContributeParser(cmd *cobra.Command) {
	cmd.Use = "reclaim <enable|disable|status>"
	cmd.Args = cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs)
	cmd.ValidArgs = []string{reclaimActionEnable, reclaimActionDisable, reclaimActionStatus}
	fs := cmd.Flags()
	fs.StringArrayVarP(&c.params, "param", "p", nil, "set a DAMON_RECLAIM parameter (<name>=<value>, repeatable)")
	fs.DurationVar(&c.minAge, "min_age", 0, "minimum age of regions to reclaim")
	fs.Uint64Var(&c.quotaMS, "quota_ms", 0, "time quota for reclamation per reset interval, in milliseconds")
	fs.StringVar(&c.quotaSz, "quota_sz", "", "size quota for reclamation per reset interval (e.g. 128MiB)")
	fs.BoolVar(&c.json, "json", false, "print status as JSON")
}

func (c *reclaimCommand) Execute(args *subcmd.Args) error {
	cfg, err := c.app.ensureConfig()
	if err != nil {
		return err
	}
	reclaim := damon.NewReclaim(cfg.DAMON.ReclaimDir)
	if !reclaim.Supported() {
		return errors.New("DAMON_RECLAIM is not available on this kernel")
	}

	action := args.Positional[0]
	if action == reclaimActionStatus {
		return c.status(args, reclaim)
	}

	if err := ensureRoot(); err != nil {
		return err
	}
	logger, err := c.app.componentLogger("reclaim")
	if err != nil {
		return err
	}

	if action == reclaimActionDisable {
		if err := reclaim.SetEnabled(false); err != nil {
			return err
		}
		logger.Info("DAMON_RECLAIM disabled")
		return nil
	}

	params, err := c.requestedParams(args)
	if err != nil {
		return err
	}
	for _, param := range params {
		if err := reclaim.Set(param.Name, param.Value); err != nil {
			return err
		}
		logger.Debug("DAMON_RECLAIM parameter set", logging.String("name", param.Name), logging.String("value", param.Value))
	}
	enabled, err := reclaim.Enabled()
	if err != nil {
		return err
	}
	if enabled {
		if len(params) > 0 {
			if err := reclaim.CommitInputs(); err != nil {
				return err
			}
			logger.Info("DAMON_RECLAIM parameters committed", logging.Int("params", len(params)))
		}
		return nil
	}
	if err := reclaim.SetEnabled(true); err != nil {
		return err
	}
	logger.Info("DAMON_RECLAIM enabled")
	return nil
}

// requestedParams collects parameter writes from the dedicated flags and
// --param, in that order.
func (c *reclaimCommand) requestedParams(args *subcmd.Args) ([]damon.ReclaimParam, error) {
	var params []damon.ReclaimParam
	if args.Flags.Changed("min_age") {
		params = append(params, damon.ReclaimParam{Name: "min_age", Value: strconv.FormatInt(c.minAge.Microseconds(), 10)})
	}
	if args.Flags.Changed("quota_ms") {
		params = append(params, damon.ReclaimParam{Name: "quota_ms", Value: strconv.FormatUint(c.quotaMS, 10)})
	}
	if args.Flags.Changed("quota_sz") {
		size, err := humanize.ParseBytes(c.quotaSz)
		if err != nil {
			return nil, fmt.Errorf("--quota_sz: %w", err)
		}
		params = append(params, damon.ReclaimParam{Name: "quota_sz", Value: strconv.FormatUint(size, 10)})
	}
	for _, raw := range c.params {
		name, value, ok := strings.Cut(raw, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("--param %q: want <name>=<value>", raw)
		}
		if name == damon.ReclaimEnabled || name == damon.ReclaimCommitInputs || name == damon.ReclaimKdamondPID {
			return nil, fmt.Errorf("--param %s is managed by damo", name)
		}
		params = append(params, damon.ReclaimParam{Name: name, Value: strings.TrimSpace(value)})
	}
	return params, nil
}

func (c *reclaimCommand) status(args *subcmd.Args, reclaim *damon.Reclaim) error {
	params, err := reclaim.Params()
	if err != nil {
		return err
	}
	if c.json {
		return writeJSON(args.Stdout, params)
	}
	if enabled, err := reclaim.Enabled(); err == nil {
		fmt.Fprintf(args.Stdout, "enabled: %s\n", yesNo(enabled))
	}
	rows := make([][]string, 0, len(params))
	for _, param := range params {
		rows = append(rows, []string{param.Name, param.Value})
	}
	fmt.Fprintln(args.Stdout, renderTable(tableSpec{
		title:   "DAMON_RECLAIM",
		headers: []string{"Parameter", "Value"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignRight},
		rounded: shouldColorize(args.Stdout),
	}))
	return nil
}
