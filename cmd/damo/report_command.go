package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"damo/internal/record"
	"damo/internal/subcmd"
)

type reportCommand struct {
	app *commandContext

	input     string
	rawNumber bool
	json      bool
}

func newReportCommand(app *commandContext) *reportCommand {
	return &reportCommand{app: app}
}

func (c *reportCommand) ContributeParser(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&c.input, "input", "i", "", "input file name (default from config, damon.data)")
	fs.BoolVar(&c.rawNumber, "raw_number", false, "print times and sizes as plain numbers")
	fs.BoolVar(&c.json, "json", false, "print the parsed snapshots as JSON")
}

func (c *reportCommand) Execute(args *subcmd.Args) error {
	input := strings.TrimSpace(c.input)
	if input == "" {
		cfg, err := c.app.ensureConfig()
		if err != nil {
			return err
		}
		input = cfg.Record.Output
	}
	info, err := os.Stat(input)
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("input file (%s) does not exist", input)
	}
	result, err := record.ParseFile(input)
	if err != nil {
		return err
	}
	if c.json {
		return writeJSON(args.Stdout, result)
	}
	return record.WriteRaw(args.Stdout, result, c.rawNumber)
}
