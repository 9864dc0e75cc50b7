package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"damo/internal/subcmd"
)

// newRegistry lists damo's subcommands in the order help shows them.
func newRegistry(app *commandContext) *subcmd.Registry {
	reg := subcmd.NewRegistry()
	reg.Add("record", "record data accesses", newRecordCommand(app))
	reg.Add("schemes", "apply operation schemes", newSchemesCommand(app, schemesModeForeground))
	reg.Add("start", "start DAMON in the background", newSchemesCommand(app, schemesModeBackground))
	reg.Add("tune", "tune DAMON parameters online", newSchemesCommand(app, schemesModeTune))
	reg.Add("stop", "stop DAMON", newStopCommand(app))
	reg.Add("status", "show DAMON status", newStatusCommand(app))
	reg.Add("stat_schemes", "show scheme statistics", newStatSchemesCommand(app))
	reg.Add("report", "report the recorded data accesses", newReportCommand(app))
	reg.Add("reclaim", "control DAMON_RECLAIM", newReclaimCommand(app))
	return reg
}

// versionPath falls back to a bare file name when the executable cannot be
// resolved, which makes the version command fail with a read error.
func versionPath() string {
	path, err := subcmd.VersionPath()
	if err != nil {
		return subcmd.VersionFile
	}
	return path
}

func helpWidth(w io.Writer) int {
	file, ok := w.(*os.File)
	if !ok {
		return 0
	}
	fd := file.Fd()
	if !isatty.IsTerminal(fd) {
		return 0
	}
	width, _, err := term.GetSize(int(fd))
	if err != nil {
		return 0
	}
	return width
}
