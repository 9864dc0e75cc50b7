package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
)

// renderState renders a kdamond state, green when on and red when off.
func renderState(state string, colorize bool) string {
	if !colorize {
		return state
	}
	switch state {
	case "on":
		return ansiGreen + state + ansiReset
	case "off":
		return ansiRed + state + ansiReset
	default:
		return state
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
