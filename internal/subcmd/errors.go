package subcmd

import (
	"errors"
	"fmt"
	"io"
)

// Process exit codes used by the CLI.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// UsageError reports malformed, missing, or unrecognized command-line input.
// It is produced by the parsing layer before any handler runs.
type UsageError struct {
	// Prog is the command path the error belongs to, e.g. "damo record".
	Prog string
	// Usage is the rendered usage line for Prog.
	Usage string
	Err   error
}

func (e *UsageError) Error() string {
	if e.Err == nil {
		return "usage error"
	}
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// ExitCoder lets a handler error choose its own process exit code.
type ExitCoder interface {
	ExitCode() int
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsage
	}
	var coder ExitCoder
	if errors.As(err, &coder) {
		if code := coder.ExitCode(); code != 0 {
			return code
		}
	}
	return ExitFailure
}

// WriteUsageError prints e the way the parser reports it: the usage line
// followed by "<prog>: error: <message>".
func WriteUsageError(w io.Writer, e *UsageError) {
	if e.Usage != "" {
		fmt.Fprintln(w, e.Usage)
	}
	fmt.Fprintf(w, "%s: error: %s\n", e.Prog, e.Error())
}
