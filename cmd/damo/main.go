package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"damo/internal/compat"
	"damo/internal/logging"
	"damo/internal/subcmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run executes one damo invocation and returns the process exit code.
func run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	compat.Check(stderr, compat.Probe())
	return runWith(ctx, newCommandContext(stdout, stderr), argv)
}

func runWith(ctx context.Context, app *commandContext, argv []string) int {
	parser := subcmd.Compose(newRegistry(app), subcmd.ComposeOptions{
		Prog:        "damo",
		Description: "Control DAMON, the kernel's data access monitor.",
		Version:     subcmd.NewVersionHandler(versionPath()),
		Flags:       app.bindFlags,
		HelpWidth:   helpWidth(app.stdout),
		Stdout:      app.stdout,
		Stderr:      app.stderr,
	})

	args, err := parser.Parse(ctx, argv)
	if err != nil {
		return reportError(app.stderr, err)
	}
	if args == nil {
		return subcmd.ExitOK
	}

	if args.Command != subcmd.VersionCommand {
		if logger, err := app.ensureLogger(); err == nil {
			for _, name := range parser.Registry().Shadowed() {
				logger.Debug("duplicate subcommand ignored", logging.String("command", name))
			}
		}
	}

	if _, err := subcmd.Dispatch(parser.Registry(), args); err != nil {
		return reportError(app.stderr, err)
	}
	return subcmd.ExitOK
}

func reportError(w io.Writer, err error) int {
	var usage *subcmd.UsageError
	switch {
	case errors.As(err, &usage):
		subcmd.WriteUsageError(w, usage)
	case errors.Is(err, context.Canceled):
	default:
		fmt.Fprintln(w, err)
	}
	return subcmd.ExitCode(err)
}
