// Package logging assembles structured slog loggers and formatting helpers used
// across damo subcommands.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and tags session-holding commands with a session identifier so the lines of
// one record or schemes run can be grouped. Logs are written to stderr by
// default; stdout is reserved for command output. A no-op logger is provided
// for tests and wiring code that cannot fail.
package logging
