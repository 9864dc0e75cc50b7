// Package main hosts the damo CLI entrypoint and its subcommand handlers.
//
// The dispatch core lives in internal/subcmd; this package builds the
// registry of handlers, composes the parser, and maps results to exit codes.
// Each handler owns its flags and delegates kernel access to internal/damon,
// so new commands are added by extending the internal packages first and then
// registering a thin handler here.
package main
