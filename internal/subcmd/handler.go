package subcmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Args is the result of parsing one invocation. Command names the selected
// subcommand; Flags and Positional are whatever that subcommand's parser
// contribution defined.
type Args struct {
	Command    string
	Flags      *pflag.FlagSet
	Positional []string
	Stdout     io.Writer
	Stderr     io.Writer

	ctx context.Context
}

// Context returns the invocation context, never nil.
func (a *Args) Context() context.Context {
	if a == nil || a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

// WithContext returns a shallow copy of a carrying ctx.
func (a *Args) WithContext(ctx context.Context) *Args {
	clone := *a
	clone.ctx = ctx
	return &clone
}

// Handler backs a SubCommand.
type Handler interface {
	// ContributeParser registers the subcommand's own flags and positional
	// rules on cmd. It must not change the command name.
	ContributeParser(cmd *cobra.Command)
	// Execute performs the subcommand using the fully parsed arguments.
	Execute(args *Args) error
}

// HandlerFunc adapts a plain function to Handler. It contributes nothing to
// the parser.
type HandlerFunc func(args *Args) error

// ContributeParser is a no-op.
func (f HandlerFunc) ContributeParser(*cobra.Command) {}

// Execute calls f(args).
func (f HandlerFunc) Execute(args *Args) error {
	return f(args)
}
