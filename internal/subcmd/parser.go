package subcmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const selectorMetavar = "<command>"

// ComposeOptions configures the top-level parser.
type ComposeOptions struct {
	// Prog is the program name shown in usage lines.
	Prog string
	// Description is printed under the usage line of top-level help.
	Description string
	// Version backs the version pseudo-subcommand; nil omits it.
	Version Handler
	// Flags registers root-level flags, inherited by every subcommand.
	Flags func(fs *pflag.FlagSet)
	// HelpWidth wraps top-level help; zero disables wrapping.
	HelpWidth int

	Stdout io.Writer
	Stderr io.Writer
}

// Parser is the composed command tree for one process run.
type Parser struct {
	root      *cobra.Command
	reg       *Registry
	formatter HelpFormatter
	parsed    *Args
}

// Compose builds the top-level parser from reg. Every distinct name becomes a
// sub-parser in registration order, followed by the version pseudo-subcommand
// when opts.Version is set. The returned parser's Registry is the only valid
// dispatch table for what it parses.
//
// Compose turns off cobra's process-wide command sorting
// (cobra.EnableCommandSorting) so that help follows registration order for
// every cobra command in the process.
func Compose(reg *Registry, opts ComposeOptions) *Parser {
	cobra.EnableCommandSorting = false

	table := reg.clone()
	if opts.Version != nil {
		table.Add(VersionCommand, versionHelp, opts.Version)
	}

	prog := strings.TrimSpace(opts.Prog)
	if prog == "" {
		prog = "damo"
	}

	p := &Parser{
		reg:       table,
		formatter: HelpFormatter{Width: opts.HelpWidth},
	}

	root := &cobra.Command{
		Use:           prog,
		Long:          opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          p.validateSelector,
		RunE: func(cmd *cobra.Command, args []string) error {
			return p.requiredSelector()
		},
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}
	root.Flags().BoolP("help", "h", false, "show this help message and exit")
	if opts.Flags != nil {
		opts.Flags(root.PersistentFlags())
	}
	if opts.Stdout != nil {
		root.SetOut(opts.Stdout)
	}
	if opts.Stderr != nil {
		root.SetErr(opts.Stderr)
	}

	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != p.root {
			defaultHelp(cmd, args)
			return
		}
		fmt.Fprint(cmd.OutOrStdout(), p.rootHelp())
	})

	// cobra installs a "help" subcommand whenever subcommands exist. Keep it
	// out of the choices: it behaves like any other unknown name.
	root.SetHelpCommand(&cobra.Command{
		Use:    "help",
		Hidden: true,
		Args:   cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return p.invalidChoice("help")
		},
	})

	for _, entry := range table.unique() {
		root.AddCommand(p.subParser(entry))
	}

	p.root = root
	return p
}

func (p *Parser) subParser(entry SubCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   entry.Name,
		Short: entry.Help,
		// Handlers that take positionals replace this.
		Args: unrecognizedArgs,
	}
	entry.Handler.ContributeParser(cmd)
	if cmd.Name() != entry.Name {
		panic(fmt.Sprintf("subcmd: handler for %q renamed its parser to %q", entry.Name, cmd.Name()))
	}
	name := entry.Name
	cmd.RunE = func(c *cobra.Command, args []string) error {
		p.parsed = &Args{
			Command:    name,
			Flags:      c.Flags(),
			Positional: args,
			Stdout:     c.OutOrStdout(),
			Stderr:     c.ErrOrStderr(),
			ctx:        c.Context(),
		}
		return nil
	}
	return cmd
}

// Registry returns the dispatch table matching the parser's choices.
func (p *Parser) Registry() *Registry {
	return p.reg
}

// Root exposes the underlying cobra command.
func (p *Parser) Root() *cobra.Command {
	return p.root
}

// Parse parses argv. It returns nil args without error when help was
// requested. Every parsing failure is a *UsageError.
func (p *Parser) Parse(ctx context.Context, argv []string) (*Args, error) {
	if argv == nil {
		argv = []string{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p.parsed = nil
	argv, err := p.checkSelector(argv)
	if err != nil {
		return nil, err
	}
	p.root.SetArgs(argv)
	cmd, err := p.root.ExecuteContextC(ctx)
	if err != nil {
		var usage *UsageError
		if errors.As(err, &usage) {
			return nil, usage
		}
		return nil, p.usageError(cmd, err)
	}
	return p.parsed, nil
}

// checkSelector finds the <command> token ahead of cobra, which would
// otherwise print root help for "bogus --help" and treat "-- status" as an
// unknown root argument. An unknown name is an invalid choice wherever it
// appears; "--" in front of a known name is dropped so the name routes.
func (p *Parser) checkSelector(argv []string) ([]string, error) {
	for i := 0; i < len(argv); i++ {
		tok := argv[i]
		switch {
		case tok == "--":
			if i+1 == len(argv) {
				return argv, nil
			}
			name := argv[i+1]
			if _, ok := p.reg.Lookup(name); !ok {
				return nil, p.invalidChoice(name)
			}
			routed := make([]string, 0, len(argv)-1)
			routed = append(routed, argv[:i]...)
			return append(routed, argv[i+1:]...), nil
		case len(tok) > 1 && tok[0] == '-':
			if fl := p.rootFlag(tok); fl != nil && fl.NoOptDefVal == "" {
				// The value is the next token.
				i++
			}
		default:
			if _, ok := p.reg.Lookup(tok); !ok {
				return nil, p.invalidChoice(tok)
			}
			return argv, nil
		}
	}
	return argv, nil
}

// rootFlag returns the root flag tok names when its value, if any, is not
// attached to tok.
func (p *Parser) rootFlag(tok string) *pflag.Flag {
	flags := p.root.Flags()
	if name, ok := strings.CutPrefix(tok, "--"); ok {
		if strings.Contains(name, "=") {
			return nil
		}
		if fl := flags.Lookup(name); fl != nil {
			return fl
		}
		return p.root.PersistentFlags().Lookup(name)
	}
	if len(tok) != 2 {
		return nil
	}
	if fl := flags.ShorthandLookup(tok[1:]); fl != nil {
		return fl
	}
	return p.root.PersistentFlags().ShorthandLookup(tok[1:])
}

// Help renders top-level help.
func (p *Parser) Help() string {
	return p.rootHelp()
}

func (p *Parser) validateSelector(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return p.requiredSelector()
	}
	return p.invalidChoice(args[0])
}

func unrecognizedArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unrecognized arguments: %s", strings.Join(args, " "))
	}
	return nil
}

func (p *Parser) requiredSelector() error {
	return p.usageError(p.root, fmt.Errorf("the following arguments are required: %s", selectorMetavar))
}

func (p *Parser) invalidChoice(name string) error {
	quoted := make([]string, 0, p.reg.Len())
	for _, choice := range p.reg.Names() {
		quoted = append(quoted, "'"+choice+"'")
	}
	return p.usageError(p.root, fmt.Errorf("argument %s: invalid choice: '%s' (choose from %s)",
		selectorMetavar, name, strings.Join(quoted, ", ")))
}

func (p *Parser) usageError(cmd *cobra.Command, err error) *UsageError {
	if cmd == nil {
		cmd = p.root
	}
	return &UsageError{
		Prog:  cmd.CommandPath(),
		Usage: p.usageLine(cmd),
		Err:   err,
	}
}

func (p *Parser) usageLine(cmd *cobra.Command) string {
	if cmd != p.root {
		return "usage: " + cmd.UseLine()
	}
	parts := []string{p.root.Name()}
	for _, fl := range p.rootFlags() {
		parts = append(parts, "["+flagInvocation(fl, true)+"]")
	}
	parts = append(parts, selectorMetavar, "...")
	return "usage: " + strings.Join(parts, " ")
}

func (p *Parser) rootHelp() string {
	options := make([]Entry, 0, 4)
	for _, fl := range p.rootFlags() {
		options = append(options, Entry{
			Kind:       EntryOption,
			Invocation: flagInvocation(fl, false),
			Help:       flagHelp(fl),
		})
	}

	names := p.reg.unique()
	choices := make([]Choice, 0, len(names))
	for _, entry := range names {
		choices = append(choices, Choice{Name: entry.Name, Help: entry.Help})
	}

	sections := []Section{
		{Title: "options", Entries: options},
		{Title: "command", Entries: []Entry{{
			Kind:       EntrySelector,
			Invocation: selectorMetavar,
			Choices:    choices,
		}}},
	}
	return p.formatter.Format(p.usageLine(p.root), p.root.Long, sections)
}

// rootFlags lists the visible root flags with -h/--help first.
func (p *Parser) rootFlags() []*pflag.Flag {
	local := p.root.LocalFlags()
	var flags []*pflag.Flag
	if help := local.Lookup("help"); help != nil {
		flags = append(flags, help)
	}
	local.VisitAll(func(fl *pflag.Flag) {
		if fl.Hidden || fl.Name == "help" {
			return
		}
		flags = append(flags, fl)
	})
	return flags
}

func flagInvocation(fl *pflag.Flag, compact bool) string {
	varname, _ := pflag.UnquoteUsage(fl)
	value := ""
	if varname != "" && fl.NoOptDefVal == "" {
		value = " <" + varname + ">"
	}
	switch {
	case compact && fl.Shorthand != "":
		return "-" + fl.Shorthand + value
	case compact:
		return "--" + fl.Name + value
	case fl.Shorthand != "":
		return "-" + fl.Shorthand + ", --" + fl.Name + value
	default:
		return "--" + fl.Name + value
	}
}

func flagHelp(fl *pflag.Flag) string {
	_, usage := pflag.UnquoteUsage(fl)
	return usage
}
