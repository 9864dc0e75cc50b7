// Package subcmd is the command-dispatch core of the damo CLI.
//
// A Registry holds the ordered SubCommand descriptors known to one process
// run. Compose turns that registry into a single cobra command tree with a
// mandatory <command> selector, appends the version pseudo-subcommand, and
// renders top-level help as a flat command list. Dispatch hands the parsed
// arguments to the first descriptor whose name matches.
//
// Parser choices and dispatch targets are both derived from the registry
// returned by Parser.Registry, so a name accepted by the parser always has a
// handler. Duplicate names are allowed; the first registration wins and the
// later ones are reported by Registry.Shadowed.
package subcmd
