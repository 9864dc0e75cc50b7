// Package compat checks the runtime environment before damo builds its
// parser and warns about releases that predate what damo supports.
//
// The check never aborts a run. Warnings go to stderr and the process exit
// code is decided only by parsing and the selected subcommand.
package compat
