package damon

import "errors"

var (
	// ErrNotRoot is returned when a command that writes DAMON files runs
	// without root privileges.
	ErrNotRoot = errors.New("run as root")
	// ErrDebugfsOnly is returned when the kernel only exposes the DAMON
	// debugfs interface.
	ErrDebugfsOnly = errors.New("only the DAMON debugfs interface is available; damo drives sysfs only")
	// ErrNotFound is returned when no DAMON interface exists.
	ErrNotFound = errors.New("DAMON interface not found (is CONFIG_DAMON_SYSFS enabled?)")
	// ErrNotRunning is returned when an operation needs a running kdamond.
	ErrNotRunning = errors.New("DAMON is not turned on")
)
