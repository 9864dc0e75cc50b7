package damon

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Interface names accepted by Detect.
const (
	InterfaceAuto    = "auto"
	InterfaceSysfs   = "sysfs"
	InterfaceDebugfs = "debugfs"
)

// Locations groups the filesystem paths Detect inspects.
type Locations struct {
	Interface  string
	SysfsDir   string
	DebugfsDir string
}

// Detect picks the DAMON interface for loc. Only sysfs can be driven; a
// debugfs-only kernel yields ErrDebugfsOnly.
func Detect(loc Locations) (*Sysfs, error) {
	sysfs := NewSysfs(loc.SysfsDir)
	switch loc.Interface {
	case InterfaceSysfs:
		if !sysfs.Supported() {
			return nil, fmt.Errorf("%s: %w", loc.SysfsDir, ErrNotFound)
		}
		return sysfs, nil
	case InterfaceDebugfs:
		return nil, ErrDebugfsOnly
	case InterfaceAuto, "":
		if sysfs.Supported() {
			return sysfs, nil
		}
		if loc.DebugfsDir != "" && isDir(loc.DebugfsDir) {
			return nil, ErrDebugfsOnly
		}
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("unknown DAMON interface %q", loc.Interface)
	}
}

var geteuid = unix.Geteuid

// EnsureRoot returns ErrNotRoot unless the effective uid is 0.
func EnsureRoot() error {
	if geteuid() != 0 {
		return ErrNotRoot
	}
	return nil
}
