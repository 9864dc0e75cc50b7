package compat

import (
	"fmt"
	"go/version"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
)

const (
	// MinGoVersion is the oldest Go toolchain release damo supports.
	MinGoVersion = "go1.21"
	// MinKernelMajor and MinKernelMinor name the first kernel release with
	// the DAMON sysfs interface.
	MinKernelMajor = 5
	MinKernelMinor = 18
)

// Environment describes the facts the compatibility check looks at.
type Environment struct {
	GoVersion     string
	KernelRelease string
}

// Probe reads the running Go release and the kernel release.
func Probe() Environment {
	env := Environment{GoVersion: runtime.Version()}
	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		env.KernelRelease = unix.ByteSliceToString(uts.Release[:])
	}
	return env
}

// Warnings returns one message per unsupported fact in env. Values that
// cannot be parsed are ignored.
func Warnings(env Environment) []string {
	var warnings []string
	goVersion := strings.TrimSpace(env.GoVersion)
	if version.IsValid(goVersion) && version.Compare(goVersion, MinGoVersion) < 0 {
		warnings = append(warnings, fmt.Sprintf(
			"damo is built for %s or later, but this binary runs on %s.\n"+
				"Some behavior may differ. Please rebuild damo with a newer Go toolchain.",
			MinGoVersion, goVersion))
	}
	if major, minor, ok := kernelVersion(env.KernelRelease); ok && !kernelAtLeast(major, minor) {
		warnings = append(warnings, fmt.Sprintf(
			"kernel %s predates the DAMON sysfs interface (%d.%d).\n"+
				"Most damo commands will fail on this system.",
			strings.TrimSpace(env.KernelRelease), MinKernelMajor, MinKernelMinor))
	}
	return warnings
}

// Check writes any warnings for env to w and reports whether it wrote
// something. Output is colored only when w is a terminal.
func Check(w io.Writer, env Environment) bool {
	warnings := Warnings(env)
	if len(warnings) == 0 || w == nil {
		return len(warnings) > 0
	}
	colorize := isTerminal(w)
	for _, warning := range warnings {
		msg := "WARNING: " + warning
		if colorize {
			msg = text.Colors{text.FgYellow}.Sprint(msg)
		}
		fmt.Fprintln(w, msg)
	}
	return true
}

// kernelVersion extracts major and minor from a release such as
// "6.8.0-45-generic".
func kernelVersion(release string) (int, int, bool) {
	release = strings.TrimSpace(release)
	if release == "" {
		return 0, 0, false
	}
	parts := strings.SplitN(release, ".", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minorDigits := parts[1]
	if idx := strings.IndexFunc(minorDigits, func(r rune) bool { return r < '0' || r > '9' }); idx >= 0 {
		minorDigits = minorDigits[:idx]
	}
	minor, err := strconv.Atoi(minorDigits)
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}

func kernelAtLeast(major, minor int) bool {
	if major != MinKernelMajor {
		return major > MinKernelMajor
	}
	return minor >= MinKernelMinor
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
