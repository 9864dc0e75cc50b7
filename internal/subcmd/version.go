package subcmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// VersionCommand is the name of the version pseudo-subcommand.
	VersionCommand = "version"
	// VersionFile is the version resource shipped next to the executable.
	VersionFile = "damo_version"

	versionHelp = "print the version number"
)

// VersionPath locates VersionFile beside the running executable, following
// symlinks the way an installed wrapper would be resolved.
func VersionPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return filepath.Join(filepath.Dir(resolved), VersionFile), nil
}

// NewVersionHandler returns the version pseudo-subcommand. It prints the
// trimmed contents of path; an unreadable resource is an error.
func NewVersionHandler(path string) Handler {
	return HandlerFunc(func(args *Args) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		_, err = fmt.Fprintln(args.Stdout, strings.TrimSpace(string(data)))
		return err
	})
}
