// Package deps checks for the external programs damo shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external dependency damo relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		results = append(results, status)
	}
	return results
}

// RequirePerf resolves the perf binary used by "damo record" and returns its
// path, or an error explaining what is missing.
func RequirePerf(binary string) (string, error) {
	status := CheckBinaries([]Requirement{{
		Name:        "perf",
		Command:     binary,
		Description: "Required to record damon:damon_aggregated trace events",
	}})[0]
	if !status.Available {
		return "", fmt.Errorf("perf unavailable: %s (install linux-tools or set record.perf_binary)", status.Detail)
	}
	return status.Path, nil
}
