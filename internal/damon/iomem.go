package damon

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LargestSystemRAM returns the largest top-level "System RAM" range listed
// in an iomem file such as /proc/iomem. iomem ranges are inclusive; the
// returned region is half-open.
func LargestSystemRAM(path string) (Region, error) {
	file, err := os.Open(path)
	if err != nil {
		return Region{}, fmt.Errorf("open iomem: %w", err)
	}
	defer file.Close()

	var best Region
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		// Nested resources are indented.
		if line == "" || line[0] == ' ' {
			continue
		}
		span, name, ok := strings.Cut(line, " : ")
		if !ok || strings.TrimSpace(name) != "System RAM" {
			continue
		}
		startText, endText, ok := strings.Cut(strings.TrimSpace(span), "-")
		if !ok {
			continue
		}
		start, err := strconv.ParseUint(startText, 16, 64)
		if err != nil {
			continue
		}
		end, err := strconv.ParseUint(endText, 16, 64)
		if err != nil || end < start {
			continue
		}
		region := Region{Start: start, End: end + 1}
		if region.Size() > best.Size() {
			best = region
		}
	}
	if err := scanner.Err(); err != nil {
		return Region{}, fmt.Errorf("read iomem: %w", err)
	}
	if best.Size() == 0 {
		return Region{}, fmt.Errorf("no System RAM range in %s", path)
	}
	return best, nil
}
