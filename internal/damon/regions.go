package damon

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseRegions parses "start-end[,start-end...]". Addresses may be decimal or
// 0x-prefixed hex. The result is sorted and must not overlap.
func ParseRegions(value string) ([]Region, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	var regions []Region
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		start, end, ok := strings.Cut(field, "-")
		if !ok {
			return nil, fmt.Errorf("region %q: want <start>-<end>", field)
		}
		s, err := strconv.ParseUint(strings.TrimSpace(start), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("region %q: start: %w", field, err)
		}
		e, err := strconv.ParseUint(strings.TrimSpace(end), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("region %q: end: %w", field, err)
		}
		if s >= e {
			return nil, fmt.Errorf("region %q: start must be below end", field)
		}
		regions = append(regions, Region{Start: s, End: e})
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Start < regions[j].Start })
	for i := 1; i < len(regions); i++ {
		if regions[i].Start < regions[i-1].End {
			return nil, fmt.Errorf("regions %s and %s overlap", regions[i-1], regions[i])
		}
	}
	return regions, nil
}
