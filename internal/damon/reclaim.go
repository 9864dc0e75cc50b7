package damon

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Reclaim parameter names with special meaning.
const (
	ReclaimEnabled      = "enabled"
	ReclaimCommitInputs = "commit_inputs"
	ReclaimKdamondPID   = "kdamond_pid"
)

// reclaimOrder lists DAMON_RECLAIM parameters in the order damo shows them.
// Unknown parameters follow in name order.
var reclaimOrder = []string{
	"enabled", "kdamond_pid", "min_age", "quota_ms", "quota_sz",
	"quota_reset_interval_ms", "wmarks_interval", "wmarks_high",
	"wmarks_mid", "wmarks_low", "sample_interval", "aggr_interval",
	"min_nr_regions", "max_nr_regions", "monitor_region_start",
	"monitor_region_end", "skip_anon", "nr_reclaim_tried_regions",
	"bytes_reclaim_tried_regions", "nr_reclaimed_regions",
	"bytes_reclaimed_regions", "nr_quota_exceeds", "commit_inputs",
}

// ReclaimParam is one DAMON_RECLAIM module parameter.
type ReclaimParam struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Reclaim controls the DAMON_RECLAIM module through its parameters directory.
type Reclaim struct {
	dir string
}

// NewReclaim returns a controller for the parameters directory dir.
func NewReclaim(dir string) *Reclaim {
	return &Reclaim{dir: dir}
}

// Supported reports whether the parameters directory exists.
func (r *Reclaim) Supported() bool {
	return isDir(r.dir)
}

// Params reads every parameter in display order.
func (r *Reclaim) Params() ([]ReclaimParam, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read DAMON_RECLAIM parameters: %w", err)
	}
	rank := make(map[string]int, len(reclaimOrder))
	for i, name := range reclaimOrder {
		rank[name] = i
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.SliceStable(names, func(i, j int) bool {
		ri, iok := rank[names[i]]
		rj, jok := rank[names[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return names[i] < names[j]
		}
	})
	params := make([]ReclaimParam, 0, len(names))
	for _, name := range names {
		value, err := readString(filepath.Join(r.dir, name))
		if err != nil {
			return nil, err
		}
		params = append(params, ReclaimParam{Name: name, Value: value})
	}
	return params, nil
}

// Enabled reports whether DAMON_RECLAIM is enabled.
func (r *Reclaim) Enabled() (bool, error) {
	value, err := readString(filepath.Join(r.dir, ReclaimEnabled))
	if err != nil {
		return false, err
	}
	return strings.EqualFold(value, "Y"), nil
}

// Set writes a single parameter. Unknown names are rejected.
func (r *Reclaim) Set(name, value string) error {
	path := filepath.Join(r.dir, name)
	if !fileExists(path) {
		return fmt.Errorf("unknown DAMON_RECLAIM parameter %q", name)
	}
	return writeString(path, value)
}

// SetEnabled turns DAMON_RECLAIM on or off.
func (r *Reclaim) SetEnabled(on bool) error {
	value := "N"
	if on {
		value = "Y"
	}
	return r.Set(ReclaimEnabled, value)
}

// CommitInputs applies changed parameters to a running DAMON_RECLAIM.
func (r *Reclaim) CommitInputs() error {
	return r.Set(ReclaimCommitInputs, "Y")
}

func fileExists(path string) bool {
	ok, err := exists(path)
	return ok && err == nil
}
