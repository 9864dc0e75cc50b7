package record

import "errors"

// ErrNoSnapshots is returned when the input holds no damon_aggregated events.
var ErrNoSnapshots = errors.New("no monitoring result in the file")

// Region is one monitoring region of a snapshot. Age is only reported by
// kernels whose tracepoint carries it.
type Region struct {
	Start      uint64 `json:"start"`
	End        uint64 `json:"end"`
	NrAccesses uint64 `json:"nr_accesses"`
	Age        uint64 `json:"age"`
	HasAge     bool   `json:"has_age"`
}

// Size returns End - Start.
func (r Region) Size() uint64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Snapshot is the aggregated access pattern of one target over one
// aggregation interval. Times are nanoseconds of the trace clock.
type Snapshot struct {
	TargetID  uint64   `json:"target_id"`
	StartTime int64    `json:"start_time"`
	EndTime   int64    `json:"end_time"`
	Regions   []Region `json:"regions"`
}

// Target holds the snapshots of one monitoring target in time order.
type Target struct {
	ID        uint64     `json:"id"`
	Snapshots []Snapshot `json:"snapshots"`
}

// Result is a parsed recording. Targets keep the order in which they first
// appear in the input.
type Result struct {
	StartTime   int64    `json:"start_time"`
	EndTime     int64    `json:"end_time"`
	NrSnapshots int      `json:"nr_snapshots"`
	Targets     []Target `json:"targets"`
}

// Snapshots returns every snapshot interleaved by index: the first snapshot of
// each target, then the second of each, and so on.
func (r *Result) Snapshots() []Snapshot {
	var out []Snapshot
	for idx := 0; ; idx++ {
		added := false
		for _, target := range r.Targets {
			if idx < len(target.Snapshots) {
				out = append(out, target.Snapshots[idx])
				added = true
			}
		}
		if !added {
			return out
		}
	}
}
