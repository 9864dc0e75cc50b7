package damon

import (
	"fmt"
	"math"
	"time"
)

// Monitoring operations sets.
const (
	OpsVaddr  = "vaddr"
	OpsFvaddr = "fvaddr"
	OpsPaddr  = "paddr"
)

// Kdamond states as reported by the state file.
const (
	StateOn  = "on"
	StateOff = "off"
)

// DAMOS actions.
const (
	ActionWillneed   = "willneed"
	ActionCold       = "cold"
	ActionPageout    = "pageout"
	ActionHugepage   = "hugepage"
	ActionNohugepage = "nohugepage"
	ActionLRUPrio    = "lru_prio"
	ActionLRUDeprio  = "lru_deprio"
	ActionStat       = "stat"
)

// Watermark metrics.
const (
	MetricNone        = "none"
	MetricFreeMemRate = "free_mem_rate"
)

// Unbounded upper limits written for "max".
const (
	MaxSize     = math.MaxUint64
	MaxCount    = math.MaxUint32
	MaxPriority = 1000
)

// Kdamond is one DAMON worker thread and its monitoring contexts.
type Kdamond struct {
	Name     string    `json:"name"`
	State    string    `json:"state"`
	PID      int       `json:"pid"`
	Contexts []Context `json:"contexts"`
}

// Running reports whether the kdamond is on.
func (k Kdamond) Running() bool {
	return k.State == StateOn
}

// Context is a monitoring context: what to watch and how often.
type Context struct {
	Name      string    `json:"name"`
	Ops       string    `json:"ops"`
	Intervals Intervals `json:"intervals"`
	NrRegions NrRegions `json:"nr_regions"`
	Targets   []Target  `json:"targets"`
	Schemes   []Scheme  `json:"schemes"`
}

// Intervals are the sampling, aggregation and operations update intervals.
type Intervals struct {
	Sample time.Duration `json:"sample"`
	Aggr   time.Duration `json:"aggr"`
	Update time.Duration `json:"update"`
}

// DefaultIntervals returns the kernel's default monitoring intervals.
func DefaultIntervals() Intervals {
	return Intervals{Sample: 5 * time.Millisecond, Aggr: 100 * time.Millisecond, Update: time.Second}
}

// MaxNrAccesses is the highest nr_accesses a region can reach in one
// aggregation interval.
func (i Intervals) MaxNrAccesses() uint64 {
	if i.Sample <= 0 {
		return 0
	}
	return uint64(i.Aggr / i.Sample)
}

func (i Intervals) String() string {
	return fmt.Sprintf("sample %s, aggr %s, update %s", i.Sample, i.Aggr, i.Update)
}

// NrRegions bounds the number of monitoring regions.
type NrRegions struct {
	Min uint64 `json:"min"`
	Max uint64 `json:"max"`
}

// DefaultNrRegions returns the kernel's default region count bounds.
func DefaultNrRegions() NrRegions {
	return NrRegions{Min: 10, Max: 1000}
}

// Target is a monitoring target. PID is meaningful only for virtual address
// operations.
type Target struct {
	PID     int      `json:"pid"`
	Regions []Region `json:"regions,omitempty"`
}

// Region is the half-open address range [Start, End).
type Region struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// Size returns End - Start.
func (r Region) Size() uint64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

func (r Region) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Scheme is a DAMON-based operation scheme (DAMOS).
type Scheme struct {
	Name          string        `json:"name"`
	Action        string        `json:"action"`
	AccessPattern AccessPattern `json:"access_pattern"`
	Quotas        Quotas        `json:"quotas"`
	Watermarks    Watermarks    `json:"watermarks"`
	Stats         *SchemeStats  `json:"stats,omitempty"`
	TriedRegions  []TriedRegion `json:"tried_regions,omitempty"`
}

// AccessPattern selects regions by size, access frequency and age. NrAccesses
// is counted in samples per aggregation interval; Age in aggregation
// intervals.
type AccessPattern struct {
	MinSize       uint64 `json:"min_sz_bytes"`
	MaxSize       uint64 `json:"max_sz_bytes"`
	MinNrAccesses uint64 `json:"min_nr_accesses"`
	MaxNrAccesses uint64 `json:"max_nr_accesses"`
	MinAge        uint64 `json:"min_age"`
	MaxAge        uint64 `json:"max_age"`
}

// MatchAll returns a pattern that selects every region.
func MatchAll() AccessPattern {
	return AccessPattern{MaxSize: MaxSize, MaxNrAccesses: MaxCount, MaxAge: MaxCount}
}

// Quotas limit how much a scheme may do per reset interval.
type Quotas struct {
	TimeMS                 uint64 `json:"time_ms"`
	Bytes                  uint64 `json:"sz_bytes"`
	ResetIntervalMS        uint64 `json:"reset_interval_ms"`
	WeightSizePermil       uint64 `json:"weight_sz_permil"`
	WeightNrAccessesPermil uint64 `json:"weight_nr_accesses_permil"`
	WeightAgePermil        uint64 `json:"weight_age_permil"`
}

// Watermarks activate a scheme based on a system metric.
type Watermarks struct {
	Metric     string `json:"metric"`
	IntervalUS uint64 `json:"interval_us"`
	High       uint64 `json:"high_permil"`
	Mid        uint64 `json:"mid_permil"`
	Low        uint64 `json:"low_permil"`
}

// SchemeStats are the kernel's cumulative scheme counters.
type SchemeStats struct {
	NrTried   uint64 `json:"nr_tried"`
	SzTried   uint64 `json:"sz_tried"`
	NrApplied uint64 `json:"nr_applied"`
	SzApplied uint64 `json:"sz_applied"`
	QtExceeds uint64 `json:"qt_exceeds"`
}

// TriedRegion is a region a scheme tried to apply its action to.
type TriedRegion struct {
	Start      uint64 `json:"start"`
	End        uint64 `json:"end"`
	NrAccesses uint64 `json:"nr_accesses"`
	Age        uint64 `json:"age"`
}

// NewScheme returns a scheme that matches every region and applies action
// without quotas or watermarks.
func NewScheme(action string) Scheme {
	return Scheme{
		Action:        action,
		AccessPattern: MatchAll(),
		Watermarks:    Watermarks{Metric: MetricNone},
	}
}

// ValidOps reports whether ops names a known operations set.
func ValidOps(ops string) bool {
	switch ops {
	case OpsVaddr, OpsFvaddr, OpsPaddr:
		return true
	}
	return false
}

// ValidAction reports whether action names a known DAMOS action.
func ValidAction(action string) bool {
	switch action {
	case ActionWillneed, ActionCold, ActionPageout, ActionHugepage, ActionNohugepage,
		ActionLRUPrio, ActionLRUDeprio, ActionStat:
		return true
	}
	return false
}

// TargetHasPID reports whether targets of ops are identified by a pid.
func TargetHasPID(ops string) bool {
	return ops == OpsVaddr || ops == OpsFvaddr
}
