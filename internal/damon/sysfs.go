package damon

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"
)

// Commands accepted by a kdamond's state file.
const (
	cmdOn                        = "on"
	cmdOff                       = "off"
	cmdCommit                    = "commit"
	cmdUpdateSchemesStats        = "update_schemes_stats"
	cmdUpdateSchemesTriedRegions = "update_schemes_tried_regions"
)

// Sysfs drives the DAMON sysfs interface rooted at an admin directory such
// as /sys/kernel/mm/damon/admin.
type Sysfs struct {
	root string
}

// NewSysfs returns a controller for the admin directory root.
func NewSysfs(root string) *Sysfs {
	return &Sysfs{root: root}
}

// Root returns the admin directory.
func (s *Sysfs) Root() string {
	return s.root
}

// Supported reports whether root holds a kdamonds directory.
func (s *Sysfs) Supported() bool {
	return isDir(s.kdamondsDir())
}

func (s *Sysfs) kdamondsDir() string {
	return filepath.Join(s.root, "kdamonds")
}

func (s *Sysfs) kdamondDir(name string) string {
	return filepath.Join(s.kdamondsDir(), name)
}

func contextDir(kdamondDir string, idx int) string {
	return filepath.Join(kdamondDir, "contexts", strconv.Itoa(idx))
}

// KdamondNames lists kdamonds by index name ("0", "1", ...).
func (s *Sysfs) KdamondNames() ([]string, error) {
	nr, err := readUint(filepath.Join(s.kdamondsDir(), "nr_kdamonds"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, nr)
	for i := uint64(0); i < nr; i++ {
		names = append(names, strconv.FormatUint(i, 10))
	}
	return names, nil
}

// State returns the state ("on" or "off") of kdamond name.
func (s *Sysfs) State(name string) (string, error) {
	return readString(filepath.Join(s.kdamondDir(name), "state"))
}

// Running reports whether kdamond name is on.
func (s *Sysfs) Running(name string) (bool, error) {
	state, err := s.State(name)
	if err != nil {
		return false, err
	}
	return state == StateOn, nil
}

// RunningNames returns the kdamonds that are currently on.
func (s *Sysfs) RunningNames() ([]string, error) {
	names, err := s.KdamondNames()
	if err != nil {
		return nil, err
	}
	var running []string
	for _, name := range names {
		on, err := s.Running(name)
		if err != nil {
			return nil, err
		}
		if on {
			running = append(running, name)
		}
	}
	return running, nil
}

// AnyRunning reports whether at least one kdamond is on.
func (s *Sysfs) AnyRunning() (bool, error) {
	running, err := s.RunningNames()
	if err != nil {
		return false, err
	}
	return len(running) > 0, nil
}

// TurnOn starts the named kdamonds.
func (s *Sysfs) TurnOn(names []string) error {
	return s.writeState(names, cmdOn)
}

// TurnOff stops the named kdamonds.
func (s *Sysfs) TurnOff(names []string) error {
	return s.writeState(names, cmdOff)
}

// Commit makes running kdamonds re-read their parameter files.
func (s *Sysfs) Commit(names []string) error {
	return s.writeState(names, cmdCommit)
}

// UpdateSchemesStats asks the kernel to refresh every scheme's stats files.
func (s *Sysfs) UpdateSchemesStats(names []string) error {
	return s.writeState(names, cmdUpdateSchemesStats)
}

// UpdateSchemesTriedRegions asks the kernel to refresh tried_regions.
func (s *Sysfs) UpdateSchemesTriedRegions(names []string) error {
	return s.writeState(names, cmdUpdateSchemesTriedRegions)
}

func (s *Sysfs) writeState(names []string, command string) error {
	for _, name := range names {
		if err := writeString(filepath.Join(s.kdamondDir(name), "state"), command); err != nil {
			return fmt.Errorf("kdamond %s %s: %w", name, command, err)
		}
	}
	return nil
}

// WaitState polls until every named kdamond is on (on=true) or off, or ctx
// is done.
func (s *Sysfs) WaitState(ctx context.Context, names []string, on bool, poll time.Duration) error {
	if poll <= 0 {
		poll = time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		done := true
		for _, name := range names {
			running, err := s.Running(name)
			if err != nil {
				return err
			}
			if running != on {
				done = false
				break
			}
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Kdamonds reads the full kdamonds tree, including scheme stats and tried
// regions as last refreshed.
func (s *Sysfs) Kdamonds() ([]Kdamond, error) {
	names, err := s.KdamondNames()
	if err != nil {
		return nil, err
	}
	kdamonds := make([]Kdamond, 0, len(names))
	for _, name := range names {
		kd, err := s.readKdamond(name)
		if err != nil {
			return nil, err
		}
		kdamonds = append(kdamonds, kd)
	}
	return kdamonds, nil
}

func (s *Sysfs) readKdamond(name string) (Kdamond, error) {
	dir := s.kdamondDir(name)
	kd := Kdamond{Name: name}
	var err error
	if kd.State, err = readString(filepath.Join(dir, "state")); err != nil {
		return kd, err
	}
	if kd.PID, err = readInt(filepath.Join(dir, "pid")); err != nil {
		return kd, err
	}
	nr, err := readUint(filepath.Join(dir, "contexts", "nr_contexts"))
	if err != nil {
		return kd, err
	}
	for i := 0; i < int(nr); i++ {
		ctx, err := readContext(contextDir(dir, i))
		if err != nil {
			return kd, err
		}
		ctx.Name = strconv.Itoa(i)
		kd.Contexts = append(kd.Contexts, ctx)
	}
	return kd, nil
}

func readContext(dir string) (Context, error) {
	var ctx Context
	var err error
	if ctx.Ops, err = readString(filepath.Join(dir, "operations")); err != nil {
		return ctx, err
	}
	attrs := filepath.Join(dir, "monitoring_attrs")
	intervals := []struct {
		file string
		dst  *time.Duration
	}{
		{"sample_us", &ctx.Intervals.Sample},
		{"aggr_us", &ctx.Intervals.Aggr},
		{"update_us", &ctx.Intervals.Update},
	}
	for _, iv := range intervals {
		us, err := readUint(filepath.Join(attrs, "intervals", iv.file))
		if err != nil {
			return ctx, err
		}
		*iv.dst = time.Duration(us) * time.Microsecond
	}
	if ctx.NrRegions.Min, err = readUint(filepath.Join(attrs, "nr_regions", "min")); err != nil {
		return ctx, err
	}
	if ctx.NrRegions.Max, err = readUint(filepath.Join(attrs, "nr_regions", "max")); err != nil {
		return ctx, err
	}

	nrTargets, err := readUint(filepath.Join(dir, "targets", "nr_targets"))
	if err != nil {
		return ctx, err
	}
	for i := 0; i < int(nrTargets); i++ {
		target, err := readTarget(filepath.Join(dir, "targets", strconv.Itoa(i)), ctx.Ops)
		if err != nil {
			return ctx, err
		}
		ctx.Targets = append(ctx.Targets, target)
	}

	nrSchemes, err := readUint(filepath.Join(dir, "schemes", "nr_schemes"))
	if err != nil {
		return ctx, err
	}
	for i := 0; i < int(nrSchemes); i++ {
		scheme, err := readScheme(filepath.Join(dir, "schemes", strconv.Itoa(i)))
		if err != nil {
			return ctx, err
		}
		scheme.Name = strconv.Itoa(i)
		ctx.Schemes = append(ctx.Schemes, scheme)
	}
	return ctx, nil
}

func readTarget(dir, ops string) (Target, error) {
	var target Target
	if TargetHasPID(ops) {
		pid, err := readInt(filepath.Join(dir, "pid_target"))
		if err != nil {
			return target, err
		}
		target.PID = pid
	}
	nr, err := readUint(filepath.Join(dir, "regions", "nr_regions"))
	if err != nil {
		return target, err
	}
	for i := 0; i < int(nr); i++ {
		regionDir := filepath.Join(dir, "regions", strconv.Itoa(i))
		var region Region
		if region.Start, err = readUint(filepath.Join(regionDir, "start")); err != nil {
			return target, err
		}
		if region.End, err = readUint(filepath.Join(regionDir, "end")); err != nil {
			return target, err
		}
		target.Regions = append(target.Regions, region)
	}
	return target, nil
}

func readScheme(dir string) (Scheme, error) {
	var scheme Scheme
	var err error
	if scheme.Action, err = readString(filepath.Join(dir, "action")); err != nil {
		return scheme, err
	}
	pattern := filepath.Join(dir, "access_pattern")
	quotas := filepath.Join(dir, "quotas")
	wmarks := filepath.Join(dir, "watermarks")
	fields := []struct {
		path string
		dst  *uint64
	}{
		{filepath.Join(pattern, "sz", "min"), &scheme.AccessPattern.MinSize},
		{filepath.Join(pattern, "sz", "max"), &scheme.AccessPattern.MaxSize},
		{filepath.Join(pattern, "nr_accesses", "min"), &scheme.AccessPattern.MinNrAccesses},
		{filepath.Join(pattern, "nr_accesses", "max"), &scheme.AccessPattern.MaxNrAccesses},
		{filepath.Join(pattern, "age", "min"), &scheme.AccessPattern.MinAge},
		{filepath.Join(pattern, "age", "max"), &scheme.AccessPattern.MaxAge},
		{filepath.Join(quotas, "ms"), &scheme.Quotas.TimeMS},
		{filepath.Join(quotas, "bytes"), &scheme.Quotas.Bytes},
		{filepath.Join(quotas, "reset_interval_ms"), &scheme.Quotas.ResetIntervalMS},
		{filepath.Join(quotas, "weights", "sz_permil"), &scheme.Quotas.WeightSizePermil},
		{filepath.Join(quotas, "weights", "nr_accesses_permil"), &scheme.Quotas.WeightNrAccessesPermil},
		{filepath.Join(quotas, "weights", "age_permil"), &scheme.Quotas.WeightAgePermil},
		{filepath.Join(wmarks, "interval_us"), &scheme.Watermarks.IntervalUS},
		{filepath.Join(wmarks, "high"), &scheme.Watermarks.High},
		{filepath.Join(wmarks, "mid"), &scheme.Watermarks.Mid},
		{filepath.Join(wmarks, "low"), &scheme.Watermarks.Low},
	}
	for _, field := range fields {
		if *field.dst, err = readUint(field.path); err != nil {
			return scheme, err
		}
	}
	if scheme.Watermarks.Metric, err = readString(filepath.Join(wmarks, "metric")); err != nil {
		return scheme, err
	}

	statsDir := filepath.Join(dir, "stats")
	if isDir(statsDir) {
		stats := &SchemeStats{}
		statFields := []struct {
			file string
			dst  *uint64
		}{
			{"nr_tried", &stats.NrTried},
			{"sz_tried", &stats.SzTried},
			{"nr_applied", &stats.NrApplied},
			{"sz_applied", &stats.SzApplied},
			{"qt_exceeds", &stats.QtExceeds},
		}
		for _, field := range statFields {
			if *field.dst, err = readUint(filepath.Join(statsDir, field.file)); err != nil {
				return scheme, err
			}
		}
		scheme.Stats = stats
	}

	triedDir := filepath.Join(dir, "tried_regions")
	if isDir(triedDir) {
		regions, err := readTriedRegions(triedDir)
		if err != nil {
			return scheme, err
		}
		scheme.TriedRegions = regions
	}
	return scheme, nil
}

func readTriedRegions(dir string) ([]TriedRegion, error) {
	var regions []TriedRegion
	for i := 0; ; i++ {
		regionDir := filepath.Join(dir, strconv.Itoa(i))
		if !isDir(regionDir) {
			return regions, nil
		}
		var region TriedRegion
		fields := []struct {
			file string
			dst  *uint64
		}{
			{"start", &region.Start},
			{"end", &region.End},
			{"nr_accesses", &region.NrAccesses},
			{"age", &region.Age},
		}
		for _, field := range fields {
			value, err := readUint(filepath.Join(regionDir, field.file))
			if err != nil {
				return nil, err
			}
			*field.dst = value
		}
		regions = append(regions, region)
	}
}

// Apply writes kdamonds into the sysfs tree, resizing the kdamonds, contexts,
// targets, regions and schemes directories as needed. The kdamonds must be
// off; running kdamonds are updated through Commit instead.
func (s *Sysfs) Apply(kdamonds []Kdamond) error {
	if err := writeUint(filepath.Join(s.kdamondsDir(), "nr_kdamonds"), uint64(len(kdamonds))); err != nil {
		return err
	}
	for i, kd := range kdamonds {
		if err := s.writeKdamond(s.kdamondDir(strconv.Itoa(i)), kd); err != nil {
			return fmt.Errorf("kdamond %d: %w", i, err)
		}
	}
	return nil
}

// WriteParams writes kdamonds without resizing the kdamonds directory, for
// use with Commit on running kdamonds.
func (s *Sysfs) WriteParams(kdamonds []Kdamond) error {
	for i, kd := range kdamonds {
		if err := s.writeKdamond(s.kdamondDir(strconv.Itoa(i)), kd); err != nil {
			return fmt.Errorf("kdamond %d: %w", i, err)
		}
	}
	return nil
}

func (s *Sysfs) writeKdamond(dir string, kd Kdamond) error {
	if err := writeUint(filepath.Join(dir, "contexts", "nr_contexts"), uint64(len(kd.Contexts))); err != nil {
		return err
	}
	for i, ctx := range kd.Contexts {
		if err := writeContext(contextDir(dir, i), ctx); err != nil {
			return fmt.Errorf("context %d: %w", i, err)
		}
	}
	return nil
}

func writeContext(dir string, ctx Context) error {
	if !ValidOps(ctx.Ops) {
		return fmt.Errorf("unknown operations %q", ctx.Ops)
	}
	if err := writeString(filepath.Join(dir, "operations"), ctx.Ops); err != nil {
		return err
	}
	attrs := filepath.Join(dir, "monitoring_attrs")
	values := []struct {
		path  string
		value uint64
	}{
		{filepath.Join(attrs, "intervals", "sample_us"), uint64(ctx.Intervals.Sample.Microseconds())},
		{filepath.Join(attrs, "intervals", "aggr_us"), uint64(ctx.Intervals.Aggr.Microseconds())},
		{filepath.Join(attrs, "intervals", "update_us"), uint64(ctx.Intervals.Update.Microseconds())},
		{filepath.Join(attrs, "nr_regions", "min"), ctx.NrRegions.Min},
		{filepath.Join(attrs, "nr_regions", "max"), ctx.NrRegions.Max},
	}
	for _, v := range values {
		if err := writeUint(v.path, v.value); err != nil {
			return err
		}
	}

	targetsDir := filepath.Join(dir, "targets")
	if err := writeUint(filepath.Join(targetsDir, "nr_targets"), uint64(len(ctx.Targets))); err != nil {
		return err
	}
	for i, target := range ctx.Targets {
		if err := writeTarget(filepath.Join(targetsDir, strconv.Itoa(i)), ctx.Ops, target); err != nil {
			return fmt.Errorf("target %d: %w", i, err)
		}
	}

	schemesDir := filepath.Join(dir, "schemes")
	if err := writeUint(filepath.Join(schemesDir, "nr_schemes"), uint64(len(ctx.Schemes))); err != nil {
		return err
	}
	for i, scheme := range ctx.Schemes {
		if err := writeScheme(filepath.Join(schemesDir, strconv.Itoa(i)), scheme); err != nil {
			return fmt.Errorf("scheme %d: %w", i, err)
		}
	}
	return nil
}

func writeTarget(dir, ops string, target Target) error {
	if TargetHasPID(ops) {
		if err := writeString(filepath.Join(dir, "pid_target"), strconv.Itoa(target.PID)); err != nil {
			return err
		}
	}
	regionsDir := filepath.Join(dir, "regions")
	if err := writeUint(filepath.Join(regionsDir, "nr_regions"), uint64(len(target.Regions))); err != nil {
		return err
	}
	for i, region := range target.Regions {
		regionDir := filepath.Join(regionsDir, strconv.Itoa(i))
		// Writing end first keeps start <= end for kernels that check it.
		if err := writeUint(filepath.Join(regionDir, "end"), region.End); err != nil {
			return err
		}
		if err := writeUint(filepath.Join(regionDir, "start"), region.Start); err != nil {
			return err
		}
	}
	return nil
}

func writeScheme(dir string, scheme Scheme) error {
	if !ValidAction(scheme.Action) {
		return fmt.Errorf("unknown action %q", scheme.Action)
	}
	if err := writeString(filepath.Join(dir, "action"), scheme.Action); err != nil {
		return err
	}
	pattern := filepath.Join(dir, "access_pattern")
	quotas := filepath.Join(dir, "quotas")
	wmarks := filepath.Join(dir, "watermarks")
	values := []struct {
		path  string
		value uint64
	}{
		{filepath.Join(pattern, "sz", "min"), scheme.AccessPattern.MinSize},
		{filepath.Join(pattern, "sz", "max"), scheme.AccessPattern.MaxSize},
		{filepath.Join(pattern, "nr_accesses", "min"), scheme.AccessPattern.MinNrAccesses},
		{filepath.Join(pattern, "nr_accesses", "max"), scheme.AccessPattern.MaxNrAccesses},
		{filepath.Join(pattern, "age", "min"), scheme.AccessPattern.MinAge},
		{filepath.Join(pattern, "age", "max"), scheme.AccessPattern.MaxAge},
		{filepath.Join(quotas, "ms"), scheme.Quotas.TimeMS},
		{filepath.Join(quotas, "bytes"), scheme.Quotas.Bytes},
		{filepath.Join(quotas, "reset_interval_ms"), scheme.Quotas.ResetIntervalMS},
		{filepath.Join(quotas, "weights", "sz_permil"), scheme.Quotas.WeightSizePermil},
		{filepath.Join(quotas, "weights", "nr_accesses_permil"), scheme.Quotas.WeightNrAccessesPermil},
		{filepath.Join(quotas, "weights", "age_permil"), scheme.Quotas.WeightAgePermil},
		{filepath.Join(wmarks, "interval_us"), scheme.Watermarks.IntervalUS},
		{filepath.Join(wmarks, "high"), scheme.Watermarks.High},
		{filepath.Join(wmarks, "mid"), scheme.Watermarks.Mid},
		{filepath.Join(wmarks, "low"), scheme.Watermarks.Low},
	}
	for _, v := range values {
		if err := writeUint(v.path, v.value); err != nil {
			return err
		}
	}
	metric := scheme.Watermarks.Metric
	if metric == "" {
		metric = MetricNone
	}
	return writeString(filepath.Join(wmarks, "metric"), metric)
}
