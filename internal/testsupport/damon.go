package testsupport

import (
	"path/filepath"
	"strconv"
	"testing"

	"damo/internal/config"
	"damo/internal/damon"
)

// Kdamond returns a kdamond in state with a single vaddr context watching pid.
func Kdamond(state string, pid int, schemes ...damon.Scheme) damon.Kdamond {
	return damon.Kdamond{
		State: state,
		PID:   pid,
		Contexts: []damon.Context{{
			Ops:       damon.OpsVaddr,
			Intervals: damon.DefaultIntervals(),
			NrRegions: damon.DefaultNrRegions(),
			Targets:   []damon.Target{{PID: pid}},
			Schemes:   schemes,
		}},
	}
}

// WriteKdamonds lays out a fake kdamonds tree under the configured sysfs
// directory, including each kdamond's state and pid files.
func WriteKdamonds(t testing.TB, cfg *config.Config, kdamonds ...damon.Kdamond) {
	t.Helper()

	sysfs := damon.NewSysfs(cfg.DAMON.SysfsDir)
	if err := sysfs.Apply(kdamonds); err != nil {
		t.Fatalf("apply fake kdamonds: %v", err)
	}
	for i, kd := range kdamonds {
		dir := KdamondDir(cfg, i)
		state := kd.State
		if state == "" {
			state = damon.StateOff
		}
		pid := kd.PID
		if state == damon.StateOff {
			pid = -1
		}
		WriteFile(t, filepath.Join(dir, "state"), state+"\n")
		WriteFile(t, filepath.Join(dir, "pid"), strconv.Itoa(pid)+"\n")
	}
}

// KdamondDir returns the fake tree directory of kdamond idx.
func KdamondDir(cfg *config.Config, idx int) string {
	return filepath.Join(cfg.DAMON.SysfsDir, "kdamonds", strconv.Itoa(idx))
}

// SchemeDir returns the fake tree directory of a scheme.
func SchemeDir(cfg *config.Config, kdamond, ctx, scheme int) string {
	return filepath.Join(KdamondDir(cfg, kdamond), "contexts", strconv.Itoa(ctx),
		"schemes", strconv.Itoa(scheme))
}

// WriteSchemeStats fills a scheme's stats directory.
func WriteSchemeStats(t testing.TB, cfg *config.Config, kdamond, ctx, scheme int, stats damon.SchemeStats) {
	t.Helper()

	dir := filepath.Join(SchemeDir(cfg, kdamond, ctx, scheme), "stats")
	values := map[string]uint64{
		"nr_tried":   stats.NrTried,
		"sz_tried":   stats.SzTried,
		"nr_applied": stats.NrApplied,
		"sz_applied": stats.SzApplied,
		"qt_exceeds": stats.QtExceeds,
	}
	for name, value := range values {
		WriteFile(t, filepath.Join(dir, name), strconv.FormatUint(value, 10)+"\n")
	}
}

// WriteTriedRegions fills a scheme's tried_regions directory.
func WriteTriedRegions(t testing.TB, cfg *config.Config, kdamond, ctx, scheme int, regions ...damon.TriedRegion) {
	t.Helper()

	dir := filepath.Join(SchemeDir(cfg, kdamond, ctx, scheme), "tried_regions")
	for i, region := range regions {
		regionDir := filepath.Join(dir, strconv.Itoa(i))
		WriteFile(t, filepath.Join(regionDir, "start"), strconv.FormatUint(region.Start, 10))
		WriteFile(t, filepath.Join(regionDir, "end"), strconv.FormatUint(region.End, 10))
		WriteFile(t, filepath.Join(regionDir, "nr_accesses"), strconv.FormatUint(region.NrAccesses, 10))
		WriteFile(t, filepath.Join(regionDir, "age"), strconv.FormatUint(region.Age, 10))
	}
}

// WriteReclaimParams creates a fake DAMON_RECLAIM parameters directory.
func WriteReclaimParams(t testing.TB, cfg *config.Config, params map[string]string) {
	t.Helper()

	for name, value := range params {
		WriteFile(t, filepath.Join(cfg.DAMON.ReclaimDir, name), value+"\n")
	}
}

// WriteIomem writes a fake /proc/iomem.
func WriteIomem(t testing.TB, cfg *config.Config, content string) {
	t.Helper()
	WriteFile(t, cfg.DAMON.IomemPath, content)
}
