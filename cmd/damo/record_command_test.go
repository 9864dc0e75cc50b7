package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"damo/internal/damon"
	"damo/internal/subcmd"
	"damo/internal/testsupport"
)

// fakePerf records by creating its -o file and idling until SIGINT, and
// scripts by printing a fixed trace.
const fakePerf = `#!/bin/sh
cmd="$1"
shift
out=""
while [ $# -gt 0 ]; do
	case "$1" in
	-o|-i) out="$2"; shift ;;
	esac
	shift
done
case "$cmd" in
record)
	: > "$out"
	trap 'exit 0' INT
	i=0
	while [ $i -lt 100 ]; do
		sleep 0.05
		i=$((i + 1))
	done
	;;
script)
	echo 'kdamond.0  1 [000] 1.000000: damon:damon_aggregated: target_id=0 nr_regions=1 4096-8192: 1 1'
	;;
esac
`

func setupRecordEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	env := setupCLITestEnv(t)
	perf := filepath.Join(env.baseDir, "bin", "perf")
	testsupport.WriteExecutable(t, perf, fakePerf)
	env.cfg.Record.PerfBinary = perf
	testsupport.WriteKdamonds(t, env.cfg)
	return env
}

func TestRecordWritesPerfScriptOutput(t *testing.T) {
	asRoot(t)
	env := setupRecordEnv(t)
	out := env.cfg.Record.Output
	testsupport.WriteFile(t, out, "previous record\n")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	res := runCLI(t, ctx, env, "record", strconv.Itoa(os.Getpid()))
	requireCode(t, res, subcmd.ExitOK)
	requireContains(t, res.stdout, "Press Ctrl+C to stop")

	requireContains(t, testsupport.ReadFile(t, out), "damon:damon_aggregated: target_id=0")
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("output permission = %o, want 600", perm)
	}
	if got := testsupport.ReadFile(t, out+".old"); got != "previous record\n" {
		t.Fatalf("backup = %q", got)
	}
	if _, err := os.Stat(out + ".perf.data"); !os.IsNotExist(err) {
		t.Fatalf("perf data left behind: %v", err)
	}
	if got := readTree(t, env, "0", "state"); got != "off" {
		t.Fatalf("kdamond state = %q, want off", got)
	}
}

func TestRecordKeepsPerfDataAndPermission(t *testing.T) {
	asRoot(t)
	env := setupRecordEnv(t)
	out := filepath.Join(env.baseDir, "custom.data")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	res := runCLI(t, ctx, env, "record", strconv.Itoa(os.Getpid()),
		"-o", out, "--output_permission", "644", "--leave_perf_data")
	requireCode(t, res, subcmd.ExitOK)

	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o644 {
		t.Fatalf("output permission = %o, want 644", perm)
	}
	if _, err := os.Stat(out + ".perf.data"); err != nil {
		t.Fatalf("perf data removed: %v", err)
	}
}

func TestRecordOngoingRequiresRunningDAMON(t *testing.T) {
	asRoot(t)
	env := setupRecordEnv(t)

	res := runCLI(t, nil, env, "record", "ongoing")
	requireCode(t, res, subcmd.ExitFailure)
	requireContains(t, res.stderr, "DAMON is not turned on")
}

func TestRecordOngoingLeavesKdamondsRunning(t *testing.T) {
	asRoot(t)
	env := setupRecordEnv(t)
	testsupport.WriteKdamonds(t, env.cfg, testsupport.Kdamond(damon.StateOn, 4242))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	res := runCLI(t, ctx, env, "record", "ongoing")
	requireCode(t, res, subcmd.ExitOK)
	if got := readTree(t, env, "0", "state"); got != "on" {
		t.Fatalf("kdamond state = %q, want on", got)
	}
}

func TestRecordRequiresPerf(t *testing.T) {
	asRoot(t)
	env := setupCLITestEnv(t)
	env.cfg.Record.PerfBinary = "clearly-not-present-perf"
	testsupport.WriteKdamonds(t, env.cfg)

	res := runCLI(t, nil, env, "record", "1234")
	requireCode(t, res, subcmd.ExitFailure)
	requireContains(t, res.stderr, "perf unavailable")
}
