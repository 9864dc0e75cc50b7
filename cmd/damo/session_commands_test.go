package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"damo/internal/damon"
	"damo/internal/subcmd"
	"damo/internal/testsupport"
)

func readTree(t *testing.T, env *cliTestEnv, rel ...string) string {
	t.Helper()
	parts := append([]string{env.cfg.DAMON.SysfsDir, "kdamonds"}, rel...)
	return strings.TrimSpace(testsupport.ReadFile(t, filepath.Join(parts...)))
}

func TestStartAppliesKdamondAndTurnsOn(t *testing.T) {
	asRoot(t)
	env := setupCLITestEnv(t)
	testsupport.WriteKdamonds(t, env.cfg)

	res := runCLI(t, nil, env, "start", "1234", "--sample", "10ms", "--aggr", "200ms",
		"-c", "[[schemes]]\naction = \"pageout\"\n[schemes.access_pattern]\nmin_age = \"2s\"\n")
	requireCode(t, res, subcmd.ExitOK)
	requireContains(t, res.stdout, "DAMON started (kdamond 0)")

	if got := readTree(t, env, "0", "state"); got != "on" {
		t.Fatalf("state = %q, want on", got)
	}
	if got := readTree(t, env, "0", "contexts", "0", "targets", "0", "pid_target"); got != "1234" {
		t.Fatalf("pid_target = %q", got)
	}
	if got := readTree(t, env, "0", "contexts", "0", "monitoring_attrs", "intervals", "sample_us"); got != "10000" {
		t.Fatalf("sample_us = %q", got)
	}
	if got := readTree(t, env, "0", "contexts", "0", "schemes", "0", "action"); got != "pageout" {
		t.Fatalf("action = %q", got)
	}
	// 2s of 200ms aggregation intervals.
	if got := readTree(t, env, "0", "contexts", "0", "schemes", "0", "access_pattern", "age", "min"); got != "10" {
		t.Fatalf("min age = %q", got)
	}
}

func TestStartPaddrUsesLargestSystemRAM(t *testing.T) {
	asRoot(t)
	env := setupCLITestEnv(t)
	testsupport.WriteKdamonds(t, env.cfg)
	testsupport.WriteIomem(t, env.cfg, "00001000-0009fbff : System RAM\n00100000-3fffffff : System RAM\n")

	res := runCLI(t, nil, env, "start", "paddr")
	requireCode(t, res, subcmd.ExitOK)
	if got := readTree(t, env, "0", "contexts", "0", "operations"); got != "paddr" {
		t.Fatalf("operations = %q", got)
	}
	if got := readTree(t, env, "0", "contexts", "0", "targets", "0", "regions", "0", "start"); got != "1048576" {
		t.Fatalf("region start = %q", got)
	}
	if got := readTree(t, env, "0", "contexts", "0", "targets", "0", "regions", "0", "end"); got != "1073741824" {
		t.Fatalf("region end = %q", got)
	}
}

func TestStartRefusesWhenRunning(t *testing.T) {
	asRoot(t)
	env := setupCLITestEnv(t)
	testsupport.WriteKdamonds(t, env.cfg, testsupport.Kdamond(damon.StateOn, 99))

	res := runCLI(t, nil, env, "start", "1234")
	requireCode(t, res, subcmd.ExitFailure)
	requireContains(t, res.stderr, "already turned on")
}

func TestStartRejectsInvalidMonitoringFlags(t *testing.T) {
	asRoot(t)
	env := setupCLITestEnv(t)
	testsupport.WriteKdamonds(t, env.cfg)

	res := runCLI(t, nil, env, "start", "1234", "--minr", "50", "--maxr", "20")
	requireCode(t, res, subcmd.ExitFailure)
	requireContains(t, res.stderr, "--maxr must not be below --minr")

	res = runCLI(t, nil, env, "start", "1234", "--ops", "paddr")
	requireCode(t, res, subcmd.ExitFailure)
	requireContains(t, res.stderr, "cannot monitor a process")
}

func TestStartRequiresRoot(t *testing.T) {
	env := setupCLITestEnv(t)
	orig := ensureRoot
	ensureRoot = func() error { return damon.ErrNotRoot }
	t.Cleanup(func() { ensureRoot = orig })

	res := runCLI(t, nil, env, "start", "1234")
	requireCode(t, res, subcmd.ExitFailure)
	requireContains(t, res.stderr, "run as root")
}

func TestTuneRequiresRunningDAMON(t *testing.T) {
	asRoot(t)
	env := setupCLITestEnv(t)
	testsupport.WriteKdamonds(t, env.cfg, testsupport.Kdamond(damon.StateOff, 0))

	res := runCLI(t, nil, env, "tune", "1234")
	requireCode(t, res, subcmd.ExitFailure)
	requireContains(t, res.stderr, "DAMON is not turned on")
}

func TestTuneWritesParamsAndCommits(t *testing.T) {
	asRoot(t)
	env := setupCLITestEnv(t)
	testsupport.WriteKdamonds(t, env.cfg, testsupport.Kdamond(damon.StateOn, 4242))

	res := runCLI(t, nil, env, "tune", "4242", "--aggr", "200ms", "-c", "[[schemes]]\naction = \"stat\"\n")
	requireCode(t, res, subcmd.ExitOK)
	if got := readTree(t, env, "0", "state"); got != "commit" {
		t.Fatalf("state = %q, want commit", got)
	}
	if got := readTree(t, env, "0", "contexts", "0", "monitoring_attrs", "intervals", "aggr_us"); got != "200000" {
		t.Fatalf("aggr_us = %q", got)
	}
	if got := readTree(t, env, "0", "contexts", "0", "schemes", "nr_schemes"); got != "1" {
		t.Fatalf("nr_schemes = %q", got)
	}
}

func TestStopTurnsRunningKdamondsOff(t *testing.T) {
	asRoot(t)
	env := setupCLITestEnv(t)
	testsupport.WriteKdamonds(t, env.cfg,
		testsupport.Kdamond(damon.StateOn, 10),
		testsupport.Kdamond(damon.StateOff, 0),
		testsupport.Kdamond(damon.StateOn, 12),
	)

	res := runCLI(t, nil, env, "stop")
	requireCode(t, res, subcmd.ExitOK)
	requireContains(t, res.stdout, "DAMON stopped (2 kdamond(s))")
	for _, name := range []string{"0", "1", "2"} {
		if got := readTree(t, env, name, "state"); got != "off" {
			t.Fatalf("kdamond %s state = %q", name, got)
		}
	}

	res = runCLI(t, nil, env, "stop")
	requireCode(t, res, subcmd.ExitOK)
	requireContains(t, res.stdout, "DAMON is not turned on")
}

func TestSchemesRestoresPreviousKdamonds(t *testing.T) {
	asRoot(t)
	env := setupCLITestEnv(t)
	testsupport.WriteKdamonds(t, env.cfg, testsupport.Kdamond(damon.StateOff, 77))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	res := runCLI(t, ctx, env, "schemes", "4242", "-c", "[[schemes]]\naction = \"cold\"\n")
	requireCode(t, res, subcmd.ExitOK)
	requireContains(t, res.stdout, "Press Ctrl+C to stop")

	if got := readTree(t, env, "0", "state"); got != "off" {
		t.Fatalf("state = %q, want off", got)
	}
	if got := readTree(t, env, "0", "contexts", "0", "targets", "0", "pid_target"); got != "77" {
		t.Fatalf("pid_target = %q, want restored 77", got)
	}
	if got := readTree(t, env, "0", "contexts", "0", "schemes", "nr_schemes"); got != "0" {
		t.Fatalf("nr_schemes = %q, want restored 0", got)
	}
}

func failTurnOnWait(t *testing.T) {
	t.Helper()
	orig := waitKdamondState
	waitKdamondState = func(s *damon.Sysfs, ctx context.Context, names []string, on bool, poll time.Duration) error {
		if on {
			return errors.New("kdamond did not start")
		}
		return orig(s, ctx, names, on, poll)
	}
	t.Cleanup(func() { waitKdamondState = orig })
}

func TestStartTurnsKdamondOffWhenItNeverStarts(t *testing.T) {
	asRoot(t)
	failTurnOnWait(t)
	env := setupCLITestEnv(t)
	testsupport.WriteKdamonds(t, env.cfg)

	res := runCLI(t, nil, env, "start", "1234")
	requireCode(t, res, subcmd.ExitFailure)
	requireContains(t, res.stderr, "wait for DAMON to turn on: kdamond did not start")
	if got := readTree(t, env, "0", "state"); got != "off" {
		t.Fatalf("state = %q, want off", got)
	}
}

func TestSchemesRestoresPreviousKdamondsWhenStartFails(t *testing.T) {
	asRoot(t)
	failTurnOnWait(t)
	env := setupCLITestEnv(t)
	testsupport.WriteKdamonds(t, env.cfg, testsupport.Kdamond(damon.StateOff, 77))

	res := runCLI(t, nil, env, "schemes", "4242", "-c", "[[schemes]]\naction = \"cold\"\n")
	requireCode(t, res, subcmd.ExitFailure)
	requireContains(t, res.stderr, "wait for DAMON to turn on")
	if got := readTree(t, env, "0", "state"); got != "off" {
		t.Fatalf("state = %q, want off", got)
	}
	if got := readTree(t, env, "0", "contexts", "0", "targets", "0", "pid_target"); got != "77" {
		t.Fatalf("pid_target = %q, want restored 77", got)
	}
}

func TestSchemesEndsWhenKdamondStops(t *testing.T) {
	asRoot(t)
	env := setupCLITestEnv(t)
	testsupport.WriteKdamonds(t, env.cfg)

	sysfs := damon.NewSysfs(env.cfg.DAMON.SysfsDir)
	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if on, err := sysfs.Running("0"); err == nil && on {
				// Let the command observe the kdamond turning on first.
				time.Sleep(100 * time.Millisecond)
				_ = sysfs.TurnOff([]string{"0"})
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res := runCLI(t, ctx, env, "schemes", "4242")
	requireCode(t, res, subcmd.ExitOK)
	if ctx.Err() != nil {
		t.Fatal("schemes waited for the context instead of the kdamond")
	}
}

func TestSchemesEndsWhenTargetCommandExits(t *testing.T) {
	asRoot(t)
	env := setupCLITestEnv(t)
	testsupport.WriteKdamonds(t, env.cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res := runCLI(t, ctx, env, "schemes", "sleep 0.2")
	requireCode(t, res, subcmd.ExitOK)
	if ctx.Err() != nil {
		t.Fatal("schemes waited for the context instead of the target")
	}
	if got := readTree(t, env, "0", "state"); got != "off" {
		t.Fatalf("state = %q, want off", got)
	}
}

func TestStopLogsToConfiguredFile(t *testing.T) {
	asRoot(t)
	env := setupCLITestEnv(t)
	env.cfg.Logging.File = filepath.Join(env.baseDir, "logs", "damo.log")
	testsupport.WriteKdamonds(t, env.cfg, testsupport.Kdamond(damon.StateOn, 10))

	res := runCLI(t, nil, env, "stop")
	requireCode(t, res, subcmd.ExitOK)

	logged := testsupport.ReadFile(t, env.cfg.Logging.File)
	requireContains(t, logged, "INFO stop: kdamond turned off kdamond=0 session_id=")
	requireContains(t, res.stderr, "kdamond turned off")
}
