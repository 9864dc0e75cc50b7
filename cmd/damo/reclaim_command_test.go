package main

import (
	"path/filepath"
	"strings"
	"testing"

	"damo/internal/subcmd"
	"damo/internal/testsupport"
)

func writeReclaim(t *testing.T, env *cliTestEnv, enabled string) {
	t.Helper()
	testsupport.WriteReclaimParams(t, env.cfg, map[string]string{
		"enabled":       enabled,
		"kdamond_pid":   "-1",
		"min_age":       "120000000",
		"quota_ms":      "10",
		"quota_sz":      "134217728",
		"commit_inputs": "N",
	})
}

func readReclaim(t *testing.T, env *cliTestEnv, name string) string {
	t.Helper()
	return strings.TrimSpace(testsupport.ReadFile(t, filepath.Join(env.cfg.DAMON.ReclaimDir, name)))
}

func TestReclaimEnableWritesParams(t *testing.T) {
	asRoot(t)
	env := setupCLITestEnv(t)
	writeReclaim(t, env, "N")

	res := runCLI(t, nil, env, "reclaim", "enable", "--min_age", "5s", "--quota_sz", "1GiB", "-p", "quota_ms=20")
	requireCode(t, res, subcmd.ExitOK)

	want := map[string]string{
		"enabled":       "Y",
		"min_age":       "5000000",
		"quota_sz":      "1073741824",
		"quota_ms":      "20",
		"commit_inputs": "N",
	}
	for name, value := range want {
		if got := readReclaim(t, env, name); got != value {
			t.Fatalf("%s = %q, want %q", name, got, value)
		}
	}
}

func TestReclaimEnableCommitsWhenRunning(t *testing.T) {
	asRoot(t)
	env := setupCLITestEnv(t)
	writeReclaim(t, env, "Y")

	res := runCLI(t, nil, env, "reclaim", "enable", "--quota_ms", "50")
	requireCode(t, res, subcmd.ExitOK)
	if got := readReclaim(t, env, "quota_ms"); got != "50" {
		t.Fatalf("quota_ms = %q", got)
	}
	if got := readReclaim(t, env, "commit_inputs"); got != "Y" {
		t.Fatalf("commit_inputs = %q", got)
	}
}

func TestReclaimDisable(t *testing.T) {
	asRoot(t)
	env := setupCLITestEnv(t)
	writeReclaim(t, env, "Y")

	res := runCLI(t, nil, env, "reclaim", "disable")
	requireCode(t, res, subcmd.ExitOK)
	if got := readReclaim(t, env, "enabled"); got != "N" {
		t.Fatalf("enabled = %q", got)
	}
}

func TestReclaimStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	writeReclaim(t, env, "Y")

	res := runCLI(t, nil, env, "reclaim", "status")
	requireCode(t, res, subcmd.ExitOK)
	requireContains(t, res.stdout, "enabled: yes")
	requireContains(t, res.stdout, "DAMON_RECLAIM")
	requireContains(t, res.stdout, "134217728")
	if strings.Index(res.stdout, "kdamond_pid") > strings.Index(res.stdout, "min_age") {
		t.Fatalf("parameters out of order:\n%s", res.stdout)
	}
}

func TestReclaimRejectsParams(t *testing.T) {
	asRoot(t)
	env := setupCLITestEnv(t)
	writeReclaim(t, env, "N")

	res := runCLI(t, nil, env, "reclaim", "enable", "-p", "no_such_param=1")
	requireCode(t, res, subcmd.ExitFailure)
	requireContains(t, res.stderr, "unknown DAMON_RECLAIM parameter")

	res = runCLI(t, nil, env, "reclaim", "enable", "-p", "enabled=Y")
	requireCode(t, res, subcmd.ExitFailure)
	requireContains(t, res.stderr, "managed by damo")

	if got := readReclaim(t, env, "enabled"); got != "N" {
		t.Fatalf("enabled = %q after rejected params", got)
	}
}

func TestReclaimUnsupported(t *testing.T) {
	env := setupCLITestEnv(t)

	res := runCLI(t, nil, env, "reclaim", "status")
	requireCode(t, res, subcmd.ExitFailure)
	requireContains(t, res.stderr, "DAMON_RECLAIM is not available")
}
