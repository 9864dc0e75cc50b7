package main

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"damo/internal/damon"
	"damo/internal/subcmd"
	"damo/internal/testsupport"
)

func TestStatusJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteKdamonds(t, env.cfg, testsupport.Kdamond(damon.StateOn, 4242, damon.NewScheme(damon.ActionPageout)))

	res := runCLI(t, nil, env, "status", "--json")
	requireCode(t, res, subcmd.ExitOK)

	var kdamonds []damon.Kdamond
	if err := json.Unmarshal([]byte(res.stdout), &kdamonds); err != nil {
		t.Fatalf("decode status json: %v\n%s", err, res.stdout)
	}
	if len(kdamonds) != 1 || kdamonds[0].State != damon.StateOn || kdamonds[0].PID != 4242 {
		t.Fatalf("unexpected kdamonds %+v", kdamonds)
	}
	if kdamonds[0].Contexts[0].Schemes[0].Action != damon.ActionPageout {
		t.Fatalf("unexpected scheme %+v", kdamonds[0].Contexts[0].Schemes)
	}
}

func TestStatusTable(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteKdamonds(t, env.cfg, testsupport.Kdamond(damon.StateOn, 4242, damon.NewScheme(damon.ActionCold)))

	res := runCLI(t, nil, env, "status")
	requireCode(t, res, subcmd.ExitOK)
	requireContains(t, res.stdout, "kdamonds")
	requireContains(t, res.stdout, "pid 4242")
	requireContains(t, res.stdout, "sample 5ms, aggr 100ms, update 1s")
	requireContains(t, res.stdout, "cold")
	requireContains(t, res.stdout, "[0 B, max]")
}

func TestStatusEmptyTree(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteKdamonds(t, env.cfg)

	res := runCLI(t, nil, env, "status")
	requireCode(t, res, subcmd.ExitOK)
	requireContains(t, res.stdout, "No kdamonds configured")

	res = runCLI(t, nil, env, "status", "--json")
	requireCode(t, res, subcmd.ExitOK)
	requireContains(t, res.stdout, "[]")
}

func TestStatusWithoutDAMON(t *testing.T) {
	env := setupCLITestEnv(t)
	res := runCLI(t, nil, env, "status")
	requireCode(t, res, subcmd.ExitFailure)
	requireContains(t, res.stderr, "DAMON interface not found")
}

func TestStatusDebugfsOnly(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithInterface("auto"))
	testsupport.WriteFile(t, filepath.Join(env.cfg.DAMON.DebugfsDir, "monitor_on"), "off\n")

	res := runCLI(t, nil, env, "status")
	requireCode(t, res, subcmd.ExitFailure)
	requireContains(t, res.stderr, "debugfs")
}
