package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"damo/internal/config"
	"damo/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	return &cliTestEnv{
		cfg:     cfg,
		baseDir: testsupport.BaseDir(cfg),
	}
}

// writeConfig persists the current config; call it after adjusting env.cfg.
func (e *cliTestEnv) writeConfig(t *testing.T) {
	t.Helper()
	e.configPath = testsupport.WriteConfig(t, e.cfg)
}

type cliResult struct {
	stdout string
	stderr string
	code   int
}

func runCLI(t *testing.T, ctx context.Context, env *cliTestEnv, args ...string) cliResult {
	t.Helper()
	if ctx == nil {
		ctx = context.Background()
	}
	argv := append([]string{}, args...)
	if env != nil {
		if env.configPath == "" {
			env.writeConfig(t)
		}
		argv = append(argv, "--config", env.configPath)
	}
	var stdout, stderr bytes.Buffer
	code := runWith(ctx, newCommandContext(&stdout, &stderr), argv)
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

// asRoot lets commands that write DAMON files run in tests.
func asRoot(t *testing.T) {
	t.Helper()
	orig := ensureRoot
	ensureRoot = func() error { return nil }
	t.Cleanup(func() { ensureRoot = orig })
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireCode(t *testing.T, res cliResult, want int) {
	t.Helper()
	if res.code != want {
		t.Fatalf("exit code = %d, want %d\nstdout: %s\nstderr: %s", res.code, want, res.stdout, res.stderr)
	}
}
