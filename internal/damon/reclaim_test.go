package damon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeParams(t *testing.T, dir string, params map[string]string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, value := range params {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(value+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestReclaimParamsOrder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "parameters")
	writeParams(t, dir, map[string]string{
		"commit_inputs": "N",
		"zz_extra":      "1",
		"aa_extra":      "2",
		"min_age":       "120000000",
		"enabled":       "N",
		"kdamond_pid":   "-1",
	})
	reclaim := NewReclaim(dir)
	if !reclaim.Supported() {
		t.Fatal("expected reclaim supported")
	}
	params, err := reclaim.Params()
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	var names []string
	for _, p := range params {
		names = append(names, p.Name)
	}
	want := "enabled,kdamond_pid,min_age,commit_inputs,aa_extra,zz_extra"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("order = %s, want %s", got, want)
	}
	if params[2].Value != "120000000" {
		t.Fatalf("min_age value = %q", params[2].Value)
	}
}

func TestReclaimSetEnabled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "parameters")
	writeParams(t, dir, map[string]string{"enabled": "N", "commit_inputs": "N"})
	reclaim := NewReclaim(dir)

	if on, err := reclaim.Enabled(); err != nil || on {
		t.Fatalf("Enabled = %v, %v; want false", on, err)
	}
	if err := reclaim.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if on, err := reclaim.Enabled(); err != nil || !on {
		t.Fatalf("Enabled = %v, %v; want true", on, err)
	}
	if err := reclaim.CommitInputs(); err != nil {
		t.Fatalf("CommitInputs: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "commit_inputs"))
	if err != nil || string(data) != "Y" {
		t.Fatalf("commit_inputs = %q, %v", data, err)
	}
}

func TestReclaimSetRejectsUnknownParam(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "parameters")
	writeParams(t, dir, map[string]string{"enabled": "N"})
	reclaim := NewReclaim(dir)
	if err := reclaim.Set("bogus", "1"); err == nil || !strings.Contains(err.Error(), "unknown DAMON_RECLAIM parameter") {
		t.Fatalf("expected unknown parameter error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "bogus")); !os.IsNotExist(err) {
		t.Fatalf("unknown parameter file was created: %v", err)
	}
}

func TestReclaimUnsupported(t *testing.T) {
	reclaim := NewReclaim(filepath.Join(t.TempDir(), "missing"))
	if reclaim.Supported() {
		t.Fatal("expected unsupported")
	}
	if _, err := reclaim.Params(); err == nil {
		t.Fatal("expected Params error")
	}
}
