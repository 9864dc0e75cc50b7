package damon

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDetect(t *testing.T) {
	base := t.TempDir()
	sysfsDir := filepath.Join(base, "admin")
	debugfsDir := filepath.Join(base, "debug")

	if _, err := Detect(Locations{Interface: InterfaceAuto, SysfsDir: sysfsDir, DebugfsDir: debugfsDir}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := os.MkdirAll(debugfsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Detect(Locations{Interface: InterfaceAuto, SysfsDir: sysfsDir, DebugfsDir: debugfsDir}); !errors.Is(err, ErrDebugfsOnly) {
		t.Fatalf("expected ErrDebugfsOnly, got %v", err)
	}
	if _, err := Detect(Locations{Interface: InterfaceSysfs, SysfsDir: sysfsDir}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for forced sysfs, got %v", err)
	}

	if err := os.MkdirAll(filepath.Join(sysfsDir, "kdamonds"), 0o755); err != nil {
		t.Fatal(err)
	}
	sysfs, err := Detect(Locations{Interface: InterfaceAuto, SysfsDir: sysfsDir, DebugfsDir: debugfsDir})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if sysfs.Root() != sysfsDir {
		t.Fatalf("root = %q, want %q", sysfs.Root(), sysfsDir)
	}
	if _, err := Detect(Locations{Interface: InterfaceDebugfs, SysfsDir: sysfsDir}); !errors.Is(err, ErrDebugfsOnly) {
		t.Fatalf("expected ErrDebugfsOnly for forced debugfs, got %v", err)
	}
	if _, err := Detect(Locations{Interface: "procfs", SysfsDir: sysfsDir}); err == nil {
		t.Fatal("expected error for unknown interface")
	}
}

func TestEnsureRoot(t *testing.T) {
	orig := geteuid
	t.Cleanup(func() { geteuid = orig })

	geteuid = func() int { return 1000 }
	if err := EnsureRoot(); !errors.Is(err, ErrNotRoot) {
		t.Fatalf("expected ErrNotRoot, got %v", err)
	}
	geteuid = func() int { return 0 }
	if err := EnsureRoot(); err != nil {
		t.Fatalf("EnsureRoot as root: %v", err)
	}
}

func TestLargestSystemRAM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iomem")
	content := "00000000-00000fff : Reserved\n" +
		"00001000-0009fbff : System RAM\n" +
		"00100000-bffdffff : System RAM\n" +
		"  01000000-01e03fff : Kernel code\n" +
		"fed00000-fed003ff : HPET 0\n" +
		"100000000-13fffffff : System RAM\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LargestSystemRAM(path)
	if err != nil {
		t.Fatalf("LargestSystemRAM: %v", err)
	}
	want := Region{Start: 0x100000, End: 0xbffe0000}
	if got != want {
		t.Fatalf("got %x-%x, want %x-%x", got.Start, got.End, want.Start, want.End)
	}
}

func TestLargestSystemRAMWithoutRAM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iomem")
	if err := os.WriteFile(path, []byte("00000000-00000fff : Reserved\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LargestSystemRAM(path); err == nil {
		t.Fatal("expected error without System RAM")
	}
	if _, err := LargestSystemRAM(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
