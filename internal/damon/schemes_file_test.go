package damon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSchemesResolvesUnits(t *testing.T) {
	doc := `
[[schemes]]
action = "pageout"
[schemes.access_pattern]
min_sz = "4KiB"
max_sz = "max"
min_nr_accesses = 0
max_nr_accesses = "50%"
min_age = "5s"
[schemes.quotas]
time = "10ms"
sz = "128MiB"
reset_interval = "1s"
weight_age = 1000
[schemes.watermarks]
metric = "free_mem_rate"
interval = "5s"
high = 600
mid = 500
low = 100

[[schemes]]
action = "hugepage"
`
	schemes, err := ParseSchemes([]byte(doc), DefaultIntervals())
	if err != nil {
		t.Fatalf("ParseSchemes: %v", err)
	}
	if len(schemes) != 2 {
		t.Fatalf("expected 2 schemes, got %d", len(schemes))
	}
	s := schemes[0]
	if s.Name != "0" || s.Action != ActionPageout {
		t.Fatalf("unexpected scheme header %+v", s)
	}
	p := s.AccessPattern
	if p.MinSize != 4096 || p.MaxSize != MaxSize {
		t.Fatalf("size range = %d-%d", p.MinSize, p.MaxSize)
	}
	if p.MinNrAccesses != 0 || p.MaxNrAccesses != 10 {
		t.Fatalf("nr_accesses range = %d-%d", p.MinNrAccesses, p.MaxNrAccesses)
	}
	if p.MinAge != 50 || p.MaxAge != MaxCount {
		t.Fatalf("age range = %d-%d", p.MinAge, p.MaxAge)
	}
	q := s.Quotas
	if q.TimeMS != 10 || q.Bytes != 128<<20 || q.ResetIntervalMS != 1000 || q.WeightAgePermil != 1000 {
		t.Fatalf("unexpected quotas %+v", q)
	}
	w := s.Watermarks
	if w.Metric != MetricFreeMemRate || w.IntervalUS != 5_000_000 || w.High != 600 || w.Mid != 500 || w.Low != 100 {
		t.Fatalf("unexpected watermarks %+v", w)
	}

	if schemes[1].AccessPattern != MatchAll() {
		t.Fatalf("default pattern = %+v", schemes[1].AccessPattern)
	}
	if schemes[1].Watermarks.Metric != MetricNone {
		t.Fatalf("default metric = %q", schemes[1].Watermarks.Metric)
	}
}

func TestParseSchemesRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown action", "[[schemes]]\naction = \"explode\"\n", "unknown action"},
		{"unknown field", "[[schemes]]\naction = \"stat\"\ncolor = \"red\"\n", "parse schemes"},
		{"min above max", "[[schemes]]\n[schemes.access_pattern]\nmin_sz = \"2MiB\"\nmax_sz = \"1MiB\"\n", "minimum exceeds maximum"},
		{"watermark order", "[[schemes]]\n[schemes.watermarks]\nmetric = \"free_mem_rate\"\nhigh = 100\nmid = 500\nlow = 10\n", "high >= mid >= low"},
		{"negative", "[[schemes]]\n[schemes.access_pattern]\nmin_age = -1\n", "negative"},
		{"bad metric", "[[schemes]]\n[schemes.watermarks]\nmetric = \"cpu\"\n", "unknown watermark metric"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSchemes([]byte(tc.doc), DefaultIntervals())
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadSchemesFromFileOrInline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemes.toml")
	if err := os.WriteFile(path, []byte("[[schemes]]\naction = \"cold\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	schemes, err := LoadSchemes(path, DefaultIntervals())
	if err != nil {
		t.Fatalf("LoadSchemes(file): %v", err)
	}
	if len(schemes) != 1 || schemes[0].Action != ActionCold {
		t.Fatalf("unexpected schemes %+v", schemes)
	}

	schemes, err = LoadSchemes(`[[schemes]]
action = "stat"`, DefaultIntervals())
	if err != nil {
		t.Fatalf("LoadSchemes(inline): %v", err)
	}
	if len(schemes) != 1 || schemes[0].Action != ActionStat {
		t.Fatalf("unexpected inline schemes %+v", schemes)
	}

	if _, err := LoadSchemes(filepath.Join(t.TempDir(), "missing.toml"), DefaultIntervals()); err == nil {
		t.Fatal("expected error for missing file")
	}
}
