package damon

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml/v2"
)

// A schemes document lists schemes in TOML:
//
//	[[schemes]]
//	action = "pageout"
//	[schemes.access_pattern]
//	min_sz = "4KiB"
//	max_nr_accesses = 0
//	min_age = "5s"
//	[schemes.quotas]
//	time = "10ms"
//	sz = "128MiB"
//	reset_interval = "1s"
//
// Sizes accept byte counts or human sizes. nr_accesses accept sample counts
// or percentages ("50%"). Ages accept aggregation interval counts or
// durations. "min" and "max" select the unbounded limits.
type schemesDocument struct {
	Schemes []schemeSpec `toml:"schemes"`
}

type schemeSpec struct {
	Action        string        `toml:"action"`
	AccessPattern patternSpec   `toml:"access_pattern"`
	Quotas        quotaSpec     `toml:"quotas"`
	Watermarks    watermarkSpec `toml:"watermarks"`
}

type patternSpec struct {
	MinSize       any `toml:"min_sz"`
	MaxSize       any `toml:"max_sz"`
	MinNrAccesses any `toml:"min_nr_accesses"`
	MaxNrAccesses any `toml:"max_nr_accesses"`
	MinAge        any `toml:"min_age"`
	MaxAge        any `toml:"max_age"`
}

type quotaSpec struct {
	Time             string `toml:"time"`
	Size             any    `toml:"sz"`
	ResetInterval    string `toml:"reset_interval"`
	WeightSize       uint64 `toml:"weight_sz"`
	WeightNrAccesses uint64 `toml:"weight_nr_accesses"`
	WeightAge        uint64 `toml:"weight_age"`
}

type watermarkSpec struct {
	Metric   string `toml:"metric"`
	Interval string `toml:"interval"`
	High     uint64 `toml:"high"`
	Mid      uint64 `toml:"mid"`
	Low      uint64 `toml:"low"`
}

// LoadSchemes reads schemes from the file at source, or parses source itself
// when it looks like an inline schemes document.
func LoadSchemes(source string, intervals Intervals) ([]Scheme, error) {
	if strings.ContainsAny(source, "\n=[") {
		return ParseSchemes([]byte(source), intervals)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read schemes: %w", err)
	}
	return ParseSchemes(data, intervals)
}

// ParseSchemes decodes a schemes document. intervals convert percentages and
// durations into the kernel's units.
func ParseSchemes(data []byte, intervals Intervals) ([]Scheme, error) {
	var doc schemesDocument
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse schemes: %w", err)
	}
	schemes := make([]Scheme, 0, len(doc.Schemes))
	for i, spec := range doc.Schemes {
		scheme, err := spec.resolve(intervals)
		if err != nil {
			return nil, fmt.Errorf("scheme %d: %w", i, err)
		}
		scheme.Name = strconv.Itoa(i)
		schemes = append(schemes, scheme)
	}
	return schemes, nil
}

func (s schemeSpec) resolve(intervals Intervals) (Scheme, error) {
	action := strings.TrimSpace(s.Action)
	if action == "" {
		action = ActionStat
	}
	if !ValidAction(action) {
		return Scheme{}, fmt.Errorf("unknown action %q", action)
	}
	scheme := NewScheme(action)

	p := &scheme.AccessPattern
	var err error
	if p.MinSize, err = parseSize(s.AccessPattern.MinSize, 0); err != nil {
		return Scheme{}, fmt.Errorf("min_sz: %w", err)
	}
	if p.MaxSize, err = parseSize(s.AccessPattern.MaxSize, MaxSize); err != nil {
		return Scheme{}, fmt.Errorf("max_sz: %w", err)
	}
	if p.MinNrAccesses, err = parseNrAccesses(s.AccessPattern.MinNrAccesses, 0, intervals); err != nil {
		return Scheme{}, fmt.Errorf("min_nr_accesses: %w", err)
	}
	if p.MaxNrAccesses, err = parseNrAccesses(s.AccessPattern.MaxNrAccesses, MaxCount, intervals); err != nil {
		return Scheme{}, fmt.Errorf("max_nr_accesses: %w", err)
	}
	if p.MinAge, err = parseAge(s.AccessPattern.MinAge, 0, intervals); err != nil {
		return Scheme{}, fmt.Errorf("min_age: %w", err)
	}
	if p.MaxAge, err = parseAge(s.AccessPattern.MaxAge, MaxCount, intervals); err != nil {
		return Scheme{}, fmt.Errorf("max_age: %w", err)
	}
	if p.MinSize > p.MaxSize || p.MinNrAccesses > p.MaxNrAccesses || p.MinAge > p.MaxAge {
		return Scheme{}, errors.New("access pattern minimum exceeds maximum")
	}

	q := &scheme.Quotas
	if q.TimeMS, err = parseMillis(s.Quotas.Time); err != nil {
		return Scheme{}, fmt.Errorf("quotas.time: %w", err)
	}
	if q.Bytes, err = parseSize(s.Quotas.Size, 0); err != nil {
		return Scheme{}, fmt.Errorf("quotas.sz: %w", err)
	}
	if q.ResetIntervalMS, err = parseMillis(s.Quotas.ResetInterval); err != nil {
		return Scheme{}, fmt.Errorf("quotas.reset_interval: %w", err)
	}
	q.WeightSizePermil = s.Quotas.WeightSize
	q.WeightNrAccessesPermil = s.Quotas.WeightNrAccesses
	q.WeightAgePermil = s.Quotas.WeightAge

	w := &scheme.Watermarks
	w.Metric = strings.TrimSpace(s.Watermarks.Metric)
	if w.Metric == "" {
		w.Metric = MetricNone
	}
	if w.Metric != MetricNone && w.Metric != MetricFreeMemRate {
		return Scheme{}, fmt.Errorf("unknown watermark metric %q", w.Metric)
	}
	if s.Watermarks.Interval != "" {
		d, err := time.ParseDuration(s.Watermarks.Interval)
		if err != nil {
			return Scheme{}, fmt.Errorf("watermarks.interval: %w", err)
		}
		w.IntervalUS = uint64(d.Microseconds())
	}
	w.High, w.Mid, w.Low = s.Watermarks.High, s.Watermarks.Mid, s.Watermarks.Low
	if w.Metric != MetricNone && !(w.High >= w.Mid && w.Mid >= w.Low) {
		return Scheme{}, errors.New("watermarks must satisfy high >= mid >= low")
	}
	return scheme, nil
}

// limit handles nil, "min" and "max". It reports whether v was consumed.
func limit(v any, fallback, max uint64) (uint64, bool) {
	switch t := v.(type) {
	case nil:
		return fallback, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "":
			return fallback, true
		case "min":
			return 0, true
		case "max":
			return max, true
		}
	}
	return 0, false
}

func asInteger(v any) (uint64, bool, error) {
	n, ok := v.(int64)
	if !ok {
		return 0, false, nil
	}
	if n < 0 {
		return 0, true, fmt.Errorf("negative value %d", n)
	}
	return uint64(n), true, nil
}

func parseSize(v any, fallback uint64) (uint64, error) {
	if value, ok := limit(v, fallback, MaxSize); ok {
		return value, nil
	}
	if n, ok, err := asInteger(v); ok {
		return n, err
	}
	text, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unsupported value %v", v)
	}
	return humanize.ParseBytes(strings.TrimSpace(text))
}

func parseNrAccesses(v any, fallback uint64, intervals Intervals) (uint64, error) {
	if value, ok := limit(v, fallback, MaxCount); ok {
		return value, nil
	}
	if n, ok, err := asInteger(v); ok {
		return n, err
	}
	text, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unsupported value %v", v)
	}
	text = strings.TrimSpace(text)
	if pct, isPct := strings.CutSuffix(text, "%"); isPct {
		percent, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil || percent < 0 {
			return 0, fmt.Errorf("invalid percentage %q", text)
		}
		return uint64(percent * float64(intervals.MaxNrAccesses()) / 100), nil
	}
	return strconv.ParseUint(text, 10, 64)
}

func parseAge(v any, fallback uint64, intervals Intervals) (uint64, error) {
	if value, ok := limit(v, fallback, MaxCount); ok {
		return value, nil
	}
	if n, ok, err := asInteger(v); ok {
		return n, err
	}
	text, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unsupported value %v", v)
	}
	d, err := time.ParseDuration(strings.TrimSpace(text))
	if err != nil {
		return 0, err
	}
	if intervals.Aggr <= 0 {
		return 0, errors.New("aggregation interval must be positive")
	}
	return uint64(d / intervals.Aggr), nil
}

func parseMillis(text string) (uint64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(text)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", text)
	}
	return uint64(d.Milliseconds()), nil
}
