package record

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const aggregatedEvent = "damon:damon_aggregated:"

// ParseFile parses the perf script text file at path.
func ParseFile(path string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open record: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads perf script output. A damon_aggregated line looks like
//
//	kdamond.0  4452 [000] 82877.315633: damon:damon_aggregated: target_id=0 nr_regions=17 140731667070976-140731668037632: 0 3
//
// where the trailing age field is missing on older kernels. Lines of other
// events are ignored.
func Parse(r io.Reader) (*Result, error) {
	p := parser{index: make(map[uint64]int)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := p.line(scanner.Text()); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	if len(p.result.Targets) == 0 {
		return nil, ErrNoSnapshots
	}
	p.result.finalize()
	return &p.result, nil
}

type parser struct {
	result      Result
	index       map[uint64]int
	readRegions uint64
}

func (p *parser) line(text string) error {
	fields := strings.Fields(text)
	if len(fields) != 9 && len(fields) != 10 {
		return nil
	}
	if fields[4] != aggregatedEvent {
		return nil
	}

	endTime, err := parseTimestamp(strings.TrimSuffix(fields[3], ":"))
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", fields[3], err)
	}

	targetID, err := keyedUint(fields[5], "target_id")
	if err != nil {
		return err
	}
	nrRegions, err := keyedUint(fields[6], "nr_regions")
	if err != nil {
		return err
	}
	startText, endText, ok := strings.Cut(strings.TrimSuffix(fields[7], ":"), "-")
	if !ok {
		return fmt.Errorf("region %q: want <start>-<end>", fields[7])
	}
	start, err := strconv.ParseUint(startText, 10, 64)
	if err != nil {
		return fmt.Errorf("region start: %w", err)
	}
	end, err := strconv.ParseUint(endText, 10, 64)
	if err != nil {
		return fmt.Errorf("region end: %w", err)
	}
	nrAccesses, err := strconv.ParseInt(fields[8], 10, 64)
	if err != nil {
		return fmt.Errorf("nr_accesses: %w", err)
	}
	region := Region{Start: start, End: end}
	fake := nrAccesses < 0
	if !fake {
		region.NrAccesses = uint64(nrAccesses)
	}
	if len(fields) == 10 {
		age, err := strconv.ParseInt(fields[9], 10, 64)
		if err != nil {
			return fmt.Errorf("age: %w", err)
		}
		if age >= 0 {
			region.Age = uint64(age)
			region.HasAge = true
		}
	}

	target := p.target(targetID)
	if p.readRegions == 0 {
		var startTime int64
		if n := len(target.Snapshots); n > 0 {
			startTime = target.Snapshots[n-1].EndTime
		}
		target.Snapshots = append(target.Snapshots, Snapshot{
			TargetID:  targetID,
			StartTime: startTime,
			EndTime:   endTime,
		})
	}
	snapshot := &target.Snapshots[len(target.Snapshots)-1]
	// An end marker written for single-snapshot recordings carries
	// 0-0 with -1 counters; it closes the snapshot but holds no data.
	if !(fake && start == 0 && end == 0) {
		snapshot.Regions = append(snapshot.Regions, region)
	}

	p.readRegions++
	if p.readRegions >= nrRegions {
		p.readRegions = 0
	}
	return nil
}

func (p *parser) target(id uint64) *Target {
	idx, ok := p.index[id]
	if !ok {
		idx = len(p.result.Targets)
		p.index[id] = idx
		p.result.Targets = append(p.result.Targets, Target{ID: id})
	}
	return &p.result.Targets[idx]
}

// parseTimestamp converts "<secs>.<fraction>" to nanoseconds without going
// through floating point.
func parseTimestamp(text string) (int64, error) {
	secText, fracText, _ := strings.Cut(text, ".")
	secs, err := strconv.ParseInt(secText, 10, 64)
	if err != nil {
		return 0, err
	}
	if len(fracText) > 9 {
		fracText = fracText[:9]
	}
	var frac int64
	if fracText != "" {
		if frac, err = strconv.ParseInt(fracText, 10, 64); err != nil {
			return 0, err
		}
		for i := len(fracText); i < 9; i++ {
			frac *= 10
		}
	}
	return secs*int64(time.Second) + frac, nil
}

func keyedUint(field, key string) (uint64, error) {
	name, value, ok := strings.Cut(field, "=")
	if !ok || name != key {
		return 0, fmt.Errorf("field %q: want %s=<n>", field, key)
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// finalize derives the recording's time span from the first target and fills
// in the start time of every target's first snapshot, which the trace does
// not carry. Trailing end markers are dropped.
func (r *Result) finalize() {
	var snapshotTime int64
	first := r.Targets[0].Snapshots
	if n := len(first); n >= 2 {
		snapshotTime = (first[n-1].EndTime - first[0].EndTime) / int64(n-1)
	}
	r.StartTime = first[0].EndTime - snapshotTime
	r.EndTime = first[len(first)-1].EndTime

	for i := range r.Targets {
		snaps := r.Targets[i].Snapshots
		snaps[0].StartTime = snaps[0].EndTime - snapshotTime
		if n := len(snaps); n == 2 && len(snaps[1].Regions) == 0 {
			snaps = snaps[:1]
		}
		r.Targets[i].Snapshots = snaps
	}
	r.NrSnapshots = len(r.Targets[0].Snapshots)
}
