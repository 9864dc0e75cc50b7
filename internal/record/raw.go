package record

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// WriteRaw prints every snapshot with its regions. With rawNumbers, times are
// nanoseconds and sizes are byte counts; otherwise both are humanized.
func WriteRaw(w io.Writer, result *Result, rawNumbers bool) error {
	ew := &errWriter{w: w}
	ew.printf("start_time:  %s\n", formatTime(result.StartTime, rawNumbers))
	for _, snapshot := range result.Snapshots() {
		rel := snapshot.EndTime - result.StartTime
		if rawNumbers {
			ew.printf("rel time: %16d\n", rel)
		} else {
			ew.printf("rel time: %16s\n", time.Duration(rel).String())
		}
		ew.printf("nr_tasks:  1\n")
		ew.printf("target_id:  %d\n", snapshot.TargetID)
		ew.printf("nr_regions:  %d\n", len(snapshot.Regions))
		for _, region := range snapshot.Regions {
			if rawNumbers {
				ew.printf("%012x-%012x(%10d):\t%d", region.Start, region.End, region.Size(), region.NrAccesses)
			} else {
				ew.printf("%012x-%012x(%10s):\t%d", region.Start, region.End, humanize.IBytes(region.Size()), region.NrAccesses)
			}
			if region.HasAge {
				ew.printf("\t%d", region.Age)
			}
			ew.printf("\n")
		}
		ew.printf("\n")
	}
	return ew.err
}

func formatTime(ns int64, rawNumbers bool) string {
	if rawNumbers {
		return fmt.Sprintf("%d", ns)
	}
	return time.Duration(ns).String()
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
