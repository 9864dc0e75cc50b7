// Package record reads DAMON monitoring results captured as `perf script`
// text output of the damon:damon_aggregated tracepoint.
//
// Parse groups the tracepoint lines into per-target snapshots, one snapshot
// per aggregation interval, and derives each snapshot's start time from the
// previous snapshot of the same target. WriteRaw renders a Result in the
// plain snapshot-by-snapshot report format used by `damo report`.
package record
