// Package damon reads and writes the kernel's DAMON control files.
//
// The sysfs interface (/sys/kernel/mm/damon/admin) is the only one driven:
// kdamonds are described with the Kdamond model, written with Sysfs.Apply and
// switched with TurnOn/TurnOff/Commit. Kernels that expose only the legacy
// debugfs interface are detected and reported with ErrDebugfsOnly.
//
// The package also covers the DAMON_RECLAIM module parameters and the
// /proc/iomem lookup used to pick a default physical address range.
package damon
