package config

const (
	defaultInterface        = "auto"
	defaultSysfsDir         = "/sys/kernel/mm/damon/admin"
	defaultDebugfsDir       = "/sys/kernel/debug/damon"
	defaultReclaimDir       = "/sys/module/damon_reclaim/parameters"
	defaultIomemPath        = "/proc/iomem"
	defaultPollIntervalMS   = 1000
	defaultRecordOutput     = "damon.data"
	defaultRecordPermission = "600"
	defaultPerfBinary       = "perf"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"

	defaultOutputPermission = 0o600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir(),
		},
		DAMON: DAMON{
			Interface:      defaultInterface,
			SysfsDir:       defaultSysfsDir,
			DebugfsDir:     defaultDebugfsDir,
			ReclaimDir:     defaultReclaimDir,
			IomemPath:      defaultIomemPath,
			PollIntervalMS: defaultPollIntervalMS,
		},
		Record: Record{
			Output:     defaultRecordOutput,
			Permission: defaultRecordPermission,
			PerfBinary: defaultPerfBinary,
		},
		Logging: Logging{
			Format: defaultLogFormat,
		},
	}
}
