package main

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"damo/internal/config"
	"damo/internal/damon"
)

type targetKind int

const (
	targetPID targetKind = iota
	targetPaddr
	targetOngoing
	targetCommand
)

const (
	targetNamePaddr   = "paddr"
	targetNameOngoing = "ongoing"
)

// monitoringTarget is the <target> positional shared by the session commands.
type monitoringTarget struct {
	kind    targetKind
	pid     int
	command string
}

func parseTarget(value string) (monitoringTarget, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return monitoringTarget{}, errors.New("monitoring target is required")
	case value == targetNamePaddr:
		return monitoringTarget{kind: targetPaddr}, nil
	case value == targetNameOngoing:
		return monitoringTarget{kind: targetOngoing}, nil
	}
	if pid, err := strconv.Atoi(value); err == nil {
		if pid <= 0 {
			return monitoringTarget{}, fmt.Errorf("invalid target pid %d", pid)
		}
		return monitoringTarget{kind: targetPID, pid: pid}, nil
	}
	return monitoringTarget{kind: targetCommand, command: value}, nil
}

// monitoringFlags are the monitoring attribute flags of record, schemes,
// start and tune.
type monitoringFlags struct {
	ops     string
	sample  time.Duration
	aggr    time.Duration
	updr    time.Duration
	minr    uint64
	maxr    uint64
	regions string
}

func (m *monitoringFlags) bind(fs *pflag.FlagSet) {
	defaults := damon.DefaultIntervals()
	nr := damon.DefaultNrRegions()
	fs.StringVar(&m.ops, "ops", "", "monitoring operations set (vaddr, fvaddr, paddr)")
	fs.DurationVar(&m.sample, "sample", defaults.Sample, "sampling interval")
	fs.DurationVar(&m.aggr, "aggr", defaults.Aggr, "aggregation interval")
	fs.DurationVar(&m.updr, "updr", defaults.Update, "operations update interval")
	fs.Uint64Var(&m.minr, "minr", nr.Min, "minimum number of monitoring regions")
	fs.Uint64Var(&m.maxr, "maxr", nr.Max, "maximum number of monitoring regions")
	fs.StringVar(&m.regions, "regions", "", "monitoring target address regions (<start>-<end>,...)")
}

func (m *monitoringFlags) intervals() damon.Intervals {
	return damon.Intervals{Sample: m.sample, Aggr: m.aggr, Update: m.updr}
}

func (m *monitoringFlags) validate() error {
	if m.sample <= 0 || m.aggr <= 0 || m.updr <= 0 {
		return errors.New("monitoring intervals must be positive")
	}
	if m.sample > m.aggr {
		return errors.New("sampling interval must not exceed the aggregation interval")
	}
	if m.minr < 3 {
		return errors.New("--minr must be at least 3")
	}
	if m.maxr < m.minr {
		return errors.New("--maxr must not be below --minr")
	}
	return nil
}

// kdamond builds the kdamond monitoring target. pid is the resolved process
// for pid and command targets.
func (m *monitoringFlags) kdamond(target monitoringTarget, pid int, cfg *config.Config, schemes []damon.Scheme) (damon.Kdamond, error) {
	if err := m.validate(); err != nil {
		return damon.Kdamond{}, err
	}
	regions, err := damon.ParseRegions(m.regions)
	if err != nil {
		return damon.Kdamond{}, fmt.Errorf("--regions: %w", err)
	}

	ops := strings.TrimSpace(m.ops)
	switch target.kind {
	case targetPaddr:
		if ops != "" && ops != damon.OpsPaddr {
			return damon.Kdamond{}, fmt.Errorf("--ops %s cannot monitor the physical address space", ops)
		}
		ops = damon.OpsPaddr
		if len(regions) == 0 {
			ram, err := damon.LargestSystemRAM(cfg.DAMON.IomemPath)
			if err != nil {
				return damon.Kdamond{}, err
			}
			regions = []damon.Region{ram}
		}
		pid = 0
	case targetPID, targetCommand:
		if ops == "" {
			ops = damon.OpsVaddr
		}
		if !damon.TargetHasPID(ops) {
			return damon.Kdamond{}, fmt.Errorf("--ops %s cannot monitor a process", ops)
		}
		if ops == damon.OpsFvaddr && len(regions) == 0 {
			return damon.Kdamond{}, errors.New("--ops fvaddr requires --regions")
		}
	default:
		return damon.Kdamond{}, errors.New("target does not describe a new monitoring context")
	}

	return damon.Kdamond{
		Name:  "0",
		State: damon.StateOff,
		Contexts: []damon.Context{{
			Name:      "0",
			Ops:       ops,
			Intervals: m.intervals(),
			NrRegions: damon.NrRegions{Min: m.minr, Max: m.maxr},
			Targets:   []damon.Target{{PID: pid, Regions: regions}},
			Schemes:   schemes,
		}},
	}, nil
}

// targetProcess is a monitoring target started by damo itself.
type targetProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func startTarget(command string, stdout, stderr io.Writer) (*targetProcess, error) {
	cmd := exec.Command("sh", "-c", command)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start target %q: %w", command, err)
	}
	p := &targetProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *targetProcess) pid() int {
	return p.cmd.Process.Pid
}

// Done is closed once the process exits.
func (p *targetProcess) Done() <-chan struct{} {
	return p.done
}

// stop terminates the process if it is still running and waits for it.
func (p *targetProcess) stop(grace time.Duration) {
	select {
	case <-p.done:
		return
	default:
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.done:
	case <-time.After(grace):
		_ = p.cmd.Process.Kill()
		<-p.done
	}
}
