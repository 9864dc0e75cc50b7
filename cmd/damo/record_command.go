package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"damo/internal/config"
	"damo/internal/damon"
	"damo/internal/deps"
	"damo/internal/logging"
	"damo/internal/subcmd"
)

const aggregatedTracepoint = "damon:damon_aggregated"

type recordCommand struct {
	app *commandContext

	monitoring    monitoringFlags
	out           string
	permission    string
	leavePerfData bool
}

func newRecordCommand(app *commandContext) *recordCommand {
	return &recordCommand{app: app}
}

func (c *recordCommand) ContributeParser(cmd *cobra.Command) {
	cmd.Use = "record <target>"
	cmd.Long = "Record data access patterns of <target>: a pid, \"paddr\" for the physical\n" +
		"address space, \"ongoing\" for the running kdamonds, or a command to start."
	cmd.Args = cobra.ExactArgs(1)
	fs := cmd.Flags()
	c.monitoring.bind(fs)
	fs.StringVarP(&c.out, "out", "o", "", "output file path (default from config, damon.data)")
	fs.StringVar(&c.permission, "output_permission", "", "permission of the output file (octal, default 600)")
	fs.BoolVar(&c.leavePerfData, "leave_perf_data", false, "don't remove the perf.data file")
}

func (c *recordCommand) Execute(args *subcmd.Args) error {
	target, err := parseTarget(args.Positional[0])
	if err != nil {
		return err
	}
	if err := ensureRoot(); err != nil {
		return err
	}
	cfg, err := c.app.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.app.componentLogger("record")
	if err != nil {
		return err
	}

	permission := cfg.OutputPermission()
	if strings.TrimSpace(c.permission) != "" {
		if permission, err = config.ParsePermission(c.permission); err != nil {
			return fmt.Errorf("--output_permission: %w", err)
		}
	}
	out := strings.TrimSpace(c.out)
	if out == "" {
		out = cfg.Record.Output
	}
	perf, err := deps.RequirePerf(cfg.Record.PerfBinary)
	if err != nil {
		return err
	}

	release, err := c.app.lockSession()
	if err != nil {
		return err
	}
	defer release()

	sysfs, err := c.app.sysfs()
	if err != nil {
		return err
	}

	ctx := args.Context()
	poll := cfg.PollInterval()
	session := &recordSession{
		logger:   logger,
		sysfs:    sysfs,
		poll:     poll,
		out:      out,
		perfData: out + ".perf.data",
		perf:     perf,

		leavePerfData: c.leavePerfData,
	}

	if target.kind == targetOngoing {
		running, err := sysfs.RunningNames()
		if err != nil {
			return err
		}
		if len(running) == 0 {
			return damon.ErrNotRunning
		}
		session.names = running
	} else {
		if err := ensureIdle(sysfs); err != nil {
			return err
		}
		pid := target.pid
		if target.kind == targetCommand {
			proc, err := startTarget(target.command, args.Stdout, args.Stderr)
			if err != nil {
				return err
			}
			session.target = proc
			pid = proc.pid()
		}
		kd, err := c.monitoring.kdamond(target, pid, cfg, nil)
		if err != nil {
			session.stopTarget()
			return err
		}
		session.ownsKdamonds = true
		names, err := startKdamond(ctx, sysfs, kd, poll)
		if err != nil {
			session.cleanup(ctx)
			return err
		}
		session.names = names
		logger.Info("DAMON turned on", logging.String(logging.FieldTarget, args.Positional[0]))
	}

	if err := backupOutput(out); err != nil {
		session.cleanup(ctx)
		return err
	}
	if err := session.startPerf(); err != nil {
		session.cleanup(ctx)
		return err
	}
	fmt.Fprintln(args.Stdout, "Press Ctrl+C to stop")

	interrupted, waitErr := waitSession(ctx, sysfs, session.names, poll, session.target)
	if interrupted {
		logger.Info("record interrupted")
	}
	session.cleanup(ctx)
	if waitErr != nil {
		return waitErr
	}
	return session.finish(ctx, permission)
}

type recordSession struct {
	logger *slog.Logger
	sysfs  *damon.Sysfs
	poll   time.Duration

	names        []string
	ownsKdamonds bool
	target       *targetProcess

	perf          string
	perfCmd       *exec.Cmd
	out           string
	perfData      string
	leavePerfData bool
}

func (s *recordSession) startPerf() error {
	cmd := exec.Command(s.perf, "record", "-a", "-e", aggregatedTracepoint, "-o", s.perfData)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start perf record: %w", err)
	}
	s.perfCmd = cmd
	s.logger.Debug("perf record started", logging.Int("pid", cmd.Process.Pid))
	return nil
}

// cleanup ends perf, the self-started target and the kdamonds damo turned
// on. Kdamonds recorded with the ongoing target are left running.
func (s *recordSession) cleanup(ctx context.Context) {
	if s.perfCmd != nil {
		_ = s.perfCmd.Process.Signal(syscall.SIGINT)
		if err := s.perfCmd.Wait(); err != nil {
			s.logger.Debug("perf record exited", logging.Error(err))
		}
		s.perfCmd = nil
	}
	s.stopTarget()
	if s.ownsKdamonds && len(s.names) > 0 {
		if err := turnOff(ctx, s.sysfs, s.names, s.poll, s.logger); err != nil {
			s.logger.Warn("failed to turn DAMON off", logging.Error(err))
		}
	}
}

func (s *recordSession) stopTarget() {
	if s.target != nil {
		s.target.stop(targetStopGrace)
	}
}

// finish converts the perf data into perf script text at out.
func (s *recordSession) finish(ctx context.Context, permission os.FileMode) error {
	file, err := os.OpenFile(s.out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, permission)
	if err != nil {
		return fmt.Errorf("create record output: %w", err)
	}
	cmd := exec.CommandContext(context.WithoutCancel(ctx), s.perf, "script", "-i", s.perfData)
	cmd.Stdout = file
	runErr := cmd.Run()
	closeErr := file.Close()
	if runErr != nil {
		return fmt.Errorf("perf script: %w", runErr)
	}
	if closeErr != nil {
		return fmt.Errorf("write record output: %w", closeErr)
	}
	if err := os.Chmod(s.out, permission); err != nil {
		return fmt.Errorf("set record output permission: %w", err)
	}
	if !s.leavePerfData {
		if err := os.Remove(s.perfData); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to remove perf data", logging.String("path", s.perfData), logging.Error(err))
		}
	}
	s.logger.Info("record saved", logging.String("path", s.out))
	return nil
}

// backupOutput moves an existing output file aside to <out>.old.
func backupOutput(out string) error {
	info, err := os.Stat(out)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspect record output: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("record output %s is not a regular file", out)
	}
	if err := os.Rename(out, out+".old"); err != nil {
		return fmt.Errorf("back up record output: %w", err)
	}
	return nil
}
