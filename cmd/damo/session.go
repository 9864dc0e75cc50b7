package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"damo/internal/damon"
	"damo/internal/logging"
)

var (
	errSessionEnded = errors.New("monitoring session ended")
	errAlreadyOn    = errors.New("DAMON is already turned on; stop it first")
)

// waitKdamondState is swapped in tests to simulate a kdamond that never
// reaches the requested state.
var waitKdamondState = (*damon.Sysfs).WaitState

const (
	targetStopGrace = 5 * time.Second
	turnOffTimeout  = 10 * time.Second
)

// waitSession blocks until every named kdamond is off, the self-started
// target exits, or ctx is done. It reports whether ctx ended the wait.
func waitSession(ctx context.Context, sysfs *damon.Sysfs, names []string, poll time.Duration, target *targetProcess) (bool, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sysfs.WaitState(gctx, names, false, poll); err != nil {
			return err
		}
		return errSessionEnded
	})
	if target != nil {
		g.Go(func() error {
			select {
			case <-target.Done():
				return errSessionEnded
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	err := g.Wait()
	switch {
	case errors.Is(err, errSessionEnded):
		return false, nil
	case ctx.Err() != nil:
		return true, nil
	default:
		return false, err
	}
}

// turnOff stops the named kdamonds that are still on and waits for them.
func turnOff(ctx context.Context, sysfs *damon.Sysfs, names []string, poll time.Duration, logger *slog.Logger) error {
	var running []string
	for _, name := range names {
		on, err := sysfs.Running(name)
		if err != nil {
			return err
		}
		if on {
			running = append(running, name)
		}
	}
	if len(running) == 0 {
		return nil
	}
	if err := sysfs.TurnOff(running); err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), turnOffTimeout)
	defer cancel()
	if err := sysfs.WaitState(waitCtx, running, false, poll); err != nil {
		return err
	}
	for _, name := range running {
		logger.Info("kdamond turned off", logging.String(logging.FieldKdamond, name))
	}
	return nil
}

func kdamondName(idx int) string {
	return strconv.Itoa(idx)
}

// ensureIdle fails when any kdamond is on.
func ensureIdle(sysfs *damon.Sysfs) error {
	names, err := sysfs.KdamondNames()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return nil
	}
	on, err := sysfs.AnyRunning()
	if err != nil {
		return err
	}
	if on {
		return errAlreadyOn
	}
	return nil
}

// startKdamond installs kd as the only kdamond and turns it on. A kdamond
// that does not report "on" in time is turned off again.
func startKdamond(ctx context.Context, sysfs *damon.Sysfs, kd damon.Kdamond, poll time.Duration) ([]string, error) {
	if err := sysfs.Apply([]damon.Kdamond{kd}); err != nil {
		return nil, fmt.Errorf("apply kdamond: %w", err)
	}
	names := []string{kdamondName(0)}
	if err := sysfs.TurnOn(names); err != nil {
		return nil, fmt.Errorf("turn DAMON on: %w", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, turnOffTimeout)
	defer cancel()
	if err := waitKdamondState(sysfs, waitCtx, names, true, poll); err != nil {
		err = fmt.Errorf("wait for DAMON to turn on: %w", err)
		if offErr := sysfs.TurnOff(names); offErr != nil {
			err = errors.Join(err, fmt.Errorf("turn DAMON off: %w", offErr))
		}
		return nil, err
	}
	return names, nil
}
