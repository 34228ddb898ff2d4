package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"ttsched/pkg/api"
	"ttsched/pkg/codec"
	"ttsched/pkg/config"
	"ttsched/pkg/observability"
	"ttsched/pkg/registry"
	"ttsched/pkg/sched"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}
	if opts.Workers > 0 {
		cfg.Workers = opts.Workers
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	zap.L().Info("ttsched-bench started",
		zap.String("app", cfg.AppName),
		zap.String("scenario", opts.Scenario),
		zap.Int("workers", cfg.PoolSize()),
		zap.Duration("unit", opts.Unit))

	reg := registry.New()
	reg.MustRegister("sleep", func(ctx context.Context, args ...any) (any, error) {
		d := time.Duration(args[0].(int)) * opts.Unit
		select {
		case <-time.After(d):
			return args[0], nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	reg.MustRegister("make", func(ctx context.Context, args ...any) (any, error) {
		time.Sleep(2 * opts.Unit)
		return args[0].(int), nil
	})
	reg.MustRegister("add", func(ctx context.Context, args ...any) (any, error) {
		time.Sleep(2 * opts.Unit)
		return args[0].(int) + args[1].(int), nil
	})

	s, err := sched.New(cfg, reg)
	if err != nil {
		zap.L().Error("failed to build scheduler", zap.Error(err))
		return 1
	}
	defer func() { _ = s.Close() }()

	switch opts.Scenario {
	case "oversub":
		err = runOversub(s, cfg.PoolSize(), opts.Unit)
	case "fanin":
		err = runFanin(s, opts.Unit)
	default:
		zap.L().Error("unknown scenario", zap.String("scenario", opts.Scenario))
		return 2
	}
	if err != nil {
		zap.L().Error("scenario failed", zap.Error(err))
		return 1
	}

	if opts.DumpState {
		if b, err := codec.JSON().Marshal(s.Snapshot()); err == nil {
			fmt.Println(string(b))
		}
	}
	return 0
}

// runOversub submits 2W sleep tasks of durations 0..2W-1 units. With W
// slots the batch completes after 3W-2 units: slot i runs the pair
// (i, i+W) back to back.
func runOversub(s *sched.Scheduler, w int, unit time.Duration) error {
	n := 2 * w
	start := time.Now()
	hs := make([]api.Handle, n)
	for i := 0; i < n; i++ {
		h, err := s.Submit(context.Background(), "sleep", i)
		if err != nil {
			return fmt.Errorf("submit %d: %w", i, err)
		}
		hs[i] = h
	}

	// consume incrementally: report each completion as it lands
	rest := hs
	for len(rest) > 0 {
		ready, pending, err := s.Wait(context.Background(), rest, 1, 0)
		if err != nil {
			return fmt.Errorf("wait: %w", err)
		}
		for _, h := range ready {
			v, err := s.Get(context.Background(), h)
			if err != nil {
				return fmt.Errorf("get %s: %w", h, err)
			}
			fmt.Printf("%8.2f  task %v done\n", time.Since(start).Seconds(), v)
		}
		rest = pending
	}

	elapsed := time.Since(start)
	fmt.Printf("workers=%d tasks=%d elapsed=%v expected=%v (3W-2 units)\n",
		w, n, elapsed.Round(time.Millisecond), time.Duration(3*w-2)*unit)
	return nil
}

// runFanin runs two 2-unit producers feeding one 2-unit consumer; the
// producers overlap, so the result lands after about 4 units, not 6.
func runFanin(s *sched.Scheduler, unit time.Duration) error {
	start := time.Now()
	a, err := s.Submit(context.Background(), "make", 20)
	if err != nil {
		return err
	}
	b, err := s.Submit(context.Background(), "make", 22)
	if err != nil {
		return err
	}
	c, err := s.Submit(context.Background(), "add", a, b)
	if err != nil {
		return err
	}
	v, err := s.Get(context.Background(), c)
	if err != nil {
		return err
	}
	fmt.Printf("add(make, make) = %v elapsed=%v expected=%v (4 units)\n",
		v, time.Since(start).Round(time.Millisecond), 4*unit)
	return nil
}
