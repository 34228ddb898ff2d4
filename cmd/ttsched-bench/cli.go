package main

import (
	"flag"
	"time"
)

// Options holds CLI options for the bench runner.
type Options struct {
	ConfigPath string
	Scenario   string
	Workers    int
	Unit       time.Duration
	DumpState  bool
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
	fs := flag.NewFlagSet("ttsched-bench", flag.ExitOnError)
	var opts Options
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
	fs.StringVar(&opts.Scenario, "scenario", "oversub", "Scenario to run: oversub|fanin")
	fs.IntVar(&opts.Workers, "workers", 0, "Worker pool size override (0: from config)")
	fs.DurationVar(&opts.Unit, "unit", 100*time.Millisecond, "Duration of one time unit")
	fs.BoolVar(&opts.DumpState, "dump", false, "Print a JSON scheduler snapshot at the end")
	_ = fs.Parse(args)
	return opts
}
