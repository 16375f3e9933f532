// Package main times joining users into rooms and appending their input.
//
// Usage:
//
//	roombench                          # reference workload, sharded backend
//	roombench -backend xsync -workers 8
//	roombench -config workload.yaml -runs 5
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, runs the workload and prints the summary. It returns the
// process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	cfg, verbose, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	log, err := newLogger(verbose)
	if err != nil {
		fmt.Fprintf(stderr, "error: building logger: %v\n", err)
		return 1
	}
	defer log.Sync() //nolint:errcheck // stderr sync errors are not actionable

	log.Info("starting workload",
		zap.String("backend", cfg.Backend),
		zap.Int("rooms", cfg.Rooms),
		zap.Int("users", cfg.Users),
		zap.Int("appends", cfg.Appends),
		zap.Int("workers", cfg.Workers),
		zap.Int("runs", cfg.Runs))

	opts := cfg.options(log)
	results := make([]runResult, 0, cfg.Runs)
	for i := range cfg.Runs {
		res := runWorkload(cfg, opts)
		log.Debug("run finished", zap.Int("run", i+1), zap.Duration("elapsed", res.elapsed))
		results = append(results, res)
	}

	if err := printSummary(stdout, results); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// parseArgs builds the config: defaults, then the -config file, then any
// flag that was set explicitly.
func parseArgs(args []string, stderr io.Writer) (Config, bool, error) {
	def := defaultConfig()
	fs := flag.NewFlagSet("roombench", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath = fs.String("config", "", "YAML workload file")
		verbose    = fs.Bool("v", false, "debug logging")
		flagged    = def
	)
	fs.StringVar(&flagged.Backend, "backend", def.Backend, "room map: sharded, xsync, otter, cmap")
	fs.IntVar(&flagged.Rooms, "rooms", def.Rooms, "number of rooms")
	fs.IntVar(&flagged.Users, "users", def.Users, "users per room")
	fs.IntVar(&flagged.Appends, "appends", def.Appends, "number of AddUserInput calls")
	fs.IntVar(&flagged.SampleSize, "sample", def.SampleSize, "bytes per append")
	fs.IntVar(&flagged.Workers, "workers", def.Workers, "goroutines sharing the append phase")
	fs.IntVar(&flagged.Runs, "runs", def.Runs, "repetitions on fresh registries")
	fs.StringVar(&flagged.Rejoin, "rejoin", def.Rejoin, "rejoin policy: reset or keep")
	fs.Float64Var(&flagged.Filter, "filter", def.Filter, "per-room user filter false positive rate, 0 disables")
	fs.IntVar(&flagged.Shards, "shards", def.Shards, "stripes for the sharded backend")
	if err := fs.Parse(args); err != nil {
		return Config{}, false, err
	}

	cfg := def
	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			return Config{}, false, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = flagged.Backend
		case "rooms":
			cfg.Rooms = flagged.Rooms
		case "users":
			cfg.Users = flagged.Users
		case "appends":
			cfg.Appends = flagged.Appends
		case "sample":
			cfg.SampleSize = flagged.SampleSize
		case "workers":
			cfg.Workers = flagged.Workers
		case "runs":
			cfg.Runs = flagged.Runs
		case "rejoin":
			cfg.Rejoin = flagged.Rejoin
		case "filter":
			cfg.Filter = flagged.Filter
		case "shards":
			cfg.Shards = flagged.Shards
		}
	})

	if err := cfg.validate(); err != nil {
		return Config{}, false, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, *verbose, nil
}

var logLevel = zap.NewAtomicLevelAt(zapcore.WarnLevel)

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		logLevel.SetLevel(zapcore.DebugLevel)
		zc := zap.NewDevelopmentConfig()
		zc.Level = logLevel
		return zc.Build()
	}
	zc := zap.NewProductionConfig()
	zc.Level = logLevel
	return zc.Build()
}

// printSummary prints the last run's totals and, for more than one run, the
// spread of elapsed times.
func printSummary(w io.Writer, results []runResult) error {
	if len(results) == 0 {
		return nil
	}
	last := results[len(results)-1]
	st := last.stats

	fmt.Fprintf(w, "Time taken: %v\n", last.elapsed)
	fmt.Fprintf(w, "Total rooms: %s\n", humanize.Comma(int64(st.Rooms)))
	fmt.Fprintf(w, "Total users: %s\n", humanize.Comma(int64(st.Users)))
	fmt.Fprintf(w, "Total inputs capacity: %s (%s)\n", humanize.Comma(int64(st.InputCapacity)), humanize.IBytes(uint64(st.InputCapacity)))
	fmt.Fprintf(w, "Total inputs length:   %s (%s)\n", humanize.Comma(int64(st.InputLength)), humanize.IBytes(uint64(st.InputLength)))

	if len(results) < 2 {
		return nil
	}

	data := make(stats.Float64Data, len(results))
	for i, r := range results {
		data[i] = float64(r.elapsed)
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return fmt.Errorf("mean: %w", err)
	}
	median, err := stats.Median(data)
	if err != nil {
		return fmt.Errorf("median: %w", err)
	}
	stddev, err := stats.StandardDeviation(data)
	if err != nil {
		return fmt.Errorf("stddev: %w", err)
	}
	lo, err := stats.Min(data)
	if err != nil {
		return fmt.Errorf("min: %w", err)
	}
	hi, err := stats.Max(data)
	if err != nil {
		return fmt.Errorf("max: %w", err)
	}

	fmt.Fprintf(w, "\nRuns: %d\n", len(results))
	fmt.Fprintf(w, "Mean: %v  Median: %v  Stddev: %v\n", dur(mean), dur(median), dur(stddev))
	fmt.Fprintf(w, "Min: %v  Max: %v\n", dur(lo), dur(hi))
	return nil
}

func dur(ns float64) time.Duration {
	return time.Duration(ns).Round(time.Microsecond)
}
