package main

import (
	"sync"
	"time"

	"github.com/codeGROOVE-dev/roomreg"
)

type runResult struct {
	elapsed time.Duration
	stats   roomreg.Stats
}

// sample returns the bytes appended on every call: 1, 2, ..., n.
func sample(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i + 1)
	}
	return b
}

// runWorkload joins every (room, user) pair, then appends input round-robin.
// Only the join and append phases are timed.
func runWorkload(cfg Config, opts []roomreg.Option) runResult {
	reg := roomreg.New(opts...)
	in := sample(cfg.SampleSize)

	start := time.Now()
	for room := range cfg.Rooms {
		for u := range cfg.Users {
			reg.JoinRoom(room, u)
		}
	}
	appendInputs(reg, cfg, in)
	elapsed := time.Since(start)

	return runResult{elapsed: elapsed, stats: reg.Stats()}
}

// appendInputs sends append i to (i % rooms, i % users). With more than one
// worker the index range is split into contiguous chunks.
func appendInputs(reg *roomreg.Registry, cfg Config, in []byte) {
	if cfg.Workers <= 1 {
		for i := range cfg.Appends {
			reg.AddUserInput(i%cfg.Rooms, i%cfg.Users, in)
		}
		return
	}

	chunk := (cfg.Appends + cfg.Workers - 1) / cfg.Workers
	var wg sync.WaitGroup
	for w := range cfg.Workers {
		lo := w * chunk
		hi := min(lo+chunk, cfg.Appends)
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				reg.AddUserInput(i%cfg.Rooms, i%cfg.Users, in)
			}
		}()
	}
	wg.Wait()
}
