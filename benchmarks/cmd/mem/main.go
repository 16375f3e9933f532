// Package main measures the memory held by one contender after the
// join/append workload. Run one process per contender so heaps do not mix.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/codeGROOVE-dev/roomreg/benchmarks"
)

var keepAlive any //nolint:unused // prevents compiler from optimizing away allocations in benchmarks

func main() {
	name := flag.String("name", "sharded", "contender name")
	rooms := flag.Int("rooms", 977, "rooms")
	users := flag.Int("users", 173, "users per room")
	appends := flag.Int("appends", 1_000_000, "AddInput calls")
	sampleSize := flag.Int("sample", 10, "bytes per append")
	flag.Parse()

	//nolint:revive // explicit GC required for accurate memory benchmarking
	runtime.GC()
	debug.FreeOSMemory()

	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	c, err := benchmarks.New(*name, *rooms, *users)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	sample := make([]byte, *sampleSize)
	for i := range sample {
		sample[i] = byte(i + 1)
	}
	for room := range *rooms {
		for u := range *users {
			c.Join(room, u)
		}
	}
	for i := range *appends {
		c.AddInput(i%*rooms, i%*users, sample)
	}

	keepAlive = c

	//nolint:revive // explicit GC required for accurate memory benchmarking
	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	//nolint:revive // explicit GC required for accurate memory benchmarking
	runtime.GC()
	debug.FreeOSMemory()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	bytes := int64(mem.Alloc) - int64(before.Alloc)
	fmt.Printf(`{"name":%q, "users":%d, "bytes":%d}`+"\n", c.Name(), c.Users(), bytes)
}
