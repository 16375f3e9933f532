//nolint:errcheck,thelper // benchmark code - errors not critical for performance measurement
package benchmarks

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/roomreg"
)

// =============================================================================
// Full Benchmark Suite
// =============================================================================

// TestBenchmarkSuite runs the full comparison and prints markdown tables.
// Run with: go test -run=TestBenchmarkSuite -v
func TestBenchmarkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping benchmark suite in short mode")
	}

	fmt.Println()
	fmt.Println("roomreg benchmark bake-off")
	fmt.Println()

	printTestHeader("TestJoin", "Join Throughput (1 thread)")
	runJoinBenchmark()

	printTestHeader("TestLatency", "Single-Threaded Latency")
	runPerformanceBenchmark()

	printTestHeader("TestMixed", "Mixed Join/Append Throughput (1 thread)")
	runConcurrentBenchmarkForThreads(1)

	printTestHeader("TestMixed4Threads", "Mixed Join/Append Throughput (4 threads)")
	runConcurrentBenchmarkForThreads(4)

	printTestHeader("TestMixed8Threads", "Mixed Join/Append Throughput (8 threads)")
	runConcurrentBenchmarkForThreads(8)

	printTestHeader("TestMixed16Threads", "Mixed Join/Append Throughput (16 threads)")
	runConcurrentBenchmarkForThreads(16)
}

func printTestHeader(testName, description string) {
	fmt.Printf(">>> %s: %s (go test -run=%s -v)\n", testName, description, testName)
}

// =============================================================================
// Correctness
// =============================================================================

func TestNewUnknownContender(t *testing.T) {
	if _, err := New("dashmap", 1, 1); err == nil {
		t.Fatal("New(dashmap) succeeded, want error")
	}
}

// TestContendersKeepEveryUser checks that exact contenders keep every join
// under concurrent load; lossy ones only have to not lose everything.
func TestContendersKeepEveryUser(t *testing.T) {
	const rooms, users = 17, 31
	sample := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	for _, name := range Names {
		t.Run(name, func(t *testing.T) {
			c := MustNew(name, rooms, users)
			if c.Name() != name {
				t.Errorf("Name() = %q, want %q", c.Name(), name)
			}

			var wg sync.WaitGroup
			for w := range 4 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for room := w; room < rooms; room += 4 {
						for u := range users {
							c.Join(room, u)
						}
					}
				}()
			}
			wg.Wait()
			for i := range rooms * users * 3 {
				c.AddInput(i%rooms, i%users, sample)
			}

			got := c.Users()
			switch {
			case c.Exact() && got != rooms*users:
				t.Errorf("Users() = %d, want %d", got, rooms*users)
			case got == 0:
				t.Errorf("Users() = 0, every join was lost")
			}
		})
	}
}

func TestRegistryContendersAppend(t *testing.T) {
	for _, b := range roomreg.Backends() {
		t.Run(b.String(), func(t *testing.T) {
			c := MustNew(b.String(), 4, 4).(*registryContender) //nolint:forcetypeassert // registry names build registryContender
			c.Join(1, 2)
			c.AddInput(1, 2, []byte("ab"))
			c.AddInput(1, 2, []byte("cd"))
			c.AddInput(3, 3, []byte("lost"))

			got, ok := c.Input(1, 2)
			if !ok || !bytes.Equal(got, []byte("abcd")) {
				t.Errorf("Input(1, 2) = %q, %v; want \"abcd\", true", got, ok)
			}
			if c.HasRoom(3) {
				t.Error("AddInput created room 3")
			}
		})
	}
}

// =============================================================================
// Exported Benchmarks (for go test -bench=.)
// =============================================================================

func BenchmarkShardedAppend(b *testing.B)   { benchAppend(b, "sharded") }
func BenchmarkXsyncAppend(b *testing.B)     { benchAppend(b, "xsync") }
func BenchmarkOtterAppend(b *testing.B)     { benchAppend(b, "otter") }
func BenchmarkCmapAppend(b *testing.B)      { benchAppend(b, "cmap") }
func BenchmarkBaselineAppend(b *testing.B)  { benchAppend(b, "baseline") }
func BenchmarkLRUAppend(b *testing.B)       { benchAppend(b, "lru") }
func BenchmarkRistrettoAppend(b *testing.B) { benchAppend(b, "ristretto") }
func BenchmarkTinyLFUAppend(b *testing.B)   { benchAppend(b, "tinylfu") }
func BenchmarkShardedJoin(b *testing.B)     { benchJoin(b, "sharded") }
func BenchmarkXsyncJoin(b *testing.B)       { benchJoin(b, "xsync") }
func BenchmarkOtterJoin(b *testing.B)       { benchJoin(b, "otter") }
func BenchmarkCmapJoin(b *testing.B)        { benchJoin(b, "cmap") }
func BenchmarkBaselineJoin(b *testing.B)    { benchJoin(b, "baseline") }

// Parallel benchmarks - use b.RunParallel which handles goroutine management and counting.
// Run with: go test -bench=BenchmarkParallel -cpu=1,4,8,16

func BenchmarkParallelShardedAppend(b *testing.B)  { benchParallelAppend(b, "sharded") }
func BenchmarkParallelXsyncAppend(b *testing.B)    { benchParallelAppend(b, "xsync") }
func BenchmarkParallelOtterAppend(b *testing.B)    { benchParallelAppend(b, "otter") }
func BenchmarkParallelCmapAppend(b *testing.B)     { benchParallelAppend(b, "cmap") }
func BenchmarkParallelBaselineAppend(b *testing.B) { benchParallelAppend(b, "baseline") }
func BenchmarkParallelLRUAppend(b *testing.B)      { benchParallelAppend(b, "lru") }

// =============================================================================
// Formatting Helpers
// =============================================================================

func formatPercent(pct float64) string {
	absPct := pct
	if absPct < 0 {
		absPct = -absPct
	}
	if absPct < 0.1 {
		return fmt.Sprintf("%.3f%%", pct)
	}
	if absPct < 1 {
		return fmt.Sprintf("%.2f%%", pct)
	}
	if absPct < 10 {
		return fmt.Sprintf("%.1f%%", pct)
	}
	return fmt.Sprintf("%.0f%%", pct)
}

func formatName(name string) string {
	return fmt.Sprintf("%-13s", name)
}

// reference is the contender every summary line is measured against.
const reference = "sharded"

// =============================================================================
// Workload
// =============================================================================

const (
	suiteRooms = 977
	suiteUsers = 173
)

var sampleInput = []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

// prejoined returns the named contender with every (room, user) joined.
func prejoined(name string) Contender {
	c := MustNew(name, suiteRooms, suiteUsers)
	for room := range suiteRooms {
		for u := range suiteUsers {
			c.Join(room, u)
		}
	}
	return c
}

// =============================================================================
// Join Throughput
// =============================================================================

type joinResult struct {
	name string
	qps  float64
}

func runJoinBenchmark() {
	results := make([]joinResult, 0, len(Names))
	for _, name := range Names {
		c := MustNew(name, suiteRooms, suiteUsers)
		start := time.Now()
		for room := range suiteRooms {
			for u := range suiteUsers {
				c.Join(room, u)
			}
		}
		elapsed := time.Since(start)
		results = append(results, joinResult{name: name, qps: float64(suiteRooms*suiteUsers) / elapsed.Seconds()})
	}

	for i := range len(results) - 1 {
		for j := i + 1; j < len(results); j++ {
			if results[j].qps > results[i].qps {
				results[i], results[j] = results[j], results[i]
			}
		}
	}

	fmt.Println()
	fmt.Printf("### Join Throughput (%d rooms x %d users, fresh contender)\n", suiteRooms, suiteUsers)
	fmt.Println()
	fmt.Println("| Contender     | Joins/s    |")
	fmt.Println("|---------------|------------|")
	for _, r := range results {
		fmt.Printf("| %s | %7.2fM   |\n", formatName(r.name), r.qps/1e6)
	}
	fmt.Println()

	qps := make([]concurrentResult, len(results))
	for i, r := range results {
		qps[i] = concurrentResult(r)
	}
	printThroughputSummary(qps)
}

// =============================================================================
// Latency Implementation
// =============================================================================

type perfResult struct {
	name        string
	appendNs    float64
	joinNs      float64
	appendB     int64
	joinB       int64
	appendAlloc int64
	joinAlloc   int64
}

func runPerformanceBenchmark() {
	results := make([]perfResult, 0, len(Names))
	for _, name := range Names {
		// freecache rewrites the whole buffer per append; b.N appends would be quadratic.
		if name == "freecache" {
			continue
		}
		results = append(results, measurePerf(name))
	}

	for i := range len(results) - 1 {
		for j := i + 1; j < len(results); j++ {
			if results[j].appendNs < results[i].appendNs {
				results[i], results[j] = results[j], results[i]
			}
		}
	}

	fmt.Println()
	fmt.Println("### Single-Threaded Latency (sorted by Append)")
	fmt.Println()
	fmt.Println("| Contender     | Append ns/op | Append B/op | Append allocs | Join ns/op | Join B/op | Join allocs |")
	fmt.Println("|---------------|--------------|-------------|---------------|------------|-----------|-------------|")

	for _, r := range results {
		fmt.Printf("| %s | %12.1f | %11d | %13d | %10.1f | %9d | %11d |\n",
			formatName(r.name),
			r.appendNs, r.appendB, r.appendAlloc,
			r.joinNs, r.joinB, r.joinAlloc)
	}

	fmt.Println()
	printLatencySummary(results, "Append", func(r perfResult) float64 { return r.appendNs })
	printLatencySummary(results, "Join", func(r perfResult) float64 { return r.joinNs })
	fmt.Println()
}

func printLatencySummary(results []perfResult, metric string, extract func(perfResult) float64) {
	sorted := make([]perfResult, len(results))
	copy(sorted, results)
	for i := range len(sorted) - 1 {
		for j := i + 1; j < len(sorted); j++ {
			if extract(sorted[j]) < extract(sorted[i]) {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}

	refIdx := -1
	for i, r := range sorted {
		if r.name == reference {
			refIdx = i
			break
		}
	}
	if refIdx < 0 || len(sorted) < 2 {
		return
	}

	if refIdx == 0 {
		pct := (extract(sorted[1]) - extract(sorted[0])) / extract(sorted[0]) * 100
		fmt.Printf("- 🔥 %s: %s better than next best (%s)\n", metric, formatPercent(pct), sorted[1].name)
	} else {
		pct := (extract(sorted[refIdx]) - extract(sorted[0])) / extract(sorted[0]) * 100
		fmt.Printf("- 💧 %s: %s worse than best (%s)\n", metric, formatPercent(pct), sorted[0].name)
	}
}

func measurePerf(name string) perfResult {
	appendResult := testing.Benchmark(func(b *testing.B) { benchAppend(b, name) })
	joinResult := testing.Benchmark(func(b *testing.B) { benchJoin(b, name) })
	return perfResult{
		name:        name,
		appendNs:    float64(appendResult.NsPerOp()),
		joinNs:      float64(joinResult.NsPerOp()),
		appendB:     appendResult.AllocedBytesPerOp(),
		joinB:       joinResult.AllocedBytesPerOp(),
		appendAlloc: appendResult.AllocsPerOp(),
		joinAlloc:   joinResult.AllocsPerOp(),
	}
}

func benchAppend(b *testing.B, name string) {
	c := prejoined(name)
	b.ResetTimer()
	for i := range b.N {
		c.AddInput(i%suiteRooms, i%suiteUsers, sampleInput)
	}
}

// benchJoin measures rejoins: rooms exist, every join replaces a user record.
func benchJoin(b *testing.B, name string) {
	c := prejoined(name)
	b.ResetTimer()
	for i := range b.N {
		c.Join(i%suiteRooms, i%suiteUsers)
	}
}

func benchParallelAppend(b *testing.B, name string) {
	c := prejoined(name)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			c.AddInput(i%suiteRooms, i%suiteUsers, sampleInput)
			i++
		}
	})
}

// =============================================================================
// Concurrent Throughput Implementation
// =============================================================================

const concurrentDuration = 2 * time.Second

type concurrentResult struct {
	name string
	qps  float64 // total QPS (75% appends + 25% rejoins)
}

func runConcurrentBenchmarkForThreads(threads int) {
	results := make([]concurrentResult, len(Names))
	for i, name := range Names {
		results[i] = concurrentResult{
			name: name,
			qps:  measureMixedQPS(name, threads),
		}
	}

	// Sort by QPS descending
	for i := range len(results) - 1 {
		for j := i + 1; j < len(results); j++ {
			if results[j].qps > results[i].qps {
				results[i], results[j] = results[j], results[i]
			}
		}
	}

	fmt.Println()
	if threads == 1 {
		fmt.Println("### Single-Threaded Throughput (75% append / 25% rejoin)")
	} else {
		fmt.Printf("### Concurrent Throughput (75%% append / 25%% rejoin): %d threads\n", threads)
	}
	fmt.Println()
	fmt.Println("| Contender     | QPS        |")
	fmt.Println("|---------------|------------|")

	for _, r := range results {
		fmt.Printf("| %s | %7.2fM   |\n", formatName(r.name), r.qps/1e6)
	}

	fmt.Println()
	printThroughputSummary(results)
}

func printThroughputSummary(results []concurrentResult) {
	// Results are already sorted by qps descending
	refIdx := -1
	for i, r := range results {
		if r.name == reference {
			refIdx = i
			break
		}
	}
	if refIdx < 0 || len(results) < 2 {
		return
	}

	if refIdx == 0 {
		pct := (results[0].qps - results[1].qps) / results[1].qps * 100
		fmt.Printf("- 🔥 Throughput: %s faster than next best (%s)\n\n", formatPercent(pct), results[1].name)
	} else {
		pct := (results[0].qps - results[refIdx].qps) / results[refIdx].qps * 100
		fmt.Printf("- 💧 Throughput: %s slower than best (%s)\n\n", formatPercent(pct), results[0].name)
	}
}

// Batch size for counter updates - reduces atomic contention overhead.
// Also controls how often we check the stop flag (every opsBatchSize ops).
const opsBatchSize = 1000

// measureMixedQPS runs threads goroutines against one contender for
// concurrentDuration. Each thread starts at a different offset so threads
// spread over rooms instead of marching in lockstep.
func measureMixedQPS(name string, threads int) float64 {
	var ops atomic.Int64
	var stop atomic.Bool
	var wg sync.WaitGroup

	c := prejoined(name)
	for t := range threads {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := t * 7919; ; {
				for range opsBatchSize {
					if i%4 == 0 { // 25% rejoins, which also keep buffers bounded
						c.Join(i%suiteRooms, i%suiteUsers)
					} else { // 75% appends
						c.AddInput(i%suiteRooms, i%suiteUsers, sampleInput)
					}
					i++
				}
				ops.Add(opsBatchSize)
				if stop.Load() {
					return
				}
			}
		}()
	}

	start := time.Now()
	time.Sleep(concurrentDuration)
	stop.Store(true)
	wg.Wait()
	return float64(ops.Load()) / time.Since(start).Seconds()
}
