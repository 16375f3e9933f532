//go:build ignore

// runner.go measures per-contender memory in separate processes and
// validates the registry backends against a budget.
//
// Usage:
//
//	go run benchmarks/runner.go                     # registry backends only
//	go run benchmarks/runner.go -all                # every contender
//	go run benchmarks/runner.go -all -save          # refresh mem_results.json
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// maxBytesPerUser bounds what a registry backend may hold per joined user
// after the default workload, input buffers included.
const maxBytesPerUser = 400

const roomregModule = "github.com/codeGROOVE-dev/roomreg"

var (
	registryBackends = []string{"sharded", "xsync", "otter", "cmap"}
	allContenders    = []string{"sharded", "xsync", "otter", "cmap", "baseline", "lru", "ristretto", "tinylfu", "freecache"}
)

func main() {
	all := flag.Bool("all", false, "measure every contender, not only registry backends")
	save := flag.Bool("save", false, "write results to benchmarks/mem_results.json")
	appends := flag.Int("appends", 1_000_000, "AddInput calls per contender")
	flag.Parse()

	rootDir, err := findRoomregDir()
	if err != nil {
		fatal("finding roomreg directory: %v", err)
	}
	benchmarksDir := filepath.Join(rootDir, "benchmarks")
	resultsPath := filepath.Join(benchmarksDir, "mem_results.json")

	// Load reference results for comparison.
	ref, _ := loadResults(resultsPath)

	names := registryBackends
	if *all {
		names = allContenders
	}
	if filter := os.Getenv("CONTENDERS"); filter != "" {
		names = strings.Split(filter, ",")
	}

	fmt.Printf("Measuring memory for %s...\n\n", strings.Join(names, ", "))
	results := &Results{Appends: *appends}
	for _, name := range names {
		entry, err := runMem(benchmarksDir, name, *appends)
		if err != nil {
			fatal("measuring %s: %v", name, err)
		}
		results.Results = append(results.Results, entry)
	}

	fmt.Println()
	printTable(results)
	if ref != nil && ref.Appends == results.Appends {
		showDeltas(ref, results)
	}

	if err := validateBudget(results); err != nil {
		fatal("%v", err)
	}

	if *save {
		if err := saveResults(resultsPath, results); err != nil {
			fatal("saving results: %v", err)
		}
		fmt.Printf("\nResults saved to %s\n", resultsPath)
	}
}

func findRoomregDir() (string, error) {
	// Look for go.mod with the roomreg module.
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		modPath := filepath.Join(dir, "go.mod")
		if data, err := os.ReadFile(modPath); err == nil {
			if strings.Contains(string(data), "module "+roomregModule+"\n") {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("could not find roomreg root (no go.mod with %s)", roomregModule)
}

// runMem runs cmd/mem in its own process, echoes its output and parses the
// JSON line it prints.
func runMem(dir, name string, appends int) (MemoryEntry, error) {
	cmd := exec.Command("go", "run", "./cmd/mem", "-name", name, "-appends", strconv.Itoa(appends))
	cmd.Dir = dir
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return MemoryEntry{}, err
	}
	if err := cmd.Start(); err != nil {
		return MemoryEntry{}, err
	}

	var entry MemoryEntry
	var found bool
	s := bufio.NewScanner(stdout)
	for s.Scan() {
		line := s.Text()
		fmt.Println(line)
		if strings.HasPrefix(line, "{") {
			if err := json.Unmarshal([]byte(line), &entry); err != nil {
				return MemoryEntry{}, fmt.Errorf("parsing %q: %w", line, err)
			}
			found = true
		}
	}
	if err := s.Err(); err != nil {
		return MemoryEntry{}, fmt.Errorf("reading output: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		return MemoryEntry{}, err
	}
	if !found {
		return MemoryEntry{}, fmt.Errorf("no result line from %s", name)
	}
	if entry.Users > 0 {
		entry.BytesPerUser = int(entry.Bytes / int64(entry.Users))
	}
	return entry, nil
}

// Results is the mem_results.json layout.
type Results struct {
	Appends int           `json:"appends"`
	Results []MemoryEntry `json:"results"`
}

type MemoryEntry struct {
	Name         string `json:"name"`
	Users        int    `json:"users"`
	Bytes        int64  `json:"bytes"`
	BytesPerUser int    `json:"bytesPerUser"`
}

func loadResults(path string) (*Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var results Results
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, err
	}
	return &results, nil
}

func saveResults(path string, res *Results) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644) //nolint:gosec // results file is meant to be committed
}

func printTable(res *Results) {
	sorted := slices.Clone(res.Results)
	slices.SortFunc(sorted, func(a, b MemoryEntry) int { return a.BytesPerUser - b.BytesPerUser })

	fmt.Printf("### Memory after join + %d appends\n\n", res.Appends)
	fmt.Println("| Contender     | Users      | Bytes        | Bytes/user |")
	fmt.Println("|---------------|------------|--------------|------------|")
	for _, e := range sorted {
		fmt.Printf("| %-13s | %10d | %12d | %10d |\n", e.Name, e.Users, e.Bytes, e.BytesPerUser)
	}
	fmt.Println()
}

func showDeltas(ref, curr *Results) {
	fmt.Println("=== Deltas vs Reference ===")
	var any bool

	// Lower is better.
	for _, e := range curr.Results {
		refVal := findMemory(ref.Results, e.Name)
		if refVal == 0 || e.BytesPerUser == 0 {
			continue
		}
		delta := e.BytesPerUser - refVal
		pct := float64(delta) / float64(refVal) * 100
		any = true
		fmt.Printf("  memory/%s: %d → %d bytes/user (%+d, %+.1f%%)\n", e.Name, refVal, e.BytesPerUser, delta, pct)
	}

	if !any {
		fmt.Println("  (no reference data)")
	}
	fmt.Println()
}

func findMemory(results []MemoryEntry, name string) int {
	for _, r := range results {
		if r.Name == name {
			return r.BytesPerUser
		}
	}
	return 0
}

func validateBudget(res *Results) error {
	fmt.Println("=== Memory Validation ===")

	var fails []string
	for _, e := range res.Results {
		if !slices.Contains(registryBackends, e.Name) {
			continue
		}
		status := "✓"
		if e.BytesPerUser > maxBytesPerUser {
			status = "✗"
			fails = append(fails, fmt.Sprintf("%s: %d bytes/user (max %d)", e.Name, e.BytesPerUser, maxBytesPerUser))
		}
		fmt.Printf("  %s %-8s %d bytes/user (max %d)\n", status, e.Name, e.BytesPerUser, maxBytesPerUser)
	}

	if len(fails) > 0 {
		return fmt.Errorf("memory budget exceeded:\n  %s", strings.Join(fails, "\n  "))
	}
	return nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
