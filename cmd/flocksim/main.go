// Command flocksim replays a memory access trace through an llc.Cache
// driven by either the Hawkeye or the Mockingjay replacement engine, and
// prints the resulting cache and DRAM statistics. It is adapted from
// cmd/m2sim/main.go's flag-based driver shape, generalized from "load an
// ELF and run the pipeline" to "load a trace and run the cache".
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/arcsim/flock/dram"
	"github.com/arcsim/flock/engine"
	"github.com/arcsim/flock/hawkeye"
	"github.com/arcsim/flock/llc"
	"github.com/arcsim/flock/mockingjay"
	"github.com/arcsim/flock/stats"
)

var (
	policy     = flag.String("policy", "hawkeye", "replacement policy: hawkeye or mockingjay")
	configPath = flag.String("config", "", "path to an engine.Config JSON file (defaults to engine.DefaultConfig())")
	verbose    = flag.Bool("v", false, "print one line per trace access")
)

// traceEntry is one line of the trace file:
//
//	<core> <pc-hex> <r|w> <addr-hex> <size> <inst-count> <cycles>
//
// inst-count and cycles are the retired-instruction and cycle counters at
// the time of this access, used to feed engine.Request.InstCount/NumCycles
// for CPI and miss-rate tracking.
type traceEntry struct {
	core      int
	pc        uint64
	write     bool
	addr      uint64
	size      int
	instCount uint64
	cycles    uint64
}

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: flocksim [options] <trace-file>\n\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("flocksim: %v", err)
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		log.Fatalf("flocksim: %v", err)
	}

	backing := dram.New(dram.DefaultConfig())
	cache := llc.New(llc.Config{
		NumCacheSets:   cfg.NumCacheSets,
		NumCacheWays:   cfg.NumCacheWays,
		CacheBlockSize: cfg.CacheBlockSize,
		HitLatency:     4,
	}, eng, backing)

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("flocksim: open trace: %v", err)
	}
	defer f.Close()

	n, err := replay(f, cache, backing)
	if err != nil {
		log.Fatalf("flocksim: %v", err)
	}

	printReport(n, cache, backing)
}

func loadConfig() (*engine.Config, error) {
	if *configPath == "" {
		return engine.DefaultConfig(), nil
	}
	return engine.LoadConfig(*configPath)
}

func buildEngine(cfg *engine.Config) (engine.Engine, error) {
	switch *policy {
	case "hawkeye":
		return hawkeye.New(cfg, stats.New()), nil
	case "mockingjay":
		return mockingjay.New(cfg, stats.New()), nil
	default:
		return nil, fmt.Errorf("unknown policy %q (want hawkeye or mockingjay)", *policy)
	}
}

func replay(f *os.File, cache *llc.Cache, backing *dram.Model) (int, error) {
	scanner := bufio.NewScanner(f)
	n := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry, err := parseTraceLine(line)
		if err != nil {
			return n, fmt.Errorf("line %d: %w", lineNo, err)
		}

		req := &engine.Request{
			HasPC:     true,
			PC:        entry.pc,
			ContextID: entry.core,
			HasCPI:    true,
			InstCount: entry.instCount,
			NumCycles: entry.cycles,
		}
		if d := backing.Stats(); d.Ready {
			req.HasDRAMStats = true
			req.DRAMStats = engine.DRAMStats{
				AccessCount: d.AccessCount,
				RowHitCount: d.RowHitCount,
				AvgLatency:  d.AvgLatency,
				Ready:       d.Ready,
			}
		}

		var res llc.AccessResult
		if entry.write {
			res = cache.Write(req, entry.addr, entry.size, 0)
		} else {
			res = cache.Read(req, entry.addr, entry.size)
		}

		if *verbose {
			fmt.Printf("core=%d pc=%#x addr=%#x write=%v hit=%v bypassed=%v\n",
				entry.core, entry.pc, entry.addr, entry.write, res.Hit, res.Bypassed)
		}
		n++
	}
	return n, scanner.Err()
}

func parseTraceLine(line string) (traceEntry, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return traceEntry{}, fmt.Errorf("want at least 5 fields, got %d", len(fields))
	}

	core, err := strconv.Atoi(fields[0])
	if err != nil {
		return traceEntry{}, fmt.Errorf("core: %w", err)
	}
	pc, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 64)
	if err != nil {
		return traceEntry{}, fmt.Errorf("pc: %w", err)
	}

	var write bool
	switch strings.ToLower(fields[2]) {
	case "r":
		write = false
	case "w":
		write = true
	default:
		return traceEntry{}, fmt.Errorf("rw: want r or w, got %q", fields[2])
	}

	addr, err := strconv.ParseUint(strings.TrimPrefix(fields[3], "0x"), 16, 64)
	if err != nil {
		return traceEntry{}, fmt.Errorf("addr: %w", err)
	}
	size, err := strconv.Atoi(fields[4])
	if err != nil {
		return traceEntry{}, fmt.Errorf("size: %w", err)
	}

	entry := traceEntry{core: core, pc: pc, write: write, addr: addr, size: size}
	if len(fields) > 5 {
		entry.instCount, err = strconv.ParseUint(fields[5], 10, 64)
		if err != nil {
			return traceEntry{}, fmt.Errorf("inst-count: %w", err)
		}
	}
	if len(fields) > 6 {
		entry.cycles, err = strconv.ParseUint(fields[6], 10, 64)
		if err != nil {
			return traceEntry{}, fmt.Errorf("cycles: %w", err)
		}
	}
	return entry, nil
}

func printReport(n int, cache *llc.Cache, backing *dram.Model) {
	s := cache.Stats()
	fmt.Printf("accesses:  %d\n", n)
	fmt.Printf("reads:     %d\n", s.Reads)
	fmt.Printf("writes:    %d\n", s.Writes)
	fmt.Printf("hits:      %d\n", s.Hits)
	fmt.Printf("misses:    %d\n", s.Misses)
	fmt.Printf("bypassed:  %d\n", s.Bypassed)
	fmt.Printf("evictions: %d\n", s.Evictions)
	if s.Hits+s.Misses > 0 {
		fmt.Printf("hit rate:  %.4f\n", float64(s.Hits)/float64(s.Hits+s.Misses))
	}

	d := backing.Stats()
	fmt.Printf("dram accesses: %d\n", d.AccessCount)
	rowHitRate := 0.0
	if d.AccessCount > 0 {
		rowHitRate = float64(d.RowHitCount) / float64(d.AccessCount)
	}
	fmt.Printf("dram row-hit rate: %.4f\n", rowHitRate)
}
