// Command chronodb-demo walks the full path from an empty data directory
// to a queryable series: it inserts a batch of points, forces a flush,
// reopens the engine against the same directory, and prints a few
// aggregates. It is glue for demonstration only, not part of the core
// engine.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/chronodb/chronodb"
)

func main() {
	dir, err := os.MkdirTemp("", "chronodb-demo-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	fmt.Println("chronodb demo")
	fmt.Println("=============")
	fmt.Printf("data dir: %s\n\n", dir)

	cfg, err := chronodb.NewConfig(dir)
	if err != nil {
		log.Fatal(err)
	}

	eng, err := chronodb.NewEngine(cfg)
	if err != nil {
		log.Fatal(err)
	}

	series := chronodb.SeriesKey("cpu.usage")
	const n = 1000
	for i := 0; i < n; i++ {
		p := chronodb.DataPoint{Timestamp: int64(1_000_000 + i*60_000), Value: 42.5}
		if err := eng.Insert(series, p); err != nil {
			log.Fatal(err)
		}
	}
	fmt.Printf("inserted %d points at 60s spacing\n", n)

	if err := eng.ForceFlush(); err != nil {
		log.Fatal(err)
	}
	fmt.Println("flushed to disk")

	if err := eng.Shutdown(); err != nil {
		log.Fatal(err)
	}

	// Reopen against the same data_dir to demonstrate persistence.
	eng2, err := chronodb.NewEngine(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer eng2.Shutdown()

	sum, err := eng2.QueryAggregated(series, 0, 1<<62, chronodb.Sum)
	if err != nil {
		log.Fatal(err)
	}
	count, err := eng2.QueryAggregated(series, 0, 1<<62, chronodb.Count)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("\nafter reopening from disk:\n")
	fmt.Printf("  count = %.0f\n", count)
	fmt.Printf("  sum   = %.1f\n", sum)
}
