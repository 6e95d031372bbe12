// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Sparkcompare compares configurations across sparkstat run tables.
//
// Usage:
//
//	sparkcompare [-o dir] [-baseline config] [-longer-than seconds] table.csv...
//
// Each argument is a table written by sparkstat, named
// {config}-{run}.csv: "corretto-3.csv" is run 3 of configuration
// "corretto". Within a run, a query that executed several times is
// represented by its last iteration; across runs of one configuration
// the metrics are averaged.
//
// One configuration is the baseline: by default the configuration of
// the first argument, or the one named with -baseline. Every other
// configuration is joined against it over the queries they share. A
// join with no common queries is fatal. For each pair the output
// directory gets two files:
//
//	{baseline}-vs-{other}.csv             per-query metrics, side by side
//	{baseline}-vs-{other}-total_time.png  speedup S-curve
//
// The chart plots per-query speedup, baseline total time over the
// other configuration's, in ascending order against a reference line
// at 1.0. With -longer-than, queries whose baseline total time is
// below the threshold are left out of both files.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/benchlab/sparkperf/runstat"
)

var exit = os.Exit // replaced during testing

func usage() {
	fmt.Fprintf(os.Stderr, "usage: sparkcompare [-o dir] [-baseline config] [-longer-than seconds] table.csv...\n")
	fmt.Fprintf(os.Stderr, "options:\n")
	flag.PrintDefaults()
	exit(2)
}

var (
	flagOutDir     = flag.String("o", ".", "write comparison files into `dir`")
	flagBaseline   = flag.String("baseline", "", "compare against `config` instead of the first argument's configuration")
	flagLongerThan = flag.Float64("longer-than", 0, "drop queries whose baseline total time is under `seconds`")
)

func main() {
	log.SetPrefix("sparkcompare: ")
	log.SetFlags(0)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 2 {
		flag.Usage()
	}
	if err := sparkcompare(os.Stderr, flag.Args(), *flagOutDir, *flagBaseline, *flagLongerThan); err != nil {
		log.Fatal(err)
	}
}

// sparkcompare collates the run tables at paths and writes one CSV and
// one chart per baseline-vs-other configuration pair into outDir.
// Every pair is joined before anything is written, so a failed join
// leaves no output behind.
func sparkcompare(wErr io.Writer, paths []string, outDir, baseline string, longerThanSec float64) error {
	col, err := runstat.LoadRuns(paths)
	if err != nil {
		return err
	}
	if baseline == "" {
		baseline = col.Order[0]
	} else if _, ok := col.Runs[baseline]; !ok {
		return fmt.Errorf("baseline %s: no run files", baseline)
	}
	var others []string
	for _, config := range col.Order {
		if config != baseline {
			others = append(others, config)
		}
	}
	if len(others) == 0 {
		return fmt.Errorf("need run files for at least two configurations")
	}

	var comparisons []*runstat.Comparison
	for _, other := range others {
		cmp, err := runstat.Compare(col, baseline, other, longerThanSec*1000)
		if err != nil {
			return err
		}
		comparisons = append(comparisons, cmp)
	}

	if err := os.MkdirAll(outDir, 0777); err != nil {
		return err
	}
	for _, cmp := range comparisons {
		stem := filepath.Join(outDir, cmp.Baseline+"-vs-"+cmp.Other)
		if err := cmp.WriteCSV(stem + ".csv"); err != nil {
			return err
		}
		fmt.Fprintf(wErr, "sparkcompare: wrote %s.csv\n", stem)
		if len(cmp.Rows) == 0 {
			fmt.Fprintf(wErr, "sparkcompare: warning: %s vs %s share no queries above the threshold, skipping chart\n",
				cmp.Baseline, cmp.Other)
			continue
		}
		if err := cmp.RenderChart(stem + "-total_time.png"); err != nil {
			return err
		}
		fmt.Fprintf(wErr, "sparkcompare: wrote %s-total_time.png\n", stem)
	}
	return nil
}
