// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Sparkstat turns Spark SQL event logs into per-query CSV tables.
//
// Usage:
//
//	sparkstat [-o file] [-j jobs] eventlog...
//
// Each argument is one event log: a plain JSON-lines file as the Spark
// history server writes it, the same gzip-compressed, or a zip archive
// holding any number of either. Every SQL execution found becomes one
// row of the output table, aggregating the metrics of every task that
// ran on the execution's behalf. Rows are ordered by execution ID,
// then by source.
//
// The table columns are:
//
//	executionId            numeric ID of the SQL execution
//	description            query description from the start event
//	num_jobs               jobs the execution started
//	num_tasks              finished tasks attributed to it
//	makespan_ms            execution start to end, wall clock
//	task_slot_ms           total task wall time
//	executor_run_ms        total executor run time
//	executor_cpu_ms        total executor CPU time
//	cpu_vs_wall_pct        CPU time as a percentage of run time
//	deserialize_ms         total task deserialization time
//	result_serialize_ms    total result serialization time
//	gc_ms                  total JVM garbage collection time
//	shuffle_fetch_wait_ms  total shuffle fetch wait time
//	shuffle_write_time_ms  total shuffle write time
//	input_bytes            bytes read from input sources
//	output_bytes           bytes written to output sinks
//	shuffle_read_bytes     remote plus local shuffle bytes read
//	shuffle_write_bytes    shuffle bytes written
//
// Logs that cannot be opened or decompressed are fatal. Malformed
// lines, truncated tails, and events that cannot be attributed to an
// SQL execution are tolerated, counted, and reported on standard
// error.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/dustin/go-humanize"

	"github.com/benchlab/sparkperf/execstats"
)

var exit = os.Exit // replaced during testing

func usage() {
	fmt.Fprintf(os.Stderr, "usage: sparkstat [-o file] [-j jobs] eventlog...\n")
	fmt.Fprintf(os.Stderr, "options:\n")
	flag.PrintDefaults()
	exit(2)
}

var (
	flagOut  = flag.String("o", "", "write the table to `file` instead of standard output")
	flagJobs = flag.Int("j", runtime.GOMAXPROCS(-1), "analyze up to `jobs` logs in parallel")
)

func main() {
	log.SetPrefix("sparkstat: ")
	log.SetFlags(0)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
	}
	if err := sparkstat(os.Stdout, os.Stderr, flag.Args(), *flagOut, *flagJobs); err != nil {
		log.Fatal(err)
	}
}

// sparkstat analyzes the logs at paths and writes the resulting table
// to out, or to w when out is empty. Data-quality warnings go to wErr.
func sparkstat(w, wErr io.Writer, paths []string, out string, jobs int) error {
	rows, diag, err := execstats.AnalyzePaths(paths, jobs)
	if err != nil {
		return err
	}
	report(wErr, diag, len(rows))
	if out == "" {
		return execstats.WriteTableTo(w, rows)
	}
	return execstats.WriteTable(out, rows)
}

// report summarizes a run on wErr: one line of totals, then one line
// per nonzero tolerated-problem counter.
func report(w io.Writer, d execstats.Diagnostics, rows int) {
	fmt.Fprintf(w, "sparkstat: %d events from %d logs (%s): %d executions\n",
		d.Events, d.Sources, humanize.IBytes(uint64(d.Bytes)), rows)
	if d.MalformedLines > 0 {
		fmt.Fprintf(w, "sparkstat: warning: %d lines did not parse\n", d.MalformedLines)
	}
	if d.TruncatedLines > 0 {
		fmt.Fprintf(w, "sparkstat: warning: %d lines truncated or over-long\n", d.TruncatedLines)
	}
	if d.Unattached > 0 {
		fmt.Fprintf(w, "sparkstat: warning: %d events with no parent execution\n", d.Unattached)
	}
	if d.LateEvents > 0 {
		fmt.Fprintf(w, "sparkstat: warning: %d events after their execution ended\n", d.LateEvents)
	}
	if d.DuplicateTasks > 0 {
		fmt.Fprintf(w, "sparkstat: warning: %d duplicate task finish events\n", d.DuplicateTasks)
	}
	if d.Incomplete > 0 {
		fmt.Fprintf(w, "sparkstat: warning: %d executions never fully closed\n", d.Incomplete)
	}
	if d.Jobless > 0 {
		fmt.Fprintf(w, "sparkstat: warning: %d executions ran no jobs\n", d.Jobless)
	}
	if rows == 0 {
		fmt.Fprintf(w, "sparkstat: warning: no complete executions found\n")
	}
}
