// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runstat

import (
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/benchlab/sparkperf/execstats"
)

func benchRow(execID int64, desc string, totalMS, runMS int64, cpuMS float64) execstats.AggregateRow {
	return execstats.AggregateRow{
		ExecutionID:   execID,
		Description:   desc,
		MakespanMS:    totalMS,
		ExecutorRunMS: runMS,
		ExecutorCPUMS: cpuMS,
	}
}

func writeRun(t *testing.T, dir, name string, rows []execstats.AggregateRow) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := execstats.WriteTable(path, rows); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRuns(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeRun(t, dir, "jdk8-1.csv", []execstats.AggregateRow{
			// Execution 7 is the last iteration of q1; execution 0
			// is its warmup and must lose regardless of row order.
			benchRow(7, "benchmark q1-v2.4", 1000, 500, 250),
			benchRow(0, "benchmark q1-v2.4", 9999, 1, 1),
			benchRow(3, "spark warmup", 50, 0, 0),
			benchRow(8, "benchmark q2-v2.4", 2000, 800, 400),
		}),
		writeRun(t, dir, "jdk8-2.csv", []execstats.AggregateRow{
			benchRow(2, "benchmark q1-v2.4", 3000, 700, 350),
		}),
		writeRun(t, dir, "jdk17-1.csv", []execstats.AggregateRow{
			benchRow(1, "benchmark q1-v2.4", 500, 200, 100),
		}),
	}

	c, err := LoadRuns(paths)
	if err != nil {
		t.Fatal(err)
	}
	wantStats := map[string]map[string]QueryStats{
		"jdk8": {
			"q1": {MakespanMS: 2000, ExecutorRunMS: 600, ExecutorCPUMS: 300},
			"q2": {MakespanMS: 2000, ExecutorRunMS: 800, ExecutorCPUMS: 400},
		},
		"jdk17": {
			"q1": {MakespanMS: 500, ExecutorRunMS: 200, ExecutorCPUMS: 100},
		},
	}
	if !reflect.DeepEqual(c.Stats, wantStats) {
		t.Errorf("Stats = %+v, want %+v", c.Stats, wantStats)
	}
	wantRuns := map[string]int{"jdk8": 2, "jdk17": 1}
	if !reflect.DeepEqual(c.Runs, wantRuns) {
		t.Errorf("Runs = %v, want %v", c.Runs, wantRuns)
	}
	wantOrder := []string{"jdk8", "jdk17"}
	if !reflect.DeepEqual(c.Order, wantOrder) {
		t.Errorf("Order = %v, want %v", c.Order, wantOrder)
	}
}

func TestLoadRunsPctAverage(t *testing.T) {
	dir := t.TempDir()
	withPct := benchRow(0, "benchmark q1-v2.4", 100, 50, 25)
	withPct.CPUvsWallPct = 50
	noPct := benchRow(0, "benchmark q1-v2.4", 300, 0, 0)
	noPct.CPUvsWallPct = math.NaN()
	paths := []string{
		writeRun(t, dir, "jdk8-1.csv", []execstats.AggregateRow{withPct}),
		writeRun(t, dir, "jdk8-2.csv", []execstats.AggregateRow{noPct}),
	}

	c, err := LoadRuns(paths)
	if err != nil {
		t.Fatal(err)
	}
	got := c.Stats["jdk8"]["q1"]
	if got.MakespanMS != 200 {
		t.Errorf("MakespanMS = %v, want 200", got.MakespanMS)
	}
	// The run with no executor time has no CPU ratio; it stays out
	// of the mean instead of dragging it toward zero.
	if got.CPUvsWallPct != 50 {
		t.Errorf("CPUvsWallPct = %v, want 50", got.CPUvsWallPct)
	}
}

func TestLoadRunsBadName(t *testing.T) {
	dir := t.TempDir()
	path := writeRun(t, dir, "plain.csv", []execstats.AggregateRow{
		benchRow(0, "benchmark q1-v2.4", 100, 50, 25),
	})
	if _, err := LoadRuns([]string{path}); err == nil {
		t.Error("LoadRuns succeeded on a file with no run number")
	}
}

func TestLoadRunsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jdk8-1.csv")
	if _, err := LoadRuns([]string{path}); err == nil {
		t.Error("LoadRuns succeeded on a missing file")
	}
}
