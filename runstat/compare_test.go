// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runstat

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/benchlab/sparkperf/internal/diff"
)

func testCollation() *Collation {
	return &Collation{
		Stats: map[string]map[string]QueryStats{
			"base": {
				"q1": {MakespanMS: 1000, ExecutorRunMS: 400, ExecutorCPUMS: 200},
				"q2": {MakespanMS: 2000, ExecutorRunMS: 900, ExecutorCPUMS: 450},
				"q3": {MakespanMS: 100, ExecutorRunMS: 40, ExecutorCPUMS: 20},
			},
			"fast": {
				"q1": {MakespanMS: 500, ExecutorRunMS: 250, ExecutorCPUMS: 125},
				"q2": {MakespanMS: 4000, ExecutorRunMS: 1800, ExecutorCPUMS: 900},
				"q4": {MakespanMS: 1, ExecutorRunMS: 1, ExecutorCPUMS: 1},
			},
		},
		Runs:  map[string]int{"base": 1, "fast": 1},
		Order: []string{"base", "fast"},
	}
}

func TestCompare(t *testing.T) {
	cmp, err := Compare(testCollation(), "base", "fast", 0)
	if err != nil {
		t.Fatal(err)
	}
	if cmp.Baseline != "base" || cmp.Other != "fast" {
		t.Errorf("comparison names = %s vs %s, want base vs fast", cmp.Baseline, cmp.Other)
	}
	// q3 and q4 have no counterpart; q2 regressed (0.5) and sorts
	// before q1 (2.0).
	var queries []string
	var speedups []float64
	for _, r := range cmp.Rows {
		queries = append(queries, r.Query)
		speedups = append(speedups, r.Speedup())
	}
	if want := []string{"q2", "q1"}; !reflect.DeepEqual(queries, want) {
		t.Errorf("queries = %v, want %v", queries, want)
	}
	if want := []float64{0.5, 2}; !reflect.DeepEqual(speedups, want) {
		t.Errorf("speedups = %v, want %v", speedups, want)
	}
}

func TestCompareLongerThan(t *testing.T) {
	cmp, err := Compare(testCollation(), "base", "fast", 1500)
	if err != nil {
		t.Fatal(err)
	}
	if len(cmp.Rows) != 1 || cmp.Rows[0].Query != "q2" {
		t.Errorf("rows = %+v, want q2 only", cmp.Rows)
	}

	// Filtering away every overlapping query is not an overlap
	// failure.
	cmp, err = Compare(testCollation(), "base", "fast", 1e9)
	if err != nil {
		t.Fatal(err)
	}
	if len(cmp.Rows) != 0 {
		t.Errorf("rows = %+v, want none", cmp.Rows)
	}
}

func TestCompareNoOverlap(t *testing.T) {
	c := &Collation{
		Stats: map[string]map[string]QueryStats{
			"base":  {"q1": {MakespanMS: 1}, "q2": {MakespanMS: 2}},
			"other": {"q9": {MakespanMS: 9}},
		},
	}
	_, err := Compare(c, "base", "other", 0)
	var noOverlap *NoOverlapError
	if !errors.As(err, &noOverlap) {
		t.Fatalf("Compare error = %v, want NoOverlapError", err)
	}
	if want := []string{"q1", "q2"}; !reflect.DeepEqual(noOverlap.BaselineKeys, want) {
		t.Errorf("BaselineKeys = %v, want %v", noOverlap.BaselineKeys, want)
	}
	if want := []string{"q9"}; !reflect.DeepEqual(noOverlap.OtherKeys, want) {
		t.Errorf("OtherKeys = %v, want %v", noOverlap.OtherKeys, want)
	}
}

func TestWriteCSV(t *testing.T) {
	cmp, err := Compare(testCollation(), "base", "fast", 0)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "base-vs-fast.csv")
	if err := cmp.WriteCSV(path); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := `query,total_time_base,total_time_fast,executor_time_base,executor_time_fast,executor_cpu_time_base,executor_cpu_time_fast
q1,1000,500,400,250,200,125
q2,2000,4000,900,1800,450,900
`
	if d := diff.Diff(string(got), want); d != "" {
		t.Errorf("table mismatch:\n%s", d)
	}
}
