// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runstat

import (
	"encoding/csv"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/google/renameio/v2"
)

// A NoOverlapError reports that two configurations share no query
// keys, so there is nothing to compare. It carries both key sets to
// make naming mismatches easy to spot.
type NoOverlapError struct {
	Baseline     string
	Other        string
	BaselineKeys []string
	OtherKeys    []string
}

func (e *NoOverlapError) Error() string {
	return fmt.Sprintf("no overlapping queries: %s has %v, %s has %v",
		e.Baseline, e.BaselineKeys, e.Other, e.OtherKeys)
}

// A ComparisonRow joins one query across the two configurations of a
// comparison.
type ComparisonRow struct {
	Query    string
	Baseline QueryStats
	Other    QueryStats
}

// Speedup is how many times faster the other configuration ran the
// query: baseline total time over other total time. Values above 1
// favor the other configuration.
func (r ComparisonRow) Speedup() float64 {
	return r.Baseline.MakespanMS / r.Other.MakespanMS
}

// A Comparison joins a baseline configuration against one other
// configuration over their common queries.
type Comparison struct {
	Baseline string
	Other    string
	Rows     []ComparisonRow // ascending by speedup
}

// Compare joins the baseline and other configurations of c over their
// common query keys. Queries whose baseline total time is below
// minBaselineMS are dropped after the join, so a comparison with
// overlap that filters down to nothing is empty, not an error.
func Compare(c *Collation, baseline, other string, minBaselineMS float64) (*Comparison, error) {
	bstats, ostats := c.Stats[baseline], c.Stats[other]
	var rows []ComparisonRow
	for query, bs := range bstats {
		os, ok := ostats[query]
		if !ok {
			continue
		}
		rows = append(rows, ComparisonRow{Query: query, Baseline: bs, Other: os})
	}
	if len(rows) == 0 {
		return nil, &NoOverlapError{
			Baseline:     baseline,
			Other:        other,
			BaselineKeys: sortedKeys(bstats),
			OtherKeys:    sortedKeys(ostats),
		}
	}
	if minBaselineMS > 0 {
		kept := rows[:0]
		for _, r := range rows {
			if r.Baseline.MakespanMS >= minBaselineMS {
				kept = append(kept, r)
			}
		}
		rows = kept
	}
	sort.Slice(rows, func(i, j int) bool {
		si, sj := rows[i].Speedup(), rows[j].Speedup()
		if si != sj {
			return floatLess(si, sj)
		}
		return rows[i].Query < rows[j].Query
	})
	return &Comparison{Baseline: baseline, Other: other, Rows: rows}, nil
}

// floatLess orders NaN before every other value so that sorting
// stays consistent even for degenerate speedups.
func floatLess(a, b float64) bool {
	if math.IsNaN(a) {
		return !math.IsNaN(b)
	}
	if math.IsNaN(b) {
		return false
	}
	return a < b
}

func sortedKeys(m map[string]QueryStats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WriteCSV writes the comparison as a CSV table at path, one row per
// query in key order. Metric columns come in baseline/other pairs and
// carry the configuration name in the header, so several comparison
// tables can be told apart after the fact. The file is replaced
// atomically.
func (cmp *Comparison) WriteCSV(path string) error {
	pf, err := renameio.NewPendingFile(path, renameio.WithStaticPermissions(0o644))
	if err != nil {
		return err
	}
	defer pf.Cleanup()

	w := csv.NewWriter(pf)
	header := []string{
		"query",
		"total_time_" + cmp.Baseline,
		"total_time_" + cmp.Other,
		"executor_time_" + cmp.Baseline,
		"executor_time_" + cmp.Other,
		"executor_cpu_time_" + cmp.Baseline,
		"executor_cpu_time_" + cmp.Other,
	}
	if err := w.Write(header); err != nil {
		return err
	}
	rows := append([]ComparisonRow(nil), cmp.Rows...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Query < rows[j].Query })
	for _, r := range rows {
		err := w.Write([]string{
			r.Query,
			formatFloat(r.Baseline.MakespanMS),
			formatFloat(r.Other.MakespanMS),
			formatFloat(r.Baseline.ExecutorRunMS),
			formatFloat(r.Other.ExecutorRunMS),
			formatFloat(r.Baseline.ExecutorCPUMS),
			formatFloat(r.Other.ExecutorCPUMS),
		})
		if err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return pf.CloseAtomicallyReplace()
}

// formatFloat renders a metric for a CSV cell. NaN renders as the
// empty cell.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
