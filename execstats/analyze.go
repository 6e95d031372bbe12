// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package execstats

import (
	"io"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/benchlab/sparkperf/eventlog"
)

// AnalyzePath reads every logical log in the container at path and
// returns their aggregated rows, sorted by execution id. Correlation
// state is private to each logical log; ids do not carry across logs.
func AnalyzePath(path string) ([]AggregateRow, Diagnostics, error) {
	var diag Diagnostics
	a, err := eventlog.OpenArchive(path)
	if err != nil {
		return nil, diag, err
	}
	defer a.Close()
	var rows []AggregateRow
	for a.Next() {
		cr := &countingReader{r: a.Reader()}
		r := eventlog.NewReader(cr, a.Name())
		c := NewCorrelator()
		for r.Scan() {
			c.Add(r.Record())
		}
		if err := r.Err(); err != nil {
			// A stream that fails mid-read is as unusable as one that
			// would not open.
			return nil, diag, &eventlog.UnreadableArchiveError{Path: a.Name(), Err: err}
		}
		execs, d := c.Finish()
		d.Sources = 1
		d.Bytes = cr.n
		d.TruncatedLines = r.Truncated()
		diag.add(d)
		for _, ex := range execs {
			rows = append(rows, Aggregate(ex))
		}
	}
	if err := a.Err(); err != nil {
		return nil, diag, err
	}
	sortRows(rows)
	return rows, diag, nil
}

// AnalyzePaths analyzes several containers concurrently, with at most
// limit in flight, and merges the results into one table. Rows keep
// ascending execution id order; ties stay in argument order.
func AnalyzePaths(paths []string, limit int) ([]AggregateRow, Diagnostics, error) {
	if limit < 1 {
		limit = 1
	}
	type result struct {
		rows []AggregateRow
		diag Diagnostics
	}
	results := make([]result, len(paths))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			rows, diag, err := AnalyzePath(path)
			results[i] = result{rows, diag}
			return err
		})
	}
	err := g.Wait()
	var rows []AggregateRow
	var diag Diagnostics
	for _, res := range results {
		rows = append(rows, res.rows...)
		diag.add(res.diag)
	}
	if err != nil {
		return nil, diag, err
	}
	sortRows(rows)
	return rows, diag, nil
}

func sortRows(rows []AggregateRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ExecutionID < rows[j].ExecutionID
	})
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
