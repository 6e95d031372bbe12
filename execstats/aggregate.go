// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package execstats

import "math"

// An AggregateRow is the fixed-schema rollup of one execution, one
// row of the analysis table. Sum columns add the corresponding task
// metric over every task of the execution.
type AggregateRow struct {
	ExecutionID        int64
	Description        string
	NumJobs            int
	NumTasks           int
	MakespanMS         int64   // execution end minus start
	TaskSlotMS         int64   // total task wall time
	ExecutorRunMS      int64
	ExecutorCPUMS      float64
	CPUvsWallPct       float64 // NaN when no run time was recorded
	DeserializeMS      int64
	ResultSerializeMS  int64
	GCMS               int64
	ShuffleFetchWaitMS int64
	ShuffleWriteMS     float64
	InputBytes         int64
	OutputBytes        int64
	ShuffleReadBytes   int64
	ShuffleWriteBytes  int64
}

// Aggregate rolls one execution up into its table row, summing the
// task metrics over every stage of every job.
func Aggregate(ex QueryExecution) AggregateRow {
	row := AggregateRow{
		ExecutionID: ex.ID,
		Description: ex.Description,
		NumJobs:     len(ex.Jobs),
		MakespanMS:  ex.EndTime - ex.StartTime,
	}
	for _, job := range ex.Jobs {
		for _, st := range job.Stages {
			for _, tr := range st.Tasks {
				row.NumTasks++
				row.TaskSlotMS += tr.DurationMS
				row.ExecutorRunMS += tr.Metrics.RunTimeMS
				row.ExecutorCPUMS += tr.Metrics.CPUTimeMS
				row.DeserializeMS += tr.Metrics.DeserializeTimeMS
				row.ResultSerializeMS += tr.Metrics.ResultSerializeTimeMS
				row.GCMS += tr.Metrics.GCTimeMS
				row.ShuffleFetchWaitMS += tr.Metrics.ShuffleFetchWaitMS
				row.ShuffleWriteMS += tr.Metrics.ShuffleWriteTimeMS
				row.InputBytes += tr.Metrics.InputBytes
				row.OutputBytes += tr.Metrics.OutputBytes
				row.ShuffleReadBytes += tr.Metrics.ShuffleReadBytes
				row.ShuffleWriteBytes += tr.Metrics.ShuffleWriteBytes
			}
		}
	}
	if row.ExecutorRunMS > 0 {
		pct := 100 * row.ExecutorCPUMS / float64(row.ExecutorRunMS)
		row.CPUvsWallPct = math.Round(pct*10) / 10
	} else {
		row.CPUvsWallPct = math.NaN()
	}
	return row
}
