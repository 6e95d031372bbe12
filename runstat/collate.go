// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runstat

import (
	"math"
	"sort"
	"strings"

	"github.com/aclements/go-moremath/stats"

	"github.com/benchlab/sparkperf/execstats"
)

// QueryStats are the run-averaged metrics of one query under one
// configuration: the unweighted mean of every numeric analysis-table
// column across the configuration's runs, in the units of the table.
// Within a single run the query is represented by its last iteration.
type QueryStats struct {
	NumJobs            float64
	NumTasks           float64
	MakespanMS         float64
	TaskSlotMS         float64
	ExecutorRunMS      float64
	ExecutorCPUMS      float64
	CPUvsWallPct       float64 // mean over the runs where it is defined
	DeserializeMS      float64
	ResultSerializeMS  float64
	GCMS               float64
	ShuffleFetchWaitMS float64
	ShuffleWriteMS     float64
	InputBytes         float64
	OutputBytes        float64
	ShuffleReadBytes   float64
	ShuffleWriteBytes  float64
}

// fields returns pointers to every metric field of s, in table
// column order.
func (s *QueryStats) fields() []*float64 {
	return []*float64{
		&s.NumJobs, &s.NumTasks, &s.MakespanMS, &s.TaskSlotMS,
		&s.ExecutorRunMS, &s.ExecutorCPUMS, &s.CPUvsWallPct,
		&s.DeserializeMS, &s.ResultSerializeMS, &s.GCMS,
		&s.ShuffleFetchWaitMS, &s.ShuffleWriteMS,
		&s.InputBytes, &s.OutputBytes,
		&s.ShuffleReadBytes, &s.ShuffleWriteBytes,
	}
}

// rowSample converts one analysis-table row into a sample vector.
func rowSample(row execstats.AggregateRow) QueryStats {
	return QueryStats{
		NumJobs:            float64(row.NumJobs),
		NumTasks:           float64(row.NumTasks),
		MakespanMS:         float64(row.MakespanMS),
		TaskSlotMS:         float64(row.TaskSlotMS),
		ExecutorRunMS:      float64(row.ExecutorRunMS),
		ExecutorCPUMS:      row.ExecutorCPUMS,
		CPUvsWallPct:       row.CPUvsWallPct,
		DeserializeMS:      float64(row.DeserializeMS),
		ResultSerializeMS:  float64(row.ResultSerializeMS),
		GCMS:               float64(row.GCMS),
		ShuffleFetchWaitMS: float64(row.ShuffleFetchWaitMS),
		ShuffleWriteMS:     row.ShuffleWriteMS,
		InputBytes:         float64(row.InputBytes),
		OutputBytes:        float64(row.OutputBytes),
		ShuffleReadBytes:   float64(row.ShuffleReadBytes),
		ShuffleWriteBytes:  float64(row.ShuffleWriteBytes),
	}
}

// averageStats is the per-field arithmetic mean of samples. A NaN
// sample stays out of its field's mean, so CPUvsWallPct averages
// over the runs where it is defined and is NaN only when it never
// was.
func averageStats(samples []QueryStats) QueryStats {
	var out QueryStats
	dst := out.fields()
	cols := make([][]float64, len(dst))
	for i := range samples {
		for j, p := range samples[i].fields() {
			if v := *p; !math.IsNaN(v) {
				cols[j] = append(cols[j], v)
			}
		}
	}
	for j, p := range dst {
		*p = stats.Mean(cols[j])
	}
	return out
}

// A Collation holds the per-query stats of every configuration,
// averaged across that configuration's runs.
type Collation struct {
	// Stats maps configuration name to query key to stats.
	Stats map[string]map[string]QueryStats
	// Runs maps configuration name to its number of distinct runs.
	Runs map[string]int
	// Order lists configuration names in first-appearance order.
	Order []string
}

// QueryKey extracts the comparable query key from an execution
// description. Only executions describing benchmark queries take part
// in comparisons; the key is the description with the "benchmark "
// prefix and any dataset version suffix removed, so "benchmark
// q4-v2.4" and "benchmark q4" both have key "q4".
func QueryKey(desc string) (string, bool) {
	const prefix = "benchmark q"
	if !strings.HasPrefix(desc, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(desc, "benchmark ")
	key = strings.TrimSuffix(key, "-v2.4")
	return key, true
}

// LoadRuns reads the run files at paths and collates them by
// configuration. Within one run, a query that appears several times
// (a warmup loop, say) is represented by its last iteration, the row
// with the highest execution ID. Rows whose description is not a
// benchmark query are ignored.
func LoadRuns(paths []string) (*Collation, error) {
	type runKey struct {
		config string
		run    int
		query  string
	}
	last := make(map[runKey]execstats.AggregateRow)
	runs := make(map[string]map[int]bool)
	c := &Collation{
		Stats: make(map[string]map[string]QueryStats),
		Runs:  make(map[string]int),
	}
	for _, path := range paths {
		config, run, err := ParseRunFile(path)
		if err != nil {
			return nil, err
		}
		rows, err := execstats.ReadTable(path)
		if err != nil {
			return nil, err
		}
		if runs[config] == nil {
			runs[config] = make(map[int]bool)
			c.Order = append(c.Order, config)
		}
		runs[config][run] = true
		for _, row := range rows {
			query, ok := QueryKey(row.Description)
			if !ok {
				continue
			}
			k := runKey{config, run, query}
			if prev, ok := last[k]; !ok || row.ExecutionID > prev.ExecutionID {
				last[k] = row
			}
		}
	}

	// Collect run samples in a fixed order so the means are
	// bit-for-bit reproducible.
	keys := make([]runKey, 0, len(last))
	for k := range last {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ki, kj := keys[i], keys[j]
		if ki.config != kj.config {
			return ki.config < kj.config
		}
		if ki.query != kj.query {
			return ki.query < kj.query
		}
		return ki.run < kj.run
	})

	perQuery := make(map[string]map[string][]QueryStats)
	for _, k := range keys {
		if perQuery[k.config] == nil {
			perQuery[k.config] = make(map[string][]QueryStats)
		}
		perQuery[k.config][k.query] = append(perQuery[k.config][k.query], rowSample(last[k]))
	}
	for config, qs := range perQuery {
		c.Stats[config] = make(map[string]QueryStats, len(qs))
		for query, samples := range qs {
			c.Stats[config][query] = averageStats(samples)
		}
	}
	for config, set := range runs {
		c.Runs[config] = len(set)
	}
	return c, nil
}
