// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package execstats

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/google/renameio/v2"
)

// Column order of the analysis table. Consumers key on these names,
// so they are part of the format.
const (
	colExecutionID = iota
	colDescription
	colNumJobs
	colNumTasks
	colMakespan
	colTaskSlot
	colExecutorRun
	colExecutorCPU
	colCPUvsWall
	colDeserialize
	colResultSerialize
	colGC
	colShuffleFetchWait
	colShuffleWriteTime
	colInputBytes
	colOutputBytes
	colShuffleReadBytes
	colShuffleWriteBytes
	numColumns
)

// TableColumns lists the analysis table's column names in order.
var TableColumns = []string{
	colExecutionID:       "executionId",
	colDescription:       "description",
	colNumJobs:           "num_jobs",
	colNumTasks:          "num_tasks",
	colMakespan:          "makespan_ms",
	colTaskSlot:          "task_slot_ms",
	colExecutorRun:       "executor_run_ms",
	colExecutorCPU:       "executor_cpu_ms",
	colCPUvsWall:         "cpu_vs_wall_pct",
	colDeserialize:       "deserialize_ms",
	colResultSerialize:   "result_serialize_ms",
	colGC:                "gc_ms",
	colShuffleFetchWait:  "shuffle_fetch_wait_ms",
	colShuffleWriteTime:  "shuffle_write_time_ms",
	colInputBytes:        "input_bytes",
	colOutputBytes:       "output_bytes",
	colShuffleReadBytes:  "shuffle_read_bytes",
	colShuffleWriteBytes: "shuffle_write_bytes",
}

func (r AggregateRow) record() []string {
	rec := make([]string, numColumns)
	rec[colExecutionID] = strconv.FormatInt(r.ExecutionID, 10)
	rec[colDescription] = r.Description
	rec[colNumJobs] = strconv.Itoa(r.NumJobs)
	rec[colNumTasks] = strconv.Itoa(r.NumTasks)
	rec[colMakespan] = strconv.FormatInt(r.MakespanMS, 10)
	rec[colTaskSlot] = strconv.FormatInt(r.TaskSlotMS, 10)
	rec[colExecutorRun] = strconv.FormatInt(r.ExecutorRunMS, 10)
	rec[colExecutorCPU] = formatFloat(r.ExecutorCPUMS)
	rec[colCPUvsWall] = formatFloat(r.CPUvsWallPct)
	rec[colDeserialize] = strconv.FormatInt(r.DeserializeMS, 10)
	rec[colResultSerialize] = strconv.FormatInt(r.ResultSerializeMS, 10)
	rec[colGC] = strconv.FormatInt(r.GCMS, 10)
	rec[colShuffleFetchWait] = strconv.FormatInt(r.ShuffleFetchWaitMS, 10)
	rec[colShuffleWriteTime] = formatFloat(r.ShuffleWriteMS)
	rec[colInputBytes] = strconv.FormatInt(r.InputBytes, 10)
	rec[colOutputBytes] = strconv.FormatInt(r.OutputBytes, 10)
	rec[colShuffleReadBytes] = strconv.FormatInt(r.ShuffleReadBytes, 10)
	rec[colShuffleWriteBytes] = strconv.FormatInt(r.ShuffleWriteBytes, 10)
	return rec
}

// formatFloat renders a float cell. NaN means "no value" and becomes
// an empty cell.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteTableTo writes rows as a CSV table, header first.
func WriteTableTo(w io.Writer, rows []AggregateRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TableColumns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable writes rows to path, replacing it atomically: readers
// never observe a partially written table.
func WriteTable(path string, rows []AggregateRow) error {
	pf, err := renameio.NewPendingFile(path, renameio.WithStaticPermissions(0o644))
	if err != nil {
		return err
	}
	defer pf.Cleanup()
	if err := WriteTableTo(pf, rows); err != nil {
		return err
	}
	return pf.CloseAtomicallyReplace()
}

// ReadTable reads an analysis table written by WriteTable. The header
// must match TableColumns exactly.
func ReadTable(path string) ([]AggregateRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := readTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return rows, nil
}

func readTable(r io.Reader) ([]AggregateRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numColumns
	hdr, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing table header")
	}
	if err != nil {
		return nil, err
	}
	for i, name := range TableColumns {
		if hdr[i] != name {
			return nil, fmt.Errorf("table column %d is %q, want %q", i+1, hdr[i], name)
		}
	}
	var rows []AggregateRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row, err := parseRow(rec)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %v", line, err)
		}
		rows = append(rows, row)
	}
}

type fieldParser struct {
	rec []string
	err error
}

func (p *fieldParser) int64At(i int) int64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(p.rec[i], 10, 64)
	if err != nil {
		p.err = fmt.Errorf("column %s: %v", TableColumns[i], err)
	}
	return v
}

func (p *fieldParser) intAt(i int) int {
	return int(p.int64At(i))
}

func (p *fieldParser) floatAt(i int) float64 {
	if p.err != nil {
		return 0
	}
	if p.rec[i] == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(p.rec[i], 64)
	if err != nil {
		p.err = fmt.Errorf("column %s: %v", TableColumns[i], err)
	}
	return v
}

func parseRow(rec []string) (AggregateRow, error) {
	p := &fieldParser{rec: rec}
	row := AggregateRow{
		ExecutionID:        p.int64At(colExecutionID),
		Description:        rec[colDescription],
		NumJobs:            p.intAt(colNumJobs),
		NumTasks:           p.intAt(colNumTasks),
		MakespanMS:         p.int64At(colMakespan),
		TaskSlotMS:         p.int64At(colTaskSlot),
		ExecutorRunMS:      p.int64At(colExecutorRun),
		ExecutorCPUMS:      p.floatAt(colExecutorCPU),
		CPUvsWallPct:       p.floatAt(colCPUvsWall),
		DeserializeMS:      p.int64At(colDeserialize),
		ResultSerializeMS:  p.int64At(colResultSerialize),
		GCMS:               p.int64At(colGC),
		ShuffleFetchWaitMS: p.int64At(colShuffleFetchWait),
		ShuffleWriteMS:     p.floatAt(colShuffleWriteTime),
		InputBytes:         p.int64At(colInputBytes),
		OutputBytes:        p.int64At(colOutputBytes),
		ShuffleReadBytes:   p.int64At(colShuffleReadBytes),
		ShuffleWriteBytes:  p.int64At(colShuffleWriteBytes),
	}
	return row, p.err
}
