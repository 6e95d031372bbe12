// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package eventlog reads Spark event logs.
//
// An event log is a line-delimited JSON stream in which each line is
// one listener event. This package opens the containers such logs
// ship in (plain files, gzip streams, zip archives exported by the
// engine UI), splits them into lines, and decodes each line into a
// typed event record.
//
// The reader is structured as a streaming operation modeled on
// bufio.Scanner: lines that fail to decode become *SyntaxError
// records rather than terminating the stream, because production
// logs routinely contain a small number of truncated or
// engine-internal lines that carry no benchmark signal.
package eventlog

import "fmt"

// A Record is a single record read from an event log. It is one of
// the event types below, or a *SyntaxError for a line that could not
// be decoded.
type Record interface {
	// Pos returns the position of this record as a source name and a
	// 1-based line number within that source.
	Pos() (source string, line int)
}

type eventPos struct {
	source string
	line   int
}

func (p eventPos) Pos() (source string, line int) { return p.source, p.line }

// A SyntaxError records a line that could not be decoded as an event.
// It is a non-fatal Record: the reader keeps going.
type SyntaxError struct {
	Source string
	Line   int
	Msg    string
}

func (e *SyntaxError) Pos() (source string, line int) { return e.Source, e.Line }

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Msg)
}

// SQLExecutionStart marks the start of one SQL query execution.
type SQLExecutionStart struct {
	eventPos
	ExecutionID int64
	Description string
	Details     string
	Time        int64 // epoch milliseconds
	TimeOK      bool  // whether the event carried a timestamp
}

// SQLExecutionEnd marks the end of one SQL query execution.
type SQLExecutionEnd struct {
	eventPos
	ExecutionID int64
	Time        int64
	TimeOK      bool
}

// JobStart marks the submission of a job. The stage ids declared here
// are the authoritative stage-to-job mapping: stages reused from an
// earlier job are skipped by the scheduler and emit no lifecycle
// events of their own.
type JobStart struct {
	eventPos
	JobID          int64
	SubmissionTime int64
	StageIDs       []int64

	// ExecutionID is the owning SQL execution, recovered from the
	// spark.sql.execution.id property. Jobs submitted outside any SQL
	// execution (for example bare RDD actions) have none.
	ExecutionID    int64
	HasExecutionID bool
}

// JobEnd marks the completion of a job.
type JobEnd struct {
	eventPos
	JobID          int64
	CompletionTime int64
	Succeeded      bool
}

// StageSubmitted marks the submission of a stage.
type StageSubmitted struct {
	eventPos
	StageID        int64
	Name           string
	SubmissionTime int64
}

// StageCompleted marks the completion of a stage.
type StageCompleted struct {
	eventPos
	StageID        int64
	Name           string
	SubmissionTime int64
	CompletionTime int64
}

// TaskEnd carries the leaf metrics of one finished task attempt.
type TaskEnd struct {
	eventPos
	StageID    int64
	TaskID     int64
	LaunchTime int64 // epoch milliseconds; 0 if absent
	FinishTime int64
	Success    bool
	Metrics    TaskMetrics
}

// TaskMetrics are the per-task counters reported by the executor.
// Times are milliseconds; the engine reports CPU time and shuffle
// write time in nanoseconds and those arrive here already converted,
// which is why they are fractional.
type TaskMetrics struct {
	RunTimeMS             int64
	CPUTimeMS             float64
	DeserializeTimeMS     int64
	ResultSerializeTimeMS int64
	GCTimeMS              int64
	ShuffleFetchWaitMS    int64
	ShuffleWriteTimeMS    float64
	ShuffleReadBytes      int64
	ShuffleWriteBytes     int64
	InputBytes            int64
	OutputBytes           int64
}

// An UnknownEvent is a structurally valid event of a kind this
// package does not model. It is retained so callers can count it, and
// otherwise ignorable.
type UnknownEvent struct {
	eventPos
	Event string
}

var _ Record = (*SQLExecutionStart)(nil)
var _ Record = (*SQLExecutionEnd)(nil)
var _ Record = (*JobStart)(nil)
var _ Record = (*JobEnd)(nil)
var _ Record = (*StageSubmitted)(nil)
var _ Record = (*StageCompleted)(nil)
var _ Record = (*TaskEnd)(nil)
var _ Record = (*UnknownEvent)(nil)
var _ Record = (*SyntaxError)(nil)
