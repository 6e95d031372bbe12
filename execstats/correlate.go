// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package execstats assembles per-execution statistics from Spark
// event logs.
//
// A Correlator consumes the flat record stream of one log and stitches
// the event hierarchy back together: SQL executions own jobs, jobs own
// stages, and stages own tasks. Each log gets its own Correlator;
// identifiers are only meaningful within a single log. The assembled
// executions are then rolled up into fixed-schema AggregateRows and
// written as a CSV table.
package execstats

import (
	"sort"

	"github.com/benchlab/sparkperf/eventlog"
)

// A QueryExecution is one assembled SQL execution: its boundary
// timestamps and the jobs that ran on its behalf, each owning its
// stages and their finished tasks.
type QueryExecution struct {
	ID          int64
	Description string
	Details     string
	StartTime   int64 // epoch milliseconds
	EndTime     int64
	Jobs        []JobRecord
}

// A JobRecord is one job of an execution. StageIDs lists every stage
// declared at submission; Stages holds the stages this job declared
// first. A stage reused from an earlier job appears in StageIDs but
// stays owned by the declaring job, since the scheduler skips
// resubmitting it and emits no further events for it.
type JobRecord struct {
	ID             int64
	SubmissionTime int64 // epoch milliseconds
	CompletionTime int64
	Succeeded      bool
	StageIDs       []int64
	Stages         []StageRecord
}

// A StageRecord is one stage of a job. Name and the timestamps are
// zero until the stage's own lifecycle events arrive.
type StageRecord struct {
	ID             int64
	Name           string
	SubmissionTime int64 // epoch milliseconds
	CompletionTime int64
	Tasks          []TaskRecord
}

// A TaskRecord is one finished task attempt.
type TaskRecord struct {
	ID         int64
	LaunchTime int64 // epoch milliseconds; 0 if absent
	FinishTime int64
	DurationMS int64
	Success    bool
	Metrics    eventlog.TaskMetrics
}

// Diagnostics counts what the pipeline tolerated while reading, so
// callers can report data quality without failing the run.
type Diagnostics struct {
	Sources        int   // logical logs read
	Bytes          int64 // log bytes consumed, after decompression
	Events         int   // records decoded, including unknown kinds
	MalformedLines int   // lines that did not decode as events
	TruncatedLines int   // lines dropped as over-long or cut off
	UnknownEvents  int   // well-formed events of unmodeled kinds
	NonSQLEvents   int   // events for jobs outside any SQL execution
	Unattached     int   // child events whose parent never appeared
	LateEvents     int   // events arriving after their execution froze
	DuplicateTasks int   // extra finish events for an already-recorded task
	Incomplete     int   // executions that never fully closed
	Jobless        int   // closed executions that ran no jobs
}

func (d *Diagnostics) add(o Diagnostics) {
	d.Sources += o.Sources
	d.Bytes += o.Bytes
	d.Events += o.Events
	d.MalformedLines += o.MalformedLines
	d.TruncatedLines += o.TruncatedLines
	d.UnknownEvents += o.UnknownEvents
	d.NonSQLEvents += o.NonSQLEvents
	d.Unattached += o.Unattached
	d.LateEvents += o.LateEvents
	d.DuplicateTasks += o.DuplicateTasks
	d.Incomplete += o.Incomplete
	d.Jobless += o.Jobless
}

type taskKey struct {
	stage, task int64
}

// A stageRef locates a stage record inside the execution trees: the
// owning execution, the job's index in its Jobs, and the stage's
// index in that job's Stages.
type stageRef struct {
	exec int64
	job  int
	idx  int
}

// A taskRef locates a task record within one execution's trees.
type taskRef struct {
	job, stage, idx int
}

type execBuilder struct {
	exec     QueryExecution
	hasStart bool
	hasEnd   bool
	frozen   bool
	openJobs map[int64]bool
	jobIdx   map[int64]int
	taskIdx  map[taskKey]taskRef
}

// maybeFreeze marks the execution closed once its end event has been
// seen and every job it started has ended. Events arriving after that
// are late.
func (b *execBuilder) maybeFreeze() {
	if b.hasEnd && len(b.openJobs) == 0 {
		b.frozen = true
	}
}

// A Correlator incrementally assembles the executions of one event
// log. Feed it every record with Add, then call Finish.
//
// Events may arrive before the parent that links them into the
// hierarchy. A child with an unknown parent is parked; the next
// JobStart, which is what grows the linkage state, retries every
// parked event once. An event that cannot attach on its retry is
// dropped and counted as unattached.
type Correlator struct {
	execs        map[int64]*execBuilder
	jobToExec    map[int64]int64
	stageRefs    map[int64]stageRef
	nonSQLJobs   map[int64]bool
	nonSQLStages map[int64]bool
	parked       []eventlog.Record
	diag         Diagnostics
}

func NewCorrelator() *Correlator {
	return &Correlator{
		execs:        make(map[int64]*execBuilder),
		jobToExec:    make(map[int64]int64),
		stageRefs:    make(map[int64]stageRef),
		nonSQLJobs:   make(map[int64]bool),
		nonSQLStages: make(map[int64]bool),
	}
}

// Add feeds one record to the correlator. All record kinds are
// accepted; syntax errors and unknown events are only counted.
func (c *Correlator) Add(rec eventlog.Record) {
	if _, ok := rec.(*eventlog.SyntaxError); ok {
		c.diag.MalformedLines++
		return
	}
	c.diag.Events++
	switch ev := rec.(type) {
	case *eventlog.UnknownEvent:
		c.diag.UnknownEvents++
	case *eventlog.SQLExecutionStart:
		c.onExecStart(ev)
	case *eventlog.SQLExecutionEnd:
		c.onExecEnd(ev)
	case *eventlog.JobStart:
		c.onJobStart(ev)
	case *eventlog.JobEnd:
		if !c.onJobEnd(ev) {
			c.parked = append(c.parked, rec)
		}
	case *eventlog.StageSubmitted:
		if !c.onStageSubmitted(ev) {
			c.parked = append(c.parked, rec)
		}
	case *eventlog.StageCompleted:
		if !c.onStageCompleted(ev) {
			c.parked = append(c.parked, rec)
		}
	case *eventlog.TaskEnd:
		if !c.onTaskEnd(ev) {
			c.parked = append(c.parked, rec)
		}
	}
}

func (c *Correlator) builder(id int64) *execBuilder {
	b := c.execs[id]
	if b == nil {
		b = &execBuilder{
			openJobs: make(map[int64]bool),
			jobIdx:   make(map[int64]int),
			taskIdx:  make(map[taskKey]taskRef),
		}
		b.exec.ID = id
		c.execs[id] = b
	}
	return b
}

func (c *Correlator) onExecStart(ev *eventlog.SQLExecutionStart) {
	b := c.builder(ev.ExecutionID)
	if b.frozen {
		c.diag.LateEvents++
		return
	}
	b.exec.Description = ev.Description
	b.exec.Details = ev.Details
	// A start without a timestamp leaves the execution incomplete:
	// there is no makespan to compute from it.
	if ev.TimeOK {
		b.exec.StartTime = ev.Time
		b.hasStart = true
	}
}

func (c *Correlator) onExecEnd(ev *eventlog.SQLExecutionEnd) {
	b := c.builder(ev.ExecutionID)
	if b.frozen {
		c.diag.LateEvents++
		return
	}
	if ev.TimeOK {
		b.exec.EndTime = ev.Time
		b.hasEnd = true
	}
	b.maybeFreeze()
}

func (c *Correlator) onJobStart(ev *eventlog.JobStart) {
	if !ev.HasExecutionID {
		// A job outside any SQL execution, for example a bare RDD
		// action. Remember its ids so descendants are recognized as
		// out of scope rather than unattached.
		c.diag.NonSQLEvents++
		c.nonSQLJobs[ev.JobID] = true
		for _, sid := range ev.StageIDs {
			c.nonSQLStages[sid] = true
		}
		c.retryParked()
		return
	}
	b := c.builder(ev.ExecutionID)
	if b.frozen {
		c.diag.LateEvents++
		return
	}
	if _, dup := c.jobToExec[ev.JobID]; dup {
		c.retryParked()
		return
	}
	c.jobToExec[ev.JobID] = ev.ExecutionID
	b.jobIdx[ev.JobID] = len(b.exec.Jobs)
	b.openJobs[ev.JobID] = true
	job := JobRecord{ID: ev.JobID, SubmissionTime: ev.SubmissionTime, StageIDs: ev.StageIDs}
	// A stage is owned by the job that declares it first. Later jobs
	// list a reused stage, but the scheduler skips it and its events
	// already belong to the declaring job.
	for _, sid := range ev.StageIDs {
		if _, seen := c.stageRefs[sid]; seen || c.nonSQLStages[sid] {
			continue
		}
		c.stageRefs[sid] = stageRef{ev.ExecutionID, b.jobIdx[ev.JobID], len(job.Stages)}
		job.Stages = append(job.Stages, StageRecord{ID: sid})
	}
	b.exec.Jobs = append(b.exec.Jobs, job)
	c.retryParked()
}

func (c *Correlator) onJobEnd(ev *eventlog.JobEnd) bool {
	if c.nonSQLJobs[ev.JobID] {
		c.diag.NonSQLEvents++
		return true
	}
	exid, ok := c.jobToExec[ev.JobID]
	if !ok {
		return false
	}
	b := c.execs[exid]
	if b.frozen {
		c.diag.LateEvents++
		return true
	}
	job := &b.exec.Jobs[b.jobIdx[ev.JobID]]
	job.CompletionTime = ev.CompletionTime
	job.Succeeded = ev.Succeeded
	delete(b.openJobs, ev.JobID)
	b.maybeFreeze()
	return true
}

// stageRecord resolves a stage id to its record and owning builder.
// The stage-to-job mapping is declared by JobStart, since the
// scheduler skips resubmitting stages it can reuse and emits no
// events for them.
func (c *Correlator) stageRecord(sid int64) (*StageRecord, *execBuilder) {
	ref, ok := c.stageRefs[sid]
	if !ok {
		return nil, nil
	}
	b := c.execs[ref.exec]
	return &b.exec.Jobs[ref.job].Stages[ref.idx], b
}

func (c *Correlator) onStageSubmitted(ev *eventlog.StageSubmitted) bool {
	if c.nonSQLStages[ev.StageID] {
		c.diag.NonSQLEvents++
		return true
	}
	st, b := c.stageRecord(ev.StageID)
	if st == nil {
		return false
	}
	if b.frozen {
		c.diag.LateEvents++
		return true
	}
	st.Name = ev.Name
	st.SubmissionTime = ev.SubmissionTime
	return true
}

func (c *Correlator) onStageCompleted(ev *eventlog.StageCompleted) bool {
	if c.nonSQLStages[ev.StageID] {
		c.diag.NonSQLEvents++
		return true
	}
	st, b := c.stageRecord(ev.StageID)
	if st == nil {
		return false
	}
	if b.frozen {
		c.diag.LateEvents++
		return true
	}
	if ev.Name != "" {
		st.Name = ev.Name
	}
	if ev.SubmissionTime != 0 {
		st.SubmissionTime = ev.SubmissionTime
	}
	st.CompletionTime = ev.CompletionTime
	return true
}

func (c *Correlator) onTaskEnd(ev *eventlog.TaskEnd) bool {
	if c.nonSQLStages[ev.StageID] {
		c.diag.NonSQLEvents++
		return true
	}
	ref, ok := c.stageRefs[ev.StageID]
	if !ok {
		return false
	}
	b := c.execs[ref.exec]
	if b.frozen {
		c.diag.LateEvents++
		return true
	}
	tr := TaskRecord{
		ID:         ev.TaskID,
		LaunchTime: ev.LaunchTime,
		FinishTime: ev.FinishTime,
		DurationMS: taskDuration(ev),
		Success:    ev.Success,
		Metrics:    ev.Metrics,
	}
	// Speculative execution can finish the same task twice. Keep one
	// record per (stage, task), preferring the successful attempt.
	key := taskKey{ev.StageID, ev.TaskID}
	if loc, ok := b.taskIdx[key]; ok {
		c.diag.DuplicateTasks++
		old := &b.exec.Jobs[loc.job].Stages[loc.stage].Tasks[loc.idx]
		if old.Success && !tr.Success {
			return true
		}
		*old = tr
		return true
	}
	st := &b.exec.Jobs[ref.job].Stages[ref.idx]
	b.taskIdx[key] = taskRef{ref.job, ref.idx, len(st.Tasks)}
	st.Tasks = append(st.Tasks, tr)
	return true
}

// taskDuration is wall time between launch and finish when both are
// known, clamped at zero, with the reported run time as fallback.
func taskDuration(ev *eventlog.TaskEnd) int64 {
	if ev.LaunchTime > 0 && ev.FinishTime > 0 {
		if d := ev.FinishTime - ev.LaunchTime; d > 0 {
			return d
		}
		return 0
	}
	return ev.Metrics.RunTimeMS
}

// retryParked gives every parked event one more chance to attach now
// that the linkage state has grown. Events that still do not attach
// are dropped.
func (c *Correlator) retryParked() {
	if len(c.parked) == 0 {
		return
	}
	parked := c.parked
	c.parked = nil
	for _, rec := range parked {
		var ok bool
		switch ev := rec.(type) {
		case *eventlog.JobEnd:
			ok = c.onJobEnd(ev)
		case *eventlog.StageSubmitted:
			ok = c.onStageSubmitted(ev)
		case *eventlog.StageCompleted:
			ok = c.onStageCompleted(ev)
		case *eventlog.TaskEnd:
			ok = c.onTaskEnd(ev)
		}
		if !ok {
			c.diag.Unattached++
		}
	}
}

// Finish returns the assembled executions, sorted by execution id,
// along with the diagnostics gathered while reading. An execution is
// complete only when both boundary events were seen and every job it
// started has ended; anything short of that is dropped and counted,
// as is an execution that closed without running a job. The
// correlator must not be used after Finish.
func (c *Correlator) Finish() ([]QueryExecution, Diagnostics) {
	c.diag.Unattached += len(c.parked)
	c.parked = nil
	execs := make([]QueryExecution, 0, len(c.execs))
	for _, b := range c.execs {
		if !b.hasStart || !b.frozen {
			c.diag.Incomplete++
			continue
		}
		if len(b.exec.Jobs) == 0 {
			c.diag.Jobless++
			continue
		}
		sortJobs(b.exec.Jobs)
		execs = append(execs, b.exec)
	}
	sort.Slice(execs, func(i, j int) bool { return execs[i].ID < execs[j].ID })
	return execs, c.diag
}

// sortJobs orders jobs, their stages, and their tasks by id so that
// emission does not depend on event arrival order.
func sortJobs(jobs []JobRecord) {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	for i := range jobs {
		stages := jobs[i].Stages
		sort.Slice(stages, func(x, y int) bool { return stages[x].ID < stages[y].ID })
		for j := range stages {
			tasks := stages[j].Tasks
			sort.Slice(tasks, func(x, y int) bool { return tasks[x].ID < tasks[y].ID })
		}
	}
}
