// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eventlog

import (
	"bytes"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event kinds as they appear on the wire. SQL events carry the full
// listener class path in engine-written logs and a bare name in
// synthetic ones; both are accepted.
const (
	evSQLExecutionStart = "SparkListenerSQLExecutionStart"
	evSQLExecutionEnd   = "SparkListenerSQLExecutionEnd"
	evJobStart          = "SparkListenerJobStart"
	evJobEnd            = "SparkListenerJobEnd"
	evStageSubmitted    = "SparkListenerStageSubmitted"
	evStageCompleted    = "SparkListenerStageCompleted"
	evTaskEnd           = "SparkListenerTaskEnd"
)

// sqlExecutionIDProperty is the job property that ties a job to the
// SQL execution that submitted it.
const sqlExecutionIDProperty = "spark.sql.execution.id"

// Each payload struct lists every accepted spelling of a field.
// Engine-written logs use capitalized space-separated names
// ("Job ID"); logs rewritten by downstream tooling use camelCase
// ("jobId"). Pointer fields distinguish absent from zero.

type envelopeJSON struct {
	Event  *string `json:"Event"`
	Event2 *string `json:"event"`
}

type sqlExecutionStartJSON struct {
	ExecutionID  *int64  `json:"executionId"`
	ExecutionID2 *int64  `json:"Execution ID"`
	Description  *string `json:"description"`
	Description2 *string `json:"Description"`
	Details      *string `json:"details"`
	Details2     *string `json:"Details"`
	Time         *int64  `json:"time"`
	Time2        *int64  `json:"Time"`
}

type sqlExecutionEndJSON struct {
	ExecutionID  *int64 `json:"executionId"`
	ExecutionID2 *int64 `json:"Execution ID"`
	Time         *int64 `json:"time"`
	Time2        *int64 `json:"Time"`
}

type jobStartJSON struct {
	JobID           *int64              `json:"Job ID"`
	JobID2          *int64              `json:"jobId"`
	SubmissionTime  *int64              `json:"Submission Time"`
	SubmissionTime2 *int64              `json:"submissionTime"`
	StageIDs        []int64             `json:"Stage IDs"`
	StageIDs2       []int64             `json:"stageIds"`
	StageInfos      []stageInfoJSON     `json:"Stage Infos"`
	StageInfos2     []stageInfoJSON     `json:"stageInfos"`
	Properties      jsoniter.RawMessage `json:"Properties"`
	Properties2     jsoniter.RawMessage `json:"properties"`
}

type jobEndJSON struct {
	JobID           *int64         `json:"Job ID"`
	JobID2          *int64         `json:"jobId"`
	CompletionTime  *int64         `json:"Completion Time"`
	CompletionTime2 *int64         `json:"completionTime"`
	JobResult       *jobResultJSON `json:"Job Result"`
	JobResult2      *jobResultJSON `json:"jobResult"`
}

type jobResultJSON struct {
	Result  *string `json:"Result"`
	Result2 *string `json:"result"`
}

type stageEventJSON struct {
	StageInfo  *stageInfoJSON `json:"Stage Info"`
	StageInfo2 *stageInfoJSON `json:"stageInfo"`
}

type stageInfoJSON struct {
	StageID         *int64  `json:"Stage ID"`
	StageID2        *int64  `json:"stageId"`
	Name            *string `json:"Stage Name"`
	Name2           *string `json:"stageName"`
	SubmissionTime  *int64  `json:"Submission Time"`
	SubmissionTime2 *int64  `json:"submissionTime"`
	CompletionTime  *int64  `json:"Completion Time"`
	CompletionTime2 *int64  `json:"completionTime"`
}

type taskEndJSON struct {
	StageID    *int64              `json:"Stage ID"`
	StageID2   *int64              `json:"stageId"`
	EndReason  jsoniter.RawMessage `json:"Task End Reason"`
	EndReason2 jsoniter.RawMessage `json:"taskEndReason"`
	Info       *taskInfoJSON       `json:"Task Info"`
	Info2      *taskInfoJSON       `json:"taskInfo"`
	Metrics    *taskMetricsJSON    `json:"Task Metrics"`
	Metrics2   *taskMetricsJSON    `json:"taskMetrics"`
}

type taskInfoJSON struct {
	TaskID      *int64 `json:"Task ID"`
	TaskID2     *int64 `json:"taskId"`
	LaunchTime  *int64 `json:"Launch Time"`
	LaunchTime2 *int64 `json:"launchTime"`
	FinishTime  *int64 `json:"Finish Time"`
	FinishTime2 *int64 `json:"finishTime"`
}

type taskMetricsJSON struct {
	DeserializeTime      *int64            `json:"Executor Deserialize Time"`
	DeserializeTime2     *int64            `json:"executorDeserializeTime"`
	RunTime              *int64            `json:"Executor Run Time"`
	RunTime2             *int64            `json:"executorRunTime"`
	CPUTime              *int64            `json:"Executor CPU Time"`
	CPUTime2             *int64            `json:"executorCpuTime"`
	ResultSerializeTime  *int64            `json:"Result Serialization Time"`
	ResultSerializeTime2 *int64            `json:"resultSerializationTime"`
	GCTime               *int64            `json:"JVM GC Time"`
	GCTime2              *int64            `json:"JvmGcTime"`
	GCTime3              *int64            `json:"jvmGcTime"`
	ShuffleRead          *shuffleReadJSON  `json:"Shuffle Read Metrics"`
	ShuffleRead2         *shuffleReadJSON  `json:"shuffleReadMetrics"`
	ShuffleWrite         *shuffleWriteJSON `json:"Shuffle Write Metrics"`
	ShuffleWrite2        *shuffleWriteJSON `json:"shuffleWriteMetrics"`
	Input                *ioMetricsJSON    `json:"Input Metrics"`
	Input2               *ioMetricsJSON    `json:"inputMetrics"`
	Output               *ioMetricsJSON    `json:"Output Metrics"`
	Output2              *ioMetricsJSON    `json:"outputMetrics"`
}

type shuffleReadJSON struct {
	FetchWaitTime    *int64 `json:"Fetch Wait Time"`
	FetchWaitTime2   *int64 `json:"fetchWaitTime"`
	RemoteBytesRead  *int64 `json:"Remote Bytes Read"`
	RemoteBytesRead2 *int64 `json:"remoteBytesRead"`
	LocalBytesRead   *int64 `json:"Local Bytes Read"`
	LocalBytesRead2  *int64 `json:"localBytesRead"`
}

type shuffleWriteJSON struct {
	BytesWritten  *int64 `json:"Shuffle Bytes Written"`
	BytesWritten2 *int64 `json:"Bytes Written"`
	BytesWritten3 *int64 `json:"bytesWritten"`
	WriteTime     *int64 `json:"Shuffle Write Time"`
	WriteTime2    *int64 `json:"Write Time"`
	WriteTime3    *int64 `json:"writeTime"`
}

type ioMetricsJSON struct {
	BytesRead     *int64 `json:"Bytes Read"`
	BytesRead2    *int64 `json:"bytesRead"`
	BytesWritten  *int64 `json:"Bytes Written"`
	BytesWritten2 *int64 `json:"bytesWritten"`
}

// pickInt returns the first present value among alternative spellings
// of one integer field.
func pickInt(ps ...*int64) (int64, bool) {
	for _, p := range ps {
		if p != nil {
			return *p, true
		}
	}
	return 0, false
}

func pickStr(ps ...*string) (string, bool) {
	for _, p := range ps {
		if p != nil {
			return *p, true
		}
	}
	return "", false
}

func intOr(def int64, ps ...*int64) int64 {
	v, ok := pickInt(ps...)
	if !ok {
		return def
	}
	return v
}

// decodeEvent decodes one event-log line. A nil Record means the line
// is blank and carries nothing at all.
func decodeEvent(data []byte, source string, line int) Record {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	pos := eventPos{source, line}
	var env envelopeJSON
	if err := json.Unmarshal(data, &env); err != nil {
		return &SyntaxError{source, line, "not a JSON event: " + err.Error()}
	}
	kind, ok := pickStr(env.Event, env.Event2)
	if !ok {
		return &SyntaxError{source, line, "event has no kind"}
	}
	// SQL events name the full listener class; trim to the leaf.
	short := kind
	if i := strings.LastIndexByte(short, '.'); i >= 0 {
		short = short[i+1:]
	}
	switch short {
	case evSQLExecutionStart:
		return decodeSQLExecutionStart(data, pos)
	case evSQLExecutionEnd:
		return decodeSQLExecutionEnd(data, pos)
	case evJobStart:
		return decodeJobStart(data, pos)
	case evJobEnd:
		return decodeJobEnd(data, pos)
	case evStageSubmitted:
		return decodeStage(data, pos, false)
	case evStageCompleted:
		return decodeStage(data, pos, true)
	case evTaskEnd:
		return decodeTaskEnd(data, pos)
	}
	return &UnknownEvent{pos, kind}
}

func decodeSQLExecutionStart(data []byte, pos eventPos) Record {
	var p sqlExecutionStartJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return &SyntaxError{pos.source, pos.line, "malformed execution start: " + err.Error()}
	}
	id, ok := pickInt(p.ExecutionID, p.ExecutionID2)
	if !ok {
		return &SyntaxError{pos.source, pos.line, "execution start has no execution id"}
	}
	ev := &SQLExecutionStart{eventPos: pos, ExecutionID: id}
	ev.Description, _ = pickStr(p.Description, p.Description2)
	ev.Details, _ = pickStr(p.Details, p.Details2)
	ev.Time, ev.TimeOK = pickInt(p.Time, p.Time2)
	return ev
}

func decodeSQLExecutionEnd(data []byte, pos eventPos) Record {
	var p sqlExecutionEndJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return &SyntaxError{pos.source, pos.line, "malformed execution end: " + err.Error()}
	}
	id, ok := pickInt(p.ExecutionID, p.ExecutionID2)
	if !ok {
		return &SyntaxError{pos.source, pos.line, "execution end has no execution id"}
	}
	ev := &SQLExecutionEnd{eventPos: pos, ExecutionID: id}
	ev.Time, ev.TimeOK = pickInt(p.Time, p.Time2)
	return ev
}

func decodeJobStart(data []byte, pos eventPos) Record {
	var p jobStartJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return &SyntaxError{pos.source, pos.line, "malformed job start: " + err.Error()}
	}
	id, ok := pickInt(p.JobID, p.JobID2)
	if !ok {
		return &SyntaxError{pos.source, pos.line, "job start has no job id"}
	}
	ev := &JobStart{eventPos: pos, JobID: id}
	ev.SubmissionTime = intOr(0, p.SubmissionTime, p.SubmissionTime2)

	// Stage ids come from the explicit list when present, else from
	// the per-stage info objects.
	switch {
	case p.StageIDs != nil:
		ev.StageIDs = p.StageIDs
	case p.StageIDs2 != nil:
		ev.StageIDs = p.StageIDs2
	default:
		infos := p.StageInfos
		if infos == nil {
			infos = p.StageInfos2
		}
		for _, si := range infos {
			if sid, ok := pickInt(si.StageID, si.StageID2); ok {
				ev.StageIDs = append(ev.StageIDs, sid)
			}
		}
	}

	raw := p.Properties
	if raw == nil {
		raw = p.Properties2
	}
	props := decodeProperties(raw)
	if s, ok := props[sqlExecutionIDProperty]; ok {
		if eid, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			ev.ExecutionID = eid
			ev.HasExecutionID = true
		}
	}
	return ev
}

// decodeProperties normalizes the two shapes job properties arrive
// in: a plain object mapping key to value, where a value may itself
// be wrapped as {"value": ...}, or a list of {"key", "value"} pairs.
// Values that are not strings are rendered with their JSON text.
func decodeProperties(raw jsoniter.RawMessage) map[string]string {
	props := make(map[string]string)
	if len(raw) == 0 {
		return props
	}
	trim := bytes.TrimSpace(raw)
	if len(trim) == 0 {
		return props
	}
	switch trim[0] {
	case '{':
		var obj map[string]jsoniter.RawMessage
		if err := json.Unmarshal(trim, &obj); err != nil {
			return props
		}
		for k, v := range obj {
			props[k] = propertyValue(v)
		}
	case '[':
		var pairs []struct {
			Key   *string             `json:"key"`
			Key2  *string             `json:"Key"`
			Value jsoniter.RawMessage `json:"value"`
			Val2  jsoniter.RawMessage `json:"Value"`
		}
		if err := json.Unmarshal(trim, &pairs); err != nil {
			return props
		}
		for _, kv := range pairs {
			k, ok := pickStr(kv.Key, kv.Key2)
			if !ok {
				continue
			}
			v := kv.Value
			if v == nil {
				v = kv.Val2
			}
			props[k] = propertyValue(v)
		}
	}
	return props
}

func propertyValue(raw jsoniter.RawMessage) string {
	trim := bytes.TrimSpace(raw)
	if len(trim) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(trim, &s); err == nil {
		return s
	}
	// Wrapped form {"value": ...}.
	if trim[0] == '{' {
		var w struct {
			Value jsoniter.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(trim, &w); err == nil && w.Value != nil {
			return propertyValue(w.Value)
		}
	}
	return string(trim)
}

func decodeJobEnd(data []byte, pos eventPos) Record {
	var p jobEndJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return &SyntaxError{pos.source, pos.line, "malformed job end: " + err.Error()}
	}
	id, ok := pickInt(p.JobID, p.JobID2)
	if !ok {
		return &SyntaxError{pos.source, pos.line, "job end has no job id"}
	}
	ev := &JobEnd{eventPos: pos, JobID: id}
	ev.CompletionTime = intOr(0, p.CompletionTime, p.CompletionTime2)
	res := p.JobResult
	if res == nil {
		res = p.JobResult2
	}
	if res != nil {
		if s, ok := pickStr(res.Result, res.Result2); ok {
			ev.Succeeded = s == "JobSucceeded"
		}
	} else {
		ev.Succeeded = true
	}
	return ev
}

func decodeStage(data []byte, pos eventPos, completed bool) Record {
	var p stageEventJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return &SyntaxError{pos.source, pos.line, "malformed stage event: " + err.Error()}
	}
	info := p.StageInfo
	if info == nil {
		info = p.StageInfo2
	}
	if info == nil {
		return &SyntaxError{pos.source, pos.line, "stage event has no stage info"}
	}
	id, ok := pickInt(info.StageID, info.StageID2)
	if !ok {
		return &SyntaxError{pos.source, pos.line, "stage event has no stage id"}
	}
	name, _ := pickStr(info.Name, info.Name2)
	sub := intOr(0, info.SubmissionTime, info.SubmissionTime2)
	if !completed {
		return &StageSubmitted{eventPos: pos, StageID: id, Name: name, SubmissionTime: sub}
	}
	return &StageCompleted{
		eventPos:       pos,
		StageID:        id,
		Name:           name,
		SubmissionTime: sub,
		CompletionTime: intOr(0, info.CompletionTime, info.CompletionTime2),
	}
}

func decodeTaskEnd(data []byte, pos eventPos) Record {
	var p taskEndJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return &SyntaxError{pos.source, pos.line, "malformed task end: " + err.Error()}
	}
	sid, ok := pickInt(p.StageID, p.StageID2)
	if !ok {
		return &SyntaxError{pos.source, pos.line, "task end has no stage id"}
	}
	info := p.Info
	if info == nil {
		info = p.Info2
	}
	if info == nil {
		return &SyntaxError{pos.source, pos.line, "task end has no task info"}
	}
	tid, ok := pickInt(info.TaskID, info.TaskID2)
	if !ok {
		return &SyntaxError{pos.source, pos.line, "task end has no task id"}
	}
	ev := &TaskEnd{eventPos: pos, StageID: sid, TaskID: tid}
	ev.LaunchTime = intOr(0, info.LaunchTime, info.LaunchTime2)
	ev.FinishTime = intOr(0, info.FinishTime, info.FinishTime2)

	reason := p.EndReason
	if reason == nil {
		reason = p.EndReason2
	}
	ev.Success = endReasonSuccess(reason)

	m := p.Metrics
	if m == nil {
		m = p.Metrics2
	}
	if m != nil {
		ev.Metrics = decodeTaskMetrics(m)
	}
	return ev
}

// endReasonSuccess interprets the task end reason, which is either a
// bare string or an object with a Reason field. A missing reason
// counts as success.
func endReasonSuccess(raw jsoniter.RawMessage) bool {
	trim := bytes.TrimSpace(raw)
	if len(trim) == 0 {
		return true
	}
	var s string
	if err := json.Unmarshal(trim, &s); err == nil {
		return s == "Success"
	}
	var obj struct {
		Reason  *string `json:"Reason"`
		Reason2 *string `json:"reason"`
	}
	if err := json.Unmarshal(trim, &obj); err != nil {
		return false
	}
	r, ok := pickStr(obj.Reason, obj.Reason2)
	if !ok {
		return true
	}
	return r == "Success"
}

func decodeTaskMetrics(m *taskMetricsJSON) TaskMetrics {
	var out TaskMetrics
	out.RunTimeMS = intOr(0, m.RunTime, m.RunTime2)
	// CPU time and shuffle write time are reported in nanoseconds.
	out.CPUTimeMS = float64(intOr(0, m.CPUTime, m.CPUTime2)) / 1e6
	out.DeserializeTimeMS = intOr(0, m.DeserializeTime, m.DeserializeTime2)
	out.ResultSerializeTimeMS = intOr(0, m.ResultSerializeTime, m.ResultSerializeTime2)
	out.GCTimeMS = intOr(0, m.GCTime, m.GCTime2, m.GCTime3)

	if sr := m.ShuffleRead; sr != nil || m.ShuffleRead2 != nil {
		if sr == nil {
			sr = m.ShuffleRead2
		}
		out.ShuffleFetchWaitMS = intOr(0, sr.FetchWaitTime, sr.FetchWaitTime2)
		out.ShuffleReadBytes = intOr(0, sr.RemoteBytesRead, sr.RemoteBytesRead2) +
			intOr(0, sr.LocalBytesRead, sr.LocalBytesRead2)
	}
	if sw := m.ShuffleWrite; sw != nil || m.ShuffleWrite2 != nil {
		if sw == nil {
			sw = m.ShuffleWrite2
		}
		out.ShuffleWriteTimeMS = float64(intOr(0, sw.WriteTime, sw.WriteTime2, sw.WriteTime3)) / 1e6
		out.ShuffleWriteBytes = intOr(0, sw.BytesWritten, sw.BytesWritten2, sw.BytesWritten3)
	}
	if in := m.Input; in != nil || m.Input2 != nil {
		if in == nil {
			in = m.Input2
		}
		out.InputBytes = intOr(0, in.BytesRead, in.BytesRead2)
	}
	if o := m.Output; o != nil || m.Output2 != nil {
		if o == nil {
			o = m.Output2
		}
		out.OutputBytes = intOr(0, o.BytesWritten, o.BytesWritten2)
	}
	return out
}
