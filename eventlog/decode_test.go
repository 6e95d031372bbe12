// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eventlog

import (
	"reflect"
	"testing"

	jsoniter "github.com/json-iterator/go"
)

func TestDecodeProperties(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{
			"object",
			`{"a":"1","b":"2"}`,
			map[string]string{"a": "1", "b": "2"},
		},
		{
			"objectWrappedValues",
			`{"a":{"value":"1"},"b":"2"}`,
			map[string]string{"a": "1", "b": "2"},
		},
		{
			"objectNonStringValue",
			`{"a":3}`,
			map[string]string{"a": "3"},
		},
		{
			"pairList",
			`[{"key":"a","value":"1"},{"key":"b","value":"2"}]`,
			map[string]string{"a": "1", "b": "2"},
		},
		{
			"pairListWrappedValues",
			`[{"key":"a","value":{"value":"1"}}]`,
			map[string]string{"a": "1"},
		},
		{
			"pairListMissingKey",
			`[{"value":"1"},{"key":"b","value":"2"}]`,
			map[string]string{"b": "2"},
		},
		{
			"null",
			`null`,
			map[string]string{},
		},
		{
			"empty",
			``,
			map[string]string{},
		},
		{
			"garbage",
			`{oops`,
			map[string]string{},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := decodeProperties(jsoniter.RawMessage(test.raw))
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("got %v, want %v", got, test.want)
			}
		})
	}
}

func TestEndReasonSuccess(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"missing", ``, true},
		{"successString", `"Success"`, true},
		{"failureString", `"TaskKilled"`, false},
		{"successObject", `{"Reason":"Success"}`, true},
		{"failureObject", `{"Reason":"ExceptionFailure"}`, false},
		{"objectNoReason", `{"Other":"x"}`, true},
		{"garbage", `17`, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := endReasonSuccess(jsoniter.RawMessage(test.raw))
			if got != test.want {
				t.Errorf("got %v, want %v", got, test.want)
			}
		})
	}
}

func TestDecodeJobStartVariants(t *testing.T) {
	tests := []struct {
		name string
		line string
		want *JobStart
	}{
		{
			"noExecution",
			`{"Event":"SparkListenerJobStart","Job ID":2,"Submission Time":50,"Stage IDs":[5,6]}`,
			&JobStart{eventPos{"x", 1}, 2, 50, []int64{5, 6}, 0, false},
		},
		{
			"badExecutionID",
			`{"Event":"SparkListenerJobStart","Job ID":3,"Stage IDs":[7],"Properties":{"spark.sql.execution.id":"not a number"}}`,
			&JobStart{eventPos{"x", 1}, 3, 0, []int64{7}, 0, false},
		},
		{
			"numericExecutionID",
			`{"Event":"SparkListenerJobStart","Job ID":4,"Stage IDs":[8],"Properties":{"spark.sql.execution.id":11}}`,
			&JobStart{eventPos{"x", 1}, 4, 0, []int64{8}, 11, true},
		},
		{
			"emptyStageList",
			`{"Event":"SparkListenerJobStart","Job ID":5,"Stage IDs":[]}`,
			&JobStart{eventPos{"x", 1}, 5, 0, []int64{}, 0, false},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := decodeEvent([]byte(test.line), "x", 1)
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("got %+v, want %+v", got, test.want)
			}
		})
	}
}

func TestDecodeTaskEndDefaults(t *testing.T) {
	// Metrics object absent entirely: the event still decodes, with
	// zero metrics.
	line := `{"Event":"SparkListenerTaskEnd","Stage ID":1,"Task Info":{"Task ID":4,"Launch Time":10,"Finish Time":20}}`
	got := decodeEvent([]byte(line), "x", 1)
	want := &TaskEnd{eventPos{"x", 1}, 1, 4, 10, 20, true, TaskMetrics{}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDecodeUnknownEventKeepsKind(t *testing.T) {
	line := `{"Event":"org.apache.spark.scheduler.SparkListenerBlockUpdated","x":1}`
	got := decodeEvent([]byte(line), "x", 3)
	want := &UnknownEvent{eventPos{"x", 3}, "org.apache.spark.scheduler.SparkListenerBlockUpdated"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
