// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package runstat collates analysis tables across benchmark runs and
// compares configurations.
//
// Each input table is the analysis of one run of one configuration,
// and carries both in its file name: "corretto-3.csv" is run 3 of
// configuration "corretto". Queries are averaged across a
// configuration's runs and joined against a baseline configuration,
// yielding per-query speedups.
package runstat

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseRunFile splits a run-file path into its configuration name and
// run number. The name is the base name without extension; the run
// number is everything after the last dash, so configuration names
// may themselves contain dashes: "zing-2-1.csv" is run 1 of "zing-2".
func ParseRunFile(path string) (config string, run int, err error) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	i := strings.LastIndexByte(base, '-')
	if i <= 0 {
		return "", 0, fmt.Errorf("run file %s: name is not of the form config-run", path)
	}
	run, err = strconv.Atoi(base[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("run file %s: name is not of the form config-run", path)
	}
	return base[:i], run, nil
}
