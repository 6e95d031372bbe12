// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eventlog

import "io"

// A Reader reads typed event records from one event log. Lines that
// fail to decode are returned as *SyntaxError records rather than
// stopping the read; only I/O failures end the stream early.
//
// Use like a bufio.Scanner:
//
//	r := eventlog.NewReader(f, name)
//	for r.Scan() {
//		switch rec := r.Record().(type) {
//		...
//		}
//	}
//	if err := r.Err(); err != nil { ... }
type Reader struct {
	sc     *LineScanner
	source string
	rec    Record
}

// NewReader returns a Reader that reads records from rd. The name is
// used in record positions and error messages.
func NewReader(rd io.Reader, name string) *Reader {
	r := new(Reader)
	r.Reset(rd, name)
	return r
}

// Reset resets the Reader to read from rd, dropping all state from
// the previous source.
func (r *Reader) Reset(rd io.Reader, name string) {
	r.sc = NewLineScanner(rd)
	r.source = name
	r.rec = nil
}

// Scan advances to the next record and reports whether one is
// available. Blank lines are skipped.
func (r *Reader) Scan() bool {
	for r.sc.Scan() {
		rec := decodeEvent(r.sc.Bytes(), r.source, r.sc.Line())
		if rec == nil {
			continue
		}
		r.rec = rec
		return true
	}
	return false
}

// Record returns the record read by the last call to Scan.
func (r *Reader) Record() Record { return r.rec }

// Err returns the I/O error that stopped reading, if any. Decode
// failures are *SyntaxError records, not errors here.
func (r *Reader) Err() error { return r.sc.Err() }

// Truncated returns the number of raw lines dropped because they
// were over-long or cut off by the end of the source.
func (r *Reader) Truncated() int { return r.sc.Truncated() }
