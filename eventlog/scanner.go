// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eventlog

import (
	"bufio"
	"io"
)

// DefaultMaxLineBytes is the default cap on a single event-log line.
// Query plan descriptions can run to tens of megabytes, so the cap is
// generous; anything past it is not an event worth keeping.
const DefaultMaxLineBytes = 64 << 20

// A LineScanner splits an event log into lines. Unlike bufio.Scanner
// it does not fail the whole stream on an over-long line: such lines
// are dropped and counted, as is a partial line at the end of a
// source that was cut off mid-write.
type LineScanner struct {
	// MaxLineBytes caps the length of a single line. Lines longer
	// than this are dropped and counted rather than returned. The
	// zero value means DefaultMaxLineBytes.
	MaxLineBytes int

	br        *bufio.Reader
	line      []byte
	n         int
	err       error
	done      bool
	truncated int
}

func NewLineScanner(r io.Reader) *LineScanner {
	return &LineScanner{br: bufio.NewReaderSize(r, 1<<16)}
}

// Scan advances to the next line. It returns false at the end of the
// source or on a read error.
func (s *LineScanner) Scan() bool {
	if s.err != nil || s.done {
		return false
	}
	max := s.MaxLineBytes
	if max <= 0 {
		max = DefaultMaxLineBytes
	}
	s.line = s.line[:0]
	skipping := false
	for {
		frag, err := s.br.ReadSlice('\n')
		if !skipping {
			s.line = append(s.line, frag...)
			if len(s.line) > max {
				skipping = true
			}
		}
		switch err {
		case nil:
			s.n++
			if skipping {
				s.truncated++
				s.line = s.line[:0]
				skipping = false
				continue
			}
			s.line = trimEOL(s.line)
			return true
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			s.done = true
			if skipping {
				s.n++
				s.truncated++
				return false
			}
			if len(s.line) > 0 {
				s.n++
				s.line = trimEOL(s.line)
				return true
			}
			return false
		case io.ErrUnexpectedEOF:
			// The source ended mid-stream, typically a log captured
			// while the engine was still writing or a gzip member cut
			// short. Whatever was pending is unusable.
			s.done = true
			if skipping || len(s.line) > 0 {
				s.n++
				s.truncated++
			}
			return false
		default:
			s.done = true
			s.err = err
			return false
		}
	}
}

// Bytes returns the current line, without its terminator. The slice
// is only valid until the next call to Scan.
func (s *LineScanner) Bytes() []byte { return s.line }

// Line returns the 1-based number of the current line. Dropped lines
// consume numbers, so positions stay aligned with the source.
func (s *LineScanner) Line() int { return s.n }

// Err returns the first read error other than tolerated end-of-source
// conditions.
func (s *LineScanner) Err() error { return s.err }

// Truncated returns the number of lines dropped because they were
// over-long or cut off by the end of the source.
func (s *LineScanner) Truncated() int { return s.truncated }

func trimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}
