// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eventlog

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// cutReader yields its data in one read and then fails with err,
// standing in for a source that ends mid-line.
type cutReader struct {
	data string
	err  error
	done bool
}

func (r *cutReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, r.err
	}
	r.done = true
	return copy(p, r.data), nil
}

func scanLines(s *LineScanner) []string {
	var lines []string
	for s.Scan() {
		lines = append(lines, string(s.Bytes()))
	}
	return lines
}

func TestLineScanner(t *testing.T) {
	s := NewLineScanner(strings.NewReader("one\ntwo\r\n\nfour"))
	want := []string{"one", "two", "", "four"}
	for i, w := range want {
		if !s.Scan() {
			t.Fatalf("Scan stopped at line %d", i+1)
		}
		if got := string(s.Bytes()); got != w {
			t.Errorf("line %d: got %q, want %q", i+1, got, w)
		}
		if s.Line() != i+1 {
			t.Errorf("line %d: Line() = %d", i+1, s.Line())
		}
	}
	if s.Scan() {
		t.Error("Scan returned true past end of input")
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
	if n := s.Truncated(); n != 0 {
		t.Errorf("Truncated() = %d, want 0", n)
	}
}

func TestLineScannerEmpty(t *testing.T) {
	s := NewLineScanner(strings.NewReader(""))
	if s.Scan() {
		t.Error("Scan returned true on empty input")
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestLineScannerLongLine(t *testing.T) {
	s := NewLineScanner(strings.NewReader("short\n" + strings.Repeat("x", 100) + "\nafter\n"))
	s.MaxLineBytes = 16
	got := scanLines(s)
	want := []string{"short", "after"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got lines %q, want %q", got, want)
	}
	if n := s.Truncated(); n != 1 {
		t.Errorf("Truncated() = %d, want 1", n)
	}
	// The dropped line still consumed a line number.
	if s.Line() != 3 {
		t.Errorf("Line() = %d, want 3", s.Line())
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestLineScannerCutSource(t *testing.T) {
	s := NewLineScanner(&cutReader{data: "one\npartial tai", err: io.ErrUnexpectedEOF})
	got := scanLines(s)
	if len(got) != 1 || got[0] != "one" {
		t.Errorf("got lines %q, want [one]", got)
	}
	if n := s.Truncated(); n != 1 {
		t.Errorf("Truncated() = %d, want 1", n)
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil (cut source is tolerated)", err)
	}
}

func TestLineScannerReadError(t *testing.T) {
	fail := errors.New("read failed")
	s := NewLineScanner(&cutReader{data: "one\ntwo", err: fail})
	got := scanLines(s)
	if len(got) != 1 || got[0] != "one" {
		t.Errorf("got lines %q, want [one]", got)
	}
	if err := s.Err(); err != fail {
		t.Errorf("Err() = %v, want %v", err, fail)
	}
	if n := s.Truncated(); n != 0 {
		t.Errorf("Truncated() = %d, want 0", n)
	}
}
