// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eventlog

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// An UnreadableArchiveError reports an event-log container that could
// not be opened or identified. It is fatal to the run that owns the
// container, unlike per-line decode failures.
type UnreadableArchiveError struct {
	Path string
	Err  error
}

func (e *UnreadableArchiveError) Error() string {
	return fmt.Sprintf("unreadable archive %s: %v", e.Path, e.Err)
}

func (e *UnreadableArchiveError) Unwrap() error { return e.Err }

// An Archive is an opened event-log container. A plain or gzip file
// holds exactly one logical log; a zip archive holds one per entry.
// Iterate with Next, then read the current log:
//
//	a, err := eventlog.OpenArchive(path)
//	if err != nil { ... }
//	defer a.Close()
//	for a.Next() {
//		// a.Name(), a.Reader()
//	}
//	if err := a.Err(); err != nil { ... }
type Archive struct {
	path string

	file *os.File
	gz   *gzip.Reader
	zr   *zip.ReadCloser

	entries []*zip.File
	cur     io.Reader
	curName string
	curRC   io.ReadCloser
	innerGZ *gzip.Reader
	started bool
	err     error
}

// OpenArchive opens the container at path, sniffing its kind from the
// leading magic bytes: 0x1f 0x8b means gzip, "PK" means zip, anything
// else is read as a plain log. Unidentifiable or corrupt containers
// yield an *UnreadableArchiveError.
func OpenArchive(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &UnreadableArchiveError{path, err}
	}
	var magic [2]byte
	n, err := io.ReadFull(f, magic[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		f.Close()
		return nil, &UnreadableArchiveError{path, err}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, &UnreadableArchiveError{path, err}
	}
	switch {
	case n == 2 && magic[0] == 0x1f && magic[1] == 0x8b:
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, &UnreadableArchiveError{path, err}
		}
		return &Archive{path: path, file: f, gz: gz, cur: gz, curName: path}, nil
	case n == 2 && magic[0] == 'P' && magic[1] == 'K':
		f.Close()
		zr, err := zip.OpenReader(path)
		if err != nil {
			return nil, &UnreadableArchiveError{path, err}
		}
		entries := make([]*zip.File, len(zr.File))
		copy(entries, zr.File)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		return &Archive{path: path, zr: zr, entries: entries}, nil
	}
	return &Archive{path: path, file: f, cur: f, curName: path}, nil
}

// Next advances to the next logical log in the container. It returns
// false when there are no more logs or opening one failed; use Err to
// distinguish.
func (a *Archive) Next() bool {
	if a.err != nil {
		return false
	}
	if a.zr == nil {
		if a.started {
			return false
		}
		a.started = true
		return true
	}
	a.closeEntry()
	for len(a.entries) > 0 {
		f := a.entries[0]
		a.entries = a.entries[1:]
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			a.err = &UnreadableArchiveError{a.path, fmt.Errorf("entry %s: %v", f.Name, err)}
			return false
		}
		a.curRC = rc
		a.cur = rc
		a.curName = a.path + "!" + f.Name
		// Entries may themselves be gzip-compressed logs.
		if strings.HasSuffix(f.Name, ".gz") {
			gz, err := gzip.NewReader(rc)
			if err != nil {
				a.err = &UnreadableArchiveError{a.path, fmt.Errorf("entry %s: %v", f.Name, err)}
				return false
			}
			a.innerGZ = gz
			a.cur = gz
		}
		return true
	}
	return false
}

// Name returns the name of the current log: the container path, with
// "!entry" appended for a log inside a zip archive.
func (a *Archive) Name() string { return a.curName }

// Reader returns the current log's contents.
func (a *Archive) Reader() io.Reader { return a.cur }

// Err returns the error that stopped iteration, if any.
func (a *Archive) Err() error { return a.err }

func (a *Archive) closeEntry() {
	if a.innerGZ != nil {
		a.innerGZ.Close()
		a.innerGZ = nil
	}
	if a.curRC != nil {
		a.curRC.Close()
		a.curRC = nil
	}
}

// Close releases the container and any open entry.
func (a *Archive) Close() error {
	a.closeEntry()
	var err error
	if a.gz != nil {
		err = a.gz.Close()
		a.gz = nil
	}
	if a.file != nil {
		if cerr := a.file.Close(); err == nil {
			err = cerr
		}
		a.file = nil
	}
	if a.zr != nil {
		if cerr := a.zr.Close(); err == nil {
			err = cerr
		}
		a.zr = nil
	}
	return err
}
