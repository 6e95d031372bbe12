// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eventlog

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

func gzipBytes(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// collectArchive drains the archive, returning entry names and
// contents.
func collectArchive(t *testing.T, a *Archive) (names, contents []string) {
	t.Helper()
	for a.Next() {
		data, err := io.ReadAll(a.Reader())
		if err != nil {
			t.Fatalf("reading %s: %v", a.Name(), err)
		}
		names = append(names, a.Name())
		contents = append(contents, string(data))
	}
	if err := a.Err(); err != nil {
		t.Fatal(err)
	}
	return names, contents
}

func TestOpenArchivePlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app-1")
	if err := os.WriteFile(path, []byte("line one\nline two\n"), 0666); err != nil {
		t.Fatal(err)
	}
	a, err := OpenArchive(path)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	names, contents := collectArchive(t, a)
	if len(names) != 1 || names[0] != path {
		t.Errorf("got names %q, want [%q]", names, path)
	}
	if contents[0] != "line one\nline two\n" {
		t.Errorf("got content %q", contents[0])
	}
}

func TestOpenArchiveGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app-1.gz")
	if err := os.WriteFile(path, gzipBytes(t, "compressed line\n"), 0666); err != nil {
		t.Fatal(err)
	}
	a, err := OpenArchive(path)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	names, contents := collectArchive(t, a)
	if len(names) != 1 || names[0] != path {
		t.Errorf("got names %q, want [%q]", names, path)
	}
	if contents[0] != "compressed line\n" {
		t.Errorf("got content %q", contents[0])
	}
}

func TestOpenArchiveZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	// Write entries out of name order to check sorted iteration, and
	// include a gzip-compressed inner log.
	w, err := zw.Create("logs/app-2")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("second\n")); err != nil {
		t.Fatal(err)
	}
	w, err = zw.Create("app-1.gz")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(gzipBytes(t, "first\n")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	a, err := OpenArchive(path)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	names, contents := collectArchive(t, a)
	wantNames := []string{path + "!app-1.gz", path + "!logs/app-2"}
	wantContents := []string{"first\n", "second\n"}
	if len(names) != 2 {
		t.Fatalf("got %d entries, want 2", len(names))
	}
	for i := range wantNames {
		if names[i] != wantNames[i] {
			t.Errorf("entry %d: got name %q, want %q", i, names[i], wantNames[i])
		}
		if contents[i] != wantContents[i] {
			t.Errorf("entry %d: got content %q, want %q", i, contents[i], wantContents[i])
		}
	}
}

func TestOpenArchiveMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope")
	_, err := OpenArchive(path)
	var uerr *UnreadableArchiveError
	if !errors.As(err, &uerr) {
		t.Fatalf("got %v, want UnreadableArchiveError", err)
	}
	if uerr.Path != path {
		t.Errorf("error path = %q, want %q", uerr.Path, path)
	}
}

func TestOpenArchiveCorrupt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"zip", []byte("PK\x03\x04 this is not a real archive")},
		{"gzip", []byte{0x1f, 0x8b, 'j', 'u', 'n', 'k', 'j', 'u', 'n', 'k', 'j', 'u', 'n', 'k'}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad")
			if err := os.WriteFile(path, test.data, 0666); err != nil {
				t.Fatal(err)
			}
			_, err := OpenArchive(path)
			var uerr *UnreadableArchiveError
			if !errors.As(err, &uerr) {
				t.Fatalf("got %v, want UnreadableArchiveError", err)
			}
		})
	}
}
