// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package diff renders a unified diff of two texts for test failure
// messages.
package diff

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Diff describes the differences between got and want, empty when
// they are equal. It runs the system diff command when one is
// available and otherwise prints both texts whole.
func Diff(got, want string) string {
	if got == want {
		return ""
	}
	if _, err := exec.LookPath("diff"); err != nil {
		return fmt.Sprintf("diff command unavailable\ngot:\n%s\nwant:\n%s", got, want)
	}
	dir, err := os.MkdirTemp("", "sparkperf-diff")
	if err != nil {
		return err.Error()
	}
	defer os.RemoveAll(dir)
	if err := os.WriteFile(filepath.Join(dir, "want"), []byte(want), 0666); err != nil {
		return err.Error()
	}
	if err := os.WriteFile(filepath.Join(dir, "got"), []byte(got), 0666); err != nil {
		return err.Error()
	}

	cmd := exec.Command("diff", "-u", "want", "got")
	cmd.Dir = dir
	data, err := cmd.CombinedOutput()
	if len(data) == 0 && err != nil {
		// diff exits nonzero when the inputs differ and that is
		// fine; nonzero with no output is a real failure.
		return err.Error()
	}
	return string(data)
}
