// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/aibor/vmprobe/internal/exitcode"
)

// Invocation is a single launch request for a QEMU process.
//
// Args are passed as discrete tokens without any shell interpretation.
type Invocation struct {
	// Path or name of the QEMU binary. Names are looked up in PATH.
	Executable string

	// Arguments in the order they are passed to the process.
	Args []string

	// Input written to the process' stdin. If empty, stdin is connected to
	// the null device.
	Stdin string

	// Capture stdout. If false, stdout is discarded.
	CaptureStdout bool

	// Upper bound for the process' run time. Zero means no time limit
	// besides the context passed to [Runner.Run].
	Timeout time.Duration
}

// With returns a copy of the [Invocation] with the given args appended.
//
// The receiver is not modified.
func (i Invocation) With(args ...string) Invocation {
	i.Args = append(slices.Clone(i.Args), args...)
	return i
}

// String returns the command line for diagnosis.
func (i Invocation) String() string {
	return strings.Join(append([]string{i.Executable}, i.Args...), " ")
}

// Result is the outcome of a single [Invocation].
type Result struct {
	// Captured stdout with normalized line endings. Empty if stdout was not
	// captured.
	Stdout string

	// Captured stderr with normalized line endings.
	Stderr string

	// How the process terminated.
	Status exitcode.Status
}

// Verdict returns the classification of the [Result.Status].
func (r *Result) Verdict() exitcode.Verdict {
	return exitcode.Classify(r.Status)
}

// StdoutLines returns the captured stdout split into lines.
func (r *Result) StdoutLines() []string {
	if r.Stdout == "" {
		return nil
	}

	return strings.Split(strings.TrimSuffix(r.Stdout, "\n"), "\n")
}

// Runner runs [Invocation]s.
type Runner interface {
	// Run runs the given [Invocation] synchronously to completion.
	Run(ctx context.Context, inv Invocation) (*Result, error)
}

// RunnerFunc is a function that implements [Runner].
type RunnerFunc func(ctx context.Context, inv Invocation) (*Result, error)

// Run implements [Runner].
func (f RunnerFunc) Run(ctx context.Context, inv Invocation) (*Result, error) {
	return f(ctx, inv)
}
