// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/aibor/vmprobe/internal/exitcode"
	"github.com/aibor/vmprobe/internal/pipe"
)

// killSignal is the signal [exec.CommandContext] kills the process with once
// its context is done.
const killSignal = syscall.SIGKILL

// DefaultWaitDelay is the time granted for output collection after a process
// has been killed.
const DefaultWaitDelay = 2 * time.Second

// ExecRunner is a [Runner] that runs QEMU processes on the host.
type ExecRunner struct {
	// WaitDelay bounds the time spent waiting for the output pipes to be
	// closed after the process has been killed. [DefaultWaitDelay] is used if
	// not set.
	WaitDelay time.Duration
}

var _ Runner = (*ExecRunner)(nil)

// Run implements [Runner].
//
// It returns an error only if the process could not be run to completion,
// e.g. because the executable is not found or the given context is done. A
// process killed after [Invocation.Timeout] results in a [Result] with
// [exitcode.TimedOut] status.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	runCtx := ctx

	if inv.Timeout > 0 {
		var cancel context.CancelFunc

		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer

	//nolint:gosec
	cmd := exec.CommandContext(runCtx, inv.Executable, inv.Args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.waitDelay()

	if inv.CaptureStdout {
		cmd.Stdout = &stdout
	}

	if inv.Stdin != "" {
		cmd.Stdin = strings.NewReader(inv.Stdin)
	}

	slog.Debug("QEMU command", slog.String("command", inv.String()))

	err := cmd.Run()

	// Without process state, the process has never been started.
	if cmd.ProcessState == nil {
		return nil, StartError(inv.Executable, err)
	}

	status := exitcode.FromProcessState(cmd.ProcessState)

	// The parent context being done aborts the whole run, while running into
	// the invocation's own time limit is a result.
	if ctx.Err() != nil {
		return nil, &CommandError{Executable: inv.Executable, Err: ctx.Err()}
	}

	status = timeoutStatus(status, runCtx.Err())

	result := &Result{
		Stdout: pipe.Text(stdout.Bytes()),
		Stderr: pipe.Text(stderr.Bytes()),
		Status: status,
	}

	slog.Debug("QEMU terminated",
		slog.String("executable", inv.Executable),
		slog.String("status", status.String()))

	return result, nil
}

// timeoutStatus returns [exitcode.TimedOut] if the process has been killed
// because the deadline of its context passed. A process that terminated on
// its own keeps its status, even if the deadline passed while its output was
// still being collected.
func timeoutStatus(status exitcode.Status, ctxErr error) exitcode.Status {
	if !errors.Is(ctxErr, context.DeadlineExceeded) {
		return status
	}

	if sig, signaled := status.Signal(); !signaled || sig != killSignal {
		return status
	}

	return exitcode.TimedOut()
}

func (r *ExecRunner) waitDelay() time.Duration {
	if r.WaitDelay > 0 {
		return r.WaitDelay
	}

	return DefaultWaitDelay
}

// StartError returns the error for a process that could not be started.
//
// Missing or non-executable binaries are marked as [ErrExecutableNotFound].
func StartError(executable string, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) {
		err = fmt.Errorf("%w: %w", ErrExecutableNotFound, err)
	}

	return &CommandError{Executable: executable, Err: err}
}
