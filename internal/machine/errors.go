// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package machine

import (
	"errors"

	"github.com/aibor/vmprobe/internal/exitcode"
)

var (
	// ErrExitedEarly is returned if the QEMU process terminated while it was
	// expected to be running.
	ErrExitedEarly = errors.New("exited early")

	// ErrTimeout is returned if the machine did not connect in time.
	ErrTimeout = errors.New("timeout")
)

// LaunchError is returned if a machine could not be launched or terminated
// during a query. It carries the process' output for diagnosis.
type LaunchError struct {
	// Termination status, if the process has terminated.
	Status *exitcode.Status
	Stderr string
	Err    error
}

// Error implements the [error] interface.
func (e *LaunchError) Error() string {
	msg := "machine: " + e.Err.Error()

	if e.Status != nil {
		msg += " (" + e.Status.String() + ")"
	}

	return msg
}

// Is implements the [errors.Is] interface.
func (*LaunchError) Is(other error) bool {
	_, ok := other.(*LaunchError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *LaunchError) Unwrap() error {
	return e.Err
}
