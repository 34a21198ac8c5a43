// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"errors"
)

var (
	// ErrExecutableNotFound is returned if the QEMU binary could not be
	// found or executed.
	ErrExecutableNotFound = errors.New("executable not found")

	// ErrArgumentCollision is returned if two [Arg]s collide.
	ErrArgumentCollision = errors.New("colliding args")

	// ErrStrayValue is returned if a value token does not follow an option.
	ErrStrayValue = errors.New("value without option")

	// ErrEmptyValue is returned if a value that is used as a command line
	// token is empty.
	ErrEmptyValue = errors.New("empty value")
)

// CommandError wraps any error occurred during command execution that
// prevented the process from running to completion.
type CommandError struct {
	Executable string
	Err        error
}

// Error implements the [error] interface.
func (e *CommandError) Error() string {
	return e.Executable + ": " + e.Err.Error()
}

// Is implements the [errors.Is] interface.
func (*CommandError) Is(other error) bool {
	_, ok := other.(*CommandError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *CommandError) Unwrap() error {
	return e.Err
}
