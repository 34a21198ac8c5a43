// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package probe

import (
	"errors"

	"github.com/aibor/vmprobe/internal/exitcode"
)

// ErrNoTypes is returned if the binary did not list any type.
var ErrNoTypes = errors.New("no types listed")

// DiscoveryError is returned if the type listing could not be obtained. It
// is fatal for the whole run.
type DiscoveryError struct {
	Status *exitcode.Status
	Stderr string
	Err    error
}

// Error implements the [error] interface.
func (e *DiscoveryError) Error() string {
	msg := "discover types"

	if e.Status != nil {
		msg += ": " + e.Status.String()
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Is implements the [errors.Is] interface.
func (*DiscoveryError) Is(other error) bool {
	_, ok := other.(*DiscoveryError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *DiscoveryError) Unwrap() error {
	return e.Err
}
