// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qmp

import (
	"errors"
)

var (
	// ErrTimeout is returned if the peer did not respond in time.
	ErrTimeout = errors.New("timeout")

	// ErrNoGreeting is returned if the first message is not a greeting.
	ErrNoGreeting = errors.New("no greeting received")

	// ErrUnexpectedResponse is returned for responses that carry neither a
	// return value nor an error.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// Error is an error response of the QMP server.
type Error struct {
	Class string `json:"class"`
	Desc  string `json:"desc"`
}

// Error implements the [error] interface.
func (e *Error) Error() string {
	return "qmp: " + e.Class + ": " + e.Desc
}

// Is implements the [errors.Is] interface.
func (e *Error) Is(other error) bool {
	otherErr, ok := other.(*Error)
	if !ok {
		return false
	}

	return otherErr.Class == "" || otherErr.Class == e.Class
}
