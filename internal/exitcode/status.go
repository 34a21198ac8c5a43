// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package exitcode

import (
	"os"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

type statusKind int

const (
	kindExited statusKind = iota
	kindSignaled
	kindTimedOut
)

// Status is the termination status of a process.
//
// The zero value is a normal exit with code 0.
type Status struct {
	kind   statusKind
	code   int
	signal syscall.Signal
}

// Exited returns the [Status] of a process that exited with the given code.
func Exited(code int) Status {
	return Status{kind: kindExited, code: code}
}

// Signaled returns the [Status] of a process terminated by the given signal.
func Signaled(sig syscall.Signal) Status {
	return Status{kind: kindSignaled, code: -int(sig), signal: sig}
}

// TimedOut returns the [Status] of a process that has been killed because it
// exceeded its time limit.
func TimedOut() Status {
	return Status{kind: kindTimedOut, code: -1}
}

// FromProcessState returns the [Status] of the exited process.
func FromProcessState(state *os.ProcessState) Status {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return Signaled(ws.Signal())
	}

	return Exited(state.ExitCode())
}

// Code returns the exit code like a shell reports it for the subprocess:
// the code itself for normal exits and the negative signal number for
// signal terminations. Timed out processes report -1.
func (s Status) Code() int {
	return s.code
}

// Signal returns the terminating signal and if the process was terminated by
// a signal at all.
func (s Status) Signal() (syscall.Signal, bool) {
	return s.signal, s.kind == kindSignaled
}

// Exited returns true if the process exited normally with an exit code.
func (s Status) Exited() bool {
	return s.kind == kindExited
}

// TimedOut returns true if the process was killed after its time limit.
func (s Status) TimedOut() bool {
	return s.kind == kindTimedOut
}

// String implements [fmt.Stringer].
func (s Status) String() string {
	switch s.kind {
	case kindSignaled:
		name := unix.SignalName(s.signal)
		if name == "" {
			name = "signal " + strconv.Itoa(int(s.signal))
		}

		return "terminated by " + name
	case kindTimedOut:
		return "timed out"
	default:
		return "exit code " + strconv.Itoa(s.code)
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
