// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package exitcode

// Verdict is the classification of a [Status].
type Verdict int

const (
	// Clean is a normal exit with code 0.
	Clean Verdict = iota
	// Refusal is a normal exit with code 1. The emulator rejected its
	// configuration in a controlled way.
	Refusal
	// Crash is a termination by signal.
	Crash
	// Anomaly is a normal exit with any other code.
	Anomaly
	// Timeout is a process killed after its time limit.
	Timeout
)

// Exit codes with a defined meaning.
const (
	CodeSuccess = 0
	CodeRefused = 1
)

// Classify returns the [Verdict] for the given [Status].
func Classify(status Status) Verdict {
	switch {
	case status.TimedOut():
		return Timeout
	case !status.Exited():
		return Crash
	case status.Code() == CodeSuccess:
		return Clean
	case status.Code() == CodeRefused:
		return Refusal
	default:
		return Anomaly
	}
}

// String implements [fmt.Stringer].
func (v Verdict) String() string {
	switch v {
	case Clean:
		return "clean-exit"
	case Refusal:
		return "expected-refusal-exit"
	case Crash:
		return "crash"
	case Anomaly:
		return "anomaly"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}
