// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package exitcode

import (
	"context"
	"errors"
	"fmt"
)

// Exit codes of the vmprobe command itself.
const (
	NoDefects    = 0
	DefectsFound = 1
	SetupFailed  = 2
	// Interrupted follows the shell convention for SIGINT.
	Interrupted = 130
)

// DefectError ends a run that completed but reported defects.
type DefectError struct {
	Count int
}

func (e *DefectError) Error() string {
	if e.Count == 1 {
		return "1 defect found"
	}

	return fmt.Sprintf("%d defects found", e.Count)
}

// ForRun returns the exit code of a vmprobe run that ended with the given
// error.
//
// The second return value is true if the error needs no further reporting,
// which is the case for nil and for [DefectError], as the defects are part
// of the report already.
func ForRun(err error) (int, bool) {
	var defectErr *DefectError

	switch {
	case err == nil:
		return NoDefects, true
	case errors.As(err, &defectErr):
		return DefectsFound, true
	case errors.Is(err, context.Canceled):
		return Interrupted, false
	default:
		return SetupFailed, false
	}
}
