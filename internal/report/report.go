// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package report

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/aibor/vmprobe/internal/exitcode"
)

// Kind is the class of a [Defect].
type Kind string

// Defect kinds.
const (
	// KindCrash is a process terminated by a signal.
	KindCrash Kind = "crash"
	// KindUnexpectedExit is a process that exited with a code outside the
	// accepted set.
	KindUnexpectedExit Kind = "unexpected-exit"
	// KindTimeout is a process or channel that ran out of time.
	KindTimeout Kind = "timeout"
	// KindMismatch is an observed value that does not match the expected
	// one.
	KindMismatch Kind = "mismatch"
	// KindLaunch is a machine that could not be launched or queried.
	KindLaunch Kind = "launch"
)

// KindFor returns the defect [Kind] for a non-accepted [exitcode.Verdict].
func KindFor(verdict exitcode.Verdict) Kind {
	switch verdict {
	case exitcode.Crash:
		return KindCrash
	case exitcode.Timeout:
		return KindTimeout
	default:
		return KindUnexpectedExit
	}
}

// Defect is a single reported failure of a probe for a subject.
type Defect struct {
	// Name of the probe, e.g. "instantiate".
	Probe string `yaml:"probe"`
	// Type or scenario name the defect was found for.
	Subject string `yaml:"subject"`
	Kind    Kind   `yaml:"kind"`
	// Human readable description.
	Message string `yaml:"message"`
	// Termination status of the process, if any.
	Status *exitcode.Status `yaml:"status,omitempty"`
	// Captured stderr of the process for triage.
	Stderr string `yaml:"stderr,omitempty"`
}

// Error implements the [error] interface.
func (d *Defect) Error() string {
	return d.Probe + ": " + d.Message
}

// Skip is a subject that has not been probed for an expected reason.
type Skip struct {
	Probe   string `yaml:"probe"`
	Subject string `yaml:"subject"`
	Reason  string `yaml:"reason"`
}

// Report is the outcome of one or more probe runs.
//
// It is safe for concurrent use.
type Report struct {
	mu      sync.Mutex
	checked []string
	defects []Defect
	skips   []Skip
}

// Pass records that the subject has been checked without defects.
func (r *Report) Pass(probe, subject string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checked = append(r.checked, probe+"/"+subject)
}

// Fail records a [Defect].
//
// The defect is logged with warn level on record.
func (r *Report) Fail(defect Defect) {
	attrs := []any{
		slog.String("probe", defect.Probe),
		slog.String("subject", defect.Subject),
		slog.String("kind", string(defect.Kind)),
	}
	if defect.Status != nil {
		attrs = append(attrs, slog.String("status", defect.Status.String()))
	}

	slog.Warn(defect.Message, attrs...)

	if defect.Stderr != "" {
		slog.Warn("Emulator stderr",
			slog.String("subject", defect.Subject),
			slog.String("stderr", defect.Stderr))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.checked = append(r.checked, defect.Probe+"/"+defect.Subject)
	r.defects = append(r.defects, defect)
}

// Skip records a [Skip].
func (r *Report) Skip(skip Skip) {
	slog.Info("Skipped",
		slog.String("probe", skip.Probe),
		slog.String("subject", skip.Subject),
		slog.String("reason", skip.Reason))

	r.mu.Lock()
	defer r.mu.Unlock()

	r.skips = append(r.skips, skip)
}

// Checked returns the "probe/subject" identifiers of all checked subjects in
// the order they have been checked.
func (r *Report) Checked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.checked)
}

// Defects returns all recorded [Defect]s in the order of recording.
func (r *Report) Defects() []Defect {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.defects)
}

// Skips returns all recorded [Skip]s in the order of recording.
func (r *Report) Skips() []Skip {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.skips)
}

// Failed returns true if any [Defect] has been recorded.
func (r *Report) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.defects) > 0
}

// Merge appends everything recorded in other to r.
func (r *Report) Merge(other *Report) {
	checked, defects, skips := other.Checked(), other.Defects(), other.Skips()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.checked = append(r.checked, checked...)
	r.defects = append(r.defects, defects...)
	r.skips = append(r.skips, skips...)
}
