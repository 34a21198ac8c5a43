// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package probe

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aibor/vmprobe/internal/exitcode"
	"github.com/aibor/vmprobe/internal/qemu"
	"github.com/aibor/vmprobe/internal/report"
)

// DefaultOption is the QEMU option the user creatable object types are
// listed and created with.
const DefaultOption = "object"

// Progress is notified about the progress of a [Prober.Run].
type Progress interface {
	// Start is called before the first subject is probed.
	Start(probe string, total int)
	// Done is called after each subject.
	Done(subject string)
	// Finish is called after the last subject.
	Finish()
}

// Prober runs probes against a QEMU binary.
type Prober struct {
	// Runner used to run the QEMU processes.
	Runner qemu.Runner

	// Path or name of the QEMU binary.
	Executable string

	// Arguments passed to every invocation before the probe's arguments.
	ExtraArgs []string

	// Option name used to list and create types. [DefaultOption] if empty.
	Option string

	// Time limit for each single invocation.
	Timeout time.Duration

	// Optional progress receiver.
	Progress Progress
}

func (p *Prober) option() string {
	if p.Option == "" {
		return DefaultOption
	}

	return p.Option
}

// optionFlag returns the option as command line flag, e.g. "-object".
func (p *Prober) optionFlag() string {
	return "-" + p.option()
}

func (p *Prober) invocation(args ...string) qemu.Invocation {
	return qemu.Invocation{
		Executable: p.Executable,
		Args:       slices.Clone(p.ExtraArgs),
		Timeout:    p.Timeout,
	}.With(args...)
}

// Run applies the given [Probe] to all given type names and records the
// outcome in the given [report.Report].
//
// Type names are probed sequentially in the given order. Defects of single
// types are recorded and probing continues with the next type. An error is
// returned only if probing can not continue at all, e.g. because the binary
// is gone or the context is done.
func (p *Prober) Run(
	ctx context.Context,
	probe Probe,
	names []string,
	rep *report.Report,
) error {
	if p.Progress != nil {
		p.Progress.Start(probe.Name, len(names))
		defer p.Progress.Finish()
	}

	for _, name := range names {
		err := p.check(ctx, probe, name, rep)
		if err != nil {
			return fmt.Errorf("%s %s: %w", probe.Name, name, err)
		}

		if p.Progress != nil {
			p.Progress.Done(name)
		}
	}

	return nil
}

func (p *Prober) check(
	ctx context.Context,
	probe Probe,
	name string,
	rep *report.Report,
) error {
	// Type names are untrusted output of the binary. They are only ever
	// passed as single argument values.
	if strings.TrimSpace(name) == "" {
		rep.Skip(report.Skip{
			Probe:   probe.Name,
			Subject: name,
			Reason:  "empty type name",
		})

		return nil
	}

	inv := p.invocation(probe.Args(p.option(), name)...)
	inv.Stdin = probe.Stdin

	result, err := p.Runner.Run(ctx, inv)
	if err != nil {
		return err
	}

	verdict := result.Verdict()

	slog.Debug("Probed type",
		slog.String("probe", probe.Name),
		slog.String("type", name),
		slog.String("verdict", verdict.String()))

	if probe.Accepts(verdict) {
		rep.Pass(probe.Name, name)
		return nil
	}

	rep.Fail(report.Defect{
		Probe:   probe.Name,
		Subject: name,
		Kind:    report.KindFor(verdict),
		Message: defectMessage(verdict, result.Status, probe.Action+" "+name),
		Status:  &result.Status,
		Stderr:  result.Stderr,
	})

	return nil
}

func defectMessage(
	verdict exitcode.Verdict,
	status exitcode.Status,
	action string,
) string {
	switch verdict {
	case exitcode.Crash:
		return "crashed while " + action
	case exitcode.Timeout:
		return "timed out while " + action
	default:
		return fmt.Sprintf("unexpected exit code %d while %s", status.Code(), action)
	}
}
