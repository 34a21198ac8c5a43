// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package probe

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aibor/vmprobe/internal/exitcode"
	"github.com/aibor/vmprobe/internal/qemu"
	"github.com/aibor/vmprobe/internal/report"
)

// ValidateProbeName is the probe name [Prober.Validate] reports with.
const ValidateProbeName = "validate"

// MaxHostNodes is the number of host NUMA nodes QEMU supports.
const MaxHostNodes = 128

// Check is a fixed invocation with expectations on its outcome.
type Check struct {
	// Name used in reports.
	Name string `yaml:"name"`
	// Arguments passed after the prober's extra arguments.
	Args []string `yaml:"args"`
	// Expected exit code.
	ExitCode int `yaml:"exitCode"`
	// Text that must be present in stderr, if not empty.
	StderrContains string `yaml:"stderrContains"`
	// Stdout must be empty.
	StdoutEmpty bool `yaml:"stdoutEmpty"`
}

func hostNodesArgs(nodes int) []string {
	return []string{
		"-nodefaults",
		"-object", qemu.OptionValue(
			"memory-backend-ram",
			"id=m0",
			"size=4096",
			"host-nodes="+strconv.Itoa(nodes),
		),
	}
}

// HostNodesChecks returns the checks for the memory backend host-nodes
// limit validation.
//
// A host node number at the limit must be refused as invalid. A valid one
// must be refused as well, since no policy is given.
func HostNodesChecks() []Check {
	return []Check{
		{
			Name:           "large-host-nodes",
			Args:           hostNodesArgs(MaxHostNodes),
			ExitCode:       exitcode.CodeRefused,
			StderrContains: "Invalid host-nodes",
			StdoutEmpty:    true,
		},
		{
			Name:           "valid-host-nodes",
			Args:           hostNodesArgs(MaxHostNodes - 1),
			ExitCode:       exitcode.CodeRefused,
			StderrContains: "host-nodes must be empty",
		},
	}
}

// Validate runs the given [Check]s and records the outcome in the given
// [report.Report].
//
// Like [Prober.Run], it continues after defects and returns an error only if
// checking can not continue at all.
func (p *Prober) Validate(
	ctx context.Context,
	checks []Check,
	rep *report.Report,
) error {
	if p.Progress != nil {
		p.Progress.Start(ValidateProbeName, len(checks))
		defer p.Progress.Finish()
	}

	for _, check := range checks {
		inv := p.invocation(check.Args...)
		inv.CaptureStdout = true

		result, err := p.Runner.Run(ctx, inv)
		if err != nil {
			return fmt.Errorf("%s %s: %w", ValidateProbeName, check.Name, err)
		}

		defect := evaluate(check, result)
		if defect == nil {
			rep.Pass(ValidateProbeName, check.Name)
		} else {
			rep.Fail(*defect)
		}

		if p.Progress != nil {
			p.Progress.Done(check.Name)
		}
	}

	return nil
}

func evaluate(check Check, result *qemu.Result) *report.Defect {
	defect := &report.Defect{
		Probe:   ValidateProbeName,
		Subject: check.Name,
		Status:  &result.Status,
		Stderr:  result.Stderr,
	}

	verdict := result.Verdict()

	switch {
	case verdict == exitcode.Crash || verdict == exitcode.Timeout:
		defect.Kind = report.KindFor(verdict)
		defect.Message = defectMessage(verdict, result.Status, "running "+check.Name)

		return defect
	case result.Status.Code() != check.ExitCode:
		defect.Kind = report.KindUnexpectedExit
		defect.Message = fmt.Sprintf("exit code %d, expected %d",
			result.Status.Code(), check.ExitCode)

		return defect
	}

	var mismatches []string

	if check.StderrContains != "" &&
		!strings.Contains(result.Stderr, check.StderrContains) {
		mismatches = append(mismatches,
			fmt.Sprintf("stderr does not contain %q", check.StderrContains))
	}

	if check.StdoutEmpty && result.Stdout != "" {
		mismatches = append(mismatches, "stdout is not empty")
	}

	if len(mismatches) == 0 {
		return nil
	}

	defect.Kind = report.KindMismatch
	defect.Message = strings.Join(mismatches, ", ")

	return defect
}
