// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package introspect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aibor/vmprobe/internal/machine"
	"github.com/aibor/vmprobe/internal/probe"
	"github.com/aibor/vmprobe/internal/qemu"
	"github.com/aibor/vmprobe/internal/qmp"
	"github.com/aibor/vmprobe/internal/qtest"
	"github.com/aibor/vmprobe/internal/report"
)

// ProbeName is the probe name scenarios are reported with.
const ProbeName = "introspect"

// DefaultQueryTimeout bounds each single query to a machine.
const DefaultQueryTimeout = 10 * time.Second

// Session is a running halted machine that can be queried.
type Session interface {
	Execute(ctx context.Context, command string, args map[string]any, result any) error
	Readl(ctx context.Context, addr uint64) (uint64, error)
	Close() error
}

// Launcher launches a [Session] with the given additional arguments.
type Launcher interface {
	Launch(ctx context.Context, args ...string) (Session, error)
}

// MachineLauncher is a [Launcher] for [machine.Machine]s.
type MachineLauncher struct {
	*machine.Launcher
}

// Launch implements [Launcher].
func (l MachineLauncher) Launch(ctx context.Context, args ...string) (Session, error) {
	m, err := l.Launcher.Launch(ctx, args...)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Prober runs introspection scenarios.
type Prober struct {
	Launcher Launcher
	Feature  Feature

	// Bound for each single query. [DefaultQueryTimeout] if not set.
	QueryTimeout time.Duration

	// Optional progress receiver.
	Progress probe.Progress
}

// Run runs all given scenarios and records the outcome in the given
// [report.Report].
//
// Like the other probes, it continues after defects. It returns an error
// only if probing can not continue at all, e.g. because the binary is
// missing or the context is done.
func (p *Prober) Run(ctx context.Context, scenarios []Scenario, rep *report.Report) error {
	if p.Progress != nil {
		p.Progress.Start(ProbeName, len(scenarios))
		defer p.Progress.Finish()
	}

	for _, scenario := range scenarios {
		err := p.runScenario(ctx, scenario, rep)
		if err != nil {
			return fmt.Errorf("%s %s: %w", ProbeName, scenario.Name, err)
		}

		if p.Progress != nil {
			p.Progress.Done(scenario.Name)
		}
	}

	return nil
}

func (p *Prober) runScenario(ctx context.Context, scenario Scenario, rep *report.Report) error {
	if scenario.Expect == Present {
		registered, err := p.Registered(ctx)
		if err != nil {
			return p.failLaunch(ctx, scenario, err, rep)
		}

		if !registered {
			rep.Skip(report.Skip{
				Probe:   ProbeName,
				Subject: scenario.Name,
				Reason:  fmt.Sprintf("type %s not registered", p.Feature.TypeName),
			})

			return nil
		}
	}

	answer, err := p.Query(ctx, scenario.Args...)
	if err != nil {
		return p.failLaunch(ctx, scenario, err, rep)
	}

	slog.Debug("Introspected machine",
		slog.String("scenario", scenario.Name),
		slog.Bool("registered", answer.Registered),
		slog.Bool("enabled", answer.Enabled),
		slog.Bool("active", answer.Active))

	mismatches := p.Evaluate(scenario.Expect, answer)
	if len(mismatches) == 0 {
		rep.Pass(ProbeName, scenario.Name)
		return nil
	}

	rep.Fail(report.Defect{
		Probe:   ProbeName,
		Subject: scenario.Name,
		Kind:    report.KindMismatch,
		Message: strings.Join(mismatches, ", "),
	})

	return nil
}

// failLaunch records a launch or query failure as defect. Failures that
// affect every scenario are returned instead.
func (p *Prober) failLaunch(
	ctx context.Context,
	scenario Scenario,
	err error,
	rep *report.Report,
) error {
	if ctx.Err() != nil || isSetupError(err) {
		return err
	}

	defect := report.Defect{
		Probe:   ProbeName,
		Subject: scenario.Name,
		Kind:    report.KindLaunch,
		Message: err.Error(),
	}

	if errors.Is(err, machine.ErrTimeout) || errors.Is(err, qmp.ErrTimeout) ||
		errors.Is(err, qtest.ErrTimeout) {
		defect.Kind = report.KindTimeout
	}

	var launchErr *machine.LaunchError
	if errors.As(err, &launchErr) {
		defect.Status = launchErr.Status
		defect.Stderr = launchErr.Stderr

		if launchErr.Status != nil && errors.Is(err, machine.ErrExitedEarly) {
			if _, signaled := launchErr.Status.Signal(); signaled {
				defect.Kind = report.KindCrash
			}
		}
	}

	rep.Fail(defect)

	return nil
}

// Evaluate returns the mismatches of the answer to the expectation.
func (p *Prober) Evaluate(expect Expect, answer Answer) []string {
	var (
		expected   bool
		mismatches []string
	)

	switch expect {
	case Present:
		expected = true
	case Absent:
		expected = false
	default:
		expected = answer.Registered
	}

	name := p.Feature.Name

	if answer.Enabled != expected {
		mismatches = append(mismatches, fmt.Sprintf(
			"property %s is %t, expected %t",
			p.Feature.Property, answer.Enabled, expected))
	}

	if answer.Active != expected {
		mismatches = append(mismatches, fmt.Sprintf(
			"%s device active is %t, expected %t",
			name, answer.Active, expected))
	}

	if answer.Enabled != answer.Active {
		mismatches = append(mismatches, fmt.Sprintf(
			"property %s is %t, but %s device active is %t",
			p.Feature.Property, answer.Enabled, name, answer.Active))
	}

	return mismatches
}

// Registered launches a default machine and returns whether the feature's
// type is registered.
func (p *Prober) Registered(ctx context.Context) (bool, error) {
	session, err := p.Launcher.Launch(ctx)
	if err != nil {
		return false, err
	}
	defer closeSession(session)

	return p.registered(ctx, session)
}

// Query launches a machine with the given arguments and returns its
// [Answer]. The machine is shut down before Query returns.
func (p *Prober) Query(ctx context.Context, args ...string) (Answer, error) {
	var answer Answer

	session, err := p.Launcher.Launch(ctx, args...)
	if err != nil {
		return answer, err
	}
	defer closeSession(session)

	answer.Registered, err = p.registered(ctx, session)
	if err != nil {
		return answer, err
	}

	answer.Enabled, err = p.enabled(ctx, session)
	if err != nil {
		return answer, err
	}

	answer.Active, err = p.active(ctx, session)
	if err != nil {
		return answer, err
	}

	return answer, nil
}

func closeSession(session Session) {
	err := session.Close()
	if err != nil {
		slog.Warn("Close machine", slog.Any("error", err))
	}
}

func (p *Prober) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := p.QueryTimeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}

	return context.WithTimeout(ctx, timeout)
}

type typeInfo struct {
	Name string `json:"name"`
}

func (p *Prober) registered(ctx context.Context, session Session) (bool, error) {
	ctx, cancel := p.queryContext(ctx)
	defer cancel()

	var types []typeInfo

	err := session.Execute(ctx, "qom-list-types", map[string]any{
		"implements": p.Feature.TypeName,
		"abstract":   false,
	}, &types)
	if err != nil {
		return false, fmt.Errorf("list types: %w", err)
	}

	return len(types) > 0, nil
}

func (p *Prober) enabled(ctx context.Context, session Session) (bool, error) {
	ctx, cancel := p.queryContext(ctx)
	defer cancel()

	var enabled bool

	err := session.Execute(ctx, "qom-get", map[string]any{
		"path":     p.Feature.MachinePath,
		"property": p.Feature.Property,
	}, &enabled)
	if err != nil {
		return false, fmt.Errorf("get property: %w", err)
	}

	return enabled, nil
}

// active reads the feature's register. Any response other than a value is
// an absent device.
func (p *Prober) active(ctx context.Context, session Session) (bool, error) {
	ctx, cancel := p.queryContext(ctx)
	defer cancel()

	value, err := session.Readl(ctx, p.Feature.Address)
	if errors.Is(err, &qtest.ResponseError{}) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("read register: %w", err)
	}

	return value != 0, nil
}

// isSetupError reports whether err is caused by the configuration rather than
// the emulator, so it would fail every launch the same way.
func isSetupError(err error) bool {
	return errors.Is(err, qemu.ErrExecutableNotFound) ||
		errors.Is(err, qemu.ErrEmptyValue) ||
		errors.Is(err, qemu.ErrArgumentCollision) ||
		errors.Is(err, qemu.ErrStrayValue)
}
